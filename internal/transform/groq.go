package transform

import (
	"context"
	"slices"

	"github.com/harborai/llm-gateway/internal/canonical"
)

// groqServiceTiers is the accepted service-tier enumeration; anything else
// the vendor returns is normalized to the default.
var groqServiceTiers = []string{"auto", "default", "flex"}

const groqDefaultServiceTier = "auto"

// GroqTransform adapts the canonical chat-completion shape to Groq's
// OpenAI-compatible endpoint.
//
// Deviations from the generic dialect:
//   - max_retries is not accepted
//   - response_format cannot be streamed; streaming is emulated instead
//   - JSON-schema response_format is expressed as a forced tool call
//   - assistant messages reject explicit null fields
//   - service_tier in responses is normalized to a fixed enumeration
type GroqTransform struct {
	OpenAICompatTransform
}

// NewGroqTransform creates the Groq transform.
func NewGroqTransform() *GroqTransform {
	return &GroqTransform{
		OpenAICompatTransform: *NewOpenAICompatTransform(
			"groq",
			ProviderGroq,
			"https://api.groq.com/openai/v1",
		),
	}
}

// SupportedParams removes max_retries from the generic set.
func (t *GroqTransform) SupportedParams(model string) []string {
	params := t.OpenAICompatTransform.SupportedParams(model)
	if i := slices.Index(params, "max_retries"); i >= 0 {
		params = slices.Delete(params, i, i+1)
	}
	return params
}

// shouldFakeStream reports whether streaming must be emulated: Groq does not
// support response_format while streaming.
func (t *GroqTransform) shouldFakeStream(nonDefaultParams map[string]any) bool {
	return nonDefaultParams["response_format"] != nil
}

// jsonToolCallForResponseFormat synthesizes the single tool definition whose
// parameters equal the requested JSON schema. Forcing tool selection to this
// function gives schema-shaped output on a vendor without native structured
// output support.
func jsonToolCallForResponseFormat(jsonSchema map[string]any) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":       JSONToolCallName,
			"parameters": jsonSchema,
		},
	}
}

// MapRequestParams applies the Groq-specific adjustments, then delegates the
// remaining parameter mapping to the generic dialect.
func (t *GroqTransform) MapRequestParams(nonDefaultParams, wireParams map[string]any, model string, dropUnsupported bool) map[string]any {
	if wireParams == nil {
		wireParams = make(map[string]any, len(nonDefaultParams))
	}

	if t.shouldFakeStream(nonDefaultParams) {
		wireParams[ParamFakeStream] = true
	}

	if responseFormat, ok := nonDefaultParams["response_format"].(map[string]any); ok {
		var jsonSchema map[string]any
		if schema, ok := responseFormat["response_schema"].(map[string]any); ok {
			jsonSchema = schema
		} else if js, ok := responseFormat["json_schema"].(map[string]any); ok {
			jsonSchema, _ = js["schema"].(map[string]any)
		}

		// A JSON-schema response_format is expressed as a single forced tool
		// call; the original key must not reach the wire.
		if jsonSchema != nil {
			wireParams["tools"] = []any{jsonToolCallForResponseFormat(jsonSchema)}
			wireParams["tool_choice"] = map[string]any{
				"type":     "function",
				"function": map[string]any{"name": JSONToolCallName},
			}
			wireParams[ParamJSONMode] = true
			delete(nonDefaultParams, "response_format")
		}
	}

	return mapParams(t, nonDefaultParams, wireParams, model, dropUnsupported)
}

// NormalizeMessages drops null-valued fields from assistant messages; Groq
// rejects explicit nulls there. Other roles pass through untouched, and an
// untouched message is never mutated: a normalized assistant message is a
// fresh map replacing the original in the returned slice.
func (t *GroqTransform) NormalizeMessages(ctx context.Context, messages []canonical.Message, model string) ([]canonical.Message, error) {
	out := make([]canonical.Message, len(messages))
	copy(out, messages)

	for i, msg := range out {
		if msg.Role() != "assistant" {
			continue
		}
		normalized := make(canonical.Message, len(msg))
		for k, v := range msg {
			if v != nil {
				normalized[k] = v
			}
		}
		out[i] = normalized
	}
	return out, nil
}

// TransformResponse parses the response via the generic dialect, then
// normalizes the service tier to the accepted enumeration.
func (t *GroqTransform) TransformResponse(raw []byte, model string) (*canonical.ModelResponse, error) {
	resp, err := t.OpenAICompatTransform.TransformResponse(raw, model)
	if err != nil {
		return nil, err
	}
	resp.ServiceTier = mapGroqServiceTier(resp.ServiceTier)
	return resp, nil
}

// mapGroqServiceTier maps the vendor's service tier onto the accepted
// enumeration, substituting the default for anything outside it.
func mapGroqServiceTier(original string) string {
	if slices.Contains(groqServiceTiers, original) {
		return original
	}
	return groqDefaultServiceTier
}

var _ Transform = (*GroqTransform)(nil)
