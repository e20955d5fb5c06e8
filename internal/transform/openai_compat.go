package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/harborai/llm-gateway/internal/canonical"
	"github.com/harborai/llm-gateway/internal/config"
)

// openAIChatParams is the canonical parameter set an OpenAI-compatible chat
// endpoint accepts.
var openAIChatParams = []string{
	"frequency_penalty",
	"function_call",
	"functions",
	"logit_bias",
	"logprobs",
	"max_tokens",
	"max_completion_tokens",
	"max_retries",
	"n",
	"presence_penalty",
	"response_format",
	"seed",
	"stop",
	"stream",
	"stream_options",
	"temperature",
	"tool_choice",
	"tools",
	"top_logprobs",
	"top_p",
	"user",
}

// OpenAICompatTransform is the generic transform for vendors exposing an
// OpenAI-compatible chat-completions endpoint. Vendor transforms embed it
// and override their deviations.
//
// All state is per-instance: two transforms for different vendors never
// share configuration.
type OpenAICompatTransform struct {
	name           string
	provider       Provider
	defaultAPIBase string
	apiBaseEnv     string
	apiKeyEnv      string
}

// NewOpenAICompatTransform creates a generic OpenAI-compatible transform for
// the named vendor. Secret names follow the <VENDOR>_API_BASE /
// <VENDOR>_API_KEY pattern.
func NewOpenAICompatTransform(name string, provider Provider, defaultAPIBase string) *OpenAICompatTransform {
	return &OpenAICompatTransform{
		name:           name,
		provider:       provider,
		defaultAPIBase: defaultAPIBase,
		apiBaseEnv:     config.APIBaseEnv(name),
		apiKeyEnv:      config.APIKeyEnv(name),
	}
}

// Name returns the transform identifier.
func (t *OpenAICompatTransform) Name() string { return t.name }

// Provider returns the vendor family.
func (t *OpenAICompatTransform) Provider() Provider { return t.provider }

// ResolveConnection applies the connection precedence: explicit argument,
// then environment secret, then the hardcoded vendor default URL. The key
// has no default.
func (t *OpenAICompatTransform) ResolveConnection(apiBase, apiKey string) (string, string) {
	base := apiBase
	if base == "" {
		base = config.ResolveSecret(t.apiBaseEnv)
	}
	if base == "" {
		base = t.defaultAPIBase
	}

	key := apiKey
	if key == "" {
		key = config.ResolveSecret(t.apiKeyEnv)
	}
	return base, key
}

// SupportedParams returns the generic OpenAI-compatible parameter set.
func (t *OpenAICompatTransform) SupportedParams(model string) []string {
	out := make([]string, len(openAIChatParams))
	copy(out, openAIChatParams)
	return out
}

// MapRequestParams copies supported canonical params onto the wire params.
// Unsupported params are dropped when dropUnsupported is set and passed
// through verbatim otherwise.
func (t *OpenAICompatTransform) MapRequestParams(nonDefaultParams, wireParams map[string]any, model string, dropUnsupported bool) map[string]any {
	return mapParams(t, nonDefaultParams, wireParams, model, dropUnsupported)
}

// mapParams implements MapRequestParams against the receiver's
// SupportedParams so embedding transforms inherit the merge behavior while
// supplying their own parameter list.
func mapParams(t Transform, nonDefaultParams, wireParams map[string]any, model string, dropUnsupported bool) map[string]any {
	if wireParams == nil {
		wireParams = make(map[string]any, len(nonDefaultParams))
	}
	supported := make(map[string]bool)
	for _, p := range t.SupportedParams(model) {
		supported[p] = true
	}
	for k, v := range nonDefaultParams {
		if supported[k] || !dropUnsupported {
			wireParams[k] = v
		}
	}
	return wireParams
}

// NormalizeMessages is an identity passthrough for the generic dialect.
func (t *OpenAICompatTransform) NormalizeMessages(ctx context.Context, messages []canonical.Message, model string) ([]canonical.Message, error) {
	return messages, nil
}

// TransformResponse parses a raw OpenAI-compatible response body.
func (t *OpenAICompatTransform) TransformResponse(raw []byte, model string) (*canonical.ModelResponse, error) {
	if errField := gjson.GetBytes(raw, "error"); errField.Exists() {
		msg := errField.Get("message").String()
		if msg == "" {
			msg = errField.Raw
		}
		return nil, fmt.Errorf("%s api error: %s", t.name, msg)
	}

	var resp canonical.ModelResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", t.name, err)
	}
	if resp.Model == "" {
		resp.Model = model
	}
	return &resp, nil
}

// BuildRequestBody renders the wire body for an outbound chat-completion
// call: model and messages first, then each wire param patched in. The
// transport-layer flags are stripped; they never appear on the wire.
func BuildRequestBody(model string, messages []canonical.Message, wireParams map[string]any) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	for k, v := range wireParams {
		if k == ParamFakeStream || k == ParamJSONMode {
			continue
		}
		body, err = sjson.SetBytes(body, k, v)
		if err != nil {
			return nil, fmt.Errorf("failed to set param %q: %w", k, err)
		}
	}
	return body, nil
}

var _ Transform = (*OpenAICompatTransform)(nil)
