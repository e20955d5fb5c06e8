// Package transform maps the gateway's canonical chat-completion
// representation to and from each vendor's wire shape.
//
// DESIGN: Transforms are stateless and thread-safe; all vendor knowledge
// (base URL, secret names, parameter support, response quirks) lives on the
// per-vendor value, never on shared package state. Vendors that speak an
// OpenAI-compatible dialect embed OpenAICompatTransform and override only
// their deviations.
//
// FLOW:
//  1. Gateway resolves the transform from the registry by provider name
//  2. ResolveConnection yields the effective base URL and key
//  3. MapRequestParams + NormalizeMessages shape the outbound request
//  4. BuildRequestBody renders the wire body
//  5. TransformResponse parses the inbound response into canonical form
//
// To add a vendor: implement Transform and register it in Registry.
package transform

import (
	"context"

	"github.com/harborai/llm-gateway/internal/canonical"
)

// Provider identifies an upstream vendor family.
type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderGroq    Provider = "groq"
	ProviderBedrock Provider = "bedrock"
)

// Request-shaping flags set by MapRequestParams and consumed by the
// transport layer. They are ordinary optional params on the wire-param map
// but are stripped before the body is rendered.
const (
	// ParamFakeStream asks the transport to emulate streaming by chunking a
	// buffered non-streamed response.
	ParamFakeStream = "fake_stream"
	// ParamJSONMode records that a JSON-schema response_format was rewritten
	// into a forced tool call.
	ParamJSONMode = "json_mode"
)

// JSONToolCallName is the synthesized function name used when a JSON-schema
// response_format is expressed as a forced tool call.
const JSONToolCallName = "json_tool_call"

// Transform is the per-vendor request/response mapping component.
type Transform interface {
	// Name returns the transform identifier (e.g. "groq").
	Name() string

	// Provider returns the vendor family.
	Provider() Provider

	// ResolveConnection returns the effective base URL and API key.
	// Precedence: explicit argument > environment secret > vendor default
	// URL. There is no default for the key ("" if unresolved).
	ResolveConnection(apiBase, apiKey string) (string, string)

	// SupportedParams lists the canonical parameters the vendor accepts for
	// the given model.
	SupportedParams(model string) []string

	// MapRequestParams merges the canonical parameter set into the vendor
	// wire params, applying provider-specific adjustments. When
	// dropUnsupported is set, parameters the vendor does not accept are
	// silently dropped.
	MapRequestParams(nonDefaultParams, wireParams map[string]any, model string, dropUnsupported bool) map[string]any

	// NormalizeMessages adjusts messages to what the vendor accepts. An
	// individual message may be replaced; other messages are not mutated.
	NormalizeMessages(ctx context.Context, messages []canonical.Message, model string) ([]canonical.Message, error)

	// TransformResponse parses a raw vendor response body into the canonical
	// response shape.
	TransformResponse(raw []byte, model string) (*canonical.ModelResponse, error)
}
