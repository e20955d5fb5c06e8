// Package gateway types - shared constants and request-scoped state.
//
// DESIGN: Types are defined here to avoid circular imports and provide clear
// contracts between the handler, the middleware chain, and the call pipeline.
package gateway

import (
	"time"

	"github.com/harborai/llm-gateway/internal/canonical"
	"github.com/harborai/llm-gateway/internal/transform"
)

// =============================================================================
// HTTP CONTRACT
// =============================================================================

// Request headers understood by the gateway.
const (
	HeaderRequestID = "X-Request-ID" // Correlation ID, generated when absent
	HeaderProvider  = "X-Provider"   // Vendor override, else derived from model
)

// Limits.
const (
	// MaxRequestBodySize bounds inbound request bodies (32 MB).
	MaxRequestBodySize = 32 << 20

	// MaxRateLimitBuckets bounds the per-IP rate limiter map.
	MaxRateLimitBuckets = 10_000
)

// Request-body keys consumed by the gateway itself and stripped before the
// remaining params are handed to the vendor transform.
const (
	keyModel    = "model"
	keyMessages = "messages"
	keyStream   = "stream"
	keyAPIBase  = "api_base"
	keyAPIKey   = "api_key"
)

// =============================================================================
// CALL CONTEXT - carries state through one chat-completion call
// =============================================================================

// callContext carries data through one chat-completion call. Created when the
// request body is parsed, threaded through hooks, transform, and logging.
type callContext struct {
	RequestID  string
	Provider   string
	Model      string // Model as sent to the vendor (provider prefix stripped)
	ModelGroup string // Model as received from the client
	Stream     bool
	FakeStream bool
	ReceivedAt time.Time

	Transform transform.Transform

	// Request data after the pre-call hook chain.
	RequestKwargs    map[string]any
	Messages         []canonical.Message
	NonDefaultParams map[string]any
	WireParams       map[string]any

	// Connection resolved for this call.
	APIBase string
	APIKey  string

	// Upstream forwarding results.
	ForwardLatency time.Duration
	UpstreamStatus int
}

// errorBody is the JSON error envelope returned to clients.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}
