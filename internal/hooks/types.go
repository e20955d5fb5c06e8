// Package hooks - types.go defines the data model shared by the callback
// contract, the sanitizer, and the dispatch registry.
package hooks

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harborai/llm-gateway/internal/canonical"
)

// CallType identifies what kind of call a hook is observing.
type CallType string

const (
	CallTypeCompletion         CallType = "completion"
	CallTypeTextCompletion     CallType = "text_completion"
	CallTypeEmbedding          CallType = "embeddings"
	CallTypeImageGeneration    CallType = "image_generation"
	CallTypeModeration         CallType = "moderation"
	CallTypeAudioTranscription CallType = "audio_transcription"
	CallTypePassThrough        CallType = "pass_through_endpoint"
	CallTypeRerank             CallType = "rerank"
	CallTypeMCPCall            CallType = "mcp_call"
)

// Log event types stamped onto call details by the dispatch helpers.
const (
	EventPreAPICall  = "pre_api_call"
	EventPostAPICall = "post_api_call"
)

// Metadata field names read from request kwargs. The newer field wins when
// both are present; this precedence is part of the external contract and
// must stay stable across versions.
const (
	MetadataField       = "gateway_metadata"
	LegacyMetadataField = "metadata"
)

// SelectMetadataField returns the metadata key to read from the request
// kwargs, preferring the newer field name over the deprecated one.
func SelectMetadataField(requestKwargs map[string]any) string {
	if requestKwargs == nil {
		return ""
	}
	if _, ok := requestKwargs[MetadataField]; ok {
		return MetadataField
	}
	return LegacyMetadataField
}

// ErrNotImplemented is the sentinel returned by default hook implementations
// that have no meaningful pass-through (dataset export, adapter translation).
// Callers detect it with errors.Is and treat the plugin as not participating,
// which is distinct from a plugin explicitly declining (nil result, nil error).
var ErrNotImplemented = errors.New("hook not implemented")

// RejectionError is returned by a pre-call hook to abort the call before it
// reaches the provider. Message is safe to surface to the end user; the
// gateway core translates it into a client-facing failure.
type RejectionError struct {
	Message    string
	StatusCode int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("request rejected by hook: %s", e.Message)
}

// Reject builds a RejectionError with the given user-facing message.
func Reject(message string) *RejectionError {
	return &RejectionError{Message: message, StatusCode: http.StatusBadRequest}
}

// Deployment is a candidate provider deployment considered by the router.
// Kept as a generic mapping: deployment configs carry provider-specific keys
// the contract does not interpret.
type Deployment map[string]any

// StandardLogPayload is the canonical logging payload constructed once per
// request/response cycle and handed to logging sinks after sanitization.
//
// Messages, Response and ErrorStr are the bulk content fields: they are the
// only fields subject to truncation and redaction. Everything else passes
// through to the sink unchanged.
type StandardLogPayload struct {
	ID               string         `json:"id"`
	CallType         CallType       `json:"call_type"`
	Status           string         `json:"status"`
	Model            string         `json:"model"`
	ModelGroup       string         `json:"model_group,omitempty"`
	APIBase          string         `json:"api_base,omitempty"`
	Messages         any            `json:"messages,omitempty"`
	Response         any            `json:"response,omitempty"`
	ErrorStr         string         `json:"error_str,omitempty"`
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	PromptTokens     int            `json:"prompt_tokens,omitempty"`
	CompletionTokens int            `json:"completion_tokens,omitempty"`
	TotalTokens      int            `json:"total_tokens,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// ModelCallDetails carries everything the logging hooks see about one call.
type ModelCallDetails struct {
	Model              string
	Messages           []canonical.Message
	LogEventType       string
	CallType           CallType
	RequestKwargs      map[string]any
	StandardLogPayload *StandardLogPayload
}

// PromptOptions are the optional prompt-template identifiers handed to the
// prompt management hook.
type PromptOptions struct {
	PromptID        string
	PromptVariables map[string]any
	PromptLabel     string
	PromptVersion   int
	Tools           []map[string]any
	DynamicParams   map[string]string
}

// PreRoutingResult lets a hook substitute the model or messages before the
// routing decision is made. Nil fields keep the original values.
type PreRoutingResult struct {
	Model    string
	Messages []canonical.Message
}

// DatasetItem is a single record a dataset hook may approve for export.
type DatasetItem struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// MCP tool-call hook request/result objects. Pre validates or rewrites
// arguments, during monitors long-running execution, post inspects the
// logged result.

type MCPPreCallRequest struct {
	ToolName   string
	ServerName string
	Arguments  map[string]any
	Metadata   map[string]any
}

type MCPPreCallResult struct {
	// Arguments, when non-nil, replace the original tool arguments.
	Arguments    map[string]any
	Reject       bool
	RejectReason string
}

type MCPDuringCallRequest struct {
	ToolName  string
	StartedAt time.Time
	Elapsed   time.Duration
}

type MCPDuringCallResult struct {
	Cancel bool
	Reason string
}

type MCPPostCallResult struct {
	Result  any
	Payload *StandardLogPayload
}
