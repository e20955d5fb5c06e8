// Package hooks defines the lifecycle extension points a logging, monitoring
// or policy plugin may implement, and the dispatch machinery that invokes
// them.
//
// DESIGN: Callback is a capability contract, not a required interface: every
// method has a default no-op / pass-through implementation on BaseCallback.
// A concrete plugin embeds BaseCallback and overrides only the subset of
// hooks relevant to it. The Registry invokes whichever points a plugin
// provides, treating the inherited defaults as pass-through.
//
// Pipeline flow:
//
//	Request → [pre-call hooks] → transform → provider API
//	                                           ↓
//	Response ← [post-call hooks] ← transform ←─┘
//	              ↓
//	        [log fan-out, dataset export]  (failures isolated per plugin)
//
// Hooks that were conceptually asynchronous take a context.Context; there is
// exactly one method per lifecycle instant.
package hooks

import (
	"context"
	"time"

	"github.com/harborai/llm-gateway/internal/canonical"
)

// Callback is the full set of lifecycle extension points. Concrete plugins
// embed BaseCallback and override selectively.
type Callback interface {
	// Name returns the plugin identifier used in diagnostics.
	Name() string

	// =========================================================================
	// PRE-CALL - may modify or reject the request before it is sent
	// =========================================================================

	// PreCallHook runs before the provider call. Returning a non-nil map
	// replaces the request data; returning nil proceeds unmodified. A
	// *RejectionError aborts the call with a user-facing message.
	PreCallHook(ctx context.Context, data map[string]any, callType CallType) (map[string]any, error)

	// PreCallDeploymentHook runs after a deployment is selected but before
	// the request is sent to it. Same result contract as PreCallHook.
	PreCallDeploymentHook(ctx context.Context, data map[string]any, callType CallType) (map[string]any, error)

	// PreRoutingHook runs before the routing decision. A non-nil result
	// substitutes the model and/or messages used for routing.
	PreRoutingHook(ctx context.Context, model string, requestKwargs map[string]any, messages []canonical.Message) (*PreRoutingResult, error)

	// PreCallCheck may veto or adjust a single deployment's config.
	// Returning nil keeps the deployment unchanged.
	PreCallCheck(ctx context.Context, deployment Deployment) (Deployment, error)

	// =========================================================================
	// PROMPT MANAGEMENT
	// =========================================================================

	// GetChatCompletionPrompt may substitute the model, messages, and
	// parameter overrides from a prompt management tool. Default: identity.
	GetChatCompletionPrompt(ctx context.Context, model string, messages []canonical.Message, nonDefaultParams map[string]any, opts PromptOptions) (string, []canonical.Message, map[string]any, error)

	// =========================================================================
	// POST-CALL
	// =========================================================================

	// PostCallSuccessHook may transform the response before it is returned.
	// Returning nil keeps the response unchanged.
	PostCallSuccessHook(ctx context.Context, data map[string]any, response any) (any, error)

	// PostCallFailureHook observes a failed call. Fire-and-forget.
	PostCallFailureHook(ctx context.Context, requestData map[string]any, origErr error)

	// PostCallStreamingHook may rewrite the aggregated streamed response
	// text. Returning "" keeps it unchanged.
	PostCallStreamingHook(ctx context.Context, response string) (string, error)

	// PostCallStreamingIteratorHook wraps the chunk producer. The default
	// returns the stream unchanged, which trivially preserves ordering and
	// termination.
	PostCallStreamingIteratorHook(ctx context.Context, stream StreamIterator, requestData map[string]any) StreamIterator

	// =========================================================================
	// ROUTING
	// =========================================================================

	// FilterDeployments filters or reorders the healthy deployment list.
	// Default: unchanged.
	FilterDeployments(ctx context.Context, model string, healthy []Deployment, messages []canonical.Message, requestKwargs map[string]any) ([]Deployment, error)

	// =========================================================================
	// FALLBACK - fire-and-forget notifications, no return value consumed
	// =========================================================================

	LogModelGroupRateLimitError(ctx context.Context, origErr error, originalModelGroup string, requestKwargs map[string]any)
	LogSuccessFallbackEvent(ctx context.Context, originalModelGroup string, requestKwargs map[string]any, origErr error)
	LogFailureFallbackEvent(ctx context.Context, originalModelGroup string, requestKwargs map[string]any, origErr error)

	// =========================================================================
	// LOGGING - fire-and-forget; plugin failures never reach the caller
	// =========================================================================

	LogPreAPICall(ctx context.Context, model string, messages []canonical.Message, details *ModelCallDetails)
	LogPostAPICall(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time)
	LogStreamEvent(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time)
	LogSuccessEvent(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time)
	LogFailureEvent(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time)

	// RedactModelCallDetails returns the view of the call details this
	// plugin may log. A plugin with message logging turned off gets copies
	// with message and response content replaced by a placeholder; the
	// dispatch fan-out consults this before every logging hook.
	RedactModelCallDetails(details *ModelCallDetails) *ModelCallDetails

	// =========================================================================
	// DATASET EXPORT
	// =========================================================================

	// DatasetHook decides whether a logged item is exported to a dataset
	// sink. (item, nil) exports the possibly-modified item; (nil, nil)
	// explicitly skips it; ErrNotImplemented means the plugin does not
	// participate in dataset export at all.
	DatasetHook(ctx context.Context, item *DatasetItem, payload *StandardLogPayload) (*DatasetItem, error)

	// =========================================================================
	// MODERATION / LOG MASKING
	// =========================================================================

	// ModerationHook may reject call data on content grounds.
	ModerationHook(ctx context.Context, data map[string]any, callType CallType) error

	// LoggingHook masks the request/response pair before logging. Default:
	// identity.
	LoggingHook(ctx context.Context, details *ModelCallDetails, result any, callType CallType) (*ModelCallDetails, any, error)

	// =========================================================================
	// MCP TOOL CALLS - bracket an external tool invocation
	// =========================================================================

	PreMCPToolCallHook(ctx context.Context, details *ModelCallDetails, req *MCPPreCallRequest) (*MCPPreCallResult, error)
	DuringMCPToolCallHook(ctx context.Context, details *ModelCallDetails, req *MCPDuringCallRequest) (*MCPDuringCallResult, error)
	PostMCPToolCallHook(ctx context.Context, details *ModelCallDetails, result *MCPPostCallResult) (*MCPPostCallResult, error)

	// =========================================================================
	// ADAPTER TRANSLATION - external format ↔ canonical chat completion
	// =========================================================================

	TranslateCompletionInputParams(data map[string]any) (map[string]any, error)
	TranslateCompletionOutputParams(response *canonical.ModelResponse) (any, error)
	TranslateCompletionOutputParamsStreaming(stream StreamIterator) (StreamIterator, error)
}

// BaseCallback provides the default no-op / pass-through implementation of
// every hook. Plugins embed it and override the hooks they implement.
type BaseCallback struct {
	// TurnOffMessageLogging gates redaction: when true, RedactModelCallDetails
	// replaces message and response content in the logging payload.
	TurnOffMessageLogging bool
}

// NewBaseCallback creates a base callback with the given redaction setting.
func NewBaseCallback(turnOffMessageLogging bool) *BaseCallback {
	return &BaseCallback{TurnOffMessageLogging: turnOffMessageLogging}
}

// SetTurnOffMessageLogging flips the redaction gate after construction. The
// gateway uses it to apply the deployment-wide setting to plugins at
// registration time.
func (b *BaseCallback) SetTurnOffMessageLogging(on bool) {
	b.TurnOffMessageLogging = on
}

// Name returns the default plugin identifier.
func (b *BaseCallback) Name() string { return "base" }

func (b *BaseCallback) PreCallHook(ctx context.Context, data map[string]any, callType CallType) (map[string]any, error) {
	return nil, nil
}

func (b *BaseCallback) PreCallDeploymentHook(ctx context.Context, data map[string]any, callType CallType) (map[string]any, error) {
	return nil, nil
}

func (b *BaseCallback) PreRoutingHook(ctx context.Context, model string, requestKwargs map[string]any, messages []canonical.Message) (*PreRoutingResult, error) {
	return nil, nil
}

func (b *BaseCallback) PreCallCheck(ctx context.Context, deployment Deployment) (Deployment, error) {
	return nil, nil
}

// GetChatCompletionPrompt is an identity passthrough by default.
func (b *BaseCallback) GetChatCompletionPrompt(ctx context.Context, model string, messages []canonical.Message, nonDefaultParams map[string]any, opts PromptOptions) (string, []canonical.Message, map[string]any, error) {
	return model, messages, nonDefaultParams, nil
}

func (b *BaseCallback) PostCallSuccessHook(ctx context.Context, data map[string]any, response any) (any, error) {
	return nil, nil
}

func (b *BaseCallback) PostCallFailureHook(ctx context.Context, requestData map[string]any, origErr error) {
}

func (b *BaseCallback) PostCallStreamingHook(ctx context.Context, response string) (string, error) {
	return "", nil
}

func (b *BaseCallback) PostCallStreamingIteratorHook(ctx context.Context, stream StreamIterator, requestData map[string]any) StreamIterator {
	return stream
}

// FilterDeployments returns the healthy list unchanged by default.
func (b *BaseCallback) FilterDeployments(ctx context.Context, model string, healthy []Deployment, messages []canonical.Message, requestKwargs map[string]any) ([]Deployment, error) {
	return healthy, nil
}

func (b *BaseCallback) LogModelGroupRateLimitError(ctx context.Context, origErr error, originalModelGroup string, requestKwargs map[string]any) {
}

func (b *BaseCallback) LogSuccessFallbackEvent(ctx context.Context, originalModelGroup string, requestKwargs map[string]any, origErr error) {
}

func (b *BaseCallback) LogFailureFallbackEvent(ctx context.Context, originalModelGroup string, requestKwargs map[string]any, origErr error) {
}

func (b *BaseCallback) LogPreAPICall(ctx context.Context, model string, messages []canonical.Message, details *ModelCallDetails) {
}

func (b *BaseCallback) LogPostAPICall(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) {
}

func (b *BaseCallback) LogStreamEvent(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) {
}

func (b *BaseCallback) LogSuccessEvent(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) {
}

func (b *BaseCallback) LogFailureEvent(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) {
}

// DatasetHook signals "not implemented" by default, distinguishable from an
// explicit decision not to export (nil, nil).
func (b *BaseCallback) DatasetHook(ctx context.Context, item *DatasetItem, payload *StandardLogPayload) (*DatasetItem, error) {
	return nil, ErrNotImplemented
}

func (b *BaseCallback) ModerationHook(ctx context.Context, data map[string]any, callType CallType) error {
	return nil
}

// LoggingHook is an identity passthrough by default.
func (b *BaseCallback) LoggingHook(ctx context.Context, details *ModelCallDetails, result any, callType CallType) (*ModelCallDetails, any, error) {
	return details, result, nil
}

func (b *BaseCallback) PreMCPToolCallHook(ctx context.Context, details *ModelCallDetails, req *MCPPreCallRequest) (*MCPPreCallResult, error) {
	return nil, nil
}

func (b *BaseCallback) DuringMCPToolCallHook(ctx context.Context, details *ModelCallDetails, req *MCPDuringCallRequest) (*MCPDuringCallResult, error) {
	return nil, nil
}

func (b *BaseCallback) PostMCPToolCallHook(ctx context.Context, details *ModelCallDetails, result *MCPPostCallResult) (*MCPPostCallResult, error) {
	return nil, nil
}

func (b *BaseCallback) TranslateCompletionInputParams(data map[string]any) (map[string]any, error) {
	return nil, ErrNotImplemented
}

func (b *BaseCallback) TranslateCompletionOutputParams(response *canonical.ModelResponse) (any, error) {
	return nil, ErrNotImplemented
}

func (b *BaseCallback) TranslateCompletionOutputParamsStreaming(stream StreamIterator) (StreamIterator, error) {
	return nil, ErrNotImplemented
}

var _ Callback = (*BaseCallback)(nil)
