// Package hooks - dispatch.go invokes registered plugins at each lifecycle
// instant.
//
// DESIGN: Two dispatch disciplines:
//   - Primary-path hooks (pre-call, moderation) run sequentially; a
//     rejection aborts the call and is surfaced to the gateway core.
//   - Logging hooks fan out with per-plugin failure isolation: one
//     misbehaving observability plugin must never abort or corrupt the
//     request/response path, nor block dispatch to subsequent plugins.
//
// Execution order across plugins is registration order.
package hooks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harborai/llm-gateway/internal/canonical"
)

// Registry holds registered callbacks and dispatches lifecycle events to
// them.
type Registry struct {
	mu        sync.RWMutex
	callbacks []Callback
	onFailure FailureObserver
}

// FailureObserver is notified whenever an isolated plugin hook fails. The
// failure has already been logged; observers feed metrics and alerting.
type FailureObserver func(plugin, hook string, err error)

// SetFailureObserver installs the failure observer. Only one is supported.
func (r *Registry) SetFailureObserver(fn FailureObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailure = fn
}

// notifyFailure reports an isolated hook failure to the observer, if any.
func (r *Registry) notifyFailure(plugin, hook string, err error) {
	r.mu.RLock()
	fn := r.onFailure
	r.mu.RUnlock()
	if fn != nil {
		fn(plugin, hook, err)
	}
}

// NewRegistry creates a registry with the given callbacks.
func NewRegistry(callbacks ...Callback) *Registry {
	return &Registry{callbacks: callbacks}
}

// Register appends a callback. Later registrations run later.
func (r *Registry) Register(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = append(r.callbacks, cb)
}

// Callbacks returns a snapshot of the registered callbacks.
func (r *Registry) Callbacks() []Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Callback, len(r.callbacks))
	copy(out, r.callbacks)
	return out
}

// =============================================================================
// PRIMARY PATH - sequential, rejection aborts
// =============================================================================

// RunPreCallHooks runs every plugin's PreCallHook in order. Each hook may
// replace the request data; a returned error (typically *RejectionError)
// aborts the chain.
func (r *Registry) RunPreCallHooks(ctx context.Context, data map[string]any, callType CallType) (map[string]any, error) {
	for _, cb := range r.Callbacks() {
		modified, err := cb.PreCallHook(ctx, data, callType)
		if err != nil {
			return nil, err
		}
		if modified != nil {
			data = modified
		}
	}
	return data, nil
}

// RunPreCallDeploymentHooks runs the post-routing request modification chain.
func (r *Registry) RunPreCallDeploymentHooks(ctx context.Context, data map[string]any, callType CallType) (map[string]any, error) {
	for _, cb := range r.Callbacks() {
		modified, err := cb.PreCallDeploymentHook(ctx, data, callType)
		if err != nil {
			return nil, err
		}
		if modified != nil {
			data = modified
		}
	}
	return data, nil
}

// RunModerationHooks rejects the call if any plugin's moderation hook does.
func (r *Registry) RunModerationHooks(ctx context.Context, data map[string]any, callType CallType) error {
	for _, cb := range r.Callbacks() {
		if err := cb.ModerationHook(ctx, data, callType); err != nil {
			return err
		}
	}
	return nil
}

// GetChatCompletionPrompt chains prompt management hooks: each plugin sees
// the output of the previous one.
func (r *Registry) GetChatCompletionPrompt(ctx context.Context, model string, messages []canonical.Message, nonDefaultParams map[string]any, opts PromptOptions) (string, []canonical.Message, map[string]any, error) {
	var err error
	for _, cb := range r.Callbacks() {
		model, messages, nonDefaultParams, err = cb.GetChatCompletionPrompt(ctx, model, messages, nonDefaultParams, opts)
		if err != nil {
			return model, messages, nonDefaultParams, err
		}
	}
	return model, messages, nonDefaultParams, nil
}

// PostCallSuccess lets plugins transform the response in order. A nil result
// from a plugin keeps the current response.
func (r *Registry) PostCallSuccess(ctx context.Context, data map[string]any, response any) (any, error) {
	for _, cb := range r.Callbacks() {
		modified, err := cb.PostCallSuccessHook(ctx, data, response)
		if err != nil {
			return response, err
		}
		if modified != nil {
			response = modified
		}
	}
	return response, nil
}

// WrapStream applies each plugin's streaming-iterator hook, innermost first.
func (r *Registry) WrapStream(ctx context.Context, stream StreamIterator, requestData map[string]any) StreamIterator {
	for _, cb := range r.Callbacks() {
		stream = cb.PostCallStreamingIteratorHook(ctx, stream, requestData)
	}
	return stream
}

// PostCallStreaming chains the aggregated-stream rewrite hooks. An empty
// result from a plugin keeps the current text.
func (r *Registry) PostCallStreaming(ctx context.Context, response string) (string, error) {
	for _, cb := range r.Callbacks() {
		out, err := cb.PostCallStreamingHook(ctx, response)
		if err != nil {
			return response, err
		}
		if out != "" {
			response = out
		}
	}
	return response, nil
}

// =============================================================================
// ROUTING
// =============================================================================

// RunPreCallChecks runs each plugin's deployment check in order. A non-nil
// result replaces the deployment seen by later plugins; an error (typically
// *RejectionError) vetoes the deployment and aborts the call.
func (r *Registry) RunPreCallChecks(ctx context.Context, deployment Deployment) (Deployment, error) {
	for _, cb := range r.Callbacks() {
		adjusted, err := cb.PreCallCheck(ctx, deployment)
		if err != nil {
			return nil, err
		}
		if adjusted != nil {
			deployment = adjusted
		}
	}
	return deployment, nil
}

// RunPreRoutingHooks lets plugins substitute the model or messages before the
// routing decision. Later plugins see earlier substitutions; nil results keep
// the current values.
func (r *Registry) RunPreRoutingHooks(ctx context.Context, model string, requestKwargs map[string]any, messages []canonical.Message) (string, []canonical.Message, error) {
	for _, cb := range r.Callbacks() {
		res, err := cb.PreRoutingHook(ctx, model, requestKwargs, messages)
		if err != nil {
			return model, messages, err
		}
		if res == nil {
			continue
		}
		if res.Model != "" {
			model = res.Model
		}
		if res.Messages != nil {
			messages = res.Messages
		}
	}
	return model, messages, nil
}

// FilterDeployments runs the deployment filter chain. A failing plugin is
// logged and skipped; routing continues with the last good list.
func (r *Registry) FilterDeployments(ctx context.Context, model string, healthy []Deployment, messages []canonical.Message, requestKwargs map[string]any) []Deployment {
	for _, cb := range r.Callbacks() {
		filtered, err := func() (out []Deployment, err error) {
			defer recoverHookPanic(cb.Name(), "filter_deployments", &err)
			return cb.FilterDeployments(ctx, model, healthy, messages, requestKwargs)
		}()
		if err != nil {
			log.Error().Err(err).Str("plugin", cb.Name()).Msg("filter_deployments hook failed")
			r.notifyFailure(cb.Name(), "filter_deployments", err)
			continue
		}
		if filtered != nil {
			healthy = filtered
		}
	}
	return healthy
}

// =============================================================================
// LOGGING FAN-OUT - per-plugin failure isolation
// =============================================================================

// each invokes fn once per plugin, recovering panics and logging errors so
// one plugin cannot block dispatch to the rest. Returns the number of
// plugins whose hook failed.
func (r *Registry) each(hook string, fn func(cb Callback) error) int {
	failures := 0
	for _, cb := range r.Callbacks() {
		err := func() (err error) {
			defer recoverHookPanic(cb.Name(), hook, &err)
			return fn(cb)
		}()
		if err != nil {
			log.Error().Err(err).Str("plugin", cb.Name()).Str("hook", hook).Msg("logging hook failed")
			r.notifyFailure(cb.Name(), hook, err)
			failures++
		}
	}
	return failures
}

// redactedView applies the plugin's own redaction to the details and the
// accompanying response object. Redaction is per plugin: a plugin with
// message logging turned off sees placeholder content while its neighbors
// still receive the real payload.
func redactedView(cb Callback, details *ModelCallDetails, response any) (*ModelCallDetails, any) {
	d := cb.RedactModelCallDetails(details)
	if d != details && response != nil {
		response = redactedResponse()
	}
	return d, response
}

// LogPreAPICall fans out the pre-call logging event.
func (r *Registry) LogPreAPICall(ctx context.Context, model string, messages []canonical.Message, details *ModelCallDetails) {
	r.each("log_pre_api_call", func(cb Callback) error {
		d := cb.RedactModelCallDetails(details)
		msgs := messages
		if d != details {
			msgs = nil
		}
		cb.LogPreAPICall(ctx, model, msgs, d)
		return nil
	})
}

// LogPostAPICall fans out the post-call logging event.
func (r *Registry) LogPostAPICall(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) {
	r.each("log_post_api_call", func(cb Callback) error {
		d, resp := redactedView(cb, details, response)
		cb.LogPostAPICall(ctx, d, resp, start, end)
		return nil
	})
}

// LogStream fans out a streaming chunk event.
func (r *Registry) LogStream(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) {
	r.each("log_stream_event", func(cb Callback) error {
		d, resp := redactedView(cb, details, response)
		cb.LogStreamEvent(ctx, d, resp, start, end)
		return nil
	})
}

// LogSuccess fans out the success event. Returns the isolated failure count.
func (r *Registry) LogSuccess(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) int {
	return r.each("log_success_event", func(cb Callback) error {
		d, resp := redactedView(cb, details, response)
		cb.LogSuccessEvent(ctx, d, resp, start, end)
		return nil
	})
}

// LogFailure fans out the failure event. Returns the isolated failure count.
func (r *Registry) LogFailure(ctx context.Context, details *ModelCallDetails, response any, start, end time.Time) int {
	return r.each("log_failure_event", func(cb Callback) error {
		d, resp := redactedView(cb, details, response)
		cb.LogFailureEvent(ctx, d, resp, start, end)
		return nil
	})
}

// NotifyFailureFallback fans out a failed-fallback notification.
func (r *Registry) NotifyFailureFallback(ctx context.Context, originalModelGroup string, requestKwargs map[string]any, origErr error) {
	r.each("log_failure_fallback_event", func(cb Callback) error {
		cb.LogFailureFallbackEvent(ctx, originalModelGroup, requestKwargs, origErr)
		return nil
	})
}

// NotifySuccessFallback fans out a successful-fallback notification.
func (r *Registry) NotifySuccessFallback(ctx context.Context, originalModelGroup string, requestKwargs map[string]any, origErr error) {
	r.each("log_success_fallback_event", func(cb Callback) error {
		cb.LogSuccessFallbackEvent(ctx, originalModelGroup, requestKwargs, origErr)
		return nil
	})
}

// =============================================================================
// DATASET EXPORT
// =============================================================================

// RunDatasetHooks collects the items approved for export. Plugins whose hook
// returns ErrNotImplemented do not participate; a nil item with nil error is
// an explicit decision not to export. Other errors are isolated and logged.
func (r *Registry) RunDatasetHooks(ctx context.Context, item *DatasetItem, payload *StandardLogPayload) []*DatasetItem {
	var exported []*DatasetItem
	for _, cb := range r.Callbacks() {
		out, err := func() (out *DatasetItem, err error) {
			defer recoverHookPanic(cb.Name(), "dataset_hook", &err)
			return cb.DatasetHook(ctx, item, payload)
		}()
		switch {
		case errors.Is(err, ErrNotImplemented):
			continue
		case err != nil:
			log.Error().Err(err).Str("plugin", cb.Name()).Msg("dataset hook failed")
			r.notifyFailure(cb.Name(), "dataset_hook", err)
		case out != nil:
			exported = append(exported, out)
		}
	}
	return exported
}

// recoverHookPanic converts a panic inside a plugin hook into an error so
// dispatch can continue with the next plugin.
func recoverHookPanic(plugin, hook string, err *error) {
	if rec := recover(); rec != nil {
		*err = &HookPanicError{Plugin: plugin, Hook: hook, Value: rec}
	}
}

// HookPanicError wraps a panic raised inside a plugin hook.
type HookPanicError struct {
	Plugin string
	Hook   string
	Value  any
}

func (e *HookPanicError) Error() string {
	return "panic in " + e.Plugin + "." + e.Hook
}
