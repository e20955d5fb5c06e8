// Package monitoring - lifecycle.go logs the hook lifecycle of each call.
//
// DESIGN: Structured DEBUG logging at the well-defined lifecycle instants:
//   - LogPreCall:    Request entering the pre-call hook chain
//   - LogOutbound:   Request forwarded to the provider
//   - LogPostCall:   Response after the post-call hooks
//   - LogRejection:  Pre-call hook rejected the request
//   - LogFallback:   Fallback notification dispatched
package monitoring

import (
	"time"
)

// LifecycleLogger logs hook lifecycle events for one gateway.
type LifecycleLogger struct {
	logger *Logger
}

// NewLifecycleLogger creates a lifecycle logger.
func NewLifecycleLogger(logger *Logger) *LifecycleLogger {
	return &LifecycleLogger{logger: logger}
}

// PreCallInfo describes a request entering the pre-call chain.
type PreCallInfo struct {
	RequestID string
	Model     string
	CallType  string
	Plugins   int
	BodySize  int
}

// LogPreCall logs a request entering the pre-call hook chain.
func (ll *LifecycleLogger) LogPreCall(info *PreCallInfo) {
	ll.logger.Debug().
		Str("request_id", info.RequestID).
		Str("model", info.Model).
		Str("call_type", info.CallType).
		Int("plugins", info.Plugins).
		Int("body_size", info.BodySize).
		Msg("pre_call")
}

// OutboundInfo describes the request forwarded to the provider.
type OutboundInfo struct {
	RequestID string
	Provider  string
	TargetURL string
	BodySize  int
}

// LogOutbound logs the outbound provider request.
func (ll *LifecycleLogger) LogOutbound(info *OutboundInfo) {
	ll.logger.Debug().
		Str("request_id", info.RequestID).
		Str("provider", info.Provider).
		Int("body_size", info.BodySize).
		Msg("outbound")
}

// PostCallInfo describes the response after post-call hooks.
type PostCallInfo struct {
	RequestID  string
	StatusCode int
	Latency    time.Duration
}

// LogPostCall logs a completed call.
func (ll *LifecycleLogger) LogPostCall(info *PostCallInfo) {
	ll.logger.Debug().
		Str("request_id", info.RequestID).
		Int("status", info.StatusCode).
		Dur("latency", info.Latency).
		Msg("post_call")
}

// LogRejection logs a pre-call hook rejection at INFO: rejections are a
// policy decision, not an error.
func (ll *LifecycleLogger) LogRejection(requestID, message string) {
	ll.logger.Info().
		Str("request_id", requestID).
		Str("reason", message).
		Msg("rejected")
}

// LogFallback logs a fallback notification.
func (ll *LifecycleLogger) LogFallback(requestID, originalModelGroup string, success bool) {
	ll.logger.Info().
		Str("request_id", requestID).
		Str("model_group", originalModelGroup).
		Bool("success", success).
		Msg("fallback")
}
