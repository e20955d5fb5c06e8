package hooks

import (
	"time"

	"github.com/rs/zerolog/log"
)

// LogCallbackFunc is a user-supplied function invoked for a completed call.
type LogCallbackFunc func(details *ModelCallDetails, response any, start, end time.Time) error

// InputCallbackFunc is a user-supplied function invoked before a call.
type InputCallbackFunc func(details *ModelCallDetails) error

// LogEvent tags the call details as a post-call event and invokes fn.
//
// Any failure inside fn, a returned error or a panic, is reported through
// the local diagnostic log and never propagated: logging failures are never
// fatal to the primary request/response flow.
func (b *BaseCallback) LogEvent(details *ModelCallDetails, response any, start, end time.Time, fn LogCallbackFunc) {
	if details == nil || fn == nil {
		return
	}
	details.LogEventType = EventPostAPICall

	err := func() (err error) {
		defer recoverHookPanic(b.Name(), "log_event", &err)
		return fn(details, response, start, end)
	}()
	if err != nil {
		log.Error().Err(err).Msg("custom logger callback failed")
	}
}

// LogInputEvent stamps the model and messages onto the call details, tags it
// as a pre-call event, and invokes fn with the same failure isolation as
// LogEvent.
func (b *BaseCallback) LogInputEvent(model string, messages []any, details *ModelCallDetails, fn InputCallbackFunc) {
	if details == nil || fn == nil {
		return
	}
	details.Model = model
	details.LogEventType = EventPreAPICall
	if details.RequestKwargs == nil {
		details.RequestKwargs = map[string]any{}
	}
	details.RequestKwargs["model"] = model
	details.RequestKwargs["messages"] = messages

	err := func() (err error) {
		defer recoverHookPanic(b.Name(), "log_input_event", &err)
		return fn(details)
	}()
	if err != nil {
		log.Error().Err(err).Msg("custom logger input callback failed")
	}
}
