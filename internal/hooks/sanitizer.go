// Package hooks - sanitizer.go bounds and redacts logging payloads before
// they leave the process to an external sink.
//
// DESIGN: Two independent guards:
//   - Truncation: some sinks cap payload size (~1MB). Bulk content fields
//     are rendered to text and cut at MaxLogFieldLength.
//   - Redaction: when a plugin is constructed with message logging turned
//     off, message and response content is replaced by a fixed placeholder.
//
// Both must leave caller-visible state intact: truncation replaces a field
// with a fresh string, redaction mutates shallow copies only. The raw
// content may still be returned to the client elsewhere in the response
// path.
package hooks

import (
	"encoding/json"
	"fmt"

	"github.com/harborai/llm-gateway/internal/canonical"
)

// MaxLogFieldLength is the cap applied to each bulk content field.
const MaxLogFieldLength = 10_000

// TruncationSuffix marks content that was cut to fit a sink's size limit.
const TruncationSuffix = "...truncated by llm-gateway, this logger does not support large content"

// RedactedPlaceholder replaces message and response content when message
// logging is turned off.
const RedactedPlaceholder = "redacted-by-llm-gateway"

// TruncateStandardLogPayload truncates the bulk content fields (error
// string, messages, response) of a logging payload in place. Values that
// render at or under MaxLogFieldLength are left untouched. Reports whether
// any field was cut.
func TruncateStandardLogPayload(p *StandardLogPayload) bool {
	if p == nil {
		return false
	}
	truncated := false
	if len(p.ErrorStr) > MaxLogFieldLength {
		p.ErrorStr = truncateText(p.ErrorStr, MaxLogFieldLength)
		truncated = true
	}
	if p.Messages != nil {
		if s, cut := truncateValue(p.Messages, MaxLogFieldLength); cut {
			p.Messages = s
			truncated = true
		}
	}
	if p.Response != nil {
		if s, cut := truncateValue(p.Response, MaxLogFieldLength); cut {
			p.Response = s
			truncated = true
		}
	}
	return truncated
}

// truncateValue renders v to text and truncates it. The bool reports whether
// the field should be replaced. Rendering first catches arbitrarily shaped
// values (clients send malformed message lists) and keeps the original
// objects unmodified: only the rendered copy is cut.
func truncateValue(v any, maxLength int) (string, bool) {
	s := stringifyForLog(v)
	if len(s) <= maxLength {
		return "", false
	}
	return truncateText(s, maxLength), true
}

// truncateText cuts text at maxLength and appends the fixed suffix marker.
func truncateText(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return text[:maxLength] + TruncationSuffix
}

// stringifyForLog renders a value to text losslessly for length purposes.
func stringifyForLog(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	if data, err := json.Marshal(v); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", v)
}

// RedactModelCallDetails returns a redacted view of the call details when
// message logging is turned off, and the input itself (no copy) otherwise.
//
// Redaction covers every content-carrying field a sink could read: the
// details' message list, the messages inside the request kwargs, and the
// Messages/Response fields of the nested StandardLogPayload.
//
// Only shallow copies are altered: the top-level details, the kwargs map,
// and the nested payload. The caller's originals are never mutated.
func (b *BaseCallback) RedactModelCallDetails(details *ModelCallDetails) *ModelCallDetails {
	if !b.TurnOffMessageLogging || details == nil {
		return details
	}

	detailsCopy := *details
	if detailsCopy.Messages != nil {
		detailsCopy.Messages = []canonical.Message{
			{"role": "user", "content": RedactedPlaceholder},
		}
	}
	if kwargs := detailsCopy.RequestKwargs; kwargs != nil {
		if _, ok := kwargs["messages"]; ok {
			kwargsCopy := make(map[string]any, len(kwargs))
			for k, v := range kwargs {
				kwargsCopy[k] = v
			}
			kwargsCopy["messages"] = RedactedPlaceholder
			detailsCopy.RequestKwargs = kwargsCopy
		}
	}

	payload := details.StandardLogPayload
	if payload == nil {
		return &detailsCopy
	}

	payloadCopy := *payload
	if payloadCopy.Messages != nil {
		payloadCopy.Messages = []map[string]any{
			{"role": "assistant", "content": RedactedPlaceholder},
		}
	}
	if payloadCopy.Response != nil {
		payloadCopy.Response = redactedResponse()
	}

	detailsCopy.StandardLogPayload = &payloadCopy
	return &detailsCopy
}

// redactedResponse builds the minimal response structure carrying only the
// placeholder string.
func redactedResponse() map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": RedactedPlaceholder,
				},
			},
		},
	}
}
