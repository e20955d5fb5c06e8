// Package canonical defines the gateway's vendor-agnostic request/response
// representation.
//
// DESIGN: These types are shared by hooks/ (logging payloads reference
// messages and responses) and transform/ (vendor mapping consumes and
// produces them). Defined here ONCE to avoid duplication and circular
// imports.
package canonical

import "encoding/json"

// Message is a single chat message in the canonical shape.
//
// Messages are a generic mapping rather than a fixed struct: clients send
// arbitrary vendor extensions alongside role/content, and those keys must
// round-trip through the gateway untouched.
type Message map[string]any

// Role returns the message role ("user", "assistant", "system", "tool").
func (m Message) Role() string {
	if s, ok := m["role"].(string); ok {
		return s
	}
	return ""
}

// Content returns the raw content value (string or content-block list).
func (m Message) Content() any {
	return m["content"]
}

// Clone returns a shallow copy of the message.
func (m Message) Clone() Message {
	out := make(Message, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ModelResponse is the canonical chat-completion response.
type ModelResponse struct {
	ID                string   `json:"id,omitempty"`
	Object            string   `json:"object,omitempty"`
	Created           int64    `json:"created,omitempty"`
	Model             string   `json:"model,omitempty"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage,omitempty"`
	ServiceTier       string   `json:"service_tier,omitempty"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
}

// Choice is a single completion choice.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatMessage is the typed assistant message inside a response choice.
type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and serialized arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage is the token accounting block of a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk is a single incremental piece of a streamed completion.
type StreamChunk struct {
	ID      string         `json:"id,omitempty"`
	Object  string         `json:"object,omitempty"`
	Created int64          `json:"created,omitempty"`
	Model   string         `json:"model,omitempty"`
	Choices []StreamChoice `json:"choices"`
}

// StreamChoice is one choice delta within a stream chunk.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        ChatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ParseMessages decodes a raw messages array into canonical messages.
func ParseMessages(raw json.RawMessage) ([]Message, error) {
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
