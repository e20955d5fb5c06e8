// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by both gateway/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - CallEvent:     Telemetry data for each completion call
//   - Config types:  TelemetryConfig, LoggerConfig, AlertConfig
package monitoring

import "time"

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// CallEvent captures one completion call through the gateway.
type CallEvent struct {
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model,omitempty"`
	CallType         string    `json:"call_type"`
	ClientIP         string    `json:"client_ip,omitempty"`
	RequestBodySize  int       `json:"request_body_size"`
	ResponseBodySize int       `json:"response_body_size"`
	StatusCode       int       `json:"status_code"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	Rejected         bool      `json:"rejected,omitempty"`  // Pre-call hook rejection
	Redacted         bool      `json:"redacted,omitempty"`  // Payload content redacted
	Truncated        bool      `json:"truncated,omitempty"` // Payload content truncated
	HookFailures     int       `json:"hook_failures,omitempty"`
	DatasetExports   int       `json:"dataset_exports,omitempty"`
	ForwardLatencyMs int64     `json:"forward_latency_ms"`
	TotalLatencyMs   int64     `json:"total_latency_ms"`
	// Usage from the provider response, estimated when absent
	PromptTokens     int  `json:"prompt_tokens,omitempty"`
	CompletionTokens int  `json:"completion_tokens,omitempty"`
	TotalTokens      int  `json:"total_tokens,omitempty"`
	UsageEstimated   bool `json:"usage_estimated,omitempty"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	LogPath        string `yaml:"log_path"`
	LogToStdout    bool   `yaml:"log_to_stdout"`
	EstimateTokens bool   `yaml:"estimate_tokens"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	HighLatencyThreshold time.Duration `yaml:"high_latency_threshold"`
}
