// Package monitoring - telemetry.go records events to JSONL files.
//
// DESIGN: Tracker appends one JSON object per line, immediately after each
// event, for real-time tailing. When the provider response carried no usage
// block, token counts can be estimated with the tiktoken tokenizer so cost
// analytics stay usable.
package monitoring

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// Tracker handles telemetry event recording to file and stdout.
type Tracker struct {
	config     TelemetryConfig
	logPath    string
	eventCount int
	encoder    *tiktoken.Tiktoken
	mu         sync.Mutex
}

// NewTracker creates a new telemetry tracker.
func NewTracker(cfg TelemetryConfig) (*Tracker, error) {
	t := &Tracker{config: cfg}

	if !cfg.Enabled {
		return t, nil
	}

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0750); err != nil {
			return nil, err
		}
		t.logPath = cfg.LogPath
		if _, err := os.Stat(cfg.LogPath); os.IsNotExist(err) {
			if f, err := os.Create(cfg.LogPath); err == nil {
				f.Close()
			}
		}
	}

	if cfg.EstimateTokens {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn().Err(err).Msg("telemetry: tokenizer unavailable, estimation disabled")
		} else {
			t.encoder = enc
		}
	}

	return t, nil
}

// appendJSONL appends a single JSON object as a line to the file.
func appendJSONL(path string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// RecordCall records a completion call event.
func (t *Tracker) RecordCall(event *CallEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.config.LogToStdout {
		reqID := event.RequestID
		if len(reqID) > 8 {
			reqID = reqID[:8]
		}
		log.Info().
			Str("request_id", reqID).
			Str("provider", event.Provider).
			Str("model", event.Model).
			Int("total_tokens", event.TotalTokens).
			Bool("success", event.Success).
			Msg("telemetry")
	}

	if t.logPath != "" {
		if err := appendJSONL(t.logPath, event); err != nil {
			log.Error().Err(err).Str("path", t.logPath).Msg("telemetry: failed to write call event")
		} else {
			t.eventCount++
		}
	}
}

// EstimateTokens returns the tokenizer-based token count for text, or 0 when
// estimation is disabled.
func (t *Tracker) EstimateTokens(text string) int {
	if t.encoder == nil || text == "" {
		return 0
	}
	return len(t.encoder.Encode(text, nil, nil))
}

// FillUsage populates missing token counts on the event from the rendered
// prompt and completion text. Counts already present are kept.
func (t *Tracker) FillUsage(event *CallEvent, promptText, completionText string) {
	if t.encoder == nil || event.TotalTokens > 0 {
		return
	}
	event.PromptTokens = t.EstimateTokens(promptText)
	event.CompletionTokens = t.EstimateTokens(completionText)
	event.TotalTokens = event.PromptTokens + event.CompletionTokens
	event.UsageEstimated = event.TotalTokens > 0
}

// Close logs a session summary.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.logPath != "" && t.eventCount > 0 {
		log.Info().
			Str("path", t.logPath).
			Int("events", t.eventCount).
			Msg("telemetry: session complete")
	}

	return nil
}
