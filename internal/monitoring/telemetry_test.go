package monitoring

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordCallWritesJSONL(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "telemetry.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: true, LogPath: logPath})
	require.NoError(t, err)
	defer tracker.Close()

	tracker.RecordCall(&CallEvent{
		RequestID:   "req-1",
		Timestamp:   time.Now(),
		Provider:    "groq",
		Model:       "llama-3.3-70b",
		CallType:    "completion",
		StatusCode:  200,
		Success:     true,
		TotalTokens: 42,
	})
	tracker.RecordCall(&CallEvent{RequestID: "req-2", Rejected: true, StatusCode: 400})

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()

	var events []CallEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev CallEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, 42, events[0].TotalTokens)
	assert.True(t, events[1].Rejected)
}

func TestTracker_DisabledWritesNothing(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "telemetry.jsonl")
	tracker, err := NewTracker(TelemetryConfig{Enabled: false, LogPath: logPath})
	require.NoError(t, err)

	tracker.RecordCall(&CallEvent{RequestID: "req-1"})

	_, statErr := os.Stat(logPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTracker_FillUsageNoOpWithoutEstimator(t *testing.T) {
	tracker, err := NewTracker(TelemetryConfig{Enabled: true})
	require.NoError(t, err)

	event := &CallEvent{}
	tracker.FillUsage(event, "some prompt", "some completion")

	assert.Zero(t, event.TotalTokens)
	assert.False(t, event.UsageEstimated)
	assert.Zero(t, tracker.EstimateTokens("anything"))
}

func TestTracker_FillUsageKeepsExistingCounts(t *testing.T) {
	tracker, err := NewTracker(TelemetryConfig{Enabled: true})
	require.NoError(t, err)

	event := &CallEvent{TotalTokens: 10, PromptTokens: 7, CompletionTokens: 3}
	tracker.FillUsage(event, "prompt", "completion")

	assert.Equal(t, 10, event.TotalTokens)
	assert.Equal(t, 7, event.PromptTokens)
}

func TestMetricsCollector_Stats(t *testing.T) {
	mc := NewMetricsCollector()

	mc.RecordRequest(true, 10*time.Millisecond)
	mc.RecordRequest(false, 20*time.Millisecond)
	mc.RecordRejection()
	mc.RecordHookFailure()
	mc.RecordDatasetExport(3)

	stats := mc.Stats()
	assert.EqualValues(t, 2, stats["requests"])
	assert.EqualValues(t, 1, stats["successes"])
	assert.EqualValues(t, 1, stats["rejections"])
	assert.EqualValues(t, 1, stats["hook_failures"])
	assert.EqualValues(t, 3, stats["dataset_exports"])
}
