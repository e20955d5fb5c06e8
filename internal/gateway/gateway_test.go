package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborai/llm-gateway/internal/canonical"
	"github.com/harborai/llm-gateway/internal/config"
	"github.com/harborai/llm-gateway/internal/hooks"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 18080
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second

	g, err := New(cfg)
	require.NoError(t, err)
	return g
}

const upstreamCompletion = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "llama-3.3-70b",
	"choices": [{"index":0,"message":{"role":"assistant","content":"hello there"},"finish_reason":"stop"}],
	"usage": {"prompt_tokens":4,"completion_tokens":2,"total_tokens":6},
	"service_tier": "performance"
}`

func postCompletion(t *testing.T, g *Gateway, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	g.handleChatCompletions(w, req)
	return w
}

func TestChatCompletions_Success(t *testing.T) {
	var upstreamBody map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&upstreamBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstreamCompletion))
	}))
	defer upstream.Close()

	g := newTestGateway(t)
	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"api_base": upstream.URL,
		"api_key":  "test-key",
	})

	require.Equal(t, http.StatusOK, w.Code)

	// Provider prefix is stripped before the vendor sees the model
	assert.Equal(t, "llama-3.3-70b", upstreamBody["model"])

	var resp canonical.ModelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "chatcmpl-1", resp.ID)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello there", resp.Choices[0].Message.Content)
	// Groq tier outside the enumeration normalizes to the default
	assert.Equal(t, "auto", resp.ServiceTier)
}

func TestChatCompletions_PreCallRejection(t *testing.T) {
	upstreamCalled := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled = true
	}))
	defer upstream.Close()

	g := newTestGateway(t)
	g.RegisterPlugin(&rejectingPlugin{})

	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"api_base": upstream.URL,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "request blocked by policy")
	assert.False(t, upstreamCalled, "rejected calls never reach the provider")
}

type rejectingPlugin struct{ hooks.BaseCallback }

func (p *rejectingPlugin) Name() string { return "rejector" }

func (p *rejectingPlugin) PreCallHook(ctx context.Context, data map[string]any, callType hooks.CallType) (map[string]any, error) {
	return nil, hooks.Reject("request blocked by policy")
}

func TestChatCompletions_UnknownProvider(t *testing.T) {
	g := newTestGateway(t)
	w := postCompletion(t, g, map[string]any{
		"model":    "unknownvendor/some-model",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown provider")
}

func TestChatCompletions_MissingModel(t *testing.T) {
	g := newTestGateway(t)
	w := postCompletion(t, g, map[string]any{
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "model is required")
}

func TestChatCompletions_ProviderErrorPassedThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer upstream.Close()

	g := newTestGateway(t)
	w := postCompletion(t, g, map[string]any{
		"model":    "openai/gpt-4o",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"api_base": upstream.URL,
		"api_key":  "k",
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limited")
}

func TestChatCompletions_DisabledProvider(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.Port = 18080
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Providers = map[string]config.ProviderConfig{
		"groq": {Enabled: false},
	}
	g, err := New(cfg)
	require.NoError(t, err)

	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "disabled")
}

func TestChatCompletions_EmulatedStream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		// The gateway always buffers upstream; stream never reaches the wire
		assert.NotContains(t, body, "stream")
		w.Write([]byte(upstreamCompletion))
	}))
	defer upstream.Close()

	g := newTestGateway(t)
	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"api_base": upstream.URL,
		"api_key":  "k",
		"stream":   true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))

	// Reassemble content from the SSE chunks
	var content string
	var finish string
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") || line == "data: [DONE]" {
			continue
		}
		var chunk canonical.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk))
		require.Len(t, chunk.Choices, 1)
		content += chunk.Choices[0].Delta.Content
		if chunk.Choices[0].FinishReason != "" {
			finish = chunk.Choices[0].FinishReason
		}
	}
	assert.Equal(t, "hello there", content)
	assert.Equal(t, "stop", finish)
}

func TestChatCompletions_ProviderHeaderOverride(t *testing.T) {
	g := newTestGateway(t)
	raw, _ := json.Marshal(map[string]any{"model": "gpt-4o"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(raw))
	req.Header.Set(HeaderProvider, "groq")

	call, err := g.parseCall(req, "req-1", raw)

	require.NoError(t, err)
	assert.Equal(t, "groq", call.Provider)
	// Header override keeps the model untouched
	assert.Equal(t, "gpt-4o", call.Model)
}

func TestParseCall_DefaultProviderIsOpenAI(t *testing.T) {
	g := newTestGateway(t)
	raw, _ := json.Marshal(map[string]any{"model": "gpt-4o"})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(raw))

	call, err := g.parseCall(req, "req-1", raw)

	require.NoError(t, err)
	assert.Equal(t, "openai", call.Provider)
	assert.Equal(t, "gpt-4o", call.Model)
	assert.Equal(t, "gpt-4o", call.ModelGroup)
}

func TestMessagesFromKwargs(t *testing.T) {
	msgs, err := messagesFromKwargs(map[string]any{
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role())

	_, err = messagesFromKwargs(map[string]any{})
	assert.ErrorContains(t, err, "messages is required")

	_, err = messagesFromKwargs(map[string]any{"messages": "not a list"})
	assert.ErrorContains(t, err, "must be an array")

	_, err = messagesFromKwargs(map[string]any{"messages": []any{"not an object"}})
	assert.ErrorContains(t, err, "not an object")
}

func TestChunkResponse_SplitsContentAndTerminates(t *testing.T) {
	long := strings.Repeat("a", streamChunkSize*2+10)
	resp := &canonical.ModelResponse{
		ID:    "c1",
		Model: "m",
		Choices: []canonical.Choice{{
			Message:      canonical.ChatMessage{Role: "assistant", Content: long},
			FinishReason: "stop",
		}},
	}

	chunks := chunkResponse(resp)

	// Three content chunks plus the terminal finish chunk
	require.Len(t, chunks, 4)
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Empty(t, chunks[1].Choices[0].Delta.Role)

	var content string
	for _, c := range chunks {
		content += c.Choices[0].Delta.Content
	}
	assert.Equal(t, long, content)
	assert.Equal(t, "stop", chunks[len(chunks)-1].Choices[0].FinishReason)
}

func TestChunkResponse_ToolCallsCarried(t *testing.T) {
	resp := &canonical.ModelResponse{
		Choices: []canonical.Choice{{
			Message: canonical.ChatMessage{
				Role: "assistant",
				ToolCalls: []canonical.ToolCall{
					{ID: "t1", Type: "function", Function: canonical.FunctionCall{Name: "json_tool_call", Arguments: "{}"}},
				},
			},
			FinishReason: "tool_calls",
		}},
	}

	chunks := chunkResponse(resp)

	require.Len(t, chunks, 2)
	require.Len(t, chunks[0].Choices[0].Delta.ToolCalls, 1)
	assert.Equal(t, "json_tool_call", chunks[0].Choices[0].Delta.ToolCalls[0].Function.Name)
	assert.Equal(t, "tool_calls", chunks[1].Choices[0].FinishReason)
}

func TestDatasetExport_EndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamCompletion))
	}))
	defer upstream.Close()

	cfg := &config.Config{}
	cfg.Server.Port = 18080
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Dataset.Enabled = true
	cfg.Dataset.Path = t.TempDir() + "/dataset.db"

	g, err := New(cfg)
	require.NoError(t, err)
	defer g.dataset.Close()
	g.RegisterPlugin(&exportingPlugin{})

	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"api_base": upstream.URL,
		"api_key":  "k",
	})
	require.Equal(t, http.StatusOK, w.Code)

	n, err := g.dataset.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

type exportingPlugin struct{ hooks.BaseCallback }

func (p *exportingPlugin) Name() string { return "exporter" }

func (p *exportingPlugin) DatasetHook(ctx context.Context, item *hooks.DatasetItem, payload *hooks.StandardLogPayload) (*hooks.DatasetItem, error) {
	return item, nil
}

type captureSinkPlugin struct {
	hooks.BaseCallback
	payload *hooks.StandardLogPayload
}

func (p *captureSinkPlugin) Name() string { return "capture" }

func (p *captureSinkPlugin) LogSuccessEvent(ctx context.Context, details *hooks.ModelCallDetails, response any, start, end time.Time) {
	p.payload = details.StandardLogPayload
}

func TestChatCompletions_MessageLoggingTurnedOff(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamCompletion))
	}))
	defer upstream.Close()

	cfg := &config.Config{}
	cfg.Server.Port = 18080
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Plugins.TurnOffMessageLogging = true
	cfg.Dataset.Enabled = true
	cfg.Dataset.Path = t.TempDir() + "/dataset.db"
	cfg.Monitoring.TelemetryEnabled = true
	cfg.Monitoring.TelemetryPath = t.TempDir() + "/telemetry.jsonl"

	g, err := New(cfg)
	require.NoError(t, err)
	defer g.dataset.Close()

	capture := &captureSinkPlugin{}
	g.RegisterPlugin(capture)
	g.RegisterPlugin(&exportingPlugin{})

	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "super secret prompt"}},
		"api_base": upstream.URL,
		"api_key":  "k",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The client still receives the real completion
	assert.Contains(t, w.Body.String(), "hello there")

	// No sink sees the prompt or the completion text
	require.NotNil(t, capture.payload)
	msgsJSON, err := json.Marshal(capture.payload.Messages)
	require.NoError(t, err)
	assert.NotContains(t, string(msgsJSON), "super secret prompt")
	assert.Contains(t, string(msgsJSON), hooks.RedactedPlaceholder)

	respJSON, err := json.Marshal(capture.payload.Response)
	require.NoError(t, err)
	assert.NotContains(t, string(respJSON), "hello there")
	assert.Contains(t, string(respJSON), hooks.RedactedPlaceholder)

	items, err := g.dataset.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	storedJSON, err := json.Marshal(items[0].Payload)
	require.NoError(t, err)
	assert.NotContains(t, string(storedJSON), "super secret prompt")
	assert.NotContains(t, string(storedJSON), "hello there")

	// The telemetry event records that the payload was redacted
	telemetry, err := os.ReadFile(cfg.Monitoring.TelemetryPath)
	require.NoError(t, err)
	assert.Contains(t, string(telemetry), `"redacted":true`)
	assert.NotContains(t, string(telemetry), "super secret prompt")
}

func TestChatCompletions_PerPluginMessageLoggingOff(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamCompletion))
	}))
	defer upstream.Close()

	g := newTestGateway(t)
	redacting := &captureSinkPlugin{BaseCallback: *hooks.NewBaseCallback(true)}
	plain := &captureSinkPlugin{}
	g.RegisterPlugin(redacting)
	g.RegisterPlugin(plain)

	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "super secret prompt"}},
		"api_base": upstream.URL,
		"api_key":  "k",
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, redacting.payload)
	require.NotNil(t, plain.payload)

	redactedJSON, err := json.Marshal(redacting.payload.Messages)
	require.NoError(t, err)
	assert.NotContains(t, string(redactedJSON), "super secret prompt")

	plainJSON, err := json.Marshal(plain.payload.Messages)
	require.NoError(t, err)
	assert.Contains(t, string(plainJSON), "super secret prompt")
}

type streamRewritePlugin struct{ hooks.BaseCallback }

func (p *streamRewritePlugin) Name() string { return "rewriter" }

func (p *streamRewritePlugin) PostCallStreamingHook(ctx context.Context, response string) (string, error) {
	return strings.ToUpper(response), nil
}

func TestChatCompletions_StreamRewriteHook(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamCompletion))
	}))
	defer upstream.Close()

	g := newTestGateway(t)
	g.RegisterPlugin(&streamRewritePlugin{})

	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"api_base": upstream.URL,
		"api_key":  "k",
		"stream":   true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var content string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") || line == "data: [DONE]" {
			continue
		}
		var chunk canonical.StreamChunk
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk))
		require.Len(t, chunk.Choices, 1)
		content += chunk.Choices[0].Delta.Content
	}
	assert.Equal(t, "HELLO THERE", content)
}

type vetoPlugin struct{ hooks.BaseCallback }

func (p *vetoPlugin) Name() string { return "veto" }

func (p *vetoPlugin) PreCallCheck(ctx context.Context, deployment hooks.Deployment) (hooks.Deployment, error) {
	return nil, hooks.Reject("deployment offline")
}

func TestChatCompletions_PreCallCheckVeto(t *testing.T) {
	upstreamCalled := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalled = true
	}))
	defer upstream.Close()

	g := newTestGateway(t)
	g.RegisterPlugin(&vetoPlugin{})

	w := postCompletion(t, g, map[string]any{
		"model":    "groq/llama-3.3-70b",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
		"api_base": upstream.URL,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "deployment offline")
	assert.False(t, upstreamCalled, "vetoed deployments never receive the request")
}
