// Package gateway implements the HTTP proxy core for LLM chat completions.
//
// DESIGN: One call pipeline, vendor differences isolated in transform/:
//
//	Client → middleware → pre-call hooks → transform → provider API
//	                                                      ↓
//	Client ← post-call hooks ← transform ←────────────────┘
//	            ↓
//	      log fan-out, dataset export, telemetry
//
// Hooks may modify or reject the request; logging plugins are isolated so a
// failing observability plugin never breaks the request path.
//
// FLOW for /v1/chat/completions:
//  1. Parse body, derive provider from header or "provider/model" prefix
//  2. Pre-call + moderation hook chain (rejection → 4xx, no provider call)
//  3. Prompt management chain, then vendor param/message mapping
//  4. Forward to provider (Bearer key, or SigV4 for Bedrock)
//  5. Parse response to canonical form, post-call hook chain
//  6. Build log payload, truncate, fan out to logging hooks
//  7. Dataset export + telemetry
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/harborai/llm-gateway/internal/canonical"
	"github.com/harborai/llm-gateway/internal/config"
	"github.com/harborai/llm-gateway/internal/dataset"
	"github.com/harborai/llm-gateway/internal/hooks"
	"github.com/harborai/llm-gateway/internal/monitoring"
	"github.com/harborai/llm-gateway/internal/transform"
)

// Gateway is the HTTP proxy server.
type Gateway struct {
	config     *config.Config
	transforms *transform.Registry
	plugins    *hooks.Registry
	signer     *transform.BedrockSigner
	redactor   *hooks.BaseCallback

	metrics   *monitoring.MetricsCollector
	alerts    *monitoring.AlertManager
	lifecycle *monitoring.LifecycleLogger
	tracker   *monitoring.Tracker
	dataset   *dataset.Store

	rateLimiter *rateLimiter
	client      *http.Client
	httpServer  *http.Server
}

// New creates a gateway from configuration. The dataset store is opened only
// when export is enabled.
func New(cfg *config.Config) (*Gateway, error) {
	logger := monitoring.New(monitoring.LoggerConfig{
		Level:  cfg.Monitoring.LogLevel,
		Format: cfg.Monitoring.LogFormat,
		Output: cfg.Monitoring.LogOutput,
	})

	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled:        cfg.Monitoring.TelemetryEnabled,
		LogPath:        cfg.Monitoring.TelemetryPath,
		LogToStdout:    cfg.Monitoring.LogToStdout,
		EstimateTokens: cfg.Monitoring.EstimateTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	g := &Gateway{
		config:      cfg,
		transforms:  transform.NewRegistry(),
		plugins:     hooks.NewRegistry(),
		signer:      transform.NewBedrockSigner(),
		redactor:    hooks.NewBaseCallback(cfg.Plugins.TurnOffMessageLogging),
		metrics:     monitoring.NewMetricsCollector(),
		alerts:      monitoring.NewAlertManager(logger.WithComponent("alerts"), monitoring.AlertConfig{}),
		lifecycle:   monitoring.NewLifecycleLogger(logger.WithComponent("lifecycle")),
		tracker:     tracker,
		rateLimiter: newRateLimiter(cfg.Server.RatePerSecond),
		client:      &http.Client{Timeout: 5 * time.Minute},
	}

	// Bedrock speaks the OpenAI-compatible dialect on its runtime endpoint;
	// only the connection resolution (SigV4, region URL) differs.
	g.transforms.Register(transform.NewOpenAICompatTransform("bedrock", transform.ProviderBedrock, ""))

	// Isolated plugin failures feed metrics and alerting.
	g.plugins.SetFailureObserver(func(plugin, hook string, err error) {
		g.metrics.RecordHookFailure()
		g.alerts.FlagHookFailure("", plugin, hook, err)
	})

	if cfg.Dataset.Enabled {
		store, err := dataset.Open(cfg.Dataset.Path)
		if err != nil {
			return nil, err
		}
		g.dataset = store
	}

	return g, nil
}

// RegisterPlugin adds a callback plugin. Plugins run in registration order.
// When message logging is turned off deployment-wide, the setting is pushed
// down to the plugin so its logging hooks receive redacted payloads.
func (g *Gateway) RegisterPlugin(cb hooks.Callback) {
	if g.config.Plugins.TurnOffMessageLogging {
		if s, ok := cb.(interface{ SetTurnOffMessageLogging(bool) }); ok {
			s.SetTurnOffMessageLogging(true)
		}
	}
	g.plugins.Register(cb)
}

// Plugins exposes the hook registry, for plugins that need to inspect peers.
func (g *Gateway) Plugins() *hooks.Registry {
	return g.plugins
}

// Start begins serving. Blocks until Shutdown or a listener error.
func (g *Gateway) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", g.handleChatCompletions)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/stats", g.handleStats)

	handler := g.panicRecovery(g.rateLimit(g.loggingMiddleware(g.security(mux))))

	g.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", g.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  g.config.Server.ReadTimeout,
		WriteTimeout: g.config.Server.WriteTimeout,
	}

	log.Info().Int("port", g.config.Server.Port).Msg("gateway listening")
	return g.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and flushes the sinks.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var firstErr error
	if g.httpServer != nil {
		firstErr = g.httpServer.Shutdown(ctx)
	}
	if g.dataset != nil {
		if err := g.dataset.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := g.tracker.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// =============================================================================
// CHAT COMPLETIONS
// =============================================================================

func (g *Gateway) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	start := time.Now()
	requestID := monitoring.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		g.writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	call, err := g.parseCall(r, requestID, body)
	if err != nil {
		g.alerts.FlagInvalidRequest(requestID, err.Error(), nil)
		g.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event := &monitoring.CallEvent{
		RequestID:       requestID,
		Timestamp:       start,
		Provider:        call.Provider,
		Model:           call.ModelGroup,
		CallType:        string(hooks.CallTypeCompletion),
		ClientIP:        g.getClientIP(r),
		RequestBodySize: len(body),
	}

	g.lifecycle.LogPreCall(&monitoring.PreCallInfo{
		RequestID: requestID,
		Model:     call.ModelGroup,
		CallType:  string(hooks.CallTypeCompletion),
		Plugins:   len(g.plugins.Callbacks()),
		BodySize:  len(body),
	})

	// Pre-call hook chain. A rejection aborts before any provider call.
	if err := g.runPreCall(ctx, call); err != nil {
		var rej *hooks.RejectionError
		if errors.As(err, &rej) {
			g.metrics.RecordRejection()
			g.lifecycle.LogRejection(requestID, rej.Message)
			event.Rejected = true
			event.StatusCode = rej.StatusCode
			event.Error = rej.Message
			g.finishCall(ctx, call, event, nil, err, start)
			g.writeError(w, rej.Message, rej.StatusCode)
			return
		}
		event.StatusCode = http.StatusInternalServerError
		event.Error = err.Error()
		g.finishCall(ctx, call, event, nil, err, start)
		g.writeError(w, "pre-call hook failed", http.StatusInternalServerError)
		return
	}

	if err := g.shapeRequest(ctx, call); err != nil {
		var rej *hooks.RejectionError
		if errors.As(err, &rej) {
			g.metrics.RecordRejection()
			g.lifecycle.LogRejection(requestID, rej.Message)
			event.Rejected = true
			event.StatusCode = rej.StatusCode
			event.Error = rej.Message
			g.finishCall(ctx, call, event, nil, err, start)
			g.writeError(w, rej.Message, rej.StatusCode)
			return
		}
		g.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	details := g.callDetails(call)
	g.plugins.LogPreAPICall(ctx, call.Model, call.Messages, details)

	raw, status, err := g.forward(ctx, call)
	event.ForwardLatencyMs = call.ForwardLatency.Milliseconds()
	event.StatusCode = status
	if err != nil {
		g.alerts.FlagUpstreamTimeout(requestID, call.Provider, call.APIBase, g.client.Timeout)
		event.Error = err.Error()
		g.finishCall(ctx, call, event, nil, err, start)
		g.writeError(w, "upstream request failed", http.StatusBadGateway)
		return
	}
	if status >= 400 {
		g.alerts.FlagProviderError(requestID, call.Provider, status, string(raw))
		event.Error = fmt.Sprintf("provider returned %d", status)
		g.finishCall(ctx, call, event, nil, errors.New(event.Error), start)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(raw)
		return
	}

	resp, err := call.Transform.TransformResponse(raw, call.Model)
	if err != nil {
		event.Error = err.Error()
		g.finishCall(ctx, call, event, nil, err, start)
		g.writeError(w, err.Error(), http.StatusBadGateway)
		return
	}

	final, err := g.plugins.PostCallSuccess(ctx, call.RequestKwargs, resp)
	if err != nil {
		event.Error = err.Error()
		g.finishCall(ctx, call, event, nil, err, start)
		g.writeError(w, "post-call hook failed", http.StatusInternalServerError)
		return
	}

	event.Success = true
	event.ResponseBodySize = len(raw)
	if resp.Usage != nil {
		event.PromptTokens = resp.Usage.PromptTokens
		event.CompletionTokens = resp.Usage.CompletionTokens
		event.TotalTokens = resp.Usage.TotalTokens
	}

	g.finishCall(ctx, call, event, resp, nil, start)

	if call.Stream {
		g.writeEmulatedStream(ctx, w, call, resp)
		return
	}
	g.writeJSON(w, http.StatusOK, final)
}

// parseCall decodes the request body and resolves the vendor transform.
func (g *Gateway) parseCall(r *http.Request, requestID string, body []byte) (*callContext, error) {
	var kwargs map[string]any
	if err := json.Unmarshal(body, &kwargs); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	modelGroup, _ := kwargs[keyModel].(string)
	if modelGroup == "" {
		return nil, fmt.Errorf("model is required")
	}

	// Provider from header, else "provider/model" prefix, else openai.
	provider := r.Header.Get(HeaderProvider)
	model := modelGroup
	if provider == "" {
		if idx := strings.Index(modelGroup, "/"); idx > 0 {
			provider = modelGroup[:idx]
			model = modelGroup[idx+1:]
		} else {
			provider = "openai"
		}
	}
	if pc, ok := g.config.Providers[provider]; ok && !pc.Enabled {
		return nil, fmt.Errorf("provider %q is disabled", provider)
	}

	t := g.transforms.Get(provider)
	if t == nil {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	stream, _ := kwargs[keyStream].(bool)

	return &callContext{
		RequestID:     requestID,
		Provider:      provider,
		Model:         model,
		ModelGroup:    modelGroup,
		Stream:        stream,
		ReceivedAt:    time.Now(),
		Transform:     t,
		RequestKwargs: kwargs,
	}, nil
}

// runPreCall runs the sequential pre-call chains: request modification, then
// moderation. Either may reject.
func (g *Gateway) runPreCall(ctx context.Context, call *callContext) error {
	kwargs, err := g.plugins.RunPreCallHooks(ctx, call.RequestKwargs, hooks.CallTypeCompletion)
	if err != nil {
		return err
	}
	call.RequestKwargs = kwargs

	if err := g.plugins.RunModerationHooks(ctx, call.RequestKwargs, hooks.CallTypeCompletion); err != nil {
		return err
	}

	kwargs, err = g.plugins.RunPreCallDeploymentHooks(ctx, call.RequestKwargs, hooks.CallTypeCompletion)
	if err != nil {
		return err
	}
	call.RequestKwargs = kwargs
	return nil
}

// shapeRequest runs the prompt management chain and the vendor transform over
// the post-hook request data.
func (g *Gateway) shapeRequest(ctx context.Context, call *callContext) error {
	messages, err := messagesFromKwargs(call.RequestKwargs)
	if err != nil {
		return fmt.Errorf("invalid messages: %w", err)
	}

	nonDefault := make(map[string]any, len(call.RequestKwargs))
	for k, v := range call.RequestKwargs {
		switch k {
		case keyModel, keyMessages, keyAPIBase, keyAPIKey,
			hooks.MetadataField, hooks.LegacyMetadataField:
			continue
		}
		nonDefault[k] = v
	}

	model, messages, err := g.plugins.RunPreRoutingHooks(ctx, call.Model, call.RequestKwargs, messages)
	if err != nil {
		return fmt.Errorf("pre-routing hook failed: %w", err)
	}

	model, messages, nonDefault, err = g.plugins.GetChatCompletionPrompt(
		ctx, model, messages, nonDefault, hooks.PromptOptions{})
	if err != nil {
		return fmt.Errorf("prompt hook failed: %w", err)
	}

	wireParams := call.Transform.MapRequestParams(nonDefault, nil, model, true)
	messages, err = call.Transform.NormalizeMessages(ctx, messages, model)
	if err != nil {
		return err
	}

	call.Model = model
	call.Messages = messages
	call.NonDefaultParams = nonDefault
	call.WireParams = wireParams
	call.FakeStream, _ = wireParams[transform.ParamFakeStream].(bool)

	apiBase, _ := call.RequestKwargs[keyAPIBase].(string)
	if apiBase == "" {
		apiBase = g.config.Providers[call.Provider].APIBase
	}
	apiKey, _ := call.RequestKwargs[keyAPIKey].(string)
	call.APIBase, call.APIKey = call.Transform.ResolveConnection(apiBase, apiKey)

	// Deployment check chain: plugins may veto the resolved deployment or
	// adjust its model and base URL before the request goes out.
	adjusted, err := g.plugins.RunPreCallChecks(ctx, hooks.Deployment{
		keyModel:   call.Model,
		keyAPIBase: call.APIBase,
		"provider": call.Provider,
	})
	if err != nil {
		return err
	}
	if m, _ := adjusted[keyModel].(string); m != "" {
		call.Model = m
	}
	if base, _ := adjusted[keyAPIBase].(string); base != "" {
		call.APIBase = base
	}
	return nil
}

// forward sends the shaped request to the provider and returns the raw
// response body. Streaming from the vendor is always disabled here: streamed
// client responses are emulated from the buffered result, which keeps one
// response path regardless of whether the vendor supports streaming for the
// requested features.
func (g *Gateway) forward(ctx context.Context, call *callContext) ([]byte, int, error) {
	wireParams := call.WireParams
	if call.Stream {
		wireParams = make(map[string]any, len(call.WireParams))
		for k, v := range call.WireParams {
			wireParams[k] = v
		}
		delete(wireParams, keyStream)
		delete(wireParams, "stream_options")
	}

	body, err := transform.BuildRequestBody(call.Model, call.Messages, wireParams)
	if err != nil {
		return nil, 0, err
	}

	targetURL := call.APIBase
	if call.Transform.Provider() == transform.ProviderBedrock && targetURL == "" {
		targetURL = g.signer.ResolveEndpoint("/openai/v1")
	}
	targetURL = strings.TrimRight(targetURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	if call.Transform.Provider() == transform.ProviderBedrock {
		if err := g.signer.SignRequest(ctx, req, body); err != nil {
			return nil, 0, err
		}
	} else if call.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+call.APIKey)
	}

	g.lifecycle.LogOutbound(&monitoring.OutboundInfo{
		RequestID: call.RequestID,
		Provider:  call.Provider,
		TargetURL: targetURL,
		BodySize:  len(body),
	})

	forwardStart := time.Now()
	resp, err := g.client.Do(req)
	call.ForwardLatency = time.Since(forwardStart)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	call.UpstreamStatus = resp.StatusCode
	return raw, resp.StatusCode, nil
}

// =============================================================================
// STREAMING EMULATION
// =============================================================================

// streamChunkSize is how much content each emulated SSE chunk carries.
const streamChunkSize = 120

// writeEmulatedStream chunks a buffered response into SSE events. Plugins may
// rewrite the aggregated text before chunking and wrap the chunk iterator;
// chunk order and single-termination are preserved by the iterator contract.
func (g *Gateway) writeEmulatedStream(ctx context.Context, w http.ResponseWriter, call *callContext, resp *canonical.ModelResponse) {
	if text := responseText(resp); text != "" {
		rewritten, err := g.plugins.PostCallStreaming(ctx, text)
		if err != nil {
			log.Error().Err(err).Str("request_id", call.RequestID).Msg("post-call streaming hook failed")
		} else if rewritten != text {
			// Swap the content on a copy: the buffered response was already
			// handed to the logging fan-out.
			clone := *resp
			clone.Choices = append([]canonical.Choice(nil), resp.Choices...)
			clone.Choices[0].Message.Content = rewritten
			resp = &clone
		}
	}

	chunks := chunkResponse(resp)
	stream := g.plugins.WrapStream(ctx, hooks.NewSliceStream(chunks...), call.RequestKwargs)
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	details := g.callDetails(call)
	start := time.Now()
	for {
		chunk, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error().Err(err).Str("request_id", call.RequestID).Msg("stream iterator failed")
			break
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
		g.plugins.LogStream(ctx, details, chunk, start, time.Now())
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// chunkResponse splits a buffered completion into incremental stream chunks.
// The final chunk carries the finish reason and an empty delta.
func chunkResponse(resp *canonical.ModelResponse) []*canonical.StreamChunk {
	var content, finishReason string
	role := "assistant"
	var toolCalls []canonical.ToolCall
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = resp.Choices[0].FinishReason
		toolCalls = resp.Choices[0].Message.ToolCalls
		if resp.Choices[0].Message.Role != "" {
			role = resp.Choices[0].Message.Role
		}
	}

	var chunks []*canonical.StreamChunk
	newChunk := func(delta canonical.ChatMessage, finish string) *canonical.StreamChunk {
		return &canonical.StreamChunk{
			ID:      resp.ID,
			Object:  "chat.completion.chunk",
			Created: resp.Created,
			Model:   resp.Model,
			Choices: []canonical.StreamChoice{{Delta: delta, FinishReason: finish}},
		}
	}

	for i := 0; i < len(content); i += streamChunkSize {
		end := i + streamChunkSize
		if end > len(content) {
			end = len(content)
		}
		delta := canonical.ChatMessage{Content: content[i:end]}
		if i == 0 {
			delta.Role = role
		}
		chunks = append(chunks, newChunk(delta, ""))
	}
	if len(toolCalls) > 0 {
		chunks = append(chunks, newChunk(canonical.ChatMessage{Role: role, ToolCalls: toolCalls}, ""))
	}
	if finishReason == "" {
		finishReason = "stop"
	}
	chunks = append(chunks, newChunk(canonical.ChatMessage{}, finishReason))
	return chunks
}

// =============================================================================
// LOGGING, DATASET EXPORT, TELEMETRY
// =============================================================================

// callDetails builds the hook-facing view of the call.
func (g *Gateway) callDetails(call *callContext) *hooks.ModelCallDetails {
	return &hooks.ModelCallDetails{
		Model:         call.Model,
		Messages:      call.Messages,
		CallType:      hooks.CallTypeCompletion,
		RequestKwargs: call.RequestKwargs,
	}
}

// finishCall builds the sanitized log payload (redact, then truncate), fans
// out to logging hooks, runs dataset export, and records telemetry. Called on
// every terminal path.
func (g *Gateway) finishCall(ctx context.Context, call *callContext, event *monitoring.CallEvent, resp *canonical.ModelResponse, callErr error, start time.Time) {
	end := time.Now()
	payload := g.buildLogPayload(call, event, resp, callErr, start, end)

	details := g.callDetails(call)
	details.StandardLogPayload = payload

	// Deployment-wide redaction happens before any sink sees the payload.
	// Per-plugin redaction is applied again inside the dispatch fan-out.
	if redacted := g.redactor.RedactModelCallDetails(details); redacted != details {
		details = redacted
		payload = details.StandardLogPayload
		event.Redacted = true
	}
	event.Truncated = hooks.TruncateStandardLogPayload(payload)

	if callErr != nil {
		event.HookFailures = g.plugins.LogFailure(ctx, details, nil, start, end)
		for _, cb := range g.plugins.Callbacks() {
			cb.PostCallFailureHook(ctx, call.RequestKwargs, callErr)
		}
	} else {
		var logResp any
		if resp != nil && !event.Redacted {
			logResp = resp
		}
		event.HookFailures = g.plugins.LogSuccess(ctx, details, logResp, start, end)
		g.exportDataset(ctx, call, payload, event)
	}

	g.lifecycle.LogPostCall(&monitoring.PostCallInfo{
		RequestID:  call.RequestID,
		StatusCode: event.StatusCode,
		Latency:    end.Sub(start),
	})
	g.alerts.FlagHighLatency(call.RequestID, end.Sub(start), call.Provider, "/v1/chat/completions")

	event.TotalLatencyMs = end.Sub(start).Milliseconds()
	if event.TotalTokens == 0 && resp != nil {
		g.tracker.FillUsage(event, renderMessagesText(call.Messages), responseText(resp))
	}
	g.tracker.RecordCall(event)
}

// buildLogPayload assembles the canonical logging payload for this call.
func (g *Gateway) buildLogPayload(call *callContext, event *monitoring.CallEvent, resp *canonical.ModelResponse, callErr error, start, end time.Time) *hooks.StandardLogPayload {
	status := "success"
	errStr := ""
	if callErr != nil {
		status = "failure"
		errStr = callErr.Error()
	}

	var metadata map[string]any
	if field := hooks.SelectMetadataField(call.RequestKwargs); field != "" {
		metadata, _ = call.RequestKwargs[field].(map[string]any)
	}

	payload := &hooks.StandardLogPayload{
		ID:         call.RequestID,
		CallType:   hooks.CallTypeCompletion,
		Status:     status,
		Model:      call.Model,
		ModelGroup: call.ModelGroup,
		APIBase:    call.APIBase,
		ErrorStr:   errStr,
		StartTime:  start,
		EndTime:    end,
		Metadata:   metadata,
	}
	if len(call.Messages) > 0 {
		payload.Messages = call.Messages
	}
	if resp != nil {
		payload.Response = resp
		if resp.Usage != nil {
			payload.PromptTokens = resp.Usage.PromptTokens
			payload.CompletionTokens = resp.Usage.CompletionTokens
			payload.TotalTokens = resp.Usage.TotalTokens
		}
	}
	return payload
}

// exportDataset runs the dataset hook chain and persists approved items.
func (g *Gateway) exportDataset(ctx context.Context, call *callContext, payload *hooks.StandardLogPayload, event *monitoring.CallEvent) {
	if g.dataset == nil {
		return
	}

	item := &hooks.DatasetItem{
		ID: uuid.NewString(),
		Fields: map[string]any{
			"model":    call.Model,
			"provider": call.Provider,
		},
	}
	exported := g.plugins.RunDatasetHooks(ctx, item, payload)
	for _, out := range exported {
		if err := g.dataset.Append(ctx, out, payload); err != nil {
			log.Error().Err(err).Str("request_id", call.RequestID).Msg("dataset export failed")
			continue
		}
		event.DatasetExports++
	}
	if event.DatasetExports > 0 {
		g.metrics.RecordDatasetExport(event.DatasetExports)
	}
}

// =============================================================================
// AUXILIARY HANDLERS AND HELPERS
// =============================================================================

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, g.metrics.Stats())
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func (g *Gateway) writeError(w http.ResponseWriter, message string, status int) {
	g.writeJSON(w, status, errorBody{Error: errorDetail{
		Message: message,
		Type:    "gateway_error",
		Code:    status,
	}})
}

// messagesFromKwargs pulls the canonical message list out of the request data.
func messagesFromKwargs(kwargs map[string]any) ([]canonical.Message, error) {
	rawMsgs, ok := kwargs[keyMessages]
	if !ok {
		return nil, fmt.Errorf("messages is required")
	}
	list, ok := rawMsgs.([]any)
	if !ok {
		return nil, fmt.Errorf("messages must be an array")
	}
	messages := make([]canonical.Message, 0, len(list))
	for i, m := range list {
		obj, ok := m.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("message %d is not an object", i)
		}
		messages = append(messages, canonical.Message(obj))
	}
	return messages, nil
}

// renderMessagesText flattens message contents for token estimation.
func renderMessagesText(messages []canonical.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		if s, ok := m.Content().(string); ok {
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// responseText returns the first choice's content for token estimation.
func responseText(resp *canonical.ModelResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
