package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/config"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/metrics"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/relay"
	"github.com/mahoosuc-solutions/remotemotel-sub000/internal/store"
)

// HTTPServer provides the media gateway route plus HTTP API endpoints
// for monitoring and call history
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	manager *relay.Manager
	calls   store.CallStore
	gateway *Gateway
	metrics *metrics.Metrics

	startTime time.Time
	mu        sync.RWMutex
}

// NewHTTPServer creates the HTTP server with all routes registered
func NewHTTPServer(logger *slog.Logger, appConfig *config.Config,
	manager *relay.Manager, calls store.CallStore, gateway *Gateway, m *metrics.Metrics) *HTTPServer {

	if logger == nil {
		logger = slog.Default()
	}

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		manager:   manager,
		calls:     calls,
		gateway:   gateway,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", appConfig.Server.Address, appConfig.Server.Port),
		Handler: mux,
		// No blanket timeouts: /media connections live as long as the call.
		IdleTimeout: 60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Media-stream WebSocket entry point (no metrics wrapper: the
	// connection lives for the whole call)
	mux.HandleFunc("/media", h.gateway.HandleMedia)

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Call monitoring endpoints
	mux.HandleFunc("/calls", h.withMetrics("/calls", h.handleCalls))
	mux.HandleFunc("/calls/", h.withMetrics("/calls/{sid}", h.handleCallDetail))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: 200}
		handler(ww, r)

		if h.metrics != nil {
			duration := time.Since(startTime).Seconds()
			h.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "voice-concierge-relay",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"relay_manager": map[string]interface{}{
				"status":       "running",
				"active_calls": h.manager.ActiveCount(),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleCalls implements the /calls endpoint: live calls plus recent
// history when a store is configured
func (h *HTTPServer) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := h.manager.Snapshot()

	response := map[string]interface{}{
		"active_calls": len(active),
		"timestamp":    time.Now().UTC(),
		"calls":        active,
	}

	if h.calls != nil {
		history, err := h.calls.ListRecentCalls(r.Context(), 50)
		if err != nil {
			h.logger.Warn("Failed to list call history", slog.String("error", err.Error()))
		} else {
			response["recent"] = history
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCallDetail implements the /calls/{stream_sid} endpoint. Live
// relays answer first; finished calls fall back to the store
func (h *HTTPServer) handleCallDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	streamSID := strings.TrimPrefix(r.URL.Path, "/calls/")
	if streamSID == "" {
		http.Error(w, "Stream SID required", http.StatusBadRequest)
		return
	}

	if rel, ok := h.manager.Get(streamSID); ok {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rel.Session().Stats())
		return
	}

	if h.calls != nil {
		rec, err := h.calls.GetCallRecord(r.Context(), streamSID)
		if err == nil {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(rec)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("Failed to load call record",
				slog.String("stream_sid", streamSID),
				slog.String("error", err.Error()),
			)
		}
	}

	http.Error(w, "Call not found", http.StatusNotFound)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Sanitized configuration: the API key env name is exposed, its value
	// never is
	sanitizedConfig := map[string]interface{}{
		"server": map[string]interface{}{
			"port":                 h.config.Server.Port,
			"address":              h.config.Server.Address,
			"max_concurrent_calls": h.config.Server.MaxConcurrentCalls,
			"session_timeout":      h.config.Server.SessionTimeout,
		},
		"audio": map[string]interface{}{
			"telephony_rate":    h.config.Audio.TelephonyRate,
			"conversation_rate": h.config.Audio.ConversationRate,
			"frame_duration_ms": h.config.Audio.FrameDurationMs,
			"max_buffer_bytes":  h.config.Audio.MaxBufferBytes,
			"flush_interval_ms": h.config.Audio.FlushIntervalMs,
		},
		"vad": map[string]interface{}{
			"enabled":   h.config.VAD.Enabled,
			"threshold": h.config.VAD.Threshold,
		},
		"conversation": map[string]interface{}{
			"url":         h.config.Conversation.URL,
			"api_key_env": h.config.Conversation.APIKeyEnv,
			"model":       h.config.Conversation.Model,
			"voice":       h.config.Conversation.Voice,
			"barge_in":    h.config.Conversation.BargeIn,
		},
		"store": map[string]interface{}{
			"enabled": h.config.Store.Enabled,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := h.manager.Snapshot()

	var framesIn, framesOut, functionCalls uint64
	for _, st := range active {
		framesIn += st.FramesIn
		framesOut += st.FramesOut
		functionCalls += st.FunctionCalls
	}

	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"calls": map[string]interface{}{
			"active_count":   len(active),
			"frames_in":      framesIn,
			"frames_out":     framesOut,
			"function_calls": functionCalls,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Voice Concierge Relay",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"WS  /media":              "Telephony media-stream entry point",
			"GET /":                   "API documentation",
			"GET /health":             "Service health check",
			"GET /calls":              "List active and recent calls",
			"GET /calls/{stream_sid}": "Get detailed call information",
			"GET /config":             "Get service configuration",
			"GET /stats":              "Get service statistics",
			"GET /metrics":            "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
