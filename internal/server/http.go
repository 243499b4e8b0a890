package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/audio"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/codec"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/config"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/metrics"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/ratelimit"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/scoreerr"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/storage"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/submit"
)

// maxUploadBytes bounds a single multipart submission.
const maxUploadBytes = 64 << 20

// HTTPServer provides HTTP API endpoints for submissions and monitoring
type HTTPServer struct {
	server    *http.Server
	logger    *slog.Logger
	config    *config.Config
	assembler *audio.Assembler
	codec     *codec.Codec
	store     *storage.Store
	client    *submit.Client
	governor  *ratelimit.Governor
	metrics   *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg *config.Config, logger *slog.Logger, assembler *audio.Assembler,
	cdc *codec.Codec, store *storage.Store, client *submit.Client,
	governor *ratelimit.Governor, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    cfg,
		assembler: assembler,
		codec:     cdc,
		store:     store,
		client:    client,
		governor:  governor,
		metrics:   m,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Submission endpoint
	mux.HandleFunc("/api/submit", h.withMetrics("/api/submit", h.handleSubmit))

	// Stored artifact endpoints
	mux.HandleFunc("/api/artifacts", h.withMetrics("/api/artifacts", h.handleArtifacts))
	mux.HandleFunc("/api/artifacts/", h.withMetrics("/api/artifacts/{id}", h.handleArtifactDetail))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
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

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
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
	h.logger.Info("Starting HTTP API server",
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
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// statusForError maps pipeline error codes onto HTTP status codes.
func statusForError(err error) int {
	switch scoreerr.CodeOf(err) {
	case scoreerr.CodeValidation, scoreerr.CodeEmptyInput, scoreerr.CodeInvalidParameter:
		return http.StatusUnprocessableEntity
	case scoreerr.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case scoreerr.CodeTimeout:
		return http.StatusGatewayTimeout
	case scoreerr.CodeNetwork, scoreerr.CodeServer, scoreerr.CodeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)

	body := map[string]interface{}{
		"error":       err.Error(),
		"code":        scoreerr.CodeOf(err),
		"recoverable": scoreerr.IsRecoverable(err),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// clientIdentity extracts the rate limiting identity for a request.
func clientIdentity(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// checkRateLimit applies the governor and sets the limit headers. It
// returns false after writing the rejection response.
func (h *HTTPServer) checkRateLimit(w http.ResponseWriter, r *http.Request) bool {
	if !h.config.RateLimit.Enabled {
		return true
	}

	decision, err := h.governor.Check(clientIdentity(r),
		h.config.RateLimit.MaxRequests, h.config.RateLimit.GetWindowDuration())

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

	if err != nil {
		h.metrics.RecordRateLimitRejection()
		h.logger.Warn("Submission rejected by rate limiter",
			slog.String("identity", clientIdentity(r)))
		h.writeError(w, err)
		return false
	}
	return true
}

// handleSubmit implements the POST /api/submit endpoint. The multipart
// form carries testType, a questions JSON array (or a single question
// field), and one audio file per question named audio_0..audio_N (a
// single file may be named audio).
func (h *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.checkRateLimit(w, r) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, scoreerr.Wrap(scoreerr.CodeValidation,
			"malformed multipart form", false, err))
		return
	}

	testType := r.FormValue("testType")
	questions, err := parseQuestions(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	segments, err := h.readSegments(r, len(questions))
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, seg := range segments {
		h.metrics.RecordSegmentCaptured(seg.EstimatedDuration().Seconds())
	}

	merged, err := h.assembler.Merge(segments,
		audio.SeparatorKind(h.config.Audio.SeparatorKind),
		h.config.Audio.SeparatorDuration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.metrics.RecordArtifactMerged(merged.TotalSize)

	payload := h.codec.Compress(merged.Data)
	meta := payload.Metadata()
	h.metrics.RecordCompression(meta.Ratio, payload.FallbackErr != nil)
	if payload.FallbackErr != nil {
		h.logger.Warn("Compression fell back to raw bytes",
			slog.String("error", payload.FallbackErr.Error()))
	}

	artifactID, err := h.store.Save(testType, payload.Data, meta)
	if err != nil {
		h.logger.Error("Failed to store artifact", slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}
	h.metrics.RecordArtifactStored(h.store.Len())

	req := submit.NewRequest(testType, questions)
	req.Answers = segments
	req.Merged = merged

	h.metrics.RecordSubmissionRequest()
	start := time.Now()
	receipt, err := h.client.Submit(r.Context(), req)
	elapsed := time.Since(start).Seconds()

	if receipt != nil && len(receipt.Attempts) > 1 {
		for i := 1; i < len(receipt.Attempts); i++ {
			h.metrics.RecordSubmissionRetry()
		}
	}

	if err != nil {
		h.metrics.RecordSubmissionFailure(elapsed)
		h.logger.Error("Submission failed",
			slog.String("test_type", testType),
			slog.String("artifact_id", artifactID),
			slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}
	h.metrics.RecordSubmissionSuccess(elapsed)

	h.logger.Info("Submission succeeded",
		slog.String("test_type", testType),
		slog.String("artifact_id", artifactID),
		slog.Int("attempts", len(receipt.Attempts)))

	response := map[string]interface{}{
		"artifactId":  artifactID,
		"attempts":    len(receipt.Attempts),
		"result":      receipt.Result,
		"redirectUrl": receipt.RedirectURL,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// parseQuestions reads either a questions JSON array or a single question
// field from the form.
func parseQuestions(r *http.Request) ([]string, error) {
	if raw := r.FormValue("questions"); raw != "" {
		var questions []string
		if err := json.Unmarshal([]byte(raw), &questions); err != nil {
			return nil, scoreerr.Wrap(scoreerr.CodeValidation,
				"questions field is not a JSON array", false, err)
		}
		return questions, nil
	}
	if q := r.FormValue("question"); q != "" {
		return []string{q}, nil
	}
	return nil, scoreerr.New(scoreerr.CodeValidation, "no questions provided", false)
}

// readSegments collects the uploaded answer files in question order.
func (h *HTTPServer) readSegments(r *http.Request, questionCount int) ([]*audio.Segment, error) {
	form := r.MultipartForm
	if form == nil {
		return nil, scoreerr.New(scoreerr.CodeValidation, "missing multipart form", false)
	}

	names := make([]string, 0, questionCount)
	if _, ok := form.File["audio"]; ok && questionCount == 1 {
		names = append(names, "audio")
	} else {
		for i := 0; i < questionCount; i++ {
			names = append(names, fmt.Sprintf("audio_%d", i))
		}
	}

	segments := make([]*audio.Segment, 0, len(names))
	for i, name := range names {
		headers, ok := form.File[name]
		if !ok || len(headers) == 0 {
			return nil, scoreerr.Newf(scoreerr.CodeValidation, false,
				"missing audio file for question %d", i+1)
		}

		file, err := headers[0].Open()
		if err != nil {
			return nil, scoreerr.Wrap(scoreerr.CodeValidation,
				"failed to open uploaded file", false, err)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, scoreerr.Wrap(scoreerr.CodeValidation,
				"failed to read uploaded file", false, err)
		}
		if len(data) == 0 {
			return nil, scoreerr.Newf(scoreerr.CodeValidation, false,
				"audio file for question %d is empty", i+1)
		}

		mimeType := headers[0].Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = h.config.Capture.MIMEType
		}
		segments = append(segments, audio.NewSegment(i, mimeType, data))
	}
	return segments, nil
}

// handleArtifacts implements the GET /api/artifacts endpoint
func (h *HTTPServer) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records := h.store.List()

	response := map[string]interface{}{
		"total":     len(records),
		"timestamp": time.Now().UTC(),
		"artifacts": records,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleArtifactDetail implements the GET /api/artifacts/{id} endpoint,
// streaming the decompressed audio back to the caller.
func (h *HTTPServer) handleArtifactDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/artifacts/")
	if id == "" {
		http.Error(w, "Artifact ID required", http.StatusBadRequest)
		return
	}

	data, meta, err := h.store.Load(id)
	if err != nil {
		http.Error(w, "Artifact not found", http.StatusNotFound)
		return
	}

	raw, err := h.codec.DecompressStored(data, meta)
	if err != nil {
		h.logger.Error("Failed to decompress stored artifact",
			slog.String("artifact_id", id),
			slog.String("error", err.Error()))
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	// Not every stored artifact is a WAV container (uploads keep their
	// source encoding), so the duration header is best effort.
	if seconds, err := audio.WAVDuration(raw); err == nil {
		w.Header().Set("X-Artifact-Duration", strconv.FormatFloat(seconds, 'f', 3, 64))
	}
	w.Write(raw)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	clientStats := h.client.GetStats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "scorespoken-submission-service",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"storage": map[string]interface{}{
				"status":    "running",
				"artifacts": h.store.Len(),
			},
			"scoring": map[string]interface{}{
				"status":         "running",
				"total_requests": clientStats.TotalRequests,
				"success_rate":   clientStats.SuccessRate,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"port":    h.config.HTTP.Port,
			"address": h.config.HTTP.Address,
		},
		"audio": map[string]interface{}{
			"sample_rate":         h.config.Audio.SampleRate,
			"separator_kind":      h.config.Audio.SeparatorKind,
			"separator_duration":  h.config.Audio.SeparatorDuration,
			"separator_frequency": h.config.Audio.SeparatorFrequency,
		},
		"compression": map[string]interface{}{
			"enabled": h.config.Compression.Enabled,
			"level":   h.config.Compression.Level,
		},
		"scoring": map[string]interface{}{
			"endpoint":    h.config.Scoring.Endpoint,
			"timeout":     h.config.Scoring.Timeout,
			"max_retries": h.config.Scoring.MaxRetries,
			// Note: API key is intentionally omitted for security
		},
		"rate_limit": map[string]interface{}{
			"enabled":        h.config.RateLimit.Enabled,
			"max_requests":   h.config.RateLimit.MaxRequests,
			"window_seconds": h.config.RateLimit.WindowSecs,
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

	clientStats := h.client.GetStats()
	uptime := time.Since(h.startTime)

	stats := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"scoring":   clientStats,
		"storage": map[string]interface{}{
			"artifacts": h.store.Len(),
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
		"service": "ScoreSpoken Submission Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                   "API documentation",
			"POST /api/submit":        "Submit answers for scoring",
			"GET /api/artifacts":      "List stored artifacts",
			"GET /api/artifacts/{id}": "Download a stored artifact",
			"GET /health":             "Service health check",
			"GET /config":             "Get service configuration",
			"GET /stats":              "Get service statistics",
			"GET /metrics":            "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
