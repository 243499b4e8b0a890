package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/audio"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/codec"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/config"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/metrics"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/ratelimit"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/storage"
	"github.com/Mallarb20000/ScorespokenC-sub001/internal/submit"
)

// Prometheus collectors register globally, so the test binary shares one
// Metrics instance.
var sharedMetrics = metrics.NewMetrics()

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scoringBackend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(backend.Close)
	return backend
}

func validScoringBody() string {
	return `{
		"transcript": "I think remote work is here to stay.",
		"score": 7.0,
		"overall_assessment": "Coherent response with minor hesitations."
	}`
}

func testConfig(backendURL, storageDir string) *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{Port: 8080, Address: "127.0.0.1"},
		Audio: config.AudioConfig{
			SampleRate:         8000,
			SeparatorKind:      "tone",
			SeparatorDuration:  0.1,
			SeparatorFrequency: 800,
		},
		Capture: config.CaptureConfig{MIMEType: "audio/webm"},
		Compression: config.CompressionConfig{
			Enabled: true,
			Level:   6,
		},
		Scoring: config.ScoringConfig{
			Endpoint:     backendURL,
			APIKey:       "test-key",
			RedirectBase: "https://app.example.com/results",
			Timeout:      5,
			MaxRetries:   0,
			BaseDelayMS:  1,
			UserAgent:    "scorespoken-test/1.0",
		},
		RateLimit: config.RateLimitConfig{
			Enabled:     true,
			MaxRequests: 100,
			WindowSecs:  60,
		},
		Storage:  config.StorageConfig{Directory: storageDir},
		Playback: config.PlaybackConfig{SeparatorDuration: 0.1, SeparatorFrequency: 800, ContinueOnError: true},
		Logging:  config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

type fixture struct {
	api   *httptest.Server
	store *storage.Store
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	logger := testLogger()
	store, err := storage.NewStore(cfg.Storage.Directory, logger)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	client, err := submit.NewClient(submit.Config{
		Endpoint:     cfg.Scoring.Endpoint,
		APIKey:       cfg.Scoring.APIKey,
		RedirectBase: cfg.Scoring.RedirectBase,
		Timeout:      cfg.Scoring.GetTimeoutDuration(),
		MaxRetries:   cfg.Scoring.MaxRetries,
		BaseDelay:    cfg.Scoring.GetBaseDelayDuration(),
		UserAgent:    cfg.Scoring.UserAgent,
	}, logger)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	h := NewHTTPServer(cfg, logger,
		audio.NewAssembler(cfg.Audio.SampleRate, cfg.Audio.SeparatorFrequency),
		codec.New(codec.Config{Enabled: cfg.Compression.Enabled, Level: cfg.Compression.Level}, logger),
		store, client,
		ratelimit.NewGovernor(ratelimit.NewMemoryStore(), ratelimit.SystemClock()),
		sharedMetrics)

	api := httptest.NewServer(h.server.Handler)
	t.Cleanup(api.Close)
	return &fixture{api: api, store: store}
}

func submissionForm(t *testing.T, testType string, questions []string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("testType", testType); err != nil {
		t.Fatalf("WriteField failed: %v", err)
	}
	encoded, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := writer.WriteField("questions", string(encoded)); err != nil {
		t.Fatalf("WriteField failed: %v", err)
	}

	for i := range questions {
		part, err := writer.CreateFormFile(fmt.Sprintf("audio_%d", i), "answer.webm")
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write(bytes.Repeat([]byte{0x1a, byte(i)}, 512))
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Closing multipart writer failed: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestSubmitEndToEnd(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	body, contentType := submissionForm(t, "part2", []string{
		"Describe a skill you would like to learn.",
		"Why is this skill useful?",
	})

	resp, err := http.Post(fx.api.URL+"/api/submit", contentType, body)
	if err != nil {
		t.Fatalf("POST /api/submit failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, raw)
	}

	var result struct {
		ArtifactID  string `json:"artifactId"`
		Attempts    int    `json:"attempts"`
		RedirectURL string `json:"redirectUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	if result.ArtifactID == "" {
		t.Error("Expected an artifact ID in the response")
	}
	if result.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", result.Attempts)
	}
	if result.RedirectURL == "" {
		t.Error("Expected a redirect URL in the response")
	}
	if fx.store.Len() != 1 {
		t.Errorf("Expected 1 stored artifact, got %d", fx.store.Len())
	}
}

func TestSubmitMissingQuestions(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("testType", "part1")
	writer.Close()

	resp, err := http.Post(fx.api.URL+"/api/submit", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", resp.StatusCode)
	}
}

func TestSubmitMissingAudioFile(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("testType", "part1")
	writer.WriteField("questions", `["Only question"]`)
	writer.Close()

	resp, err := http.Post(fx.api.URL+"/api/submit", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", resp.StatusCode)
	}
}

func TestSubmitEmptyAudioFile(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, validScoringBody())
	}))
	t.Cleanup(backend.Close)

	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("testType", "part1")
	writer.WriteField("questions", `["Only question"]`)
	if _, err := writer.CreateFormFile("audio", "answer.webm"); err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	writer.Close()

	resp, err := http.Post(fx.api.URL+"/api/submit", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for a zero-byte upload, got %d", resp.StatusCode)
	}
	if calls.Load() != 0 {
		t.Errorf("A zero-byte upload must not reach the scoring backend, got %d calls", calls.Load())
	}
}

func TestSubmitBackendFailureMapsToBadGateway(t *testing.T) {
	backend := scoringBackend(t, http.StatusInternalServerError, "upstream broken")
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	body, contentType := submissionForm(t, "part1", []string{"One question"})

	resp, err := http.Post(fx.api.URL+"/api/submit", contentType, body)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected 502 for upstream failure, got %d", resp.StatusCode)
	}

	// The artifact is stored before submission so the answer is not lost.
	if fx.store.Len() != 1 {
		t.Errorf("Expected the artifact to be stored despite the failure, got %d", fx.store.Len())
	}
}

func TestSubmitRateLimited(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	cfg.RateLimit.MaxRequests = 1
	fx := newFixture(t, cfg)

	body, contentType := submissionForm(t, "part1", []string{"One question"})
	resp, err := http.Post(fx.api.URL+"/api/submit", contentType, body)
	if err != nil {
		t.Fatalf("First POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", resp.StatusCode)
	}

	body, contentType = submissionForm(t, "part1", []string{"One question"})
	resp, err = http.Post(fx.api.URL+"/api/submit", contentType, body)
	if err != nil {
		t.Fatalf("Second POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Expected X-RateLimit-Remaining 0, got %q", resp.Header.Get("X-RateLimit-Remaining"))
	}
	if resp.Header.Get("X-RateLimit-Reset") == "" {
		t.Error("Expected X-RateLimit-Reset header")
	}
}

func TestArtifactDownloadRoundTrip(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	body, contentType := submissionForm(t, "part2", []string{"Q1", "Q2"})
	resp, err := http.Post(fx.api.URL+"/api/submit", contentType, body)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var submitted struct {
		ArtifactID string `json:"artifactId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(fx.api.URL + "/api/artifacts/" + submitted.ArtifactID)
	if err != nil {
		t.Fatalf("GET artifact failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "audio/wav" {
		t.Errorf("Expected audio/wav, got %s", resp.Header.Get("Content-Type"))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Reading artifact failed: %v", err)
	}
	if len(raw) == 0 {
		t.Error("Expected non-empty artifact bytes")
	}
}

func TestArtifactDurationHeader(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	// A single-question artifact keeps the upload bytes unchanged, so a
	// genuine WAV upload yields a WAV artifact with a known duration.
	tone, err := audio.Synthesize(audio.SeparatorTone, 0.5, 8000, 800)
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("testType", "part1")
	writer.WriteField("questions", `["Only question"]`)
	part, err := writer.CreateFormFile("audio_0", "answer.wav")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(tone.Data)
	writer.Close()

	resp, err := http.Post(fx.api.URL+"/api/submit", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var submitted struct {
		ArtifactID string `json:"artifactId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("Decoding response failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(fx.api.URL + "/api/artifacts/" + submitted.ArtifactID)
	if err != nil {
		t.Fatalf("GET artifact failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Artifact-Duration"); got != "0.500" {
		t.Errorf("X-Artifact-Duration = %q, want %q", got, "0.500")
	}
}

func TestArtifactNotFound(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	resp, err := http.Get(fx.api.URL + "/api/artifacts/does-not-exist")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	for _, path := range []string{"/", "/health", "/stats", "/config", "/metrics"} {
		resp, err := http.Get(fx.api.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestConfigEndpointOmitsAPIKey(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	resp, err := http.Get(fx.api.URL + "/config")
	if err != nil {
		t.Fatalf("GET /config failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Reading body failed: %v", err)
	}
	if bytes.Contains(raw, []byte("test-key")) {
		t.Error("Config endpoint leaked the API key")
	}
}

func TestSubmitMethodNotAllowed(t *testing.T) {
	backend := scoringBackend(t, http.StatusOK, validScoringBody())
	cfg := testConfig(backend.URL, t.TempDir())
	fx := newFixture(t, cfg)

	resp, err := http.Get(fx.api.URL + "/api/submit")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", resp.StatusCode)
	}
}
