package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mallarb20000/ScorespokenC-sub001/internal/codec"
)

// Config represents the complete service configuration
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Audio       AudioConfig       `yaml:"audio"`
	Capture     CaptureConfig     `yaml:"capture"`
	Compression CompressionConfig `yaml:"compression"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Storage     StorageConfig     `yaml:"storage"`
	Playback    PlaybackConfig    `yaml:"playback"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// AudioConfig contains separator synthesis and assembly parameters
type AudioConfig struct {
	SampleRate         int     `yaml:"sample_rate"`
	SeparatorKind      string  `yaml:"separator_kind"`      // silence or tone
	SeparatorDuration  float64 `yaml:"separator_duration"`  // seconds
	SeparatorFrequency float64 `yaml:"separator_frequency"` // Hz, tone only
}

// CaptureConfig contains recording device parameters
type CaptureConfig struct {
	MIMEType         string `yaml:"mime_type"`
	NoiseSuppression bool   `yaml:"noise_suppression"`
	AutoGainControl  bool   `yaml:"auto_gain_control"`
	EchoCancellation bool   `yaml:"echo_cancellation"`
}

// CompressionConfig contains artifact compression parameters
type CompressionConfig struct {
	Enabled bool `yaml:"enabled"`
	Level   int  `yaml:"level"`
}

// ScoringConfig contains scoring backend configuration
type ScoringConfig struct {
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	RedirectBase string `yaml:"redirect_base"`
	Timeout      int    `yaml:"timeout"` // seconds
	MaxRetries   int    `yaml:"max_retries"`
	BaseDelayMS  int    `yaml:"base_delay_ms"`
	UserAgent    string `yaml:"user_agent"`
}

// RateLimitConfig contains per-identity request limiting parameters
type RateLimitConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxRequests int  `yaml:"max_requests"`
	WindowSecs  int  `yaml:"window_seconds"`
}

// StorageConfig contains artifact storage configuration
type StorageConfig struct {
	Directory string `yaml:"directory"`
}

// PlaybackConfig contains sequential playback parameters
type PlaybackConfig struct {
	SeparatorDuration  float64 `yaml:"separator_duration"` // seconds
	SeparatorFrequency float64 `yaml:"separator_frequency"`
	ContinueOnError    bool    `yaml:"continue_on_error"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. Scoring credentials may
// be overridden through SCORING_API_KEY and SCORING_ENDPOINT.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("SCORING_API_KEY"); key != "" {
		c.Scoring.APIKey = key
	}
	if endpoint := os.Getenv("SCORING_ENDPOINT"); endpoint != "" {
		c.Scoring.Endpoint = endpoint
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Compression.Validate(); err != nil {
		return fmt.Errorf("compression config: %w", err)
	}

	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}

	if a.SeparatorKind != "silence" && a.SeparatorKind != "tone" {
		return fmt.Errorf("separator_kind must be 'silence' or 'tone', got '%s'", a.SeparatorKind)
	}

	if a.SeparatorDuration <= 0 {
		return fmt.Errorf("separator_duration must be positive, got %f", a.SeparatorDuration)
	}

	if a.SeparatorKind == "tone" && a.SeparatorFrequency <= 0 {
		return fmt.Errorf("separator_frequency must be positive for tone separators, got %f", a.SeparatorFrequency)
	}

	return nil
}

// Validate validates capture configuration
func (c *CaptureConfig) Validate() error {
	validMIMETypes := map[string]bool{
		"audio/webm": true, "audio/ogg": true, "audio/mp4": true, "audio/wav": true,
	}
	if !validMIMETypes[c.MIMEType] {
		return fmt.Errorf("mime_type must be one of [audio/webm, audio/ogg, audio/mp4, audio/wav], got '%s'", c.MIMEType)
	}

	return nil
}

// Validate validates compression configuration
func (c *CompressionConfig) Validate() error {
	if c.Enabled && (c.Level < codec.MinLevel || c.Level > codec.MaxLevel) {
		return fmt.Errorf("level must be between %d and %d, got %d", codec.MinLevel, codec.MaxLevel, c.Level)
	}

	return nil
}

// Validate validates scoring configuration
func (s *ScoringConfig) Validate() error {
	if s.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if u, err := url.Parse(s.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute URL, got '%s'", s.Endpoint)
	}

	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", s.MaxRetries)
	}

	if s.BaseDelayMS < 1 {
		return fmt.Errorf("base_delay_ms must be at least 1, got %d", s.BaseDelayMS)
	}

	return nil
}

// Validate validates rate limiting configuration
func (r *RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.MaxRequests < 1 {
		return fmt.Errorf("max_requests must be at least 1, got %d", r.MaxRequests)
	}

	if r.WindowSecs < 1 {
		return fmt.Errorf("window_seconds must be at least 1, got %d", r.WindowSecs)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}

	return nil
}

// Validate validates playback configuration
func (p *PlaybackConfig) Validate() error {
	if p.SeparatorDuration <= 0 {
		return fmt.Errorf("separator_duration must be positive, got %f", p.SeparatorDuration)
	}

	if p.SeparatorFrequency <= 0 {
		return fmt.Errorf("separator_frequency must be positive, got %f", p.SeparatorFrequency)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTimeoutDuration returns the scoring request timeout as a time.Duration
func (s *ScoringConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetBaseDelayDuration returns the retry base delay as a time.Duration
func (s *ScoringConfig) GetBaseDelayDuration() time.Duration {
	return time.Duration(s.BaseDelayMS) * time.Millisecond
}

// GetWindowDuration returns the rate limit window as a time.Duration
func (r *RateLimitConfig) GetWindowDuration() time.Duration {
	return time.Duration(r.WindowSecs) * time.Second
}

// GetSeparatorDuration returns the assembly separator length as a time.Duration
func (a *AudioConfig) GetSeparatorDuration() time.Duration {
	return time.Duration(a.SeparatorDuration * float64(time.Second))
}
