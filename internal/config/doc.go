// Package config provides configuration loading and validation for the
// ScoreSpoken submission service. It handles YAML-based configuration with
// per-section validation and environment overrides for scoring credentials.
package config
