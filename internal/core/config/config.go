package config

import "github.com/sachajw/dops-nimbus-note-exporter/internal/infra/redisstore"

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Auth      AuthConfig        `yaml:"auth"`
	Output    OutputConfig      `yaml:"output"`
	Export    ExportConfig      `yaml:"export"`
	Retry     RetryConfig       `yaml:"retry"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Recovery  RecoveryConfig    `yaml:"recovery"`
	Redis     redisstore.Config `yaml:"redis"`
	Server    ServerConfig      `yaml:"server"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// AuthConfig holds Nimbus credentials and endpoint. Values support
// ${ENV} expansion so passwords stay out of the file.
type AuthConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	BaseURL  string `yaml:"base_url"`
}

// OutputConfig holds on-disk locations.
type OutputConfig struct {
	Dir        string `yaml:"dir"`
	ResumeFile string `yaml:"resume_file"`
}

// ExportConfig tunes the export phases. Submission is the most
// rate-sensitive phase and download the most bandwidth-sensitive, so
// each gets its own width.
type ExportConfig struct {
	EnrichWidth   int `yaml:"enrich_width"`
	SubmitWidth   int `yaml:"submit_width"`
	DownloadWidth int `yaml:"download_width"`

	SubmitTimeout   Duration `yaml:"submit_timeout"`
	DownloadTimeout Duration `yaml:"download_timeout"`
	JobDeadline     Duration `yaml:"job_deadline"`
	GraceWindow     Duration `yaml:"grace_window"`
}

// RetryConfig tunes the backoff executor.
type RetryConfig struct {
	MaxRetries   int      `yaml:"max_retries"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
}

// RateLimitConfig tunes the shared token bucket.
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// RecoveryConfig gates the URL-probing recovery of lost completions.
type RecoveryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ServerConfig holds health/metrics server settings. Port 0 disables
// the listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
