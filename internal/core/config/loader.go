package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variables in
// the file content are expanded before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.Auth.Email == "" || cfg.Auth.Password == "" {
		return nil, fmt.Errorf("auth.email and auth.password are required")
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Auth.BaseURL == "" {
		cfg.Auth.BaseURL = "https://api.nimbusweb.me"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "export"
	}
	if cfg.Output.ResumeFile == "" {
		cfg.Output.ResumeFile = "export/resume.json"
	}
	if cfg.Export.EnrichWidth == 0 {
		cfg.Export.EnrichWidth = 4
	}
	if cfg.Export.SubmitWidth == 0 {
		cfg.Export.SubmitWidth = 2
	}
	if cfg.Export.DownloadWidth == 0 {
		cfg.Export.DownloadWidth = 3
	}
	if cfg.Export.SubmitTimeout == 0 {
		cfg.Export.SubmitTimeout = Duration(30 * time.Second)
	}
	if cfg.Export.DownloadTimeout == 0 {
		cfg.Export.DownloadTimeout = Duration(5 * time.Minute)
	}
	if cfg.Export.JobDeadline == 0 {
		cfg.Export.JobDeadline = Duration(2 * time.Minute)
	}
	if cfg.Export.GraceWindow == 0 {
		cfg.Export.GraceWindow = Duration(90 * time.Second)
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = Duration(time.Second)
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = Duration(30 * time.Second)
	}
	if cfg.RateLimit.Rate == 0 {
		cfg.RateLimit.Rate = 3
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
