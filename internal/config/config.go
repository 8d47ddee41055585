// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*PipelineConfig, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes
func LoadFromBytes(data []byte) (*PipelineConfig, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	// Substitute environment variables
	expandedData := expandEnvironmentVariables(string(data))

	config := Default()
	config.Sources = nil
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*PipelineConfig, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(config *PipelineConfig, filename string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// Default returns a complete configuration using the built-in sources.
func Default() *PipelineConfig {
	config := &PipelineConfig{
		Name:     "catalogharvest",
		LogLevel: "info",
		Browser: BrowserConfig{
			Headless:      true,
			NoSandbox:     true,
			DisableImages: true,
		},
		Humanize: HumanizeConfig{Enabled: true},
		Enrichment: EnrichmentConfig{
			Enabled: true,
		},
		Output: OutputConfig{Report: true},
	}
	applyDefaults(config)
	return config
}

// GenerateTemplate returns a commented-ready configuration skeleton.
func GenerateTemplate() *PipelineConfig {
	config := Default()
	config.Enrichment.APIKey = "${TMDB_API_KEY}"
	config.Sinks = []SinkConfig{
		{Type: "sql", Driver: "sqlite3", DSN: "./data/catalog.db", Table: "content_records"},
	}
	return config
}

// expandEnvironmentVariables substitutes ${VAR} references
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults applies default values to the configuration
func applyDefaults(config *PipelineConfig) {
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if config.Browser.Locale == "" {
		config.Browser.Locale = "en-US"
	}
	if config.Browser.Timezone == "" {
		config.Browser.Timezone = "America/New_York"
	}

	c := &config.Crawl
	if c.NavigationTimeout == 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 15 * time.Second
	}
	if c.PacingMin == 0 {
		c.PacingMin = 2 * time.Second
	}
	if c.PacingMax == 0 {
		c.PacingMax = 5 * time.Second
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 10 * time.Second
	}
	if c.RetryMaxDelay == 0 {
		c.RetryMaxDelay = 2 * time.Minute
	}

	ch := &config.Challenge
	if ch.PollInterval == 0 {
		ch.PollInterval = time.Second
	}
	if ch.DetectTimeout == 0 {
		ch.DetectTimeout = 10 * time.Second
	}
	if ch.ExtendedWait == 0 {
		ch.ExtendedWait = 8 * time.Second
	}
	if ch.PostClickWait == 0 {
		ch.PostClickWait = 5 * time.Second
	}
	if len(ch.ClickLabels) == 0 {
		ch.ClickLabels = []string{"continue", "verify", "human", "proceed"}
	}

	h := &config.Humanize
	if h.MinMoves == 0 {
		h.MinMoves = 3
	}
	if h.MaxMoves == 0 {
		h.MaxMoves = 8
	}

	px := &config.Proxy
	if px.Rotation == "" {
		px.Rotation = "round_robin"
	}
	if px.FailureThreshold == 0 {
		px.FailureThreshold = 3
	}
	if px.RecoveryTime == 0 {
		px.RecoveryTime = 10 * time.Minute
	}
	if px.Timeout == 0 {
		px.Timeout = 15 * time.Second
	}
	if px.HealthCheckRate == 0 {
		px.HealthCheckRate = 5 * time.Minute
	}
	for i := range px.Providers {
		if px.Providers[i].Type == "" {
			px.Providers[i].Type = "http"
		}
	}

	e := &config.Enrichment
	if e.APIKey == "" {
		e.APIKey = os.Getenv("TMDB_API_KEY")
	}
	if e.BaseURL == "" {
		e.BaseURL = "https://api.themoviedb.org/3"
	}
	if e.ImageBaseURL == "" {
		e.ImageBaseURL = "https://image.tmdb.org/t/p"
	}
	if e.PosterSize == "" {
		e.PosterSize = "w500"
	}
	if e.BackdropSize == "" {
		e.BackdropSize = "w1280"
	}
	if e.Language == "" {
		e.Language = "en-US"
	}
	if e.MinDelay == 0 {
		e.MinDelay = 500 * time.Millisecond
	}
	if e.MaxDelay == 0 {
		e.MaxDelay = 1500 * time.Millisecond
	}
	if e.RequestsPerSecond == 0 {
		e.RequestsPerSecond = 2
	}
	if e.Timeout == 0 {
		e.Timeout = 10 * time.Second
	}
	if e.CacheTTL == 0 {
		e.CacheTTL = 7 * 24 * time.Hour
	}

	if config.Output.Dir == "" {
		config.Output.Dir = "./data"
	}

	for i := range config.Sinks {
		s := &config.Sinks[i]
		if s.Timeout == 0 {
			s.Timeout = 30 * time.Second
		}
		switch s.Type {
		case "mongodb":
			if s.Database == "" {
				s.Database = "catalog"
			}
			if s.Collection == "" {
				s.Collection = "content_records"
			}
		case "sql":
			if s.Table == "" {
				s.Table = "content_records"
			}
		}
	}

	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = "catalogharvest"
	}

	if len(config.Sources) == 0 {
		config.Sources = DefaultSources()
	}
	for i := range config.Sources {
		applySourceDefaults(&config.Sources[i])
	}
}

func applySourceDefaults(s *SourceConfig) {
	if s.RetryCount == 0 {
		s.RetryCount = 3
	}
	if s.MinItems == 0 {
		s.MinItems = 20
	}
	if p := s.Pagination; p != nil {
		if p.StartPage == 0 {
			p.StartPage = 2
		}
		if p.PageSize == 0 {
			p.PageSize = 20
		}
	}
}
