// internal/config/types.go

// Package config provides configuration types and loading for the harvest
// pipeline: the source registry plus browser, crawl, challenge,
// humanization, enrichment, output, sink and metrics settings.
package config

import (
	"time"

	"github.com/valpere/CatalogHarvest/internal/catalog"
)

// PipelineConfig is the root configuration document.
type PipelineConfig struct {
	// Name identifies this configuration in logs and reports
	Name string `yaml:"name" json:"name"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" json:"log_level"`

	Browser    BrowserConfig    `yaml:"browser" json:"browser"`
	Crawl      CrawlConfig      `yaml:"crawl" json:"crawl"`
	Challenge  ChallengeConfig  `yaml:"challenge" json:"challenge"`
	Humanize   HumanizeConfig   `yaml:"humanize" json:"humanize"`
	Proxy      ProxyConfig      `yaml:"proxy" json:"proxy"`
	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Sinks      []SinkConfig     `yaml:"sinks,omitempty" json:"sinks,omitempty"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`

	// Sources replaces the built-in registry when non-empty
	Sources []SourceConfig `yaml:"sources,omitempty" json:"sources,omitempty"`
}

// BrowserConfig defines the shared browser process.
type BrowserConfig struct {
	ExecPath      string   `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	Headless      bool     `yaml:"headless" json:"headless"`
	NoSandbox     bool     `yaml:"no_sandbox" json:"no_sandbox"`
	DisableImages bool     `yaml:"disable_images" json:"disable_images"`
	Locale        string   `yaml:"locale" json:"locale"`
	Timezone      string   `yaml:"timezone" json:"timezone"`
	UserAgents    []string `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	ProxyServer   string   `yaml:"proxy_server,omitempty" json:"proxy_server,omitempty"`
}

// ProxyConfig defines the egress pool. When enabled, every session gets
// its own browser context routed through the next proxy.
type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Rotation string `yaml:"rotation" json:"rotation"` // round_robin, random, weighted

	// FailureThreshold consecutive failures take a proxy out of rotation
	// for RecoveryTime
	FailureThreshold int           `yaml:"failure_threshold" json:"failure_threshold"`
	RecoveryTime     time.Duration `yaml:"recovery_time" json:"recovery_time"`

	HealthCheck     bool          `yaml:"health_check" json:"health_check"`
	HealthCheckURL  string        `yaml:"health_check_url,omitempty" json:"health_check_url,omitempty"`
	HealthCheckRate time.Duration `yaml:"health_check_rate" json:"health_check_rate"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`

	Providers []ProxyProvider `yaml:"providers" json:"providers"`
}

// ProxyProvider is one upstream proxy.
type ProxyProvider struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"` // http, https, socks5
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
	Weight   int    `yaml:"weight,omitempty" json:"weight,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// CrawlConfig bounds individual navigation steps and paces URLs.
type CrawlConfig struct {
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	ReadyTimeout      time.Duration `yaml:"ready_timeout" json:"ready_timeout"`
	PacingMin         time.Duration `yaml:"pacing_min" json:"pacing_min"`
	PacingMax         time.Duration `yaml:"pacing_max" json:"pacing_max"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryMaxDelay     time.Duration `yaml:"retry_max_delay" json:"retry_max_delay"`
}

// ChallengeConfig tunes interstitial detection and waiting.
type ChallengeConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" json:"poll_interval"`
	DetectTimeout time.Duration `yaml:"detect_timeout" json:"detect_timeout"`
	ExtendedWait  time.Duration `yaml:"extended_wait" json:"extended_wait"`
	PostClickWait time.Duration `yaml:"post_click_wait" json:"post_click_wait"`
	// ClickLabels are matched case-insensitively against interactive
	// element text
	ClickLabels []string `yaml:"click_labels,omitempty" json:"click_labels,omitempty"`
}

// HumanizeConfig tunes pointer and scroll simulation.
type HumanizeConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	MinMoves int  `yaml:"min_moves" json:"min_moves"`
	MaxMoves int  `yaml:"max_moves" json:"max_moves"`
}

// EnrichmentConfig configures the metadata provider client.
type EnrichmentConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	APIKey            string        `yaml:"api_key,omitempty" json:"-"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	ImageBaseURL      string        `yaml:"image_base_url" json:"image_base_url"`
	PosterSize        string        `yaml:"poster_size" json:"poster_size"`
	BackdropSize      string        `yaml:"backdrop_size" json:"backdrop_size"`
	Language          string        `yaml:"language" json:"language"`
	MinDelay          time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	// CachePath enables the SQLite lookup cache when set
	CachePath string        `yaml:"cache_path,omitempty" json:"cache_path,omitempty"`
	CacheTTL  time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// OutputConfig defines where distribution files go.
type OutputConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Report bool   `yaml:"report" json:"report"`
}

// SinkConfig configures an optional record mirror.
type SinkConfig struct {
	// Type is "mongodb" or "sql"
	Type string `yaml:"type" json:"type"`

	// MongoDB
	URI        string `yaml:"uri,omitempty" json:"-"`
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`

	// SQL: driver is sqlite3, postgres or mysql
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty" json:"-"`
	Table  string `yaml:"table,omitempty" json:"table,omitempty"`

	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// MetricsConfig configures Prometheus collection.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	Namespace     string `yaml:"namespace" json:"namespace"`
	ListenAddress string `yaml:"listen_address,omitempty" json:"listen_address,omitempty"`
}

// SourceConfig is one site's static crawl definition. Immutable once loaded.
type SourceConfig struct {
	Name       string            `yaml:"name" json:"name"`
	Category   catalog.Category  `yaml:"category" json:"category"`
	URLs       []string          `yaml:"urls" json:"urls"`
	Pagination *PaginationConfig `yaml:"pagination,omitempty" json:"pagination,omitempty"`
	Selectors  SelectorSet       `yaml:"selectors" json:"selectors"`
	MinItems   int               `yaml:"min_items" json:"min_items"`
	RetryCount int               `yaml:"retry_count" json:"retry_count"`
	// Enrich defaults to true when omitted
	Enrich *bool `yaml:"enrich,omitempty" json:"enrich,omitempty"`
	// Extractor names the parser; defaults to Name
	Extractor string `yaml:"extractor,omitempty" json:"extractor,omitempty"`
	// Disabled sources stay in the registry but are skipped
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	// TitleTransforms run on every title before the built-in clean-up
	TitleTransforms []TransformRule `yaml:"title_transforms,omitempty" json:"title_transforms,omitempty"`
}

// TransformRule is one string clean-up step: trim, normalize_spaces,
// lowercase, uppercase, remove_html, strip_prefix, strip_suffix or regex.
type TransformRule struct {
	Type        string `yaml:"type" json:"type"`
	Pattern     string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`
}

// ShouldEnrich reports whether records from this source go to the provider.
func (s SourceConfig) ShouldEnrich() bool {
	return s.Enrich == nil || *s.Enrich
}

// ExtractorName returns the extractor registry key for this source.
func (s SourceConfig) ExtractorName() string {
	if s.Extractor != "" {
		return s.Extractor
	}
	return s.Name
}

// PaginationConfig describes how entry URLs expand into page sequences.
type PaginationConfig struct {
	// Template contains {page} or {offset}, e.g. "page/{page}/" or "?page={page}"
	Template string `yaml:"template" json:"template"`
	// MaxPages is the number of extra pages after the entry URL
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	// StartPage is the first substituted page number (default 2)
	StartPage int `yaml:"start_page,omitempty" json:"start_page,omitempty"`
	// PageSize is used for {offset} templates (default 20)
	PageSize int `yaml:"page_size,omitempty" json:"page_size,omitempty"`
}

// SelectorSet holds the CSS selectors an extractor uses.
type SelectorSet struct {
	Item   string `yaml:"item" json:"item"`
	Title  string `yaml:"title,omitempty" json:"title,omitempty"`
	Link   string `yaml:"link,omitempty" json:"link,omitempty"`
	Image  string `yaml:"image,omitempty" json:"image,omitempty"`
	Year   string `yaml:"year,omitempty" json:"year,omitempty"`
	Rating string `yaml:"rating,omitempty" json:"rating,omitempty"`
	Genre  string `yaml:"genre,omitempty" json:"genre,omitempty"`
	Type   string `yaml:"type,omitempty" json:"type,omitempty"`
	// Ready is waited for after navigation; absence is tolerated
	Ready string `yaml:"ready,omitempty" json:"ready,omitempty"`
}
