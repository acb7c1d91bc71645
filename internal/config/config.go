// Package config loads and validates miner configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Search    SearchConfig    `mapstructure:"search"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Apify     ApifyConfig     `mapstructure:"apify"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	DB        DBConfig        `mapstructure:"db"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig defines API authentication toggles. When StaticToken is empty any
// bearer token is accepted and forwarded to the analytics backend.
type AuthConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	StaticToken string `mapstructure:"static_token"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SearchConfig selects and tunes the web search backend used by discovery.
type SearchConfig struct {
	Provider          string        `mapstructure:"provider"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	SearXNG           SearXNGConfig `mapstructure:"searxng"`
	HTML              HTMLConfig    `mapstructure:"html"`
}

// SearXNGConfig points at a SearXNG instance with the JSON format enabled.
type SearXNGConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Categories string `mapstructure:"categories"`
}

// HTMLConfig describes an HTML result page. URLTemplate must contain one %s
// for the escaped query.
type HTMLConfig struct {
	URLTemplate    string `mapstructure:"url_template"`
	ResultSelector string `mapstructure:"result_selector"`
}

// DiscoveryConfig tunes profile discovery.
type DiscoveryConfig struct {
	Keyword      string `mapstructure:"keyword"`
	MaxResults   int    `mapstructure:"max_results"`
	ValidityDays int    `mapstructure:"validity_days"`
}

// ApifyConfig configures the scraping actor.
type ApifyConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Token        string        `mapstructure:"token"`
	ActorID      string        `mapstructure:"actor_id"`
	MinDelay     int           `mapstructure:"min_delay"`
	MaxDelay     int           `mapstructure:"max_delay"`
	UseProxy     bool          `mapstructure:"use_proxy"`
	ProxyGroups  []string      `mapstructure:"proxy_groups"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AnalyticsConfig points at the analytics backend.
type AnalyticsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ArchiveConfig controls the optional raw payload archive.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for batch completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DBConfig controls access to the task ledger database. An empty DSN disables the ledger.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "15m")
	v.SetDefault("auth.enabled", true)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("search.provider", "html")
	v.SetDefault("search.user_agent", "Mozilla/5.0 (compatible; crunchbase-miner/1.0)")
	v.SetDefault("search.timeout", "20s")
	v.SetDefault("search.requests_per_second", 1.0)
	v.SetDefault("search.burst", 1)
	v.SetDefault("search.searxng.categories", "general")
	v.SetDefault("search.html.url_template", "https://html.duckduckgo.com/html/?q=%s")
	v.SetDefault("search.html.result_selector", "a.result__a")
	v.SetDefault("discovery.keyword", "crunchbase")
	v.SetDefault("discovery.max_results", 10)
	v.SetDefault("discovery.validity_days", 180)
	v.SetDefault("apify.base_url", "https://api.apify.com")
	v.SetDefault("apify.min_delay", 1)
	v.SetDefault("apify.max_delay", 3)
	v.SetDefault("apify.use_proxy", true)
	v.SetDefault("apify.proxy_groups", []string{"RESIDENTIAL"})
	v.SetDefault("apify.poll_interval", "5s")
	v.SetDefault("apify.wait_timeout", "10m")
	v.SetDefault("apify.timeout", "60s")
	v.SetDefault("analytics.timeout", "30s")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "memory")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "crunchbase-miner")
}

// bindLegacyEnv keeps the environment names used by existing deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"apify.token":        {"MINER_APIFY_TOKEN", "APIFY_API_KEY"},
		"apify.actor_id":     {"MINER_APIFY_ACTOR_ID", "APIFY_ACTOR_ID"},
		"analytics.base_url": {"MINER_ANALYTICS_BASE_URL", "ANALYTICS_BASE_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	switch c.Search.Provider {
	case "searxng":
		if c.Search.SearXNG.BaseURL == "" {
			return fmt.Errorf("search.searxng.base_url must be set for the searxng provider")
		}
	case "html":
		if strings.Count(c.Search.HTML.URLTemplate, "%s") != 1 {
			return fmt.Errorf("search.html.url_template must contain exactly one %%s")
		}
	default:
		return fmt.Errorf("search.provider must be one of searxng, html; got %q", c.Search.Provider)
	}
	if c.Discovery.MaxResults <= 0 {
		return fmt.Errorf("discovery.max_results must be > 0")
	}
	if c.Apify.MinDelay < 0 || c.Apify.MaxDelay < c.Apify.MinDelay {
		return fmt.Errorf("apify delays must satisfy 0 <= min_delay <= max_delay")
	}
	if c.Apify.PollInterval <= 0 {
		return fmt.Errorf("apify.poll_interval must be > 0")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "memory":
		case "gcs":
			if c.Archive.GCSBucket == "" {
				return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
			}
		case "local":
			if c.Archive.LocalDir == "" {
				return fmt.Errorf("archive.local_dir must be set for the local backend")
			}
		default:
			return fmt.Errorf("archive.backend must be one of memory, local, gcs; got %q", c.Archive.Backend)
		}
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// DiscoveryValidity converts the configured validity window into a duration.
func (c Config) DiscoveryValidity() time.Duration {
	return time.Duration(c.Discovery.ValidityDays) * 24 * time.Hour
}

// ScrapeReady reports whether the scraping actor is fully configured.
func (c Config) ScrapeReady() bool {
	return c.Apify.Token != "" && c.Apify.ActorID != ""
}
