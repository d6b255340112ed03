// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Queue    QueueConfig    `mapstructure:"queue"`
	DB       DBConfig       `mapstructure:"db"`
	Debounce DebounceConfig `mapstructure:"debounce"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sites    []SiteConfig   `mapstructure:"sites"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// WatchConfig governs fetching and the worker pool.
type WatchConfig struct {
	UserAgent           string            `mapstructure:"user_agent"`
	FetchTimeoutSeconds int               `mapstructure:"fetch_timeout_seconds"`
	QueueDepth          int               `mapstructure:"queue_depth"`
	WorkersPerLane      int               `mapstructure:"workers_per_lane"`
	StalenessDays       int               `mapstructure:"staleness_days"`
	// Cookies are sent with every fetch, typically consent cookies that
	// keep interstitial pages out of the way.
	Cookies map[string]string `mapstructure:"cookies"`
}

// QueueConfig selects and configures the job transport.
type QueueConfig struct {
	// Provider is "memory" or "pubsub".
	Provider           string `mapstructure:"provider"`
	ProjectID          string `mapstructure:"project_id"`
	TopicPrefix        string `mapstructure:"topic_prefix"`
	SubscriptionPrefix string `mapstructure:"subscription_prefix"`
}

// DBConfig selects and configures revision persistence.
type DBConfig struct {
	// Provider is "memory" or "postgres".
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// DebounceConfig selects and configures the notification marker store.
type DebounceConfig struct {
	// Provider is "memory" or "redis".
	Provider string `mapstructure:"provider"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// TTLHours bounds marker retention. Zero keeps markers forever.
	TTLHours int `mapstructure:"ttl_hours"`
}

// RendererConfig configures the headless diff renderer.
type RendererConfig struct {
	Enabled        bool  `mapstructure:"enabled"`
	MaxParallel    int   `mapstructure:"max_parallel"`
	TimeoutSeconds int   `mapstructure:"timeout_seconds"`
	Width          int64 `mapstructure:"width"`
	Height         int64 `mapstructure:"height"`
}

// ArchiveConfig selects where rendered diff images are stored.
type ArchiveConfig struct {
	// Provider is "none", "memory", "local" or "gcs".
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
}

// WebhookConfig controls outbound notification delivery.
type WebhookConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SiteConfig describes one watched site.
type SiteConfig struct {
	ID                int64  `mapstructure:"id"`
	Name              string `mapstructure:"name"`
	ListingURL        string `mapstructure:"listing_url"`
	ArticleURLPattern string `mapstructure:"article_url_pattern"`
	TitleSelector     string `mapstructure:"title_selector"`
	WebhookURL        string `mapstructure:"webhook_url"`
	WebhookToken      string `mapstructure:"webhook_token"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HEADLINEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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
	v.SetDefault("watch.user_agent", "headlinewatch/0.1")
	v.SetDefault("watch.fetch_timeout_seconds", 15)
	v.SetDefault("watch.queue_depth", 256)
	v.SetDefault("watch.workers_per_lane", 2)
	v.SetDefault("watch.staleness_days", 7)
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("queue.topic_prefix", "headlinewatch")
	v.SetDefault("queue.subscription_prefix", "headlinewatch")
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("debounce.provider", "memory")
	v.SetDefault("renderer.enabled", false)
	v.SetDefault("renderer.max_parallel", 1)
	v.SetDefault("renderer.timeout_seconds", 30)
	v.SetDefault("renderer.width", 800)
	v.SetDefault("renderer.height", 400)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("webhook.timeout_seconds", 15)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Watch.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("watch.fetch_timeout_seconds must be > 0")
	}
	if c.Watch.WorkersPerLane <= 0 {
		return fmt.Errorf("watch.workers_per_lane must be > 0")
	}
	if c.Watch.StalenessDays <= 0 {
		return fmt.Errorf("watch.staleness_days must be > 0")
	}

	switch c.Queue.Provider {
	case "memory":
	case "pubsub":
		if c.Queue.ProjectID == "" {
			return fmt.Errorf("queue.project_id must be set for the pubsub provider")
		}
	default:
		return fmt.Errorf("queue.provider must be memory or pubsub, got %q", c.Queue.Provider)
	}

	switch c.DB.Provider {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set for the postgres provider")
		}
	default:
		return fmt.Errorf("db.provider must be memory or postgres, got %q", c.DB.Provider)
	}

	switch c.Debounce.Provider {
	case "memory":
	case "redis":
		if c.Debounce.Address == "" {
			return fmt.Errorf("debounce.address must be set for the redis provider")
		}
	default:
		return fmt.Errorf("debounce.provider must be memory or redis, got %q", c.Debounce.Provider)
	}

	switch c.Archive.Provider {
	case "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local provider")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider must be none, memory, local or gcs, got %q", c.Archive.Provider)
	}

	if c.Renderer.Enabled && c.Renderer.MaxParallel <= 0 {
		return fmt.Errorf("renderer.max_parallel must be > 0 when the renderer is enabled")
	}

	seen := make(map[int64]bool, len(c.Sites))
	for i, site := range c.Sites {
		if site.ID <= 0 {
			return fmt.Errorf("sites[%d].id must be > 0", i)
		}
		if seen[site.ID] {
			return fmt.Errorf("sites[%d].id %d is duplicated", i, site.ID)
		}
		seen[site.ID] = true
		if site.ListingURL == "" {
			return fmt.Errorf("sites[%d].listing_url must be set", i)
		}
		if site.ArticleURLPattern == "" {
			return fmt.Errorf("sites[%d].article_url_pattern must be set", i)
		}
		if _, err := regexp.Compile(site.ArticleURLPattern); err != nil {
			return fmt.Errorf("sites[%d].article_url_pattern: %w", i, err)
		}
		if site.TitleSelector == "" {
			return fmt.Errorf("sites[%d].title_selector must be set", i)
		}
	}

	return nil
}

// FetchTimeout returns the fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Watch.FetchTimeoutSeconds) * time.Second
}

// Staleness returns the sweep staleness cutoff as a duration.
func (c Config) Staleness() time.Duration {
	return time.Duration(c.Watch.StalenessDays) * 24 * time.Hour
}

// DebounceTTL returns the marker retention as a duration.
func (c Config) DebounceTTL() time.Duration {
	return time.Duration(c.Debounce.TTLHours) * time.Hour
}
