// Package config loads and validates leaderboard configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends. memory is an output backend only; a memory source could
// never be seeded from config.
const (
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendMemory   = "memory"
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Notifier backends.
const (
	NotifierNone   = "none"
	NotifierMemory = "memory"
	NotifierPubSub = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Site      SiteConfig      `mapstructure:"site"`
	Source    SourceConfig    `mapstructure:"source"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Output    OutputConfig    `mapstructure:"output"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig guards the cache invalidation endpoint.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SiteConfig tunes the rendered page.
type SiteConfig struct {
	Title string `mapstructure:"title"`
}

// SourceConfig selects where the computed documents are read from.
type SourceConfig struct {
	Backend  string               `mapstructure:"backend"`
	Root     string               `mapstructure:"root"`
	Local    LocalSourceConfig    `mapstructure:"local"`
	GCS      GCSConfig            `mapstructure:"gcs"`
	HTTP     HTTPSourceConfig     `mapstructure:"http"`
	Postgres PostgresSourceConfig `mapstructure:"postgres"`
}

// LocalSourceConfig points at a directory on disk.
type LocalSourceConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSConfig names a bucket and key prefix.
type GCSConfig struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	CacheControl string `mapstructure:"cache_control"`
}

// HTTPSourceConfig reads documents from a published site.
type HTTPSourceConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// PostgresSourceConfig reads documents stored as rows.
type PostgresSourceConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// CacheConfig configures the read-through document cache.
type CacheConfig struct {
	Backend    string      `mapstructure:"backend"`
	TTLSeconds int         `mapstructure:"ttl_seconds"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds connection details for the Redis cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RateLimitConfig configures the per-client HTTP limiter.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RPS               float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
	TrustForwardedFor bool    `mapstructure:"trust_forwarded_for"`
}

// OutputConfig selects where rendered pages and snapshots are written.
type OutputConfig struct {
	Backend string    `mapstructure:"backend"`
	Prefix  string    `mapstructure:"prefix"`
	Local   OutputDir `mapstructure:"local"`
	GCS     GCSConfig `mapstructure:"gcs"`
}

// OutputDir is a local output directory.
type OutputDir struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for render notifications.
type PubSubConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SnapshotConfig configures headless page captures.
type SnapshotConfig struct {
	URL               string `mapstructure:"url"`
	Key               string `mapstructure:"key"`
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	ViewportWidth     int    `mapstructure:"viewport_width"`
	ViewportHeight    int    `mapstructure:"viewport_height"`
	ChromePath        string `mapstructure:"chrome_path"`
}

// TelemetryConfig toggles tracing.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADERBOARD")
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

// Every key has a default so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 15)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("site.title", "Mini League")

	v.SetDefault("source.backend", BackendLocal)
	v.SetDefault("source.root", "data/computed")
	v.SetDefault("source.local.base_dir", ".")
	v.SetDefault("source.gcs.bucket", "")
	v.SetDefault("source.gcs.prefix", "")
	v.SetDefault("source.http.base_url", "")
	v.SetDefault("source.http.user_agent", "mini-league/0.1")
	v.SetDefault("source.http.timeout_seconds", 15)
	v.SetDefault("source.http.respect_robots", false)
	v.SetDefault("source.postgres.dsn", "")
	v.SetDefault("source.postgres.table", "computed_documents")
	v.SetDefault("source.postgres.max_conns", 4)
	v.SetDefault("source.postgres.min_conns", 0)

	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.ttl_seconds", 60)
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "leaderboard:docs")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 5.0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.trust_forwarded_for", false)

	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.prefix", "")
	v.SetDefault("output.local.base_dir", "site")
	v.SetDefault("output.gcs.bucket", "")
	v.SetDefault("output.gcs.prefix", "")
	v.SetDefault("output.gcs.cache_control", "public, max-age=300")

	v.SetDefault("pubsub.backend", NotifierNone)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "leaderboard-rendered")

	v.SetDefault("snapshot.url", "http://localhost:8080/")
	v.SetDefault("snapshot.key", "snapshots/latest.png")
	v.SetDefault("snapshot.user_agent", "")
	v.SetDefault("snapshot.nav_timeout_seconds", 45)
	v.SetDefault("snapshot.viewport_width", 1024)
	v.SetDefault("snapshot.viewport_height", 768)
	v.SetDefault("snapshot.chrome_path", "")

	v.SetDefault("telemetry.service_name", "mini-league")
}

// Validate enforces required values and reasonable limits.
//
//nolint:gocognit,gocyclo // flat list of independent checks
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}

	switch c.Source.Backend {
	case BackendLocal:
		if c.Source.Local.BaseDir == "" {
			return fmt.Errorf("source.local.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Source.GCS.Bucket == "" {
			return fmt.Errorf("source.gcs.bucket must be set for the gcs backend")
		}
	case BackendHTTP:
		if c.Source.HTTP.BaseURL == "" {
			return fmt.Errorf("source.http.base_url must be set for the http backend")
		}
		if c.Source.HTTP.TimeoutSeconds <= 0 {
			return fmt.Errorf("source.http.timeout_seconds must be > 0")
		}
	case BackendPostgres:
		if c.Source.Postgres.DSN == "" {
			return fmt.Errorf("source.postgres.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("source.backend must be one of local, gcs, http, postgres; got %q", c.Source.Backend)
	}

	switch c.Cache.Backend {
	case CacheNone, "":
	case CacheMemory, CacheRedis:
		if c.Cache.TTLSeconds <= 0 {
			return fmt.Errorf("cache.ttl_seconds must be > 0 when caching is enabled")
		}
		if c.Cache.Backend == CacheRedis && c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr must be set for the redis cache")
		}
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis; got %q", c.Cache.Backend)
	}

	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate_limit.rps must be > 0 when rate limiting is enabled")
	}

	switch c.Output.Backend {
	case BackendLocal:
		if c.Output.Local.BaseDir == "" {
			return fmt.Errorf("output.local.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Output.GCS.Bucket == "" {
			return fmt.Errorf("output.gcs.bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("output.backend must be one of local, gcs, memory; got %q", c.Output.Backend)
	}

	switch c.PubSub.Backend {
	case NotifierNone, "", NotifierMemory:
	case NotifierPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set for the pubsub notifier")
		}
	default:
		return fmt.Errorf("pubsub.backend must be one of none, memory, pubsub; got %q", c.PubSub.Backend)
	}
	return nil
}

// RequestTimeout is the per-request handler budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown; it defaults to ten seconds.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// CacheTTL converts cache.ttl_seconds.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
