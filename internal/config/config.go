package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Engine    EngineConfig    `mapstructure:"engine"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Sidecar   SidecarConfig   `mapstructure:"sidecar"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	CacheSweep       string `mapstructure:"cache_sweep"`
	StaleAttemptScan string `mapstructure:"stale_attempt_scan"`
}

// EngineConfig controls the replication engine itself.
type EngineConfig struct {
	DryRun bool `mapstructure:"dry_run"`

	// StalePendingAfter is how old a PENDING attempt must be before the
	// reconciliation job marks it FAILED (crash recovery).
	StalePendingAfter time.Duration `mapstructure:"stale_pending_after"`
}

// RiskConfig holds the platform-wide limits enforced by the risk gate.
// Per-follower limits (daily loss, total loss, leverage, open trades)
// live on the subscription row.
type RiskConfig struct {
	// MaxEventAge rejects master events older than this. Only near-real-time
	// events may be copied; stale or backfilled events must not replay.
	MaxEventAge time.Duration `mapstructure:"max_event_age"`
	// MinEquityUSD is the floor below which copying is pointless (fees dominate).
	MinEquityUSD float64 `mapstructure:"min_equity_usd"`
	// MaxPortfolioExposurePct caps (open notional + new position) / equity.
	MaxPortfolioExposurePct float64 `mapstructure:"max_portfolio_exposure_pct"`
}

type SchedulerConfig struct {
	MaxBatchSize  int           `mapstructure:"max_batch_size"`
	BatchDelay    time.Duration `mapstructure:"batch_delay"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
}

type CacheConfig struct {
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	EquityTTL   time.Duration `mapstructure:"equity_ttl"`
	FollowerTTL time.Duration `mapstructure:"follower_ttl"`
}

type StreamConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// SidecarConfig points at the platform's audit/notification API.
// An empty base URL disables the side channel entirely.
type SidecarConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.cache_sweep", "@every 1m")
	v.SetDefault("cron.stale_attempt_scan", "@every 5m")

	v.SetDefault("engine.dry_run", true)
	v.SetDefault("engine.stale_pending_after", "10m")

	v.SetDefault("risk.max_event_age", "60s")
	v.SetDefault("risk.min_equity_usd", 10)
	v.SetDefault("risk.max_portfolio_exposure_pct", 80)

	v.SetDefault("scheduler.max_batch_size", 50)
	v.SetDefault("scheduler.batch_delay", "100ms")
	v.SetDefault("scheduler.max_concurrent", 5)
	v.SetDefault("scheduler.drain_timeout", "30s")

	v.SetDefault("cache.default_ttl", "5m")
	v.SetDefault("cache.equity_ttl", "1m")
	v.SetDefault("cache.follower_ttl", "2m")

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.url", "")
	v.SetDefault("stream.reconnect_delay", "5s")

	v.SetDefault("sidecar.base_url", "")
	v.SetDefault("sidecar.timeout", "5s")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
