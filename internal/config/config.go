package config

import (
	"errors"
	"io/fs"
	"math"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/contact-mx/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	DNS        DNSConfig        `yaml:"dns" mapstructure:"dns"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Signatures SignaturesConfig `yaml:"signatures" mapstructure:"signatures"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
}

// DNSConfig selects and tunes the MX resolver.
type DNSConfig struct {
	Provider                string  `yaml:"provider" mapstructure:"provider"`
	DoHURL                  string  `yaml:"doh_url" mapstructure:"doh_url"`
	TimeoutMs               int     `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	RateLimitRPS            float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// RetryConfig configures MX lookup retries.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CacheConfig configures the in-memory domain cache and its optional
// persistent tier.
type CacheConfig struct {
	MaxSize int         `yaml:"max_size" mapstructure:"max_size"`
	Store   StoreConfig `yaml:"store" mapstructure:"store"`
}

// StoreConfig configures the database backend. An empty driver disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Pool limits apply to the postgres driver only.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// PipelineConfig configures run behavior.
type PipelineConfig struct {
	Workers           int               `yaml:"workers" mapstructure:"workers"`
	ChunkSize         int               `yaml:"chunk_size" mapstructure:"chunk_size"`
	PreserveLocalCase bool              `yaml:"preserve_local_case" mapstructure:"preserve_local_case"`
	Weights           model.TaskWeights `yaml:"weights" mapstructure:"weights"`
}

// SignaturesConfig points at an optional provider signature override file.
type SignaturesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACTMX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	weights := model.DefaultTaskWeights()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dns.provider", "doh")
	v.SetDefault("dns.doh_url", "https://dns.google/resolve")
	v.SetDefault("dns.timeout_ms", 5000)
	v.SetDefault("dns.rate_limit_rps", 0)
	v.SetDefault("dns.circuit_failure_threshold", 0)
	v.SetDefault("dns.circuit_reset_secs", 30)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.store.driver", "")
	v.SetDefault("cache.store.database_url", "")
	v.SetDefault("cache.store.max_conns", 10)
	v.SetDefault("cache.store.min_conns", 1)
	v.SetDefault("pipeline.workers", 10)
	v.SetDefault("pipeline.chunk_size", 500)
	v.SetDefault("pipeline.preserve_local_case", false)
	v.SetDefault("pipeline.weights.processing", weights.Processing)
	v.SetDefault("pipeline.weights.mx_lookup", weights.MXLookup)
	v.SetDefault("pipeline.weights.deduplication", weights.Deduplication)
	v.SetDefault("pipeline.weights.enrichment", weights.Enrichment)
	v.SetDefault("signatures.path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "process",
// "classify", "cache" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.DNS.Provider {
	case "doh":
		if c.DNS.DoHURL == "" {
			errs = append(errs, "dns.doh_url is required when dns.provider is doh")
		}
	case "system":
	default:
		errs = append(errs, "dns.provider must be doh or system")
	}
	if c.DNS.TimeoutMs <= 0 {
		errs = append(errs, "dns.timeout_ms must be > 0")
	}
	if c.DNS.RateLimitRPS < 0 {
		errs = append(errs, "dns.rate_limit_rps must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be >= 1")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, "retry.jitter_fraction must be between 0 and 1")
	}
	if c.Cache.MaxSize < 1 {
		errs = append(errs, "cache.max_size must be >= 1")
	}
	switch strings.ToLower(c.Cache.Store.Driver) {
	case "":
	case "sqlite", "sqlite3", "postgres", "postgresql", "pg":
		if c.Cache.Store.DatabaseURL == "" {
			errs = append(errs, "cache.store.database_url is required when cache.store.driver is set")
		}
	default:
		errs = append(errs, "cache.store.driver must be sqlite or postgres")
	}
	if c.Cache.Store.MaxConns < 0 || c.Cache.Store.MinConns < 0 {
		errs = append(errs, "cache.store pool limits must be >= 0")
	} else if c.Cache.Store.MaxConns > 0 && c.Cache.Store.MinConns > c.Cache.Store.MaxConns {
		errs = append(errs, "cache.store.min_conns must not exceed max_conns")
	}

	switch mode {
	case "process":
		errs = append(errs, c.validatePipeline()...)
	case "serve":
		errs = append(errs, c.validatePipeline()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "classify":
	case "cache":
		if c.Cache.Store.Driver == "" {
			errs = append(errs, "cache.store.driver is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validatePipeline() []string {
	var errs []string
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 100 {
		errs = append(errs, "pipeline.workers must be between 1 and 100")
	}
	if c.Pipeline.ChunkSize < 1 {
		errs = append(errs, "pipeline.chunk_size must be >= 1")
	}
	w := c.Pipeline.Weights
	if w.Processing < 0 || w.MXLookup < 0 || w.Deduplication < 0 || w.Enrichment < 0 {
		errs = append(errs, "pipeline.weights values must be >= 0")
	}
	if math.Abs(w.Sum()-100) > 1e-6 {
		errs = append(errs, "pipeline.weights must sum to 100")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
