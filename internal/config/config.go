package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-engine/internal/scorer"
	"github.com/sells-group/lead-engine/internal/similarity"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Similarity SimilarityConfig `yaml:"similarity" mapstructure:"similarity"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// EnrichConfig configures the external enrichment provider.
type EnrichConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// JobsConfig configures the batch enrichment orchestrator.
type JobsConfig struct {
	DefaultBatchSize   int `yaml:"default_batch_size" mapstructure:"default_batch_size"`
	InterChunkDelaySec int `yaml:"inter_chunk_delay_secs" mapstructure:"inter_chunk_delay_secs"`
}

// InterChunkDelay returns the configured pause between chunks.
func (c JobsConfig) InterChunkDelay() time.Duration {
	return time.Duration(c.InterChunkDelaySec) * time.Second
}

// SimilarityConfig configures duplicate detection: the default scan
// threshold and the per-signal matching weights.
type SimilarityConfig struct {
	Threshold float64            `yaml:"threshold" mapstructure:"threshold"`
	Weights   similarity.Weights `yaml:"weights" mapstructure:"weights"`
}

// EngineWeights returns the configured matching weights, falling back to
// the production defaults when the section is absent.
func (c SimilarityConfig) EngineWeights() similarity.Weights {
	if c.Weights == (similarity.Weights{}) {
		return similarity.DefaultWeights()
	}
	return c.Weights
}

// ScoringConfig configures the lead scoring weights.
type ScoringConfig struct {
	Weights scorer.Weights `yaml:"weights" mapstructure:"weights"`
}

// ScorerWeights returns the configured scoring weights, falling back to
// the production defaults when the section is absent.
func (c ScoringConfig) ScorerWeights() scorer.Weights {
	if c.Weights == (scorer.Weights{}) {
		return scorer.DefaultWeights()
	}
	return c.Weights
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("enrich.timeout_secs", 30)
	v.SetDefault("enrich.requests_per_second", 5)
	v.SetDefault("enrich.max_retries", 3)
	v.SetDefault("jobs.default_batch_size", 10)
	v.SetDefault("jobs.inter_chunk_delay_secs", 2)
	v.SetDefault("similarity.threshold", 75)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the configuration for a given run mode. Modes:
// "store" (anything touching the database), "enrich" (batch enrichment),
// "serve" (HTTP API).
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "store":
		requireStore()
	case "enrich":
		requireStore()
		if c.Enrich.BaseURL == "" {
			problems = append(problems, "enrich.base_url is required")
		}
		if c.Jobs.DefaultBatchSize < 1 || c.Jobs.DefaultBatchSize > 1000 {
			problems = append(problems, "jobs.default_batch_size must be between 1 and 1000")
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 100 {
			problems = append(problems, "similarity.threshold must be in (0, 100]")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
