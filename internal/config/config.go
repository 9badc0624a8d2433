package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Recognition RecognitionConfig `yaml:"recognition" mapstructure:"recognition"`
	Gentext     GentextConfig     `yaml:"gentext" mapstructure:"gentext"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RecognitionConfig holds the recognition provider endpoints. Document and
// audio artifacts go to separate services sharing one credential.
type RecognitionConfig struct {
	DocScanURL  string `yaml:"docscan_url" mapstructure:"docscan_url"`
	SpeechURL   string `yaml:"speech_url" mapstructure:"speech_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GentextConfig holds generative-text provider settings.
type GentextConfig struct {
	Key               string  `yaml:"key" mapstructure:"key"`
	Model             string  `yaml:"model" mapstructure:"model"`
	MaxTokens         int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig bounds each pipeline stage and caps provider retries.
// Retries re-send the full transcript, so they stay small and are only
// attempted for transport-level failures, never for malformed output.
type PipelineConfig struct {
	ExtractTimeoutSecs   int               `yaml:"extract_timeout_secs" mapstructure:"extract_timeout_secs"`
	StructureTimeoutSecs int               `yaml:"structure_timeout_secs" mapstructure:"structure_timeout_secs"`
	PersistTimeoutSecs   int               `yaml:"persist_timeout_secs" mapstructure:"persist_timeout_secs"`
	StructureMaxAttempts int               `yaml:"structure_max_attempts" mapstructure:"structure_max_attempts"`
	PersistMaxAttempts   int               `yaml:"persist_max_attempts" mapstructure:"persist_max_attempts"`
	Buckets              map[string]string `yaml:"buckets" mapstructure:"buckets"`
}

// ExtractTimeout returns the extraction stage deadline.
func (c PipelineConfig) ExtractTimeout() time.Duration {
	return time.Duration(c.ExtractTimeoutSecs) * time.Second
}

// StructureTimeout returns the structuring stage deadline.
func (c PipelineConfig) StructureTimeout() time.Duration {
	return time.Duration(c.StructureTimeoutSecs) * time.Second
}

// PersistTimeout returns the persistence stage deadline.
func (c PipelineConfig) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutSecs) * time.Second
}

// ServerConfig configures the trigger/query HTTP server.
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
	v.SetEnvPrefix("CAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "capture.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("recognition.timeout_secs", 60)
	v.SetDefault("gentext.model", "claude-haiku-4-5-20251001")
	v.SetDefault("gentext.max_tokens", 2048)
	v.SetDefault("gentext.requests_per_second", 2.0)
	v.SetDefault("gentext.timeout_secs", 90)
	v.SetDefault("pipeline.extract_timeout_secs", 120)
	v.SetDefault("pipeline.structure_timeout_secs", 120)
	v.SetDefault("pipeline.persist_timeout_secs", 15)
	v.SetDefault("pipeline.structure_max_attempts", 2)
	v.SetDefault("pipeline.persist_max_attempts", 3)
	v.SetDefault("pipeline.buckets", map[string]string{
		"phc-document-uploads": "document",
		"phc-audio-uploads":    "audio",
	})

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
