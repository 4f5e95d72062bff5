package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"

	CabProviderAmadeus = "amadeus"
	CabProviderMock    = "mock"
)

// Config is read once in main from the Lambda environment.
type Config struct {
	StateTable    string `mapstructure:"STATE_TABLE" validate:"required_if=MemoryBackend dynamodb"`
	ParamPrefix   string `mapstructure:"PARAM_PREFIX" validate:"required,startswith=/"`
	MemoryBackend string `mapstructure:"MEMORY_BACKEND" validate:"oneof=dynamodb redis"`

	// Redis is only used when MemoryBackend is "redis".
	RedisAddr      string `mapstructure:"REDIS_ADDR" validate:"required_if=MemoryBackend redis"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int    `mapstructure:"REDIS_DB" validate:"min=0"`
	MemoryTTLHours int    `mapstructure:"MEMORY_TTL_HOURS" validate:"min=0"`

	OpenAIModel   string `mapstructure:"OPENAI_MODEL" validate:"required"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL" validate:"required,url"`

	AmadeusBaseURL string  `mapstructure:"AMADEUS_BASE_URL" validate:"required,url"`
	AmadeusRPS     float64 `mapstructure:"AMADEUS_RPS" validate:"gt=0"`
	CabProvider    string  `mapstructure:"CAB_PROVIDER" validate:"oneof=amadeus mock"`

	DiseaseBaseURL string `mapstructure:"DISEASE_BASE_URL" validate:"required,url"`

	MaxMessageLength int    `mapstructure:"MAX_MESSAGE_LENGTH" validate:"gt=0"`
	LogLevel         string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

var defaults = map[string]any{
	"STATE_TABLE":        "",
	"PARAM_PREFIX":       "",
	"MEMORY_BACKEND":     BackendDynamoDB,
	"REDIS_ADDR":         "",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"MEMORY_TTL_HOURS":   72,
	"OPENAI_MODEL":       "gpt-4o-mini",
	"OPENAI_BASE_URL":    "https://api.openai.com/v1",
	"AMADEUS_BASE_URL":   "https://test.api.amadeus.com",
	"AMADEUS_RPS":        5.0,
	"CAB_PROVIDER":       CabProviderAmadeus,
	"DISEASE_BASE_URL":   "https://disease.sh/v3/covid-19",
	"MAX_MESSAGE_LENGTH": 500,
	"LOG_LEVEL":          "info",
}

// Load reads the environment, applies defaults and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.MemoryBackend = strings.ToLower(strings.TrimSpace(cfg.MemoryBackend))
	cfg.CabProvider = strings.ToLower(strings.TrimSpace(cfg.CabProvider))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// MemoryTTL is zero when expiry is disabled.
func (c Config) MemoryTTL() time.Duration {
	return time.Duration(c.MemoryTTLHours) * time.Hour
}

func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
