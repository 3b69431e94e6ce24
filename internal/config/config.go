package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// RedisURL selects the shared store; empty keeps everything in memory.
	RedisURL        string `mapstructure:"redis_url"`
	RedisMaxRetries int    `mapstructure:"redis_max_retries"`

	RoomTTL          time.Duration `mapstructure:"room_ttl"`
	ChatTTL          time.Duration `mapstructure:"chat_ttl"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	ChatHistory      int           `mapstructure:"chat_history"`
	RoomIdle         time.Duration `mapstructure:"room_idle"`
	ChatRateLimit    int           `mapstructure:"chat_rate_limit"`
	ChatRateInterval time.Duration `mapstructure:"chat_rate_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("redis_max_retries", 3)
	v.SetDefault("room_ttl", "30m")
	v.SetDefault("chat_ttl", "10m")
	v.SetDefault("session_ttl", "168h")
	v.SetDefault("chat_history", 100)
	v.SetDefault("room_idle", "2m")
	v.SetDefault("chat_rate_limit", 5)
	v.SetDefault("chat_rate_interval", "3s")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) and lets
// QUORIDOR_* environment variables override any key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("quoridor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Str("static", cfg.StaticPath).Bool("redis", cfg.RedisURL != "").Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Secret) < 32 {
		return fmt.Errorf("secret must be at least 32 bytes, got %d", len(c.Secret))
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RoomTTL <= 0 || c.ChatTTL <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("ttls must be positive")
	}
	return nil
}
