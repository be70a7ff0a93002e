package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Query      QueryConfig      `mapstructure:"query"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type RateLimitConfig struct {
	Capacity       int           `mapstructure:"capacity"`
	RefillTokens   int           `mapstructure:"refill_tokens"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
	FanOut  int      `mapstructure:"fan_out"`
}

type RedisConfig struct {
	Address    string        `mapstructure:"address"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	PoolSize   int           `mapstructure:"pool_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ProjectionConfig struct {
	PresenceTTL  time.Duration `mapstructure:"presence_ttl"`
	UniquesTTL   time.Duration `mapstructure:"uniques_ttl"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
}

type QueryConfig struct {
	DefaultMatchID string `mapstructure:"default_match_id"`
	DefaultLimit   int    `mapstructure:"default_limit"`
}

var AppConfig Config

// LoadConfig reads the YAML config file, applies defaults and environment
// overrides, and installs the result as the process-wide AppConfig.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("ratelimit.capacity", 100)
	viper.SetDefault("ratelimit.refill_tokens", 100)
	viper.SetDefault("ratelimit.refill_interval", time.Second)
	viper.SetDefault("kafka.topic", "game-actions")
	viper.SetDefault("kafka.group_id", "projector")
	viper.SetDefault("kafka.fan_out", 3)
	viper.SetDefault("projection.presence_ttl", 60*time.Second)
	viper.SetDefault("projection.uniques_ttl", time.Hour)
	viper.SetDefault("projection.store_timeout", 5*time.Second)
	viper.SetDefault("query.default_match_id", "match-1")
	viper.SetDefault("query.default_limit", 10)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &AppConfig, nil
}
