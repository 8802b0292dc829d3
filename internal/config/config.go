package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds everything both binaries need: listen address, Redis and
// Postgres coordinates, and the matchmaking cadence knobs.
type Config struct {
	Port string `mapstructure:"PORT"`

	RedisAddress  string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost     string `mapstructure:"PG_HOST"`
	PostgresPort     string `mapstructure:"PG_PORT"`
	PostgresDatabase string `mapstructure:"PG_DATABASE"`

	DrainInterval time.Duration `mapstructure:"DRAIN_INTERVAL"`
	PollInterval  time.Duration `mapstructure:"POLL_INTERVAL"`
	ChatLogLimit  int           `mapstructure:"CHAT_LOG_LIMIT"`
}

// Load reads configuration from an app.env file in path (if present) and
// from the environment. Environment variables win.
func Load(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("REDIS_ADDRESS", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("DRAIN_INTERVAL", 5*time.Second)
	viper.SetDefault("POLL_INTERVAL", 10*time.Second)
	viper.SetDefault("CHAT_LOG_LIMIT", 100)

	if err = viper.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
