package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env carries deployment overrides that never belong in config files.
type Env struct {
	DatabaseDSN string `envconfig:"DATABASE_DSN"`
	RedisURI    string `envconfig:"REDIS_URI"`
	JWTSecret   string `envconfig:"JWT_SECRET"`
}

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process("TW", &env); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	return &env, nil
}

// Override applies non-empty env values on top of a file-loaded config.
func (e *Env) Override(db *DatabaseConfig, redis *RedisConfig) {
	if e.DatabaseDSN != "" {
		db.DSN = e.DatabaseDSN
	}
	if e.RedisURI != "" {
		redis.URI = e.RedisURI
	}
}
