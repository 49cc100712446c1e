package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	DBDriver   string `yaml:"db_driver" env:"DB_DRIVER" env-default:"mysql"`
	DBHost     string `yaml:"db_host" env:"DB_HOST" env-default:"localhost"`
	DBPort     string `yaml:"db_port" env:"DB_PORT" env-default:"3306"`
	DBUser     string `yaml:"db_user" env:"DB_USER" env-default:"taskuser"`
	DBPassword string `yaml:"db_password" env:"DB_PASSWORD" env-default:"taskpassword"`
	DBName     string `yaml:"db_name" env:"DB_NAME" env-default:"taskflow"`

	RedisHost string `yaml:"redis_host" env:"REDIS_HOST" env-default:"localhost"`
	RedisPort string `yaml:"redis_port" env:"REDIS_PORT" env-default:"6379"`

	// CacheBackend and QueueBackend select "redis" or "memory".
	CacheBackend string `yaml:"cache_backend" env:"CACHE_BACKEND" env-default:"redis"`
	QueueBackend string `yaml:"queue_backend" env:"QUEUE_BACKEND" env-default:"redis"`
	QueueName    string `yaml:"queue_name" env:"QUEUE_NAME" env-default:"taskflow:jobs"`

	WorkerConcurrency int `yaml:"worker_concurrency" env:"WORKER_CONCURRENCY" env-default:"4"`

	SessionSecret string        `yaml:"session_secret" env:"SESSION_SECRET" env-default:"default-secret-key-change-me"`
	TokenSecret   string        `yaml:"token_secret" env:"TOKEN_SECRET" env-default:"default-token-secret-change-me"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"1h"`

	HTTPAddress string `yaml:"http_address" env:"HTTP_ADDRESS" env-default:":8080"`
	GinMode     string `yaml:"gin_mode" env:"GIN_MODE" env-default:"debug"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"INFO"`
}

// Load reads configuration from the environment, overlaid on configPath
// when that file exists.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read env: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("cannot read config %q: %w", configPath, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read env: %w", err)
		}
	}

	return &cfg, nil
}

// RedisAddr returns host:port for the Redis server.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// IsProduction reports whether gin runs in release mode.
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}
