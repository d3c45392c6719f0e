package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	APIPort     string `env:"API_PORT" envDefault:"8080"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	// ImportBatchSize is the number of input rows whose facts are written per bulk call.
	ImportBatchSize int `env:"IMPORT_BATCH_SIZE" envDefault:"1000"`
	// RelationWorkers bounds the relation generation fan-out. Zero means DBMaxConns.
	RelationWorkers int           `env:"RELATION_WORKERS" envDefault:"0"`
	RelationTimeout time.Duration `env:"RELATION_TIMEOUT" envDefault:"10m"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadEnv loads the given .env files that exist, in order. Missing files are ignored.
func LoadEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}

	if len(existing) == 0 {
		return 0, nil
	}

	return len(existing), godotenv.Load(existing...)
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.RelationWorkers == 0 {
		cfg.RelationWorkers = int(cfg.DBMaxConns)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all tunables hold usable values.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	if c.DBMaxConns <= 0 {
		return fmt.Errorf("invalid value for DB_MAX_CONNS: must be positive, got %d", c.DBMaxConns)
	}

	if c.ImportBatchSize <= 0 {
		return fmt.Errorf("invalid value for IMPORT_BATCH_SIZE: must be positive, got %d", c.ImportBatchSize)
	}

	if c.RelationWorkers <= 0 {
		return fmt.Errorf("invalid value for RELATION_WORKERS: must be positive, got %d", c.RelationWorkers)
	}

	if c.RelationTimeout <= 0 {
		return fmt.Errorf("invalid value for RELATION_TIMEOUT: must be positive, got %s", c.RelationTimeout)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid value for MAX_UPLOAD_BYTES: must be positive, got %d", c.MaxUploadBytes)
	}

	return nil
}
