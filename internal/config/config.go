// Package config loads runtime settings from an optional YAML file, an
// optional .env file and EUROAIP_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage selects and configures the relational backend.
type Storage struct {
	Driver      string        `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	MaxOpen     int           `yaml:"max_open_conns"`
	MaxIdle     int           `yaml:"max_idle_conns"`
	MaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	// StandardizedOnly persists only AIP entries carrying a canonical field.
	StandardizedOnly bool `yaml:"standardized_only"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// S3 configures the S3 blob backend.
type S3 struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Blob selects the snapshot archive backend.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// NATS configures the change feed. An empty URL disables publishing.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Config is the complete runtime configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
	Blob    Blob    `yaml:"blob"`
	NATS    NATS    `yaml:"nats"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Storage: Storage{Driver: "sqlite", SQLitePath: "./euroaip.db"},
		Log:     Log{Level: "info", Format: "text"},
		Blob:    Blob{Driver: "fs", FSRoot: "./snapshots"},
		NATS:    NATS{SubjectPrefix: "euroaip.changes"},
	}
}

// Load reads path when it is non-empty, then a .env file in the working
// directory when present, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("EUROAIP_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("EUROAIP_SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("EUROAIP_POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("EUROAIP_LOG_LEVEL", &cfg.Log.Level)
	str("EUROAIP_LOG_FORMAT", &cfg.Log.Format)
	str("EUROAIP_BLOB_DRIVER", &cfg.Blob.Driver)
	str("EUROAIP_BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("EUROAIP_BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("EUROAIP_BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("EUROAIP_BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	str("EUROAIP_BLOB_S3_PREFIX", &cfg.Blob.S3.Prefix)
	str("EUROAIP_NATS_URL", &cfg.NATS.URL)
	str("EUROAIP_NATS_SUBJECT", &cfg.NATS.SubjectPrefix)

	if v, ok := lookup("EUROAIP_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse EUROAIP_BLOB_S3_PATH_STYLE: %w", err)
		}
		cfg.Blob.S3.UsePathStyle = b
	}
	if v, ok := lookup("EUROAIP_STANDARDIZED_ONLY"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse EUROAIP_STANDARDIZED_ONLY: %w", err)
		}
		cfg.Storage.StandardizedOnly = b
	}
	return nil
}

// Validate rejects unknown drivers and formats.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory", "s3":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3.Bucket == "" {
		return errors.New("s3 blob driver requires a bucket")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
