package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/omback/omback/internal/storage"
)

// Config holds all runtime configuration. It is loaded once at startup
// and passed explicitly into the components that need it.
type Config struct {
	ModelsDir  string `envconfig:"OLLAMA_MODELS"`
	BackupPath string `envconfig:"OLLAMA_BACKUP_PATH"`

	Storage string `envconfig:"OMBACK_STORAGE" default:"local"`

	S3Bucket    string `envconfig:"OMBACK_S3_BUCKET"`
	S3Region    string `envconfig:"OMBACK_S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"OMBACK_S3_ENDPOINT"`
	S3AccessKey string `envconfig:"OMBACK_S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"OMBACK_S3_SECRET_KEY"`

	GCSBucket  string `envconfig:"OMBACK_GCS_BUCKET"`
	GCSProject string `envconfig:"OMBACK_GCS_PROJECT"`
	GCSCreds   string `envconfig:"OMBACK_GCS_CREDS"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	return &cfg, nil
}

// Validate checks the parts of the configuration every command depends
// on. Storage-backend specific settings are validated in StorageConfig.
func (c *Config) Validate() error {
	if c.ModelsDir == "" {
		return ErrModelsDirNotSet
	}
	if c.BackupPath == "" {
		return ErrBackupPathNotSet
	}

	info, err := os.Stat(c.ModelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrModelsDirMissing, c.ModelsDir)
		}
		return fmt.Errorf("failed to stat models directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrModelsDirNotDir, c.ModelsDir)
	}

	return nil
}

// StorageConfig maps the configuration onto a storage backend config.
func (c *Config) StorageConfig() (*storage.Config, error) {
	cfg := &storage.Config{
		Type: c.Storage,
	}

	switch c.Storage {
	case "local":
		cfg.Local = &storage.LocalConfig{
			BasePath: c.BackupPath,
		}
	case "s3":
		if c.S3Bucket == "" {
			return nil, fmt.Errorf("%w: OMBACK_S3_BUCKET is required for s3 storage", ErrStorageConfig)
		}
		cfg.S3 = &storage.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		}
	case "gcs":
		if c.GCSBucket == "" {
			return nil, fmt.Errorf("%w: OMBACK_GCS_BUCKET is required for gcs storage", ErrStorageConfig)
		}
		cfg.GCS = &storage.GCSConfig{
			Bucket:      c.GCSBucket,
			ProjectID:   c.GCSProject,
			Credentials: c.GCSCreds,
		}
	default:
		return nil, fmt.Errorf("%w: unsupported storage type %q", ErrStorageConfig, c.Storage)
	}

	return cfg, nil
}
