package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("OLLAMA_MODELS", "/srv/ollama/models")
	t.Setenv("OLLAMA_BACKUP_PATH", "/srv/backups")
	t.Setenv("OMBACK_STORAGE", "s3")
	t.Setenv("OMBACK_S3_BUCKET", "my-backups")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/ollama/models", cfg.ModelsDir)
	assert.Equal(t, "/srv/backups", cfg.BackupPath)
	assert.Equal(t, "s3", cfg.Storage)
	assert.Equal(t, "my-backups", cfg.S3Bucket)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OMBACK_STORAGE", "")
	t.Setenv("OMBACK_S3_REGION", "")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("OMBACK_STORAGE")
	os.Unsetenv("OMBACK_S3_REGION")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Storage)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	modelsDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid",
			cfg:  Config{ModelsDir: modelsDir, BackupPath: t.TempDir()},
		},
		{
			name:    "models dir not set",
			cfg:     Config{BackupPath: "/backups"},
			wantErr: ErrModelsDirNotSet,
		},
		{
			name:    "backup path not set",
			cfg:     Config{ModelsDir: modelsDir},
			wantErr: ErrBackupPathNotSet,
		},
		{
			name:    "models dir missing",
			cfg:     Config{ModelsDir: filepath.Join(modelsDir, "nope"), BackupPath: "/backups"},
			wantErr: ErrModelsDirMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ModelsDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	cfg := Config{ModelsDir: file, BackupPath: "/backups"}
	assert.ErrorIs(t, cfg.Validate(), ErrModelsDirNotDir)
}

func TestStorageConfig_Local(t *testing.T) {
	cfg := Config{Storage: "local", BackupPath: "/backups"}

	sc, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "local", sc.Type)
	require.NotNil(t, sc.Local)
	assert.Equal(t, "/backups", sc.Local.BasePath)
}

func TestStorageConfig_S3(t *testing.T) {
	cfg := Config{
		Storage:     "s3",
		S3Bucket:    "my-backups",
		S3Region:    "eu-west-1",
		S3Endpoint:  "http://minio:9000",
		S3AccessKey: "key",
		S3SecretKey: "secret",
	}

	sc, err := cfg.StorageConfig()
	require.NoError(t, err)
	require.NotNil(t, sc.S3)
	assert.Equal(t, "my-backups", sc.S3.Bucket)
	assert.Equal(t, "eu-west-1", sc.S3.Region)
	assert.Equal(t, "http://minio:9000", sc.S3.Endpoint)
}

func TestStorageConfig_S3MissingBucket(t *testing.T) {
	cfg := Config{Storage: "s3"}

	_, err := cfg.StorageConfig()
	assert.ErrorIs(t, err, ErrStorageConfig)
}

func TestStorageConfig_GCSMissingBucket(t *testing.T) {
	cfg := Config{Storage: "gcs"}

	_, err := cfg.StorageConfig()
	assert.ErrorIs(t, err, ErrStorageConfig)
}

func TestStorageConfig_UnsupportedType(t *testing.T) {
	cfg := Config{Storage: "ftp"}

	_, err := cfg.StorageConfig()
	assert.ErrorIs(t, err, ErrStorageConfig)
}
