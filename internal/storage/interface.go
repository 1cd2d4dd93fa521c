package storage

import (
	"context"
	"io"
	"time"
)

// Backup couples archive metadata with the archive byte stream.
type Backup struct {
	ID         string
	Metadata   BackupMetadata
	DataReader io.Reader
}

// BackupMetadata describes a stored model-store archive.
type BackupMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	Version      string    `json:"version,omitempty"`
	SourceDir    string    `json:"source_dir,omitempty"`
	Model        string    `json:"model,omitempty"`
	FileCount    int       `json:"file_count,omitempty"`
	SkippedCount int       `json:"skipped_count,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	Description  string    `json:"description,omitempty"`
}

// Backend stores and retrieves archives by ID.
type Backend interface {
	Store(ctx context.Context, backup *Backup) error
	Retrieve(ctx context.Context, id string) (*Backup, error)
	List(ctx context.Context) ([]BackupMetadata, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

type Config struct {
	Type  string
	Local *LocalConfig
	GCS   *GCSConfig
	S3    *S3Config
}

type LocalConfig struct {
	BasePath string
}

type GCSConfig struct {
	Bucket      string
	ProjectID   string
	Credentials string
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}
