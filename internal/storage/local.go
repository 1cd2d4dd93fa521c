package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const archiveExt = ".tar.zst"

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(config *LocalConfig) (*LocalStorage, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path is required for local storage")
	}

	if err := os.MkdirAll(config.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath: config.BasePath,
	}, nil
}

// Store writes the archive under a .partial name and renames it into
// place once the copy completed, so an interrupted run never leaves a
// truncated archive in the destination.
func (l *LocalStorage) Store(ctx context.Context, backup *Backup) error {
	backupPath := filepath.Join(l.basePath, backup.ID)
	partialPath := backupPath + archiveExt + ".partial"

	dataFile, err := os.Create(partialPath) // #nosec G304 - controlled backup storage path
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}

	if _, err := io.Copy(dataFile, backup.DataReader); err != nil {
		_ = dataFile.Close()
		l.remove(partialPath)
		return fmt.Errorf("failed to write backup data: %w", err)
	}
	if err := dataFile.Sync(); err != nil {
		_ = dataFile.Close()
		l.remove(partialPath)
		return fmt.Errorf("failed to sync backup data: %w", err)
	}
	if err := dataFile.Close(); err != nil {
		l.remove(partialPath)
		return fmt.Errorf("failed to close backup file: %w", err)
	}

	if err := os.Rename(partialPath, backupPath+archiveExt); err != nil {
		l.remove(partialPath)
		return fmt.Errorf("failed to finalize backup file: %w", err)
	}

	metadataFile, err := os.Create(backupPath + ".json") // #nosec G304 - controlled backup storage path
	if err != nil {
		l.remove(backupPath + archiveExt)
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer func() {
		if err := metadataFile.Close(); err != nil {
			fmt.Printf("Warning: failed to close metadata file: %v\n", err)
		}
	}()

	if err := json.NewEncoder(metadataFile).Encode(backup.Metadata); err != nil {
		l.remove(backupPath + archiveExt)
		l.remove(backupPath + ".json")
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

func (l *LocalStorage) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: failed to remove %s: %v\n", path, err)
	}
}

func (l *LocalStorage) Retrieve(ctx context.Context, id string) (*Backup, error) {
	backupPath := filepath.Join(l.basePath, id)

	metadataFile, err := os.Open(backupPath + ".json") // #nosec G304 - controlled backup storage path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("backup not found: %s", id)
		}
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer func() {
		if err := metadataFile.Close(); err != nil {
			fmt.Printf("Warning: failed to close metadata file: %v\n", err)
		}
	}()

	var metadata BackupMetadata
	if err := json.NewDecoder(metadataFile).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	dataFile, err := os.Open(backupPath + archiveExt) // #nosec G304 - controlled backup storage path
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}

	return &Backup{
		ID:         id,
		Metadata:   metadata,
		DataReader: dataFile,
	}, nil
}

func (l *LocalStorage) List(ctx context.Context) ([]BackupMetadata, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupMetadata
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			metadataPath := filepath.Join(l.basePath, entry.Name())

			metadataFile, err := os.Open(metadataPath) // #nosec G304 - controlled backup storage path
			if err != nil {
				continue
			}

			var metadata BackupMetadata
			if err := json.NewDecoder(metadataFile).Decode(&metadata); err != nil {
				if closeErr := metadataFile.Close(); closeErr != nil {
					fmt.Printf("Warning: failed to close metadata file: %v\n", closeErr)
				}
				continue
			}
			if err := metadataFile.Close(); err != nil {
				fmt.Printf("Warning: failed to close metadata file: %v\n", err)
			}

			backups = append(backups, metadata)
		}
	}

	return backups, nil
}

func (l *LocalStorage) Delete(ctx context.Context, id string) error {
	backupPath := filepath.Join(l.basePath, id)

	if err := os.Remove(backupPath + archiveExt); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove backup file: %w", err)
	}

	if err := os.Remove(backupPath + ".json"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove metadata file: %w", err)
	}

	return nil
}

func (l *LocalStorage) Exists(ctx context.Context, id string) (bool, error) {
	backupPath := filepath.Join(l.basePath, id)

	if _, err := os.Stat(backupPath + ".json"); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check backup existence: %w", err)
	}

	return true, nil
}
