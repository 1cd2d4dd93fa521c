package backup

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/omback/omback/internal/archive"
	"github.com/omback/omback/internal/storage"
)

// Verify retrieves a stored backup and checks every entry against the
// checksum manifest embedded in the archive. Nothing is extracted to
// the filesystem beyond a temporary copy of the archive itself.
func (c *Client) Verify(ctx context.Context, nameOrVersioned string) error {
	snapshotStorage := storage.NewSnapshotStorage(c.storage)
	backup, err := snapshotStorage.GetSnapshot(ctx, nameOrVersioned)
	if err != nil {
		return fmt.Errorf("failed to retrieve backup: %w", err)
	}
	defer func() {
		if closer, ok := backup.DataReader.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}()

	tempFile, err := os.CreateTemp("", "omback-verify-*"+archive.Extension)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(tempFile.Name()); err != nil {
			c.logger.Warn("failed to remove temp file", zap.Error(err))
		}
	}()

	var writer io.Writer = tempFile
	var progress *ProgressWriter
	if !c.quiet && backup.Metadata.Size > 0 {
		progress = NewProgressWriter(tempFile, backup.Metadata.Size, "Fetching backup")
		writer = progress
	}

	if _, err := io.Copy(writer, backup.DataReader); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("failed to fetch backup data: %w", err)
	}
	if progress != nil {
		if err := progress.Close(); err != nil {
			c.logger.Warn("failed to close progress writer", zap.Error(err))
		}
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	result, err := archive.Verify(tempFile.Name())
	if err != nil {
		return fmt.Errorf("failed to verify archive: %w", err)
	}

	if !result.OK() {
		for _, mismatch := range result.Mismatches {
			fmt.Printf("FAILED %s: %s\n", mismatch.Path, mismatch.Reason)
		}
		return fmt.Errorf("verification failed: %d of %d entries bad", len(result.Mismatches), result.Entries)
	}

	fmt.Printf("Backup %s verified: %d entries OK\n", nameOrVersioned, result.Entries)
	return nil
}
