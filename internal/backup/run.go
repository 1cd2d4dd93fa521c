package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/omback/omback/internal/archive"
	"github.com/omback/omback/internal/manifest"
	"github.com/omback/omback/internal/storage"
)

// Run archives the model store and stores the result, returning the
// versioned ID of the stored backup. With a non-empty modelRef only the
// manifest and blobs of that model are archived.
func (c *Client) Run(ctx context.Context, name, modelRef string) (string, error) {
	backupType := "model-store-backup"
	opts := archive.Options{
		Source: c.cfg.ModelsDir,
		// Building the archive next to its final location keeps the
		// whole run on the destination filesystem for local storage.
		WorkDir: c.cfg.BackupPath,
	}

	if modelRef != "" {
		model, err := manifest.Resolve(c.cfg.ModelsDir, modelRef)
		if err != nil {
			return "", err
		}
		opts.Only = model.Paths()
		backupType = "model-backup"
		if name == "" {
			name = modelRef
		}
		c.logger.Info("backing up single model",
			zap.String("model", model.Name),
			zap.Int("blobs", len(model.BlobPaths)),
			zap.String("size", humanize.Bytes(uint64(model.Size))))
	}
	if name == "" {
		name = DefaultName
	}

	archiver, err := archive.New(opts, c.logger)
	if err != nil {
		return "", err
	}

	var spinner *IndeterminateProgress
	if !c.quiet {
		spinner = NewIndeterminateProgress("Compressing model files")
	}

	summary, err := archiver.Create(ctx)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if err := os.Remove(summary.ArchivePath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove archive temp file", zap.Error(err))
		}
	}()

	checksum, err := fileSHA256(summary.ArchivePath)
	if err != nil {
		return "", err
	}

	archiveFile, err := os.Open(summary.ArchivePath) // #nosec G304 - archiver-owned temp path
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		if err := archiveFile.Close(); err != nil {
			c.logger.Warn("failed to close archive file", zap.Error(err))
		}
	}()

	var dataReader io.Reader = archiveFile
	var progress *ProgressReader
	if !c.quiet && summary.ArchiveBytes > 0 {
		progress = NewProgressReader(archiveFile, summary.ArchiveBytes, "Storing backup")
		dataReader = progress
	}

	snapshotStorage := storage.NewSnapshotStorage(c.storage)
	id, err := snapshotStorage.StoreSnapshot(ctx, name, &storage.Backup{
		Metadata: storage.BackupMetadata{
			Type:         backupType,
			Size:         summary.ArchiveBytes,
			SourceDir:    c.cfg.ModelsDir,
			Model:        modelRef,
			FileCount:    summary.FileCount,
			SkippedCount: len(summary.Skipped),
			Checksum:     checksum,
			Description:  fmt.Sprintf("Backup of %s", c.cfg.ModelsDir),
		},
		DataReader: dataReader,
	})
	if progress != nil {
		if closeErr := progress.Close(); closeErr != nil {
			c.logger.Warn("failed to close progress reader", zap.Error(closeErr))
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to store backup: %w", err)
	}

	c.logger.Info("backup stored",
		zap.String("id", id),
		zap.Int("files", summary.FileCount),
		zap.Int("skipped", len(summary.Skipped)),
		zap.Int64("bytes_in", summary.TotalBytes),
		zap.Int64("bytes_out", summary.ArchiveBytes))

	if !c.quiet {
		fmt.Printf("Backup created: %s (%d files, %s -> %s)\n",
			id, summary.FileCount,
			humanize.Bytes(uint64(summary.TotalBytes)),
			humanize.Bytes(uint64(summary.ArchiveBytes)))
		for _, skipped := range summary.Skipped {
			fmt.Printf("  skipped %s (%s)\n", skipped.Path, skipped.Reason)
		}
	}

	return id, nil
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path) // #nosec G304 - archiver-owned temp path
	if err != nil {
		return "", fmt.Errorf("failed to open archive for checksum: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to checksum archive: %w", err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
