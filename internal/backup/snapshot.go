package backup

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/omback/omback/internal/storage"
)

// ListSnapshots prints all stored backups grouped by name.
func (c *Client) ListSnapshots(ctx context.Context) error {
	snapshotStorage := storage.NewSnapshotStorage(c.storage)
	snapshots, err := snapshotStorage.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(snapshots) == 0 {
		fmt.Println("No backups found")
		return nil
	}

	fmt.Printf("Model Store Backups:\n\n")
	fmt.Printf("%-30s %-20s %-10s %-8s %-10s %s\n", "BACKUP NAME", "LATEST VERSION", "SIZE", "FILES", "VERSIONS", "MODEL")
	fmt.Printf("%-30s %-20s %-10s %-8s %-10s %s\n", strings.Repeat("-", 30), strings.Repeat("-", 20), strings.Repeat("-", 10), strings.Repeat("-", 8), strings.Repeat("-", 10), strings.Repeat("-", 20))

	for _, snapshot := range snapshots {
		created := snapshot.CreatedAt.Format("2006-01-02 15:04:05")
		model := snapshot.Model
		if model == "" {
			model = "(entire store)"
		}

		fmt.Printf("%-30s %-20s %-10s %-8d %-10d %s\n",
			snapshot.Name, created,
			humanize.Bytes(uint64(snapshot.Size)),
			snapshot.FileCount, snapshot.VersionCount, model)
	}

	return nil
}

// GetSnapshotInfo prints detailed information about a backup.
func (c *Client) GetSnapshotInfo(ctx context.Context, nameOrVersioned string) error {
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

	fmt.Printf("Backup: %s\n", backup.Metadata.Name)
	fmt.Printf("Created: %s\n", backup.Metadata.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Size: %s\n", humanize.Bytes(uint64(backup.Metadata.Size)))
	fmt.Printf("Type: %s\n", backup.Metadata.Type)
	fmt.Printf("Files: %d\n", backup.Metadata.FileCount)
	if backup.Metadata.SkippedCount > 0 {
		fmt.Printf("Skipped: %d\n", backup.Metadata.SkippedCount)
	}
	if backup.Metadata.Model != "" {
		fmt.Printf("Model: %s\n", backup.Metadata.Model)
	}
	if backup.Metadata.SourceDir != "" {
		fmt.Printf("Source: %s\n", backup.Metadata.SourceDir)
	}
	if backup.Metadata.Checksum != "" {
		fmt.Printf("Checksum: sha256:%s\n", backup.Metadata.Checksum)
	}
	if backup.Metadata.Description != "" {
		fmt.Printf("Description: %s\n", backup.Metadata.Description)
	}

	return nil
}

// ListSnapshotVersions prints all versions of one backup name.
func (c *Client) ListSnapshotVersions(ctx context.Context, name string) error {
	snapshotStorage := storage.NewSnapshotStorage(c.storage)
	versions, err := snapshotStorage.ListVersions(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	if len(versions) == 0 {
		fmt.Printf("No versions found for backup '%s'\n", name)
		return nil
	}

	fmt.Printf("Versions for backup '%s':\n\n", name)
	fmt.Printf("%-20s %-20s %-10s %-8s %s\n", "VERSION", "CREATED", "SIZE", "FILES", "DESCRIPTION")
	fmt.Printf("%-20s %-20s %-10s %-8s %s\n", strings.Repeat("-", 20), strings.Repeat("-", 20), strings.Repeat("-", 10), strings.Repeat("-", 8), strings.Repeat("-", 20))

	for _, version := range versions {
		created := version.CreatedAt.Format("2006-01-02 15:04:05")
		description := version.Description
		if description == "" {
			description = "-"
		}

		fmt.Printf("%-20s %-20s %-10s %-8d %s\n",
			version.Version, created,
			humanize.Bytes(uint64(version.Size)),
			version.FileCount, description)
	}

	return nil
}

// DeleteSnapshot deletes backups with confirmation.
func (c *Client) DeleteSnapshot(ctx context.Context, nameOrVersioned string, force bool) error {
	snapshotStorage := storage.NewSnapshotStorage(c.storage)

	isVersioned := strings.Contains(nameOrVersioned, "@")

	if !force {
		if isVersioned {
			fmt.Printf("This will permanently delete the specific version: %s\n", nameOrVersioned)
		} else {
			versions, err := snapshotStorage.ListVersions(ctx, nameOrVersioned)
			if err != nil {
				return fmt.Errorf("failed to check versions: %w", err)
			}
			if len(versions) == 0 {
				return fmt.Errorf("no backups found with name '%s'", nameOrVersioned)
			}
			fmt.Printf("This will permanently delete ALL %d version(s) of backup '%s'\n", len(versions), nameOrVersioned)
		}

		if !confirm() {
			fmt.Println("Delete cancelled")
			return nil
		}
	}

	if err := snapshotStorage.DeleteSnapshot(ctx, nameOrVersioned); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}

	fmt.Printf("Backup deleted: %s\n", nameOrVersioned)
	return nil
}

// Prune deletes all but the newest keep versions of a backup name.
func (c *Client) Prune(ctx context.Context, name string, keep int, force bool) error {
	snapshotStorage := storage.NewSnapshotStorage(c.storage)

	versions, err := snapshotStorage.ListVersions(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}
	if len(versions) <= keep {
		fmt.Printf("Nothing to prune: %d version(s), keeping %d\n", len(versions), keep)
		return nil
	}

	if !force {
		fmt.Printf("This will delete %d of %d version(s) of backup '%s', keeping the newest %d\n",
			len(versions)-keep, len(versions), name, keep)
		if !confirm() {
			fmt.Println("Prune cancelled")
			return nil
		}
	}

	pruned, err := snapshotStorage.PruneVersions(ctx, name, keep)
	if err != nil {
		return fmt.Errorf("failed to prune backups: %w", err)
	}

	for _, version := range pruned {
		fmt.Printf("Deleted version: %s@%s\n", name, version.Version)
	}
	return nil
}

func confirm() bool {
	fmt.Print("Continue? (y/N): ")
	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		response = "N"
	}
	return strings.ToLower(response) == "y"
}
