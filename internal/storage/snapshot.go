package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SnapshotStorage layers timestamped versioning on top of a Backend.
// Every stored archive gets an ID of the form name@20060102-150405, so
// repeated runs never collide with earlier backups.
type SnapshotStorage struct {
	backend Backend
}

// NewSnapshotStorage creates a version-aware storage layer.
func NewSnapshotStorage(backend Backend) *SnapshotStorage {
	return &SnapshotStorage{
		backend: backend,
	}
}

// StoreSnapshot stores an archive with automatic versioning and returns
// the versioned ID it was stored under.
func (s *SnapshotStorage) StoreSnapshot(ctx context.Context, name string, backup *Backup) (string, error) {
	if name == "" {
		return "", fmt.Errorf("backup name is required")
	}

	name = cleanSnapshotName(name)

	timestamp := time.Now().Format("20060102-150405")
	versionedID := fmt.Sprintf("%s@%s", name, timestamp)

	backup.Metadata.Name = name
	backup.Metadata.CreatedAt = time.Now()
	backup.Metadata.Version = timestamp

	snapshotBackup := &Backup{
		ID:         versionedID,
		Metadata:   backup.Metadata,
		DataReader: backup.DataReader,
	}
	snapshotBackup.Metadata.ID = versionedID

	if err := s.backend.Store(ctx, snapshotBackup); err != nil {
		return "", err
	}
	return versionedID, nil
}

// GetSnapshot retrieves an archive by name (latest version) or by
// name@version.
func (s *SnapshotStorage) GetSnapshot(ctx context.Context, nameOrVersioned string) (*Backup, error) {
	nameOrVersioned = cleanSnapshotName(nameOrVersioned)

	if strings.Contains(nameOrVersioned, "@") {
		return s.backend.Retrieve(ctx, nameOrVersioned)
	}

	latestVersion, err := s.GetLatestVersion(ctx, nameOrVersioned)
	if err != nil {
		return nil, err
	}

	versionedID := fmt.Sprintf("%s@%s", nameOrVersioned, latestVersion)
	return s.backend.Retrieve(ctx, versionedID)
}

// SnapshotInfo summarizes all versions of one backup name.
type SnapshotInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	Description  string    `json:"description,omitempty"`
	SourceDir    string    `json:"source_dir,omitempty"`
	Model        string    `json:"model,omitempty"`
	FileCount    int       `json:"file_count,omitempty"`
	Version      string    `json:"version,omitempty"`
	VersionCount int       `json:"version_count,omitempty"`
}

// VersionInfo describes one version of a backup name.
type VersionInfo struct {
	Version     string    `json:"version"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	FileCount   int       `json:"file_count,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ListSnapshots returns all backups grouped by name with version info.
func (s *SnapshotStorage) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	backups, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	snapshotGroups := make(map[string][]BackupMetadata)
	for _, backup := range backups {
		if !strings.Contains(backup.ID, "@") {
			continue
		}

		parts := strings.SplitN(backup.ID, "@", 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[0]

		snapshotGroups[name] = append(snapshotGroups[name], backup)
	}

	var snapshots []SnapshotInfo
	for name, versions := range snapshotGroups {
		latestBackup := versions[0]
		for _, v := range versions {
			if v.CreatedAt.After(latestBackup.CreatedAt) {
				latestBackup = v
			}
		}

		snapshots = append(snapshots, SnapshotInfo{
			Name:         name,
			Size:         latestBackup.Size,
			CreatedAt:    latestBackup.CreatedAt,
			Description:  latestBackup.Description,
			SourceDir:    latestBackup.SourceDir,
			Model:        latestBackup.Model,
			FileCount:    latestBackup.FileCount,
			Version:      latestBackup.Version,
			VersionCount: len(versions),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})

	return snapshots, nil
}

// ListVersions returns all versions of a backup name, newest first.
func (s *SnapshotStorage) ListVersions(ctx context.Context, name string) ([]VersionInfo, error) {
	name = cleanSnapshotName(name)

	backups, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}

	var versions []VersionInfo
	for _, backup := range backups {
		if strings.HasPrefix(backup.ID, name+"@") {
			parts := strings.SplitN(backup.ID, "@", 2)
			if len(parts) == 2 {
				versions = append(versions, VersionInfo{
					Version:     parts[1],
					Size:        backup.Size,
					CreatedAt:   backup.CreatedAt,
					FileCount:   backup.FileCount,
					Description: backup.Description,
				})
			}
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.After(versions[j].CreatedAt)
	})

	return versions, nil
}

// DeleteSnapshot removes backups by name (all versions) or name@version.
func (s *SnapshotStorage) DeleteSnapshot(ctx context.Context, nameOrVersioned string) error {
	nameOrVersioned = cleanSnapshotName(nameOrVersioned)

	if strings.Contains(nameOrVersioned, "@") {
		return s.backend.Delete(ctx, nameOrVersioned)
	}

	versions, err := s.ListVersions(ctx, nameOrVersioned)
	if err != nil {
		return fmt.Errorf("failed to list versions for deletion: %w", err)
	}

	if len(versions) == 0 {
		return fmt.Errorf("no backups found with name '%s'", nameOrVersioned)
	}

	for _, version := range versions {
		versionedID := fmt.Sprintf("%s@%s", nameOrVersioned, version.Version)
		if err := s.backend.Delete(ctx, versionedID); err != nil {
			return fmt.Errorf("failed to delete version %s: %w", version.Version, err)
		}
	}

	return nil
}

// PruneVersions deletes all but the newest keep versions of a name and
// returns the versions that were removed.
func (s *SnapshotStorage) PruneVersions(ctx context.Context, name string, keep int) ([]VersionInfo, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1")
	}

	name = cleanSnapshotName(name)
	versions, err := s.ListVersions(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(versions) <= keep {
		return nil, nil
	}

	pruned := versions[keep:]
	for _, version := range pruned {
		versionedID := fmt.Sprintf("%s@%s", name, version.Version)
		if err := s.backend.Delete(ctx, versionedID); err != nil {
			return nil, fmt.Errorf("failed to delete version %s: %w", version.Version, err)
		}
	}

	return pruned, nil
}

// SnapshotExists checks if a backup exists by name or name@version.
func (s *SnapshotStorage) SnapshotExists(ctx context.Context, nameOrVersioned string) (bool, error) {
	nameOrVersioned = cleanSnapshotName(nameOrVersioned)

	if strings.Contains(nameOrVersioned, "@") {
		return s.backend.Exists(ctx, nameOrVersioned)
	}

	versions, err := s.ListVersions(ctx, nameOrVersioned)
	if err != nil {
		return false, err
	}

	return len(versions) > 0, nil
}

// GetLatestVersion returns the version string of the newest backup.
func (s *SnapshotStorage) GetLatestVersion(ctx context.Context, name string) (string, error) {
	versions, err := s.ListVersions(ctx, name)
	if err != nil {
		return "", err
	}

	if len(versions) == 0 {
		return "", fmt.Errorf("no versions found for backup '%s'", name)
	}

	return versions[0].Version, nil
}

// cleanSnapshotName ensures backup names are valid storage IDs.
func cleanSnapshotName(name string) string {
	name = strings.TrimSuffix(name, archiveExt)
	name = strings.TrimSuffix(name, ".tar.gz")

	// Model refs like "deepseek-r1:1.5b" make fine backup names once the
	// separator characters are flattened.
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, ":", "_")

	return name
}
