package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeVersion writes a backup with an explicit version directly through
// the backend, so tests control timestamps instead of racing the clock.
func storeVersion(t *testing.T, backend Backend, name, version, data string) {
	t.Helper()

	id := name + "@" + version
	createdAt, err := time.Parse("20060102-150405", version)
	require.NoError(t, err)

	err = backend.Store(context.Background(), &Backup{
		ID: id,
		Metadata: BackupMetadata{
			ID:        id,
			Name:      name,
			Type:      "model-store-backup",
			Size:      int64(len(data)),
			CreatedAt: createdAt,
			Version:   version,
			FileCount: 1,
		},
		DataReader: strings.NewReader(data),
	})
	require.NoError(t, err)
}

func TestSnapshotStorage_StoreSnapshotReturnsVersionedID(t *testing.T) {
	snapshots := NewSnapshotStorage(newTestLocalStorage(t))

	id, err := snapshots.StoreSnapshot(context.Background(), "models", &Backup{
		Metadata:   BackupMetadata{Type: "model-store-backup"},
		DataReader: strings.NewReader("data"),
	})
	require.NoError(t, err)

	parts := strings.SplitN(id, "@", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "models", parts[0])
	_, err = time.Parse("20060102-150405", parts[1])
	assert.NoError(t, err, "version must be a timestamp: %s", parts[1])
}

func TestSnapshotStorage_StoreSnapshotRequiresName(t *testing.T) {
	snapshots := NewSnapshotStorage(newTestLocalStorage(t))

	_, err := snapshots.StoreSnapshot(context.Background(), "", &Backup{
		DataReader: strings.NewReader("data"),
	})
	assert.Error(t, err)
}

func TestSnapshotStorage_GetSnapshotLatest(t *testing.T) {
	backend := newTestLocalStorage(t)
	snapshots := NewSnapshotStorage(backend)
	ctx := context.Background()

	storeVersion(t, backend, "models", "20250101-120000", "old")
	storeVersion(t, backend, "models", "20250301-120000", "new")
	storeVersion(t, backend, "models", "20250201-120000", "mid")

	backup, err := snapshots.GetSnapshot(ctx, "models")
	require.NoError(t, err)
	assert.Equal(t, "models@20250301-120000", backup.Metadata.ID)

	backup, err = snapshots.GetSnapshot(ctx, "models@20250101-120000")
	require.NoError(t, err)
	assert.Equal(t, "models@20250101-120000", backup.Metadata.ID)
}

func TestSnapshotStorage_ListVersionsNewestFirst(t *testing.T) {
	backend := newTestLocalStorage(t)
	snapshots := NewSnapshotStorage(backend)

	storeVersion(t, backend, "models", "20250101-120000", "a")
	storeVersion(t, backend, "models", "20250301-120000", "b")
	storeVersion(t, backend, "models", "20250201-120000", "c")
	storeVersion(t, backend, "phi3", "20250101-130000", "d")

	versions, err := snapshots.ListVersions(context.Background(), "models")
	require.NoError(t, err)
	require.Len(t, versions, 3)

	assert.Equal(t, "20250301-120000", versions[0].Version)
	assert.Equal(t, "20250201-120000", versions[1].Version)
	assert.Equal(t, "20250101-120000", versions[2].Version)
}

func TestSnapshotStorage_ListSnapshotsGroupsByName(t *testing.T) {
	backend := newTestLocalStorage(t)
	snapshots := NewSnapshotStorage(backend)

	storeVersion(t, backend, "models", "20250101-120000", "a")
	storeVersion(t, backend, "models", "20250201-120000", "bb")
	storeVersion(t, backend, "phi3", "20250101-130000", "c")

	infos, err := snapshots.ListSnapshots(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Sorted by name.
	assert.Equal(t, "models", infos[0].Name)
	assert.Equal(t, 2, infos[0].VersionCount)
	assert.Equal(t, "20250201-120000", infos[0].Version)
	assert.Equal(t, int64(2), infos[0].Size)

	assert.Equal(t, "phi3", infos[1].Name)
	assert.Equal(t, 1, infos[1].VersionCount)
}

func TestSnapshotStorage_DeleteSnapshot(t *testing.T) {
	backend := newTestLocalStorage(t)
	snapshots := NewSnapshotStorage(backend)
	ctx := context.Background()

	storeVersion(t, backend, "models", "20250101-120000", "a")
	storeVersion(t, backend, "models", "20250201-120000", "b")
	storeVersion(t, backend, "phi3", "20250101-130000", "c")

	// Deleting one version leaves the others intact.
	require.NoError(t, snapshots.DeleteSnapshot(ctx, "models@20250101-120000"))
	versions, err := snapshots.ListVersions(ctx, "models")
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	// Deleting by name removes all remaining versions of that name.
	require.NoError(t, snapshots.DeleteSnapshot(ctx, "models"))
	exists, err := snapshots.SnapshotExists(ctx, "models")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = snapshots.SnapshotExists(ctx, "phi3")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSnapshotStorage_DeleteSnapshotUnknownName(t *testing.T) {
	snapshots := NewSnapshotStorage(newTestLocalStorage(t))

	err := snapshots.DeleteSnapshot(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSnapshotStorage_PruneVersions(t *testing.T) {
	backend := newTestLocalStorage(t)
	snapshots := NewSnapshotStorage(backend)
	ctx := context.Background()

	storeVersion(t, backend, "models", "20250101-120000", "a")
	storeVersion(t, backend, "models", "20250201-120000", "b")
	storeVersion(t, backend, "models", "20250301-120000", "c")
	storeVersion(t, backend, "models", "20250401-120000", "d")

	pruned, err := snapshots.PruneVersions(ctx, "models", 2)
	require.NoError(t, err)
	require.Len(t, pruned, 2)
	assert.Equal(t, "20250201-120000", pruned[0].Version)
	assert.Equal(t, "20250101-120000", pruned[1].Version)

	versions, err := snapshots.ListVersions(ctx, "models")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "20250401-120000", versions[0].Version)
	assert.Equal(t, "20250301-120000", versions[1].Version)
}

func TestSnapshotStorage_PruneVersionsNothingToPrune(t *testing.T) {
	backend := newTestLocalStorage(t)
	snapshots := NewSnapshotStorage(backend)

	storeVersion(t, backend, "models", "20250101-120000", "a")

	pruned, err := snapshots.PruneVersions(context.Background(), "models", 3)
	require.NoError(t, err)
	assert.Empty(t, pruned)
}

func TestSnapshotStorage_PruneVersionsRejectsZeroKeep(t *testing.T) {
	snapshots := NewSnapshotStorage(newTestLocalStorage(t))

	_, err := snapshots.PruneVersions(context.Background(), "models", 0)
	assert.Error(t, err)
}

func TestSnapshotStorage_GetLatestVersion(t *testing.T) {
	backend := newTestLocalStorage(t)
	snapshots := NewSnapshotStorage(backend)

	storeVersion(t, backend, "models", "20250101-120000", "a")
	storeVersion(t, backend, "models", "20250301-120000", "b")

	latest, err := snapshots.GetLatestVersion(context.Background(), "models")
	require.NoError(t, err)
	assert.Equal(t, "20250301-120000", latest)

	_, err = snapshots.GetLatestVersion(context.Background(), "missing")
	assert.Error(t, err)
}

func TestCleanSnapshotName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"models", "models"},
		{"models.tar.zst", "models"},
		{"models.tar.gz", "models"},
		{"deepseek-r1:1.5b", "deepseek-r1_1.5b"},
		{"library/phi3", "library-phi3"},
		{"a\\b", "a-b"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanSnapshotName(tt.input), "input %q", tt.input)
	}
}
