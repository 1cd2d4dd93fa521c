package backup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omback/omback/internal/storage"
)

func TestClient_SnapshotLifecycle(t *testing.T) {
	modelsDir := t.TempDir()
	writeStore(t, modelsDir)

	client, _ := newTestClient(t, modelsDir)
	ctx := context.Background()

	id, err := client.Run(ctx, "", "")
	require.NoError(t, err)

	assert.NoError(t, client.ListSnapshots(ctx))
	assert.NoError(t, client.GetSnapshotInfo(ctx, DefaultName))
	assert.NoError(t, client.ListSnapshotVersions(ctx, DefaultName))

	// force skips the interactive confirmation.
	require.NoError(t, client.DeleteSnapshot(ctx, id, true))

	err = client.GetSnapshotInfo(ctx, DefaultName)
	assert.Error(t, err)
}

func TestClient_DeleteUnknownSnapshot(t *testing.T) {
	modelsDir := t.TempDir()
	writeStore(t, modelsDir)

	client, _ := newTestClient(t, modelsDir)

	err := client.DeleteSnapshot(context.Background(), "missing", true)
	assert.Error(t, err)
}

func TestClient_PruneFewerVersionsThanKeep(t *testing.T) {
	modelsDir := t.TempDir()
	writeStore(t, modelsDir)

	client, _ := newTestClient(t, modelsDir)
	ctx := context.Background()

	_, err := client.Run(ctx, "", "")
	require.NoError(t, err)

	// A single version with keep=3 is a no-op, not an error.
	assert.NoError(t, client.Prune(ctx, DefaultName, 3, true))

	versions, err := storage.NewSnapshotStorage(client.storage).ListVersions(ctx, DefaultName)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestClient_ListModels(t *testing.T) {
	modelsDir := t.TempDir()
	writeStore(t, modelsDir)

	client, _ := newTestClient(t, modelsDir)
	assert.NoError(t, client.ListModels())
}

func TestClient_ListModels_EmptyStore(t *testing.T) {
	client, _ := newTestClient(t, t.TempDir())
	assert.NoError(t, client.ListModels())
}
