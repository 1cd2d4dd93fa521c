package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	local, err := NewLocalStorage(&LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return local
}

func testBackup(id string, data string) *Backup {
	return &Backup{
		ID: id,
		Metadata: BackupMetadata{
			ID:        id,
			Name:      strings.SplitN(id, "@", 2)[0],
			Type:      "model-store-backup",
			Size:      int64(len(data)),
			CreatedAt: time.Now().UTC(),
			FileCount: 3,
		},
		DataReader: strings.NewReader(data),
	}
}

func TestLocalStorage_StoreAndRetrieve(t *testing.T) {
	local := newTestLocalStorage(t)
	ctx := context.Background()

	backup := testBackup("models@20250101-120000", "archive bytes")
	require.NoError(t, local.Store(ctx, backup))

	got, err := local.Retrieve(ctx, "models@20250101-120000")
	require.NoError(t, err)
	defer func() {
		if closer, ok := got.DataReader.(io.Closer); ok {
			_ = closer.Close()
		}
	}()

	assert.Equal(t, "models@20250101-120000", got.Metadata.ID)
	assert.Equal(t, "models", got.Metadata.Name)
	assert.Equal(t, 3, got.Metadata.FileCount)

	data, err := io.ReadAll(got.DataReader)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestLocalStorage_StoreLeavesNoPartialFile(t *testing.T) {
	local := newTestLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, local.Store(ctx, testBackup("models@20250101-120000", "data")))

	partials, err := filepath.Glob(filepath.Join(local.basePath, "*.partial"))
	require.NoError(t, err)
	assert.Empty(t, partials)

	_, err = os.Stat(filepath.Join(local.basePath, "models@20250101-120000.tar.zst"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(local.basePath, "models@20250101-120000.json"))
	assert.NoError(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

func TestLocalStorage_StoreFailureLeavesNoArtifacts(t *testing.T) {
	local := newTestLocalStorage(t)
	ctx := context.Background()

	backup := testBackup("models@20250101-120000", "")
	backup.DataReader = failingReader{}

	err := local.Store(ctx, backup)
	require.Error(t, err)

	entries, err := os.ReadDir(local.basePath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorage_RetrieveNotFound(t *testing.T) {
	local := newTestLocalStorage(t)

	_, err := local.Retrieve(context.Background(), "missing@20250101-120000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalStorage_List(t *testing.T) {
	local := newTestLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, local.Store(ctx, testBackup("models@20250101-120000", "a")))
	require.NoError(t, local.Store(ctx, testBackup("models@20250102-120000", "bb")))
	require.NoError(t, local.Store(ctx, testBackup("phi3@20250103-120000", "ccc")))

	backups, err := local.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 3)

	ids := make([]string, 0, len(backups))
	for _, b := range backups {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []string{
		"models@20250101-120000",
		"models@20250102-120000",
		"phi3@20250103-120000",
	}, ids)
}

func TestLocalStorage_DeleteAndExists(t *testing.T) {
	local := newTestLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, local.Store(ctx, testBackup("models@20250101-120000", "data")))

	exists, err := local.Exists(ctx, "models@20250101-120000")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, local.Delete(ctx, "models@20250101-120000"))

	exists, err = local.Exists(ctx, "models@20250101-120000")
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := os.ReadDir(local.basePath)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewLocalStorage_RequiresBasePath(t *testing.T) {
	_, err := NewLocalStorage(&LocalConfig{})
	assert.Error(t, err)
}
