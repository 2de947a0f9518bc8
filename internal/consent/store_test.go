package consent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "approvals.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

func TestFileStore_SetGet(t *testing.T) {
	store, _ := newTestFileStore(t)

	require.NoError(t, store.Set("key", "value"))

	v, ok := store.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

// TestFileStore_PersistsAcrossReopen verifies state survives a restart.
func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	store, path := newTestFileStore(t)
	require.NoError(t, store.Set("approvedConfigurations", `["Launch Server"]`))
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok := reopened.Get("approvedConfigurations")
	assert.True(t, ok)
	assert.Equal(t, `["Launch Server"]`, v)
}

func TestFileStore_Delete(t *testing.T) {
	store, _ := newTestFileStore(t)
	require.NoError(t, store.Set("key", "value"))

	require.NoError(t, store.Delete("key"))
	_, ok := store.Get("key")
	assert.False(t, ok)

	// Deleting a missing key is a no-op.
	require.NoError(t, store.Delete("key"))
}

func TestFileStore_FilePermissions(t *testing.T) {
	store, path := newTestFileStore(t)
	require.NoError(t, store.Set("key", "value"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// TestFileStore_ExternalModification verifies an out-of-process rewrite is
// picked up and notified.
func TestFileStore_ExternalModification(t *testing.T) {
	store, path := newTestFileStore(t)

	data, err := json.Marshal(storeState{Values: map[string]string{"key": "external"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	select {
	case <-store.Watch():
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	v, ok := store.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "external", v)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("key", "value"))

	v, ok := store.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", v)

	require.NoError(t, store.Delete("key"))
	_, ok = store.Get("key")
	assert.False(t, ok)
}
