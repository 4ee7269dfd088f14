package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMarkAndMarked(t *testing.T) {
	store := openTestStore(t)

	marked, err := store.Marked("2025-01-16", "https://x.com/a/status/1")
	require.NoError(t, err)
	assert.False(t, marked)

	require.NoError(t, store.Mark("2025-01-16", []string{
		"https://x.com/a/status/1",
		"https://x.com/b/status/2",
	}))

	marked, err = store.Marked("2025-01-16", "https://x.com/a/status/1")
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = store.Marked("2025-01-16", "https://x.com/b/status/2")
	require.NoError(t, err)
	assert.True(t, marked)
}

func TestMarkersAreScopedToDate(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Mark("2025-01-16", []string{"https://x.com/a/status/1"}))

	marked, err := store.Marked("2025-01-17", "https://x.com/a/status/1")
	require.NoError(t, err)
	assert.False(t, marked, "marker from a previous day must not suppress a new day's append")
}

func TestMarkersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Mark("2025-01-16", []string{"https://x.com/a/status/1"}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	marked, err := reopened.Marked("2025-01-16", "https://x.com/a/status/1")
	require.NoError(t, err)
	assert.True(t, marked)
}
