package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradekeep/gradekeep/pkg/errors"
	"github.com/gradekeep/gradekeep/pkg/logging"
)

func TestWorkspaceStoreCreateGetRemove(t *testing.T) {
	store := newWorkspaceStore(time.Minute, &logging.Nop)
	defer store.removeAll()

	ws, err := store.Create()
	require.NoError(t, err)
	assert.Len(t, ws.token, 32)
	assert.DirExists(t, ws.dir)

	got, err := store.Get(ws.token)
	require.NoError(t, err)
	assert.Equal(t, ws.dir, got.dir)

	store.Remove(ws.token)
	_, err = store.Get(ws.token)
	assert.True(t, errors.IsNotFound(err))
	assert.NoDirExists(t, ws.dir)
}

func TestWorkspaceResolveRejectsTraversal(t *testing.T) {
	store := newWorkspaceStore(time.Minute, &logging.Nop)
	defer store.removeAll()

	ws, err := store.Create()
	require.NoError(t, err)

	tests := []struct {
		name  string
		valid bool
	}{
		{"output.csv", true},
		{"section_a_merged.csv", true},
		{"", false},
		{"../escape.csv", false},
		{"sub/dir.csv", false},
		{".hidden", false},
	}

	for _, tt := range tests {
		path, err := ws.resolve(tt.name)
		if tt.valid {
			require.NoError(t, err, tt.name)
			assert.Equal(t, filepath.Join(ws.dir, tt.name), path)
		} else {
			assert.True(t, errors.IsValidationError(err), tt.name)
		}
	}
}

func TestWorkspaceFilesListsCSVOutputs(t *testing.T) {
	store := newWorkspaceStore(time.Minute, &logging.Nop)
	defer store.removeAll()

	ws, err := store.Create()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(ws.dir, "a_merged.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(ws.dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(ws.dir, "sub"), 0o755))

	files, err := ws.files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a_merged.csv"}, files)
}

func TestWorkspaceSweepRemovesExpired(t *testing.T) {
	store := newWorkspaceStore(time.Minute, &logging.Nop)
	defer store.removeAll()

	fresh, err := store.Create()
	require.NoError(t, err)
	stale, err := store.Create()
	require.NoError(t, err)
	stale.created = time.Now().Add(-2 * time.Minute)

	store.sweep()

	_, err = store.Get(fresh.token)
	assert.NoError(t, err)
	_, err = store.Get(stale.token)
	assert.True(t, errors.IsNotFound(err))
	assert.NoDirExists(t, stale.dir)
}
