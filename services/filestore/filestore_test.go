package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocal(filepath.Join(dir, "media"))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "assignments/take-1.wav", strings.NewReader("RIFF....")))
	assert.FileExists(t, filepath.Join(dir, "media", "assignments", "take-1.wav"))

	rc, err := store.Open(ctx, "assignments/take-1.wav")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(data))

	require.NoError(t, store.Delete(ctx, "assignments/take-1.wav"))
	_, err = store.Open(ctx, "assignments/take-1.wav")
	assert.Equal(t, core.ErrFileNotFound, err)
	assert.True(t, core.IsNotFound(err))

	assert.NoError(t, store.Delete(ctx, "assignments/take-1.wav"), "deleting a missing file is a no-op")

	entries, err := os.ReadDir(filepath.Join(dir, "media", "assignments"))
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestLocal_invalidNames(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "/", "../secret", "assignments/../../etc/passwd"} {
		assert.Error(t, store.Save(context.Background(), name, strings.NewReader("x")), name)
	}
}

func TestNew(t *testing.T) {
	store, err := New(context.Background(), core.StorageConfig{Backend: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = New(context.Background(), core.StorageConfig{Backend: "gcs"})
	assert.Error(t, err, "bucket required")

	_, err = New(context.Background(), core.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}
