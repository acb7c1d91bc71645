package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/crunchbase-miner/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "archive", "raw")
		store, err := local.New(dir)
		require.NoError(t, err)
		assert.NotNil(t, store)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		_, err := local.New("  ")
		assert.Error(t, err)
	})

	t.Run("PathIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(file)
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(dir)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "raw/7/batch/c1.json", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)

	want := filepath.Join(dir, "raw", "7", "batch", "c1.json")
	assert.Equal(t, "file://"+want, uri)
	got, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	entries, err := os.ReadDir(filepath.Dir(want))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not remain")
}

func TestPutObjectOverwrites(t *testing.T) {
	store, err := local.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "a.json", "", strings.NewReader("one"))
	require.NoError(t, err)
	uri, err := store.PutObject(context.Background(), "a.json", "", strings.NewReader("two"))
	require.NoError(t, err)

	got, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))
}

func TestPutObjectRejectsBadPaths(t *testing.T) {
	store, err := local.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "", "", strings.NewReader("x"))
	assert.Error(t, err)

	_, err = store.PutObject(context.Background(), "../escape.json", "", strings.NewReader("x"))
	assert.ErrorContains(t, err, "escapes")
}
