package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileStoreSaveAndOpen(t *testing.T) {
	store := newTestStore(t)

	n, err := store.Save("u1/sources/a.jpg", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	exists, err := store.Exists("u1/sources/a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	f, err := store.Open("u1/sources/a.jpg")
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 5)
	_, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("u1/sources/a.jpg", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("u1/sources/a.jpg"))

	exists, err := store.Exists("u1/sources/a.jpg")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, store.Delete("u1/sources/a.jpg"), ErrNotFound)
}

func TestFileStoreRejectsUnsafePaths(t *testing.T) {
	store := newTestStore(t)

	tests := []string{
		"",
		"/etc/passwd",
		"../outside.txt",
		"..",
		"a/../../outside.txt",
		"~/secrets",
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := store.Exists(path)
			assert.ErrorIs(t, err, ErrInvalidPath)
			assert.ErrorIs(t, store.Delete(path), ErrInvalidPath)
		})
	}
}

func TestFileStoreRemoveEmptyDirectory(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("u1/sources/a.jpg", strings.NewReader("x"))
	require.NoError(t, err)

	// Not empty yet.
	assert.Error(t, store.RemoveEmptyDirectory("u1/sources"))

	require.NoError(t, store.Delete("u1/sources/a.jpg"))
	require.NoError(t, store.RemoveEmptyDirectory("u1/sources"))

	_, err = store.ListDirectory("u1/sources")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreListDirectory(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("u1/sources/a.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = store.Save("u1/sources/b.jpg", strings.NewReader("y"))
	require.NoError(t, err)

	entries, err := store.ListDirectory("u1/sources")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
