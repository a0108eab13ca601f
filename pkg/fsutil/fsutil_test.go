package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwner(t *testing.T) {
	owner, err := ParseOwner("1000:1000")
	require.NoError(t, err)
	assert.Equal(t, 1000, owner.UID)
	assert.Equal(t, 1000, owner.GID)

	owner, err = ParseOwner("")
	require.NoError(t, err)
	assert.Nil(t, owner)

	_, err = ParseOwner("1000")
	require.Error(t, err)

	_, err = ParseOwner("a:b")
	require.Error(t, err)
}

func TestAppendLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dependent_tests")

	require.NoError(t, AppendLine(path, "--- a.T::one", nil))
	require.NoError(t, AppendLine(path, "--- a.T::two", nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "--- a.T::one\n--- a.T::two\n", string(data))
}

func TestRemoveContents(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "deep"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0644))

	require.NoError(t, RemoveContents(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Missing directories are fine.
	require.NoError(t, RemoveContents(filepath.Join(dir, "gone")))
}
