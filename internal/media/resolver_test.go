// ABOUTME: Tests for the directory-backed media resolver
// ABOUTME: Covers payload storage, unique refs, and the empty payload error

package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirResolver_StoresPayload(t *testing.T) {
	dir := t.TempDir()
	r, err := NewDirResolver(dir, nil)
	require.NoError(t, err)

	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	ref, err := r.Resolve(t.Context(), payload)
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	stored, err := os.ReadFile(filepath.Join(dir, ref))
	require.NoError(t, err)
	assert.Equal(t, payload, stored)
}

func TestDirResolver_RefsAreUnique(t *testing.T) {
	r, err := NewDirResolver(t.TempDir(), nil)
	require.NoError(t, err)

	ref1, err := r.Resolve(t.Context(), []byte("one"))
	require.NoError(t, err)
	ref2, err := r.Resolve(t.Context(), []byte("two"))
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2)
}

func TestDirResolver_EmptyPayload(t *testing.T) {
	r, err := NewDirResolver(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = r.Resolve(t.Context(), nil)
	assert.ErrorIs(t, err, ErrEmptyPayload)
}

func TestNewDirResolver_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "media")

	_, err := NewDirResolver(dir, nil)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
