package posts_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trossachsgroup/site-backend/internal/posts"
)

func TestDefaultSeed(t *testing.T) {
	seed := posts.DefaultSeed()
	maxID, err := posts.ValidateSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxID)

	assert.Equal(t, "The Future of Web Development", seed[0].Title)
	assert.Equal(t, "2025-01-15", seed[0].Date)
	assert.Equal(t, "Design Team", seed[1].Author)
	assert.Equal(t, "Brand Identity in Digital Age", seed[2].Title)
}

func TestSeedFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")

	require.NoError(t, posts.WriteSeedFile(path, posts.DefaultSeed()))
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), st.Mode().Perm())

	got, err := posts.LoadSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, posts.DefaultSeed(), got)

	// Rewrite keeps permissions and leaves no temp files
	require.NoError(t, os.Chmod(path, 0o600))
	require.NoError(t, posts.WriteSeedFile(path, posts.DefaultSeed()[:1]))
	st, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadSeedFileEdgeCases(t *testing.T) {
	dir := t.TempDir()

	_, err := posts.LoadSeedFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	got, err := posts.LoadSeedFile(empty)
	require.NoError(t, err)
	assert.Empty(t, got)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`[{"id":`), 0o644))
	_, err = posts.LoadSeedFile(broken)
	assert.Error(t, err)

	dup := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(dup, []byte(`[{"id":1,"date":"2025-01-01"},{"id":1,"date":"2025-01-01"}]`), 0o644))
	_, err = posts.LoadSeedFile(dup)
	assert.ErrorIs(t, err, posts.ErrInvalidSeed)
}

func TestWriteSeedFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	err := posts.WriteSeedFile(path, []posts.Post{{ID: 0}})
	assert.ErrorIs(t, err, posts.ErrInvalidSeed)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
