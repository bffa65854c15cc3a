package fileutil

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guiyumin/streamscribe/internal/core/logging"
)

func TestRemoveQuietly(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/tmp/a.mp3", []byte("x"), 0o644))

	assert.True(t, RemoveQuietly(fs, "/tmp/a.mp3", logging.Discard()))
	exists, _ := afero.Exists(fs, "/tmp/a.mp3")
	assert.False(t, exists)

	// already gone counts as removed
	assert.True(t, RemoveQuietly(fs, "/tmp/a.mp3", nil))
	assert.True(t, RemoveQuietly(fs, "", nil))
}

func TestRemoveQuietlyReadOnly(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/tmp/a.mp3", []byte("x"), 0o644))
	ro := afero.NewReadOnlyFs(base)

	log := logging.NewTest()
	assert.False(t, RemoveQuietly(ro, "/tmp/a.mp3", log))
	assert.Contains(t, log.Output(), "cleanup failed")
}

func TestCleanStale(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	for name, age := range map[string]time.Duration{"old.mp3": 48 * time.Hour, "new.mp3": time.Hour} {
		p := "/tmp/" + name
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
		require.NoError(t, fs.Chtimes(p, now.Add(-age), now.Add(-age)))
	}

	assert.Equal(t, 1, CleanStale(fs, "/tmp", 24*time.Hour, now, nil))
	exists, _ := afero.Exists(fs, "/tmp/new.mp3")
	assert.True(t, exists)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "talk", Stem("/a/b/talk.mp3"))
	assert.Equal(t, "a.b", Stem("a.b.c"))
	assert.Equal(t, "noext", Stem("noext"))
}
