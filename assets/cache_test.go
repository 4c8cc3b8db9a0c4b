package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honganh1206/relay/wire"
)

// collectingStarter records what a responder writes.
type collectingStarter struct {
	contentType string
	size        int
	body        wire.ExpandingBuffer
}

func (s *collectingStarter) WriteUnknownSize(contentType string, fill func(wire.Buffer) error) error {
	s.contentType = contentType
	s.size = -1
	return fill(&s.body)
}

func (s *collectingStarter) WriteKnownSize(contentType string, size int, fill func(wire.Buffer) error) error {
	s.contentType = contentType
	s.size = size
	return fill(&s.body)
}

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestServeFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.html", "<html>hi</html>")
	writeFile(t, dir, "style.css", "body{}")
	writeFile(t, dir, "sub/data.bin", "\x00\x01")

	cache, err := NewCachingFileServer(dir)
	require.NoError(t, err)

	get := func(path string) (bool, *collectingStarter) {
		starter := &collectingStarter{}
		found, err := cache.Get(context.Background(), path, starter)
		require.NoError(t, err)
		return found, starter
	}

	found, starter := get("/index.html")
	require.True(t, found)
	assert.Equal(t, "text/html", starter.contentType)
	assert.Equal(t, "<html>hi</html>", starter.body.String())
	assert.Equal(t, len("<html>hi</html>"), starter.size)

	// index.html is aliased to the root.
	found, starter = get("/")
	require.True(t, found)
	assert.Equal(t, "<html>hi</html>", starter.body.String())

	found, starter = get("/style.css")
	require.True(t, found)
	assert.Equal(t, "text/css", starter.contentType)

	// Unknown extensions improvise a content type.
	found, starter = get("/sub/data.bin")
	require.True(t, found)
	assert.Equal(t, "application/bin", starter.contentType)

	found, _ = get("/missing.html")
	assert.False(t, found)
}

func TestPathTraversalDenied(t *testing.T) {
	cache := NewPreloaded()
	cache.Preload("/index.html", "text/html", []byte("x"))

	found, err := cache.Get(context.Background(), "/../etc/passwd", &collectingStarter{})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = cache.Get(context.Background(), "/sub/../../secret", &collectingStarter{})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.html", "old")
	cache, err := NewCachingFileServer(dir)
	require.NoError(t, err)

	writeFile(t, dir, "page.html", "new")
	writeFile(t, dir, "fresh.txt", "added")
	require.NoError(t, cache.Reload())

	starter := &collectingStarter{}
	found, err := cache.Get(context.Background(), "/page.html", starter)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", starter.body.String())

	found, _ = cache.Get(context.Background(), "/fresh.txt", &collectingStarter{})
	assert.True(t, found)
}

func TestAddExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "feed.atom", "<feed/>")
	cache, err := NewCachingFileServer(dir)
	require.NoError(t, err)
	cache.AddExtension(".atom", "application/atom+xml")
	require.NoError(t, cache.Reload())

	starter := &collectingStarter{}
	found, err := cache.Get(context.Background(), "/feed.atom", starter)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "application/atom+xml", starter.contentType)
}
