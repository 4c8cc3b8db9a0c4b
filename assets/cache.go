// Package assets serves static content from an in-memory cache of a
// directory tree. The cache is read-shared by every serving session and
// write-locked only while reloading.
package assets

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/honganh1206/relay/server"
	"github.com/honganh1206/relay/wire"
)

var defaultExtensions = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "text/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
}

type cachedFile struct {
	contentType string
	contents    []byte
}

// CachingFileServer caches a directory tree keyed by URL path and answers
// GETs from memory. Lookups are exact, so a traversal path like
// /../etc/passwd can never match anything and falls out as 404.
type CachingFileServer struct {
	root string

	mu         sync.RWMutex
	cache      map[string]cachedFile
	extensions map[string]string
}

// NewCachingFileServer loads the directory tree under root.
func NewCachingFileServer(root string) (*CachingFileServer, error) {
	s := &CachingFileServer{
		root:       root,
		cache:      make(map[string]cachedFile),
		extensions: make(map[string]string),
	}
	for ext, contentType := range defaultExtensions {
		s.extensions[ext] = contentType
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPreloaded returns an empty cache to Preload by hand, for embedded
// assets and tests.
func NewPreloaded() *CachingFileServer {
	s := &CachingFileServer{
		cache:      make(map[string]cachedFile),
		extensions: make(map[string]string),
	}
	for ext, contentType := range defaultExtensions {
		s.extensions[ext] = contentType
	}
	return s
}

// AddExtension maps a file extension (with dot) to a content type for
// subsequent loads.
func (s *CachingFileServer) AddExtension(extension, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extensions[strings.ToLower(extension)] = contentType
}

// Preload puts one resource into the cache directly.
func (s *CachingFileServer) Preload(path, contentType string, contents []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[path] = cachedFile{contentType: contentType, contents: contents}
	if path == "/index.html" {
		s.cache["/"] = s.cache[path]
	}
}

// contentTypeFor improvises application/<ext> for unknown extensions, like
// browsers have learned to tolerate.
func (s *CachingFileServer) contentTypeFor(path string) string {
	extension := strings.ToLower(filepath.Ext(path))
	if contentType, ok := s.extensions[extension]; ok {
		return contentType
	}
	if extension != "" {
		return "application/" + extension[1:]
	}
	return "application/octet-stream"
}

// Reload re-reads the whole tree and swaps the cache in one exclusive
// critical section; readers see either the old or the new content, never a
// mix.
func (s *CachingFileServer) Reload() error {
	if s.root == "" {
		return nil
	}
	fresh := make(map[string]cachedFile)
	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		relative, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		contents, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to cache %s: %w", path, err)
		}
		localPath := "/" + filepath.ToSlash(relative)
		fresh[localPath] = cachedFile{contentType: s.contentTypeFor(path), contents: contents}
		if localPath == "/index.html" {
			fresh["/"] = fresh[localPath]
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cache = fresh
	s.mu.Unlock()
	return nil
}

// Get implements server.GetResponder from the cache.
func (s *CachingFileServer) Get(_ context.Context, path string, w server.WriteStarter) (bool, error) {
	if strings.Contains(path, "..") {
		return false, nil
	}
	s.mu.RLock()
	entry, ok := s.cache[path]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	err := w.WriteKnownSize(entry.contentType, len(entry.contents), func(body wire.Buffer) error {
		_, err := body.Write(entry.contents)
		return err
	})
	return err == nil, err
}
