// Package cache keeps parsed pages keyed by file path with modification-time
// change detection. An entry is valid only while its stored timestamp equals
// the file's current one; staleness always triggers a full re-read and
// re-parse, never a partial patch.
package cache

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/logfields"
	"git.home.luguber.info/inful/flatsite/internal/metrics"
	"git.home.luguber.info/inful/flatsite/internal/page"
	"git.home.luguber.info/inful/flatsite/internal/render"
	"git.home.luguber.info/inful/flatsite/internal/textenc"
)

type entry struct {
	page    *page.Page
	modTime time.Time
}

// FileCache stores parsed pages per file path. It persists across collection
// reloads while the per-reload route snapshot is rebuilt around it.
type FileCache struct {
	name     string
	decode   textenc.Decoder
	renderer render.Func
	recorder metrics.Recorder
	verbose  bool

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a FileCache. name labels log lines and metrics with the owning
// collection. A nil decode defaults to UTF-8 passthrough; a nil recorder to
// the noop recorder.
func New(name string, decode textenc.Decoder, renderer render.Func, recorder metrics.Recorder, verbose bool) *FileCache {
	if decode == nil {
		decode, _ = textenc.NewDecoder(textenc.DefaultEncoding)
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &FileCache{
		name:     name,
		decode:   decode,
		renderer: renderer,
		recorder: recorder,
		verbose:  verbose,
		entries:  make(map[string]entry),
	}
}

// Load returns the page for path, re-reading and re-parsing only when the
// file's modification time differs from the cached one. A file that cannot
// be stat'd (vanished between discovery and load) yields a FileUnavailable
// error the caller should treat as skip-for-this-cycle.
func (c *FileCache) Load(path, route string) (*page.Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.FileUnavailable(path, err)
	}
	modTime := info.ModTime()

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.entries[path]; ok && cached.modTime.Equal(modTime) {
		c.recorder.IncCacheHit(c.name)
		return cached.page, nil
	}
	c.recorder.IncCacheMiss(c.name)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileUnavailable(path, err)
	}
	content, err := c.decode(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryContent, errors.SeverityFatal, "decode file content").
			WithContext("path", path)
	}

	if c.verbose {
		slog.Debug("loading page", logfields.Collection(c.name), logfields.Path(path), logfields.Route(route))
	}

	header, body := page.Split(content)
	p := page.New(route, header, body, c.renderer)
	c.entries[path] = entry{page: p, modTime: modTime}
	return p, nil
}

// Prune drops every entry whose path no longer refers to an existing regular
// file. A file vanishing during the check counts as prunable.
func (c *FileCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for path := range c.entries {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			if c.verbose {
				slog.Debug("pruning cache entry", logfields.Collection(c.name), logfields.Path(path))
			}
			delete(c.entries, path)
			pruned++
		}
	}
	c.recorder.IncCachePruned(c.name, pruned)
}

// Len reports the number of cached entries.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether path currently has a cache entry.
func (c *FileCache) Contains(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]
	return ok
}
