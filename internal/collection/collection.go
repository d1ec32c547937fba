// Package collection maintains a named, rooted set of pages discovered by
// walking a directory tree. The route snapshot is rebuilt on every reload;
// the file cache underneath persists across reloads so unchanged files are
// never re-parsed.
package collection

import (
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/flatsite/internal/cache"
	siteerrors "git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/logfields"
	"git.home.luguber.info/inful/flatsite/internal/metrics"
	"git.home.luguber.info/inful/flatsite/internal/page"
	"git.home.luguber.info/inful/flatsite/internal/render"
	"git.home.luguber.info/inful/flatsite/internal/textenc"
)

// slowReloadThreshold flags reloads that keep a request waiting noticeably
// long; large trees should show up in the logs, not stall silently.
const slowReloadThreshold = 2 * time.Second

// Options configures a Collection.
type Options struct {
	// Name labels log lines and metrics, e.g. "pages" or "posts".
	Name string
	// Root is the directory walked on reload. A missing root behaves as an
	// empty tree.
	Root string
	// Extensions are the dot-prefixed file extensions to include, matched
	// exactly.
	Extensions []string
	// Excludes are route prefixes to skip, relative to Root with forward
	// slashes (prefix match only, not substring).
	Excludes []string
	// Renderer processes each page body on first access.
	Renderer render.Func
	// Pruning removes cache entries for vanished files before each reload.
	Pruning bool
	// Verbose enables cache management logging.
	Verbose bool
	// Encoding names the text encoding of source files (default UTF-8).
	Encoding string
	// Recorder receives reload and cache metrics (default noop).
	Recorder metrics.Recorder
}

// Collection is the set of pages currently on disk under Root that match
// the configured extensions and exclusion prefixes.
type Collection struct {
	name       string
	root       string
	extensions map[string]struct{}
	excludes   []string
	verbose    bool
	recorder   metrics.Recorder
	cache      *cache.FileCache
	pruning    bool

	mu     sync.Mutex
	loaded bool
	routes []string // discovery order
	pages  map[string]*page.Page
	exts   map[string]string
}

// New creates a Collection. The first Get or Pages call triggers the initial
// reload, so collections that end up unused never pay the walk cost.
func New(opts Options) (*Collection, error) {
	decode, err := textenc.NewDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	extensions := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extensions[ext] = struct{}{}
	}

	return &Collection{
		name:       opts.Name,
		root:       opts.Root,
		extensions: extensions,
		excludes:   append([]string(nil), opts.Excludes...),
		verbose:    opts.Verbose,
		recorder:   recorder,
		cache:      cache.New(opts.Name, decode, opts.Renderer, recorder, opts.Verbose),
		pruning:    opts.Pruning,
		pages:      make(map[string]*page.Page),
		exts:       make(map[string]string),
	}, nil
}

// Name returns the collection label.
func (c *Collection) Name() string {
	return c.name
}

// Reload rebuilds the route snapshot from disk. Reloads serialize behind the
// collection mutex; readers of a settled snapshot are never exposed to a
// half-populated state.
func (c *Collection) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reloadLocked()
}

func (c *Collection) reloadLocked() error {
	start := time.Now()

	if c.pruning {
		c.cache.Prune()
	}

	c.routes = c.routes[:0]
	c.pages = make(map[string]*page.Page)
	c.exts = make(map[string]string)
	c.loaded = true

	if _, err := os.Stat(c.root); err != nil {
		slog.Warn("collection root unavailable", logfields.Collection(c.name),
			logfields.Path(c.root), logfields.Error(err))
		return nil
	}

	err := filepath.WalkDir(c.root, func(filePath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Vanished or unreadable entries are skipped for this cycle.
			if c.verbose {
				slog.Debug("skipping unreadable entry", logfields.Collection(c.name),
					logfields.Path(filePath), logfields.Error(walkErr))
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(c.root, filePath)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		ext := path.Ext(rel)
		route := strings.TrimSuffix(rel, ext)

		if _, ok := c.extensions[ext]; !ok {
			return nil
		}
		for _, prefix := range c.excludes {
			if strings.HasPrefix(route, prefix) {
				return nil
			}
		}

		p, loadErr := c.cache.Load(filePath, route)
		if loadErr != nil {
			if siteerrors.IsCategory(loadErr, siteerrors.CategoryFileSystem) {
				if c.verbose {
					slog.Debug("file vanished during reload", logfields.Collection(c.name),
						logfields.Path(filePath), logfields.Error(loadErr))
				}
				return nil
			}
			return loadErr
		}

		// Duplicate routes overwrite silently; this lets override
		// conventions work across extensions. The route keeps its first
		// discovery slot.
		if _, seen := c.pages[route]; !seen {
			c.routes = append(c.routes, route)
		}
		c.pages[route] = p
		c.exts[route] = ext
		return nil
	})

	elapsed := time.Since(start)
	c.recorder.ObserveReloadDuration(c.name, elapsed)
	if elapsed > slowReloadThreshold {
		slog.Warn("slow collection reload", logfields.Collection(c.name),
			logfields.Count(len(c.routes)), logfields.DurationMS(float64(elapsed.Milliseconds())))
	} else if c.verbose {
		slog.Debug("collection reloaded", logfields.Collection(c.name),
			logfields.Count(len(c.routes)), logfields.DurationMS(float64(elapsed.Milliseconds())))
	}
	return err
}

func (c *Collection) ensureLoadedLocked() {
	if c.loaded {
		return
	}
	if err := c.reloadLocked(); err != nil {
		slog.Error("initial collection load failed", logfields.Collection(c.name), logfields.Error(err))
	}
}

// Get returns the page for route, if present. The first access since
// construction triggers the initial reload.
func (c *Collection) Get(route string) (*page.Page, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	p, ok := c.pages[route]
	return p, ok
}

// Pages returns all current pages in discovery order. The first access since
// construction triggers the initial reload.
func (c *Collection) Pages() []*page.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	out := make([]*page.Page, 0, len(c.routes))
	for _, route := range c.routes {
		out = append(out, c.pages[route])
	}
	return out
}

// Routes returns all current routes in discovery order.
func (c *Collection) Routes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	return append([]string(nil), c.routes...)
}

// Ext returns the source file extension of the page at route (the winning
// file's extension when duplicates overlap).
func (c *Collection) Ext(route string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	ext, ok := c.exts[route]
	return ext, ok
}

// Len reports the number of pages in the current snapshot.
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked()
	return len(c.routes)
}

// Cache exposes the underlying file cache, mainly for tests and diagnostics.
func (c *Collection) Cache() *cache.FileCache {
	return c.cache
}
