// Package freeze writes the rendered site to disk. Starting from the index,
// it follows internal links out of the rendered HTML to discover every
// reachable URL (pagination pages included), then copies static assets and
// optionally removes stale output files.
package freeze

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/flatsite/internal/config"
	"git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/history"
	"git.home.luguber.info/inful/flatsite/internal/logfields"
	"git.home.luguber.info/inful/flatsite/internal/metrics"
	"git.home.luguber.info/inful/flatsite/internal/server"
)

// Report summarizes one freeze run.
type Report struct {
	BuildID  string
	Files    int
	Duration time.Duration
	Written  []string // output-relative paths, sorted
}

// Freezer renders the site into the configured output directory.
type Freezer struct {
	cfg      *config.Config
	srv      *server.Server
	recorder metrics.Recorder
	store    *history.Store // optional
}

// New creates a Freezer. store may be nil to skip build history.
func New(cfg *config.Config, srv *server.Server, recorder metrics.Recorder, store *history.Store) *Freezer {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Freezer{cfg: cfg, srv: srv, recorder: recorder, store: store}
}

// Freeze builds the whole site. Authoring errors abort the run: shipping a
// build with a broken page helps nobody.
func (f *Freezer) Freeze(ctx context.Context) (*Report, error) {
	start := time.Now()
	buildID := history.NewBuildID()

	report, err := f.run(ctx)
	elapsed := time.Since(start)
	f.recorder.ObserveFreezeDuration(elapsed)

	outcome := "success"
	files := 0
	if err != nil {
		outcome = "failed"
	} else {
		report.BuildID = buildID
		report.Duration = elapsed
		files = report.Files
	}
	f.recorder.IncFreezeOutcome(outcome)

	if f.store != nil {
		recErr := f.store.Record(ctx, history.BuildRecord{
			ID:        buildID,
			StartedAt: start,
			Duration:  elapsed,
			Files:     files,
			Output:    f.cfg.Output,
			Outcome:   outcome,
		})
		if recErr != nil {
			slog.Warn("failed to record build history", logfields.Error(recErr))
		}
	}
	return report, err
}

func (f *Freezer) run(ctx context.Context) (*Report, error) {
	if err := f.srv.Refresh(true); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(f.cfg.Output, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CategoryFreeze, errors.SeverityFatal, "create output directory").
			WithContext("output", f.cfg.Output)
	}

	written := make(map[string]struct{})
	staticPrefix := "/" + strings.Trim(filepath.Base(f.cfg.StaticDir), "/") + "/"

	// Seed from every known route, not just the index: pages nobody links to
	// still belong in the frozen site. Link extraction below picks up the
	// rest (pagination segments in particular).
	queue := []string{"/"}
	seen := map[string]struct{}{"/": {}}
	enqueue := func(urlPath string) {
		if _, ok := seen[urlPath]; !ok {
			seen[urlPath] = struct{}{}
			queue = append(queue, urlPath)
		}
	}
	for _, route := range f.srv.Pages().Routes() {
		if ext, ok := f.srv.Pages().Ext(route); ok {
			enqueue("/" + route + ext)
		}
	}
	for _, route := range f.srv.Posts().Routes() {
		enqueue("/post/" + route + ".html")
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		urlPath := queue[0]
		queue = queue[1:]

		if strings.HasPrefix(urlPath, staticPrefix) {
			continue // copied verbatim below
		}

		result, err := f.srv.RenderPath(urlPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryFreeze, errors.SeverityFatal, "render route").
				WithContext("url", urlPath)
		}

		rel := urlToFilePath(urlPath)
		if err := f.writeFile(rel, result.Body); err != nil {
			return nil, err
		}
		written[rel] = struct{}{}

		if strings.Contains(result.ContentType, "html") {
			links, err := ExtractInternalLinks(bytes.NewReader(result.Body), urlPath)
			if err != nil {
				return nil, errors.Wrap(err, errors.CategoryFreeze, errors.SeverityFatal, "parse rendered HTML").
					WithContext("url", urlPath)
			}
			for _, link := range links {
				if _, ok := seen[link]; ok {
					continue
				}
				seen[link] = struct{}{}
				queue = append(queue, link)
			}
		}
	}

	if err := f.copyStatic(written); err != nil {
		return nil, err
	}
	if f.cfg.RemoveExtraEnabled() {
		if err := f.removeExtra(written); err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(written))
	for p := range written {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	slog.Info("site frozen", logfields.Output(f.cfg.Output), logfields.Count(len(paths)))
	return &Report{Files: len(paths), Written: paths}, nil
}

func (f *Freezer) writeFile(rel string, body []byte) error {
	dest := filepath.Join(f.cfg.Output, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(err, errors.CategoryFreeze, errors.SeverityFatal, "create output subdirectory").
			WithContext("path", dest)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return errors.Wrap(err, errors.CategoryFreeze, errors.SeverityFatal, "write output file").
			WithContext("path", dest)
	}
	return nil
}

// copyStatic mirrors the static dir into the output, skipping dotted
// folders so the site can live in (and freeze into) a repository.
func (f *Freezer) copyStatic(written map[string]struct{}) error {
	if _, err := os.Stat(f.cfg.StaticDir); err != nil {
		return nil
	}
	base := filepath.Base(f.cfg.StaticDir)

	return filepath.WalkDir(f.cfg.StaticDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(f.cfg.StaticDir, p)
		if relErr != nil {
			return relErr
		}
		out := filepath.ToSlash(filepath.Join(base, rel))

		src, openErr := os.Open(p)
		if openErr != nil {
			return nil // vanished during the walk
		}
		defer src.Close()

		dest := filepath.Join(f.cfg.Output, filepath.FromSlash(out))
		if mkErr := os.MkdirAll(filepath.Dir(dest), 0o755); mkErr != nil {
			return mkErr
		}
		dst, createErr := os.Create(dest)
		if createErr != nil {
			return createErr
		}
		defer dst.Close()

		if _, copyErr := io.Copy(dst, src); copyErr != nil {
			return copyErr
		}
		written[out] = struct{}{}
		return nil
	})
}

// removeExtra deletes output files this run did not produce, then prunes
// directories left empty.
func (f *Freezer) removeExtra(written map[string]struct{}) error {
	var extra []string
	err := filepath.WalkDir(f.cfg.Output, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(f.cfg.Output, p)
		if relErr != nil {
			return relErr
		}
		if _, ok := written[filepath.ToSlash(rel)]; !ok {
			extra = append(extra, p)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range extra {
		slog.Debug("removing stale output file", logfields.Path(p))
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return f.pruneEmptyDirs()
}

func (f *Freezer) pruneEmptyDirs() error {
	var dirs []string
	err := filepath.WalkDir(f.cfg.Output, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() && p != f.cfg.Output {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// Deepest first.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, readErr := os.ReadDir(dir)
		if readErr == nil && len(entries) == 0 {
			_ = os.Remove(dir)
		}
	}
	return nil
}

// urlToFilePath maps a crawled URL to its output-relative file path.
func urlToFilePath(urlPath string) string {
	if urlPath == "/" {
		return "index.html"
	}
	trimmed := strings.TrimPrefix(urlPath, "/")
	if strings.HasSuffix(trimmed, "/") {
		return trimmed + "index.html"
	}
	return trimmed
}
