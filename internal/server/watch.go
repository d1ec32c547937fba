package server

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/flatsite/internal/logfields"
)

// Watch marks the site dirty on filesystem events under the collection
// roots. Invalidation stays pull-based: the event only schedules the
// mtime-checked reload the next request performs. Blocks until ctx is done.
func (s *Server) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	roots := []string{s.cfg.Pages.Root, s.cfg.Posts.Root, s.cfg.TemplatesDir}
	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := s.addDirsRecursive(watcher, root); err != nil {
			return err
		}
	}
	slog.Info("watching for changes", slog.Any("roots", roots))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if s.ignoredPath(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = s.addDirsRecursive(watcher, ev.Name)
				}
			}
			if s.cfg.Verbose {
				slog.Debug("file event", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			}
			s.MarkDirty()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

func (s *Server) addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if s.ignoredPath(p) {
			return fs.SkipDir
		}
		return w.Add(p)
	})
}

// ignoredPath filters the freeze output and dotted directories; watching the
// output dir would turn every freeze into a reload storm.
func (s *Server) ignoredPath(p string) bool {
	clean := filepath.ToSlash(filepath.Clean(p))
	for _, part := range strings.Split(clean, "/") {
		if part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	output := filepath.ToSlash(filepath.Clean(s.cfg.Output))
	return clean == output || strings.HasPrefix(clean, output+"/")
}
