// Package server is the development preview: it resolves request paths to
// pages and posts, revalidates the collections when the site is dirty (or on
// every request in debug mode), and renders against an atomically published
// context snapshot.
package server

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/flatsite/internal/collection"
	"git.home.luguber.info/inful/flatsite/internal/config"
	"git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/logfields"
	"git.home.luguber.info/inful/flatsite/internal/metrics"
	"git.home.luguber.info/inful/flatsite/internal/paginate"
	"git.home.luguber.info/inful/flatsite/internal/render"
	"git.home.luguber.info/inful/flatsite/internal/site"
)

// defaultPostTemplate is the layout a post renders into unless its metadata
// names another one.
const defaultPostTemplate = "post.html"

// RenderResult is one rendered route.
type RenderResult struct {
	Body        []byte
	ContentType string
}

// Server owns the collections, the published snapshot and the layout
// templates. A reload is a critical section; readers always observe either
// the previous or the fully rebuilt snapshot, never a half-populated one.
type Server struct {
	cfg      *config.Config
	pages    *collection.Collection
	posts    *collection.Collection
	recorder metrics.Recorder
	registry *prom.Registry

	snap      atomic.Pointer[site.Snapshot]
	templates atomic.Pointer[template.Template]
	refreshMu sync.Mutex
	dirty     atomic.Bool
}

// New wires the pages and posts collections per the configuration. Page
// bodies compile into executable templates; post bodies convert from
// Markdown.
func New(cfg *config.Config, recorder metrics.Recorder, registry *prom.Registry) (*Server, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	pages, err := collection.New(collection.Options{
		Name:       "pages",
		Root:       cfg.Pages.Root,
		Extensions: cfg.Pages.Extensions,
		Excludes:   cfg.Pages.Excludes,
		Renderer:   render.PageTemplate(nil),
		Pruning:    cfg.PruningEnabled(),
		Verbose:    cfg.Verbose,
		Encoding:   cfg.Encoding,
		Recorder:   recorder,
	})
	if err != nil {
		return nil, err
	}

	posts, err := collection.New(collection.Options{
		Name:       "posts",
		Root:       cfg.Posts.Root,
		Extensions: cfg.Posts.Extensions,
		Excludes:   cfg.Posts.Excludes,
		Renderer:   render.Markdown(),
		Pruning:    cfg.PruningEnabled(),
		Verbose:    cfg.Verbose,
		Encoding:   cfg.Encoding,
		Recorder:   recorder,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		pages:    pages,
		posts:    posts,
		recorder: recorder,
		registry: registry,
	}
	s.dirty.Store(true)
	return s, nil
}

// Refresh revalidates both collections against disk, reloads the layout
// templates and publishes a fresh snapshot. When force is false the refresh
// is skipped unless the site has been marked dirty.
func (s *Server) Refresh(force bool) error {
	if !force && !s.dirty.Load() && s.snap.Load() != nil {
		return nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if !force && !s.dirty.Load() && s.snap.Load() != nil {
		return nil
	}

	if err := s.pages.Reload(); err != nil {
		return err
	}
	if err := s.posts.Reload(); err != nil {
		return err
	}
	if err := s.reloadTemplates(); err != nil {
		return err
	}

	snap, err := site.Rebuild(s.pages, s.posts, s.recorder)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	s.dirty.Store(false)
	return nil
}

// MarkDirty schedules a refresh before the next request is served.
func (s *Server) MarkDirty() {
	s.dirty.Store(true)
}

func (s *Server) reloadTemplates() error {
	if _, err := os.Stat(s.cfg.TemplatesDir); err != nil {
		// Sites without layout templates can still serve pages.
		s.templates.Store(nil)
		return nil
	}
	tmpl, err := template.ParseGlob(path.Join(s.cfg.TemplatesDir, "*.html"))
	if err != nil {
		return errors.Wrap(err, errors.CategoryContent, errors.SeverityFatal, "parse layout templates").
			WithContext("dir", s.cfg.TemplatesDir)
	}
	s.templates.Store(tmpl)
	return nil
}

// Snapshot returns the currently published snapshot, refreshing first if the
// site has never been built.
func (s *Server) Snapshot() (*site.Snapshot, error) {
	if snap := s.snap.Load(); snap != nil && !s.dirty.Load() {
		return snap, nil
	}
	if err := s.Refresh(false); err != nil {
		return nil, err
	}
	return s.snap.Load(), nil
}

// RenderPath resolves a request path against the route table and renders it.
// The route table mirrors the site conventions:
//
//	/                      index page
//	/<path>.html|.xml      page
//	/<path>/<segment>/     page with a pagination segment
//	/post/<path>.html      post in its layout template
func (s *Server) RenderPath(urlPath string) (*RenderResult, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}

	clean := path.Clean("/" + urlPath)
	hadTrailingSlash := strings.HasSuffix(urlPath, "/") && clean != "/"

	switch {
	case clean == "/":
		return s.renderPage(snap, "index", paginate.Request{}, "text/html; charset=utf-8")

	case strings.HasPrefix(clean, "/post/") && strings.HasSuffix(clean, ".html"):
		route := strings.TrimSuffix(strings.TrimPrefix(clean, "/post/"), ".html")
		return s.renderPost(snap, route)

	case strings.HasSuffix(clean, ".html"):
		route := strings.TrimSuffix(strings.TrimPrefix(clean, "/"), ".html")
		return s.renderPage(snap, route, paginate.Request{}, "text/html; charset=utf-8")

	case strings.HasSuffix(clean, ".xml"):
		route := strings.TrimSuffix(strings.TrimPrefix(clean, "/"), ".xml")
		return s.renderPage(snap, route, paginate.Request{}, "application/xml; charset=utf-8")

	case hadTrailingSlash:
		// /<path>/<segment>/: the final segment is the pagination request.
		segments := strings.Split(strings.Trim(clean, "/"), "/")
		if len(segments) < 2 {
			return nil, errors.RouteNotFound(strings.Trim(clean, "/"))
		}
		route := strings.Join(segments[:len(segments)-1], "/")
		req := paginate.Request{Raw: segments[len(segments)-1], Explicit: true}
		return s.renderPage(snap, route, req, "text/html; charset=utf-8")

	default:
		return nil, errors.RouteNotFound(strings.Trim(clean, "/"))
	}
}

func (s *Server) renderPage(snap *site.Snapshot, route string, req paginate.Request, contentType string) (*RenderResult, error) {
	pg, ok := s.pages.Get(route)
	if !ok {
		return nil, errors.RouteNotFound(route)
	}

	pager, err := paginate.Build(pg, req, snap)
	if err != nil {
		return nil, err
	}

	rendered, err := pg.Rendered()
	if err != nil {
		return nil, err
	}
	tmpl, ok := rendered.(*template.Template)
	if !ok {
		return nil, errors.New(errors.CategoryInternal, errors.SeverityFatal, "page renderer produced a non-template target").
			WithContext("route", route)
	}

	var buf bytes.Buffer
	data := s.templateData(snap)
	data["Page"] = pg
	if pager != nil {
		data["Pager"] = pager
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, errors.CategoryContent, errors.SeverityFatal, "execute page template").
			WithContext("route", route)
	}
	return &RenderResult{Body: buf.Bytes(), ContentType: contentType}, nil
}

func (s *Server) renderPost(snap *site.Snapshot, route string) (*RenderResult, error) {
	post, ok := s.posts.Get(route)
	if !ok {
		return nil, errors.RouteNotFound("post/" + route)
	}

	layouts := s.templates.Load()
	if layouts == nil {
		return nil, errors.New(errors.CategoryConfig, errors.SeverityFatal, "no layout templates available for posts").
			WithContext("dir", s.cfg.TemplatesDir)
	}

	name := defaultPostTemplate
	if meta, err := post.Meta(); err != nil {
		return nil, err
	} else if t, ok := meta["template"].(string); ok && t != "" {
		name = t
	}
	if layouts.Lookup(name) == nil {
		return nil, errors.New(errors.CategoryContent, errors.SeverityFatal, "post layout template not found").
			WithContext("route", route).
			WithContext("template", name)
	}

	var buf bytes.Buffer
	data := s.templateData(snap)
	data["Post"] = post
	if err := layouts.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, errors.Wrap(err, errors.CategoryContent, errors.SeverityFatal, "execute post template").
			WithContext("route", route).
			WithContext("template", name)
	}
	return &RenderResult{Body: buf.Bytes(), ContentType: "text/html; charset=utf-8"}, nil
}

// templateData is the shared context every template executes with.
func (s *Server) templateData(snap *site.Snapshot) map[string]any {
	return map[string]any{
		"Pages":      s.pages,
		"Posts":      snap.Posts,
		"Categories": snap.Categories,
	}
}

// Handler builds the HTTP mux: static files, optional metrics, and the
// route-table fallthrough.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}
	if _, err := os.Stat(s.cfg.StaticDir); err == nil {
		// Mount under the directory's base name so preview URLs match what
		// the freezer writes, whatever path the directory is configured at.
		prefix := "/" + filepath.Base(s.cfg.StaticDir) + "/"
		mux.Handle(prefix, http.StripPrefix(prefix, http.FileServer(http.Dir(s.cfg.StaticDir))))
	}
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Debug mode revalidates the whole site per request; otherwise only a
	// dirty site (watcher event, first request) pays for a refresh.
	if err := s.Refresh(s.cfg.Debug); err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.RenderPath(r.URL.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.recorder.IncRenderOutcome("success")
	w.Header().Set("Content-Type", result.ContentType)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(result.Body)
}

// fail distinguishes missing routes from authoring errors: the latter must
// reach the author with the offending metadata, never as a generic 404.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.IsNotFound(err) {
		s.recorder.IncRenderOutcome("notfound")
		http.NotFound(w, r)
		return
	}
	s.recorder.IncRenderOutcome("error")
	slog.Error("render failed", logfields.URL(r.URL.Path), logfields.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// ListenAndServe serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("preview server listening", slog.Int("port", s.cfg.Port))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Pages exposes the page collection (used by the freezer to seed its crawl).
func (s *Server) Pages() *collection.Collection { return s.pages }

// Posts exposes the post collection.
func (s *Server) Posts() *collection.Collection { return s.posts }
