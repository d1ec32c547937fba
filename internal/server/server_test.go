package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/flatsite/internal/config"
)

// newSiteFixture lays out a small site: pages at the root, posts under
// post/, layouts under templates/.
func newSiteFixture(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"index.html": "title: Home\n\n" +
			`<h1>{{.Page.Meta.title}}</h1><ul>{{range .Posts}}<li>{{.Route}}</li>{{end}}</ul>`,
		"blog.html": "title: Blog\npaginate: posts\nperpage: 2\n\n" +
			`{{if .Pager}}page {{.Pager.Number}}/{{.Pager.Total}}:{{range .Pager.Posts}} {{.Route}}{{end}}{{end}}`,
		"topics.html": "title: Topics\npaginate: categories\n\n" +
			`{{if .Pager}}{{.Pager.Category}} of {{.Pager.Total}}{{else}}no pager{{end}}`,
		"feed.xml": "title: Feed\n\n" +
			`<feed>{{len .Posts}}</feed>`,
		"post/first.markdown":  "date: 2020-01-02\ncategories: [go]\n\n# First\n\nhello *world*",
		"post/second.markdown": "date: 2020-01-01\ncategories: [go, web]\n\nSecond body",
		"post/third.markdown":  "date: 2020-01-03\n\nThird body",
		"templates/post.html":  `<article>{{.Post.Rendered}}</article>`,
		"templates/fancy.html": `<main class="fancy">{{.Post.Rendered}}</main>`,
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.Debug = true
	cfg.Pages.Root = dir
	cfg.Posts.Root = filepath.Join(dir, "post")
	cfg.TemplatesDir = filepath.Join(dir, "templates")
	cfg.StaticDir = filepath.Join(dir, "static")
	cfg.Output = filepath.Join(dir, "build")
	return dir, cfg
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir, cfg := newSiteFixture(t)
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return s, dir
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleRequest_IndexListsPostsNewestFirst(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	require.Contains(t, body, "<h1>Home</h1>")
	// Date-descending: third (01-03), first (01-02), second (01-01).
	require.Regexp(t, `(?s)third.*first.*second`, body)
}

func TestHandleRequest_PostRendersMarkdownInLayout(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/post/first.html")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.Contains(t, body, "<article>")
	require.Contains(t, body, "<h1>First</h1>")
	require.Contains(t, body, "<em>world</em>")
}

func TestHandleRequest_PostHonorsTemplateOverride(t *testing.T) {
	dir, cfg := newSiteFixture(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "post", "styled.markdown"),
		[]byte("date: 2021-01-01\ntemplate: fancy.html\n\nStyled body"), 0o644))
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)

	rec := get(t, s, "/post/styled.html")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `class="fancy"`)
}

func TestHandleRequest_PaginationSegment(t *testing.T) {
	s, _ := newTestServer(t)

	// 3 posts at 2 per page: page 1 has two, page 2 has one.
	rec := get(t, s, "/blog.html")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "page 1/2: third first")

	rec = get(t, s, "/blog/2/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "page 2/2: second")
}

func TestHandleRequest_PaginationAuthoringErrorsAreLoud(t *testing.T) {
	s, _ := newTestServer(t)

	// Out-of-range page: a descriptive 500, never a silent empty page.
	rec := get(t, s, "/blog/9/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid current page")
}

func TestHandleRequest_CategoryPagination(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/topics/go/")
	require.Equal(t, http.StatusOK, rec.Code)
	// Categories: go, uncategorized, web.
	require.Contains(t, rec.Body.String(), "go of 3")

	// Without an explicit segment the page renders pagerless.
	rec = get(t, s, "/topics.html")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "no pager")

	rec = get(t, s, "/topics/nope/")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "category does not exist")
}

func TestHandleRequest_XMLContentType(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/feed.xml")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	require.Contains(t, rec.Body.String(), "<feed>3</feed>")
}

func TestHandler_StaticMountUsesDirectoryBaseName(t *testing.T) {
	dir, cfg := newSiteFixture(t)
	// StaticDir is an absolute temp path; the mount must still be /static/.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "static", "css"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "static", "css", "site.css"),
		[]byte("body { margin: 0 }"), 0o644))
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)

	rec := get(t, s, "/static/css/site.css")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "margin: 0")
}

func TestHandleRequest_MissingRouteIs404(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/missing.html", "/post/missing.html", "/nota/route/here/"} {
		rec := get(t, s, path)
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestHandleRequest_DebugModeObservesChanges(t *testing.T) {
	s, dir := newTestServer(t)

	rec := get(t, s, "/")
	require.Contains(t, rec.Body.String(), "<h1>Home</h1>")

	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path,
		[]byte("title: Changed\n\n<h1>{{.Page.Meta.title}}</h1>"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	rec = get(t, s, "/")
	require.Contains(t, rec.Body.String(), "<h1>Changed</h1>")
}

func TestRefresh_NonDebugSkipsUntilDirty(t *testing.T) {
	_, cfg := newSiteFixture(t)
	cfg.Debug = false
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Refresh(false))
	first, err := s.Snapshot()
	require.NoError(t, err)

	// Not dirty: the published snapshot is reused.
	require.NoError(t, s.Refresh(false))
	second, err := s.Snapshot()
	require.NoError(t, err)
	require.Same(t, first, second)

	s.MarkDirty()
	require.NoError(t, s.Refresh(false))
	third, err := s.Snapshot()
	require.NoError(t, err)
	require.NotSame(t, first, third)
}
