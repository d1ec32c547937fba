package freeze

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/flatsite/internal/config"
	"git.home.luguber.info/inful/flatsite/internal/history"
	"git.home.luguber.info/inful/flatsite/internal/server"
)

// newFrozenSite lays out a small linked site so the crawler has something to
// discover: the index links to the blog, the feed and every post; page one
// of the blog links to page two.
func newFrozenSite(t *testing.T) (*config.Config, *server.Server) {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"index.html": "title: Home\n\n" +
			`<a href="blog.html">blog</a><a href="feed.xml">feed</a>` +
			`{{range .Posts}}<a href="/post/{{.Route}}.html">{{.Route}}</a>{{end}}`,
		"blog.html": "title: Blog\npaginate: posts\nperpage: 1\n\n" +
			`{{range .Pager.Posts}}<span>{{.Route}}</span>{{end}}` +
			`{{if .Pager}}<a href="/blog/2/">older</a>{{end}}`,
		"feed.xml":             "title: Feed\n\n<feed>{{len .Posts}}</feed>",
		"post/alpha.markdown":  "date: 2020-01-02\n\nAlpha body",
		"post/beta.markdown":   "date: 2020-01-01\n\nBeta body",
		"templates/post.html":  `<article>{{.Post.Rendered}}</article>`,
		"static/css/site.css":  "body { margin: 0 }",
		"static/.hidden/x.txt": "never copied",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := config.Default()
	cfg.Pages.Root = dir
	cfg.Posts.Root = filepath.Join(dir, "post")
	cfg.TemplatesDir = filepath.Join(dir, "templates")
	cfg.StaticDir = filepath.Join(dir, "static")
	cfg.Output = filepath.Join(dir, "build")

	srv, err := server.New(cfg, nil, nil)
	require.NoError(t, err)
	return cfg, srv
}

func TestFreeze_CrawlsLinkedRoutesAndWritesOutput(t *testing.T) {
	cfg, srv := newFrozenSite(t)
	f := New(cfg, srv, nil, nil)

	report, err := f.Freeze(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.BuildID)

	for _, rel := range []string{
		"index.html",
		"blog.html",
		"blog/2/index.html", // discovered by following the pagination link
		"feed.xml",
		"post/alpha.html",
		"post/beta.html",
		"static/css/site.css",
	} {
		_, statErr := os.Stat(filepath.Join(cfg.Output, filepath.FromSlash(rel)))
		require.NoError(t, statErr, rel)
		require.Contains(t, report.Written, rel)
	}

	// Dotted static folders never reach the output.
	_, err = os.Stat(filepath.Join(cfg.Output, "static", ".hidden"))
	require.True(t, os.IsNotExist(err))

	// Page two of the blog holds the older post.
	body, err := os.ReadFile(filepath.Join(cfg.Output, "blog", "2", "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(body), "beta")
}

func TestFreeze_IncludesUnlinkedRoutes(t *testing.T) {
	cfg, srv := newFrozenSite(t)
	// Neither document is reachable from the index.
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Pages.Root, "about.html"),
		[]byte("title: About\n\n<p>standalone</p>"), 0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Posts.Root, "orphan.markdown"),
		[]byte("title: Orphan\n\nOrphan body"), 0o644))

	report, err := New(cfg, srv, nil, nil).Freeze(context.Background())
	require.NoError(t, err)

	for _, rel := range []string{"about.html", "post/orphan.html"} {
		_, statErr := os.Stat(filepath.Join(cfg.Output, filepath.FromSlash(rel)))
		require.NoError(t, statErr, rel)
		require.Contains(t, report.Written, rel)
	}
}

func TestFreeze_RemovesExtraFiles(t *testing.T) {
	cfg, srv := newFrozenSite(t)
	stale := filepath.Join(cfg.Output, "old", "gone.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	_, err := New(cfg, srv, nil, nil).Freeze(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Dir(stale))
	require.True(t, os.IsNotExist(err), "emptied directories are pruned")
}

func TestFreeze_KeepExtraWhenDisabled(t *testing.T) {
	cfg, srv := newFrozenSite(t)
	keep := false
	cfg.RemoveExtra = &keep

	stale := filepath.Join(cfg.Output, "kept.txt")
	require.NoError(t, os.MkdirAll(cfg.Output, 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("kept"), 0o644))

	_, err := New(cfg, srv, nil, nil).Freeze(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(stale)
	require.NoError(t, err)
}

func TestFreeze_RecordsBuildHistory(t *testing.T) {
	cfg, srv := newFrozenSite(t)
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	report, err := New(cfg, srv, nil, store).Freeze(context.Background())
	require.NoError(t, err)

	records, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, report.BuildID, records[0].ID)
	require.Equal(t, "success", records[0].Outcome)
	require.Equal(t, report.Files, records[0].Files)
}

func TestUrlToFilePath(t *testing.T) {
	cases := map[string]string{
		"/":           "index.html",
		"/about.html": "about.html",
		"/feed.xml":   "feed.xml",
		"/blog/2/":    "blog/2/index.html",
		"/a/b/c.html": "a/b/c.html",
		"/topics/go/": "topics/go/index.html",
	}
	for in, want := range cases {
		require.Equal(t, want, urlToFilePath(in), in)
	}
}

func TestExtractInternalLinks_ResolvesAndFilters(t *testing.T) {
	html := `<html><body>
		<a href="blog.html">relative</a>
		<a href="/post/alpha.html">absolute</a>
		<a href="/blog/2/?utm=x#frag">with noise</a>
		<a href="https://example.com/ext.html">external</a>
		<a href="mailto:a@b.c">mail</a>
		<a href="#top">fragment only</a>
		<img src="/static/css/logo.png">
		<link href="/feed.xml" rel="alternate">
	</body></html>`

	links, err := ExtractInternalLinks(strings.NewReader(html), "/index.html")
	require.NoError(t, err)

	require.Contains(t, links, "/blog.html")
	require.Contains(t, links, "/post/alpha.html")
	require.Contains(t, links, "/blog/2/")
	require.Contains(t, links, "/static/css/logo.png")
	require.Contains(t, links, "/feed.xml")
	for _, l := range links {
		require.False(t, strings.HasPrefix(l, "http"), l)
		require.NotContains(t, l, "#")
		require.NotContains(t, l, "?")
	}
}
