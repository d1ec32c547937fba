package render

import (
	"html/template"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentity_ReturnsBodyUnchanged(t *testing.T) {
	out, err := Identity()("raw body\n")
	require.NoError(t, err)
	require.Equal(t, "raw body\n", out)
}

func TestMarkdown_ConvertsToHTML(t *testing.T) {
	out, err := Markdown()("# Title\n\nsome *text*\n")
	require.NoError(t, err)

	html, ok := out.(template.HTML)
	require.True(t, ok)
	require.Contains(t, string(html), "<h1>Title</h1>")
	require.Contains(t, string(html), "<em>text</em>")
}

func TestMarkdown_KeepsRawHTML(t *testing.T) {
	out, err := Markdown()("<div class=\"note\">kept</div>\n")
	require.NoError(t, err)
	require.Contains(t, string(out.(template.HTML)), `<div class="note">`)
}

func TestPageTemplate_CompilesExecutableTemplate(t *testing.T) {
	out, err := PageTemplate(nil)("Hello {{.Name}}")
	require.NoError(t, err)

	tmpl, ok := out.(*template.Template)
	require.True(t, ok)

	var sb strings.Builder
	require.NoError(t, tmpl.Execute(&sb, map[string]any{"Name": "World"}))
	require.Equal(t, "Hello World", sb.String())
}

func TestPageTemplate_BadSyntaxFails(t *testing.T) {
	_, err := PageTemplate(nil)("{{end}}")
	require.Error(t, err)
}
