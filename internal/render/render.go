// Package render provides the body renderers a collection can be configured
// with. A renderer turns raw body text into an opaque render target; the
// content pipeline caches the result per file revision and never inspects it.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// Func renders a page body into an opaque render target.
type Func func(body string) (any, error)

// Identity returns the body unchanged.
func Identity() Func {
	return func(body string) (any, error) {
		return body, nil
	}
}

// Markdown converts a Markdown body to HTML. Raw HTML in post bodies is kept,
// matching the permissive conversion the site format has always allowed.
func Markdown() Func {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
	)
	return func(body string) (any, error) {
		var buf bytes.Buffer
		if err := md.Convert([]byte(body), &buf); err != nil {
			return nil, fmt.Errorf("convert markdown: %w", err)
		}
		return template.HTML(buf.String()), nil
	}
}

// PageTemplate compiles the body into an executable template. Compiling once
// per file revision avoids re-parsing the template on every request.
func PageTemplate(funcs template.FuncMap) Func {
	return func(body string) (any, error) {
		tmpl := template.New("page")
		if funcs != nil {
			tmpl = tmpl.Funcs(funcs)
		}
		tmpl, err := tmpl.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parse page template: %w", err)
		}
		return tmpl, nil
	}
}
