// Package page models a single discovered source file: a route, an
// unparsed YAML header, an unparsed body and the renderer the body flows
// through. Metadata and the rendered body are computed on first access and
// cached for the lifetime of the file revision.
package page

import (
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/render"
)

// Page is one discovered file. Instances are created by the cache when a
// file is first seen or its modification time changes, and are shared by
// every snapshot built from the same file revision.
type Page struct {
	route     string
	rawHeader string
	rawBody   string
	renderer  render.Func

	mu           sync.Mutex
	meta         map[string]any
	metaReady    bool
	rendered     any
	renderedOnce bool
}

// New builds a Page bound to route. A nil renderer defaults to identity.
func New(route, header, body string, renderer render.Func) *Page {
	if renderer == nil {
		renderer = render.Identity()
	}
	return &Page{
		route:     route,
		rawHeader: header,
		rawBody:   body,
		renderer:  renderer,
	}
}

// Route returns the normalized slash path, extension stripped.
func (p *Page) Route() string {
	return p.route
}

// Meta parses the header as YAML on first access and memoizes the mapping.
// The returned map is the cached instance: the snapshot builder mutates it
// in place to default missing fields, and later readers observe that.
//
// An empty or whitespace-only header yields an empty map. A header that
// parses to anything other than a mapping is an authoring error.
func (p *Page) Meta() (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.metaReady {
		return p.meta, nil
	}

	if strings.TrimSpace(p.rawHeader) == "" {
		p.meta = map[string]any{}
		p.metaReady = true
		return p.meta, nil
	}

	var value any
	if err := yaml.Unmarshal([]byte(p.rawHeader), &value); err != nil {
		return nil, errors.MalformedMetadata(p.route, err)
	}

	switch m := value.(type) {
	case nil:
		p.meta = map[string]any{}
	case map[string]any:
		p.meta = m
	default:
		return nil, errors.MalformedMetadata(p.route, nil).WithContext("parsed", value)
	}

	p.metaReady = true
	return p.meta, nil
}

// Rendered invokes the renderer on the raw body once and memoizes the
// result. The render target is opaque to this package. Failed renders are
// not cached, so a transient renderer error does not poison the page.
func (p *Page) Rendered() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renderedOnce {
		return p.rendered, nil
	}

	out, err := p.renderer(p.rawBody)
	if err != nil {
		return nil, err
	}

	p.rendered = out
	p.renderedOnce = true
	return p.rendered, nil
}

// Get returns the metadata value for key.
func (p *Page) Get(key string) (any, error) {
	meta, err := p.Meta()
	if err != nil {
		return nil, err
	}
	value, ok := meta[key]
	if !ok {
		return nil, errors.KeyNotFound(p.route, key)
	}
	return value, nil
}

// Has reports whether the metadata declares key.
func (p *Page) Has(key string) bool {
	meta, err := p.Meta()
	if err != nil {
		return false
	}
	_, ok := meta[key]
	return ok
}

// Keys returns the metadata key set, sorted for deterministic output.
func (p *Page) Keys() ([]string, error) {
	meta, err := p.Meta()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
