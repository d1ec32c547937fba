// Package paginate computes bounded views over the snapshot's post lists.
// A page opts in through its `paginate` metadata field: "posts" slices a
// post list into fixed-size pages, "categories" yields one page per
// category. Errors here identify the offending metadata; a misconfigured
// pager must never ship as a silently empty page.
package paginate

import (
	"fmt"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/page"
	"git.home.luguber.info/inful/flatsite/internal/site"
)

// Request is the routing layer's pagination segment: raw text plus whether
// the URL actually carried a segment. Post-count pagination defaults a
// missing segment to page 1; category pagination requires an explicit one.
type Request struct {
	Raw      string
	Explicit bool
}

// Pager is one bounded view over a post list.
type Pager struct {
	// Number is the 1-based page number (post-count mode only).
	Number int
	// Category is the category name (category mode only).
	Category string
	// Total is the page count (post-count) or category count (categories).
	Total int
	// Posts is the bounded result set.
	Posts []*page.Page
}

// Build returns the pager the page's metadata asks for, or (nil, nil) when
// the page does not paginate, or when a category pager is requested without
// an explicit route segment.
func Build(pg *page.Page, req Request, snap *site.Snapshot) (*Pager, error) {
	meta, err := pg.Meta()
	if err != nil {
		return nil, err
	}

	mode, ok := meta["paginate"]
	if !ok {
		return nil, nil
	}

	switch mode {
	case "posts":
		return buildPostsPager(pg, meta, req, snap)
	case "categories":
		return buildCategoriesPager(req, snap)
	default:
		return nil, errors.UnknownPaginationMode(pg.Route(), fmt.Sprint(mode))
	}
}

// buildPostsPager slices either the global published list or one category.
func buildPostsPager(pg *page.Page, meta map[string]any, req Request, snap *site.Snapshot) (*Pager, error) {
	source := snap.Posts
	if raw, ok := meta["category"]; ok {
		name := anyString(raw)
		list, exists := snap.Categories[name]
		if !exists {
			return nil, errors.UnknownCategory(name)
		}
		source = list
	}

	perpage, ok := meta["perpage"].(int)
	if !ok || perpage < 1 {
		return nil, errors.InvalidPerPage(pg.Route(), meta["perpage"])
	}

	total := (len(source) + perpage - 1) / perpage

	raw := req.Raw
	if !req.Explicit {
		raw = "1"
	}
	current, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || current < 1 || current > total {
		// total == 0 has no valid current page.
		return nil, errors.InvalidPageNumber(raw, total)
	}

	start := (current - 1) * perpage
	end := min(current*perpage, len(source))

	return &Pager{
		Number: current,
		Total:  total,
		Posts:  source[start:end],
	}, nil
}

// buildCategoriesPager treats the request segment as a category name. One
// page per category, enumerated in lexicographic order; the category's full
// post list is returned unsliced.
func buildCategoriesPager(req Request, snap *site.Snapshot) (*Pager, error) {
	if !req.Explicit {
		// A pager request without an explicit route segment is not eligible
		// for this mode: no pager, not an error.
		return nil, nil
	}

	posts, ok := snap.Categories[req.Raw]
	if !ok {
		return nil, errors.UnknownCategory(req.Raw)
	}

	return &Pager{
		Category: req.Raw,
		Total:    len(snap.CategoryNames()),
		Posts:    posts,
	}, nil
}

func anyString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
