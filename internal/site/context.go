// Package site derives the consistent snapshot every request renders
// against: the pages index, the date-sorted published posts, and the
// category index.
package site

import (
	"fmt"
	"sort"
	"time"

	"git.home.luguber.info/inful/flatsite/internal/collection"
	"git.home.luguber.info/inful/flatsite/internal/errors"
	"git.home.luguber.info/inful/flatsite/internal/metrics"
	"git.home.luguber.info/inful/flatsite/internal/page"
)

// UncategorizedCategory is the sentinel category for posts that declare no
// category list.
const UncategorizedCategory = "uncategorized"

// Snapshot is an immutable view over the collections. Consumers publish a
// fresh snapshot by swapping a single pointer; an existing snapshot is never
// mutated after Rebuild returns.
type Snapshot struct {
	// Pages is the site page index (non-post documents).
	Pages *collection.Collection
	// Posts holds every post with a date field, newest first. Ties keep
	// discovery order.
	Posts []*page.Page
	// Categories maps category name to its posts. A category's internal
	// order is discovery order, not date order; each list is a sub-order of
	// the pre-sort published sequence.
	Categories map[string][]*page.Page
	// BuiltAt records when the snapshot was derived.
	BuiltAt time.Time
}

// Rebuild derives a Snapshot from the collections. Posts without a date are
// excluded silently; a date field holding a non-date value is an authoring
// mistake and fails the whole rebuild so it surfaces immediately. Posts
// without categories get ["uncategorized"] written into their cached
// metadata, so subsequent reads observe the default.
func Rebuild(pages, posts *collection.Collection, recorder metrics.Recorder) (*Snapshot, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	start := time.Now()

	var published []*page.Page
	categories := make(map[string][]*page.Page)

	for _, post := range posts.Pages() {
		meta, err := post.Meta()
		if err != nil {
			return nil, err
		}

		raw, ok := meta["date"]
		if !ok {
			continue
		}
		if _, ok := raw.(time.Time); !ok {
			return nil, errors.InvalidDate(post.Route(), raw)
		}
		published = append(published, post)

		declared, ok := meta["categories"]
		if !ok {
			declared = []any{UncategorizedCategory}
			meta["categories"] = declared
		}
		for _, name := range categoryNames(declared) {
			categories[name] = append(categories[name], post)
		}
	}

	sort.SliceStable(published, func(i, j int) bool {
		return postDate(published[i]).After(postDate(published[j]))
	})

	recorder.ObserveSnapshotDuration(time.Since(start))
	return &Snapshot{
		Pages:      pages,
		Posts:      published,
		Categories: categories,
		BuiltAt:    time.Now(),
	}, nil
}

// CategoryNames returns the category names in lexicographic order.
func (s *Snapshot) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// postDate reads the already-validated date field.
func postDate(p *page.Page) time.Time {
	meta, _ := p.Meta()
	d, _ := meta["date"].(time.Time)
	return d
}

// categoryNames normalizes the declared categories value. A scalar counts as
// a single-element list.
func categoryNames(declared any) []string {
	switch v := declared.(type) {
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			} else {
				names = append(names, fmt.Sprint(item))
			}
		}
		return names
	case []string:
		return v
	case string:
		return []string{v}
	default:
		return []string{fmt.Sprint(v)}
	}
}
