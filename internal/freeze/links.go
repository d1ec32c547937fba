package freeze

import (
	"io"
	"net/url"

	"golang.org/x/net/html"
)

// ExtractInternalLinks parses rendered HTML and returns the site-internal
// link targets, resolved against the page's own URL path. External links,
// fragments and mailto-style schemes are dropped; queries and fragments are
// stripped from kept links.
func ExtractInternalLinks(r io.Reader, pagePath string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	base := &url.URL{Path: pagePath}
	var links []string
	seen := make(map[string]struct{})

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if target := linkAttr(n); target != "" {
				if p, ok := resolveInternal(base, target); ok {
					if _, dup := seen[p]; !dup {
						seen[p] = struct{}{}
						links = append(links, p)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// linkAttr returns the link-carrying attribute value for crawlable elements.
func linkAttr(n *html.Node) string {
	var attr string
	switch n.Data {
	case "a", "link":
		attr = "href"
	case "img", "script":
		attr = "src"
	default:
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == attr {
			return a.Val
		}
	}
	return ""
}

func resolveInternal(base *url.URL, target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	if u.IsAbs() || u.Host != "" {
		return "", false
	}
	if u.Path == "" {
		// Fragment-only or query-only reference to the same page.
		return "", false
	}
	resolved := base.ResolveReference(&url.URL{Path: u.Path})
	return resolved.Path, true
}
