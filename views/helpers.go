package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/eringen/docsgate/collection"
)

// buildURL joins path segments onto a base URL.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join("/", u.Path, path.Join(pathSegments...))
	return u.String()
}

func pageTitle(site Site, title string) string {
	if title == "" || title == site.Name {
		return site.Name
	}
	return title + " | " + site.Name
}

// TechArticleJsonLD produces a Schema.org TechArticle block for a docs page.
func TechArticleJsonLD(site Site, p collection.Page) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "TechArticle",
		"headline":    p.Entry.Title,
		"description": p.Description,
		"url":         buildURL(site.URL, p.Entry.Permalink),
		"isPartOf": map[string]string{
			"@type": "WebSite",
			"name":  site.Name,
			"url":   buildURL(site.URL),
		},
	}
	if p.Entry.Meta.Category != "" {
		data["articleSection"] = p.Entry.Meta.Category
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// sectionClass returns CSS classes for a sidebar link.
func sectionClass(active bool) string {
	base := "nav-link"
	if active {
		base += " nav-link-active"
	}
	return base
}

func trimDescription(s string) string {
	const max = 160
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}
