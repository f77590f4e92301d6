package views

// Site holds site-wide settings every page template needs.
type Site struct {
	Name        string
	URL         string // canonical base URL, no trailing slash
	Description string
	LandingPath string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	NoIndex     bool
}
