// Package views renders the HTML pages of the documentation site.
//
// Pages are html/template files embedded in the binary and exposed as
// templ components so they plug into collection layouts and the echo
// render helpers alike.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/docsgate/collection"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"linkClass": sectionClass,
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Site      Site
	Title     string
	Meta      PageMeta
	JSONLD    template.JS
	Page      collection.Page
	Body      template.HTML
	Flash     string
	CSRFToken string
}

func component(name string, data pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// Doc returns the documentation page layout.
func Doc(site Site) collection.Layout {
	return func(p collection.Page) templ.Component {
		desc := trimDescription(p.Description)
		return component("doc", pageData{
			Site:  site,
			Title: pageTitle(site, p.Entry.Title),
			Meta: PageMeta{
				Title:       p.Entry.Title,
				Description: desc,
				URL:         buildURL(site.URL, p.Entry.Permalink),
				OGType:      "article",
			},
			JSONLD: template.JS(TechArticleJsonLD(site, p)),
			Page:   p,
			Body:   template.HTML(p.Body),
		})
	}
}

// Authenticate renders the login page with an optional flash error.
func Authenticate(site Site, flash, csrfToken string) templ.Component {
	return component("authenticate", pageData{
		Site:  site,
		Title: pageTitle(site, "Sign in"),
		Meta: PageMeta{
			Title:       "Sign in",
			Description: site.Description,
			URL:         buildURL(site.URL, "authenticate"),
			OGType:      "website",
			NoIndex:     true,
		},
		Flash:     flash,
		CSRFToken: csrfToken,
	})
}

func NotFound(site Site) templ.Component {
	return component("notfound", pageData{
		Site:  site,
		Title: pageTitle(site, "Not found"),
		Meta:  PageMeta{Title: "Not found", OGType: "website", NoIndex: true},
	})
}

func ServerError(site Site) templ.Component {
	return component("error", pageData{
		Site:  site,
		Title: pageTitle(site, "Error"),
		Meta:  PageMeta{Title: "Error", OGType: "website", NoIndex: true},
	})
}
