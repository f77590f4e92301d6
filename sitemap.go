package docsgate

import (
	"encoding/xml"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/eringen/docsgate/collection"
)

const sitemapFile = "sitemap.xml"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

func buildSitemap(base string, cols []*collection.Collection) sitemapURLSet {
	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, col := range cols {
		for _, e := range col.All() {
			set.URLs = append(set.URLs, sitemapURL{Loc: base + e.Permalink})
		}
	}
	return set
}

func writeSitemap(w io.Writer, set sitemapURLSet) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(set)
}

// writeSitemapFile stores the sitemap next to the exported pages.
func (a *App) writeSitemapFile(cols []*collection.Collection) error {
	if err := os.MkdirAll(a.Config.DistDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(a.Config.DistDir, sitemapFile))
	if err != nil {
		return err
	}
	if err := writeSitemap(f, buildSitemap(a.Config.URL, cols)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *App) handleSitemap(c echo.Context) error {
	if a.Config.StaticHosted() {
		file := filepath.Join(a.Config.DistDir, sitemapFile)
		if _, err := os.Stat(file); err != nil {
			return echo.ErrNotFound
		}
		return c.File(file)
	}
	cols, err := a.Content.Collections()
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return writeSitemap(c.Response(), buildSitemap(a.Config.URL, cols))
}
