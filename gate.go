package docsgate

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"github.com/eringen/docsgate/collection"
)

func (a *App) handleRoot(c echo.Context) error {
	return c.Redirect(http.StatusFound, a.Config.LandingPath)
}

// handleDocs serves every path not claimed by another route. Exported pages
// are only reachable with a session; dynamic mode renders from source.
func (a *App) handleDocs(c echo.Context) error {
	p := path.Clean("/" + c.Request().URL.Path)
	if p == "/" {
		return a.handleRoot(c)
	}
	if a.Config.StaticHosted() {
		return a.serveExported(c, p)
	}
	return a.renderDynamic(c, p)
}

func (a *App) serveExported(c echo.Context, p string) error {
	if _, ok := CurrentUser(c); !ok {
		return c.Redirect(http.StatusFound, "/authenticate")
	}
	file := filepath.Join(a.Config.DistDir, filepath.FromSlash(p)+".html")
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return echo.ErrNotFound
	}
	return c.File(file)
}

func (a *App) renderDynamic(c echo.Context, p string) error {
	col, entry, err := a.Content.Find(p)
	if errors.Is(err, collection.ErrNotFound) {
		return echo.ErrNotFound
	}
	if err != nil {
		return err
	}
	return Render(c, entryComponent(col, entry))
}
