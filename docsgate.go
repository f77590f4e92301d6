// Package docsgate serves a documentation site to GitHub sponsors.
//
// Visitors sign in with GitHub OAuth; the sponsorship oracle decides who may
// read. Pages are rendered from markdown collections on every request in
// dynamic mode, or exported ahead of time (with Open Graph images) and served
// from disk behind the session check in static-hosted mode.
//
// Views are pluggable through ViewFuncs the same way collections accept a
// Layout, so a site can restyle every page without touching the handlers.
package docsgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/eringen/docsgate/collection"
	"github.com/eringen/docsgate/identity"
	"github.com/eringen/docsgate/sponsor"
	"github.com/eringen/docsgate/views"
)

// ViewFuncs holds the components the handlers render. Doc is handed to every
// collection as its layout.
type ViewFuncs struct {
	Doc          collection.Layout
	Authenticate func(flash, csrfToken string) templ.Component
	NotFound     func() templ.Component
	ServerError  func() templ.Component
}

// DefaultViews returns the built-in templates for cfg.
func DefaultViews(cfg SiteConfig) ViewFuncs {
	site := views.Site{
		Name:        cfg.Name,
		URL:         cfg.URL,
		Description: cfg.Description,
		LandingPath: cfg.LandingPath,
	}
	return ViewFuncs{
		Doc: views.Doc(site),
		Authenticate: func(flash, csrfToken string) templ.Component {
			return views.Authenticate(site, flash, csrfToken)
		},
		NotFound:    func() templ.Component { return views.NotFound(site) },
		ServerError: func() templ.Component { return views.ServerError(site) },
	}
}

// App wires together the content, the login flow, the ledger and the
// HTTP server.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *Store
	Content *ContentCache
	Views   ViewFuncs
	Metrics *Metrics
	Oracle  *sponsor.Oracle

	log      zerolog.Logger
	identity identity.Provider
	tiers    sponsor.TierSource
	sources  []collection.Source
	limiter  *AttemptLimiter
}

// New creates an App. The collection at cfg.ContentDB is always loaded
// first; WithCollection adds more.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config:  cfg,
		Echo:    e,
		log:     NewLogger(cfg),
		sources: []collection.Source{{DBPath: cfg.ContentDB, URLPrefix: cfg.URLPrefix}},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Views.Doc == nil {
		a.Views = DefaultViews(a.Config)
	}
	a.Metrics = NewMetrics()
	return a
}

// Logger returns the root logger.
func (a *App) Logger() zerolog.Logger {
	return a.log
}

// Setup prepares everything the server needs without listening.
func (a *App) Setup() error {
	if err := a.Config.validateServe(); err != nil {
		return err
	}
	if err := a.openStore(); err != nil {
		return err
	}
	a.ensureContent()
	if !a.Config.StaticHosted() {
		if _, err := a.Content.Collections(); err != nil {
			return fmt.Errorf("docsgate: load collections: %w", err)
		}
	}

	if a.identity == nil {
		a.identity = identity.NewGitHub(a.Config.identityConfig())
	}
	if a.tiers == nil {
		a.tiers = sponsor.NewGitHubTiers(a.Config.GitHubGraphQLURL, a.Config.GitHubAPISecret)
	}
	a.Oracle = sponsor.New(a.tiers,
		sponsor.WithAllowList(a.Config.AllowedUsernames...),
		sponsor.WithMinimumMonthlyDollars(a.Config.SponsorMinMonthlyUSD),
		sponsor.WithLogger(a.log.With().Str("component", "sponsor").Logger()),
	)

	a.limiter = NewAttemptLimiter(a.Config.LoginAttemptsPerMinute, time.Minute)

	store, err := a.newSessionStore()
	if err != nil {
		return fmt.Errorf("docsgate: session store: %w", err)
	}
	a.setupMiddleware(store)
	a.setupRoutes()
	return nil
}

// Start sets the app up and blocks serving HTTP until Shutdown.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	a.log.Info().
		Str("addr", a.Config.Addr).
		Bool("static_hosted", a.Config.StaticHosted()).
		Msg("Serving documentation")
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close releases the ledger and background workers.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

func (a *App) openStore() error {
	if a.Store != nil {
		return nil
	}
	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("docsgate: init store: %w", err)
	}
	a.Store = store
	return nil
}

func (a *App) ensureContent() {
	if a.Content == nil {
		a.Content = NewContentCache(a.Config.CollectionReloadTTL, a.loadCollections)
	}
}

func (a *App) loadCollections() ([]*collection.Collection, error) {
	cols := make([]*collection.Collection, 0, len(a.sources))
	for _, src := range a.sources {
		col, err := collection.Load(src, collection.WithLayout(a.Views.Doc))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.DBPath, err)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.StaticFS("/assets", echo.MustSubFS(EmbeddedAssets, "embedded"))
	e.Static("/og", filepath.Join(a.Config.PublicDir, "og"))
	e.GET("/sitemap.xml", a.handleSitemap)
	if a.Config.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}

	e.GET("/authenticate", a.handleAuthenticate)
	e.POST("/authenticate", a.handleAuthStart, a.rateLimit)
	e.GET("/authenticate/callback", a.handleAuthCallback, a.rateLimit)

	e.GET("/", a.handleRoot)
	e.GET("/*", a.handleDocs)
}
