package docsgate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/eringen/docsgate/collection"
	"github.com/eringen/docsgate/identity"
	"github.com/eringen/docsgate/sponsor"
)

// ErrMissingConfig is returned when a required setting is empty.
var ErrMissingConfig = errors.New("docsgate: missing required config")

// SiteConfig holds all configuration for a documentation site.
type SiteConfig struct {
	Name        string `env:"SITE_NAME"`        // Site name (default "Docs")
	Description string `env:"SITE_DESCRIPTION"` // Site description for meta tags
	URL         string `env:"APP_URL"`          // Canonical URL (default "http://localhost:3333")
	Addr        string `env:"ADDR"`             // Listen address (default ":3333")

	AppKey       string `env:"APP_KEY"` // Required for serve: session keys are derived from it
	CookieSecure bool   `env:"COOKIE_SECURE"`

	GitHubAPISecret    string `env:"GITHUB_API_SECRET"` // token for sponsorship lookups
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`
	GitHubGraphQLURL   string `env:"GITHUB_GRAPHQL_URL"`

	// StaticHost is set by the hosting platform. When non-empty, exported
	// pages are served from DistDir behind the session check.
	StaticHost string `env:"FLY_APP_NAME"`

	ContentDB   string `env:"CONTENT_DB"`      // collection database (default "content/docs/db.json")
	URLPrefix   string `env:"DOCS_URL_PREFIX"` // default "/docs"
	LandingPath string `env:"LANDING_PATH"`    // default "/docs/installation"
	DistDir     string `env:"DIST_DIR"`        // default "dist"
	PublicDir   string `env:"PUBLIC_DIR"`      // default "public"; og images go to PublicDir/og
	OGBaseURL   string `env:"OG_BASE_URL"`     // default URL + "/og"
	OGTemplate  string `env:"OG_TEMPLATE"`     // optional SVG template path

	DatabasePath string `env:"DATABASE_PATH"` // SQLite ledger (default "data/docsgate.db")

	AllowedUsernames       []string      `env:"ALLOWED_USERNAMES" envSeparator:","`
	SponsorMinMonthlyUSD   float64       `env:"SPONSOR_MIN_MONTHLY_USD"`
	CollectionReloadTTL    time.Duration `env:"COLLECTION_RELOAD_TTL"` // dynamic mode reload interval (default 2s)
	MetricsEnabled         bool          `env:"METRICS_ENABLED"`
	LoginAttemptsPerMinute int           `env:"LOGIN_ATTEMPTS_PER_MINUTE"`

	LogLevel  string `env:"LOG_LEVEL"` // default "info"
	LogPretty bool   `env:"LOG_PRETTY"`
}

// LoadConfig reads the configuration from the environment and fills defaults.
func LoadConfig() (SiteConfig, error) {
	var cfg SiteConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Docs"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3333"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":3333"
	}
	if c.GitHubGraphQLURL == "" {
		c.GitHubGraphQLURL = sponsor.DefaultGraphQLURL
	}
	if c.ContentDB == "" {
		c.ContentDB = "content/docs/db.json"
	}
	if c.URLPrefix == "" {
		c.URLPrefix = "/docs"
	}
	if c.LandingPath == "" {
		c.LandingPath = "/docs/installation"
	}
	if c.DistDir == "" {
		c.DistDir = "dist"
	}
	if c.PublicDir == "" {
		c.PublicDir = "public"
	}
	if c.OGBaseURL == "" {
		c.OGBaseURL = c.URL + "/og"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/docsgate.db"
	}
	if c.SponsorMinMonthlyUSD == 0 {
		c.SponsorMinMonthlyUSD = sponsor.DefaultMinimumMonthlyDollars
	}
	if c.CollectionReloadTTL == 0 {
		c.CollectionReloadTTL = 2 * time.Second
	}
	if c.LoginAttemptsPerMinute == 0 {
		c.LoginAttemptsPerMinute = 10
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// StaticHosted reports whether pages are served from the exported tree.
func (c SiteConfig) StaticHosted() bool {
	return c.StaticHost != ""
}

// validateServe checks the settings the HTTP server cannot run without.
func (c SiteConfig) validateServe() error {
	var missing []string
	for name, v := range map[string]string{
		"APP_KEY":              c.AppKey,
		"GITHUB_CLIENT_ID":     c.GitHubClientID,
		"GITHUB_CLIENT_SECRET": c.GitHubClientSecret,
		"GITHUB_CALLBACK_URL":  c.GitHubCallbackURL,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}

func (c SiteConfig) identityConfig() identity.Config {
	return identity.Config{
		ClientID:     c.GitHubClientID,
		ClientSecret: c.GitHubClientSecret,
		CallbackURL:  c.GitHubCallbackURL,
		GraphQLURL:   c.GitHubGraphQLURL,
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithIdentityProvider replaces the GitHub OAuth provider.
func WithIdentityProvider(p identity.Provider) Option {
	return func(a *App) {
		a.identity = p
	}
}

// WithTierSource replaces the GitHub sponsorship lookup.
func WithTierSource(s sponsor.TierSource) Option {
	return func(a *App) {
		a.tiers = s
	}
}

// WithLogger sets the root logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// WithCollection adds a collection besides the one at ContentDB.
func WithCollection(src collection.Source) Option {
	return func(a *App) {
		a.sources = append(a.sources, src)
	}
}

// WithViews replaces the built-in page templates.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}
