package docsgate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"APP_URL", "FLY_APP_NAME", "ALLOWED_USERNAMES", "OG_BASE_URL", "SPONSOR_MIN_MONTHLY_USD"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"URL", cfg.URL, "http://localhost:3333"},
		{"Addr", cfg.Addr, ":3333"},
		{"ContentDB", cfg.ContentDB, "content/docs/db.json"},
		{"URLPrefix", cfg.URLPrefix, "/docs"},
		{"LandingPath", cfg.LandingPath, "/docs/installation"},
		{"OGBaseURL", cfg.OGBaseURL, "http://localhost:3333/og"},
		{"SponsorMinMonthlyUSD", cfg.SponsorMinMonthlyUSD, 19.0},
		{"CollectionReloadTTL", cfg.CollectionReloadTTL, 2 * time.Second},
		{"LoginAttemptsPerMinute", cfg.LoginAttemptsPerMinute, 10},
		{"StaticHosted", cfg.StaticHosted(), false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_URL", "https://docs.example.com/")
	t.Setenv("FLY_APP_NAME", "docs-production")
	t.Setenv("ALLOWED_USERNAMES", "octocat,hubot")
	t.Setenv("COLLECTION_RELOAD_TTL", "500ms")
	t.Setenv("SPONSOR_MIN_MONTHLY_USD", "49")
	t.Setenv("OG_BASE_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	if cfg.URL != "https://docs.example.com" {
		t.Errorf("URL = %q, want trailing slash trimmed", cfg.URL)
	}
	if cfg.OGBaseURL != "https://docs.example.com/og" {
		t.Errorf("OGBaseURL = %q", cfg.OGBaseURL)
	}
	if !cfg.StaticHosted() {
		t.Error("FLY_APP_NAME should select static-hosted mode")
	}
	if len(cfg.AllowedUsernames) != 2 || cfg.AllowedUsernames[1] != "hubot" {
		t.Errorf("AllowedUsernames = %v", cfg.AllowedUsernames)
	}
	if cfg.CollectionReloadTTL != 500*time.Millisecond {
		t.Errorf("CollectionReloadTTL = %v", cfg.CollectionReloadTTL)
	}
	if cfg.SponsorMinMonthlyUSD != 49 {
		t.Errorf("SponsorMinMonthlyUSD = %v", cfg.SponsorMinMonthlyUSD)
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("COLLECTION_RELOAD_TTL", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig should reject a malformed duration")
	}
}

func TestValidateServe(t *testing.T) {
	cfg := SiteConfig{
		AppKey:             "k",
		GitHubClientID:     "id",
		GitHubClientSecret: "secret",
		GitHubCallbackURL:  "https://docs.example.com/authenticate/callback",
	}
	require.NoError(t, cfg.validateServe())

	err := SiteConfig{GitHubClientID: "id"}.validateServe()
	if !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("err = %v, want ErrMissingConfig", err)
	}
	want := "docsgate: missing required config: APP_KEY, GITHUB_CALLBACK_URL, GITHUB_CLIENT_SECRET"
	if err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
}
