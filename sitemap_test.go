package docsgate

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eringen/docsgate/collection"
)

func TestWriteSitemap(t *testing.T) {
	col, err := collection.Load(collection.Source{DBPath: writeContent(t, t.TempDir()), URLPrefix: "/docs"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSitemap(&buf, buildSitemap("https://docs.example.com", []*collection.Collection{col})))

	out := buf.String()
	if !strings.HasPrefix(out, xml.Header) {
		t.Error("missing XML header")
	}
	var parsed sitemapURLSet
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))
	want := []string{
		"https://docs.example.com/docs/introduction",
		"https://docs.example.com/docs/installation",
		"https://docs.example.com/docs/routing",
	}
	if len(parsed.URLs) != len(want) {
		t.Fatalf("urls = %d, want %d", len(parsed.URLs), len(want))
	}
	for i, u := range parsed.URLs {
		if u.Loc != want[i] {
			t.Errorf("url %d = %q, want %q", i, u.Loc, want[i])
		}
	}
}

func TestDynamicSitemap(t *testing.T) {
	env := newTestApp(t, nil)
	rec := env.browser(t).get("/sitemap.xml")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /sitemap.xml = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<loc>https://docs.example.com/docs/routing</loc>") {
		t.Errorf("sitemap = %s", rec.Body.String())
	}
}
