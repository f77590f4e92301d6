package docsgate

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eringen/docsgate/collection"
	"github.com/eringen/docsgate/og"
)

// newExportApp returns an App with the docs fixture plus a guides collection
// holding one entry whose markdown is missing.
func newExportApp(t *testing.T) *App {
	t.Helper()
	cfg := testConfig(t)
	guides := filepath.Join(t.TempDir(), "guides")
	writeFiles(t, guides, map[string]string{
		"db.json": `[
  {"title": "Deploying", "permalink": "deploying", "contentPath": "./deploying.md", "category": "Operations"},
  {"title": "Broken", "permalink": "broken", "contentPath": "./broken.md", "category": "Operations"}
]`,
		"deploying.md": "# Deploying\n\nShip the build to production.\n",
	})
	a := New(cfg,
		WithLogger(zerolog.Nop()),
		WithCollection(collection.Source{DBPath: filepath.Join(guides, "db.json"), URLPrefix: "/guides"}),
	)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestExport(t *testing.T) {
	a := newExportApp(t)

	report, err := a.Export(context.Background())
	require.NoError(t, err)

	if report.RunID == "" {
		t.Error("RunID is empty")
	}
	if report.Succeeded != 4 {
		t.Errorf("Succeeded = %d, want 4", report.Succeeded)
	}
	if len(report.Failed) != 1 || report.Failed[0].Permalink != "/guides/broken" {
		t.Fatalf("Failed = %+v, want /guides/broken", report.Failed)
	}
	if report.ImagesGenerated != 4 || report.ImagesReused != 0 || report.ImagesFailed != 0 {
		t.Errorf("images = %d generated, %d reused, %d failed", report.ImagesGenerated, report.ImagesReused, report.ImagesFailed)
	}

	page, err := os.ReadFile(filepath.Join(a.Config.DistDir, "docs", "routing.html"))
	require.NoError(t, err)
	if !strings.Contains(string(page), `<meta property="og:image" content="https://docs.example.com/og/docs--routing.png">`) {
		t.Errorf("og:image not injected:\n%s", page)
	}
	if !strings.Contains(string(page), `<meta name="twitter:image" content="https://docs.example.com/og/docs--routing.png">`) {
		t.Error("twitter:image not injected")
	}

	raw, err := os.ReadFile(filepath.Join(a.Config.PublicDir, "og", "guides--deploying.png"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	if b := img.Bounds(); b.Dx() != 1320 || b.Dy() != 693 {
		t.Errorf("image size = %dx%d, want 1320x693", b.Dx(), b.Dy())
	}

	sitemap, err := os.ReadFile(filepath.Join(a.Config.DistDir, "sitemap.xml"))
	require.NoError(t, err)
	for _, loc := range []string{"https://docs.example.com/docs/introduction", "https://docs.example.com/guides/broken"} {
		if !strings.Contains(string(sitemap), "<loc>"+loc+"</loc>") {
			t.Errorf("sitemap lacks %s", loc)
		}
	}
}

func TestExportLedger(t *testing.T) {
	a := newExportApp(t)
	report, err := a.Export(context.Background())
	require.NoError(t, err)

	run, err := a.Store.LatestExport()
	require.NoError(t, err)
	if run.ID != report.RunID || run.Succeeded != 4 || run.Failed != 1 || run.FinishedAt.IsZero() {
		t.Errorf("LatestExport = %+v", run)
	}

	entries, err := a.Store.ExportEntries(report.RunID, "")
	require.NoError(t, err)
	want := []string{"/docs/introduction", "/docs/installation", "/docs/routing", "/guides/deploying", "/guides/broken"}
	if len(entries) != len(want) {
		t.Fatalf("ledger has %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Permalink != want[i] {
			t.Errorf("entry %d = %s, want %s (collection-major order)", i, e.Permalink, want[i])
		}
	}
	if last := entries[4]; last.Status != EntryFailed || !strings.Contains(last.Error, "read content") {
		t.Errorf("broken entry = %+v", last)
	}
	if first := entries[0]; first.Status != EntryOK || first.ImagePath == "" || first.HTMLPath == "" {
		t.Errorf("first entry = %+v", first)
	}
}

func TestExportReusesImages(t *testing.T) {
	a := newExportApp(t)
	_, err := a.Export(context.Background())
	require.NoError(t, err)

	img := filepath.Join(a.Config.PublicDir, "og", "docs--introduction.png")
	before, err := os.ReadFile(img)
	require.NoError(t, err)

	report, err := a.Export(context.Background())
	require.NoError(t, err)
	if report.ImagesReused != 4 || report.ImagesGenerated != 0 {
		t.Errorf("second run: %d reused, %d generated", report.ImagesReused, report.ImagesGenerated)
	}
	after, err := os.ReadFile(img)
	require.NoError(t, err)
	if !bytes.Equal(before, after) {
		t.Error("reused image was rewritten")
	}

	page, err := os.ReadFile(filepath.Join(a.Config.DistDir, "docs", "introduction.html"))
	require.NoError(t, err)
	if n := strings.Count(string(page), `property="og:image"`); n != 1 {
		t.Errorf("og:image tags = %d, want 1", n)
	}
}

func TestExportCancelled(t *testing.T) {
	a := newExportApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := a.Export(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Export err = %v, want context.Canceled", err)
	}
	if report.Succeeded != 0 {
		t.Errorf("Succeeded = %d after cancellation", report.Succeeded)
	}
	run, err := a.Store.LatestExport()
	require.NoError(t, err)
	if run.ID != report.RunID || run.FinishedAt.IsZero() {
		t.Errorf("cancelled run not closed: %+v", run)
	}
}

func TestExportCountsRasterFailures(t *testing.T) {
	a := newExportApp(t)
	tmpl := filepath.Join(t.TempDir(), "broken.svg")
	require.NoError(t, os.WriteFile(tmpl, []byte(`<svg xmlns="http://www.w3.org/2000/svg"><rect`), 0o644))
	a.Config.OGTemplate = tmpl

	report, err := a.Export(context.Background())
	require.NoError(t, err)
	if report.Succeeded != 4 || report.ImagesFailed != 4 {
		t.Errorf("Succeeded = %d, ImagesFailed = %d, want 4 and 4", report.Succeeded, report.ImagesFailed)
	}
	page, err := os.ReadFile(filepath.Join(a.Config.DistDir, "docs", "introduction.html"))
	require.NoError(t, err)
	if !strings.Contains(string(page), "docs--introduction.png") {
		t.Error("tags should be injected even when rasterization fails")
	}
}

func TestExportFailsEntryWithTakenImageName(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(t.TempDir(), "notes")
	writeFiles(t, dir, map[string]string{
		"db.json": `[
  {"title": "Setup", "permalink": "Setup", "contentPath": "./upper.md", "category": "Notes"},
  {"title": "setup", "permalink": "setup", "contentPath": "./lower.md", "category": "Notes"}
]`,
		"upper.md": "# Setup\n",
		"lower.md": "# setup\n",
	})
	a := New(cfg,
		WithLogger(zerolog.Nop()),
		WithCollection(collection.Source{DBPath: filepath.Join(dir, "db.json"), URLPrefix: "/notes"}),
	)
	t.Cleanup(func() { a.Close() })

	report, err := a.Export(context.Background())
	require.NoError(t, err)
	if len(report.Failed) != 1 || report.Failed[0].Permalink != "/notes/setup" {
		t.Fatalf("Failed = %+v, want /notes/setup", report.Failed)
	}
	require.ErrorIs(t, report.Failed[0].Err, og.ErrSlugCollision)
}
