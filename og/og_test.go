package og

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/eringen/docsgate/collection"
)

const testPage = `<!DOCTYPE html><html><head><title>Routing</title>` +
	`<meta property="og:description" content="Route requests &amp; responses through named handlers so that every path in the application is declared once and can be reversed later.">` +
	`<meta property="og:url" content="https://docs.example.com/docs/guides/routing">` +
	`</head><body><h1>Routing</h1></body></html>`

func TestExtractDescription(t *testing.T) {
	got := ExtractDescription(testPage)
	if !strings.HasPrefix(got, "Route requests & responses") {
		t.Errorf("ExtractDescription = %q", got)
	}
	if got := ExtractDescription("<html><head></head></html>"); got != "" {
		t.Errorf("ExtractDescription without tag = %q, want empty", got)
	}
	named := `<meta name="og:description" content="From name">`
	if got := ExtractDescription(named); got != "From name" {
		t.Errorf("ExtractDescription(name=) = %q", got)
	}
}

func TestExtractCategory(t *testing.T) {
	tests := []struct {
		page string
		want string
	}{
		{testPage, "guides"},
		{`<meta property="og:url" content="https://docs.example.com/docs/installation">`, ""},
		{"<head></head>", ""},
	}
	for _, tc := range tests {
		if got := ExtractCategory(tc.page); got != tc.want {
			t.Errorf("ExtractCategory(%q) = %q, want %q", tc.page, got, tc.want)
		}
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Getting Started", "getting-started"},
		{"docs/guides/routing", "docs-guides-routing"},
		{"Crème Brûlée!", "creme-brulee"},
		{"  --  ", ""},
		{"a__b  c", "a-b-c"},
	}
	for _, tc := range tests {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEntrySlug(t *testing.T) {
	tests := []struct {
		permalink, want string
	}{
		{"/docs/guides/routing", "docs--guides--routing"},
		{"/docs/a-b", "docs--a-b"},
		{"/docs/a/b", "docs--a--b"},
		{"/docs/Getting Started/", "docs--getting-started"},
		{"/", ""},
	}
	for _, tc := range tests {
		if got := EntrySlug(collection.Entry{Permalink: tc.permalink}); got != tc.want {
			t.Errorf("EntrySlug(%q) = %q, want %q", tc.permalink, got, tc.want)
		}
	}
}

func TestEntrySlugKeepsSegmentBoundaries(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-z0-9]+(-[a-z0-9]+)*`)
		a := rapid.SliceOfN(word, 1, 4).Draw(t, "a")
		b := rapid.SliceOfN(word, 1, 4).Draw(t, "b")
		pa, pb := "/"+strings.Join(a, "/"), "/"+strings.Join(b, "/")
		if pa == pb {
			return
		}
		sa := EntrySlug(collection.Entry{Permalink: pa})
		sb := EntrySlug(collection.Entry{Permalink: pb})
		if sa == sb {
			t.Fatalf("%s and %s share image name %q", pa, pb, sa)
		}
	})
}

func TestGenerateRejectsSlugCollision(t *testing.T) {
	g, err := New(Config{OutputDir: filepath.Join(t.TempDir(), "og"), BaseURL: "/og"}, zerolog.Nop())
	require.NoError(t, err)

	first := collection.Entry{Title: "Intro", Permalink: "/docs/Intro"}
	second := collection.Entry{Title: "intro", Permalink: "/docs/intro"}
	_, err = g.Generate(context.Background(), first, writePage(t))
	require.NoError(t, err)

	page := writePage(t)
	_, err = g.Generate(context.Background(), second, page)
	require.ErrorIs(t, err, ErrSlugCollision)
	html, err := os.ReadFile(page)
	require.NoError(t, err)
	require.NotContains(t, string(html), "og:image", "colliding page must not link another page's image")

	// The owner may regenerate freely.
	_, err = g.Generate(context.Background(), first, writePage(t))
	require.NoError(t, err)
}

func TestSlugProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Slug(rapid.String().Draw(t, "s"))
		if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
			t.Fatalf("Slug produced badly formed %q", s)
		}
		if strings.ContainsAny(s, "/\\ .") {
			t.Fatalf("Slug kept separator in %q", s)
		}
	})
}

func TestWrap(t *testing.T) {
	long := strings.Repeat("a", 130)
	got := Wrap(long, 60, 3)
	require.Equal(t, []string{strings.Repeat("a", 60), strings.Repeat("a", 60), strings.Repeat("a", 10)}, got)

	got = Wrap("one two three", 60, 3)
	require.Equal(t, []string{"one two three", "", ""}, got)

	got = Wrap("", 60, 3)
	require.Equal(t, []string{"", "", ""}, got)

	// Wide runes take two columns.
	got = Wrap(strings.Repeat("文", 35), 60, 3)
	require.Equal(t, []string{strings.Repeat("文", 30), strings.Repeat("文", 5), ""}, got)

	// Overflow is dropped.
	got = Wrap(strings.Repeat("word ", 100), 60, 3)
	require.Len(t, got, 3)
	for _, l := range got {
		require.NotEmpty(t, l)
	}
}

func TestWrapProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")
		cols := rapid.IntRange(2, 80).Draw(t, "cols")
		lines := Wrap(s, cols, DescriptionLines)

		if len(lines) != DescriptionLines {
			t.Fatalf("got %d lines", len(lines))
		}
		seenEmpty := false
		for _, l := range lines {
			if columns(l) > cols {
				t.Fatalf("line %q exceeds %d columns", l, cols)
			}
			if l == "" {
				seenEmpty = true
			} else if seenEmpty {
				t.Fatalf("non-empty line after empty one: %q", lines)
			}
		}

		flat := strings.Join(strings.Fields(s), "")
		kept := strings.Join(strings.Fields(strings.Join(lines, " ")), "")
		if !strings.HasPrefix(flat, kept) {
			t.Fatalf("lines %q are not a prefix of %q", lines, s)
		}

		joined := strings.Join(strings.Fields(s), " ")
		if columns(joined) <= cols && lines[0] != joined {
			t.Fatalf("short text %q split into %q", joined, lines)
		}
	})
}

func TestSubstitute(t *testing.T) {
	tmpl := "<t>{{ title }}</t><c>{{ category }}</c><l>{{ line1 }}|{{ line2 }}|{{ line3 }}</l>"
	got := Substitute(tmpl, Values{
		Title:    "A very long documentation title indeed",
		Category: "Tips & <Tricks>",
		Lines:    []string{"first"},
	})
	want := "<t>A very long documentatio</t><c>Tips &amp; &lt;Tricks&gt;</c><l>first||</l>"
	if got != want {
		t.Errorf("Substitute =\n%s\nwant\n%s", got, want)
	}
}

func TestInjectTagsIdempotent(t *testing.T) {
	once := InjectTags(testPage, "https://docs.example.com/og/a.png")
	twice := InjectTags(once, "https://docs.example.com/og/a.png")
	if once != twice {
		t.Errorf("second injection changed the page:\n%s\n%s", once, twice)
	}
	if n := strings.Count(twice, `property="og:image"`); n != 1 {
		t.Errorf("og:image tags = %d, want 1", n)
	}
	if n := strings.Count(twice, `name="twitter:image"`); n != 1 {
		t.Errorf("twitter:image tags = %d, want 1", n)
	}

	moved := InjectTags(once, "https://docs.example.com/og/b.png")
	if strings.Contains(moved, "a.png") || !strings.Contains(moved, "b.png") {
		t.Errorf("re-injection kept stale url:\n%s", moved)
	}
	if !strings.Contains(moved, `b.png"></head>`) {
		t.Errorf("tags not placed before </head>:\n%s", moved)
	}
}

func writePage(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "dist", "docs", "guides", "routing.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(testPage), 0o644))
	return p
}

var routing = collection.Entry{
	Title:     "Routing",
	Permalink: "/docs/guides/routing",
	Meta:      collection.Meta{Category: "Guides"},
}

func TestGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "og")
	g, err := New(Config{OutputDir: out, BaseURL: "https://docs.example.com/og/"}, zerolog.Nop())
	require.NoError(t, err)

	page := writePage(t)
	res, err := g.Generate(context.Background(), routing, page)
	require.NoError(t, err)
	require.NoError(t, res.RasterErr)
	require.False(t, res.Reused)
	require.Equal(t, filepath.Join(out, "docs--guides--routing.png"), res.ImagePath)
	require.Equal(t, "https://docs.example.com/og/docs--guides--routing.png", res.ImageURL)

	f, err := os.Open(res.ImagePath)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(f)
	f.Close()
	require.NoError(t, err)
	if cfg.Width != 1320 || cfg.Height != 693 {
		t.Errorf("image size = %dx%d, want 1320x693", cfg.Width, cfg.Height)
	}

	html, err := os.ReadFile(page)
	require.NoError(t, err)
	require.Contains(t, string(html), `<meta property="og:image" content="https://docs.example.com/og/docs--guides--routing.png">`)
	require.Contains(t, string(html), `<meta name="twitter:image" content="https://docs.example.com/og/docs--guides--routing.png">`)

	first, err := os.ReadFile(res.ImagePath)
	require.NoError(t, err)

	again, err := g.Generate(context.Background(), routing, page)
	require.NoError(t, err)
	require.True(t, again.Reused)
	second, err := os.ReadFile(res.ImagePath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second), "image rewritten on reuse")

	html, err = os.ReadFile(page)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(html), `property="og:image"`))
}

func TestGenerateRasterFailureStillInjects(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "broken.svg")
	require.NoError(t, os.WriteFile(tmpl, []byte(`<svg xmlns="http://www.w3.org/2000/svg"><rect`), 0o644))

	var logs bytes.Buffer
	out := filepath.Join(dir, "og")
	g, err := New(Config{OutputDir: out, BaseURL: "/og", TemplatePath: tmpl}, zerolog.New(&logs))
	require.NoError(t, err)

	page := writePage(t)
	res, err := g.Generate(context.Background(), routing, page)
	require.NoError(t, err)
	require.Error(t, res.RasterErr)
	require.Contains(t, logs.String(), "Unable to generate og image")

	if _, err := os.Stat(res.ImagePath); !os.IsNotExist(err) {
		t.Errorf("partial image left at %s", res.ImagePath)
	}
	html, err := os.ReadFile(page)
	require.NoError(t, err)
	require.Contains(t, string(html), `content="/og/docs--guides--routing.png"`)
}

func TestGenerateMissingPage(t *testing.T) {
	g, err := New(Config{OutputDir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), routing, filepath.Join(t.TempDir(), "nope.html"))
	require.Error(t, err)
}

func TestParseText(t *testing.T) {
	runs, err := parseText(strings.NewReader(defaultTemplate))
	require.NoError(t, err)
	// Placeholders are still present so every run is kept.
	require.Len(t, runs, 5)
	require.True(t, runs[1].Bold)
	require.Equal(t, 84.0, runs[1].Size)
	require.Equal(t, "{{ title }}", runs[1].Body)
}
