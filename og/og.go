// Package og generates Open Graph preview images for exported pages and
// links them from the page head.
//
// Each image is rendered from an SVG template with the page title, its
// category and up to three wrapped lines of its og:description. Images are
// written once per slug; later runs reuse the file and only refresh the
// meta tags.
package og

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eringen/docsgate/collection"
)

// ErrSlugCollision is returned when two permalinks fold to the same image
// name within one Generator.
var ErrSlugCollision = errors.New("og: image name already used by another page")

// segmentSeparator joins the slugs of permalink segments. Slug never emits
// two hyphens in a row, so it cannot appear inside a segment.
const segmentSeparator = "--"

//go:embed template.svg
var defaultTemplate string

const (
	DefaultWidth  = 1200
	DefaultHeight = 630
	DefaultScale  = 1.1
)

// Config controls where images go and how they are drawn.
type Config struct {
	OutputDir    string // directory receiving <slug>.png
	BaseURL      string // public URL of OutputDir
	TemplatePath string // optional SVG replacing the embedded template
	Width        int
	Height       int
	Scale        float64
	WrapWidth    int
}

// Result describes the image linked from one page.
type Result struct {
	ImagePath string
	ImageURL  string
	Reused    bool
	// RasterErr is set when drawing failed. The tags are injected anyway.
	RasterErr error
}

// Generator renders preview images.
type Generator struct {
	cfg      Config
	template string
	fonts    *fontSet
	log      zerolog.Logger

	mu      sync.Mutex
	claimed map[string]string // slug -> permalink
}

// New prepares a generator, loading cfg.TemplatePath when set.
func New(cfg Config, log zerolog.Logger) (*Generator, error) {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Scale <= 0 {
		cfg.Scale = DefaultScale
	}
	if cfg.WrapWidth <= 0 {
		cfg.WrapWidth = DefaultWrapWidth
	}
	tmpl := defaultTemplate
	if cfg.TemplatePath != "" {
		b, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read og template: %w", err)
		}
		tmpl = string(b)
	}
	fonts, err := newFontSet()
	if err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, template: tmpl, fonts: fonts, log: log, claimed: map[string]string{}}, nil
}

// EntrySlug names the image of an entry after its permalink. Each path
// segment is slugged on its own and the segments are joined with "--", so
// "/docs/a-b" and "/docs/a/b" get different names.
func EntrySlug(e collection.Entry) string {
	segments := strings.Split(strings.Trim(e.Permalink, "/"), "/")
	for i, seg := range segments {
		segments[i] = Slug(seg)
	}
	return strings.Trim(strings.Join(segments, segmentSeparator), "-")
}

// claim reserves slug for permalink. A slug already held by a different
// permalink is refused.
func (g *Generator) claim(slug, permalink string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if owner, ok := g.claimed[slug]; ok && owner != permalink {
		return fmt.Errorf("%w: %s and %s both map to %s.png", ErrSlugCollision, owner, permalink, slug)
	}
	g.claimed[slug] = permalink
	return nil
}

// Generate makes sure the image for e exists and links it from the HTML
// file at htmlPath.
func (g *Generator) Generate(ctx context.Context, e collection.Entry, htmlPath string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		return Result{}, fmt.Errorf("read page: %w", err)
	}
	page := string(raw)

	slug := EntrySlug(e)
	if slug == "" {
		slug = "index"
	}
	if err := g.claim(slug, e.Permalink); err != nil {
		return Result{}, err
	}
	res := Result{
		ImagePath: filepath.Join(g.cfg.OutputDir, slug+".png"),
		ImageURL:  strings.TrimRight(g.cfg.BaseURL, "/") + "/" + slug + ".png",
	}

	if _, err := os.Stat(res.ImagePath); err == nil {
		res.Reused = true
	} else {
		category := e.Meta.Category
		if category == "" {
			category = ExtractCategory(page)
		}
		svg := Substitute(g.template, Values{
			Title:    e.Title,
			Category: category,
			Lines:    Wrap(ExtractDescription(page), g.cfg.WrapWidth, DescriptionLines),
		})
		if err := g.writePNG(svg, res.ImagePath); err != nil {
			res.RasterErr = err
			g.log.Error().Err(err).Str("permalink", e.Permalink).Msg("Unable to generate og image")
		}
	}

	if err := os.WriteFile(htmlPath, []byte(InjectTags(page, res.ImageURL)), 0o644); err != nil {
		return res, fmt.Errorf("write page: %w", err)
	}
	return res, nil
}

// writePNG renders svg and moves the encoded file into place so a failed
// run never leaves a partial image behind.
func (g *Generator) writePNG(svg, dst string) error {
	img, err := rasterize(svg, g.cfg.Width, g.cfg.Height, g.cfg.Scale, g.fonts)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".og-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
