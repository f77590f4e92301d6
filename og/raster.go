package og

import (
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// textRun is one <text> element of the template.
type textRun struct {
	X, Y   float64
	Size   float64
	Bold   bool
	Fill   color.Color
	Anchor string
	Body   string
}

// fontSet caches parsed faces by weight and size.
type fontSet struct {
	regular *opentype.Font
	bold    *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

type faceKey struct {
	bold bool
	size float64
}

func newFontSet() (*fontSet, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &fontSet{regular: regular, bold: bold, faces: make(map[faceKey]font.Face)}, nil
}

func (fs *fontSet) face(bold bool, size float64) (font.Face, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	k := faceKey{bold, size}
	if f, ok := fs.faces[k]; ok {
		return f, nil
	}
	src := fs.regular
	if bold {
		src = fs.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	fs.faces[k] = f
	return f, nil
}

// rasterize draws the SVG shapes at w x h, overlays its text runs and scales
// the result by scale.
func rasterize(svg string, w, h int, scale float64, fonts *fontSet) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)

	runs, err := parseText(strings.NewReader(svg))
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if err := drawText(canvas, r, fonts); err != nil {
			return nil, err
		}
	}

	if scale == 1 {
		return canvas, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), canvas, canvas.Bounds(), draw.Over, nil)
	return dst, nil
}

func drawText(dst draw.Image, r textRun, fonts *fontSet) error {
	face, err := fonts.face(r.Bold, r.Size)
	if err != nil {
		return err
	}
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(r.Fill), Face: face}
	x := fixed.Int26_6(r.X * 64)
	switch r.Anchor {
	case "middle":
		x -= d.MeasureString(r.Body) / 2
	case "end":
		x -= d.MeasureString(r.Body)
	}
	d.Dot = fixed.Point26_6{X: x, Y: fixed.Int26_6(r.Y * 64)}
	d.DrawString(r.Body)
	return nil
}

// parseText collects the non-empty <text> elements of an SVG document.
func parseText(r io.Reader) ([]textRun, error) {
	dec := xml.NewDecoder(r)
	var (
		runs []textRun
		cur  *textRun
		body strings.Builder
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return runs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse svg text: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "text" {
				run := newTextRun(t.Attr)
				cur = &run
				body.Reset()
			}
		case xml.CharData:
			if cur != nil {
				body.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "text" && cur != nil {
				cur.Body = strings.Join(strings.Fields(body.String()), " ")
				if cur.Body != "" {
					runs = append(runs, *cur)
				}
				cur = nil
			}
		}
	}
}

func newTextRun(attrs []xml.Attr) textRun {
	run := textRun{Size: 16, Fill: color.Black}
	for _, a := range attrs {
		switch a.Name.Local {
		case "x":
			run.X = number(a.Value)
		case "y":
			run.Y = number(a.Value)
		case "font-size":
			if n := number(a.Value); n > 0 {
				run.Size = n
			}
		case "font-weight":
			run.Bold = a.Value == "bold" || number(a.Value) >= 600
		case "fill":
			if c, ok := parseHex(a.Value); ok {
				run.Fill = c
			}
		case "text-anchor":
			run.Anchor = a.Value
		}
	}
	return run
}

func number(s string) float64 {
	n, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	return n
}

// parseHex accepts #rgb and #rrggbb.
func parseHex(s string) (color.Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}
