// Package collection loads documentation collections and renders their
// entries to HTML.
//
// A collection is described by a JSON database file listing its entries.
// Content paths are resolved relative to that file and permalinks are
// prefixed with the collection URL prefix.
package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
)

var (
	// ErrNotFound is returned when a permalink matches no entry.
	ErrNotFound = errors.New("collection: entry not found")
	// ErrDuplicatePermalink is returned by Load when two entries share a permalink.
	ErrDuplicatePermalink = errors.New("collection: duplicate permalink")
)

// Meta carries the free-form attributes of an entry.
type Meta struct {
	Category string
}

// Entry is one documentation page.
type Entry struct {
	Title       string
	Permalink   string
	ContentPath string // absolute path of the markdown source
	Description string
	Meta        Meta
}

// Source locates a collection database.
type Source struct {
	DBPath    string
	URLPrefix string
}

// Link is a navigation item.
type Link struct {
	Href     string
	Title    string
	IsActive bool
}

// Section groups the entries of one category.
type Section struct {
	Title    string
	IsActive bool
	Items    []Link
}

// Page is everything a layout needs to draw an entry.
type Page struct {
	Entry       Entry
	Sections    []Section
	Body        string // rendered markdown
	Description string // entry description or first paragraph
}

// Layout wraps a rendered page in site chrome.
type Layout func(Page) templ.Component

// Option configures a Collection.
type Option func(*Collection)

// WithLayout sets the page layout. Without one only the body is written.
func WithLayout(l Layout) Option {
	return func(c *Collection) {
		c.layout = l
	}
}

// WithMarkdown replaces the default goldmark instance.
func WithMarkdown(md goldmark.Markdown) Option {
	return func(c *Collection) {
		c.md = md
	}
}

// Collection is an immutable set of entries sharing a URL prefix.
type Collection struct {
	name    string
	prefix  string
	entries []Entry
	index   map[string]int
	md      goldmark.Markdown
	layout  Layout
}

type dbEntry struct {
	Title       string `json:"title"`
	Permalink   string `json:"permalink"`
	ContentPath string `json:"contentPath"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Draft       bool   `json:"draft"`
}

// Load reads the database at src.DBPath.
func Load(src Source, opts ...Option) (*Collection, error) {
	raw, err := os.ReadFile(src.DBPath)
	if err != nil {
		return nil, fmt.Errorf("read collection db: %w", err)
	}
	var rows []dbEntry
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("parse collection db %s: %w", src.DBPath, err)
	}

	root := filepath.Dir(src.DBPath)
	c := &Collection{
		name:   filepath.Base(root),
		prefix: cleanPrefix(src.URLPrefix),
		index:  make(map[string]int, len(rows)),
		md:     newMarkdown(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, r := range rows {
		if r.Draft {
			continue
		}
		e := Entry{
			Title:       r.Title,
			Permalink:   c.permalink(r.Permalink),
			ContentPath: filepath.Join(root, filepath.FromSlash(r.ContentPath)),
			Description: r.Description,
			Meta:        Meta{Category: r.Category},
		}
		if _, dup := c.index[e.Permalink]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePermalink, e.Permalink)
		}
		c.index[e.Permalink] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Name is the directory name of the collection database.
func (c *Collection) Name() string {
	return c.name
}

// Prefix is the URL prefix shared by every permalink.
func (c *Collection) Prefix() string {
	return c.prefix
}

// All returns the entries in database order.
func (c *Collection) All() []Entry {
	return c.entries
}

// FindByPermalink looks up an entry by request path. A trailing slash is ignored.
func (c *Collection) FindByPermalink(p string) (Entry, bool) {
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	i, ok := c.index[p]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Sections groups entries by category in first-seen order.
func (c *Collection) Sections(active Entry) []Section {
	var sections []Section
	pos := make(map[string]int)
	for _, e := range c.entries {
		cat := e.Meta.Category
		i, ok := pos[cat]
		if !ok {
			i = len(sections)
			pos[cat] = i
			sections = append(sections, Section{Title: cat, IsActive: active.Meta.Category == cat})
		}
		sections[i].Items = append(sections[i].Items, Link{
			Href:     e.Permalink,
			Title:    e.Title,
			IsActive: e.Permalink == active.Permalink,
		})
	}
	return sections
}

// Render writes the entry as a full HTML page.
func (c *Collection) Render(ctx context.Context, w io.Writer, e Entry) error {
	page, err := c.page(e)
	if err != nil {
		return err
	}
	if c.layout == nil {
		_, err := io.WriteString(w, page.Body)
		return err
	}
	return c.layout(page).Render(ctx, w)
}

// WriteToDisk renders the entry to outDir + permalink + ".html" and returns
// that path.
func (c *Collection) WriteToDisk(ctx context.Context, outDir string, e Entry) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf, e); err != nil {
		return "", fmt.Errorf("render %s: %w", e.Permalink, err)
	}
	out := filepath.Join(outDir, filepath.FromSlash(strings.TrimPrefix(e.Permalink, "/"))+".html")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}

func (c *Collection) page(e Entry) (Page, error) {
	src, err := os.ReadFile(e.ContentPath)
	if err != nil {
		return Page{}, fmt.Errorf("read content: %w", err)
	}
	body, summary, err := c.convert(src)
	if err != nil {
		return Page{}, err
	}
	desc := e.Description
	if desc == "" {
		desc = summary
	}
	return Page{
		Entry:       e,
		Sections:    c.Sections(e),
		Body:        body,
		Description: desc,
	}, nil
}

func (c *Collection) permalink(p string) string {
	p = strings.Trim(p, "/")
	if c.prefix == "/" {
		return "/" + p
	}
	if p == "" {
		return c.prefix
	}
	return c.prefix + "/" + p
}

func cleanPrefix(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
