package og

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	// DefaultWrapWidth is the description line width in columns.
	DefaultWrapWidth = 60
	// DescriptionLines is the number of description slots in the template.
	DescriptionLines = 3
	// MaxTitleRunes bounds the title drawn on the image.
	MaxTitleRunes = 24
)

var (
	reDescription = regexp.MustCompile(`<meta\s+(?:name|property)="og:description"\s+content="([^"]*)"`)
	reURL         = regexp.MustCompile(`<meta\s+(?:name|property)="og:url"\s+content="([^"]*)"`)
	reImageTags   = regexp.MustCompile(`<meta\s+(?:property="og:image"|name="twitter:image")\s+content="[^"]*">`)
)

// ExtractDescription returns the og:description of a page, or "".
func ExtractDescription(page string) string {
	return metaContent(reDescription, page)
}

// ExtractCategory returns the path segment following the collection prefix
// in the page og:url, e.g. "guides" for /docs/guides/routing.
func ExtractCategory(page string) string {
	u, err := url.Parse(metaContent(reURL, page))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

func metaContent(re *regexp.Regexp, page string) string {
	m := re.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	return html.UnescapeString(m[1])
}

// Slug lowercases s, folds accents and collapses every run of characters
// that is not a letter or digit, path separators included, into one hyphen.
func Slug(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Truncate keeps the first n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Wrap breaks s into exactly lines slots of at most width columns. Words are
// kept whole when they fit; longer words, and text in scripts without
// spaces, are cut at the column limit. Text beyond the last slot is dropped
// and unused slots are empty.
func Wrap(s string, cols, lines int) []string {
	out := make([]string, lines)
	if lines <= 0 || cols <= 0 {
		return out
	}
	n := 0
	var cur strings.Builder
	used := 0
	flush := func() bool {
		out[n] = cur.String()
		n++
		cur.Reset()
		used = 0
		return n < lines
	}

	for _, word := range strings.Fields(s) {
		w := columns(word)
		if used > 0 && used+1+w <= cols {
			cur.WriteByte(' ')
			cur.WriteString(word)
			used += 1 + w
			continue
		}
		if used > 0 && !flush() {
			return out
		}
		for w > cols {
			head, rest := cut(word, cols)
			cur.WriteString(head)
			if !flush() {
				return out
			}
			word, w = rest, columns(rest)
		}
		cur.WriteString(word)
		used = w
	}
	if used > 0 {
		out[n] = cur.String()
	}
	return out
}

// cut splits s after the widest prefix fitting in cols, taking at least one rune.
func cut(s string, cols int) (string, string) {
	used := 0
	for i, r := range s {
		w := runeColumns(r)
		if used+w > cols && i > 0 {
			return s[:i], s[i:]
		}
		used += w
	}
	return s, ""
}

func columns(s string) int {
	n := 0
	for _, r := range s {
		n += runeColumns(r)
	}
	return n
}

func runeColumns(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// Values fill the template placeholders.
type Values struct {
	Title    string
	Category string
	Lines    []string
}

// Substitute replaces the first occurrence of each placeholder with its
// escaped value. Missing lines become empty strings.
func Substitute(tmpl string, v Values) string {
	line := func(i int) string {
		if i < len(v.Lines) {
			return v.Lines[i]
		}
		return ""
	}
	pairs := []struct{ key, val string }{
		{"{{ title }}", Truncate(v.Title, MaxTitleRunes)},
		{"{{ category }}", v.Category},
		{"{{ line1 }}", line(0)},
		{"{{ line2 }}", line(1)},
		{"{{ line3 }}", line(2)},
	}
	for _, p := range pairs {
		tmpl = strings.Replace(tmpl, p.key, html.EscapeString(p.val), 1)
	}
	return tmpl
}

// InjectTags places og:image and twitter:image tags before </head>,
// replacing tags from an earlier run.
func InjectTags(page, imageURL string) string {
	page = reImageTags.ReplaceAllString(page, "")
	esc := html.EscapeString(imageURL)
	tags := `<meta property="og:image" content="` + esc + `">` +
		`<meta name="twitter:image" content="` + esc + `">`
	return strings.Replace(page, "</head>", tags+"</head>", 1)
}
