// internal/head/builder.go
//
// The Builder collects what a page puts inside <head>: the title, a
// description, an emoji favicon, and any extra <meta> or <link> tags.
// Handlers fill one per render and the layout template emits it.
//
// Features
// --------
//   - SetTitle, SetDescription – single-value fields, last call wins.
//   - Icon                     – emoji rendered as an inline SVG favicon.
//   - Meta, Link               – raw tags, deduplicated.
//   - HTML                     – everything above as one template.HTML.
package head

import (
	"html/template"
	"net/url"
	"strings"
)

// Builder is scoped to a single render and is not safe for concurrent use.
type Builder struct {
	title       string
	description string
	icon        string

	tags []string
	seen map[string]struct{}
}

func New() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// ------------------------------------------------------------------
// Single-value fields
// ------------------------------------------------------------------

func (b *Builder) SetTitle(t string)       { b.title = t }
func (b *Builder) SetDescription(d string) { b.description = d }

// Icon sets the favicon to emoji.
func (b *Builder) Icon(emoji string) { b.icon = emoji }

// TitleText returns the plain title.
func (b *Builder) TitleText() string { return b.title }

// ------------------------------------------------------------------
// Raw tags with deduplication
// ------------------------------------------------------------------

// Meta and Link take complete, trusted tags.
func (b *Builder) Meta(tag string) { b.add(tag) }
func (b *Builder) Link(tag string) { b.add(tag) }

func (b *Builder) add(tag string) {
	if _, dup := b.seen[tag]; dup {
		return
	}
	b.seen[tag] = struct{}{}
	b.tags = append(b.tags, tag)
}

// ------------------------------------------------------------------
// Rendering
// ------------------------------------------------------------------

// HTML renders every collected element in a stable order.
func (b *Builder) HTML() template.HTML {
	var sb strings.Builder
	if b.title != "" {
		sb.WriteString("<title>" + template.HTMLEscapeString(b.title) + "</title>")
	}
	if b.description != "" {
		sb.WriteString(`<meta name="description" content="` +
			template.HTMLEscapeString(b.description) + `">`)
	}
	if b.icon != "" {
		sb.WriteString(`<link rel="icon" href="` + emojiFavicon(b.icon) + `">`)
	}
	for _, t := range b.tags {
		sb.WriteString(t)
	}
	return template.HTML(sb.String())
}

// emojiFavicon builds an SVG data URI showing emoji.
func emojiFavicon(emoji string) string {
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">` +
		`<text y=".9em" font-size="90">` + template.HTMLEscapeString(emoji) +
		`</text></svg>`
	return "data:image/svg+xml," + url.PathEscape(svg)
}
