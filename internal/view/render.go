// internal/view/render.go
//
// Central view engine: page lookup, shared partials, func-map injection,
// and fragment rendering for cached list markup.
//
// Public helpers
// --------------
//   - Render         – write a full page to an http.ResponseWriter.
//   - RenderToString – return template.HTML for one named fragment.
//
// Layout
// ------
// Every file in the source FS is parsed once at New.  Files listed as
// shared (the layout and its partials) are cloned into each page set, so a
// page only defines "content" and may call any shared {{ define }}.
//
//   layout.html   – defines "layout", "flash", and list fragments
//   home.html     – defines "content"
//   …
//
// Style
// -----
// • Oxford commas, two spaces after periods.

package view

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/taubermatt/platform/internal/viewhelpers"
)

// ErrNoPage is returned for a page name the engine never parsed.
var ErrNoPage = errors.New("view: page not found")

// Root is the template every page executes.
const Root = "layout"

// Engine holds one parsed set per page.  Safe for concurrent use once
// built.
type Engine struct {
	shared *template.Template
	pages  map[string]*template.Template
}

// New parses every *.html under dir in fsys.  shared names the files,
// relative to dir, that every page set inherits.
func New(fsys fs.FS, dir string, shared ...string) (*Engine, error) {
	base := template.New(Root).Funcs(buildFuncMap())

	isShared := make(map[string]bool, len(shared))
	for _, s := range shared {
		isShared[s] = true
		b, err := fs.ReadFile(fsys, path.Join(dir, s))
		if err != nil {
			return nil, err
		}
		if _, err := base.New(s).Parse(string(b)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s, err)
		}
	}

	files, err := fs.Glob(fsys, path.Join(dir, "*.html"))
	if err != nil {
		return nil, err
	}

	e := &Engine{shared: base, pages: make(map[string]*template.Template)}
	for _, f := range files {
		file := path.Base(f)
		if isShared[file] {
			continue
		}
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		set, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := set.New(file).Parse(string(b)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		e.pages[strings.TrimSuffix(file, ".html")] = set
	}
	return e, nil
}

// Render executes page's set into a buffer and, on success, writes it to w
// with status.  A template error leaves w untouched.
func (e *Engine) Render(w http.ResponseWriter, status int, page string, data any) error {
	t, ok := e.pages[page]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPage, page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, Root, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderToString executes a shared fragment, such as a list body, and
// returns it as safe HTML.
func (e *Engine) RenderToString(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.shared.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// Pages lists the parsed page names.
func (e *Engine) Pages() []string {
	out := make([]string, 0, len(e.pages))
	for name := range e.pages {
		out = append(out, name)
	}
	return out
}

//
// func-map builders
//

func buildFuncMap() template.FuncMap {
	fm := template.FuncMap{
		"dict": dict,
	}
	for k, v := range viewhelpers.FuncMap() {
		fm[k] = v
	}
	return fm
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}
