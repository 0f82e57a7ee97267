package view

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFS = fstest.MapFS{
	"t/layout.html": {Data: []byte(`{{define "layout"}}<main>{{template "content" .}}</main>{{end}}{{define "row"}}<li>{{.}}</li>{{end}}`)},
	"t/home.html":   {Data: []byte(`{{define "content"}}home {{.}} {{template "row" "x"}}{{end}}`)},
	"t/about.html":  {Data: []byte(`{{define "content"}}about {{with dict "a" 1}}{{.a}}{{end}}{{end}}`)},
}

func TestEngine_Render(t *testing.T) {
	e, err := New(testFS, "t", "layout.html")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"home", "about"}, e.Pages())

	rr := httptest.NewRecorder()
	require.NoError(t, e.Render(rr, http.StatusTeapot, "home", "<b>"))
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "<main>home &lt;b&gt; <li>x</li></main>", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	rr = httptest.NewRecorder()
	require.NoError(t, e.Render(rr, http.StatusOK, "about", nil))
	assert.Equal(t, "<main>about 1</main>", rr.Body.String())
}

func TestEngine_Missing(t *testing.T) {
	e, err := New(testFS, "t", "layout.html")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = e.Render(rr, http.StatusOK, "nope", nil)
	assert.True(t, errors.Is(err, ErrNoPage))
	assert.Zero(t, rr.Body.Len())
}

func TestEngine_RenderToString(t *testing.T) {
	e, err := New(testFS, "t", "layout.html")
	require.NoError(t, err)

	html, err := e.RenderToString("row", "a&b")
	require.NoError(t, err)
	assert.Equal(t, "<li>a&amp;b</li>", string(html))
}

func TestNew_BadTemplate(t *testing.T) {
	bad := fstest.MapFS{
		"t/layout.html": {Data: []byte(`{{define "layout"}}{{end}}`)},
		"t/x.html":      {Data: []byte(`{{if}}`)},
	}
	_, err := New(bad, "t", "layout.html")
	assert.Error(t, err)
}
