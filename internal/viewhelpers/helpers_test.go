package viewhelpers

import (
	"bytes"
	"html/template"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taubermatt/platform/internal/requestinfo"
)

func render(t *testing.T, src string, data any) string {
	t.Helper()
	tpl, err := template.New("t").Funcs(FuncMap()).Parse(src)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, tpl.Execute(&buf, data))
	return buf.String()
}

func TestFuncMap_UA(t *testing.T) {
	info := &requestinfo.RequestInfo{
		UA:  requestinfo.UA{Browser: "Chrome", Version: "124.0", OS: "macOS", Device: "Desktop", PrimaryLang: "en-US"},
		Geo: requestinfo.Geo{CountryISO: "NL"},
	}
	out := render(t, `{{browser .}} {{browserVersion .}} on {{os .}} ({{device .}}, {{lang .}}, {{country .}}){{if isBot .}} bot{{end}}`, info)
	assert.Equal(t, "Chrome 124.0 on macOS (Desktop, en-US, NL)", out)
}

func TestFuncMap_NilInfo(t *testing.T) {
	var info *requestinfo.RequestInfo
	assert.Equal(t, "|false|", render(t, `{{browser .}}|{{isBot .}}|{{country .}}`, info))
}

func TestFuncMap_Date(t *testing.T) {
	ts := time.Date(2025, 3, 9, 15, 4, 0, 0, time.UTC)
	assert.Equal(t, "Mar 9, 2025", render(t, `{{date .}}`, ts))
}
