// internal/viewhelpers/helpers.go
//
// Template helpers that pull data out of *requestinfo.RequestInfo.  The view
// engine merges them into every template set, so a page can call:
//
//	{{ browser .Info }} {{ browserVersion .Info }}
//	{{ os .Info }} on {{ device .Info }}
//	{{ if isBot .Info }}Robot!{{ end }}
//
// A nil *RequestInfo yields empty strings, so pages rendered outside the
// Enrich middleware still execute.
package viewhelpers

import (
	"html/template"
	"time"

	"github.com/taubermatt/platform/internal/requestinfo"
)

// FuncMap returns UA, geo, and formatting helpers.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"browser":        uaField(func(u requestinfo.UA) string { return u.Browser }),
		"browserVersion": uaField(func(u requestinfo.UA) string { return u.Version }),
		"os":             uaField(func(u requestinfo.UA) string { return u.OS }),
		"device":         uaField(func(u requestinfo.UA) string { return u.Device }),
		"lang":           uaField(func(u requestinfo.UA) string { return u.PrimaryLang }),
		"isBot": func(i *requestinfo.RequestInfo) bool {
			return i != nil && i.UA.IsBot
		},
		"country": func(i *requestinfo.RequestInfo) string {
			if i == nil {
				return ""
			}
			return i.Geo.CountryISO
		},
		"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
	}
}

func uaField(get func(requestinfo.UA) string) func(*requestinfo.RequestInfo) string {
	return func(i *requestinfo.RequestInfo) string {
		if i == nil {
			return ""
		}
		return get(i.UA)
	}
}
