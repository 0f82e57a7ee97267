package web

import (
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/taubermatt/platform/internal/action"
	"github.com/taubermatt/platform/internal/head"
	"github.com/taubermatt/platform/internal/provider"
	"github.com/taubermatt/platform/internal/record"
	"github.com/taubermatt/platform/internal/requestinfo"
)

// pageData is shared by every template.  Page-specific fields stay zero
// where unused.
type pageData struct {
	Head       *head.Builder
	Info       *requestinfo.RequestInfo
	RootDomain string
	Protocol   string
	Paths      Paths
	CSRF       string

	Success    string
	Error      string
	Suggestion string
	Form       map[string]string

	Rows      template.HTML
	Subdomain *record.Subdomain
	Domain    *record.Domain
	Setup     *setup
}

// setup drives the DNS step of the domain wizard.
type setup struct {
	Domain  string
	Step    string
	Records []provider.DNSRecord
	Error   string
}

// rowsData feeds the cached list fragments.
type rowsData struct {
	Items      any
	RootDomain string
	Protocol   string
	Paths      Paths
}

func (s *Server) page(r *http.Request, title, description string) (*pageData, error) {
	tok, err := s.deps.CSRF.Token()
	if err != nil {
		return nil, err
	}
	h := head.New()
	h.SetTitle(title)
	if description != "" {
		h.SetDescription(description)
	}
	return &pageData{
		Head:       h,
		Info:       requestinfo.FromContext(r.Context()),
		RootDomain: s.cfg.RootDomain,
		Protocol:   s.cfg.Protocol,
		Paths:      s.paths,
		CSRF:       tok,
		Form:       map[string]string{},
	}, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data *pageData) {
	if err := s.views.Render(w, status, name, data); err != nil {
		s.fail(w, r, err)
	}
}

// fail answers 500 for errors the user cannot act on.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	http.Error(w, action.MsgGeneric, http.StatusInternalServerError)
}

// showError copies err onto data and returns the status to render with.
func showError(data *pageData, err error) int {
	data.Error = action.UserMessage(err)

	var v *action.ValidationError
	switch {
	case errors.As(err, &v):
		data.Suggestion = v.Suggestion
		return http.StatusUnprocessableEntity
	case action.IsConflict(err):
		return http.StatusConflict
	case action.IsProvider(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	data, err := s.page(r, "Not found", "")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusNotFound, "notfound", data)
}
