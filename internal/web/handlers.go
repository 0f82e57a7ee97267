package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taubermatt/platform/internal/action"
	"github.com/taubermatt/platform/internal/record"
)

//
// Public pages
//

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	data, err := s.page(r, s.cfg.RootDomain, "Multi-tenant platform with custom subdomains and domains.")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home", data)
}

func (s *Server) subdomainPage(w http.ResponseWriter, r *http.Request) {
	sub, err := s.deps.Actions.Subdomain(r.Context(), chi.URLParam(r, "subdomain"))
	if errors.Is(err, record.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data, err := s.page(r, sub.Name+"."+s.cfg.RootDomain, "Subdomain page for "+sub.Name+"."+s.cfg.RootDomain)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data.Head.Icon(sub.Emoji)
	data.Subdomain = sub
	s.render(w, r, http.StatusOK, "tenant", data)
}

func (s *Server) domainPage(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Actions.Domain(r.Context(), chi.URLParam(r, "domain"))
	if errors.Is(err, record.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	data, err := s.page(r, d.Name, "Custom domain page for "+d.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	data.Head.Icon(d.Emoji)
	data.Domain = d
	s.render(w, r, http.StatusOK, "domain", data)
}

//
// Admin: dashboard
//

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := s.page(r, "Admin Dashboard | "+s.cfg.RootDomain, "")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard", data)
}

//
// Admin: subdomains
//

func (s *Server) subdomains(w http.ResponseWriter, r *http.Request) {
	s.subdomainsPage(w, r, http.StatusOK, nil, func(*pageData) {})
}

// subdomainsPage renders the subdomain screen.  When err is set the form is
// refilled from the request.
func (s *Server) subdomainsPage(w http.ResponseWriter, r *http.Request, status int, err error, decorate func(*pageData)) {
	data, perr := s.page(r, "Subdomain Management | "+s.cfg.RootDomain, "")
	if perr != nil {
		s.fail(w, r, perr)
		return
	}
	if err != nil {
		status = showError(data, err)
		data.Form["subdomain"] = r.PostFormValue("subdomain")
		data.Form["icon"] = r.PostFormValue("icon")
	}
	decorate(data)

	rows, rerr := s.rows(action.PageSubdomains, func() (any, error) {
		items, err := s.deps.Actions.Subdomains(r.Context())
		return s.rowsData(items), err
	})
	if rerr != nil {
		s.fail(w, r, rerr)
		return
	}
	data.Rows = rows
	s.render(w, r, status, "subdomains", data)
}

func (s *Server) createSubdomain(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Actions.CreateSubdomain(r.Context(), r.PostFormValue("subdomain"), r.PostFormValue("icon"))
	if err != nil {
		s.subdomainsPage(w, r, 0, err, func(*pageData) {})
		return
	}
	http.Redirect(w, r, out.URL, http.StatusSeeOther)
}

func (s *Server) deleteSubdomain(w http.ResponseWriter, r *http.Request) {
	msg, err := s.deps.Actions.DeleteSubdomain(r.Context(), r.PostFormValue("subdomain"))
	s.subdomainsPage(w, r, http.StatusOK, err, func(d *pageData) {
		d.Success = msg
		d.Form = map[string]string{}
	})
}

//
// Admin: custom domains
//

func (s *Server) domains(w http.ResponseWriter, r *http.Request) {
	s.domainsPage(w, r, http.StatusOK, nil, func(*pageData) {})
}

func (s *Server) domainsPage(w http.ResponseWriter, r *http.Request, status int, err error, decorate func(*pageData)) {
	data, perr := s.page(r, "Domain Management | "+s.cfg.RootDomain, "")
	if perr != nil {
		s.fail(w, r, perr)
		return
	}
	if err != nil {
		status = showError(data, err)
		data.Form["domain"] = r.PostFormValue("domain")
		data.Form["icon"] = r.PostFormValue("icon")
	}
	decorate(data)

	rows, rerr := s.rows(action.PageDomains, func() (any, error) {
		items, err := s.deps.Actions.Domains(r.Context())
		return s.rowsData(items), err
	})
	if rerr != nil {
		s.fail(w, r, rerr)
		return
	}
	data.Rows = rows
	s.render(w, r, status, "domains", data)
}

func (s *Server) createDomain(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Actions.CreateDomain(r.Context(), r.PostFormValue("domain"), r.PostFormValue("icon"))
	if err != nil {
		s.domainsPage(w, r, 0, err, func(*pageData) {})
		return
	}
	st := s.dnsStep(r, out.Domain)
	s.domainsPage(w, r, http.StatusOK, nil, func(d *pageData) {
		d.Success = "Domain added.  Configure DNS to finish setup."
		d.Setup = st
	})
}

func (s *Server) verifyDomain(w http.ResponseWriter, r *http.Request) {
	name := r.PostFormValue("domain")
	out, err := s.deps.Actions.VerifyDomain(r.Context(), name)
	if err != nil {
		var st *setup
		if action.IsProvider(err) {
			st = s.dnsStep(r, name)
		}
		s.domainsPage(w, r, 0, err, func(d *pageData) {
			d.Setup = st
			d.Form = map[string]string{}
		})
		return
	}

	st := &setup{Domain: out.Domain, Step: out.Step}
	if !out.Verified {
		st = s.dnsStep(r, out.Domain)
	}
	s.domainsPage(w, r, http.StatusOK, nil, func(d *pageData) {
		if out.Verified {
			d.Success = out.Message
		} else {
			d.Error = out.Message
		}
		d.Setup = st
	})
}

func (s *Server) deleteDomain(w http.ResponseWriter, r *http.Request) {
	msg, err := s.deps.Actions.DeleteDomain(r.Context(), r.PostFormValue("domain"))
	s.domainsPage(w, r, http.StatusOK, err, func(d *pageData) {
		d.Success = msg
		d.Form = map[string]string{}
	})
}

func (s *Server) domainSetup(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Actions.Domain(r.Context(), chi.URLParam(r, "domain"))
	if errors.Is(err, record.ErrNotFound) {
		s.notFound(w, r)
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	st := &setup{Domain: d.Name, Step: action.StepComplete}
	if !d.Verified {
		st = s.dnsStep(r, d.Name)
	}
	s.domainsPage(w, r, http.StatusOK, nil, func(p *pageData) { p.Setup = st })
}

// dnsStep loads the records for the DNS step.  A provider failure is shown
// inside the step rather than failing the page.
func (s *Server) dnsStep(r *http.Request, name string) *setup {
	st := &setup{Domain: name, Step: action.StepDNS}
	recs, err := s.deps.Actions.DNSRecords(r.Context(), name)
	if err != nil {
		st.Error = action.UserMessage(err)
		return st
	}
	st.Records = recs
	return st
}

//
// Admin: JSON
//

func (s *Server) verificationJSON(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Actions.VerificationDetails(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.jsonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"verified":     out.Verified,
		"verification": out.Verification,
	})
}

func (s *Server) dnsJSON(w http.ResponseWriter, r *http.Request) {
	recs, err := s.deps.Actions.DNSRecords(r.Context(), chi.URLParam(r, "domain"))
	if err != nil {
		s.jsonError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "records": recs})
}

func (s *Server) jsonError(w http.ResponseWriter, err error) {
	status := showError(&pageData{}, err)
	if status == http.StatusInternalServerError {
		s.log.Error("json request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]any{"success": false, "error": action.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) rowsData(items any) rowsData {
	return rowsData{
		Items:      items,
		RootDomain: s.cfg.RootDomain,
		Protocol:   s.cfg.Protocol,
		Paths:      s.paths,
	}
}
