// internal/provider/vercel.go
//
// Minimal Vercel REST client for project-domain management.
//
// Context
// -------
// Custom domains are attached to one Vercel project.  The platform needs
// six calls, all authenticated with a bearer token and optionally scoped to
// a team through the `teamId` query parameter:
//
//   POST   /v10/projects/{project}/domains                 add
//   GET    /v9/projects/{project}/domains/{domain}         inspect
//   POST   /v9/projects/{project}/domains/{domain}/verify  verify
//   DELETE /v9/projects/{project}/domains/{domain}         detach
//   DELETE /v6/domains/{domain}                            delete from account
//   GET    /v6/domains/{domain}/config                     DNS/SSL readiness
//
// Non-2xx responses carry `{"error":{"code","message"}}`.  They surface as
// *APIError whose Error() is the provider's message, unchanged, because the
// admin UI shows it to the operator.
//
// Notes
// -----
// • Transport comes from go-cleanhttp so the client never shares
//   http.DefaultTransport state with the rest of the process.
// • No retries.  The operator re-submits the form.
// • Oxford commas, two spaces after periods.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

// Defaults applied by NewClient.
const (
	DefaultBaseURL   = "https://api.vercel.com"
	DefaultProjectID = "platforms"
	defaultTimeout   = 10 * time.Second
)

// Config holds credentials and addressing for the Vercel API.
type Config struct {
	Token     string
	ProjectID string // id or name; DefaultProjectID when empty
	TeamID    string // optional
	BaseURL   string // DefaultBaseURL when empty
	Timeout   time.Duration
}

// Client talks to the Vercel REST API.  Safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	project    string
	team       string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient builds a Client from cfg.  A nil logger is replaced with a
// no-op logger.
func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	project := cfg.ProjectID
	if project == "" {
		project = DefaultProjectID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = timeout

	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		project:    project,
		team:       cfg.TeamID,
		httpClient: hc,
		log:        log,
	}
}

//
// Wire types
//

// Verification is one DNS challenge Vercel wants satisfied before it will
// serve a domain.
type Verification struct {
	Type   string `json:"type"`
	Domain string `json:"domain"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ProjectDomain is a domain as attached to the project.
type ProjectDomain struct {
	Name         string         `json:"name"`
	ApexName     string         `json:"apexName"`
	ProjectID    string         `json:"projectId"`
	Verified     bool           `json:"verified"`
	Verification []Verification `json:"verification"`
}

// DomainConfig reports whether the domain's DNS points at Vercel.
type DomainConfig struct {
	ConfiguredBy       string   `json:"configuredBy"`
	AcceptedChallenges []string `json:"acceptedChallenges"`
	Misconfigured      bool     `json:"misconfigured"`
}

// APIError is a non-2xx answer from Vercel.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("vercel: unexpected status %d", e.Status)
}

//
// Endpoints
//

// AddProjectDomain attaches name to the project.
func (c *Client) AddProjectDomain(ctx context.Context, name string) (*ProjectDomain, error) {
	var out ProjectDomain
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, c.projectPath("/v10", ""), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProjectDomain returns the project's view of name, including any
// outstanding verification challenges.
func (c *Client) GetProjectDomain(ctx context.Context, name string) (*ProjectDomain, error) {
	var out ProjectDomain
	if err := c.do(ctx, http.MethodGet, c.projectPath("/v9", name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyProjectDomain asks Vercel to re-check the challenges for name.
func (c *Client) VerifyProjectDomain(ctx context.Context, name string) (*ProjectDomain, error) {
	var out ProjectDomain
	if err := c.do(ctx, http.MethodPost, c.projectPath("/v9", name)+"/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveProjectDomain detaches name from the project.
func (c *Client) RemoveProjectDomain(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, c.projectPath("/v9", name), nil, nil)
}

// DeleteDomain removes name from the account.
func (c *Client) DeleteDomain(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v6/domains/"+url.PathEscape(name), nil, nil)
}

// GetDomainConfig reports DNS readiness for name.
func (c *Client) GetDomainConfig(ctx context.Context, name string) (*DomainConfig, error) {
	var out DomainConfig
	if err := c.do(ctx, http.MethodGet, "/v6/domains/"+url.PathEscape(name)+"/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//
// helpers
//

func (c *Client) projectPath(version, domain string) string {
	p := version + "/projects/" + url.PathEscape(c.project) + "/domains"
	if domain != "" {
		p += "/" + url.PathEscape(domain)
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u := c.baseURL + path
	if c.team != "" {
		u += "?teamId=" + url.QueryEscape(c.team)
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug("vercel request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
