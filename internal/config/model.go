// internal/config/model.go
//
// Typed configuration model for the platform service.
//
// Context
// -------
// These structs define the shape of the tree that `loader.go` builds from
// the overlay layers:
//
//   • optional `.env`                            – dotenv values,
//   • optional `conf/platform.yaml`              – static file,
//   • `PLATFORM_`-prefixed environment overrides – highest precedence.
//
// Values written as `vault:<mount>/<path>#<key>` are swapped for the secret
// by ResolveSecrets after validation, so consumers only ever see plain
// strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Durations accept Go syntax ("10s", "5m") in YAML and env.
//   • Lists accept comma-separated strings from env.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Platform section
//

// Platform names the root domain tenants hang off.  RootDomain may carry a
// port in development ("localhost:3000").
type Platform struct {
	RootDomain string `koanf:"root_domain" validate:"required"`
	Protocol   string `koanf:"protocol"    validate:"oneof=http https"`
}

//
// Routing section
//

// Routing configures the hostname router.  ReservedPrefixes, when set,
// replaces the profile's list.
type Routing struct {
	Profile          string   `koanf:"profile"           validate:"oneof=admin split"`
	ReservedPrefixes []string `koanf:"reserved_prefixes" validate:"dive,startswith=/"`
	PreviewSuffix    string   `koanf:"preview_suffix"    validate:"startswith=."`
}

//
// Store section
//

// Store selects the key-value backend.
type Store struct {
	Driver   string `koanf:"driver"    validate:"oneof=redis mysql memory"`
	RedisURL string `koanf:"redis_url" validate:"required_if=Driver redis"`
	MySQLDSN string `koanf:"mysql_dsn" validate:"required_if=Driver mysql"`
}

//
// Provider section
//

// Provider holds Vercel API credentials.  An empty Token leaves the
// provider unconfigured; every call then fails with the API's auth error.
type Provider struct {
	Token     string        `koanf:"token"`
	ProjectID string        `koanf:"project_id" validate:"required"`
	TeamID    string        `koanf:"team_id"`
	BaseURL   string        `koanf:"base_url"   validate:"required,url"`
	Timeout   time.Duration `koanf:"timeout"    validate:"gt=0"`
}

//
// Ambient sections
//

type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

// SSLWatch configures the background SSL-status updater.  Zero disables it.
type SSLWatch struct {
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

type Security struct {
	CSRFKey string `koanf:"csrf_key"`
}

// RateLimit applies per client IP to admin mutations.  RPS 0 disables it.
type RateLimit struct {
	RPS   float64 `koanf:"rps"   validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
}

// Validation relaxes icon checks to length only when the emoji table
// rejects icons users expect to work.
type Validation struct {
	IconLengthOnly bool `koanf:"icon_length_only"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // PLATFORM_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load().
type Config struct {
	HTTP       HTTP       `koanf:"http"`
	Platform   Platform   `koanf:"platform"`
	Routing    Routing    `koanf:"routing"`
	Store      Store      `koanf:"store"`
	Provider   Provider   `koanf:"provider"`
	Log        Log        `koanf:"log"`
	GeoIP      GeoIP      `koanf:"geoip"`
	SSLWatch   SSLWatch   `koanf:"sslwatch"`
	Security   Security   `koanf:"security"`
	RateLimit  RateLimit  `koanf:"ratelimit"`
	Validation Validation `koanf:"validation"`
	Paths      Paths      `koanf:"-"`
}

// secrets lists the fields that may hold vault references.
func (c *Config) secrets() map[string]*string {
	return map[string]*string{
		"provider.token":    &c.Provider.Token,
		"store.redis_url":   &c.Store.RedisURL,
		"store.mysql_dsn":   &c.Store.MySQLDSN,
		"security.csrf_key": &c.Security.CSRFKey,
	}
}
