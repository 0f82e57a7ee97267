// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` from these layers (highest
precedence last):

  1. Optional `<root>/conf/.env` file.
  2. Optional `<root>/conf/platform.yaml`.
  3. Environment variables prefixed `PLATFORM_`, where `__` maps to “.”
     (e.g., `PLATFORM_STORE__REDIS_URL → store.redis_url`).
  4. Deployment variables kept from the original hosting setup
     (`NEXT_PUBLIC_ROOT_DOMAIN`, `VERCEL_TOKEN`, `VERCEL_PROJECT_ID`,
     `VERCEL_TEAM_ID`, `REDIS_URL`), used only when the keyed value is
     still empty.

The tree is unmarshalled into typed structs, defaults fill the gaps, the
result is validated and cached in an `atomic.Pointer` for lock-free reads.

Instrumentation
---------------
  • DEBUG spans for root discovery and each layer.
  • ERROR spans for parse, unmarshal, and validation failures.
  • INFO span “config loaded” with key highlights.
  • Logs use the global sugared logger (`zap.S()`), which is a no-op until
    main installs the real one.

Notes
-----
  • `rootDir()` climbs from the cwd until it finds `conf/`, so
    `go run ./cmd/web` works from any sub-directory.
  • Oxford commas, two spaces after periods.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLATFORM_"

// legacyEnv maps deployment variables onto config keys.
var legacyEnv = map[string]string{
	"NEXT_PUBLIC_ROOT_DOMAIN": "platform.root_domain",
	"VERCEL_TOKEN":            "provider.token",
	"VERCEL_PROJECT_ID":       "provider.project_id",
	"VERCEL_TEAM_ID":          "provider.team_id",
	"REDIS_URL":               "store.redis_url",
}

var current atomic.Pointer[Config]

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves PLATFORM_ROOT or climbs directories until conf/ is found.
func rootDir() string {
	if r := os.Getenv("PLATFORM_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	for dir := wd; ; {
		if fi, err := os.Stat(filepath.Join(dir, "conf")); err == nil && fi.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load discovers the root directory and calls LoadFrom.
func Load() (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)
	return LoadFrom(root)
}

// LoadFrom reads every layer relative to root, validates, and caches.
func LoadFrom(root string) (*Config, error) {
	// .env never overrides variables already set in the process.
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "platform.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
			return nil, fmt.Errorf("config: %s: %w", yamlPath, err)
		}
		zap.S().Debugw("config yaml absent", "file", yamlPath)
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	for name, key := range legacyEnv {
		if val := os.Getenv(name); val != "" && k.String(key) == "" {
			if err := k.Set(key, val); err != nil {
				return nil, err
			}
			zap.S().Debugw("config legacy variable applied", "env", name, "key", key)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)

	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"root_domain", cfg.Platform.RootDomain,
		"store", cfg.Store.Driver,
		"routing_profile", cfg.Routing.Profile,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"routing.reserved_prefixes": true,
}

// envKey maps PLATFORM_HTTP__LISTEN_ADDR to http.listen_addr.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, "__", "."))
}

func envValue(name, value string) (string, any) {
	key := envKey(name)
	if !listKeys[key] {
		return key, value
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return key, out
}

/*──────────────────────────── defaults ────────────────────────────────────*/

func applyDefaults(c *Config) {
	setDefault(&c.HTTP.ListenAddr, ":8080")
	setDefault(&c.Platform.RootDomain, "localhost:3000")
	if c.Platform.Protocol == "" {
		c.Platform.Protocol = "https"
		if strings.Contains(c.Platform.RootDomain, "localhost") {
			c.Platform.Protocol = "http"
		}
	}
	setDefault(&c.Routing.Profile, "admin")
	setDefault(&c.Routing.PreviewSuffix, ".vercel.app")
	if c.Store.Driver == "" && c.Store.RedisURL != "" {
		c.Store.Driver = "redis"
	}
	setDefault(&c.Store.Driver, "memory")
	setDefault(&c.Provider.ProjectID, "platforms")
	setDefault(&c.Provider.BaseURL, "https://api.vercel.com")
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 10 * time.Second
	}
	setDefault(&c.Log.Dir, filepath.Join(c.Paths.Root, "logs"))
	setDefault(&c.Log.Level, "info")
	if c.RateLimit.Burst == 0 && c.RateLimit.RPS > 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS) + 1
	}
}

func setDefault(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

/*──────────────────────────── secrets ─────────────────────────────────────*/

// SecretResolver turns a vault reference into its value.  *vault.Client
// satisfies it.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// HasSecretRefs reports whether any secret-capable field holds a reference.
func (c *Config) HasSecretRefs() bool {
	for _, p := range c.secrets() {
		if strings.HasPrefix(*p, "vault:") {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every vault reference in c in place.
func ResolveSecrets(ctx context.Context, c *Config, r SecretResolver) error {
	for key, p := range c.secrets() {
		if !strings.HasPrefix(*p, "vault:") {
			continue
		}
		val, err := r.Resolve(ctx, *p)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", key, err)
		}
		*p = val
		zap.S().Debugw("config secret resolved", "key", key)
	}
	return nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// Get returns the last loaded Config, or nil before Load.
func Get() *Config { return current.Load() }
