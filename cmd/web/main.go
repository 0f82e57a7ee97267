// cmd/web/main.go
//
// Multi-tenant platform – HTTP entry point.
//
// Start-up
// --------
//
//  1. Load configuration (conf/.env → conf/platform.yaml → PLATFORM_* env).
//
//  2. Resolve "vault:" secret references when any are present.
//
//  3. Start daily rotating logger (tees to console when running in a TTY).
//
//  4. Open the record store and log the tenant count as a sanity check.
//
//  5. Wire provider adapter → action service → hostname router → web
//     server, with the page LRU shared between actions and views.
//
//  6. Start the SSL watcher, then serve until SIGINT or SIGTERM.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/taubermatt/platform/internal/action"
	"github.com/taubermatt/platform/internal/cache"
	"github.com/taubermatt/platform/internal/config"
	"github.com/taubermatt/platform/internal/form"
	"github.com/taubermatt/platform/internal/kv"
	"github.com/taubermatt/platform/internal/logger"
	"github.com/taubermatt/platform/internal/middleware"
	"github.com/taubermatt/platform/internal/provider"
	"github.com/taubermatt/platform/internal/record"
	"github.com/taubermatt/platform/internal/requestinfo"
	"github.com/taubermatt/platform/internal/routing"
	"github.com/taubermatt/platform/internal/server"
	"github.com/taubermatt/platform/internal/sslwatch"
	"github.com/taubermatt/platform/internal/validate"
	"github.com/taubermatt/platform/internal/vault"
	"github.com/taubermatt/platform/internal/web"
)

// pageCacheSize bounds the rendered list fragments kept in memory.
const pageCacheSize = 64

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Log.Dir, cfg.Log.Level, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	if err := run(ctx, cfg, logOut); err != nil {
		logOut.Fatal("platform stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logOut *zap.Logger) error {
	//
	// ── 1.  Secrets ─────────────────────────────────────────────────────
	//
	if cfg.HasSecretRefs() {
		vc, err := vault.New(ctx, logOut)
		if err != nil {
			return err
		}
		if err := config.ResolveSecrets(ctx, cfg, vc); err != nil {
			return err
		}
		logOut.Info("secrets resolved from vault")
	}

	if cfg.GeoIP.DBPath != "" {
		if err := requestinfo.InitGeo(cfg.GeoIP.DBPath); err != nil {
			logOut.Warn("geoip disabled", zap.Error(err))
		} else {
			defer requestinfo.CloseGeo()
		}
	}

	//
	// ── 2.  Record store ────────────────────────────────────────────────
	//
	backend, err := kv.Open(ctx, kv.Config{
		Driver:   cfg.Store.Driver,
		RedisURL: cfg.Store.RedisURL,
		MySQLDSN: cfg.Store.MySQLDSN,
	})
	if err != nil {
		return err
	}
	defer backend.Close()
	store := record.New(backend)

	subs, _ := store.Subdomains(ctx)
	doms, _ := store.Domains(ctx)
	logOut.Info("record store online",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("subdomains", len(subs)),
		zap.Int("domains", len(doms)))

	//
	// ── 3.  Provider, actions, and router ──────────────────────────────
	//
	adapter := provider.NewAdapter(provider.NewClient(provider.Config{
		Token:     cfg.Provider.Token,
		ProjectID: cfg.Provider.ProjectID,
		TeamID:    cfg.Provider.TeamID,
		BaseURL:   cfg.Provider.BaseURL,
		Timeout:   cfg.Provider.Timeout,
	}, logOut.Named("vercel")), logOut)

	pages := cache.New(pageCacheSize)
	actions := action.New(store, adapter, pages, action.Config{
		RootDomain: cfg.Platform.RootDomain,
		Protocol:   cfg.Platform.Protocol,
		Icons:      validate.IconChecker{LengthOnly: cfg.Validation.IconLengthOnly},
	}, logOut.Named("action"))

	reserved := cfg.Routing.ReservedPrefixes
	if len(reserved) == 0 {
		reserved = routing.ReservedPrefixes(cfg.Routing.Profile)
	}
	router := routing.New(routing.Config{
		RootDomain:    cfg.Platform.RootDomain,
		PreviewSuffix: cfg.Routing.PreviewSuffix,
		Reserved:      reserved,
	}, store, logOut.Named("routing"))

	//
	// ── 4.  Web surface ─────────────────────────────────────────────────
	//
	signer, err := form.NewSigner(cfg.Security.CSRFKey)
	if err != nil {
		return err
	}
	if cfg.Security.CSRFKey == "" {
		logOut.Warn("no csrf key configured, forms expire on restart")
	}

	site, err := web.New(web.Config{
		RootDomain: cfg.Platform.RootDomain,
		Protocol:   cfg.Platform.Protocol,
		Profile:    cfg.Routing.Profile,
		ForceHTTPS: cfg.HTTP.ForceHTTPS,
	}, web.Deps{
		Actions: actions,
		Router:  router,
		Pages:   pages,
		CSRF:    signer,
		Limiter: middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Health:  backend.Ping,
		Log:     logOut,
	})
	if err != nil {
		return err
	}

	//
	// ── 5.  Background SSL status ──────────────────────────────────────
	//
	watcher := sslwatch.New(store, adapter, pages, cfg.SSLWatch.Interval, logOut.Named("sslwatch"))
	watcher.Start(ctx)
	defer watcher.Stop()

	logOut.Info("platform ready",
		zap.String("root_domain", cfg.Platform.RootDomain),
		zap.String("profile", cfg.Routing.Profile),
		zap.Strings("reserved", reserved))

	return server.Run(ctx, server.New(cfg.HTTP.ListenAddr, site.Handler(), logOut), logOut)
}
