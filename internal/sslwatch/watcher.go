// internal/sslwatch/watcher.go
//
// Background updater for custom-domain SSL status.
//
// Context
// -------
// A domain record starts with sslStatus "pending".  Once the domain is
// verified, the hosting provider issues a certificate as soon as DNS points
// at it.  The watcher polls the provider's domain configuration for every
// verified domain not yet "valid" and writes the outcome back:
//
//   • configured       → valid
//   • misconfigured    → pending
//   • provider failure → error
//
// The router never reads SSL status; only the landing-page banner does.
//
// Workflow
// --------
//   Start → tick → Sweep → (bounded fan-out) → UpdateSSLStatus → … → Stop
//
// Notes
// -----
// • Unverified domains and domains already "valid" are skipped.
// • A record whose status is unchanged is not rewritten.
// • Every write drops the cached domain list so the admin screen shows the
//   new status.
// • Oxford commas, two spaces after periods.
package sslwatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taubermatt/platform/internal/action"
	"github.com/taubermatt/platform/internal/metrics"
	"github.com/taubermatt/platform/internal/provider"
	"github.com/taubermatt/platform/internal/record"
)

// Concurrency caps in-flight provider calls per sweep.
const Concurrency = 4

// Store is the record-store surface the watcher uses.
type Store interface {
	Domains(ctx context.Context) ([]record.Domain, error)
	UpdateSSLStatus(ctx context.Context, name string, status record.SSLStatus) error
}

// Checker asks the provider whether DNS for a domain is in place.
type Checker interface {
	DomainConfig(ctx context.Context, name string) provider.ConfigResult
}

// Watcher runs Sweep on a fixed interval.
type Watcher struct {
	store    Store
	check    Checker
	pages    action.Invalidator
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Watcher.  pages may be nil.  interval <= 0 makes Start a
// no-op.
func New(store Store, check Checker, pages action.Invalidator, interval time.Duration, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{store: store, check: check, pages: pages, interval: interval, log: log}
}

// Start launches the loop.  Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info("ssl watcher disabled")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go w.loop(ctx)
	w.log.Info("ssl watcher started", zap.Duration("interval", w.interval))
}

// Stop ends the loop and waits for a running sweep to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.log.Info("ssl watcher stopped")
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn("ssl sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep checks every eligible domain once.  It returns only store-listing
// errors; per-domain failures are recorded as SSL status "error".
func (w *Watcher) Sweep(ctx context.Context) error {
	domains, err := w.store.Domains(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Concurrency)

	for _, d := range domains {
		if !d.Verified || d.SSLStatus == record.SSLValid {
			continue
		}
		d := d
		g.Go(func() error {
			w.refresh(gctx, d)
			return nil
		})
	}
	return g.Wait()
}

func (w *Watcher) refresh(ctx context.Context, d record.Domain) {
	res := w.check.DomainConfig(ctx, d.Name)

	next := record.SSLPending
	switch {
	case !res.Success:
		next = record.SSLError
	case res.Configured:
		next = record.SSLValid
	}
	if next == d.SSLStatus {
		return
	}

	if err := w.store.UpdateSSLStatus(ctx, d.Name, next); err != nil {
		w.log.Warn("ssl status write failed",
			zap.String("domain", d.Name),
			zap.Error(err))
		return
	}
	if w.pages != nil {
		w.pages.Invalidate(action.PageDomains)
	}
	metrics.SSLStatusUpdates.WithLabelValues(string(next)).Inc()
	w.log.Info("ssl status updated",
		zap.String("domain", d.Name),
		zap.String("from", string(d.SSLStatus)),
		zap.String("to", string(next)),
		zap.String("provider_error", res.Error))
}
