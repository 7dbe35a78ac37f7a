// Package bootstrap runs the startup sequence exactly once per
// process: hydrate from cache, probe the backend, resolve the session,
// subscribe to auth changes, and fetch fresh data with per-item
// fallbacks. A max-wait timer guarantees the loading state always
// releases.
package bootstrap

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ubika-app/directory-core/config"
	"github.com/ubika-app/directory-core/internal/cache"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/profile"
	"github.com/ubika-app/directory-core/internal/store"
	"github.com/ubika-app/directory-core/internal/timeout"
)

// keepAliveSpec pings the backend often enough that a free-tier
// instance is never paused for inactivity.
const keepAliveSpec = "@every 30m"

type Bootstrapper struct {
	gw      gateway.Gateway
	cache   *cache.Manager
	store   *store.Store
	loader  *profile.Loader
	budgets config.TimeoutConfig

	mu          sync.Mutex
	started     bool
	loading     bool
	connErr     bool
	lastAuthKey string

	sub      *gateway.Subscription
	cron     *cron.Cron
	maxWait  *time.Timer
	consumer sync.WaitGroup
}

func New(gw gateway.Gateway, cm *cache.Manager, st *store.Store, loader *profile.Loader, budgets config.TimeoutConfig) *Bootstrapper {
	return &Bootstrapper{
		gw:      gw,
		cache:   cm,
		store:   st,
		loader:  loader,
		budgets: budgets,
	}
}

// Run executes the startup sequence. Calling it again is a no-op; the
// sequence runs once for the lifetime of the process.
func (b *Bootstrapper) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.loading = true
	b.mu.Unlock()

	b.hydrateFromCache(ctx)

	// The probe result only gets logged; a cold backend wakes up while
	// the rest of the sequence proceeds.
	if _, err := timeout.Run(ctx, b.budgets.Health, "health_probe", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.gw.Health(ctx)
	}); err != nil {
		log.Printf("[warn] operation=health_probe error=%v", err)
	}

	sess, err := timeout.Run(ctx, b.budgets.Session, "resolve_session", b.gw.CurrentSession)
	if err != nil {
		log.Printf("[warn] operation=resolve_session error=%v", err)
	} else if sess != nil {
		// The quick path publishes a provisional user immediately and
		// upgrades it in the background.
		if _, err := b.loader.Load(ctx, sess, true); err != nil {
			log.Printf("[warn] operation=resolve_session load profile error=%v", err)
		}
	}

	b.sub = b.gw.SubscribeAuth()
	b.consumer.Add(1)
	go b.consumeAuthEvents()

	b.maxWait = time.AfterFunc(b.budgets.MaxWait, func() {
		if b.Loading() {
			log.Printf("[warn] operation=bootstrap max wait reached, releasing loading state")
			b.releaseLoading()
		}
	})

	b.cron = cron.New()
	if _, err := b.cron.AddFunc(keepAliveSpec, b.keepAlive); err != nil {
		log.Printf("[warn] operation=keep_alive schedule error=%v", err)
	} else {
		b.cron.Start()
	}

	go func() {
		b.FetchFreshData(context.Background())
		b.releaseLoading()
	}()
	return nil
}

// Loading reports whether the initial data load is still in progress.
func (b *Bootstrapper) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// ConnectionError reports whether the last fresh-data fetch failed to
// reach the backend.
func (b *Bootstrapper) ConnectionError() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connErr
}

// Retry clears every cached snapshot, discards in-flight results, and
// refetches from the backend.
func (b *Bootstrapper) Retry(ctx context.Context) {
	b.mu.Lock()
	b.connErr = false
	b.loading = true
	b.mu.Unlock()

	b.cache.ClearAll(ctx)
	b.store.Invalidate()

	go func() {
		b.FetchFreshData(context.Background())
		b.releaseLoading()
	}()
}

// Close stops the keep-alive schedule and the auth consumer.
func (b *Bootstrapper) Close() {
	if b.maxWait != nil {
		b.maxWait.Stop()
	}
	if b.cron != nil {
		b.cron.Stop()
	}
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.consumer.Wait()
	}
}

// FetchFreshData loads the landing content and the business list in
// parallel, each under its own budget, each falling back independently
// to the hydrated cache state (or defaults) on failure.
func (b *Bootstrapper) FetchFreshData(ctx context.Context) {
	epoch := b.store.Epoch()
	var (
		wg                  sync.WaitGroup
		landingErr, listErr error
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		lc, err := timeout.Run(ctx, b.budgets.Landing, "fetch_landing", b.gw.FetchLandingContent)
		switch {
		case err != nil:
			log.Printf("[warn] operation=fetch_landing error=%v, keeping cached or default content", err)
			landingErr = err
		case lc == nil:
			// Missing singleton row: publish defaults and seed the
			// backend so the admin panel has a row to edit.
			b.store.SetLandingIfCurrent(epoch, domain.DefaultLandingContent())
			if err := b.gw.UpsertLandingContent(ctx, domain.DefaultLandingContent()); err != nil {
				log.Printf("[warn] operation=seed_landing error=%v", err)
			}
		default:
			if b.store.SetLandingIfCurrent(epoch, *lc) {
				b.cache.Set(ctx, cache.KeyLandingContent, lc, cache.DataTTL)
			}
		}
	}()

	go func() {
		defer wg.Done()
		bs, err := timeout.Run(ctx, b.budgets.Businesses, "fetch_businesses", b.gw.FetchBusinesses)
		if err != nil {
			log.Printf("[warn] operation=fetch_businesses error=%v, keeping cached list", err)
			listErr = err
			return
		}
		if b.store.SetBusinessesIfCurrent(epoch, bs) {
			b.cache.Set(ctx, cache.KeyBusinesses, bs, cache.DataTTL)
		}
	}()

	wg.Wait()

	// A fetch superseded by an invalidation must not flip the
	// connection flag either way.
	if b.store.Epoch() == epoch {
		b.mu.Lock()
		b.connErr = unreachable(landingErr) || unreachable(listErr)
		b.mu.Unlock()
	}
}

func unreachable(err error) bool {
	return err != nil && (gateway.IsUnreachable(err) || timeout.IsTimeout(err))
}

// hydrateFromCache publishes cached snapshots so the first render never
// waits on the network. The user profile is keyed per identity, so its
// cached snapshot is applied later, by the loader's quick path, once
// the session has been resolved.
func (b *Bootstrapper) hydrateFromCache(ctx context.Context) {
	var lc domain.LandingContent
	if b.cache.Get(ctx, cache.KeyLandingContent, &lc) {
		b.store.SetLanding(lc)
	}
	var bs []domain.Business
	if b.cache.Get(ctx, cache.KeyBusinesses, &bs) {
		b.store.SetBusinesses(bs)
	}
}

func (b *Bootstrapper) consumeAuthEvents() {
	defer b.consumer.Done()
	for ev := range b.sub.C {
		b.handleAuthEvent(ev)
	}
}

func (b *Bootstrapper) handleAuthEvent(ev gateway.AuthEvent) {
	// Any auth signal proves the backend answered.
	b.releaseLoading()

	b.mu.Lock()
	if ev.Key() == b.lastAuthKey {
		b.mu.Unlock()
		return
	}
	b.lastAuthKey = ev.Key()
	b.mu.Unlock()

	switch ev.Kind {
	case gateway.EventSignedIn, gateway.EventTokenRefreshed, gateway.EventUserUpdated:
		if ev.Session == nil {
			return
		}
		if _, err := b.loader.Load(context.Background(), ev.Session, false); err != nil {
			log.Printf("[warn] operation=auth_event kind=%s load profile error=%v", ev.Kind, err)
		}
	case gateway.EventSignedOut:
		b.loader.ClearActive()
		b.store.SetUser(nil)
	}
}

func (b *Bootstrapper) keepAlive() {
	ctx, cancel := context.WithTimeout(context.Background(), b.budgets.Health)
	defer cancel()
	if err := b.gw.Health(ctx); err != nil {
		log.Printf("[warn] operation=keep_alive error=%v", err)
	}
}

func (b *Bootstrapper) releaseLoading() {
	b.mu.Lock()
	b.loading = false
	b.mu.Unlock()
}
