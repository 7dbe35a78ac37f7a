// Package profile resolves an authenticated session into a domain user.
// It owns the per-identity single-flight guard, the admin
// short-circuit, and the quick/full loading paths.
package profile

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ubika-app/directory-core/internal/cache"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/store"
	"github.com/ubika-app/directory-core/internal/timeout"
)

// followUpDelay separates the quick synthesized profile from the full
// backend load that replaces it.
var followUpDelay = 500 * time.Millisecond

const adminDisplayName = "Administrador"

// Loader is safe for concurrent use. At most one load per identity is
// in flight at a time; overlapping requests for the same identity are
// dropped, not queued.
type Loader struct {
	gw         gateway.Gateway
	cache      *cache.Manager
	store      *store.Store
	adminEmail string
	budget     time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	active   string
}

func NewLoader(gw gateway.Gateway, cm *cache.Manager, st *store.Store, adminEmail string, budget time.Duration) *Loader {
	return &Loader{
		gw:         gw,
		cache:      cm,
		store:      st,
		adminEmail: strings.ToLower(adminEmail),
		budget:     budget,
		inflight:   make(map[string]struct{}),
	}
}

// Load resolves the session into a user and publishes it to the store.
// quick returns a cached or synthesized profile immediately and
// schedules the full backend load; the follow-up is discarded if the
// identity changes before it lands. A full load always resolves against
// the backend.
func (l *Loader) Load(ctx context.Context, sess *gateway.Session, quick bool) (*domain.User, error) {
	if sess == nil {
		return nil, domain.ErrNoSession
	}

	l.mu.Lock()
	if _, busy := l.inflight[sess.UserID]; busy {
		l.mu.Unlock()
		log.Printf("[info] operation=load_profile user=%s already in flight, dropping", sess.UserID)
		return l.store.CurrentUser(), nil
	}
	l.inflight[sess.UserID] = struct{}{}
	l.active = sess.UserID
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.inflight, sess.UserID)
		l.mu.Unlock()
	}()

	// The configured admin identity never round-trips to the backend.
	if l.adminEmail != "" && strings.EqualFold(sess.Email, l.adminEmail) {
		admin := &domain.User{
			ID:    sess.UserID,
			Name:  adminDisplayName,
			Email: sess.Email,
			Role:  domain.RoleAdmin,
		}
		l.publish(sess.UserID, admin)
		l.cache.Set(ctx, profileKey(sess.UserID), admin, cache.DataTTL)
		return admin, nil
	}

	if quick {
		// A cached snapshot hydrates the quick user; the follow-up
		// still resolves against the backend, so a stale snapshot
		// only lives until the full load lands.
		u := synthesize(sess)
		var cached domain.User
		if l.cache.Get(ctx, profileKey(sess.UserID), &cached) && cached.ID == sess.UserID {
			u = &cached
		}
		l.publish(sess.UserID, u)
		time.AfterFunc(followUpDelay, func() {
			if !l.isActive(sess.UserID) {
				return
			}
			if _, err := l.Load(context.Background(), sess, false); err != nil {
				log.Printf("[warn] operation=load_profile_followup user=%s error=%v", sess.UserID, err)
			}
		})
		return u, nil
	}

	u, err := timeout.Run(ctx, l.budget, "load_profile", func(ctx context.Context) (*domain.User, error) {
		return l.loadFull(ctx, sess)
	})
	if err != nil {
		// Degrade to a minimal client user rather than leaving the
		// session unresolved.
		log.Printf("[warn] operation=load_profile user=%s error=%v, using fallback", sess.UserID, err)
		fallback := synthesize(sess)
		l.publish(sess.UserID, fallback)
		return fallback, nil
	}

	l.publish(sess.UserID, u)
	l.cache.Set(ctx, profileKey(sess.UserID), u, cache.ProfileTTL)
	return u, nil
}

// ClearActive forgets the active identity so that any pending follow-up
// or late result is discarded. Called on sign-out.
func (l *Loader) ClearActive() {
	l.mu.Lock()
	l.active = ""
	l.mu.Unlock()
}

// loadFull fetches the profile row and the like list concurrently.
// Either half may fail without sinking the other: a missing profile is
// provisioned, a failed like fetch yields an empty list.
func (l *Loader) loadFull(ctx context.Context, sess *gateway.Session) (*domain.User, error) {
	var (
		wg     sync.WaitGroup
		row    *gateway.ProfileRow
		rowErr error
		liked  []string
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		row, rowErr = l.gw.FetchProfile(ctx, sess.UserID)
	}()
	go func() {
		defer wg.Done()
		ids, err := l.gw.FetchLikedBusinessIDs(ctx, sess.UserID)
		if err != nil {
			log.Printf("[warn] operation=fetch_likes user=%s error=%v", sess.UserID, err)
			return
		}
		liked = ids
	}()
	wg.Wait()

	if rowErr != nil {
		return nil, rowErr
	}
	if row == nil {
		provisioned, err := l.gw.InsertProfile(ctx, gateway.ProfileRow{
			ID:    sess.UserID,
			Email: sess.Email,
			Role:  string(domain.RoleClient),
		})
		if err != nil {
			return nil, err
		}
		row = provisioned
	}

	u := &domain.User{
		ID:               row.ID,
		Name:             row.FullName,
		Email:            row.Email,
		BusinessID:       row.BusinessID,
		Role:             domain.UserRole(row.Role),
		LikedBusinessIDs: liked,
	}
	if u.Name == "" {
		u.Name = localPart(u.Email)
	}
	if u.Role != domain.RoleAdmin && u.Role != domain.RoleClient {
		u.Role = domain.RoleClient
	}
	return u, nil
}

func (l *Loader) publish(userID string, u *domain.User) {
	if !l.isActive(userID) {
		log.Printf("[info] operation=load_profile user=%s identity changed, discarding result", userID)
		return
	}
	l.store.SetUser(u)
}

func (l *Loader) isActive(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active == userID
}

// synthesize builds the provisional client user shown while the real
// profile loads, or when the backend is unreachable.
func synthesize(sess *gateway.Session) *domain.User {
	return &domain.User{
		ID:    sess.UserID,
		Name:  localPart(sess.Email),
		Email: sess.Email,
		Role:  domain.RoleClient,
	}
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func profileKey(userID string) string {
	return cache.KeyUserProfile + ":" + userID
}
