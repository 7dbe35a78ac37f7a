// Package likes applies like actions optimistically and reconciles the
// local state with the backend outcome. The backend count is
// authoritative; a failed confirmation rolls the local state back by
// refetching.
package likes

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ubika-app/directory-core/internal/cache"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/store"
)

// guestThrottle is the minimum spacing between anonymous likes of the
// same business from the same guest.
const guestThrottle = 24 * time.Hour

// ProfileReloader re-resolves the signed-in user from the backend. It
// is how a failed confirmation restores the like list to backend truth.
type ProfileReloader interface {
	Load(ctx context.Context, sess *gateway.Session, quick bool) (*domain.User, error)
}

type Reconciler struct {
	gw       gateway.Gateway
	cache    *cache.Manager
	store    *store.Store
	profiles ProfileReloader
	now      func() time.Time
}

func NewReconciler(gw gateway.Gateway, cm *cache.Manager, st *store.Store, profiles ProfileReloader) *Reconciler {
	return &Reconciler{
		gw:       gw,
		cache:    cm,
		store:    st,
		profiles: profiles,
		now:      time.Now,
	}
}

// Toggle flips the current user's like of the business. The store is
// updated first so the caller observes the change immediately; if the
// backend rejects the toggle the optimistic state is rolled back by
// refetch.
func (r *Reconciler) Toggle(ctx context.Context, businessID string) (liked bool, err error) {
	u := r.store.CurrentUser()
	if u == nil {
		return false, domain.ErrNoSession
	}
	b, ok := r.store.Business(businessID)
	if !ok {
		return false, domain.ErrNotFound
	}
	if b.OwnerID == u.ID || u.BusinessID == businessID {
		return false, domain.ErrOwnBusinessLike
	}

	liked, ok = r.store.ToggleCurrentUserLike(businessID)
	if !ok {
		return false, domain.ErrNotFound
	}

	if err := r.gw.ToggleLike(ctx, u.ID, businessID); err != nil {
		log.Printf("[warn] operation=toggle_like user=%s business=%s error=%v, rolling back", u.ID, businessID, err)
		r.rollback(ctx, u)
		return !liked, fmt.Errorf("toggle like: %w", err)
	}

	r.cache.Set(ctx, cache.KeyBusinesses, r.store.Businesses(), cache.DataTTL)
	return liked, nil
}

// GuestLike bumps the counter for an anonymous visitor, at most once
// per business per guest inside the throttle window. The throttle
// record is written only after backend confirmation, so a failed call
// does not burn the guest's attempt.
func (r *Reconciler) GuestLike(ctx context.Context, guestID, businessID string) error {
	if guestID == "" {
		return fmt.Errorf("guest like: missing guest id")
	}

	if last, ok := r.cache.LastGuestLike(ctx, guestID, businessID); ok {
		if r.now().Sub(last) < guestThrottle {
			return domain.ErrLikeThrottled
		}
	}

	if !r.store.ApplyGuestLike(businessID) {
		return domain.ErrNotFound
	}

	if err := r.gw.IncrementLike(ctx, businessID); err != nil {
		log.Printf("[warn] operation=guest_like guest=%s business=%s error=%v, rolling back", guestID, businessID, err)
		r.rollback(ctx, nil)
		return fmt.Errorf("guest like: %w", err)
	}

	if err := r.cache.RecordGuestLike(ctx, guestID, businessID, r.now()); err != nil {
		// The like went through; a lost throttle record only means the
		// guest could like again early.
		log.Printf("[warn] operation=guest_like guest=%s throttle record lost", guestID)
	}
	r.cache.Set(ctx, cache.KeyBusinesses, r.store.Businesses(), cache.DataTTL)
	return nil
}

// rollback discards the optimistic state by refetching the business
// list and, for a signed-in user, re-resolving the full profile through
// the loader. Refetch failures leave the optimistic state in place
// until the next successful refresh.
func (r *Reconciler) rollback(ctx context.Context, u *domain.User) {
	bs, err := r.gw.FetchBusinesses(ctx)
	if err != nil {
		log.Printf("[warn] operation=like_rollback fetch businesses error=%v", err)
	} else {
		r.store.SetBusinesses(bs)
		r.cache.Set(ctx, cache.KeyBusinesses, bs, cache.DataTTL)
	}

	if u == nil {
		return
	}
	sess := &gateway.Session{UserID: u.ID, Email: u.Email}
	if _, err := r.profiles.Load(ctx, sess, false); err != nil {
		log.Printf("[warn] operation=like_rollback reload profile user=%s error=%v", u.ID, err)
	}
}
