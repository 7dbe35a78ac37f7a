// Package app wires the core components together and exposes the
// operations the transport layer calls. It owns permission checks and
// the optimistic write flows that span more than one component.
package app

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/ubika-app/directory-core/config"
	"github.com/ubika-app/directory-core/internal/bootstrap"
	"github.com/ubika-app/directory-core/internal/cache"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/likes"
	"github.com/ubika-app/directory-core/internal/profile"
	"github.com/ubika-app/directory-core/internal/store"
	"github.com/ubika-app/directory-core/internal/timeout"
)

type App struct {
	gw      gateway.Gateway
	cache   *cache.Manager
	store   *store.Store
	loader  *profile.Loader
	likes   *likes.Reconciler
	boot    *bootstrap.Bootstrapper
	budgets config.TimeoutConfig
}

func New(gw gateway.Gateway, cm *cache.Manager, adminEmail string, budgets config.TimeoutConfig) *App {
	st := store.New()
	loader := profile.NewLoader(gw, cm, st, adminEmail, budgets.Profile)
	return &App{
		gw:      gw,
		cache:   cm,
		store:   st,
		loader:  loader,
		likes:   likes.NewReconciler(gw, cm, st, loader),
		boot:    bootstrap.New(gw, cm, st, loader, budgets),
		budgets: budgets,
	}
}

// Start runs the one-time bootstrap sequence.
func (a *App) Start(ctx context.Context) error {
	return a.boot.Run(ctx)
}

func (a *App) Close() {
	a.boot.Close()
}

// Snapshots.

func (a *App) Businesses() []domain.Business         { return a.store.Businesses() }
func (a *App) CurrentUser() *domain.User             { return a.store.CurrentUser() }
func (a *App) LandingContent() domain.LandingContent { return a.store.LandingContent() }
func (a *App) Loading() bool                         { return a.boot.Loading() }
func (a *App) ConnectionError() bool                 { return a.boot.ConnectionError() }

func (a *App) Business(id string) (domain.Business, bool) {
	return a.store.Business(id)
}

// Retry wipes cached snapshots and refetches everything.
func (a *App) Retry(ctx context.Context) {
	a.boot.Retry(ctx)
}

// SignUp registers new credentials. The returned user is nil when the
// backend holds the account until the email is confirmed.
func (a *App) SignUp(ctx context.Context, creds gateway.Credentials) (*domain.User, error) {
	sess, err := timeout.Run(ctx, a.budgets.Auth, "sign_up", func(ctx context.Context) (*gateway.Session, error) {
		return a.gw.SignUp(ctx, creds)
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	return a.loader.Load(ctx, sess, false)
}

func (a *App) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	sess, err := timeout.Run(ctx, a.budgets.Auth, "sign_in", func(ctx context.Context) (*gateway.Session, error) {
		return a.gw.SignIn(ctx, email, password)
	})
	if err != nil {
		return nil, err
	}
	return a.loader.Load(ctx, sess, false)
}

// SignOut clears the session and every trace of the signed-in identity.
// The local state is cleared even when the remote call fails.
func (a *App) SignOut(ctx context.Context) error {
	u := a.store.CurrentUser()
	err := a.gw.SignOut(ctx)

	a.loader.ClearActive()
	a.store.SetUser(nil)
	if u != nil {
		a.cache.Remove(ctx, cache.KeyUserProfile+":"+u.ID)
	}
	return err
}

// CreateBusiness registers a listing for the current user and links it
// to their profile. New listings always start pending review on the
// free plan.
func (a *App) CreateBusiness(ctx context.Context, b domain.Business) (*domain.Business, error) {
	u := a.store.CurrentUser()
	if u == nil {
		return nil, domain.ErrNoSession
	}
	if u.BusinessID != "" {
		return nil, fmt.Errorf("create business: %w: user already owns a listing", domain.ErrForbidden)
	}

	b.OwnerID = u.ID
	b.Status = domain.StatusPending
	b.Plan = domain.PlanFree
	b.Likes = 0

	created, err := a.gw.InsertBusiness(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("create business: %w", err)
	}
	if err := a.gw.UpdateProfileBusiness(ctx, u.ID, created.ID); err != nil {
		log.Printf("[warn] operation=create_business link profile error=%v", err)
	}

	u.BusinessID = created.ID
	a.store.SetUser(u)
	a.refreshBusinesses(ctx)
	return created, nil
}

// UpdateBusiness applies a partial update. Owners may edit their own
// listing; admins may edit any, including moderation fields.
func (a *App) UpdateBusiness(ctx context.Context, id string, patch gateway.BusinessPatch) error {
	u := a.store.CurrentUser()
	if u == nil {
		return domain.ErrNoSession
	}
	b, ok := a.store.Business(id)
	if !ok {
		return domain.ErrNotFound
	}
	if u.Role != domain.RoleAdmin {
		if b.OwnerID != u.ID {
			return domain.ErrForbidden
		}
		// Moderation fields stay admin-only.
		if patch.Status != nil || patch.Plan != nil || patch.PlanExpiresAt != nil || patch.AdminNote != nil {
			return domain.ErrForbidden
		}
	}

	if err := a.gw.UpdateBusiness(ctx, id, patch); err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	a.refreshBusinesses(ctx)
	return nil
}

// DeleteBusiness removes the listing, its stored image, and the owner's
// profile link. Image removal is best-effort; an orphaned blob is
// preferable to a half-deleted listing.
func (a *App) DeleteBusiness(ctx context.Context, id string) error {
	u := a.store.CurrentUser()
	if u == nil {
		return domain.ErrNoSession
	}
	b, ok := a.store.Business(id)
	if !ok {
		return domain.ErrNotFound
	}
	if u.Role != domain.RoleAdmin && b.OwnerID != u.ID {
		return domain.ErrForbidden
	}

	if b.ImageURL != "" {
		if err := a.gw.RemoveImage(ctx, path.Base(b.ImageURL)); err != nil {
			log.Printf("[warn] operation=delete_business remove image error=%v", err)
		}
	}
	if err := a.gw.UpdateProfileBusiness(ctx, b.OwnerID, ""); err != nil {
		log.Printf("[warn] operation=delete_business unlink profile error=%v", err)
	}
	if err := a.gw.DeleteBusiness(ctx, id); err != nil {
		return fmt.Errorf("delete business: %w", err)
	}

	if u.ID == b.OwnerID {
		u.BusinessID = ""
		a.store.SetUser(u)
	}
	a.refreshBusinesses(ctx)
	return nil
}

// ToggleLike flips the current user's like. The returned flag is the
// resulting liked state.
func (a *App) ToggleLike(ctx context.Context, businessID string) (bool, error) {
	return a.likes.Toggle(ctx, businessID)
}

// GuestLike counts an anonymous like, throttled per guest and business.
func (a *App) GuestLike(ctx context.Context, guestID, businessID string) error {
	return a.likes.GuestLike(ctx, guestID, businessID)
}

// UpdateLandingContent merges the patch over the current content and
// upserts the result. The store and cache are updated first; an empty
// patch re-upserts the current document unchanged.
func (a *App) UpdateLandingContent(ctx context.Context, patch domain.LandingPatch) (domain.LandingContent, error) {
	u := a.store.CurrentUser()
	if u == nil {
		return domain.LandingContent{}, domain.ErrNoSession
	}
	if u.Role != domain.RoleAdmin {
		return domain.LandingContent{}, domain.ErrForbidden
	}

	merged := patch.Apply(a.store.LandingContent())
	a.store.SetLanding(merged)
	a.cache.Set(ctx, cache.KeyLandingContent, merged, cache.DataTTL)

	if err := a.gw.UpsertLandingContent(ctx, merged); err != nil {
		// Roll back to backend truth when available.
		if lc, ferr := a.gw.FetchLandingContent(ctx); ferr == nil && lc != nil {
			a.store.SetLanding(*lc)
			a.cache.Set(ctx, cache.KeyLandingContent, lc, cache.DataTTL)
		}
		return domain.LandingContent{}, fmt.Errorf("update landing content: %w", err)
	}
	return merged, nil
}

// UploadBusinessImage stores the blob under a collision-free name and
// returns its public URL.
func (a *App) UploadBusinessImage(ctx context.Context, filename string, content []byte, contentType string) (string, error) {
	if a.store.CurrentUser() == nil {
		return "", domain.ErrNoSession
	}
	ext := strings.ToLower(path.Ext(filename))
	name := uuid.New().String() + ext
	url, err := a.gw.UploadImage(ctx, name, content, contentType)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

func (a *App) refreshBusinesses(ctx context.Context) {
	bs, err := timeout.Run(ctx, a.budgets.Businesses, "refresh_businesses", a.gw.FetchBusinesses)
	if err != nil {
		log.Printf("[warn] operation=refresh_businesses error=%v", err)
		return
	}
	a.store.SetBusinesses(bs)
	a.cache.Set(ctx, cache.KeyBusinesses, bs, cache.DataTTL)
}
