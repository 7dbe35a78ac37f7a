// Package gatewaytest provides a function-field fake of the gateway
// for package tests. Unset fields behave as an empty, healthy backend.
package gatewaytest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
)

type Fake struct {
	HealthFn                func(ctx context.Context) error
	SignUpFn                func(ctx context.Context, creds gateway.Credentials) (*gateway.Session, error)
	SignInFn                func(ctx context.Context, email, password string) (*gateway.Session, error)
	SignOutFn               func(ctx context.Context) error
	CurrentSessionFn        func(ctx context.Context) (*gateway.Session, error)
	FetchProfileFn          func(ctx context.Context, userID string) (*gateway.ProfileRow, error)
	InsertProfileFn         func(ctx context.Context, row gateway.ProfileRow) (*gateway.ProfileRow, error)
	UpdateProfileBusinessFn func(ctx context.Context, userID, businessID string) error
	FetchLikedFn            func(ctx context.Context, userID string) ([]string, error)
	FetchBusinessesFn       func(ctx context.Context) ([]domain.Business, error)
	InsertBusinessFn        func(ctx context.Context, b domain.Business) (*domain.Business, error)
	UpdateBusinessFn        func(ctx context.Context, id string, patch gateway.BusinessPatch) error
	DeleteBusinessFn        func(ctx context.Context, id string) error
	FetchLandingFn          func(ctx context.Context) (*domain.LandingContent, error)
	UpsertLandingFn         func(ctx context.Context, lc domain.LandingContent) error
	ToggleLikeFn            func(ctx context.Context, userID, businessID string) error
	IncrementLikeFn         func(ctx context.Context, businessID string) error
	UploadImageFn           func(ctx context.Context, name string, content []byte, contentType string) (string, error)
	RemoveImageFn           func(ctx context.Context, path string) error

	// Calls counts invocations by method name.
	mu    sync.Mutex
	calls map[string]int

	events chan gateway.AuthEvent
	closed atomic.Bool
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		calls:  make(map[string]int),
		events: make(chan gateway.AuthEvent, 16),
	}
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

// Calls returns how many times the named method has been invoked.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// Emit delivers an auth event to the subscriber.
func (f *Fake) Emit(ev gateway.AuthEvent) {
	if !f.closed.Load() {
		f.events <- ev
	}
}

func (f *Fake) Health(ctx context.Context) error {
	f.record("Health")
	if f.HealthFn != nil {
		return f.HealthFn(ctx)
	}
	return nil
}

func (f *Fake) SignUp(ctx context.Context, creds gateway.Credentials) (*gateway.Session, error) {
	f.record("SignUp")
	if f.SignUpFn != nil {
		return f.SignUpFn(ctx, creds)
	}
	return nil, nil
}

func (f *Fake) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	f.record("SignIn")
	if f.SignInFn != nil {
		return f.SignInFn(ctx, email, password)
	}
	return &gateway.Session{UserID: "u-fake", Email: email}, nil
}

func (f *Fake) SignOut(ctx context.Context) error {
	f.record("SignOut")
	if f.SignOutFn != nil {
		return f.SignOutFn(ctx)
	}
	return nil
}

func (f *Fake) CurrentSession(ctx context.Context) (*gateway.Session, error) {
	f.record("CurrentSession")
	if f.CurrentSessionFn != nil {
		return f.CurrentSessionFn(ctx)
	}
	return nil, nil
}

func (f *Fake) SubscribeAuth() *gateway.Subscription {
	f.record("SubscribeAuth")
	return gateway.NewSubscription(f.events, func() {
		if f.closed.CompareAndSwap(false, true) {
			close(f.events)
		}
	})
}

func (f *Fake) FetchProfile(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
	f.record("FetchProfile")
	if f.FetchProfileFn != nil {
		return f.FetchProfileFn(ctx, userID)
	}
	return nil, nil
}

func (f *Fake) InsertProfile(ctx context.Context, row gateway.ProfileRow) (*gateway.ProfileRow, error) {
	f.record("InsertProfile")
	if f.InsertProfileFn != nil {
		return f.InsertProfileFn(ctx, row)
	}
	return &row, nil
}

func (f *Fake) UpdateProfileBusiness(ctx context.Context, userID, businessID string) error {
	f.record("UpdateProfileBusiness")
	if f.UpdateProfileBusinessFn != nil {
		return f.UpdateProfileBusinessFn(ctx, userID, businessID)
	}
	return nil
}

func (f *Fake) FetchLikedBusinessIDs(ctx context.Context, userID string) ([]string, error) {
	f.record("FetchLikedBusinessIDs")
	if f.FetchLikedFn != nil {
		return f.FetchLikedFn(ctx, userID)
	}
	return nil, nil
}

func (f *Fake) FetchBusinesses(ctx context.Context) ([]domain.Business, error) {
	f.record("FetchBusinesses")
	if f.FetchBusinessesFn != nil {
		return f.FetchBusinessesFn(ctx)
	}
	return nil, nil
}

func (f *Fake) InsertBusiness(ctx context.Context, b domain.Business) (*domain.Business, error) {
	f.record("InsertBusiness")
	if f.InsertBusinessFn != nil {
		return f.InsertBusinessFn(ctx, b)
	}
	b.ID = "b-new"
	return &b, nil
}

func (f *Fake) UpdateBusiness(ctx context.Context, id string, patch gateway.BusinessPatch) error {
	f.record("UpdateBusiness")
	if f.UpdateBusinessFn != nil {
		return f.UpdateBusinessFn(ctx, id, patch)
	}
	return nil
}

func (f *Fake) DeleteBusiness(ctx context.Context, id string) error {
	f.record("DeleteBusiness")
	if f.DeleteBusinessFn != nil {
		return f.DeleteBusinessFn(ctx, id)
	}
	return nil
}

func (f *Fake) FetchLandingContent(ctx context.Context) (*domain.LandingContent, error) {
	f.record("FetchLandingContent")
	if f.FetchLandingFn != nil {
		return f.FetchLandingFn(ctx)
	}
	return nil, nil
}

func (f *Fake) UpsertLandingContent(ctx context.Context, lc domain.LandingContent) error {
	f.record("UpsertLandingContent")
	if f.UpsertLandingFn != nil {
		return f.UpsertLandingFn(ctx, lc)
	}
	return nil
}

func (f *Fake) ToggleLike(ctx context.Context, userID, businessID string) error {
	f.record("ToggleLike")
	if f.ToggleLikeFn != nil {
		return f.ToggleLikeFn(ctx, userID, businessID)
	}
	return nil
}

func (f *Fake) IncrementLike(ctx context.Context, businessID string) error {
	f.record("IncrementLike")
	if f.IncrementLikeFn != nil {
		return f.IncrementLikeFn(ctx, businessID)
	}
	return nil
}

func (f *Fake) UploadImage(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	f.record("UploadImage")
	if f.UploadImageFn != nil {
		return f.UploadImageFn(ctx, name, content, contentType)
	}
	return "https://cdn.example/" + name, nil
}

func (f *Fake) RemoveImage(ctx context.Context, path string) error {
	f.record("RemoveImage")
	if f.RemoveImageFn != nil {
		return f.RemoveImageFn(ctx, path)
	}
	return nil
}
