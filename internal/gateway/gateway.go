// Package gateway defines the facade over the external
// backend-as-a-service platform: auth sessions, row CRUD, the two
// like RPCs, and blob storage. The core treats every call as an opaque
// asynchronous operation that can fail with a structured error.
package gateway

import (
	"context"
	"time"

	"github.com/ubika-app/directory-core/internal/directory/domain"
)

// Session is the opaque authenticated identity issued by the auth
// service. It is owned by that service; the core only references it.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type AuthEventKind string

const (
	EventSignedIn       AuthEventKind = "SIGNED_IN"
	EventSignedOut      AuthEventKind = "SIGNED_OUT"
	EventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is an auth-state-change notification. Session is nil when
// the event carries no active session (sign-out, expiry).
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// Key identifies the event for deduplication: repeated identical
// notifications are ignored by subscribers.
func (e AuthEvent) Key() string {
	if e.Session == nil {
		return string(e.Kind) + "_no_user"
	}
	return string(e.Kind) + "_" + e.Session.UserID
}

// Subscription delivers auth events until Unsubscribe is called.
type Subscription struct {
	C      <-chan AuthEvent
	cancel func()
}

func NewSubscription(ch <-chan AuthEvent, cancel func()) *Subscription {
	return &Subscription{C: ch, cancel: cancel}
}

func (s *Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Credentials carry a sign-up or sign-in request.
type Credentials struct {
	Email    string
	Password string
	FullName string
}

// ProfileRow mirrors the backend profiles table.
type ProfileRow struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	BusinessID string `json:"business_id,omitempty"`
	Role       string `json:"role"`
}

// BusinessPatch is a partial update of a businesses row. Nil fields are
// left untouched.
type BusinessPatch struct {
	Name          *string
	Category      *string
	Description   *string
	ImageURL      *string
	WhatsApp      *string
	Location      *string
	Website       *string
	Instagram     *string
	Facebook      *string
	Status        *domain.BusinessStatus
	Plan          *domain.PlanType
	PlanExpiresAt *time.Time
	AdminNote     *string
}

// Gateway is the remote data gateway contract. Implementations:
// supabase (hosted HTTP backend) and postgres (self-hosted).
type Gateway interface {
	// Health is a minimal read used to probe (and pre-warm) the
	// backend.
	Health(ctx context.Context) error

	// SignUp registers credentials. The returned session is nil when
	// the backend requires email confirmation before the first
	// sign-in.
	SignUp(ctx context.Context, creds Credentials) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// CurrentSession returns (nil, nil) when no session is active.
	CurrentSession(ctx context.Context) (*Session, error)
	// SubscribeAuth registers for auth-state-change notifications for
	// the rest of the process lifetime (until Unsubscribe).
	SubscribeAuth() *Subscription

	// FetchProfile returns (nil, nil) when no profile row exists.
	FetchProfile(ctx context.Context, userID string) (*ProfileRow, error)
	InsertProfile(ctx context.Context, row ProfileRow) (*ProfileRow, error)
	// UpdateProfileBusiness links or (with businessID=="") unlinks the
	// owner's business reference.
	UpdateProfileBusiness(ctx context.Context, userID, businessID string) error
	FetchLikedBusinessIDs(ctx context.Context, userID string) ([]string, error)

	FetchBusinesses(ctx context.Context) ([]domain.Business, error)
	InsertBusiness(ctx context.Context, b domain.Business) (*domain.Business, error)
	UpdateBusiness(ctx context.Context, id string, patch BusinessPatch) error
	DeleteBusiness(ctx context.Context, id string) error

	// FetchLandingContent returns (nil, nil) when the singleton row is
	// missing.
	FetchLandingContent(ctx context.Context) (*domain.LandingContent, error)
	UpsertLandingContent(ctx context.Context, lc domain.LandingContent) error

	// ToggleLike flips the (user, business) like membership; the
	// backend owns the authoritative count.
	ToggleLike(ctx context.Context, userID, businessID string) error
	// IncrementLike bumps the anonymous like counter.
	IncrementLike(ctx context.Context, businessID string) error

	// UploadImage stores the blob and returns its public URL.
	UploadImage(ctx context.Context, name string, content []byte, contentType string) (string, error)
	RemoveImage(ctx context.Context, path string) error
}
