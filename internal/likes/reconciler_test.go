package likes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubika-app/directory-core/internal/cache"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/gateway/gatewaytest"
	"github.com/ubika-app/directory-core/internal/profile"
	"github.com/ubika-app/directory-core/internal/store"
)

func newReconciler(t *testing.T, fake *gatewaytest.Fake) (*Reconciler, *store.Store, *cache.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	cm := cache.NewManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	st := store.New()
	st.SetBusinesses([]domain.Business{
		{ID: "b1", OwnerID: "owner-1", Name: "Cafetería Aurora", Likes: 3},
		{ID: "b2", OwnerID: "owner-2", Name: "Taller Norte", Likes: 1},
	})
	loader := profile.NewLoader(fake, cm, st, "admin@ubika.app", 2*time.Second)
	return NewReconciler(fake, cm, st, loader), st, cm
}

func TestToggleAppliesOptimisticallyAndConfirms(t *testing.T) {
	fake := gatewaytest.New()
	r, st, _ := newReconciler(t, fake)
	st.SetUser(&domain.User{ID: "u1"})

	liked, err := r.Toggle(context.Background(), "b1")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, fake.Calls("ToggleLike"))

	b, _ := st.Business("b1")
	assert.Equal(t, 4, b.Likes)
	assert.True(t, b.LikedByUser)
}

func TestToggleOwnBusinessIsRejected(t *testing.T) {
	fake := gatewaytest.New()
	r, st, _ := newReconciler(t, fake)
	st.SetUser(&domain.User{ID: "owner-1", BusinessID: "b1"})

	_, err := r.Toggle(context.Background(), "b1")
	assert.ErrorIs(t, err, domain.ErrOwnBusinessLike)
	assert.Equal(t, 0, fake.Calls("ToggleLike"))

	b, _ := st.Business("b1")
	assert.Equal(t, 3, b.Likes)
}

func TestToggleWithoutSession(t *testing.T) {
	fake := gatewaytest.New()
	r, _, _ := newReconciler(t, fake)

	_, err := r.Toggle(context.Background(), "b1")
	assert.ErrorIs(t, err, domain.ErrNoSession)
}

func TestToggleRollsBackOnBackendFailure(t *testing.T) {
	fake := gatewaytest.New()
	fake.ToggleLikeFn = func(ctx context.Context, userID, businessID string) error {
		return errors.New("rpc failed")
	}
	fake.FetchBusinessesFn = func(ctx context.Context) ([]domain.Business, error) {
		return []domain.Business{{ID: "b1", OwnerID: "owner-1", Likes: 3}}, nil
	}
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		return &gateway.ProfileRow{ID: userID, Email: "ana@example.com", FullName: "Ana", Role: "CLIENT"}, nil
	}
	fake.FetchLikedFn = func(ctx context.Context, userID string) ([]string, error) {
		return nil, nil
	}
	r, st, _ := newReconciler(t, fake)
	st.SetUser(&domain.User{ID: "u1", Email: "ana@example.com"})

	_, err := r.Toggle(context.Background(), "b1")
	require.Error(t, err)

	// Backend truth restored through a full profile reload.
	assert.Equal(t, 1, fake.Calls("FetchProfile"))
	b, _ := st.Business("b1")
	assert.Equal(t, 3, b.Likes)
	assert.False(t, b.LikedByUser)
	assert.False(t, st.CurrentUser().Likes("b1"))
}

func TestGuestLikeIncrementsAndRecordsThrottle(t *testing.T) {
	fake := gatewaytest.New()
	r, st, cm := newReconciler(t, fake)

	require.NoError(t, r.GuestLike(context.Background(), "g1", "b2"))
	assert.Equal(t, 1, fake.Calls("IncrementLike"))

	b, _ := st.Business("b2")
	assert.Equal(t, 2, b.Likes)

	_, recorded := cm.LastGuestLike(context.Background(), "g1", "b2")
	assert.True(t, recorded)
}

func TestGuestLikeThrottledInsideWindow(t *testing.T) {
	fake := gatewaytest.New()
	r, _, _ := newReconciler(t, fake)

	require.NoError(t, r.GuestLike(context.Background(), "g1", "b2"))
	err := r.GuestLike(context.Background(), "g1", "b2")
	assert.ErrorIs(t, err, domain.ErrLikeThrottled)
	assert.Equal(t, 1, fake.Calls("IncrementLike"))
}

func TestGuestLikeAllowedAfterWindow(t *testing.T) {
	fake := gatewaytest.New()
	r, _, _ := newReconciler(t, fake)

	require.NoError(t, r.GuestLike(context.Background(), "g1", "b2"))
	r.now = func() time.Time { return time.Now().Add(25 * time.Hour) }

	require.NoError(t, r.GuestLike(context.Background(), "g1", "b2"))
	assert.Equal(t, 2, fake.Calls("IncrementLike"))
}

func TestGuestLikeFailureDoesNotBurnThrottle(t *testing.T) {
	fake := gatewaytest.New()
	fake.IncrementLikeFn = func(ctx context.Context, businessID string) error {
		return errors.New("rpc failed")
	}
	fake.FetchBusinessesFn = func(ctx context.Context) ([]domain.Business, error) {
		return []domain.Business{{ID: "b2", OwnerID: "owner-2", Likes: 1}}, nil
	}
	r, st, cm := newReconciler(t, fake)

	err := r.GuestLike(context.Background(), "g1", "b2")
	require.Error(t, err)

	b, _ := st.Business("b2")
	assert.Equal(t, 1, b.Likes)
	_, recorded := cm.LastGuestLike(context.Background(), "g1", "b2")
	assert.False(t, recorded)
}

func TestGuestLikeUnknownBusiness(t *testing.T) {
	fake := gatewaytest.New()
	r, _, _ := newReconciler(t, fake)

	err := r.GuestLike(context.Background(), "g1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, fake.Calls("IncrementLike"))
}
