package profile

import (
	"context"
	"errors"
	"sync"
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
	"github.com/ubika-app/directory-core/internal/store"
)

func newLoader(t *testing.T, fake *gatewaytest.Fake) (*Loader, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	cm := cache.NewManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	st := store.New()
	return NewLoader(fake, cm, st, "admin@ubika.app", 2*time.Second), st
}

func session(id, email string) *gateway.Session {
	return &gateway.Session{UserID: id, Email: email}
}

func TestFullLoadMapsProfileAndLikes(t *testing.T) {
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		return &gateway.ProfileRow{ID: userID, Email: "ana@example.com", FullName: "Ana Pérez", BusinessID: "b1", Role: "CLIENT"}, nil
	}
	fake.FetchLikedFn = func(ctx context.Context, userID string) ([]string, error) {
		return []string{"b2", "b3"}, nil
	}
	l, st := newLoader(t, fake)

	u, err := l.Load(context.Background(), session("u1", "ana@example.com"), false)
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", u.Name)
	assert.Equal(t, domain.RoleClient, u.Role)
	assert.Equal(t, "b1", u.BusinessID)
	assert.Equal(t, []string{"b2", "b3"}, u.LikedBusinessIDs)
	require.NotNil(t, st.CurrentUser())
	assert.Equal(t, "u1", st.CurrentUser().ID)
}

func TestFullLoadAlwaysResolvesAgainstBackend(t *testing.T) {
	businessID := ""
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		return &gateway.ProfileRow{ID: userID, Email: "ana@example.com", Role: "CLIENT", BusinessID: businessID}, nil
	}
	l, st := newLoader(t, fake)

	_, err := l.Load(context.Background(), session("u1", "ana@example.com"), false)
	require.NoError(t, err)

	// The user registers a listing between loads. A reload inside the
	// profile TTL must pick it up, not resurrect the older snapshot.
	businessID = "b-new"
	u, err := l.Load(context.Background(), session("u1", "ana@example.com"), false)
	require.NoError(t, err)

	assert.Equal(t, 2, fake.Calls("FetchProfile"))
	assert.Equal(t, "b-new", u.BusinessID)
	assert.Equal(t, "b-new", st.CurrentUser().BusinessID)
}

func TestQuickLoadHydratesFromCache(t *testing.T) {
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		return &gateway.ProfileRow{ID: userID, Email: "ana@example.com", FullName: "Ana Pérez", Role: "CLIENT"}, nil
	}
	l, _ := newLoader(t, fake)

	_, err := l.Load(context.Background(), session("u1", "ana@example.com"), false)
	require.NoError(t, err)

	// The cached snapshot stands in for the synthesized user; the
	// backend is only consulted again by the delayed follow-up.
	u, err := l.Load(context.Background(), session("u1", "ana@example.com"), true)
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", u.Name)
	assert.Equal(t, 1, fake.Calls("FetchProfile"))
	l.ClearActive()
}

func TestAdminShortCircuit(t *testing.T) {
	fake := gatewaytest.New()
	l, st := newLoader(t, fake)

	u, err := l.Load(context.Background(), session("u-admin", "Admin@Ubika.app"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.Equal(t, "Administrador", u.Name)
	assert.Equal(t, 0, fake.Calls("FetchProfile"))
	assert.Equal(t, domain.RoleAdmin, st.CurrentUser().Role)
}

func TestMissingProfileIsProvisioned(t *testing.T) {
	fake := gatewaytest.New()
	fake.InsertProfileFn = func(ctx context.Context, row gateway.ProfileRow) (*gateway.ProfileRow, error) {
		row.Role = "CLIENT"
		return &row, nil
	}
	l, _ := newLoader(t, fake)

	u, err := l.Load(context.Background(), session("u1", "nueva@example.com"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.Calls("InsertProfile"))
	assert.Equal(t, "nueva", u.Name)
	assert.Equal(t, domain.RoleClient, u.Role)
}

func TestGatewayFailureFallsBackToMinimalUser(t *testing.T) {
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		return nil, errors.New("connection refused")
	}
	l, st := newLoader(t, fake)

	u, err := l.Load(context.Background(), session("u1", "ana@example.com"), false)
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Name)
	assert.Equal(t, domain.RoleClient, u.Role)
	assert.Equal(t, "u1", st.CurrentUser().ID)
}

func TestLikesFailureDoesNotSinkProfile(t *testing.T) {
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		return &gateway.ProfileRow{ID: userID, Email: "ana@example.com", FullName: "Ana", Role: "CLIENT"}, nil
	}
	fake.FetchLikedFn = func(ctx context.Context, userID string) ([]string, error) {
		return nil, errors.New("timeout")
	}
	l, _ := newLoader(t, fake)

	u, err := l.Load(context.Background(), session("u1", "ana@example.com"), false)
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.Empty(t, u.LikedBusinessIDs)
}

func TestQuickLoadSynthesizesThenFollowsUp(t *testing.T) {
	old := followUpDelay
	followUpDelay = 10 * time.Millisecond
	defer func() { followUpDelay = old }()

	done := make(chan struct{})
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		defer close(done)
		return &gateway.ProfileRow{ID: userID, Email: "ana@example.com", FullName: "Ana Pérez", Role: "CLIENT"}, nil
	}
	l, st := newLoader(t, fake)

	u, err := l.Load(context.Background(), session("u1", "ana@example.com"), true)
	require.NoError(t, err)
	assert.Equal(t, "ana", u.Name)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up load never ran")
	}
	assert.Eventually(t, func() bool {
		cu := st.CurrentUser()
		return cu != nil && cu.Name == "Ana Pérez"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClearActiveDiscardsFollowUp(t *testing.T) {
	old := followUpDelay
	followUpDelay = 20 * time.Millisecond
	defer func() { followUpDelay = old }()

	fake := gatewaytest.New()
	l, st := newLoader(t, fake)

	_, err := l.Load(context.Background(), session("u1", "ana@example.com"), true)
	require.NoError(t, err)
	l.ClearActive()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, fake.Calls("FetchProfile"))
	// The quick user published before sign-out is still in the store;
	// the bootstrapper clears it separately.
	assert.NotNil(t, st.CurrentUser())
}

func TestConcurrentLoadsForSameIdentityCollapse(t *testing.T) {
	release := make(chan struct{})
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		<-release
		return &gateway.ProfileRow{ID: userID, Email: "ana@example.com", Role: "CLIENT"}, nil
	}
	l, _ := newLoader(t, fake)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Load(context.Background(), session("u1", "ana@example.com"), false)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, fake.Calls("FetchProfile"))
}

func TestNilSessionRejected(t *testing.T) {
	l, _ := newLoader(t, gatewaytest.New())
	_, err := l.Load(context.Background(), nil, false)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}
