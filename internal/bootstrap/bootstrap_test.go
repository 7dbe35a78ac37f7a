package bootstrap

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ubika-app/directory-core/config"
	"github.com/ubika-app/directory-core/internal/cache"
	"github.com/ubika-app/directory-core/internal/directory/domain"
	"github.com/ubika-app/directory-core/internal/gateway"
	"github.com/ubika-app/directory-core/internal/gateway/gatewaytest"
	"github.com/ubika-app/directory-core/internal/profile"
	"github.com/ubika-app/directory-core/internal/store"
)

func testBudgets() config.TimeoutConfig {
	return config.TimeoutConfig{
		Health:     200 * time.Millisecond,
		Session:    200 * time.Millisecond,
		Profile:    300 * time.Millisecond,
		Landing:    400 * time.Millisecond,
		Businesses: 400 * time.Millisecond,
		Auth:       400 * time.Millisecond,
		MaxWait:    300 * time.Millisecond,
	}
}

func newFixture(t *testing.T, fake *gatewaytest.Fake) (*Bootstrapper, *store.Store, *cache.Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	cm := cache.NewManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	st := store.New()
	loader := profile.NewLoader(fake, cm, st, "admin@ubika.app", testBudgets().Profile)
	b := New(fake, cm, st, loader, testBudgets())
	t.Cleanup(b.Close)
	return b, st, cm
}

func TestRunHydratesFromCacheBeforeFetch(t *testing.T) {
	release := make(chan struct{})
	fake := gatewaytest.New()
	fake.FetchBusinessesFn = func(ctx context.Context) ([]domain.Business, error) {
		<-release
		return []domain.Business{{ID: "b-fresh", Name: "Fresh"}}, nil
	}
	b, st, cm := newFixture(t, fake)

	cm.Set(context.Background(), cache.KeyBusinesses,
		[]domain.Business{{ID: "b-cached", Name: "Cached"}}, cache.DataTTL)

	require.NoError(t, b.Run(context.Background()))

	// Cached list visible immediately, before the backend answers.
	bs := st.Businesses()
	require.Len(t, bs, 1)
	assert.Equal(t, "b-cached", bs[0].ID)

	close(release)
	assert.Eventually(t, func() bool {
		bs := st.Businesses()
		return len(bs) == 1 && bs[0].ID == "b-fresh"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunIsOncePerProcess(t *testing.T) {
	fake := gatewaytest.New()
	b, _, _ := newFixture(t, fake)

	require.NoError(t, b.Run(context.Background()))
	require.NoError(t, b.Run(context.Background()))
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, 1, fake.Calls("CurrentSession"))
}

func TestRunResolvesSessionWithQuickProfile(t *testing.T) {
	fake := gatewaytest.New()
	fake.CurrentSessionFn = func(ctx context.Context) (*gateway.Session, error) {
		return &gateway.Session{UserID: "u1", Email: "ana@example.com"}, nil
	}
	b, st, _ := newFixture(t, fake)

	require.NoError(t, b.Run(context.Background()))

	u := st.CurrentUser()
	require.NotNil(t, u)
	assert.Equal(t, "ana", u.Name)
	assert.Equal(t, domain.RoleClient, u.Role)
}

func TestFetchPublishesAndCachesFreshData(t *testing.T) {
	fake := gatewaytest.New()
	fake.FetchBusinessesFn = func(ctx context.Context) ([]domain.Business, error) {
		return []domain.Business{{ID: "b1", Name: "Cafetería Aurora"}}, nil
	}
	fake.FetchLandingFn = func(ctx context.Context) (*domain.LandingContent, error) {
		lc := domain.DefaultLandingContent()
		lc.HeroTitle = "Bienvenido"
		return &lc, nil
	}
	b, st, cm := newFixture(t, fake)

	b.FetchFreshData(context.Background())

	assert.Equal(t, "Bienvenido", st.LandingContent().HeroTitle)
	assert.Len(t, st.Businesses(), 1)
	assert.False(t, b.ConnectionError())

	var cached []domain.Business
	assert.True(t, cm.Get(context.Background(), cache.KeyBusinesses, &cached))
}

func TestFetchFailureKeepsCachedStateAndFlagsConnection(t *testing.T) {
	fake := gatewaytest.New()
	fake.FetchBusinessesFn = func(ctx context.Context) ([]domain.Business, error) {
		return nil, gateway.Unreachable(errors.New("dial tcp: connection refused"))
	}
	b, st, cm := newFixture(t, fake)

	cm.Set(context.Background(), cache.KeyBusinesses,
		[]domain.Business{{ID: "b-cached"}}, cache.DataTTL)
	b.hydrateFromCache(context.Background())

	b.FetchFreshData(context.Background())

	assert.True(t, b.ConnectionError())
	require.Len(t, st.Businesses(), 1)
	assert.Equal(t, "b-cached", st.Businesses()[0].ID)
}

func TestMissingLandingRowIsSeeded(t *testing.T) {
	fake := gatewaytest.New()
	b, st, _ := newFixture(t, fake)

	b.FetchFreshData(context.Background())

	assert.Equal(t, domain.DefaultLandingContent().HeroTitle, st.LandingContent().HeroTitle)
	assert.Equal(t, 1, fake.Calls("UpsertLandingContent"))
}

func TestMaxWaitReleasesLoading(t *testing.T) {
	stall := make(chan struct{})
	defer close(stall)
	fake := gatewaytest.New()
	fake.FetchBusinessesFn = func(ctx context.Context) ([]domain.Business, error) {
		<-stall
		return nil, nil
	}
	fake.FetchLandingFn = func(ctx context.Context) (*domain.LandingContent, error) {
		<-stall
		return nil, nil
	}

	// Budgets far beyond the max wait, so only the timer can release.
	budgets := testBudgets()
	budgets.Landing = 5 * time.Second
	budgets.Businesses = 5 * time.Second
	budgets.MaxWait = 100 * time.Millisecond

	mr := miniredis.RunT(t)
	cm := cache.NewManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	st := store.New()
	loader := profile.NewLoader(fake, cm, st, "admin@ubika.app", budgets.Profile)
	b := New(fake, cm, st, loader, budgets)
	t.Cleanup(b.Close)

	require.NoError(t, b.Run(context.Background()))
	assert.True(t, b.Loading())

	// The stalled fetches never settle; the max-wait timer must
	// release the loading state on its own.
	assert.Eventually(t, func() bool { return !b.Loading() }, 2*time.Second, 10*time.Millisecond)
}

func TestAuthEventsAreDeduplicated(t *testing.T) {
	fake := gatewaytest.New()
	fake.FetchProfileFn = func(ctx context.Context, userID string) (*gateway.ProfileRow, error) {
		return nil, errors.New("profile backend down")
	}
	b, _, _ := newFixture(t, fake)
	require.NoError(t, b.Run(context.Background()))

	ev := gateway.AuthEvent{
		Kind:    gateway.EventSignedIn,
		Session: &gateway.Session{UserID: "u1", Email: "ana@example.com"},
	}
	fake.Emit(ev)
	fake.Emit(ev)

	assert.Eventually(t, func() bool { return fake.Calls("FetchProfile") == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, fake.Calls("FetchProfile"))
}

func TestSignOutClearsUser(t *testing.T) {
	fake := gatewaytest.New()
	b, st, _ := newFixture(t, fake)
	require.NoError(t, b.Run(context.Background()))

	fake.Emit(gateway.AuthEvent{
		Kind:    gateway.EventSignedIn,
		Session: &gateway.Session{UserID: "u1", Email: "ana@example.com"},
	})
	assert.Eventually(t, func() bool { return st.CurrentUser() != nil }, 2*time.Second, 10*time.Millisecond)

	fake.Emit(gateway.AuthEvent{Kind: gateway.EventSignedOut})
	assert.Eventually(t, func() bool { return st.CurrentUser() == nil }, 2*time.Second, 10*time.Millisecond)
}

func TestRetryClearsCachesAndRefetches(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	fake := gatewaytest.New()
	fake.FetchBusinessesFn = func(ctx context.Context) ([]domain.Business, error) {
		if failing.Load() {
			return nil, gateway.Unreachable(errors.New("dial tcp: connection refused"))
		}
		return []domain.Business{{ID: "b1"}}, nil
	}
	b, st, _ := newFixture(t, fake)

	b.FetchFreshData(context.Background())
	require.True(t, b.ConnectionError())

	failing.Store(false)
	b.Retry(context.Background())

	assert.Eventually(t, func() bool {
		return !b.ConnectionError() && len(st.Businesses()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !b.Loading() }, 2*time.Second, 10*time.Millisecond)
}
