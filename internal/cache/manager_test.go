package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewManager(client), mr
}

type sample struct {
	Name  string `json:"name"`
	Likes int    `json:"likes"`
}

func TestCacheRoundTrip(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	in := sample{Name: "Panadería La Espiga", Likes: 12}
	m.Set(ctx, KeyBusinesses, in, DataTTL)

	var out sample
	require.True(t, m.Get(ctx, KeyBusinesses, &out))
	assert.Equal(t, in, out)
}

func TestCacheMissWhenAbsent(t *testing.T) {
	m, _ := setupManager(t)

	var out sample
	assert.False(t, m.Get(context.Background(), "nothing_here", &out))
}

func TestCacheExpiresByEnvelopeTTL(t *testing.T) {
	m, mr := setupManager(t)
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	m.Set(ctx, KeyUserProfile, sample{Name: "ana"}, ProfileTTL)

	// Still live just under the TTL.
	m.now = func() time.Time { return now.Add(ProfileTTL - time.Second) }
	var out sample
	require.True(t, m.Get(ctx, KeyUserProfile, &out))

	// Stale entries read as absent and are purged.
	m.now = func() time.Time { return now.Add(ProfileTTL + time.Second) }
	assert.False(t, m.Get(ctx, KeyUserProfile, &out))
	assert.False(t, mr.Exists("ubika:cache:"+KeyUserProfile))
}

func TestCacheCorruptEntryReadsAsMiss(t *testing.T) {
	m, mr := setupManager(t)

	require.NoError(t, mr.Set("ubika:cache:"+KeyLandingContent, "{not json"))

	var out sample
	assert.False(t, m.Get(context.Background(), KeyLandingContent, &out))
}

func TestCacheRemoveAndClearAll(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	m.Set(ctx, KeyBusinesses, sample{Name: "a"}, DataTTL)
	m.Set(ctx, KeyLandingContent, sample{Name: "b"}, DataTTL)
	require.NoError(t, m.RecordGuestLike(ctx, "g-1", "b-1", time.Now()))

	m.Remove(ctx, KeyBusinesses)
	var out sample
	assert.False(t, m.Get(ctx, KeyBusinesses, &out))

	m.ClearAll(ctx)
	assert.False(t, m.Get(ctx, KeyLandingContent, &out))

	// Guest rate-limit state survives a cache wipe.
	_, ok := m.LastGuestLike(ctx, "g-1", "b-1")
	assert.True(t, ok)
}

func TestGuestLikeRecordRoundTrip(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, ok := m.LastGuestLike(ctx, "g-9", "b-7")
	require.False(t, ok)

	at := time.Now().Truncate(time.Millisecond)
	require.NoError(t, m.RecordGuestLike(ctx, "g-9", "b-7", at))

	got, ok := m.LastGuestLike(ctx, "g-9", "b-7")
	require.True(t, ok)
	assert.Equal(t, at.UnixMilli(), got.UnixMilli())
}
