package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "ubika:cache:" // Envelope keys: ubika:cache:{name}
	guestKeyPrefix = "ubika:guest:" // Guest like maps: ubika:guest:{guest_id}:likes

	// Canonical snapshot names. Bumped suffix invalidates old entries
	// on deploy.
	KeyLandingContent = "landing_content_v2"
	KeyBusinesses     = "businesses_v2"
	KeyUserProfile    = "user_profile_v2"

	// DataTTL bounds the general snapshots; ProfileTTL is shorter
	// because identity is more volatile.
	DataTTL    = 5 * time.Minute
	ProfileTTL = 2 * time.Minute

	// guestMapTTL keeps the guest like map alive well past the 24h
	// throttle window.
	guestMapTTL = 48 * time.Hour
)

// envelope wraps cached data with its write time and time-to-live.
// Staleness is decided from the envelope, not from the store's own
// expiry, so a clock-skewed or persistent store still honors the TTL.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	TTLMillis int64           `json:"ttl"`
}

// Manager provides keyed read/write of time-bounded snapshots.
// The cache is advisory only: every failure degrades to a miss and is
// logged, never propagated.
type Manager struct {
	client *redis.Client
	now    func() time.Time
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{
		client: client,
		now:    time.Now,
	}
}

// Set serializes data into an envelope and stores it. Errors are
// swallowed and logged; Set never fails the caller.
func (m *Manager) Set(ctx context.Context, key string, data any, ttl time.Duration) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[warn] operation=cache_set key=%s marshal error=%v", key, err)
		return
	}

	env := envelope{
		Data:      raw,
		Timestamp: m.now().UnixMilli(),
		TTLMillis: ttl.Milliseconds(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("[warn] operation=cache_set key=%s marshal envelope error=%v", key, err)
		return
	}

	// The store-level expiry is a backstop; the envelope timestamp is
	// authoritative.
	if err := m.client.Set(ctx, m.cacheKey(key), payload, 2*ttl).Err(); err != nil {
		log.Printf("[warn] operation=cache_set key=%s error=%v", key, err)
	}
}

// Get deserializes the entry under key into dest and reports whether a
// live entry was found. A stale entry is purged and treated as absent;
// any parse or store error degrades to a miss.
func (m *Manager) Get(ctx context.Context, key string, dest any) bool {
	payload, err := m.client.Get(ctx, m.cacheKey(key)).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("[warn] operation=cache_get key=%s error=%v", key, err)
		return false
	}

	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Printf("[warn] operation=cache_get key=%s corrupt envelope error=%v", key, err)
		return false
	}

	age := m.now().UnixMilli() - env.Timestamp
	if age > env.TTLMillis {
		m.Remove(ctx, key)
		return false
	}

	if err := json.Unmarshal(env.Data, dest); err != nil {
		log.Printf("[warn] operation=cache_get key=%s decode error=%v", key, err)
		return false
	}
	return true
}

// Remove deletes the entry under key, best-effort.
func (m *Manager) Remove(ctx context.Context, key string) {
	if err := m.client.Del(ctx, m.cacheKey(key)).Err(); err != nil {
		log.Printf("[warn] operation=cache_remove key=%s error=%v", key, err)
	}
}

// ClearAll deletes every cache envelope, best-effort. Guest like maps
// are left alone: they are rate-limit state, not snapshots.
func (m *Manager) ClearAll(ctx context.Context) {
	iter := m.client.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := m.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("[warn] operation=cache_clear key=%s error=%v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("[warn] operation=cache_clear error=%v", err)
	}
}

// LastGuestLike returns the recorded time of the guest's last like of
// the business, if any.
func (m *Manager) LastGuestLike(ctx context.Context, guestID, businessID string) (time.Time, bool) {
	val, err := m.client.HGet(ctx, m.guestKey(guestID), businessID).Result()
	if err == redis.Nil {
		return time.Time{}, false
	}
	if err != nil {
		log.Printf("[warn] operation=guest_like_get guest=%s error=%v", guestID, err)
		return time.Time{}, false
	}

	var millis int64
	if err := json.Unmarshal([]byte(val), &millis); err != nil {
		log.Printf("[warn] operation=guest_like_get guest=%s corrupt value error=%v", guestID, err)
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// RecordGuestLike stores the like timestamp for the guest/business
// pair. Callers invoke this only after backend confirmation.
func (m *Manager) RecordGuestLike(ctx context.Context, guestID, businessID string, at time.Time) error {
	key := m.guestKey(guestID)
	pipe := m.client.Pipeline()
	pipe.HSet(ctx, key, businessID, at.UnixMilli())
	pipe.Expire(ctx, key, guestMapTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[warn] operation=guest_like_record guest=%s error=%v", guestID, err)
		return err
	}
	return nil
}

func (m *Manager) cacheKey(name string) string {
	return cacheKeyPrefix + name
}

func (m *Manager) guestKey(guestID string) string {
	return guestKeyPrefix + guestID + ":likes"
}
