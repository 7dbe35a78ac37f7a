// Package store holds the in-memory authoritative snapshot of the
// directory state: the business list, the landing content, and the
// current user. All reads return copies so callers can never mutate
// shared state.
package store

import (
	"sync"

	"github.com/ubika-app/directory-core/internal/directory/domain"
)

// Store is safe for concurrent use. Invalidate bumps an epoch counter;
// the IfCurrent write variants let asynchronous loaders discard results
// that finished after the state they were loading for was invalidated
// (identity switch, manual retry).
type Store struct {
	mu         sync.RWMutex
	epoch      uint64
	businesses []domain.Business
	user       *domain.User
	landing    domain.LandingContent
}

func New() *Store {
	return &Store{landing: domain.DefaultLandingContent()}
}

// Epoch returns the current epoch. A loader captures it before
// starting and passes it back through an IfCurrent write.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Invalidate bumps the epoch so that every in-flight IfCurrent write
// is discarded.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()
}

// Businesses returns a copy of the business list.
func (s *Store) Businesses() []domain.Business {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Business, len(s.businesses))
	copy(out, s.businesses)
	return out
}

// Business returns the listing with the given id.
func (s *Store) Business(id string) (domain.Business, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.businesses {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Business{}, false
}

// CurrentUser returns a copy of the signed-in user, or nil for a
// visitor.
func (s *Store) CurrentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

func (s *Store) LandingContent() domain.LandingContent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.landing
}

// SetBusinesses replaces the business list and recomputes the derived
// liked-by-user flags against the current user.
func (s *Store) SetBusinesses(bs []domain.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setBusinessesLocked(bs)
}

// SetBusinessesIfCurrent applies the list only when no invalidation
// happened since the epoch was captured. It reports whether the write
// took effect.
func (s *Store) SetBusinessesIfCurrent(epoch uint64, bs []domain.Business) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.setBusinessesLocked(bs)
	return true
}

func (s *Store) setBusinessesLocked(bs []domain.Business) {
	s.businesses = make([]domain.Business, len(bs))
	copy(s.businesses, bs)
	s.markLikedLocked()
}

// SetUser replaces the current user. A nil user means visitor mode.
func (s *Store) SetUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = copyUser(u)
	s.markLikedLocked()
}

func (s *Store) SetUserIfCurrent(epoch uint64, u *domain.User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.user = copyUser(u)
	s.markLikedLocked()
	return true
}

func (s *Store) SetLanding(lc domain.LandingContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.landing = lc
}

func (s *Store) SetLandingIfCurrent(epoch uint64, lc domain.LandingContent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.landing = lc
	return true
}

// ToggleCurrentUserLike applies the optimistic like flip for the signed
// in user: the like list, the counter, and the derived flag move
// together under one lock. It returns the resulting liked state and
// false when there is no current user or no such business.
func (s *Store) ToggleCurrentUserLike(businessID string) (liked bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return false, false
	}
	idx := -1
	for i := range s.businesses {
		if s.businesses[i].ID == businessID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, false
	}

	if s.user.Likes(businessID) {
		kept := s.user.LikedBusinessIDs[:0:0]
		for _, id := range s.user.LikedBusinessIDs {
			if id != businessID {
				kept = append(kept, id)
			}
		}
		s.user.LikedBusinessIDs = kept
		if s.businesses[idx].Likes > 0 {
			s.businesses[idx].Likes--
		}
		s.businesses[idx].LikedByUser = false
		return false, true
	}

	s.user.LikedBusinessIDs = append(s.user.LikedBusinessIDs, businessID)
	s.businesses[idx].Likes++
	s.businesses[idx].LikedByUser = true
	return true, true
}

// ApplyGuestLike applies the optimistic counter bump for an anonymous
// like. It reports whether the business exists.
func (s *Store) ApplyGuestLike(businessID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.businesses {
		if s.businesses[i].ID == businessID {
			s.businesses[i].Likes++
			return true
		}
	}
	return false
}

func (s *Store) markLikedLocked() {
	for i := range s.businesses {
		s.businesses[i].LikedByUser = s.user != nil && s.user.Likes(s.businesses[i].ID)
	}
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LikedBusinessIDs != nil {
		c.LikedBusinessIDs = make([]string, len(u.LikedBusinessIDs))
		copy(c.LikedBusinessIDs, u.LikedBusinessIDs)
	}
	return &c
}
