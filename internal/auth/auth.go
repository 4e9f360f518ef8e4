package auth

import (
	"sort"
	"sync"
)

// Service decides which Telegram users may talk to the bot. An empty
// allowlist admits everyone.
type Service struct {
	mu      sync.RWMutex
	adminID int64
	allowed map[int64]struct{}
}

func New(adminID int64, initial []int64) *Service {
	s := &Service{adminID: adminID, allowed: make(map[int64]struct{}, len(initial))}
	for _, id := range initial {
		s.allowed[id] = struct{}{}
	}
	return s
}

func (s *Service) IsAllowed(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.allowed) == 0 || (s.adminID != 0 && userID == s.adminID) {
		return true
	}
	_, ok := s.allowed[userID]
	return ok
}

func (s *Service) IsAdmin(userID int64) bool {
	return s.adminID != 0 && userID == s.adminID
}

// Restricted reports whether an allowlist is in force.
func (s *Service) Restricted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.allowed) > 0
}

func (s *Service) Allow(userID int64) {
	s.mu.Lock()
	s.allowed[userID] = struct{}{}
	s.mu.Unlock()
}

// Revoke removes userID. Removing the last entry opens the bot to everyone,
// so the call is refused and reports false.
func (s *Service) Revoke(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.allowed[userID]; !ok || len(s.allowed) == 1 {
		return false
	}
	delete(s.allowed, userID)
	return true
}

// List returns the allowlisted ids in ascending order.
func (s *Service) List() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.allowed))
	for id := range s.allowed {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
