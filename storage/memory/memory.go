// Package memory provides an in-memory implementation of subsync.ProfileStore.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Storage implements subsync.ProfileStore using in-memory maps
type Storage struct {
	mu         sync.RWMutex
	profiles   map[string]*subsync.Profile
	byCustomer map[string]string // customer ref -> profile id
	now        func() time.Time
}

var (
	_ subsync.ProfileStore = (*Storage)(nil)
	_ subsync.StatsStore   = (*Storage)(nil)
)

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		profiles:   make(map[string]*subsync.Profile),
		byCustomer: make(map[string]string),
		now:        time.Now,
	}
}

// PutProfile inserts or replaces a profile.
func (s *Storage) PutProfile(_ context.Context, prof subsync.Profile) error {
	if prof.ID == "" {
		return fmt.Errorf("invalid profile: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.profiles[prof.ID]; ok && old.BillingCustomerRef != "" {
		delete(s.byCustomer, old.BillingCustomerRef)
	}
	if prof.SubscriptionStatus == "" {
		prof.SubscriptionStatus = subsync.StatusNone
	}
	if prof.UpdatedAt.IsZero() {
		prof.UpdatedAt = s.now().UTC()
	}
	s.profiles[prof.ID] = &prof
	if prof.BillingCustomerRef != "" {
		s.byCustomer[prof.BillingCustomerRef] = prof.ID
	}
	return nil
}

// GetProfile implements subsync.ProfileStore
func (s *Storage) GetProfile(_ context.Context, id string) (*subsync.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prof, ok := s.profiles[id]
	if !ok {
		return nil, subsync.ErrProfileNotFound
	}

	// Return a copy to prevent external mutations
	profCopy := *prof
	return &profCopy, nil
}

// GetProfileByCustomerRef implements subsync.ProfileStore
func (s *Storage) GetProfileByCustomerRef(_ context.Context, customerRef string) (*subsync.Profile, error) {
	if customerRef == "" {
		return nil, subsync.ErrProfileNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCustomer[customerRef]
	if !ok {
		return nil, subsync.ErrProfileNotFound
	}
	profCopy := *s.profiles[id]
	return &profCopy, nil
}

// UpdateProfile implements subsync.ProfileStore
func (s *Storage) UpdateProfile(_ context.Context, id string, upd subsync.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prof, ok := s.profiles[id]
	if !ok {
		return subsync.ErrProfileNotFound
	}
	if upd.IsEmpty() {
		return nil
	}

	next := upd.Apply(*prof)
	next.UpdatedAt = s.now().UTC()
	if next.BillingCustomerRef != prof.BillingCustomerRef {
		if prof.BillingCustomerRef != "" {
			delete(s.byCustomer, prof.BillingCustomerRef)
		}
		if next.BillingCustomerRef != "" {
			s.byCustomer[next.BillingCustomerRef] = id
		}
	}
	s.profiles[id] = &next
	return nil
}

// CountByStatus implements subsync.StatsStore
func (s *Storage) CountByStatus(_ context.Context) (map[subsync.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[subsync.Status]int)
	for _, prof := range s.profiles {
		counts[prof.SubscriptionStatus]++
	}
	return counts, nil
}

// Invalidate drops a profile and its customer index entry.
func (s *Storage) Invalidate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prof, ok := s.profiles[id]; ok {
		if prof.BillingCustomerRef != "" {
			delete(s.byCustomer, prof.BillingCustomerRef)
		}
		delete(s.profiles, id)
	}
	return nil
}

// Clear removes all data (useful for testing)
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles = make(map[string]*subsync.Profile)
	s.byCustomer = make(map[string]string)
}
