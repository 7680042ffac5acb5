package subsync

import (
	"context"
	"sync"
)

const (
	testUserID      = "user-123"
	testCustomerRef = "cus_test_123"
	testSubRef      = "sub_test_123"
	testDiscordID   = "987654321"
	testUsername    = "slipking"
	testPriceWeek   = "price_week"
	testPriceMonth  = "price_month"
	testPriceYear   = "price_year"
)

// fakeStore is an in-memory ProfileStore that counts calls.
type fakeStore struct {
	mu       sync.Mutex
	profiles map[string]Profile

	gets    int
	updates int

	getErr    error
	updateErr error
}

func newFakeStore(profiles ...Profile) *fakeStore {
	s := &fakeStore{profiles: make(map[string]Profile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetProfile(_ context.Context, id string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (s *fakeStore) GetProfileByCustomerRef(_ context.Context, ref string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, p := range s.profiles {
		if p.BillingCustomerRef == ref {
			p := p
			return &p, nil
		}
	}
	return nil, ErrProfileNotFound
}

func (s *fakeStore) UpdateProfile(_ context.Context, id string, upd ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	p, ok := s.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}
	s.profiles[id] = upd.Apply(p)
	return nil
}

func (s *fakeStore) profile(id string) Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[id]
}

// fakeNotifier records every notification it is asked to send.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []RoleSync
	err  error
}

func (n *fakeNotifier) NotifyRoleSync(_ context.Context, rs RoleSync) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, rs)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// fakeBilling serves canned subscriptions and records price changes.
type fakeBilling struct {
	active    []Subscription
	listErr   error
	updateErr error

	listLimit int
	changes   []PriceChange
}

func (b *fakeBilling) ListActiveSubscriptions(_ context.Context, _ string, limit int) ([]Subscription, error) {
	b.listLimit = limit
	if b.listErr != nil {
		return nil, b.listErr
	}
	if limit > 0 && len(b.active) > limit {
		return b.active[:limit], nil
	}
	return b.active, nil
}

func (b *fakeBilling) UpdateSubscriptionPrice(_ context.Context, change PriceChange) (*Subscription, error) {
	b.changes = append(b.changes, change)
	if b.updateErr != nil {
		return nil, b.updateErr
	}
	for _, s := range b.active {
		if s.ID == change.SubscriptionID {
			updated := s
			updated.Items = []SubscriptionItem{{ID: change.ItemID, PriceID: change.PriceID}}
			return &updated, nil
		}
	}
	return nil, ErrNoActiveSubscription
}

func activeProfile() Profile {
	return Profile{
		ID:                     testUserID,
		Username:               testUsername,
		DiscordID:              testDiscordID,
		BillingCustomerRef:     testCustomerRef,
		BillingSubscriptionRef: testSubRef,
		PlanID:                 testPriceMonth,
		SubscriptionStatus:     StatusActive,
	}
}

func strPtr(s string) *string { return &s }

func statusPtr(s Status) *Status { return &s }
