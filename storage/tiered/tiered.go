// Package tiered provides a Hot/Cold tiered profile store that fronts a durable
// store (Cold) with a fast cache (Hot).
//
//   - Reads are read-through: Hot first, then Cold with concurrent misses for the same
//     key collapsed into one Cold query, then Hot is populated.
//   - Writes go to Cold first and then invalidate Hot, so a partial update can never
//     leave a cached row that disagrees with the source of truth.
package tiered

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/mihaimyh/subsync/pkg/subsync"
)

// Cache is the hot layer: a profile store that can also be filled and invalidated.
// Both storage/redis and storage/memory implement it.
type Cache interface {
	subsync.ProfileStore
	PutProfile(ctx context.Context, prof subsync.Profile) error
	Invalidate(ctx context.Context, id string) error
}

// Config configures the tiered storage behavior
type Config struct {
	// Hot is the L1 cache (e.g., Redis, Memory)
	Hot Cache

	// Cold is the L2 store (e.g., Postgres, Firestore) and the source of truth
	Cold subsync.ProfileStore

	// ErrorHandler is called when a cache fill or invalidation fails.
	// Essential for monitoring consistency drift.
	ErrorHandler func(error)
}

// Storage implements subsync.ProfileStore over a Hot/Cold pair.
type Storage struct {
	hot  Cache
	cold subsync.ProfileStore
	conf Config

	group singleflight.Group
}

var (
	_ subsync.ProfileStore = (*Storage)(nil)
	_ subsync.StatsStore   = (*Storage)(nil)
)

// New creates a new tiered storage adapter.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}
	return &Storage{
		hot:  config.Hot,
		cold: config.Cold,
		conf: config,
	}, nil
}

// --- Strategy: Read-Through (Hot → Cold → Populate Hot) ---

// GetProfile implements subsync.ProfileStore with read-through strategy.
func (s *Storage) GetProfile(ctx context.Context, id string) (*subsync.Profile, error) {
	if prof, err := s.hot.GetProfile(ctx, id); err == nil {
		return prof, nil
	}
	return s.loadCold("id:"+id, func() (*subsync.Profile, error) {
		return s.cold.GetProfile(ctx, id)
	})
}

// GetProfileByCustomerRef implements subsync.ProfileStore with read-through strategy.
func (s *Storage) GetProfileByCustomerRef(ctx context.Context, customerRef string) (*subsync.Profile, error) {
	if prof, err := s.hot.GetProfileByCustomerRef(ctx, customerRef); err == nil {
		return prof, nil
	}
	return s.loadCold("customer:"+customerRef, func() (*subsync.Profile, error) {
		return s.cold.GetProfileByCustomerRef(ctx, customerRef)
	})
}

// loadCold reads from Cold once per key across concurrent callers and fills Hot.
// Each caller gets its own copy of the profile.
func (s *Storage) loadCold(key string, load func() (*subsync.Profile, error)) (*subsync.Profile, error) {
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		prof, err := load()
		if err != nil {
			return nil, err
		}
		// Cache fill errors are non-critical
		if perr := s.hot.PutProfile(context.Background(), *prof); perr != nil {
			s.reportError(fmt.Errorf("tiered cache fill failed: %w", perr))
		}
		return *prof, nil
	})
	if err != nil {
		return nil, err
	}
	prof := v.(subsync.Profile)
	return &prof, nil
}

// --- Strategy: Write Cold, Invalidate Hot ---

// UpdateProfile implements subsync.ProfileStore. The Cold write decides the outcome;
// a failed invalidation is reported but does not fail the update.
func (s *Storage) UpdateProfile(ctx context.Context, id string, upd subsync.ProfileUpdate) error {
	if err := s.cold.UpdateProfile(ctx, id, upd); err != nil {
		return err
	}
	if err := s.hot.Invalidate(ctx, id); err != nil {
		s.reportError(fmt.Errorf("tiered invalidation failed for %s: %w", id, err))
	}
	return nil
}

// CountByStatus implements subsync.StatsStore by delegating to Cold.
func (s *Storage) CountByStatus(ctx context.Context) (map[subsync.Status]int, error) {
	stats, ok := s.cold.(subsync.StatsStore)
	if !ok {
		return nil, errors.New("tiered storage: cold store does not support stats")
	}
	return stats.CountByStatus(ctx)
}

func (s *Storage) reportError(err error) {
	if s.conf.ErrorHandler != nil {
		s.conf.ErrorHandler(err)
	}
}
