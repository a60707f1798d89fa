package redis

import (
	"context"
	"time"

	"github.com/skypro-hub/bonus-hub/internal/domain/student"
)

// StatsCache stores per-student statistics snapshots between syncs. It lets
// readers serve the last known metrics without touching the statistics API.
type StatsCache struct {
	cache *Cache
}

// NewStatsCache creates a new StatsCache.
func NewStatsCache(cache *Cache) *StatsCache {
	return &StatsCache{cache: cache}
}

// Get returns a cached statistics snapshot.
// Returns ErrCacheMiss if the snapshot is absent or expired.
func (s *StatsCache) Get(ctx context.Context, id student.ID) (student.Statistics, error) {
	stats := student.Statistics{}
	if err := s.cache.Get(ctx, StatsKey(int64(id)), &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// Set stores a statistics snapshot. Empty snapshots are not cached.
func (s *StatsCache) Set(ctx context.Context, id student.ID, stats student.Statistics, ttl time.Duration) error {
	if len(stats) == 0 {
		return nil
	}
	return s.cache.Set(ctx, StatsKey(int64(id)), stats, ttl)
}

// Delete removes a student's snapshot.
func (s *StatsCache) Delete(ctx context.Context, id student.ID) error {
	return s.cache.Delete(ctx, StatsKey(int64(id)))
}

// InvalidateAll clears all statistics snapshots.
func (s *StatsCache) InvalidateAll(ctx context.Context) error {
	return s.cache.DeleteByPattern(ctx, PrefixStats+"*")
}

// SetLastSyncAt records the time of the last completed sync run.
func (s *StatsCache) SetLastSyncAt(ctx context.Context, at time.Time) error {
	return s.cache.SetString(ctx, SyncKey("last_run"), at.UTC().Format(time.RFC3339), 0)
}

// LastSyncAt returns the time of the last completed sync run.
// Returns the zero time if no sync has completed yet.
func (s *StatsCache) LastSyncAt(ctx context.Context) (time.Time, error) {
	raw, err := s.cache.GetString(ctx, SyncKey("last_run"))
	if err == ErrCacheMiss {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return at, nil
}
