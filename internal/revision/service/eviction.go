package service

import (
	"context"
	"errors"
	"math"

	"github.com/gogotex/gogotex/backend/autosave/pkg/metrics"
)

// EvictOldest removes the indexed revision with the smallest snapshot time.
// Ties go to the entry listed first. Index entries whose payload is missing or
// unreadable sort before everything else. It reports false when the index is
// empty.
func (s *Service) EvictOldest(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictOldestLocked(ctx)
}

func (s *Service) evictOldestLocked(ctx context.Context) (bool, error) {
	keys, err := s.index.List(ctx, "")
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}

	oldestKey := ""
	var oldest int64
	for i, k := range keys {
		t, err := s.snapshotTime(ctx, k)
		if err != nil {
			return false, err
		}
		if i == 0 || t < oldest {
			oldestKey, oldest = k, t
		}
	}

	if err := s.removeLocked(ctx, oldestKey); err != nil {
		return false, err
	}
	metrics.AutosaveEvictions.Inc()
	s.log.Infow("evicted oldest revision", "key", oldestKey, "snapshotTime", oldest)
	return true, nil
}

func (s *Service) snapshotTime(ctx context.Context, key string) (int64, error) {
	rev, err := s.Find(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
			return math.MinInt64, nil
		}
		return 0, err
	}
	return rev.SnapshotTime, nil
}
