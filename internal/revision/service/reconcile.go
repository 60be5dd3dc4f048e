package service

import (
	"context"
	"fmt"

	"github.com/gogotex/gogotex/backend/autosave/internal/revision/kv"
)

// ReconcileReport lists what Reconcile repaired.
type ReconcileReport struct {
	Dangling   []string `json:"dangling" yaml:"dangling"`     // indexed keys without a payload
	Duplicates []string `json:"duplicates" yaml:"duplicates"` // extra index entries for one key
	Orphans    []string `json:"orphans" yaml:"orphans"`       // payloads missing from the index
}

// Reconcile brings the index and the backend back in step after a crash
// between the two writes of a save. Orphaned payloads are only found when the
// backend can enumerate its keys.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rep ReconcileReport
	keys, err := s.index.List(ctx, "")
	if err != nil {
		return rep, err
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			rep.Duplicates = append(rep.Duplicates, k)
			if err := s.index.Remove(ctx, k); err != nil {
				return rep, err
			}
			continue
		}
		seen[k] = true
		_, ok, err := s.backend.Get(ctx, k)
		if err != nil {
			return rep, fmt.Errorf("reconcile %s: %w", k, err)
		}
		if !ok {
			rep.Dangling = append(rep.Dangling, k)
			if err := s.index.Remove(ctx, k); err != nil {
				return rep, err
			}
		}
	}

	lister, ok := s.backend.(kv.Lister)
	if !ok {
		return rep, nil
	}
	stored, err := lister.Keys(ctx, s.prefix)
	if err != nil {
		return rep, err
	}
	for _, k := range stored {
		if k == s.index.Key() || seen[k] {
			continue
		}
		rep.Orphans = append(rep.Orphans, k)
		if err := s.backend.Remove(ctx, k); err != nil {
			return rep, fmt.Errorf("reconcile %s: %w", k, err)
		}
	}

	if n := len(rep.Dangling) + len(rep.Duplicates) + len(rep.Orphans); n > 0 {
		s.log.Warnw("revision index reconciled",
			"dangling", len(rep.Dangling), "duplicates", len(rep.Duplicates), "orphans", len(rep.Orphans))
	}
	return rep, nil
}
