package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gogotex/gogotex/backend/autosave/internal/revision"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/kv"
	"github.com/gogotex/gogotex/backend/autosave/pkg/metrics"
)

// stamp fills the fields owned by the store: the document id (defaulting to
// "draft"), the document type and the snapshot time.
func (s *Service) stamp(docType revision.DocumentType, data revision.Revision) revision.Revision {
	rev := data
	if rev.ID == "" {
		rev.ID = revision.DefaultDocumentID
	}
	rev.Type = docType
	rev.SnapshotTime = s.now().UnixMilli()
	rev.Authors = append([]revision.AuthorRef(nil), data.Authors...)
	rev.Tags = append([]revision.TagRef(nil), data.Tags...)
	return rev
}

// Save snapshots data right away, bypassing the throttle, and returns the key
// it was stored under. When storage is full the oldest revisions are evicted
// one at a time, at most once per revision indexed when the first failure
// happened. Abandoned saves are counted, logged and passed to OnAbandon
// before the error is returned.
func (s *Service) Save(ctx context.Context, docType revision.DocumentType, data revision.Revision) (string, error) {
	rev := s.stamp(docType, data)

	s.mu.Lock()
	key, outcome, err := s.saveLocked(ctx, &rev)
	s.mu.Unlock()
	if err != nil {
		return "", s.abandon(key, outcome, err)
	}
	metrics.AutosaveWrites.WithLabelValues(metrics.OutcomeSaved).Inc()
	return key, nil
}

// saveLocked runs the write path with s.mu held. On failure it returns the
// abandon outcome to record.
func (s *Service) saveLocked(ctx context.Context, rev *revision.Revision) (string, string, error) {
	key, err := s.freeKey(ctx, rev)
	if err != nil {
		return key, metrics.OutcomeAbandonedError, err
	}
	raw, err := json.Marshal(rev)
	if err != nil {
		return key, metrics.OutcomeAbandonedError, err
	}

	budget := -1
	for {
		err := s.persist(ctx, key, string(raw))
		if err == nil {
			s.log.Debugw("revision saved", "key", key, "bytes", len(raw))
			return key, "", nil
		}
		if !errors.Is(err, kv.ErrQuotaExceeded) {
			return key, metrics.OutcomeAbandonedError, err
		}

		if budget < 0 {
			keys, err := s.index.List(ctx, "")
			if err != nil {
				return key, metrics.OutcomeAbandonedError, err
			}
			budget = len(keys)
		}
		if budget == 0 {
			return key, metrics.OutcomeAbandonedQuota, ErrNothingToEvict
		}
		budget--

		evicted, err := s.evictOldestLocked(ctx)
		if err != nil {
			return key, metrics.OutcomeAbandonedError, err
		}
		if !evicted {
			return key, metrics.OutcomeAbandonedQuota, ErrNothingToEvict
		}
	}
}

// freeKey derives the key for rev, moving the snapshot time forward by a
// millisecond while the key is taken so the index never holds duplicates.
func (s *Service) freeKey(ctx context.Context, rev *revision.Revision) (string, error) {
	for {
		key := revision.DeriveKey(s.prefix, rev.ID, rev.SnapshotTime)
		_, taken, err := s.backend.Get(ctx, key)
		if err != nil {
			return key, err
		}
		if !taken {
			return key, nil
		}
		rev.SnapshotTime++
	}
}

// persist indexes key and then stores the payload. On failure the index entry
// is rolled back so the index never points at a missing payload.
func (s *Service) persist(ctx context.Context, key, payload string) error {
	if err := s.index.Add(ctx, key); err != nil {
		// the failed Add left the manifest untouched
		return err
	}
	if err := s.backend.Set(ctx, key, payload); err != nil {
		if rbErr := s.index.Remove(ctx, key); rbErr != nil {
			return fmt.Errorf("%w (index rollback: %v)", err, rbErr)
		}
		return err
	}
	return nil
}

func (s *Service) abandon(key, outcome string, err error) error {
	metrics.AutosaveWrites.WithLabelValues(outcome).Inc()
	s.log.Warnw("revision save abandoned", "key", key, "outcome", outcome, "error", err)
	if s.onAbandon != nil {
		s.onAbandon(key, err)
	}
	return fmt.Errorf("save %s: %w", key, err)
}
