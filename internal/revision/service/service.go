// Package service implements the revision autosave store: throttled saves,
// lookup, eviction under storage pressure and restore into new documents.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gogotex/gogotex/backend/autosave/internal/document"
	"github.com/gogotex/gogotex/backend/autosave/internal/models"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/index"
	"github.com/gogotex/gogotex/backend/autosave/internal/revision/kv"
	"github.com/gogotex/gogotex/backend/autosave/pkg/logger"
)

// DefaultMinInterval is the production throttle window between two writes.
const DefaultMinInterval = 60 * time.Second

var (
	ErrNotFound         = errors.New("revision not found")
	ErrCorrupt          = errors.New("revision payload is corrupt")
	ErrNothingToEvict   = errors.New("no revisions left to evict")
	ErrAuthorResolution = errors.New("resolve revision author")
	ErrNoHost           = errors.New("restore requires a host data layer")
)

// AuthorResolver loads the full author record for a reference.
type AuthorResolver interface {
	ResolveAuthor(ctx context.Context, id string) (*models.User, error)
}

// DocumentSaver persists a newly built document.
type DocumentSaver interface {
	Save(ctx context.Context, d *document.Document) error
}

// Options configures a Service. Backend is required.
type Options struct {
	Backend     kv.Backend
	KeyPrefix   string
	IndexKey    string
	MinInterval time.Duration

	Authors   AuthorResolver
	Documents DocumentSaver

	// Now overrides the clock used for snapshot times and throttling.
	Now func() time.Time
	// OnAbandon is called whenever a save is dropped. Scheduled saves never
	// report failures to their caller, so this is the only signal besides
	// metrics and logs.
	OnAbandon func(key string, err error)
}

// Service is the revision store exposed to the host application.
type Service struct {
	backend   kv.Backend
	index     *index.Index
	prefix    string
	authors   AuthorResolver
	documents DocumentSaver
	now       func() time.Time
	onAbandon func(key string, err error)
	scheduler *Scheduler
	log       *zap.SugaredLogger

	// mu serialises every change to the index and its payloads. Timer-fired
	// saves and request handlers mutate the store from different goroutines.
	mu sync.Mutex
}

// New builds a Service from opts, filling defaults for unset fields.
func New(opts Options) (*Service, error) {
	if opts.Backend == nil {
		return nil, errors.New("revision service: backend is required")
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = revision.DefaultKeyPrefix
	}
	if opts.IndexKey == "" {
		opts.IndexKey = revision.DefaultIndexKey
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		backend:   opts.Backend,
		index:     index.New(opts.Backend, opts.IndexKey),
		prefix:    opts.KeyPrefix,
		authors:   opts.Authors,
		documents: opts.Documents,
		now:       opts.Now,
		onAbandon: opts.OnAbandon,
		log:       logger.With("component", "revisions"),
	}
	s.scheduler = newScheduler(opts.MinInterval, opts.Now, func(req saveRequest) {
		// failures are already counted and logged by Save
		_, _ = s.Save(context.Background(), req.docType, req.data)
	})
	return s, nil
}

// KeyPrefix returns the prefix shared by all revision keys.
func (s *Service) KeyPrefix() string {
	return s.prefix
}

// DocumentPrefix returns the key prefix of one document's revisions. See
// revision.DocumentPrefix for ids containing "-".
func (s *Service) DocumentPrefix(documentID string) string {
	return revision.DocumentPrefix(s.prefix, documentID)
}

// ScheduleSave asks for data to be snapshotted. It never blocks on the
// throttle and never reports failures.
func (s *Service) ScheduleSave(docType revision.DocumentType, data revision.Revision) {
	s.scheduler.Schedule(saveRequest{docType: docType, data: data})
}

// Flush writes a pending scheduled save immediately, after any save already
// running.
func (s *Service) Flush() {
	s.scheduler.Flush()
}

// Stop drops any pending scheduled save and ignores later ScheduleSave calls.
// It returns once a running save has finished.
func (s *Service) Stop() {
	s.scheduler.Stop()
}

// PendingSave reports when the waiting scheduled save will fire.
func (s *Service) PendingSave() (time.Time, bool) {
	return s.scheduler.Pending()
}

// Find returns the revision stored under key.
func (s *Service) Find(ctx context.Context, key string) (*revision.Revision, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	var rev revision.Revision
	if err := json.Unmarshal([]byte(raw), &rev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return &rev, nil
}

// FindAll returns every indexed revision whose key starts with prefix. Index
// entries without a readable stored revision are skipped.
func (s *Service) FindAll(ctx context.Context, prefix string) (map[string]*revision.Revision, error) {
	keys, err := s.index.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*revision.Revision, len(keys))
	for _, k := range keys {
		rev, err := s.Find(ctx, k)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
				s.log.Debugf("skipping index entry %s: %v", k, err)
				continue
			}
			return nil, err
		}
		out[k] = rev
	}
	return out, nil
}

// Keys lists indexed keys in insertion order.
func (s *Service) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.index.List(ctx, prefix)
}

// Remove deletes the revision stored under key. Unknown keys are ignored.
func (s *Service) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, key)
}

func (s *Service) removeLocked(ctx context.Context, key string) error {
	if err := s.backend.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return s.index.Remove(ctx, key)
}

// Clear deletes every indexed revision.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Clear(ctx)
}

// ListSummaries groups the stored revisions by title for diagnostics. Groups
// are ordered by title and revisions within a group newest first.
func (s *Service) ListSummaries(ctx context.Context) ([]revision.SummaryGroup, error) {
	all, err := s.FindAll(ctx, "")
	if err != nil {
		return nil, err
	}
	byTitle := map[string][]revision.Summary{}
	for key, rev := range all {
		byTitle[rev.Title] = append(byTitle[rev.Title], revision.Summary{
			Key:          key,
			ID:           rev.ID,
			Type:         string(rev.Type),
			SnapshotTime: rev.SnapshotAt().UTC(),
		})
	}
	groups := make([]revision.SummaryGroup, 0, len(byTitle))
	for title, revs := range byTitle {
		sort.Slice(revs, func(i, j int) bool { return revs[i].SnapshotTime.After(revs[j].SnapshotTime) })
		groups = append(groups, revision.SummaryGroup{Title: title, Revisions: revs})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Title < groups[j].Title })
	return groups, nil
}
