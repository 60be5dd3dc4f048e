package service

import (
	"sync"
	"time"

	"github.com/gogotex/gogotex/backend/autosave/internal/revision"
	"github.com/gogotex/gogotex/backend/autosave/pkg/metrics"
)

// saveRequest is one ScheduleSave call.
type saveRequest struct {
	docType revision.DocumentType
	data    revision.Revision
}

// pendingSave is the single slot holding the payload waiting for the throttle
// window to close. Newer requests overwrite req; fireAt never moves.
type pendingSave struct {
	fireAt time.Time
	req    saveRequest
}

// Scheduler throttles writes to at most one per interval with keep-latest
// coalescing: requests arriving while a write is waiting replace its payload
// instead of queueing behind it.
type Scheduler struct {
	interval time.Duration
	now      func() time.Time
	write    func(saveRequest)

	mu       sync.Mutex
	lastSave time.Time // zero until the first write completes
	pending  *pendingSave
	timer    *time.Timer
	gen      uint64 // identifies the live timer; stale callbacks are ignored
	writing  bool
	stopped  bool
	idle     *sync.Cond // signalled when writing goes false
}

func newScheduler(interval time.Duration, now func() time.Time, write func(saveRequest)) *Scheduler {
	s := &Scheduler{interval: interval, now: now, write: write}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Schedule requests a write of req. It writes immediately when the interval
// since the last completed write has passed and otherwise arms (or reuses)
// the pending slot. The immediate write runs on the caller's goroutine.
func (s *Scheduler) Schedule(req saveRequest) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.pending != nil {
		s.pending.req = req
		s.mu.Unlock()
		metrics.AutosaveCoalesced.Inc()
		return
	}
	if s.writing {
		// the in-flight write arms the timer when it completes
		s.pending = &pendingSave{req: req}
		s.mu.Unlock()
		return
	}

	now := s.now()
	elapsed := now.Sub(s.lastSave)
	if s.lastSave.IsZero() || elapsed > s.interval {
		s.writing = true
		s.mu.Unlock()
		s.run(req)
		return
	}

	wait := s.interval - elapsed
	s.pending = &pendingSave{fireAt: now.Add(wait), req: req}
	s.armLocked(wait)
	s.mu.Unlock()
}

func (s *Scheduler) armLocked(wait time.Duration) {
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(wait, func() { s.fire(gen) })
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil || s.stopped {
		s.mu.Unlock()
		return
	}
	req := s.pending.req
	s.pending = nil
	s.timer = nil
	s.writing = true
	s.mu.Unlock()

	s.run(req)
}

// run performs the write and records its completion time. A request that
// arrived during the write is armed for a full interval from now.
func (s *Scheduler) run(req saveRequest) {
	s.write(req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.writing = false
	s.idle.Broadcast()
	s.lastSave = s.now()
	if s.pending != nil && s.timer == nil && !s.stopped {
		s.pending.fireAt = s.lastSave.Add(s.interval)
		s.armLocked(s.interval)
	}
}

// Flush writes the pending payload now instead of waiting for its window.
// A write already running is waited for first, so a payload scheduled during
// it is not left behind.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	for s.writing {
		s.idle.Wait()
	}
	if s.pending == nil || s.stopped {
		s.mu.Unlock()
		return
	}
	s.disarmLocked()
	req := s.pending.req
	s.pending = nil
	s.writing = true
	s.mu.Unlock()

	s.run(req)
}

// Stop cancels the pending write and rejects further requests. It returns
// once a write already running has finished.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pending = nil
	s.disarmLocked()
	for s.writing {
		s.idle.Wait()
	}
}

// Pending reports when the waiting write will fire.
func (s *Scheduler) Pending() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return time.Time{}, false
	}
	return s.pending.fireAt, true
}
