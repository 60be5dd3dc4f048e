package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gogotex/gogotex/backend/autosave/internal/revision"
)

type recordedWrite struct {
	at    time.Time
	title string
}

type writeRecorder struct {
	mu     sync.Mutex
	writes []recordedWrite
	block  chan struct{} // when set, the first write waits on it
}

func (r *writeRecorder) write(req saveRequest) {
	r.mu.Lock()
	r.writes = append(r.writes, recordedWrite{at: time.Now(), title: req.data.Title})
	block := r.block
	r.block = nil
	r.mu.Unlock()
	if block != nil {
		<-block
	}
}

func (r *writeRecorder) snapshot() []recordedWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedWrite(nil), r.writes...)
}

func (r *writeRecorder) count() int {
	return len(r.snapshot())
}

func req(title string) saveRequest {
	return saveRequest{docType: revision.TypePost, data: revision.Revision{ID: "d1", Title: title}}
}

func TestScheduler_FirstSaveFiresImmediately(t *testing.T) {
	rec := &writeRecorder{}
	s := newScheduler(time.Hour, time.Now, rec.write)
	defer s.Stop()

	s.Schedule(req("first"))
	require.Equal(t, 1, rec.count())
	_, pending := s.Pending()
	require.False(t, pending)
}

func TestScheduler_CoalescesToLatestPayload(t *testing.T) {
	const interval = 50 * time.Millisecond
	rec := &writeRecorder{}
	s := newScheduler(interval, time.Now, rec.write)
	defer s.Stop()

	s.Schedule(req("v1"))
	s.Schedule(req("v2"))
	s.Schedule(req("v3"))
	s.Schedule(req("v4"))

	// only the immediate write so far; the rest share one pending slot
	require.Equal(t, 1, rec.count())
	fireAt, pending := s.Pending()
	require.True(t, pending)
	require.False(t, fireAt.IsZero())

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	writes := rec.snapshot()
	require.Equal(t, "v1", writes[0].title)
	require.Equal(t, "v4", writes[1].title)
	require.GreaterOrEqual(t, writes[1].at.Sub(writes[0].at), interval)

	// intermediate payloads were dropped, not queued
	time.Sleep(3 * interval)
	require.Equal(t, 2, rec.count())
}

func TestScheduler_OneWritePerWindow(t *testing.T) {
	const interval = 40 * time.Millisecond
	rec := &writeRecorder{}
	s := newScheduler(interval, time.Now, rec.write)
	defer s.Stop()

	deadline := time.Now().Add(5 * interval)
	for time.Now().Before(deadline) {
		s.Schedule(req("burst"))
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(2 * interval)

	writes := rec.snapshot()
	require.GreaterOrEqual(t, len(writes), 2)
	for i := 1; i < len(writes); i++ {
		require.GreaterOrEqual(t, writes[i].at.Sub(writes[i-1].at), interval,
			"writes %d and %d are closer than the interval", i-1, i)
	}
}

func TestScheduler_FiresImmediatelyAfterQuietPeriod(t *testing.T) {
	const interval = 20 * time.Millisecond
	rec := &writeRecorder{}
	s := newScheduler(interval, time.Now, rec.write)
	defer s.Stop()

	s.Schedule(req("a"))
	time.Sleep(2 * interval)
	s.Schedule(req("b"))
	require.Equal(t, 2, rec.count())
}

func TestScheduler_RequestDuringWriteWaitsFullInterval(t *testing.T) {
	const interval = 30 * time.Millisecond
	release := make(chan struct{})
	rec := &writeRecorder{block: release}
	s := newScheduler(interval, time.Now, rec.write)
	defer s.Stop()

	done := make(chan struct{})
	go func() {
		s.Schedule(req("slow"))
		close(done)
	}()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	s.Schedule(req("during"))
	s.Schedule(req("during-latest"))
	close(release)
	<-done
	releasedAt := time.Now()

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 2*time.Millisecond)
	writes := rec.snapshot()
	require.Equal(t, "during-latest", writes[1].title)
	require.GreaterOrEqual(t, writes[1].at.Sub(releasedAt), interval-5*time.Millisecond)
}

func TestScheduler_FlushWritesPendingNow(t *testing.T) {
	rec := &writeRecorder{}
	s := newScheduler(time.Hour, time.Now, rec.write)
	defer s.Stop()

	s.Schedule(req("a"))
	s.Schedule(req("b"))
	require.Equal(t, 1, rec.count())

	s.Flush()
	writes := rec.snapshot()
	require.Len(t, writes, 2)
	require.Equal(t, "b", writes[1].title)

	// nothing pending: no-op
	s.Flush()
	require.Equal(t, 2, rec.count())
}

func TestScheduler_StopDropsPending(t *testing.T) {
	const interval = 20 * time.Millisecond
	rec := &writeRecorder{}
	s := newScheduler(interval, time.Now, rec.write)

	s.Schedule(req("a"))
	s.Schedule(req("b"))
	s.Stop()
	s.Schedule(req("c"))

	time.Sleep(3 * interval)
	require.Equal(t, 1, rec.count())
}

func TestScheduler_FlushWaitsForRunningWrite(t *testing.T) {
	release := make(chan struct{})
	rec := &writeRecorder{block: release}
	s := newScheduler(time.Hour, time.Now, rec.write)

	go s.Schedule(req("in-flight"))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	s.Schedule(req("latest-edit"))

	flushed := make(chan struct{})
	go func() {
		s.Flush()
		s.Stop()
		close(flushed)
	}()
	require.Never(t, func() bool {
		select {
		case <-flushed:
			return true
		default:
			return false
		}
	}, 30*time.Millisecond, 5*time.Millisecond)

	close(release)
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Fatal("flush did not return after the running write finished")
	}

	writes := rec.snapshot()
	require.Len(t, writes, 2)
	require.Equal(t, "latest-edit", writes[1].title)
}

func TestScheduler_StopWaitsForRunningWrite(t *testing.T) {
	release := make(chan struct{})
	rec := &writeRecorder{block: release}
	s := newScheduler(time.Hour, time.Now, rec.write)

	written := make(chan struct{})
	go func() {
		s.Schedule(req("in-flight"))
		close(written)
	}()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	require.Never(t, func() bool {
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, 30*time.Millisecond, 5*time.Millisecond)

	close(release)
	<-written
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after the running write finished")
	}
	require.Equal(t, 1, rec.count())
}
