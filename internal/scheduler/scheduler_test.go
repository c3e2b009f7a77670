package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

type testJob struct{ kind string }

func (j testJob) JobKind() string { return j.kind }

// recorder collects dispatched jobs by id-free kind.
type recorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *recorder) dispatch(ctx context.Context, job Job) {
	r.mu.Lock()
	r.fired = append(r.fired, job.JobKind())
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func newStarted(t *testing.T, rec *recorder) *Scheduler {
	t.Helper()
	s := New(time.UTC, zerolog.Nop())
	s.SetDispatch(rec.dispatch)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(func() {
		s.Shutdown()
		cancel()
	})
	return s
}

func TestAddJobDuplicate(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	if err := s.AddJob("j1", Every(time.Hour), testJob{"a"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	err := s.AddJob("j1", Every(time.Hour), testJob{"b"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate AddJob err = %v, want ErrAlreadyExists", err)
	}
}

func TestIntervalJobFires(t *testing.T) {
	rec := &recorder{}
	s := newStarted(t, rec)

	if err := s.AddJob("tick", Every(15*time.Millisecond), testJob{"tick"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return rec.count() >= 3 }, "interval job never reached 3 firings")
	if !s.GetJob("tick") {
		t.Fatal("interval job vanished from the scheduler")
	}
}

func TestPauseAndResume(t *testing.T) {
	rec := &recorder{}
	s := newStarted(t, rec)

	if err := s.AddJob("tick", Every(10*time.Millisecond), testJob{"tick"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return rec.count() >= 1 }, "job never fired")

	if err := s.PauseJob("tick"); err != nil {
		t.Fatalf("PauseJob: %v", err)
	}
	if !s.GetJob("tick") {
		t.Fatal("paused job should stay registered")
	}

	time.Sleep(30 * time.Millisecond)
	atPause := rec.count()
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got > atPause {
		t.Fatalf("job fired %d more times while paused", got-atPause)
	}

	if err := s.ResumeJob("tick"); err != nil {
		t.Fatalf("ResumeJob: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return rec.count() > atPause }, "job never fired after resume")
}

func TestPauseResumeUnknownJob(t *testing.T) {
	s := New(time.UTC, zerolog.Nop())
	if err := s.PauseJob("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("PauseJob err = %v, want ErrNotFound", err)
	}
	if err := s.ResumeJob("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ResumeJob err = %v, want ErrNotFound", err)
	}
	if err := s.RemoveJob("ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("RemoveJob err = %v, want ErrNotFound", err)
	}
}

func TestOneShotFiresOnceAndSelfRemoves(t *testing.T) {
	rec := &recorder{}
	s := newStarted(t, rec)

	if err := s.AddJob("once", At(time.Now().Add(20*time.Millisecond)), testJob{"once"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 }, "one-shot never fired")
	waitFor(t, 2*time.Second, func() bool { return !s.GetJob("once") }, "one-shot still registered after firing")

	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Fatalf("one-shot fired %d times, want 1", got)
	}
}

func TestRemoveJobStopsFiring(t *testing.T) {
	rec := &recorder{}
	s := newStarted(t, rec)

	if err := s.AddJob("tick", Every(10*time.Millisecond), testJob{"tick"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return rec.count() >= 1 }, "job never fired")

	if err := s.RemoveJob("tick"); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if s.GetJob("tick") {
		t.Fatal("removed job still registered")
	}

	time.Sleep(30 * time.Millisecond)
	after := rec.count()
	time.Sleep(50 * time.Millisecond)
	if got := rec.count(); got > after {
		t.Fatalf("job fired %d more times after removal", got-after)
	}
}

func TestRemoveGroup(t *testing.T) {
	rec := &recorder{}
	s := newStarted(t, rec)

	far := time.Now().Add(time.Hour)
	for _, id := range []string{"c1", "c2", "c3"} {
		if err := s.AddJob(id, At(far), testJob{"child"}, WithGroup("parent")); err != nil {
			t.Fatalf("AddJob %s: %v", id, err)
		}
	}
	if err := s.AddJob("other", At(far), testJob{"other"}); err != nil {
		t.Fatalf("AddJob other: %v", err)
	}

	if removed := s.RemoveGroup("parent"); removed != 3 {
		t.Fatalf("RemoveGroup removed %d jobs, want 3", removed)
	}
	for _, id := range []string{"c1", "c2", "c3"} {
		if s.GetJob(id) {
			t.Fatalf("group member %s still registered", id)
		}
	}
	if !s.GetJob("other") {
		t.Fatal("ungrouped job removed by RemoveGroup")
	}
	if removed := s.RemoveGroup("parent"); removed != 0 {
		t.Fatalf("second RemoveGroup removed %d jobs, want 0", removed)
	}
}

func TestJobAddedBeforeStartRuns(t *testing.T) {
	rec := &recorder{}
	s := New(time.UTC, zerolog.Nop())
	s.SetDispatch(rec.dispatch)

	if err := s.AddJob("tick", Every(10*time.Millisecond), testJob{"tick"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Shutdown()

	waitFor(t, 2*time.Second, func() bool { return rec.count() >= 1 }, "pre-registered job never fired after Start")
}

func TestDispatchPanicDoesNotKillRunner(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	s := New(time.UTC, zerolog.Nop())
	s.SetDispatch(func(ctx context.Context, job Job) {
		mu.Lock()
		calls++
		mu.Unlock()
		panic("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Shutdown()

	if err := s.AddJob("tick", Every(10*time.Millisecond), testJob{"tick"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, "runner died after a panicking dispatch")
}
