// Package scheduler runs registered jobs on cron, interval and one-shot
// date triggers. Jobs are a closed set of variants dispatched through a
// single function; no opaque callables cross this boundary.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
)

// Job is one variant of the closed job set (publish expansion, one-shot
// publish, system syncs). The scheduler never inspects a job beyond its kind.
type Job interface {
	JobKind() string
}

// DispatchFunc is invoked once per firing, in the job's own goroutine.
type DispatchFunc func(ctx context.Context, job Job)

type entry struct {
	id    string
	group string
	trig  Trigger
	job   Job

	// guarded by the scheduler mutex
	paused bool
	after  time.Time

	stop chan struct{}
	kick chan struct{}
}

func (e *entry) wake() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	groups  map[string]map[string]struct{}

	dispatch DispatchFunc
	loc      *time.Location
	log      zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		groups:  make(map[string]map[string]struct{}),
		loc:     loc,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// SetDispatch wires the dispatch function. Must be called before Start.
func (s *Scheduler) SetDispatch(fn DispatchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatch = fn
}

// Start launches runner goroutines for already-registered jobs and for
// every job added afterwards.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.run(e)
	}
	s.log.Info().Int("jobs", len(s.entries)).Msg("scheduler started")
}

// Shutdown stops every runner and waits for them to exit. In-flight
// dispatches are allowed to finish.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// Option configures a job at registration time.
type Option func(*entry)

// WithGroup tags a job so RemoveGroup can cancel it together with its
// siblings (child one-shot publish jobs carry their schedule id here).
func WithGroup(group string) Option {
	return func(e *entry) { e.group = group }
}

// AddJob registers a job under id. Duplicate ids fail with ErrAlreadyExists.
func (s *Scheduler) AddJob(id string, trig Trigger, job Job, opts ...Option) error {
	if trig == nil || job == nil {
		return fmt.Errorf("scheduler: nil trigger or job for %q", id)
	}

	e := &entry{
		id:    id,
		trig:  trig,
		job:   job,
		after: time.Now().In(s.loc),
		stop:  make(chan struct{}),
		kick:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[id]; exists {
		return fmt.Errorf("%w: job %s", domain.ErrAlreadyExists, id)
	}
	s.entries[id] = e
	if e.group != "" {
		if s.groups[e.group] == nil {
			s.groups[e.group] = make(map[string]struct{})
		}
		s.groups[e.group][id] = struct{}{}
	}
	if s.started {
		s.wg.Add(1)
		go s.run(e)
	}
	s.log.Debug().Str("job_id", id).Str("kind", job.JobKind()).Msg("job added")
	return nil
}

// GetJob reports whether a job is registered (paused or not).
func (s *Scheduler) GetJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// PauseJob keeps the job registered but stops it firing.
func (s *Scheduler) PauseJob(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		e.paused = true
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	e.wake()
	return nil
}

// ResumeJob restarts a paused job. Firings missed while paused are skipped,
// not replayed.
func (s *Scheduler) ResumeJob(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		e.paused = false
		e.after = time.Now().In(s.loc)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	e.wake()
	return nil
}

// RemoveJob unregisters the job and stops its runner.
func (s *Scheduler) RemoveJob(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		s.forgetLocked(e)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	close(e.stop)
	return nil
}

// RemoveGroup removes every job registered under group and returns how many
// were cancelled.
func (s *Scheduler) RemoveGroup(group string) int {
	s.mu.Lock()
	var removed []*entry
	for id := range s.groups[group] {
		if e, ok := s.entries[id]; ok {
			s.forgetLocked(e)
			removed = append(removed, e)
		}
	}
	delete(s.groups, group)
	s.mu.Unlock()

	for _, e := range removed {
		close(e.stop)
	}
	return len(removed)
}

// forgetLocked drops bookkeeping for e. Caller holds the mutex and is
// responsible for closing e.stop if a runner may be waiting.
func (s *Scheduler) forgetLocked(e *entry) {
	if cur, ok := s.entries[e.id]; !ok || cur != e {
		return
	}
	delete(s.entries, e.id)
	if e.group != "" {
		if g := s.groups[e.group]; g != nil {
			delete(g, e.id)
			if len(g) == 0 {
				delete(s.groups, e.group)
			}
		}
	}
}

func (s *Scheduler) run(e *entry) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		paused := e.paused
		after := e.after
		s.mu.Unlock()

		if paused {
			select {
			case <-s.ctx.Done():
				return
			case <-e.stop:
				return
			case <-e.kick:
				continue
			}
		}

		next := e.trig.Next(after)
		if next.IsZero() {
			// One-shot triggers exhaust themselves.
			s.mu.Lock()
			s.forgetLocked(e)
			s.mu.Unlock()
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-e.stop:
			timer.Stop()
			return
		case <-e.kick:
			timer.Stop()
			continue
		case <-timer.C:
		}

		s.mu.Lock()
		fire := !e.paused
		s.mu.Unlock()
		if fire {
			s.fire(e)
		}

		s.mu.Lock()
		e.after = next
		if now := time.Now().In(s.loc); now.After(e.after) {
			// Never replay firings missed during a slow dispatch.
			e.after = now
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) fire(e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("job_id", e.id).Interface("panic", r).Msg("job panicked")
		}
	}()

	s.mu.Lock()
	dispatch := s.dispatch
	s.mu.Unlock()
	if dispatch == nil {
		s.log.Error().Str("job_id", e.id).Msg("no dispatch function configured")
		return
	}
	dispatch(s.ctx, e.job)
}
