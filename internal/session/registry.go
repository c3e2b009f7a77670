// Package session owns the live-session pool. The registry is the only
// component allowed to hold a session handle; everything else borrows one
// through WithSession under the per-session lock.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/UoduodihsLab/Tennel/internal/domain"
	"github.com/UoduodihsLab/Tennel/internal/telegram"
)

// slot pairs a handle with its lock. The lock is a capacity-1 channel so
// acquisition can be abandoned when the caller's context ends. A slot popped
// from the map is "removed but not yet torn down": invisible to new callers
// while in-flight work drains.
type slot struct {
	client telegram.Client
	lock   chan struct{}
}

type Registry struct {
	mu    sync.Mutex
	slots map[string]*slot

	dial      telegram.Dialer
	opTimeout time.Duration
	log       zerolog.Logger
}

// NewRegistry builds an empty registry. opTimeout bounds every remote call
// made inside WithSession; zero disables the bound.
func NewRegistry(dial telegram.Dialer, opTimeout time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		slots:     make(map[string]*slot),
		dial:      dial,
		opTimeout: opTimeout,
		log:       log.With().Str("component", "session_registry").Logger(),
	}
}

// Connect builds a handle for sessionName, connects and checks authorization,
// and registers handle+lock atomically on success. Failures are reported as
// false, never an error: callers decide whether to retry.
func (r *Registry) Connect(ctx context.Context, sessionName string) bool {
	client := r.dial(sessionName)

	r.log.Info().Str("session", sessionName).Msg("connecting session")
	if err := client.Connect(ctx); err != nil {
		r.log.Error().Err(err).Str("session", sessionName).Msg("connect failed")
		return false
	}

	ok, err := client.Authorized(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("session", sessionName).Msg("authorization check failed")
		_ = client.Disconnect(ctx)
		return false
	}
	if !ok {
		r.log.Warn().Str("session", sessionName).Msg("session not authorized, disconnecting")
		_ = client.Disconnect(ctx)
		return false
	}

	r.mu.Lock()
	if _, exists := r.slots[sessionName]; exists {
		r.mu.Unlock()
		// Someone connected this key concurrently; keep theirs.
		_ = client.Disconnect(ctx)
		return true
	}
	r.slots[sessionName] = &slot{client: client, lock: make(chan struct{}, 1)}
	r.mu.Unlock()

	r.log.Info().Str("session", sessionName).Msg("session connected")
	return true
}

// IsOnline reports registry membership. Never blocks on per-session locks.
func (r *Registry) IsOnline(sessionName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[sessionName]
	return ok
}

// Online returns the currently registered session names.
func (r *Registry) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	return names
}

// WithSession loans the handle to fn under the per-session lock. The lock is
// released on every exit path, including a panic inside fn. A key absent from
// the registry fails fast with ErrNotConnected.
func (r *Registry) WithSession(ctx context.Context, sessionName string, fn func(ctx context.Context, c telegram.Client) error) error {
	r.mu.Lock()
	s, ok := r.slots[sessionName]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotConnected, sessionName)
	}

	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.lock }()

	opCtx := ctx
	if r.opTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
	}
	return fn(opCtx, s.client)
}

// Remove pops the slot under the manager lock — rejecting new work
// immediately — then waits on the orphaned per-session lock so in-flight
// work finishes before the handle is disconnected.
func (r *Registry) Remove(ctx context.Context, sessionName string) {
	r.mu.Lock()
	s, ok := r.slots[sessionName]
	if ok {
		delete(r.slots, sessionName)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Warn().Str("session", sessionName).Msg("remove of unknown session")
		return
	}

	r.log.Info().Str("session", sessionName).Msg("session removed from registry, draining in-flight work")
	select {
	case s.lock <- struct{}{}:
		defer func() { <-s.lock }()
	case <-ctx.Done():
		r.log.Warn().Str("session", sessionName).Msg("gave up waiting for in-flight work, disconnecting anyway")
	}

	if err := s.client.Disconnect(ctx); err != nil {
		r.log.Error().Err(err).Str("session", sessionName).Msg("disconnect failed")
		return
	}
	r.log.Info().Str("session", sessionName).Msg("session disconnected")
}

// DisconnectAll clears the registry and disconnects every handle
// concurrently. Shutdown only: no new work races with it.
func (r *Registry) DisconnectAll(ctx context.Context) {
	r.mu.Lock()
	clients := make([]telegram.Client, 0, len(r.slots))
	for _, s := range r.slots {
		clients = append(clients, s.client)
	}
	r.slots = make(map[string]*slot)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c telegram.Client) {
			defer wg.Done()
			_ = c.Disconnect(ctx)
		}(c)
	}
	wg.Wait()
	r.log.Info().Int("count", len(clients)).Msg("all sessions disconnected")
}
