// Package session owns the control-plane Session shared by both workers.
//
// Reads copy the session out under the lock, so a network call never runs
// against a value another goroutine is replacing. Rebuilds run under the
// same lock; the registry lock is never taken inside it.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"vmsched/internal/cloud"
	logx "vmsched/pkg/logx"
)

var ErrNoSession = errors.New("no session")

// Store guards the current Session.
type Store struct {
	mu       sync.Mutex
	resolver cloud.EnvironmentResolver
	log      logx.Logger

	cur       cloud.Session
	gen       uint64
	issuedAt  time.Time
	rebuilds  uint64
	lastError error
}

func New(resolver cloud.EnvironmentResolver, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{resolver: resolver, log: log}
}

// Get returns a copy of the current session.
func (s *Store) Get() (cloud.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == 0 {
		return cloud.Session{}, ErrNoSession
	}
	return s.cur, nil
}

// Refresh unconditionally rebuilds the session.
func (s *Store) Refresh(ctx context.Context) (cloud.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

// Rehydrate rebuilds the session after a request made with generation stale
// was rejected. If the session was already replaced since then, the current
// one is returned without another bootstrap.
func (s *Store) Rehydrate(ctx context.Context, stale uint64) (cloud.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != 0 && s.gen != stale {
		s.log.Debug("session already rehydrated", logx.Uint64("stale", stale), logx.Uint64("current", s.gen))
		return s.cur, nil
	}
	return s.rebuildLocked(ctx)
}

func (s *Store) rebuildLocked(ctx context.Context) (cloud.Session, error) {
	start := time.Now()
	next, err := s.resolver.Bootstrap(ctx)
	s.rebuilds++
	if err != nil {
		s.lastError = err
		s.log.Warn("session rebuild failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return s.cur, err
	}
	s.gen++
	next.Generation = s.gen
	s.cur = next
	s.issuedAt = time.Now()
	s.lastError = nil
	s.log.Debug("session rebuilt",
		logx.Uint64("generation", s.gen),
		logx.String("endpoint", next.Endpoint),
		logx.Secret("access_token"),
		logx.Duration("took", time.Since(start)),
	)
	return s.cur, nil
}

// Info describes the store for status output. It never includes the token.
type Info struct {
	Generation uint64    `json:"generation"`
	Endpoint   string    `json:"endpoint"`
	Org        string    `json:"org"`
	IssuedAt   time.Time `json:"issued_at"`
	Rebuilds   uint64    `json:"rebuilds"`
	LastError  string    `json:"last_error,omitempty"`
}

func (s *Store) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := Info{Generation: s.gen, Endpoint: s.cur.Endpoint, Org: s.cur.Org, IssuedAt: s.issuedAt, Rebuilds: s.rebuilds}
	if s.lastError != nil {
		in.LastError = s.lastError.Error()
	}
	return in
}
