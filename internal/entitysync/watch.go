package entitysync

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/rlchess/internal/query"
)

// WatchMode controls whether state already in the store satisfies a watch.
type WatchMode int

const (
	// WatchExisting resolves immediately when the store already holds a
	// match, otherwise on the first matching update.
	WatchExisting WatchMode = iota
	// WatchNext ignores stored state and resolves on the first matching
	// update applied after registration.
	WatchNext
)

func (m WatchMode) String() string {
	if m == WatchNext {
		return "next"
	}
	return "existing"
}

// Watch is a one-shot wait for a component matching a query.
// It resolves at most once; Wait may be called any number of times.
type Watch struct {
	ID       string
	query    query.Query
	mode     WatchMode
	afterSeq int64
	svc      *Service

	once   sync.Once
	done   chan struct{}
	result Applied
}

// Watch registers a one-shot watch for q.
//
// The watch is registered before the store is consulted and only skips
// updates already fanned out, so an update applied concurrently with
// registration is either found in the store or delivered to the watch.
func (s *Service) Watch(ctx context.Context, q query.Query, mode WatchMode) (*Watch, error) {
	if err := query.Validate(q); err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	w := &Watch{
		ID:    s.idGen.Generate(),
		query: q,
		mode:  mode,
		svc:   s,
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	w.afterSeq = s.applied
	s.watches[w.ID] = w
	s.mu.Unlock()

	if mode == WatchNext {
		return w, nil
	}

	existing := q
	existing.Limit = 1
	found, err := s.store.QueryComponents(ctx, existing)
	if err != nil {
		w.Cancel()
		return nil, fmt.Errorf("watch: %w", err)
	}
	if len(found) > 0 {
		c := found[0]
		s.mu.Lock()
		delete(s.watches, w.ID)
		s.mu.Unlock()
		w.resolve(Applied{EntityID: c.EntityID, Component: c.Component, Value: c.Value, Seq: c.Seq})
	}
	return w, nil
}

// Query returns the watched query.
func (w *Watch) Query() query.Query { return w.query }

// Mode returns the watch mode.
func (w *Watch) Mode() WatchMode { return w.mode }

// Done is closed when the watch resolves.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Wait blocks until the watch resolves or ctx ends.
func (w *Watch) Wait(ctx context.Context) (Applied, error) {
	select {
	case <-w.done:
		return w.result, nil
	case <-ctx.Done():
		return Applied{}, ctx.Err()
	}
}

// Resolved reports whether the watch has fired, without blocking.
func (w *Watch) Resolved() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Cancel unregisters the watch. A resolved watch keeps its result.
func (w *Watch) Cancel() {
	w.svc.mu.Lock()
	delete(w.svc.watches, w.ID)
	w.svc.mu.Unlock()
}

func (w *Watch) resolve(a Applied) {
	w.once.Do(func() {
		w.result = a
		close(w.done)
	})
}

// ActiveWatches returns the number of unresolved, uncancelled watches.
func (s *Service) ActiveWatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}
