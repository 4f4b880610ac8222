package entitysync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/rlchess/internal/ids"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/store"
)

// Applied is an Update after the Run loop wrote it.
type Applied struct {
	EntityID  string
	Component string
	Value     ir.IRObject
	Seq       int64
}

// Observer receives loop events, typically to feed metrics.
type Observer interface {
	UpdateApplied(component string)
	UpdateFailed(component string)
	SubscriberDropped(component string)
}

type noopObserver struct{}

func (noopObserver) UpdateApplied(string)     {}
func (noopObserver) UpdateFailed(string)      {}
func (noopObserver) SubscriberDropped(string) {}

// Service is the single-writer sync loop.
//
// Thread-safety model:
//   - Apply, Watch, Subscribe, Close: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Service struct {
	store    *store.Store
	clock    *Clock
	queue    *updateQueue
	idGen    ids.Generator
	observer Observer

	mu      sync.Mutex
	applied int64 // highest seq fanned out by notify; guarded by mu
	watches map[string]*Watch
	subs    map[string]*Subscription
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the loop clock, e.g. NewClockAt(store.MaxSeq()) on restart.
func WithClock(c *Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator sets the generator used for watch and subscription ids.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Service) { s.idGen = g }
}

// WithObserver sets the loop observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// New creates a Service writing to st.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		clock:    NewClock(),
		queue:    newUpdateQueue(),
		idGen:    ids.UUIDv7{},
		observer: noopObserver{},
		watches:  make(map[string]*Watch),
		subs:     make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.applied = s.clock.Current()
	return s
}

// Apply submits an update for the Run loop.
// Returns false once the service has been closed.
func (s *Service) Apply(u Update) bool {
	return s.queue.Enqueue(u)
}

// Pending returns the number of queued, unapplied updates.
func (s *Service) Pending() int {
	return s.queue.Len()
}

// Store returns the store the loop writes to. Callers must treat it as
// read-only.
func (s *Service) Store() *store.Store {
	return s.store
}

// Run starts the loop. Blocks until ctx is cancelled or Close is called.
//
// ERROR HANDLING: a failed update is logged with its identity and the loop
// continues. The indexer will deliver the entity again on its next change.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("sync loop starting", "seq", s.clock.Current())

	for {
		u, ok := s.queue.TryDequeue()
		if ok {
			if err := s.process(ctx, u); err != nil {
				s.observer.UpdateFailed(u.Component)
				slog.Error("update processing failed",
					"error", err,
					"entity_id", u.EntityID,
					"component", u.Component,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("sync loop stopping: context cancelled")
			s.queue.Close()
			s.closeSubscribers()
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel closes with the queue; drain before exiting.
			if s.queue.isClosed() && s.queue.Len() == 0 {
				slog.Info("sync loop stopping: queue closed")
				s.closeSubscribers()
				return nil
			}
		}
	}
}

// Close stops the loop after queued updates are applied.
func (s *Service) Close() {
	s.queue.Close()
}

// process writes one update and fans it out.
// CRITICAL: Called only from the Run goroutine.
func (s *Service) process(ctx context.Context, u Update) error {
	if u.Component == "" {
		return fmt.Errorf("update without component")
	}
	entityID := u.EntityID
	if entityID == "" {
		if len(u.Keys) == 0 {
			return fmt.Errorf("update for %s has neither entity id nor keys", u.Component)
		}
		id, err := ir.EntityID(u.Keys...)
		if err != nil {
			return fmt.Errorf("derive entity id: %w", err)
		}
		entityID = id
	}

	keys := make(ir.IRArray, 0, len(u.Keys))
	for _, k := range u.Keys {
		f, err := ir.Felt(k)
		if err != nil {
			return fmt.Errorf("normalize key: %w", err)
		}
		keys = append(keys, f)
	}

	// The indexer re-sends whole models; an identical value is not a change.
	if prev, ok, err := s.store.GetComponent(ctx, entityID, u.Component); err != nil {
		return err
	} else if ok && ir.Equal(prev.Value, u.Value) {
		return nil
	}

	seq := s.clock.Next()
	changed, err := s.store.UpsertComponent(ctx, store.Component{
		EntityID:  entityID,
		Component: u.Component,
		Keys:      keys,
		Value:     u.Value,
		Seq:       seq,
	})
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.observer.UpdateApplied(u.Component)
	slog.Debug("component applied", "entity_id", entityID, "component", u.Component, "seq", seq)

	s.notify(Applied{EntityID: entityID, Component: u.Component, Value: u.Value, Seq: seq})
	return nil
}

// notify resolves matching watches and feeds matching subscriptions.
// Runs under s.mu so Cancel/Close cannot interleave with a send.
//
// A seq is stamped before its row commits, so watches measure "after" by
// s.applied, which only moves here, once the row is visible in the store.
func (s *Service) notify(a Applied) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Seq > s.applied {
		s.applied = a.Seq
	}

	for id, w := range s.watches {
		if a.Seq <= w.afterSeq {
			continue
		}
		if w.query.Matches(a.Component, a.EntityID, a.Value) {
			delete(s.watches, id)
			w.resolve(a)
		}
	}

	for _, sub := range s.subs {
		if !sub.query.Matches(a.Component, a.EntityID, a.Value) {
			continue
		}
		select {
		case sub.ch <- a:
		default:
			sub.dropped.Add(1)
			s.observer.SubscriberDropped(a.Component)
		}
	}
}

func (s *Service) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub.ch)
	}
}
