package entitysync

import (
	"fmt"
	"sync/atomic"

	"github.com/roach88/rlchess/internal/query"
)

// DefaultSubscriptionBuffer is the channel size used when none is given.
const DefaultSubscriptionBuffer = 64

// Subscription streams every applied update matching its query.
type Subscription struct {
	ID      string
	query   query.Query
	ch      chan Applied
	dropped atomic.Int64
	svc     *Service
}

// Subscribe registers a continuous subscription. buffer <= 0 uses
// DefaultSubscriptionBuffer. The channel is closed by Unsubscribe or when
// the loop stops.
func (s *Service) Subscribe(q query.Query, buffer int) (*Subscription, error) {
	if err := query.Validate(q); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}

	sub := &Subscription{
		ID:    s.idGen.Generate(),
		query: q,
		ch:    make(chan Applied, buffer),
		svc:   s,
	}

	s.mu.Lock()
	s.subs[sub.ID] = sub
	s.mu.Unlock()
	return sub, nil
}

// Updates returns the receive side of the subscription.
func (sub *Subscription) Updates() <-chan Applied { return sub.ch }

// Dropped returns how many updates did not fit in the buffer.
func (sub *Subscription) Dropped() int64 { return sub.dropped.Load() }

// Unsubscribe removes the subscription and closes its channel.
// Safe to call more than once.
func (sub *Subscription) Unsubscribe() {
	sub.svc.mu.Lock()
	defer sub.svc.mu.Unlock()
	if _, ok := sub.svc.subs[sub.ID]; !ok {
		return
	}
	delete(sub.svc.subs, sub.ID)
	close(sub.ch)
}
