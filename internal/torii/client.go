package torii

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/roach88/rlchess/internal/entitysync"
)

// DefaultReconnectInterval paces reconnect attempts.
const DefaultReconnectInterval = time.Second

// ErrSinkClosed is returned by Run when the sink stops accepting updates.
var ErrSinkClosed = errors.New("torii: sink closed")

// Sink receives decoded updates. *entitysync.Service implements it.
type Sink interface {
	Apply(u entitysync.Update) bool
}

// Client holds one indexer subscription open.
type Client struct {
	url       string
	namespace string
	models    []string
	dialer    *websocket.Dialer
	limiter   *rate.Limiter

	frames     atomic.Int64
	updates    atomic.Int64
	reconnects atomic.Int64

	readyOnce sync.Once
	ready     chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithNamespace restricts decoding to models of one namespace.
func WithNamespace(ns string) Option {
	return func(c *Client) { c.namespace = ns }
}

// WithModels sets the model tags to subscribe to. Empty means all.
func WithModels(tags ...string) Option {
	return func(c *Client) { c.models = tags }
}

// WithReconnectInterval sets the minimum spacing between connection attempts.
func WithReconnectInterval(d time.Duration) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a client for the indexer websocket at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:     url,
		dialer:  websocket.DefaultDialer,
		limiter: rate.NewLimiter(rate.Every(DefaultReconnectInterval), 1),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats is a snapshot of client counters.
type Stats struct {
	Frames     int64
	Updates    int64
	Reconnects int64
}

// Stats returns the client counters.
func (c *Client) Stats() Stats {
	return Stats{
		Frames:     c.frames.Load(),
		Updates:    c.updates.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

// Ready is closed once the first subscription request has been sent.
// Updates committed on chain after that are delivered by the feed.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Run subscribes and forwards updates to sink until ctx ends, reconnecting
// after any connection failure. Returns ctx.Err(), or ErrSinkClosed once
// the sink refuses an update.
func (c *Client) Run(ctx context.Context, sink Sink) error {
	first := true
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait fails early when the deadline falls before the next token.
			<-ctx.Done()
			return ctx.Err()
		}
		if !first {
			c.reconnects.Add(1)
		}
		first = false

		err := c.session(ctx, sink)
		if ctx.Err() != nil {
			slog.Info("indexer feed stopping: context cancelled")
			return ctx.Err()
		}
		if errors.Is(err, ErrSinkClosed) {
			slog.Info("indexer feed stopping: sink closed")
			return err
		}
		slog.Warn("indexer connection lost", "url", c.url, "error", err)
	}
}

// session runs one connection until it fails.
func (c *Client) session(ctx context.Context, sink Sink) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(Frame{Type: FrameSubscribe, Models: c.models}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	slog.Info("indexer subscribed", "url", c.url, "models", len(c.models))
	c.readyOnce.Do(func() { close(c.ready) })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if err := c.handle(data, sink); err != nil {
			var fatal *serverError
			if errors.As(err, &fatal) || errors.Is(err, ErrSinkClosed) {
				return err
			}
			slog.Error("indexer frame dropped", "error", err)
		}
	}
}

type serverError struct{ msg string }

func (e *serverError) Error() string { return "indexer error: " + e.msg }

func (c *Client) handle(data []byte, sink Sink) error {
	c.frames.Add(1)

	f, err := ParseFrame(data)
	if err != nil {
		return err
	}
	switch f.Type {
	case FrameEntity:
		if f.Entity == nil {
			return nil
		}
		updates, err := Decode(*f.Entity, c.namespace)
		if err != nil {
			return fmt.Errorf("entity %s: %w", f.Entity.HashedKeys, err)
		}
		for _, u := range updates {
			if !sink.Apply(u) {
				return ErrSinkClosed
			}
			c.updates.Add(1)
		}
		return nil
	case FrameError:
		return &serverError{msg: f.Error}
	default:
		slog.Debug("indexer frame ignored", "type", f.Type)
		return nil
	}
}
