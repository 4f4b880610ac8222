package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/ids"
	"github.com/roach88/rlchess/internal/query"
	"github.com/roach88/rlchess/internal/store"
)

// Contract names, resolved against the manifest under the client namespace.
const (
	ContractLobby    = "lobby"
	ContractGameroom = "gameroom"
)

var tracer = otel.Tracer("github.com/roach88/rlchess/internal/lobby")

// Executor submits calls and waits for their receipts.
// Implemented by *contract.Client.
type Executor interface {
	Execute(ctx context.Context, signer contract.Signer, call contract.Call) (string, error)
	WaitForTransaction(ctx context.Context, hash string) (*contract.Receipt, error)
}

// Watcher registers one-shot watches on local state.
// Implemented by *entitysync.Service.
type Watcher interface {
	Watch(ctx context.Context, q query.Query, mode entitysync.WatchMode) (*entitysync.Watch, error)
}

// Journal records submitted transactions. Implemented by *store.Store.
type Journal interface {
	RecordTransaction(ctx context.Context, r store.TxRecord) error
	UpdateTransactionStatus(ctx context.Context, txHash string, status store.TxStatus, detail string, updatedAt int64) error
}

// Observer is told about every finished action.
type Observer interface {
	ActionFinished(action, status string, d time.Duration)
}

// Client wraps the lobby and gameroom contracts.
type Client struct {
	exec        Executor
	watcher     Watcher
	journal     Journal
	observer    Observer
	idGen       ids.Generator
	now         func() time.Time
	waitTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithWatcher makes actions wait for their resulting state to be synced.
// Without one, an action is confirmed by its receipt alone.
func WithWatcher(w Watcher) Option {
	return func(c *Client) { c.watcher = w }
}

// WithJournal records every submitted transaction.
func WithJournal(j Journal) Option {
	return func(c *Client) { c.journal = j }
}

// WithObserver reports finished actions, typically to metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithIDGenerator sets the correlation id source.
func WithIDGenerator(g ids.Generator) Option {
	return func(c *Client) { c.idGen = g }
}

// WithNow sets the time source used for durations and journal timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithWaitTimeout bounds the wait for synced state after the receipt.
// Zero, the default, waits until the action context ends.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Client) { c.waitTimeout = d }
}

// New creates a Client submitting through exec.
func New(exec Executor, opts ...Option) *Client {
	c := &Client{
		exec:  exec,
		idGen: ids.UUIDv7{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// action is one prepared contract call and the state that confirms it.
type action struct {
	name       Action
	contract   string
	entrypoint string
	calldata   []string
	confirm    query.Query
	mode       entitysync.WatchMode
}

// build produces an action for signer; it may fail on invalid input.
type build func(signer contract.Signer) (action, error)

// run drives one action through every stage. It never panics.
func (c *Client) run(ctx context.Context, name Action, signer contract.Signer, b build) (res Result) {
	start := c.now()
	correlationID := c.idGen.Generate()
	res = Result{Action: name, Stage: StageEncode}

	ctx, span := tracer.Start(ctx, "lobby."+string(name))
	span.SetAttributes(
		attribute.String("action", string(name)),
		attribute.String("correlation_id", correlationID),
	)

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Err = &Error{Code: StatusFailed, Action: name, Stage: res.Stage, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = c.now().Sub(start)
		c.finish(ctx, &res)

		span.SetAttributes(
			attribute.String("status", string(res.Status)),
			attribute.String("stage", string(res.Stage)),
		)
		if res.TxHash != "" {
			span.SetAttributes(attribute.String("tx.hash", res.TxHash))
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
		}
		span.End()
	}()

	fail := func(err error) Result {
		status := classify(err)
		res.Status = status
		res.Err = &Error{Code: status, Action: name, Stage: res.Stage, Err: err}
		return res
	}

	if signer == nil {
		res.Stage = StageSign
		return fail(fmt.Errorf("no signer"))
	}
	a, err := b(signer)
	if err != nil {
		return fail(err)
	}

	// Register before submitting so the confirming update cannot be missed.
	var watch *entitysync.Watch
	if c.watcher != nil {
		res.Stage = StageSync
		watch, err = c.watcher.Watch(ctx, a.confirm, a.mode)
		if err != nil {
			return fail(err)
		}
		defer watch.Cancel()
	}

	res.Stage = StageSubmit
	hash, err := c.exec.Execute(ctx, signer, contract.Call{
		ContractName: a.contract,
		Entrypoint:   a.entrypoint,
		Calldata:     a.calldata,
	})
	if err != nil {
		var signErr *contract.SignError
		if errors.As(err, &signErr) {
			res.Stage = StageSign
		}
		return fail(err)
	}
	res.TxHash = hash
	c.record(ctx, a, signer, hash, correlationID)

	res.Stage = StageReceipt
	if _, err := c.exec.WaitForTransaction(ctx, hash); err != nil {
		return fail(err)
	}

	if watch == nil {
		res.Status = StatusConfirmed
		return res
	}

	res.Stage = StageSync
	waitCtx := ctx
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}
	applied, err := watch.Wait(waitCtx)
	if err != nil {
		return fail(fmt.Errorf("wait for %s: %w", a.confirm.Component, err))
	}
	res.Entity = applied.EntityID
	res.Component = applied.Component
	res.Value = applied.Value
	res.Status = StatusConfirmed
	return res
}

func (c *Client) record(ctx context.Context, a action, signer contract.Signer, hash, correlationID string) {
	if c.journal == nil {
		return
	}
	now := c.now().UnixMilli()
	err := c.journal.RecordTransaction(context.WithoutCancel(ctx), store.TxRecord{
		TxHash:        hash,
		Action:        string(a.name),
		Sender:        signer.Address(),
		Contract:      a.contract,
		Entrypoint:    a.entrypoint,
		Calldata:      a.calldata,
		Status:        store.TxSubmitted,
		CorrelationID: correlationID,
		SubmittedAt:   now,
		UpdatedAt:     now,
	})
	if err != nil {
		slog.Warn("journal write failed", "tx", hash, "error", err)
	}
}

// finish journals the final status and reports the result.
func (c *Client) finish(ctx context.Context, res *Result) {
	if c.journal != nil && res.TxHash != "" {
		detail := ""
		if res.Err != nil {
			detail = res.Err.Error()
		}
		err := c.journal.UpdateTransactionStatus(context.WithoutCancel(ctx), res.TxHash,
			store.TxStatus(res.Status), detail, c.now().UnixMilli())
		if err != nil {
			slog.Warn("journal update failed", "tx", res.TxHash, "error", err)
		}
	}
	if c.observer != nil {
		c.observer.ActionFinished(string(res.Action), string(res.Status), res.Duration)
	}

	if res.Status == StatusConfirmed {
		slog.Info("action confirmed",
			"action", res.Action,
			"tx", res.TxHash,
			"entity_id", res.Entity,
			"duration", res.Duration,
		)
		return
	}
	slog.Warn("action not confirmed",
		"action", res.Action,
		"status", res.Status,
		"stage", res.Stage,
		"tx", res.TxHash,
		"error", res.Err,
	)
}
