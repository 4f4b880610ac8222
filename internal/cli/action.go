package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/lobby"
	"github.com/roach88/rlchess/internal/torii"
)

// ActionOptions holds flags shared by commands that submit transactions.
type ActionOptions struct {
	*RootOptions
	Wait bool   // follow the indexer until the resulting state is synced
	As   string // signing account address, or "master"
}

func addActionFlags(cmd *cobra.Command, opts *ActionOptions) {
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "wait until the resulting state is synced from the indexer")
	cmd.Flags().StringVar(&opts.As, "as", "", `signing account address, or "master" (default: active burner)`)
}

// actionFunc performs one lobby action.
type actionFunc func(ctx context.Context, c *lobby.Client, signer contract.Signer) lobby.Result

// runAction signs and submits one action, optionally with an in-process
// indexer feed so the action is confirmed against synced state.
func runAction(opts *ActionOptions, cmd *cobra.Command, act actionFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	exec, err := e.chain(ctx)
	if err != nil {
		return err
	}
	signer, err := e.signer(ctx, opts.As)
	if err != nil {
		return err
	}

	lobbyOpts := []lobby.Option{
		lobby.WithJournal(e.store),
		lobby.WithWaitTimeout(e.cfg.WaitTimeout),
	}

	if opts.Wait {
		svc, err := e.syncService(ctx)
		if err != nil {
			return err
		}
		stop, err := startFeed(ctx, e, svc)
		if err != nil {
			return err
		}
		defer stop()
		lobbyOpts = append(lobbyOpts, lobby.WithWatcher(svc))
	}

	client := lobby.New(exec, lobbyOpts...)
	res := act(ctx, client, signer)
	return newFormatter(opts.RootOptions, cmd).Result(res)
}

// syncService creates a sync service whose clock continues after the
// highest seq already stored.
func (e *env) syncService(ctx context.Context, opts ...entitysync.Option) (*entitysync.Service, error) {
	seq, err := e.store.MaxSeq(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read store", err)
	}
	opts = append([]entitysync.Option{entitysync.WithClock(entitysync.NewClockAt(seq))}, opts...)
	return entitysync.New(e.store, opts...), nil
}

// startFeed runs the sync loop and the indexer client in the background.
// It returns once the indexer subscription is open; the returned stop
// function cancels both and waits for them.
func startFeed(ctx context.Context, e *env, svc *entitysync.Service) (stop func(), err error) {
	m, err := e.loadManifest()
	if err != nil {
		return nil, err
	}
	feed := torii.New(e.cfg.ToriiURL,
		torii.WithNamespace(e.cfg.Namespace),
		torii.WithModels(m.ModelTags(e.cfg.Namespace)...),
		torii.WithReconnectInterval(e.cfg.ReconnectInterval),
	)

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return feed.Run(gctx, svc) })

	stop = func() {
		cancel()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("sync feed stopped", "error", err)
		}
	}

	// A confirmation that lands before the subscription exists is never
	// delivered, so submit only once the feed is subscribed.
	timeout := feedReadyTimeout
	if e.cfg.WaitTimeout > 0 && e.cfg.WaitTimeout < timeout {
		timeout = e.cfg.WaitTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-feed.Ready():
		return stop, nil
	case <-gctx.Done():
		stop()
		return nil, WrapExitError(ExitCommandError, "indexer feed stopped", context.Cause(gctx))
	case <-timer.C:
		stop()
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("indexer %s not reachable within %s", e.cfg.ToriiURL, timeout))
	}
}

// feedReadyTimeout bounds how long --wait waits for the indexer subscription.
var feedReadyTimeout = 30 * time.Second
