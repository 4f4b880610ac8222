package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
	"github.com/roach88/rlchess/internal/query"
	"github.com/roach88/rlchess/internal/telemetry"
	"github.com/roach88/rlchess/internal/torii"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	MetricsAddr string
	Follow      []string // components whose updates are printed
}

// UpdateView is the printed form of an applied update.
type UpdateView struct {
	Seq       int64       `json:"seq"`
	Component string      `json:"component"`
	EntityID  string      `json:"entity_id"`
	Value     ir.IRObject `json:"value"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Follow the indexer into the local store",
		Long: `Subscribe to the indexer and keep the local store in sync until
interrupted.

Every model of the manifest namespace is synced. With --follow, applied
updates of the named components are printed as they arrive. With
--metrics-addr (or metrics_addr in the config), Prometheus metrics are served
on /metrics.

Examples:
  rlchess sync
  rlchess sync --follow Game --follow GameState
  rlchess sync --metrics-addr :9464 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringSliceVar(&opts.Follow, "follow", nil, "print applied updates of this component (repeatable)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	for _, c := range opts.Follow {
		if !slices.Contains(model.Components(), c) {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown component %q: must be one of %v", c, model.Components()))
		}
	}

	e, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	m, err := e.loadManifest()
	if err != nil {
		return err
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	metrics := telemetry.NewMetrics()
	svc, err := e.syncService(parentCtx, entitysync.WithObserver(metrics))
	if err != nil {
		return err
	}
	feed := torii.New(e.cfg.ToriiURL,
		torii.WithNamespace(e.cfg.Namespace),
		torii.WithModels(m.ModelTags(e.cfg.Namespace)...),
		torii.WithReconnectInterval(e.cfg.ReconnectInterval),
	)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	f := newFormatter(opts.RootOptions, cmd)
	var outMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range opts.Follow {
		sub, err := svc.Subscribe(query.Has(c), 0)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to subscribe", err)
		}
		g.Go(func() error {
			for a := range sub.Updates() {
				outMu.Lock()
				err := f.Success(UpdateView{Seq: a.Seq, Component: a.Component, EntityID: a.EntityID, Value: a.Value}, func(w io.Writer) {
					fmt.Fprintf(w, "#%d %s %s %s\n", a.Seq, a.Component, a.EntityID, canonicalString(a.Value))
				})
				outMu.Unlock()
				if err != nil {
					return err
				}
			}
			if n := sub.Dropped(); n > 0 {
				slog.Warn("follower missed updates", "component", c, "dropped", n)
			}
			return nil
		})
	}
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return feed.Run(gctx, svc) })

	addr := opts.MetricsAddr
	if addr == "" {
		addr = e.cfg.MetricsAddr
	}
	if addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, addr) })
	}

	slog.Info("sync starting", "torii", e.cfg.ToriiURL, "store", e.cfg.StorePath, "namespace", e.cfg.Namespace)
	err = g.Wait()

	stats := feed.Stats()
	slog.Info("sync stopped",
		"frames", stats.Frames,
		"updates", stats.Updates,
		"reconnects", stats.Reconnects,
	)

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "sync error", err)
	}
	return nil
}

// canonicalString renders v as canonical JSON for text output.
func canonicalString(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
