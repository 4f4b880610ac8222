package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ActionFinished("make_move", "confirmed", 300*time.Millisecond)
	m.ActionFinished("make_move", "confirmed", time.Second)
	m.ActionFinished("invite", "rejected", 0)
	m.UpdateApplied("Game")
	m.UpdateFailed("Game")
	m.SubscriberDropped("GameState")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues("make_move", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("invite", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("Game")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updateFailures.WithLabelValues("Game")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.drops.WithLabelValues("GameState")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.UpdateApplied("Player")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rlchess_sync_updates_applied_total{component="Player"} 1`)
}

func TestMetrics_ServeStopsOnCancel(t *testing.T) {
	m := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	t.Setenv(EndpointEnv, "")
	shutdown, err := Setup(context.Background(), "rlchess-test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
