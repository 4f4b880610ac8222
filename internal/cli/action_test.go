package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rlchess/internal/config"
	"github.com/roach88/rlchess/internal/store"
	"github.com/roach88/rlchess/internal/torii"
)

func testEnv(t *testing.T, toriiURL string) *env {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.ToriiURL = toriiURL
	cfg.ManifestPath = filepath.Join("..", "manifest", "testdata", "manifest_dev.json")
	cfg.ReconnectInterval = 5 * time.Millisecond
	return &env{cfg: cfg, store: st}
}

func TestStartFeed_ReturnsOnceSubscribed(t *testing.T) {
	subscribed := make(chan torii.Frame, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub torii.Frame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	e := testEnv(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	svc, err := e.syncService(context.Background())
	require.NoError(t, err)

	stop, err := startFeed(context.Background(), e, svc)
	require.NoError(t, err)
	defer stop()

	select {
	case sub := <-subscribed:
		assert.Equal(t, torii.FrameSubscribe, sub.Type)
		assert.Contains(t, sub.Models, "rl_chess_contracts-Game")
	case <-time.After(2 * time.Second):
		t.Fatal("feed returned without subscribing")
	}
}

func TestStartFeed_UnreachableIndexer(t *testing.T) {
	old := feedReadyTimeout
	feedReadyTimeout = 50 * time.Millisecond
	t.Cleanup(func() { feedReadyTimeout = old })

	e := testEnv(t, "ws://127.0.0.1:1/")
	svc, err := e.syncService(context.Background())
	require.NoError(t, err)

	stop, err := startFeed(context.Background(), e, svc)
	require.Error(t, err)
	assert.Nil(t, stop)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not reachable")
}
