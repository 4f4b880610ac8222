package lobby_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rlchess/internal/chessmove"
	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/ids"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/lobby"
	"github.com/roach88/rlchess/internal/manifest"
	"github.com/roach88/rlchess/internal/model"
	"github.com/roach88/rlchess/internal/store"
	"github.com/roach88/rlchess/internal/testutil"
)

type recordingObserver struct {
	mu       sync.Mutex
	finished []string
}

func (o *recordingObserver) ActionFinished(action, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, action+":"+status)
}

func (o *recordingObserver) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.finished...)
}

type fixture struct {
	chain    *testutil.FakeChain
	world    *testutil.World
	store    *store.Store
	exec     *contract.Client
	client   *lobby.Client
	observer *recordingObserver
}

func setup(t *testing.T, opts ...lobby.Option) *fixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "lobby.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := entitysync.New(st, entitysync.WithIDGenerator(ids.NewSequence("w")))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	m, err := manifest.Load(filepath.Join("..", "manifest", "testdata", "manifest_dev.json"))
	require.NoError(t, err)

	chain := testutil.NewFakeChain()
	world := testutil.NewWorld(svc)
	world.Attach(chain)

	exec := contract.NewClient(chain.Dial(t), m, contract.WithRetryInterval(time.Millisecond))
	obs := &recordingObserver{}
	opts = append([]lobby.Option{
		lobby.WithWatcher(svc),
		lobby.WithJournal(st),
		lobby.WithObserver(obs),
		lobby.WithIDGenerator(ids.NewSequence("act")),
	}, opts...)

	return &fixture{
		chain:    chain,
		world:    world,
		store:    st,
		exec:     exec,
		client:   lobby.New(exec, opts...),
		observer: obs,
	}
}

var (
	alice = &testutil.StubSigner{Addr: "0xa11ce"}
	bob   = &testutil.StubSigner{Addr: "0xb0b"}
)

func requireConfirmed(t *testing.T, res lobby.Result) {
	t.Helper()
	require.NoError(t, res.Err)
	require.Equal(t, lobby.StatusConfirmed, res.Status)
	require.Equal(t, lobby.StageSync, res.Stage)
	require.NotEmpty(t, res.TxHash)
}

func move(t *testing.T, uci string) model.Move {
	t.Helper()
	r, err := chessmove.Parse(uci, "")
	require.NoError(t, err)
	return r.Move
}

func TestLobby_FullGameFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res := f.client.RegisterPlayer(ctx, alice, lobby.PlayerProfile{Name: "alice", ProfilePicType: model.ProfilePicNative, ProfilePicURI: "pfp/1.png"})
	requireConfirmed(t, res)
	p, err := model.DecodePlayer(res.Value)
	require.NoError(t, err)
	nameFelt, _ := ir.EncodeShortString("alice")
	assert.Equal(t, ir.FeltHex(nameFelt), p.Name)
	assert.Equal(t, "pfp/1.png", p.ProfilePicURI)
	assert.Equal(t, model.ComponentPlayer, res.Component)
	wantEntity, err := model.PlayerEntity("0xa11ce")
	require.NoError(t, err)
	assert.Equal(t, wantEntity, res.Entity)

	requireConfirmed(t, f.client.RegisterPlayer(ctx, bob, lobby.PlayerProfile{Name: "bob"}))

	res = f.client.CreateGame(ctx, alice, 1)
	requireConfirmed(t, res)
	g, err := model.DecodeGame(res.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.GameID)
	assert.Equal(t, "0xa11ce", g.RoomOwner)
	assert.False(t, g.HasOpponent())

	res = f.client.JoinGame(ctx, bob, 1)
	requireConfirmed(t, res)
	g, err = model.DecodeGame(res.Value)
	require.NoError(t, err)
	assert.Equal(t, "0xb0b", g.Invitee)

	res = f.client.StartGame(ctx, alice, 1)
	requireConfirmed(t, res)
	assert.Equal(t, model.ComponentGameState, res.Component)
	gameEntity, err := model.GameEntity(1)
	require.NoError(t, err)
	assert.Equal(t, gameEntity, res.Entity)

	res = f.client.MakeMove(ctx, alice, 1, move(t, "e2e4"))
	requireConfirmed(t, res)
	st, err := model.DecodeGameState(res.Value)
	require.NoError(t, err)
	assert.Equal(t, model.ColorBlack, st.Turn)
	assert.Contains(t, st.FEN, "4P3")

	res = f.client.MakeMove(ctx, bob, 1, move(t, "e7e5"))
	requireConfirmed(t, res)
	st, err = model.DecodeGameState(res.Value)
	require.NoError(t, err)
	assert.Equal(t, model.ColorWhite, st.Turn)

	res = f.client.Invite(ctx, alice, lobby.InviteParams{GameFormatID: 2, Invitee: "0xb0b", InviteExpiry: 1_700_003_600})
	requireConfirmed(t, res)
	g, err = model.DecodeGame(res.Value)
	require.NoError(t, err)
	assert.Equal(t, int64(2), g.GameID)
	assert.Equal(t, model.InviteAwaiting, g.InviteState)

	res = f.client.ReplyInvite(ctx, bob, 2, true)
	requireConfirmed(t, res)
	g, err = model.DecodeGame(res.Value)
	require.NoError(t, err)
	assert.Equal(t, model.InviteAccepted, g.InviteState)

	// One transaction per action, all journaled as confirmed.
	txs := f.chain.Transactions()
	assert.Len(t, txs, 9)
	for _, tx := range txs {
		rec, ok, err := f.store.GetTransaction(ctx, tx.Hash)
		require.NoError(t, err)
		require.True(t, ok, tx.Hash)
		assert.Equal(t, store.TxConfirmed, rec.Status, rec.Action)
		assert.True(t, strings.HasPrefix(rec.CorrelationID, "act-"))
	}
	assert.Len(t, f.observer.all(), 9)
}

func TestLobby_UpdatePlayerConfirmsNewProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	requireConfirmed(t, f.client.RegisterPlayer(ctx, alice, lobby.PlayerProfile{Name: "alice"}))
	res := f.client.UpdatePlayer(ctx, alice, lobby.PlayerProfile{
		Name:           "alice2",
		ProfilePicType: model.ProfilePicExternal,
		ProfilePicURI:  "https://example.com/a-rather-long-profile-picture-uri.png",
	})
	requireConfirmed(t, res)

	p, err := model.DecodePlayer(res.Value)
	require.NoError(t, err)
	assert.Equal(t, model.ProfilePicExternal, p.ProfilePicType)
	assert.Equal(t, "https://example.com/a-rather-long-profile-picture-uri.png", p.ProfilePicURI)
}

func TestLobby_RevertIsRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	requireConfirmed(t, f.client.RegisterPlayer(ctx, alice, lobby.PlayerProfile{Name: "alice"}))
	res := f.client.RegisterPlayer(ctx, alice, lobby.PlayerProfile{Name: "again"})

	assert.Equal(t, lobby.StatusRejected, res.Status)
	assert.Equal(t, lobby.StageReceipt, res.Stage)
	assert.NotEmpty(t, res.TxHash)

	var lerr *lobby.Error
	require.ErrorAs(t, res.Err, &lerr)
	assert.Equal(t, lobby.StatusRejected, lerr.Code)
	assert.Equal(t, lobby.ActionRegisterPlayer, lerr.Action)
	var rev *contract.RevertedError
	require.ErrorAs(t, res.Err, &rev)
	assert.Equal(t, "player already registered", rev.Reason)

	rec, ok, err := f.store.GetTransaction(ctx, res.TxHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.TxRejected, rec.Status)
	assert.Contains(t, rec.Detail, "player already registered")
}

func TestLobby_NodeRejectionAtSubmit(t *testing.T) {
	f := setup(t)
	f.chain.Decide = func(testutil.ChainTx) testutil.Outcome {
		return testutil.Outcome{Reject: &testutil.RPCError{Code: contract.CodeInsufficientBalance, Message: "Account balance is smaller than the transaction's max_fee"}}
	}

	res := f.client.CreateGame(context.Background(), alice, 1)
	assert.Equal(t, lobby.StatusRejected, res.Status)
	assert.Equal(t, lobby.StageSubmit, res.Stage)
	assert.Empty(t, res.TxHash)
	var rej *contract.RejectedError
	require.ErrorAs(t, res.Err, &rej)
	assert.Equal(t, contract.CodeInsufficientBalance, rej.Code)
}

// everyAction invokes each of the eight actions with fixed arguments.
func everyAction() map[string]func(c *lobby.Client, s contract.Signer) lobby.Result {
	return map[string]func(c *lobby.Client, s contract.Signer) lobby.Result{
		"register_player": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.RegisterPlayer(context.Background(), s, lobby.PlayerProfile{Name: "x"})
		},
		"update_player": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.UpdatePlayer(context.Background(), s, lobby.PlayerProfile{Name: "x"})
		},
		"invite": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.Invite(context.Background(), s, lobby.InviteParams{GameFormatID: 1, Invitee: "0xb0b", InviteExpiry: 10})
		},
		"reply_invite": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.ReplyInvite(context.Background(), s, 1, false)
		},
		"create_game": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.CreateGame(context.Background(), s, 1)
		},
		"join_game": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.JoinGame(context.Background(), s, 1)
		},
		"start_game": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.StartGame(context.Background(), s, 1)
		},
		"make_move": func(c *lobby.Client, s contract.Signer) lobby.Result {
			return c.MakeMove(context.Background(), s, 1, model.Move{FromX: 4, FromY: 1, ToX: 4, ToY: 3})
		},
	}
}

func TestLobby_SignerFailures(t *testing.T) {
	calls := everyAction()

	for name, call := range calls {
		t.Run(name+"/error", func(t *testing.T) {
			f := setup(t)
			res := call(f.client, &testutil.StubSigner{Addr: "0x1", Err: errors.New("device locked")})
			assert.Equal(t, lobby.StatusFailed, res.Status)
			assert.Equal(t, lobby.StageSign, res.Stage)
			assert.Equal(t, lobby.Action(name), res.Action)
			assert.ErrorContains(t, res.Err, "device locked")
			assert.Empty(t, f.chain.Transactions())
		})
		t.Run(name+"/panic", func(t *testing.T) {
			f := setup(t)
			var res lobby.Result
			require.NotPanics(t, func() {
				res = call(f.client, &testutil.StubSigner{Addr: "0x1", Panic: true})
			})
			assert.Equal(t, lobby.StatusFailed, res.Status)
			assert.ErrorContains(t, res.Err, "panic")
			assert.Empty(t, res.TxHash)
			assert.Empty(t, f.chain.Transactions())
			assert.Equal(t, []string{name + ":failed"}, f.observer.all())
		})
		t.Run(name+"/nil signer", func(t *testing.T) {
			f := setup(t)
			res := call(f.client, nil)
			assert.Equal(t, lobby.StatusFailed, res.Status)
			assert.Equal(t, lobby.StageSign, res.Stage)
		})
	}
}

func TestLobby_TransportFailures(t *testing.T) {
	m, err := manifest.Load(filepath.Join("..", "manifest", "testdata", "manifest_dev.json"))
	require.NoError(t, err)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	badGateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream gone", http.StatusBadGateway)
	}))
	t.Cleanup(badGateway.Close)

	transports := map[string]func(t *testing.T) *contract.Client{
		"closed client": func(t *testing.T) *contract.Client {
			c := contract.NewClient(testutil.NewFakeChain().Dial(t), m)
			c.Close()
			return c
		},
		"unreachable node": func(t *testing.T) *contract.Client {
			c, err := contract.Dial(context.Background(), deadURL, m)
			require.NoError(t, err)
			t.Cleanup(c.Close)
			return c
		},
		"bad gateway": func(t *testing.T) *contract.Client {
			c, err := contract.Dial(context.Background(), badGateway.URL, m)
			require.NoError(t, err)
			t.Cleanup(c.Close)
			return c
		},
	}

	for transport, dial := range transports {
		for name, call := range everyAction() {
			t.Run(transport+"/"+name, func(t *testing.T) {
				obs := &recordingObserver{}
				client := lobby.New(dial(t), lobby.WithObserver(obs))

				var res lobby.Result
				require.NotPanics(t, func() {
					res = call(client, alice)
				})
				assert.Equal(t, lobby.StatusFailed, res.Status)
				assert.Equal(t, lobby.StageSubmit, res.Stage)
				assert.Equal(t, lobby.Action(name), res.Action)
				assert.Empty(t, res.TxHash)
				require.Error(t, res.Err)
				assert.Equal(t, []string{name + ":failed"}, obs.all())
			})
		}
	}
}

func TestLobby_InvalidInputFailsAtEncode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() lobby.Result
	}{
		{"long name", func() lobby.Result {
			return f.client.RegisterPlayer(ctx, alice, lobby.PlayerProfile{Name: strings.Repeat("a", 32)})
		}},
		{"bad pfp type", func() lobby.Result {
			return f.client.UpdatePlayer(ctx, alice, lobby.PlayerProfile{Name: "a", ProfilePicType: 7})
		}},
		{"bad invitee", func() lobby.Result {
			return f.client.Invite(ctx, alice, lobby.InviteParams{GameFormatID: 1, Invitee: "bob"})
		}},
		{"format overflow", func() lobby.Result { return f.client.CreateGame(ctx, alice, 70000) }},
		{"negative game", func() lobby.Result { return f.client.JoinGame(ctx, alice, -1) }},
		{"off board", func() lobby.Result {
			return f.client.MakeMove(ctx, alice, 1, model.Move{FromX: 8, FromY: 0, ToX: 0, ToY: 0})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.run()
			assert.Equal(t, lobby.StatusFailed, res.Status)
			assert.Equal(t, lobby.StageEncode, res.Stage)
			assert.Error(t, res.Err)
		})
	}
	assert.Empty(t, f.chain.Transactions())
}

func TestLobby_SyncTimeout(t *testing.T) {
	f := setup(t, lobby.WithWaitTimeout(20*time.Millisecond))
	f.chain.OnAccepted = nil // the indexer never reports the change

	res := f.client.CreateGame(context.Background(), alice, 1)
	assert.Equal(t, lobby.StatusTimedOut, res.Status)
	assert.Equal(t, lobby.StageSync, res.Stage)
	assert.NotEmpty(t, res.TxHash)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)

	rec, ok, err := f.store.GetTransaction(context.Background(), res.TxHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.TxTimedOut, rec.Status)
}

// cancelingExecutor accepts everything and cancels the action once the
// receipt is in.
type cancelingExecutor struct {
	cancel context.CancelFunc
}

func (e *cancelingExecutor) Execute(context.Context, contract.Signer, contract.Call) (string, error) {
	return "0x77", nil
}

func (e *cancelingExecutor) WaitForTransaction(context.Context, string) (*contract.Receipt, error) {
	e.cancel()
	return &contract.Receipt{TransactionHash: "0x77", FinalityStatus: contract.FinalityAcceptedL2, ExecutionStatus: contract.ExecutionSucceeded}, nil
}

func TestLobby_CanceledWhileWaiting(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := entitysync.New(f.store)
	client := lobby.New(&cancelingExecutor{cancel: cancel}, lobby.WithWatcher(svc))

	res := client.StartGame(ctx, alice, 9)
	assert.Equal(t, lobby.StatusCanceled, res.Status)
	assert.Equal(t, lobby.StageSync, res.Stage)
	assert.Equal(t, "0x77", res.TxHash)
	assert.Zero(t, svc.ActiveWatches())
}

func TestLobby_WithoutWatcherConfirmsOnReceipt(t *testing.T) {
	f := setup(t)
	client := lobby.New(f.exec)

	res := client.CreateGame(context.Background(), alice, 1)
	require.NoError(t, res.Err)
	assert.Equal(t, lobby.StatusConfirmed, res.Status)
	assert.Equal(t, lobby.StageReceipt, res.Stage)
	assert.Empty(t, res.Entity)
}

func TestLobby_CalldataLayout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	requireConfirmed(t, f.client.RegisterPlayer(ctx, alice, lobby.PlayerProfile{Name: "a", ProfilePicType: model.ProfilePicNative, ProfilePicURI: "u"}))
	requireConfirmed(t, f.client.CreateGame(ctx, alice, 3))

	txs := f.chain.Transactions()
	require.Len(t, txs, 2)

	reg := txs[0].Calls[0]
	assert.Equal(t, "0x112", reg.To)
	assert.Equal(t, contract.Selector("register_player"), reg.Selector)
	// name, pfp type, then the ByteArray [0 words, "u", 1].
	assert.Equal(t, []string{"0x61", "0x1", "0x0", "0x75", "0x1"}, reg.Calldata)

	create := txs[1].Calls[0]
	assert.Equal(t, contract.Selector("create_game"), create.Selector)
	assert.Equal(t, []string{"0x3"}, create.Calldata)
}

func TestMoveCalldata(t *testing.T) {
	m := model.Move{FromX: 6, FromY: 6, ToX: 7, ToY: 7, Promotion: model.PromotionPiece{Color: model.ColorWhite, PieceType: model.PieceKnight}}
	assert.Equal(t, []string{"0x5", "0x6", "0x6", "0x7", "0x7", "0x1", "0x2"}, lobby.MoveCalldata(5, m))
}

func TestResult_OK(t *testing.T) {
	assert.True(t, lobby.Result{Status: lobby.StatusConfirmed}.OK())
	assert.False(t, lobby.Result{Status: lobby.StatusTimedOut}.OK())
}
