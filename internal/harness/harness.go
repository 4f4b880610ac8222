package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/roach88/rlchess/internal/chessmove"
	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/ids"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/lobby"
	"github.com/roach88/rlchess/internal/model"
	"github.com/roach88/rlchess/internal/store"
	"github.com/roach88/rlchess/internal/testutil"
)

// Contract addresses of the simulated world.
const (
	LobbyAddress    = "0x112"
	GameroomAddress = "0x221"
)

// StartTime is the wall clock reading every scenario starts at.
var StartTime = time.Unix(1_700_000_000, 0).UTC()

// stepTimeout bounds one action, so a missing update fails the step instead
// of hanging the run.
const stepTimeout = 5 * time.Second

// addressBook resolves contract tags of the simulated world.
type addressBook map[string]string

func (b addressBook) ContractAddress(tag string) (string, error) {
	addr, ok := b[tag]
	if !ok {
		return "", fmt.Errorf("contract %q not deployed", tag)
	}
	return addr, nil
}

// Harness runs one scenario against a fresh simulated chain.
type Harness struct {
	store   *store.Store
	lobby   *lobby.Client
	signers map[string]contract.Signer
	logger  *slog.Logger
	seq     int64
}

// Run executes a scenario and returns the result.
//
// Each scenario gets its own in-memory store, sync service and chain, so
// hashes, ids and timestamps are reproducible across runs.
//
// Execution flow:
// 1. Open an in-memory store and start the sync service
// 2. Start a fake chain whose world feeds the sync service
// 3. Run each flow step through the lobby client, checking expect clauses
// 4. Evaluate assertions against the trace and the synced state
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with a caller-supplied logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := entitysync.New(st, entitysync.WithIDGenerator(ids.NewSequence("watch")))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := svc.Run(ctx); err != nil {
			logger.Error("sync service stopped", "error", err)
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	chain := testutil.NewFakeChain()
	testutil.NewWorld(svc).Attach(chain)

	srv := chain.Server()
	defer srv.Stop()
	conn := rpc.DialInProc(srv)
	defer conn.Close()

	exec := contract.NewClient(conn, addressBook{
		model.Tag(model.Namespace, lobby.ContractLobby):    LobbyAddress,
		model.Tag(model.Namespace, lobby.ContractGameroom): GameroomAddress,
	},
		contract.WithNamespace(model.Namespace),
		contract.WithRetryInterval(time.Millisecond),
	)

	clock := testutil.NewManualClock(StartTime)
	h := &Harness{
		store: st,
		lobby: lobby.New(exec,
			lobby.WithWatcher(svc),
			lobby.WithJournal(st),
			lobby.WithIDGenerator(ids.NewSequence(scenario.Name)),
			lobby.WithNow(clock.Now),
		),
		signers: make(map[string]contract.Signer, len(scenario.Accounts)),
		logger:  logger,
	}
	for name, addr := range scenario.Accounts {
		h.signers[name] = &testutil.StubSigner{Addr: ir.NormalizeFelt(addr)}
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, scenario, step, result); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
		}
		clock.Advance(time.Second)
	}

	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(ctx, h.store, result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}

	logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}

// executeStep runs one flow step and appends its invocation and completion
// to the trace. It returns an error only for malformed step arguments.
func (h *Harness) executeStep(ctx context.Context, i int, scenario *Scenario, step FlowStep, result *Result) error {
	args, err := toIRObject(step.Args)
	if err != nil {
		return fmt.Errorf("args: %w", err)
	}

	h.seq++
	result.Trace = append(result.Trace, TraceEvent{
		Type:   EventInvocation,
		Seq:    h.seq,
		Action: step.Invoke,
		As:     step.As,
		Args:   args,
	})

	stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()

	res, err := h.invoke(stepCtx, step.Invoke, h.signers[step.As], argReader{obj: args, accounts: scenario.Accounts})
	if err != nil {
		return err
	}
	h.logger.Debug("step finished", "step", i, "action", step.Invoke, "status", res.Status, "stage", res.Stage)

	h.seq++
	completion := TraceEvent{
		Type:      EventCompletion,
		Seq:       h.seq,
		Action:    step.Invoke,
		Status:    string(res.Status),
		Stage:     string(res.Stage),
		TxHash:    res.TxHash,
		Component: res.Component,
		EntityID:  res.Entity,
		Value:     res.Value,
	}
	if res.Err != nil {
		completion.Error = res.Err.Error()
	}
	result.Trace = append(result.Trace, completion)

	checkExpect(i, step, completion, result)
	return nil
}

// invoke dispatches a flow step to the lobby client.
func (h *Harness) invoke(ctx context.Context, name string, signer contract.Signer, args argReader) (lobby.Result, error) {
	switch lobby.Action(name) {
	case lobby.ActionRegisterPlayer, lobby.ActionUpdatePlayer:
		p, err := args.profile()
		if err != nil {
			return lobby.Result{}, err
		}
		if lobby.Action(name) == lobby.ActionUpdatePlayer {
			return h.lobby.UpdatePlayer(ctx, signer, p), nil
		}
		return h.lobby.RegisterPlayer(ctx, signer, p), nil

	case lobby.ActionInvite:
		format, err := args.int(model.FieldGameFormatID)
		if err != nil {
			return lobby.Result{}, err
		}
		invitee, err := args.address("invitee")
		if err != nil {
			return lobby.Result{}, err
		}
		expiry, err := args.int(model.FieldInviteExpiry)
		if err != nil {
			return lobby.Result{}, err
		}
		return h.lobby.Invite(ctx, signer, lobby.InviteParams{
			GameFormatID: format,
			Invitee:      invitee,
			InviteExpiry: expiry,
		}), nil

	case lobby.ActionReplyInvite:
		id, err := args.int(model.FieldGameID)
		if err != nil {
			return lobby.Result{}, err
		}
		accept, err := args.bool("accept", true)
		if err != nil {
			return lobby.Result{}, err
		}
		return h.lobby.ReplyInvite(ctx, signer, id, accept), nil

	case lobby.ActionCreateGame:
		format, err := args.int(model.FieldGameFormatID)
		if err != nil {
			return lobby.Result{}, err
		}
		return h.lobby.CreateGame(ctx, signer, format), nil

	case lobby.ActionJoinGame, lobby.ActionStartGame:
		id, err := args.int(model.FieldGameID)
		if err != nil {
			return lobby.Result{}, err
		}
		if lobby.Action(name) == lobby.ActionJoinGame {
			return h.lobby.JoinGame(ctx, signer, id), nil
		}
		return h.lobby.StartGame(ctx, signer, id), nil

	case lobby.ActionMakeMove:
		id, err := args.int(model.FieldGameID)
		if err != nil {
			return lobby.Result{}, err
		}
		text, err := args.str("move")
		if err != nil {
			return lobby.Result{}, err
		}
		move, err := h.parseMove(ctx, id, text)
		if err != nil {
			// Illegal against the synced board: the client refuses it
			// before anything is signed.
			return lobby.Result{
				Action: lobby.ActionMakeMove,
				Status: lobby.StatusFailed,
				Stage:  lobby.StageEncode,
				Err:    &lobby.Error{Code: lobby.StatusFailed, Action: lobby.ActionMakeMove, Stage: lobby.StageEncode, Err: err},
			}, nil
		}
		return h.lobby.MakeMove(ctx, signer, id, move), nil
	}
	return lobby.Result{}, fmt.Errorf("unknown action %q", name)
}

// parseMove reads a move against the synced position of a game, or the
// initial position when the game has no state yet.
func (h *Harness) parseMove(ctx context.Context, gameID int64, text string) (model.Move, error) {
	fen := chessmove.StartFEN
	entity, err := model.GameEntity(gameID)
	if err != nil {
		return model.Move{}, err
	}
	c, ok, err := h.store.GetComponent(ctx, entity, model.ComponentGameState)
	if err != nil {
		return model.Move{}, err
	}
	if ok {
		if s, err := model.DecodeGameState(c.Value); err == nil && s.FEN != "" {
			fen = s.FEN
		}
	}
	r, err := chessmove.Parse(text, fen)
	if err != nil {
		return model.Move{}, err
	}
	return r.Move, nil
}

// checkExpect compares a completion with the step's expect clause.
func checkExpect(i int, step FlowStep, got TraceEvent, result *Result) {
	want := step.Expect
	if want == nil {
		want = &ExpectClause{Status: string(lobby.StatusConfirmed)}
	}

	prefix := fmt.Sprintf("flow[%d] %s", i, step.Invoke)
	if got.Status != want.Status {
		msg := fmt.Sprintf("%s: expected status %q, got %q", prefix, want.Status, got.Status)
		if got.Error != "" {
			msg += " (" + got.Error + ")"
		}
		result.AddError(msg)
	}
	if want.Stage != "" && got.Stage != want.Stage {
		result.AddError(fmt.Sprintf("%s: expected stage %q, got %q", prefix, want.Stage, got.Stage))
	}
	if want.Error != "" && !strings.Contains(got.Error, want.Error) {
		result.AddError(fmt.Sprintf("%s: expected error containing %q, got %q", prefix, want.Error, got.Error))
	}
	if len(want.Value) > 0 {
		if err := matchSubset(got.Value, want.Value); err != nil {
			result.AddError(fmt.Sprintf("%s: value: %v", prefix, err))
		}
	}
}

// argReader reads typed flow step arguments.
type argReader struct {
	obj      ir.IRObject
	accounts map[string]string
}

func (a argReader) int(key string) (int64, error) {
	switch v := a.obj[key].(type) {
	case ir.IRInt:
		return int64(v), nil
	case ir.IRString:
		n, err := ir.ParseFelt(string(v))
		if err != nil || !n.IsInt64() {
			return 0, fmt.Errorf("arg %s: %q is not an integer", key, string(v))
		}
		return n.Int64(), nil
	case nil:
		return 0, fmt.Errorf("arg %s is required", key)
	default:
		return 0, fmt.Errorf("arg %s: expected integer, got %T", key, v)
	}
}

func (a argReader) str(key string) (string, error) {
	switch v := a.obj[key].(type) {
	case ir.IRString:
		return string(v), nil
	case ir.IRInt:
		return strconv.FormatInt(int64(v), 10), nil
	case nil:
		return "", fmt.Errorf("arg %s is required", key)
	default:
		return "", fmt.Errorf("arg %s: expected string, got %T", key, v)
	}
}

func (a argReader) optStr(key string) string {
	s, _ := a.obj.Str(key)
	return s
}

func (a argReader) bool(key string, def bool) (bool, error) {
	switch v := a.obj[key].(type) {
	case ir.IRBool:
		return bool(v), nil
	case nil:
		return def, nil
	default:
		return false, fmt.Errorf("arg %s: expected bool, got %T", key, v)
	}
}

// address reads an account name or a felt.
func (a argReader) address(key string) (string, error) {
	s, err := a.str(key)
	if err != nil {
		return "", err
	}
	if addr, ok := a.accounts[s]; ok {
		return ir.NormalizeFelt(addr), nil
	}
	if !ir.IsFelt(s) {
		return "", fmt.Errorf("arg %s: %q is neither an account nor an address", key, s)
	}
	return ir.NormalizeFelt(s), nil
}

func (a argReader) profile() (lobby.PlayerProfile, error) {
	name, err := a.str(model.FieldName)
	if err != nil {
		return lobby.PlayerProfile{}, err
	}
	p := lobby.PlayerProfile{Name: name, ProfilePicURI: a.optStr(model.FieldProfilePicURI)}
	if _, ok := a.obj[model.FieldProfilePicType]; ok {
		s, err := a.str(model.FieldProfilePicType)
		if err != nil {
			return lobby.PlayerProfile{}, err
		}
		if p.ProfilePicType, err = model.ParseProfilePicType(s); err != nil {
			return lobby.PlayerProfile{}, err
		}
	}
	return p, nil
}
