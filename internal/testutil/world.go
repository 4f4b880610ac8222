package testutil

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/roach88/rlchess/internal/chessmove"
	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
)

// Sink receives the component updates a World emits.
// Implemented by *entitysync.Service.
type Sink interface {
	Apply(u entitysync.Update) bool
}

// World plays the lobby and gameroom contracts on top of a FakeChain.
//
// Decide reverts calls the contracts would refuse; OnAccepted applies the
// rest and pushes the changed components to the sink, as the indexer would.
type World struct {
	sink Sink

	mu      sync.Mutex
	players map[string]model.Player
	games   map[int64]model.Game
	states  map[int64]model.GameState
	nextID  int64
	now     int64
}

// NewWorld creates an empty world emitting to sink.
func NewWorld(sink Sink) *World {
	return &World{
		sink:    sink,
		players: make(map[string]model.Player),
		games:   make(map[int64]model.Game),
		states:  make(map[int64]model.GameState),
		nextID:  1,
		now:     1_700_000_000,
	}
}

// Attach installs the world as chain's Decide and OnAccepted hooks.
func (w *World) Attach(chain *FakeChain) {
	chain.Decide = w.Decide
	chain.OnAccepted = w.OnAccepted
}

var (
	selRegister = contract.Selector("register_player")
	selUpdate   = contract.Selector("update_player")
	selInvite   = contract.Selector("invite")
	selReply    = contract.Selector("reply_invite")
	selCreate   = contract.Selector("create_game")
	selJoin     = contract.Selector("join_game")
	selStart    = contract.Selector("start_game")
	selMove     = contract.Selector("make_move")
)

// Decide reverts the transaction when any of its calls would fail.
func (w *World) Decide(tx ChainTx) Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	sender := ir.NormalizeFelt(tx.Tx.SenderAddress)
	for _, call := range tx.Calls {
		if reason := w.check(sender, call); reason != "" {
			return Outcome{Revert: reason}
		}
	}
	return Outcome{}
}

// OnAccepted applies the transaction's calls.
func (w *World) OnAccepted(tx ChainTx) {
	w.mu.Lock()
	sender := ir.NormalizeFelt(tx.Tx.SenderAddress)
	var updates []entitysync.Update
	for _, call := range tx.Calls {
		updates = append(updates, w.apply(sender, call)...)
	}
	w.mu.Unlock()

	for _, u := range updates {
		w.sink.Apply(u)
	}
}

// Game returns a game as the world sees it.
func (w *World) Game(id int64) (model.Game, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.games[id]
	return g, ok
}

func (w *World) check(sender string, call ChainCall) string {
	args := feltArgs(call.Calldata)
	switch call.Selector {
	case selRegister:
		if _, ok := w.players[sender]; ok {
			return "player already registered"
		}
	case selUpdate:
		if _, ok := w.players[sender]; !ok {
			return "player not registered"
		}
	case selReply:
		g, ok := w.games[args.int(0)]
		switch {
		case !ok:
			return "game not found"
		case g.Invitee != sender:
			return "not the invitee"
		case g.InviteState != model.InviteAwaiting:
			return "invite not awaiting reply"
		}
	case selJoin:
		g, ok := w.games[args.int(0)]
		switch {
		case !ok:
			return "game not found"
		case g.HasOpponent():
			return "game is full"
		case g.RoomOwner == sender:
			return "owner cannot join"
		}
	case selStart:
		g, ok := w.games[args.int(0)]
		switch {
		case !ok:
			return "game not found"
		case g.RoomOwner != sender:
			return "only the owner can start"
		case !g.HasOpponent():
			return "no opponent"
		}
		if _, started := w.states[g.GameID]; started {
			return "game already started"
		}
	case selMove:
		st, ok := w.states[args.int(0)]
		if !ok {
			return "game not started"
		}
		if _, err := chessmove.Parse(moveText(args), st.FEN); err != nil {
			return "illegal move"
		}
	}
	return ""
}

func (w *World) apply(sender string, call ChainCall) []entitysync.Update {
	args := feltArgs(call.Calldata)
	switch call.Selector {
	case selRegister, selUpdate:
		uri := ""
		if len(args) > 2 {
			uri, _, _ = ir.DecodeByteArray(args[2:])
		}
		p := model.Player{
			Address:        sender,
			Name:           ir.FeltHex(args[0]),
			ProfilePicType: model.ProfilePicType(args.int(1)),
			ProfilePicURI:  uri,
		}
		w.players[sender] = p
		return []entitysync.Update{playerUpdate(p)}

	case selCreate, selInvite:
		g := model.Game{
			GameID:       w.nextID,
			GameFormatID: args.int(0),
			RoomOwner:    sender,
			Invitee:      "0x0",
			InviteState:  model.InviteNone,
			RoomStart:    w.now,
		}
		if call.Selector == selInvite {
			g.Invitee = ir.FeltHex(args[1])
			g.InviteExpiry = args.int(2)
			g.InviteState = model.InviteAwaiting
		}
		w.nextID++
		w.games[g.GameID] = g
		return []entitysync.Update{gameUpdate(g)}

	case selReply:
		g := w.games[args.int(0)]
		g.InviteState = model.InviteRejected
		if args.int(1) == 1 {
			g.InviteState = model.InviteAccepted
		}
		w.games[g.GameID] = g
		return []entitysync.Update{gameUpdate(g)}

	case selJoin:
		g := w.games[args.int(0)]
		g.Invitee = sender
		w.games[g.GameID] = g
		return []entitysync.Update{gameUpdate(g)}

	case selStart:
		st := model.GameState{
			GameID:        args.int(0),
			WhiteTimeLeft: 600,
			BlackTimeLeft: 600,
			Turn:          model.ColorWhite,
			FEN:           chessmove.StartFEN,
		}
		w.states[st.GameID] = st
		return []entitysync.Update{stateUpdate(st)}

	case selMove:
		st := w.states[args.int(0)]
		r, err := chessmove.Parse(moveText(args), st.FEN)
		if err != nil {
			return nil
		}
		st.FEN = r.FEN
		if st.Turn == model.ColorWhite {
			st.Turn = model.ColorBlack
		} else {
			st.Turn = model.ColorWhite
		}
		w.states[st.GameID] = st
		return []entitysync.Update{stateUpdate(st)}
	}
	return nil
}

func playerUpdate(p model.Player) entitysync.Update {
	return entitysync.Update{
		Component: model.ComponentPlayer,
		Keys:      ir.IRArray{ir.IRString(p.Address)},
		Value:     p.Object(),
	}
}

func gameUpdate(g model.Game) entitysync.Update {
	return entitysync.Update{
		Component: model.ComponentGame,
		Keys:      ir.IRArray{ir.IRInt(g.GameID)},
		Value:     g.Object(),
	}
}

func stateUpdate(s model.GameState) entitysync.Update {
	return entitysync.Update{
		Component: model.ComponentGameState,
		Keys:      ir.IRArray{ir.IRInt(s.GameID)},
		Value:     s.Object(),
	}
}

type felts []*big.Int

func feltArgs(calldata []string) felts {
	out := make(felts, len(calldata))
	for i, c := range calldata {
		n, err := ir.ParseFelt(c)
		if err != nil {
			n = new(big.Int)
		}
		out[i] = n
	}
	return out
}

func (f felts) int(i int) int64 {
	if i >= len(f) || !f[i].IsInt64() {
		return -1
	}
	return f[i].Int64()
}

// moveText renders make_move calldata as UCI.
func moveText(args felts) string {
	m := model.Move{
		FromX: int(args.int(1)), FromY: int(args.int(2)),
		ToX: int(args.int(3)), ToY: int(args.int(4)),
		Promotion: model.PromotionPiece{
			Color:     model.Color(args.int(5)),
			PieceType: model.PieceType(args.int(6)),
		},
	}
	if m.Validate() != nil {
		return fmt.Sprintf("invalid:%v", args)
	}
	return chessmove.ToUCI(m)
}
