package lobby

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/roach88/rlchess/internal/contract"
	"github.com/roach88/rlchess/internal/entitysync"
	"github.com/roach88/rlchess/internal/ir"
	"github.com/roach88/rlchess/internal/model"
	"github.com/roach88/rlchess/internal/query"
)

// PlayerProfile is the payload of register_player and update_player.
type PlayerProfile struct {
	Name           string // ASCII, at most 31 bytes
	ProfilePicType model.ProfilePicType
	ProfilePicURI  string
}

// InviteParams is the payload of invite.
type InviteParams struct {
	GameFormatID int64
	Invitee      string // account address
	InviteExpiry int64  // unix seconds
}

// RegisterPlayer registers the signer as a player. It confirms once the
// signer's Player component carries the submitted profile.
func (c *Client) RegisterPlayer(ctx context.Context, signer contract.Signer, p PlayerProfile) Result {
	return c.run(ctx, ActionRegisterPlayer, signer, c.playerAction(ActionRegisterPlayer, p))
}

// UpdatePlayer changes the signer's profile. Confirmation works as for
// RegisterPlayer.
func (c *Client) UpdatePlayer(ctx context.Context, signer contract.Signer, p PlayerProfile) Result {
	return c.run(ctx, ActionUpdatePlayer, signer, c.playerAction(ActionUpdatePlayer, p))
}

func (c *Client) playerAction(name Action, p PlayerProfile) build {
	return func(signer contract.Signer) (action, error) {
		felt, err := ir.EncodeShortString(p.Name)
		if err != nil {
			return action{}, fmt.Errorf("name: %w", err)
		}
		if p.ProfilePicType < model.ProfilePicUndefined || p.ProfilePicType > model.ProfilePicExternal {
			return action{}, fmt.Errorf("profile picture type %d out of range", int(p.ProfilePicType))
		}

		calldata := []string{ir.FeltHex(felt), feltInt(int64(p.ProfilePicType))}
		for _, w := range ir.EncodeByteArray(p.ProfilePicURI) {
			calldata = append(calldata, ir.FeltHex(w))
		}

		return action{
			name:       name,
			contract:   ContractLobby,
			entrypoint: string(name),
			calldata:   calldata,
			confirm: query.HasValue(model.ComponentPlayer, ir.Obj(
				ir.O(model.FieldAddress, address(signer)),
				ir.O(model.FieldName, ir.IRString(ir.FeltHex(felt))),
				ir.O(model.FieldProfilePicType, ir.IRString(p.ProfilePicType.String())),
				ir.O(model.FieldProfilePicURI, ir.IRString(p.ProfilePicURI)),
			)),
			mode: entitysync.WatchExisting,
		}, nil
	}
}

// Invite opens a room and invites another player into it. It confirms on
// the next Game change carrying the submitted format, invitee and expiry.
func (c *Client) Invite(ctx context.Context, signer contract.Signer, p InviteParams) Result {
	return c.run(ctx, ActionInvite, signer, func(signer contract.Signer) (action, error) {
		if err := checkRange("game format id", p.GameFormatID, math.MaxUint16); err != nil {
			return action{}, err
		}
		if err := checkRange("invite expiry", p.InviteExpiry, math.MaxInt64); err != nil {
			return action{}, err
		}
		invitee, err := ir.Felt(ir.IRString(p.Invitee))
		if err != nil {
			return action{}, fmt.Errorf("invitee: %w", err)
		}
		return action{
			name:       ActionInvite,
			contract:   ContractLobby,
			entrypoint: string(ActionInvite),
			calldata:   []string{feltInt(p.GameFormatID), string(invitee), feltInt(p.InviteExpiry)},
			confirm: query.HasValue(model.ComponentGame, ir.Obj(
				ir.O(model.FieldGameFormatID, ir.IRInt(p.GameFormatID)),
				ir.O(model.FieldInviteeAddress, invitee),
				ir.O(model.FieldInviteExpiry, ir.IRInt(p.InviteExpiry)),
			)),
			mode: entitysync.WatchNext,
		}, nil
	})
}

// ReplyInvite accepts or rejects an invitation. It confirms once the game's
// invite state is Accepted or Rejected accordingly.
func (c *Client) ReplyInvite(ctx context.Context, signer contract.Signer, gameID int64, accept bool) Result {
	return c.run(ctx, ActionReplyInvite, signer, func(signer contract.Signer) (action, error) {
		if err := checkGameID(gameID); err != nil {
			return action{}, err
		}
		state := model.InviteRejected
		reply := "0x0"
		if accept {
			state = model.InviteAccepted
			reply = "0x1"
		}
		return action{
			name:       ActionReplyInvite,
			contract:   ContractLobby,
			entrypoint: string(ActionReplyInvite),
			calldata:   []string{feltInt(gameID), reply},
			confirm: query.HasValue(model.ComponentGame, ir.Obj(
				ir.O(model.FieldGameID, ir.IRInt(gameID)),
				ir.O(model.FieldInviteState, ir.IRString(state.String())),
			)),
			mode: entitysync.WatchExisting,
		}, nil
	})
}

// CreateGame opens a room owned by the signer. It confirms on the next Game
// change owned by the signer in that format.
func (c *Client) CreateGame(ctx context.Context, signer contract.Signer, gameFormatID int64) Result {
	return c.run(ctx, ActionCreateGame, signer, func(signer contract.Signer) (action, error) {
		if err := checkRange("game format id", gameFormatID, math.MaxUint16); err != nil {
			return action{}, err
		}
		return action{
			name:       ActionCreateGame,
			contract:   ContractLobby,
			entrypoint: string(ActionCreateGame),
			calldata:   []string{feltInt(gameFormatID)},
			confirm: query.HasValue(model.ComponentGame, ir.Obj(
				ir.O(model.FieldRoomOwnerAddress, address(signer)),
				ir.O(model.FieldGameFormatID, ir.IRInt(gameFormatID)),
			)),
			mode: entitysync.WatchNext,
		}, nil
	})
}

// JoinGame joins an open room. It confirms once the signer is the game's
// invitee.
func (c *Client) JoinGame(ctx context.Context, signer contract.Signer, gameID int64) Result {
	return c.run(ctx, ActionJoinGame, signer, func(signer contract.Signer) (action, error) {
		if err := checkGameID(gameID); err != nil {
			return action{}, err
		}
		return action{
			name:       ActionJoinGame,
			contract:   ContractLobby,
			entrypoint: string(ActionJoinGame),
			calldata:   []string{feltInt(gameID)},
			confirm: query.HasValue(model.ComponentGame, ir.Obj(
				ir.O(model.FieldGameID, ir.IRInt(gameID)),
				ir.O(model.FieldInviteeAddress, address(signer)),
			)),
			mode: entitysync.WatchExisting,
		}, nil
	})
}

// StartGame starts play in a room. It confirms once a GameState exists for
// the game.
func (c *Client) StartGame(ctx context.Context, signer contract.Signer, gameID int64) Result {
	return c.run(ctx, ActionStartGame, signer, func(signer contract.Signer) (action, error) {
		if err := checkGameID(gameID); err != nil {
			return action{}, err
		}
		return action{
			name:       ActionStartGame,
			contract:   ContractGameroom,
			entrypoint: string(ActionStartGame),
			calldata:   []string{feltInt(gameID)},
			confirm:    gameStateOf(gameID),
			mode:       entitysync.WatchExisting,
		}, nil
	})
}

// MakeMove plays a move. It confirms on the next GameState change of the
// game.
func (c *Client) MakeMove(ctx context.Context, signer contract.Signer, gameID int64, m model.Move) Result {
	return c.run(ctx, ActionMakeMove, signer, func(signer contract.Signer) (action, error) {
		if err := checkGameID(gameID); err != nil {
			return action{}, err
		}
		if err := m.Validate(); err != nil {
			return action{}, err
		}
		return action{
			name:       ActionMakeMove,
			contract:   ContractGameroom,
			entrypoint: string(ActionMakeMove),
			calldata:   MoveCalldata(gameID, m),
			confirm:    gameStateOf(gameID),
			mode:       entitysync.WatchNext,
		}, nil
	})
}

// MoveCalldata lays out make_move arguments:
// [game_id, from_x, from_y, to_x, to_y, promotion_color, promotion_piece].
func MoveCalldata(gameID int64, m model.Move) []string {
	return []string{
		feltInt(gameID),
		feltInt(int64(m.FromX)), feltInt(int64(m.FromY)),
		feltInt(int64(m.ToX)), feltInt(int64(m.ToY)),
		feltInt(int64(m.Promotion.Color)), feltInt(int64(m.Promotion.PieceType)),
	}
}

func gameStateOf(gameID int64) query.Query {
	return query.HasValue(model.ComponentGameState, ir.Obj(ir.O(model.FieldGameID, ir.IRInt(gameID))))
}

func address(signer contract.Signer) ir.IRString {
	return ir.IRString(ir.NormalizeFelt(signer.Address()))
}

func feltInt(n int64) string {
	return ir.FeltHex(big.NewInt(n))
}

func checkGameID(id int64) error {
	return checkRange("game id", id, math.MaxUint32)
}

func checkRange(what string, v, max int64) error {
	if v < 0 || v > max {
		return fmt.Errorf("%s %d out of range [0, %d]", what, v, max)
	}
	return nil
}
