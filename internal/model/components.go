package model

import (
	"fmt"
	"strings"

	"github.com/roach88/rlchess/internal/ir"
)

// Namespace is the contract namespace every model and system lives under.
const Namespace = "rl_chess_contracts"

// Component names as they appear after the namespace in a model tag.
const (
	ComponentPlayer     = "Player"
	ComponentGame       = "Game"
	ComponentGameState  = "GameState"
	ComponentGameFormat = "GameFormat"
)

// Field names shared by decoders, predicates and calldata builders.
const (
	FieldAddress        = "address"
	FieldName           = "name"
	FieldProfilePicType = "profile_pic_type"
	FieldProfilePicURI  = "profile_pic_uri"

	FieldGameID           = "game_id"
	FieldGameFormatID     = "game_format_id"
	FieldRoomOwnerAddress = "room_owner_address"
	FieldInviteeAddress   = "invitee_address"
	FieldInviteExpiry     = "invite_expiry"
	FieldInviteState      = "invite_state"
	FieldRoomStart        = "room_start"
	FieldRoomEnd          = "room_end"

	FieldWhite         = "white"
	FieldWhiteTimeLeft = "w_total_time_left"
	FieldBlackTimeLeft = "b_total_time_left"
	FieldTurn          = "turn"
	FieldFEN           = "fen"

	FieldID          = "id"
	FieldDescription = "description"
	FieldTotalTime   = "total_time"
	FieldIncrement   = "increment"
)

// keyFields lists the #[key] members of each model, in declaration order.
var keyFields = map[string][]string{
	ComponentPlayer:     {FieldAddress},
	ComponentGame:       {FieldGameID},
	ComponentGameState:  {FieldGameID},
	ComponentGameFormat: {FieldID},
}

// feltFields lists the members stored as canonical felt hex. Other string
// members (enum names, ByteArrays, FEN) hold free text.
var feltFields = map[string]map[string]bool{
	ComponentPlayer: {FieldAddress: true, FieldName: true},
	ComponentGame:   {FieldRoomOwnerAddress: true, FieldInviteeAddress: true},
}

// IsFeltField reports whether a component member holds a felt, so that
// "0x0A" and "0xa" name the same value.
func IsFeltField(component, field string) bool {
	return feltFields[component][field]
}

// Components returns the known component names in a stable order.
func Components() []string {
	return []string{ComponentPlayer, ComponentGame, ComponentGameState, ComponentGameFormat}
}

// Tag joins a namespace and a model or contract name: "rl_chess_contracts-Game".
func Tag(namespace, name string) string {
	return namespace + "-" + name
}

// SplitTag is the inverse of Tag. Names without a namespace return ok=false.
func SplitTag(tag string) (namespace, name string, ok bool) {
	i := strings.LastIndex(tag, "-")
	if i <= 0 || i == len(tag)-1 {
		return "", tag, false
	}
	return tag[:i], tag[i+1:], true
}

// KeyFields returns the key members of a component.
func KeyFields(component string) ([]string, bool) {
	k, ok := keyFields[component]
	return k, ok
}

// EntityIDFor derives the entity id of a component value from its key fields.
func EntityIDFor(component string, value ir.IRObject) (string, error) {
	fields, ok := keyFields[component]
	if !ok {
		return "", fmt.Errorf("entity id: unknown component %q", component)
	}
	keys := make([]ir.IRValue, len(fields))
	for i, f := range fields {
		v, present := value[f]
		if !present {
			return "", fmt.Errorf("entity id: %s missing key %q", component, f)
		}
		keys[i] = v
	}
	return ir.EntityID(keys...)
}

// PlayerEntity returns the entity id of the Player keyed by address.
func PlayerEntity(address string) (string, error) {
	return ir.EntityID(ir.IRString(address))
}

// GameEntity returns the entity id shared by the Game and GameState of a room.
func GameEntity(gameID int64) (string, error) {
	return ir.EntityID(ir.IRInt(gameID))
}

// Player is a registered account.
type Player struct {
	Address        string
	Name           string // felt-encoded short string
	ProfilePicType ProfilePicType
	ProfilePicURI  string
}

// DecodePlayer reads a Player component.
func DecodePlayer(obj ir.IRObject) (Player, error) {
	var p Player
	var err error
	if p.Address, err = feltField(obj, FieldAddress); err != nil {
		return Player{}, fmt.Errorf("decode Player: %w", err)
	}
	if p.Name, err = feltField(obj, FieldName); err != nil {
		return Player{}, fmt.Errorf("decode Player: %w", err)
	}
	pt, err := decodeEnum(obj, FieldProfilePicType, "ProfilePicType", profilePicNames)
	if err != nil {
		return Player{}, fmt.Errorf("decode Player: %w", err)
	}
	p.ProfilePicType = ProfilePicType(pt)
	p.ProfilePicURI, _ = obj.Str(FieldProfilePicURI)
	return p, nil
}

// Object renders the Player as a component value.
func (p Player) Object() ir.IRObject {
	return ir.Obj(
		ir.O(FieldAddress, ir.IRString(ir.NormalizeFelt(p.Address))),
		ir.O(FieldName, ir.IRString(ir.NormalizeFelt(p.Name))),
		ir.O(FieldProfilePicType, ir.IRString(p.ProfilePicType.String())),
		ir.O(FieldProfilePicURI, ir.IRString(p.ProfilePicURI)),
	)
}

// Game is a room: owner, optional invitee, format and invitation state.
type Game struct {
	GameID       int64
	GameFormatID int64
	RoomOwner    string
	Invitee      string // "0x0" when no opponent has joined
	InviteExpiry int64
	InviteState  InviteState
	RoomStart    int64
	RoomEnd      int64
}

// DecodeGame reads a Game component.
func DecodeGame(obj ir.IRObject) (Game, error) {
	var g Game
	var err error
	if g.GameID, err = intField(obj, FieldGameID); err != nil {
		return Game{}, fmt.Errorf("decode Game: %w", err)
	}
	if g.GameFormatID, err = intField(obj, FieldGameFormatID); err != nil {
		return Game{}, fmt.Errorf("decode Game: %w", err)
	}
	if g.RoomOwner, err = feltField(obj, FieldRoomOwnerAddress); err != nil {
		return Game{}, fmt.Errorf("decode Game: %w", err)
	}
	if g.Invitee, err = feltField(obj, FieldInviteeAddress); err != nil {
		return Game{}, fmt.Errorf("decode Game: %w", err)
	}
	st, err := decodeEnum(obj, FieldInviteState, "InviteState", inviteStateNames)
	if err != nil {
		return Game{}, fmt.Errorf("decode Game: %w", err)
	}
	g.InviteState = InviteState(st)
	g.InviteExpiry, _ = obj.Int(FieldInviteExpiry)
	g.RoomStart, _ = obj.Int(FieldRoomStart)
	g.RoomEnd, _ = obj.Int(FieldRoomEnd)
	return g, nil
}

// Object renders the Game as a component value.
func (g Game) Object() ir.IRObject {
	return ir.Obj(
		ir.O(FieldGameID, ir.IRInt(g.GameID)),
		ir.O(FieldGameFormatID, ir.IRInt(g.GameFormatID)),
		ir.O(FieldRoomOwnerAddress, ir.IRString(ir.NormalizeFelt(g.RoomOwner))),
		ir.O(FieldInviteeAddress, ir.IRString(ir.NormalizeFelt(orZero(g.Invitee)))),
		ir.O(FieldInviteExpiry, ir.IRInt(g.InviteExpiry)),
		ir.O(FieldInviteState, ir.IRString(g.InviteState.String())),
		ir.O(FieldRoomStart, ir.IRInt(g.RoomStart)),
		ir.O(FieldRoomEnd, ir.IRInt(g.RoomEnd)),
	)
}

// HasOpponent reports whether an invitee has joined the room.
func (g Game) HasOpponent() bool {
	return ir.NormalizeFelt(orZero(g.Invitee)) != "0x0"
}

// GameState holds the live clocks of a started game.
type GameState struct {
	GameID        int64
	White         int64 // 0 when the room owner plays white
	WhiteTimeLeft int64 // seconds
	BlackTimeLeft int64 // seconds
	Turn          Color
	FEN           string
}

// DecodeGameState reads a GameState component. Turn and FEN are optional.
func DecodeGameState(obj ir.IRObject) (GameState, error) {
	var s GameState
	var err error
	if s.GameID, err = intField(obj, FieldGameID); err != nil {
		return GameState{}, fmt.Errorf("decode GameState: %w", err)
	}
	s.White, _ = obj.Int(FieldWhite)
	s.WhiteTimeLeft, _ = obj.Int(FieldWhiteTimeLeft)
	s.BlackTimeLeft, _ = obj.Int(FieldBlackTimeLeft)
	if _, ok := obj[FieldTurn]; ok {
		t, err := decodeEnum(obj, FieldTurn, "Color", colorNames)
		if err != nil {
			return GameState{}, fmt.Errorf("decode GameState: %w", err)
		}
		s.Turn = Color(t)
	}
	s.FEN, _ = obj.Str(FieldFEN)
	return s, nil
}

// Object renders the GameState as a component value.
func (s GameState) Object() ir.IRObject {
	obj := ir.Obj(
		ir.O(FieldGameID, ir.IRInt(s.GameID)),
		ir.O(FieldWhite, ir.IRInt(s.White)),
		ir.O(FieldWhiteTimeLeft, ir.IRInt(s.WhiteTimeLeft)),
		ir.O(FieldBlackTimeLeft, ir.IRInt(s.BlackTimeLeft)),
		ir.O(FieldTurn, ir.IRString(s.Turn.String())),
	)
	if s.FEN != "" {
		obj[FieldFEN] = ir.IRString(s.FEN)
	}
	return obj
}

// OwnerIsWhite reports whether the room owner plays the white pieces.
func (s GameState) OwnerIsWhite() bool {
	return s.White == 0
}

// GameFormat describes a time control.
type GameFormat struct {
	ID          int64
	Description string
	TotalTime   int64 // seconds, 0 for unlimited
	Increment   int64 // seconds per move
}

// DecodeGameFormat reads a GameFormat component. The description may be a
// plain string or a felt short string.
func DecodeGameFormat(obj ir.IRObject) (GameFormat, error) {
	var f GameFormat
	var err error
	if f.ID, err = intField(obj, FieldID); err != nil {
		return GameFormat{}, fmt.Errorf("decode GameFormat: %w", err)
	}
	if d, ok := obj.Str(FieldDescription); ok {
		f.Description = d
		if ir.IsFelt(d) {
			n, _ := ir.ParseFelt(d)
			f.Description = ir.DecodeShortString(n)
		}
	}
	f.TotalTime, _ = obj.Int(FieldTotalTime)
	f.Increment, _ = obj.Int(FieldIncrement)
	return f, nil
}

// Object renders the GameFormat as a component value.
func (f GameFormat) Object() ir.IRObject {
	return ir.Obj(
		ir.O(FieldID, ir.IRInt(f.ID)),
		ir.O(FieldDescription, ir.IRString(f.Description)),
		ir.O(FieldTotalTime, ir.IRInt(f.TotalTime)),
		ir.O(FieldIncrement, ir.IRInt(f.Increment)),
	)
}

func intField(obj ir.IRObject, field string) (int64, error) {
	switch v := obj[field].(type) {
	case ir.IRInt:
		return int64(v), nil
	case ir.IRString:
		n, err := ir.ParseFelt(string(v))
		if err != nil || !n.IsInt64() {
			return 0, fmt.Errorf("%s: not an integer: %q", field, string(v))
		}
		return n.Int64(), nil
	case nil:
		return 0, fmt.Errorf("%s: missing", field)
	default:
		return 0, fmt.Errorf("%s: unexpected %T", field, v)
	}
}

func feltField(obj ir.IRObject, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("%s: missing", field)
	}
	f, err := ir.Felt(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return string(f), nil
}

func orZero(s string) string {
	if s == "" {
		return "0x0"
	}
	return s
}
