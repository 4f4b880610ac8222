package model

import (
	"fmt"
	"strconv"

	"github.com/roach88/rlchess/internal/ir"
)

// ProfilePicType says where a player's avatar comes from.
type ProfilePicType int

const (
	ProfilePicUndefined ProfilePicType = 0
	ProfilePicNative    ProfilePicType = 1
	ProfilePicExternal  ProfilePicType = 2
)

var profilePicNames = []string{"Undefined", "Native", "External"}

func (p ProfilePicType) String() string { return enumName(profilePicNames, int(p)) }

// ParseProfilePicType accepts an option name or index.
func ParseProfilePicType(s string) (ProfilePicType, error) {
	i, err := parseEnum("ProfilePicType", profilePicNames, s)
	return ProfilePicType(i), err
}

// InviteState is the lifecycle of a game room invitation.
type InviteState int

const (
	InviteNone     InviteState = 0
	InviteAwaiting InviteState = 1
	InviteCanceled InviteState = 2
	InviteRejected InviteState = 3
	InviteExpired  InviteState = 4
	InviteAccepted InviteState = 5
)

var inviteStateNames = []string{"None", "Awaiting", "Canceled", "Rejected", "Expired", "Accepted"}

func (s InviteState) String() string { return enumName(inviteStateNames, int(s)) }

// ParseInviteState accepts an option name or index.
func ParseInviteState(s string) (InviteState, error) {
	i, err := parseEnum("InviteState", inviteStateNames, s)
	return InviteState(i), err
}

// Color is a side on the board. None is used for "no promotion".
type Color int

const (
	ColorNone  Color = 0
	ColorWhite Color = 1
	ColorBlack Color = 2
)

var colorNames = []string{"None", "White", "Black"}

func (c Color) String() string { return enumName(colorNames, int(c)) }

// ParseColor accepts an option name or index.
func ParseColor(s string) (Color, error) {
	i, err := parseEnum("Color", colorNames, s)
	return Color(i), err
}

// PieceType is a chess piece kind as the contract numbers them.
type PieceType int

const (
	PieceNone   PieceType = 0
	PiecePawn   PieceType = 1
	PieceKnight PieceType = 2
	PieceBishop PieceType = 3
	PieceRook   PieceType = 4
	PieceQueen  PieceType = 5
	PieceKing   PieceType = 6
)

var pieceTypeNames = []string{"None", "Pawn", "Knight", "Bishop", "Rook", "Queen", "King"}

func (p PieceType) String() string { return enumName(pieceTypeNames, int(p)) }

// ParsePieceType accepts an option name or index.
func ParsePieceType(s string) (PieceType, error) {
	i, err := parseEnum("PieceType", pieceTypeNames, s)
	return PieceType(i), err
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("Unknown(%d)", i)
	}
	return names[i]
}

func parseEnum(kind string, names []string, s string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(names) {
		return i, nil
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

// decodeEnum reads an enum field stored either by option name or by index.
func decodeEnum(obj ir.IRObject, field, kind string, names []string) (int, error) {
	switch v := obj[field].(type) {
	case ir.IRString:
		return parseEnum(kind, names, string(v))
	case ir.IRInt:
		if v < 0 || int(v) >= len(names) {
			return 0, fmt.Errorf("%s: %s index %d out of range", field, kind, int64(v))
		}
		return int(v), nil
	case nil:
		return 0, fmt.Errorf("%s: missing", field)
	default:
		return 0, fmt.Errorf("%s: unexpected %T", field, v)
	}
}
