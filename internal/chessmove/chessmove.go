// Package chessmove converts human move notation into make_move parameters.
package chessmove

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"

	"github.com/roach88/rlchess/internal/model"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Result is a decoded move.
type Result struct {
	Move model.Move
	// UCI is the move in long algebraic form ("e7e8q").
	UCI string
	// FEN is the position after the move. Empty when no position was given.
	FEN string
}

// Parse decodes text as UCI ("e2e4", "e7e8q") or, when fen is known, SAN
// ("Nf3", "exd8=Q+").
//
// With a position the move must be legal there, and a pawn reaching the
// last rank without an explicit piece promotes to a queen. Without a
// position only UCI is accepted and legality is left to the contract.
func Parse(text, fen string) (Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, fmt.Errorf("empty move")
	}

	if fen == "" {
		m, err := chess.UCINotation{}.Decode(nil, strings.ToLower(text))
		if err != nil {
			return Result{}, fmt.Errorf("parse move %q: not coordinate notation (give a position to use SAN)", text)
		}
		mv := convert(m, promotionColor(m, chess.NoColor))
		return Result{Move: mv, UCI: uci(m)}, nil
	}

	opt, err := chess.FEN(fen)
	if err != nil {
		return Result{}, fmt.Errorf("parse position: %w", err)
	}
	pos := chess.NewGame(opt).Position()

	m, err := decode(pos, text)
	if err != nil {
		return Result{}, err
	}

	legal := matchLegal(pos, m)
	if legal == nil {
		return Result{}, fmt.Errorf("illegal move %q in position %s", text, fen)
	}

	return Result{
		Move: convert(legal, pos.Turn()),
		UCI:  uci(legal),
		FEN:  pos.Update(legal).String(),
	}, nil
}

func decode(pos *chess.Position, text string) (*chess.Move, error) {
	if m, err := (chess.UCINotation{}).Decode(pos, strings.ToLower(text)); err == nil {
		return m, nil
	}
	if m, err := (chess.AlgebraicNotation{}).Decode(pos, text); err == nil {
		return m, nil
	}
	return nil, fmt.Errorf("parse move %q: neither UCI nor SAN", text)
}

// matchLegal finds m among the legal moves. A missing promotion piece
// selects the queen promotion.
func matchLegal(pos *chess.Position, m *chess.Move) *chess.Move {
	var fallback *chess.Move
	for _, v := range pos.ValidMoves() {
		if v.S1() != m.S1() || v.S2() != m.S2() {
			continue
		}
		if v.Promo() == m.Promo() {
			return v
		}
		if m.Promo() == chess.NoPieceType && v.Promo() == chess.Queen {
			fallback = v
		}
	}
	return fallback
}

func convert(m *chess.Move, mover chess.Color) model.Move {
	out := model.Move{
		FromX:     int(m.S1().File()),
		FromY:     int(m.S1().Rank()),
		ToX:       int(m.S2().File()),
		ToY:       int(m.S2().Rank()),
		Promotion: model.NoPromotion,
	}
	if p := pieceType(m.Promo()); p != model.PieceNone {
		out.Promotion = model.PromotionPiece{Color: color(mover), PieceType: p}
	}
	return out
}

// promotionColor infers the mover from the promotion rank when no position
// is known.
func promotionColor(m *chess.Move, known chess.Color) chess.Color {
	if known != chess.NoColor || m.Promo() == chess.NoPieceType {
		return known
	}
	if m.S2().Rank() == chess.Rank8 {
		return chess.White
	}
	return chess.Black
}

func color(c chess.Color) model.Color {
	switch c {
	case chess.White:
		return model.ColorWhite
	case chess.Black:
		return model.ColorBlack
	default:
		return model.ColorNone
	}
}

func pieceType(p chess.PieceType) model.PieceType {
	switch p {
	case chess.Queen:
		return model.PieceQueen
	case chess.Rook:
		return model.PieceRook
	case chess.Bishop:
		return model.PieceBishop
	case chess.Knight:
		return model.PieceKnight
	default:
		return model.PieceNone
	}
}

func uci(m *chess.Move) string {
	s := m.S1().String() + m.S2().String()
	switch m.Promo() {
	case chess.Queen:
		s += "q"
	case chess.Rook:
		s += "r"
	case chess.Bishop:
		s += "b"
	case chess.Knight:
		s += "n"
	}
	return s
}

// ToUCI renders make_move parameters as UCI text.
func ToUCI(m model.Move) string {
	sq := func(x, y int) string { return string(rune('a'+x)) + string(rune('1'+y)) }
	s := sq(m.FromX, m.FromY) + sq(m.ToX, m.ToY)
	switch m.Promotion.PieceType {
	case model.PieceQueen:
		s += "q"
	case model.PieceRook:
		s += "r"
	case model.PieceBishop:
		s += "b"
	case model.PieceKnight:
		s += "n"
	}
	return s
}
