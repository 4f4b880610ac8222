package model

import "fmt"

// PromotionPiece is the piece a pawn turns into. {None, None} when the move
// is not a promotion.
type PromotionPiece struct {
	Color     Color
	PieceType PieceType
}

// NoPromotion is the promotion value sent for ordinary moves.
var NoPromotion = PromotionPiece{Color: ColorNone, PieceType: PieceNone}

// Move is a make_move payload. Files a..h map to x 0..7 and ranks 1..8 map
// to y 0..7.
type Move struct {
	FromX, FromY int
	ToX, ToY     int
	Promotion    PromotionPiece
}

// Validate checks board bounds and promotion shape.
func (m Move) Validate() error {
	for _, c := range []int{m.FromX, m.FromY, m.ToX, m.ToY} {
		if c < 0 || c > 7 {
			return fmt.Errorf("move %s: coordinate %d out of board", m, c)
		}
	}
	if m.FromX == m.ToX && m.FromY == m.ToY {
		return fmt.Errorf("move %s: source equals destination", m)
	}
	p := m.Promotion
	if (p.Color == ColorNone) != (p.PieceType == PieceNone) {
		return fmt.Errorf("move %s: promotion needs both color and piece", m)
	}
	if p.PieceType == PiecePawn || p.PieceType == PieceKing {
		return fmt.Errorf("move %s: cannot promote to %s", m, p.PieceType)
	}
	return nil
}

// String renders the move in coordinate notation, e.g. "e7e8=Queen".
func (m Move) String() string {
	s := square(m.FromX, m.FromY) + square(m.ToX, m.ToY)
	if m.Promotion.PieceType != PieceNone {
		s += "=" + m.Promotion.PieceType.String()
	}
	return s
}

func square(x, y int) string {
	if x < 0 || x > 7 || y < 0 || y > 7 {
		return "??"
	}
	return string(rune('a'+x)) + string(rune('1'+y))
}
