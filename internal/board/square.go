// Package board implements shogi board representation using bitboards.
package board

import "fmt"

// Square represents a square on the shogi board (0-80).
// Index = rank*9 + col, where rank 0 is rank "a" (White's back rank) and
// col 0 is file 9. So 9a=0, 1a=8, 9i=72, 1i=80.
type Square uint8

// NumSquares is the number of squares on the board.
const NumSquares = 81

// NoSquare marks an absent square (e.g. the origin of a drop).
const NoSquare Square = 81

// NewSquare creates a square from a column (0 = file 9) and rank (0 = rank a).
func NewSquare(col, rank int) Square {
	return Square(rank*9 + col)
}

// SquareAt creates a square from shogi coordinates: file 1-9, rank 1-9 (1 = a).
func SquareAt(file, rank int) Square {
	return NewSquare(9-file, rank-1)
}

// Col returns the board column (0-8, where 0 is file 9).
func (sq Square) Col() int {
	return int(sq) % 9
}

// Rank returns the rank index (0-8, where 0 is rank a).
func (sq Square) Rank() int {
	return int(sq) / 9
}

// File returns the shogi file number (1-9).
func (sq Square) File() int {
	return 9 - sq.Col()
}

// IsValid returns true if the square is on the board.
func (sq Square) IsValid() bool {
	return sq < NoSquare
}

// String returns USI notation for the square (e.g. "7g").
func (sq Square) String() string {
	if !sq.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%d%c", sq.File(), 'a'+sq.Rank())
}

// ParseSquare parses USI notation (e.g. "7g") into a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square: %q", s)
	}

	file := int(s[0] - '0')
	rank := int(s[1]-'a') + 1

	if file < 1 || file > 9 || rank < 1 || rank > 9 {
		return NoSquare, fmt.Errorf("invalid square: %q", s)
	}

	return SquareAt(file, rank), nil
}

// Mirror returns the square reflected across the horizontal mid-line
// (rank a <-> rank i, same file). This is the flip that maps one side's
// orientation onto the other's.
func (sq Square) Mirror() Square {
	return NewSquare(sq.Col(), 8-sq.Rank())
}

// RelativeRank returns the rank counted from c's far side: 0 is the last rank
// c can advance to, 8 is c's own back rank.
func (sq Square) RelativeRank(c Color) int {
	if c == Black {
		return sq.Rank()
	}
	return 8 - sq.Rank()
}

// InPromotionZone returns true if the square is in c's promotion zone
// (the three ranks farthest from c).
func (sq Square) InPromotionZone(c Color) bool {
	return sq.RelativeRank(c) < 3
}
