package board

import (
	"math/bits"
	"strings"
)

// Bitboard represents an 81-bit set of squares.
// Squares 0-63 live in Lo, squares 64-80 in the low 17 bits of Hi.
type Bitboard struct {
	Lo uint64
	Hi uint64
}

const hiMask uint64 = (1 << (NumSquares - 64)) - 1

// Special masks
var (
	Empty    = Bitboard{}
	Universe = Bitboard{Lo: ^uint64(0), Hi: hiMask}
)

// Lookup masks. These are package-level initializers (not init funcs) so
// they are ready before any init() that builds attack tables.
var (
	squareBB = buildSquareBB()

	// FileMask holds one mask per column (0 = file 9).
	// RankMask holds one mask per rank (0 = rank a).
	FileMask, RankMask = buildLineMasks()

	// promotionZone[c] is the three far ranks for color c.
	// lastRanks[c][n] is the n far ranks for color c (n = 1..2).
	promotionZone, lastRanks = buildZones()

	// centerZone covers files 3-7, ranks c-g.
	centerZone = buildCenterZone()
)

func buildSquareBB() [NumSquares]Bitboard {
	var t [NumSquares]Bitboard
	for sq := Square(0); sq < NoSquare; sq++ {
		if sq < 64 {
			t[sq] = Bitboard{Lo: 1 << sq}
		} else {
			t[sq] = Bitboard{Hi: 1 << (sq - 64)}
		}
	}
	return t
}

func buildLineMasks() (files, ranks [9]Bitboard) {
	for sq := Square(0); sq < NoSquare; sq++ {
		files[sq.Col()] = files[sq.Col()].Or(squareBB[sq])
		ranks[sq.Rank()] = ranks[sq.Rank()].Or(squareBB[sq])
	}
	return files, ranks
}

func buildZones() (zone [2]Bitboard, last [2][3]Bitboard) {
	for sq := Square(0); sq < NoSquare; sq++ {
		for c := Black; c <= White; c++ {
			rr := sq.RelativeRank(c)
			if rr < 3 {
				zone[c] = zone[c].Or(squareBB[sq])
			}
			for n := 1; n < 3; n++ {
				if rr < n {
					last[c][n] = last[c][n].Or(squareBB[sq])
				}
			}
		}
	}
	return zone, last
}

func buildCenterZone() Bitboard {
	var bb Bitboard
	for sq := Square(0); sq < NoSquare; sq++ {
		if sq.Col() >= 2 && sq.Col() <= 6 && sq.Rank() >= 2 && sq.Rank() <= 6 {
			bb = bb.Or(squareBB[sq])
		}
	}
	return bb
}

// SquareBB returns a bitboard with only the given square set.
func SquareBB(sq Square) Bitboard {
	return squareBB[sq]
}

// PromotionZone returns the promotion zone for color c.
func PromotionZone(c Color) Bitboard {
	return promotionZone[c]
}

// LastRanks returns the n ranks farthest from color c (n = 1 or 2).
func LastRanks(c Color, n int) Bitboard {
	return lastRanks[c][n]
}

// CenterZone returns the central 5x5 region of the board.
func CenterZone() Bitboard {
	return centerZone
}

// And returns the intersection of two bitboards.
func (b Bitboard) And(o Bitboard) Bitboard {
	return Bitboard{b.Lo & o.Lo, b.Hi & o.Hi}
}

// Or returns the union of two bitboards.
func (b Bitboard) Or(o Bitboard) Bitboard {
	return Bitboard{b.Lo | o.Lo, b.Hi | o.Hi}
}

// Xor returns the symmetric difference of two bitboards.
func (b Bitboard) Xor(o Bitboard) Bitboard {
	return Bitboard{b.Lo ^ o.Lo, b.Hi ^ o.Hi}
}

// AndNot returns the squares of b that are not in o.
func (b Bitboard) AndNot(o Bitboard) Bitboard {
	return Bitboard{b.Lo &^ o.Lo, b.Hi &^ o.Hi}
}

// Not returns the complement of b restricted to the 81 board squares.
func (b Bitboard) Not() Bitboard {
	return Bitboard{^b.Lo, ^b.Hi & hiMask}
}

// Set returns b with the given square set.
func (b Bitboard) Set(sq Square) Bitboard {
	return b.Or(squareBB[sq])
}

// Clear returns b with the given square cleared.
func (b Bitboard) Clear(sq Square) Bitboard {
	return b.AndNot(squareBB[sq])
}

// IsSet returns true if the bit at the given square is set.
func (b Bitboard) IsSet(sq Square) bool {
	if sq < 64 {
		return b.Lo&(1<<sq) != 0
	}
	return b.Hi&(1<<(sq-64)) != 0
}

// Intersects returns true if b and o share any square.
func (b Bitboard) Intersects(o Bitboard) bool {
	return b.Lo&o.Lo != 0 || b.Hi&o.Hi != 0
}

// PopCount returns the number of set bits.
func (b Bitboard) PopCount() int {
	return bits.OnesCount64(b.Lo) + bits.OnesCount64(b.Hi)
}

// IsEmpty returns true if no bits are set.
func (b Bitboard) IsEmpty() bool {
	return b.Lo == 0 && b.Hi == 0
}

// More returns true if there are any bits set.
func (b Bitboard) More() bool {
	return !b.IsEmpty()
}

// LSB returns the lowest set square, or NoSquare if empty.
func (b Bitboard) LSB() Square {
	if b.Lo != 0 {
		return Square(bits.TrailingZeros64(b.Lo))
	}
	if b.Hi != 0 {
		return Square(64 + bits.TrailingZeros64(b.Hi))
	}
	return NoSquare
}

// PopLSB removes and returns the lowest set square.
func (b *Bitboard) PopLSB() Square {
	if b.Lo != 0 {
		sq := Square(bits.TrailingZeros64(b.Lo))
		b.Lo &= b.Lo - 1
		return sq
	}
	sq := Square(64 + bits.TrailingZeros64(b.Hi))
	b.Hi &= b.Hi - 1
	return sq
}

// ForEach calls the function for each set square.
func (b Bitboard) ForEach(f func(Square)) {
	for b.More() {
		f(b.PopLSB())
	}
}

// Squares returns a slice of all squares that are set.
func (b Bitboard) Squares() []Square {
	squares := make([]Square, 0, b.PopCount())
	for b.More() {
		squares = append(squares, b.PopLSB())
	}
	return squares
}

// String returns a visual representation of the bitboard, rank a on top.
func (b Bitboard) String() string {
	var sb strings.Builder
	sb.WriteString("  9 8 7 6 5 4 3 2 1\n")
	for rank := 0; rank < 9; rank++ {
		sb.WriteByte(byte('a' + rank))
		sb.WriteByte(' ')
		for col := 0; col < 9; col++ {
			if b.IsSet(NewSquare(col, rank)) {
				sb.WriteString("1 ")
			} else {
				sb.WriteString(". ")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
