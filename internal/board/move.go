package board

import "fmt"

// Move encodes a shogi move in 20 bits:
// bits 0-6:   from square (0-80, unused for drops)
// bits 7-13:  to square (0-80)
// bit 14:     promotion flag
// bit 15:     drop flag
// bits 16-19: dropped piece type (Pawn..Rook)
type Move uint32

// Move flags
const (
	FlagPromotion Move = 1 << 14
	FlagDrop      Move = 1 << 15
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

// MaxMoves bounds the length of a move list. The known maximum is 593 legal
// moves; pseudo-legal lists hold more, so the bound leaves room for them.
const MaxMoves = 1024

// NewMove creates a board move.
func NewMove(from, to Square) Move {
	return Move(from) | Move(to)<<7
}

// NewPromotion creates a board move that promotes the moving piece.
func NewPromotion(from, to Square) Move {
	return Move(from) | Move(to)<<7 | FlagPromotion
}

// NewDrop creates a drop of a hand piece onto an empty square.
func NewDrop(pt PieceType, to Square) Move {
	return Move(to)<<7 | FlagDrop | Move(pt)<<16
}

// From returns the origin square, or NoSquare for drops.
func (m Move) From() Square {
	if m.IsDrop() {
		return NoSquare
	}
	return Square(m & 0x7F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 7) & 0x7F)
}

// IsPromotion returns true if the moving piece promotes.
func (m Move) IsPromotion() bool {
	return m&FlagPromotion != 0
}

// IsDrop returns true if this is a drop.
func (m Move) IsDrop() bool {
	return m&FlagDrop != 0
}

// DropPiece returns the dropped piece type (only valid if IsDrop() is true).
func (m Move) DropPiece() PieceType {
	return PieceType((m >> 16) & 0xF)
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture(pos *Position) bool {
	return !m.IsDrop() && !pos.IsEmpty(m.To())
}

// IsQuiet returns true if this is not a capture or promotion.
func (m Move) IsQuiet(pos *Position) bool {
	return !m.IsCapture(pos) && !m.IsPromotion()
}

// String returns the USI form of the move (e.g. "7g7f", "8h2b+", "P*5e").
func (m Move) String() string {
	if m == NoMove {
		return "none"
	}

	if m.IsDrop() {
		return m.DropPiece().SFEN() + "*" + m.To().String()
	}

	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += "+"
	}
	return s
}

// ParseMove parses a USI move string and resolves it against the legal
// moves of pos. Moves that are well-formed but illegal are rejected.
func ParseMove(s string, pos *Position) (Move, error) {
	m, err := parseMoveSyntax(s)
	if err != nil {
		return NoMove, err
	}

	legal := pos.GenerateLegalMoves()
	if !legal.Contains(m) {
		return NoMove, fmt.Errorf("%w: %s", ErrIllegalMove, s)
	}
	return m, nil
}

func parseMoveSyntax(s string) (Move, error) {
	if len(s) == 4 && s[1] == '*' {
		p := PieceFromChar(s[0])
		if p == NoPiece || p.Color() != Black || p.Type() == King {
			return NoMove, fmt.Errorf("%w: bad drop piece in %q", ErrInvalidMove, s)
		}
		to, err := ParseSquare(s[2:4])
		if err != nil {
			return NoMove, fmt.Errorf("%w: %v", ErrInvalidMove, err)
		}
		return NewDrop(p.Type(), to), nil
	}

	if len(s) != 4 && !(len(s) == 5 && s[4] == '+') {
		return NoMove, fmt.Errorf("%w: %q", ErrInvalidMove, s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	if len(s) == 5 {
		return NewPromotion(from, to), nil
	}
	return NewMove(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [MaxMoves]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo stores what MakeMove overwrote so UnmakeMove can restore it.
type UndoInfo struct {
	Captured    Piece
	Hash        uint64
	PawnKey     uint64
	Checkers    Bitboard
	KingSquare  [2]Square
	Hands       [2]Hand
	Pieces      [2][NumPieceTypes]Bitboard
	Occupied    [2]Bitboard
	AllOccupied Bitboard
	Board       [NumSquares]Piece
	MoveNumber  int
}
