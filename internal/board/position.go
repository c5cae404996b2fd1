package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	// ErrInvalidSFEN is returned for malformed or impossible SFEN strings.
	ErrInvalidSFEN = errors.New("invalid sfen")
	// ErrIllegalMove is returned when a move is not legal in the position.
	ErrIllegalMove = errors.New("illegal move")
	// ErrInvalidMove is returned for move tokens that cannot be parsed.
	ErrInvalidMove = errors.New("invalid move")
	// ErrInvalidPosition is returned by Validate.
	ErrInvalidPosition = errors.New("invalid position")
)

// DebugMoveValidation makes MakeMove and UnmakeMove check their invariants
// and panic on the first violation. Tests switch it on.
var DebugMoveValidation = false

// StateInfo records one ply of game history.
type StateInfo struct {
	Hash      uint64 // hash of the position reached by Move
	Move      Move
	Captured  Piece
	GaveCheck bool // Move left the opponent in check
	Null      bool // a null move; repetition scans stop here
}

// Position represents a complete shogi position.
type Position struct {
	// Piece bitboards: [Color][PieceType]
	Pieces [2][NumPieceTypes]Bitboard

	// Occupancy bitboards (cached for efficiency)
	Occupied    [2]Bitboard // All pieces of each color
	AllOccupied Bitboard    // All pieces on the board

	// Mailbox for O(1) PieceAt
	board [NumSquares]Piece

	// Pieces in hand per color
	Hands [2]Hand

	// Game state
	SideToMove Color
	MoveNumber int // SFEN move count, starts at 1 and counts plies

	// Zobrist hash for transposition table and repetition
	Hash uint64

	// Pawn hash key for pawn structure caching
	PawnKey uint64

	// King positions (cached for check detection)
	KingSquare [2]Square

	// Checkers bitboard (pieces giving check to the side to move)
	Checkers Bitboard

	// history[0] is the root position; one entry is appended per ply.
	history []StateInfo
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, err := ParseSFEN(StartSFEN)
	if err != nil {
		panic(err)
	}
	return pos
}

// Copy creates a deep copy of the position, history included.
func (p *Position) Copy() *Position {
	newPos := *p
	newPos.history = make([]StateInfo, len(p.history), len(p.history)+64)
	copy(newPos.history, p.history)
	return &newPos
}

// PieceAt returns the piece at the given square, or NoPiece if empty.
func (p *Position) PieceAt(sq Square) Piece {
	return p.board[sq]
}

// IsEmpty returns true if the square is empty.
func (p *Position) IsEmpty(sq Square) bool {
	return p.board[sq] == NoPiece
}

// History returns the recorded plies, oldest first. The slice must not be modified.
func (p *Position) History() []StateInfo {
	return p.history
}

// Ply returns the number of plies played since the position was set up.
func (p *Position) Ply() int {
	return len(p.history) - 1
}

// LastMove returns the most recent move, or NoMove.
func (p *Position) LastMove() Move {
	if len(p.history) < 2 {
		return NoMove
	}
	return p.history[len(p.history)-1].Move
}

// setPiece places a piece on a square (does not update hash).
func (p *Position) setPiece(piece Piece, sq Square) {
	if piece == NoPiece {
		return
	}
	c := piece.Color()
	pt := piece.Type()

	p.Pieces[c][pt] = p.Pieces[c][pt].Set(sq)
	p.Occupied[c] = p.Occupied[c].Set(sq)
	p.AllOccupied = p.AllOccupied.Set(sq)
	p.board[sq] = piece

	if pt == King {
		p.KingSquare[c] = sq
	}
}

// removePiece removes a piece from a square (does not update hash).
func (p *Position) removePiece(sq Square) Piece {
	piece := p.board[sq]
	if piece == NoPiece {
		return NoPiece
	}

	c := piece.Color()
	pt := piece.Type()

	p.Pieces[c][pt] = p.Pieces[c][pt].Clear(sq)
	p.Occupied[c] = p.Occupied[c].Clear(sq)
	p.AllOccupied = p.AllOccupied.Clear(sq)
	p.board[sq] = NoPiece

	return piece
}

// Clear resets the position to an empty board.
func (p *Position) Clear() {
	*p = Position{MoveNumber: 1}
	for sq := range p.board {
		p.board[sq] = NoPiece
	}
	p.KingSquare[Black] = NoSquare
	p.KingSquare[White] = NoSquare
}

// resetHistory starts a fresh history rooted at the current position.
func (p *Position) resetHistory() {
	p.history = make([]StateInfo, 1, 256)
	p.history[0] = StateInfo{Hash: p.Hash, Captured: NoPiece, GaveCheck: p.Checkers.More()}
}

// InCheck returns true if the side to move is in check.
func (p *Position) InCheck() bool {
	return p.Checkers.More()
}

// MakeMove applies a pseudo-legal move and returns undo information.
// Legality (self-check) is the caller's responsibility; use Play for
// validated input.
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		Captured:    NoPiece,
		Hash:        p.Hash,
		PawnKey:     p.PawnKey,
		Checkers:    p.Checkers,
		KingSquare:  p.KingSquare,
		Hands:       p.Hands,
		Pieces:      p.Pieces,
		Occupied:    p.Occupied,
		AllOccupied: p.AllOccupied,
		Board:       p.board,
		MoveNumber:  p.MoveNumber,
	}

	us := p.SideToMove
	them := us.Other()
	to := m.To()

	if m.IsDrop() {
		pt := m.DropPiece()
		n := int(p.Hands[us][pt])
		p.Hands[us][pt]--
		p.Hash ^= zobristHand[us][pt][n] ^ zobristHand[us][pt][n-1]

		p.setPiece(NewPiece(pt, us), to)
		p.Hash ^= zobristPiece[us][pt][to]
		if pt == Pawn {
			p.PawnKey ^= zobristPiece[us][Pawn][to]
		}
	} else {
		from := m.From()
		piece := p.removePiece(from)
		pt := piece.Type()

		if captured := p.removePiece(to); captured != NoPiece {
			undo.Captured = captured
			cpt := captured.Type()
			p.Hash ^= zobristPiece[them][cpt][to]
			if cpt == Pawn {
				p.PawnKey ^= zobristPiece[them][Pawn][to]
			}

			// Captured pieces change sides and revert to their base form
			base := cpt.Unpromoted()
			n := int(p.Hands[us][base])
			p.Hands[us][base]++
			p.Hash ^= zobristHand[us][base][n] ^ zobristHand[us][base][n+1]
		}

		newPt := pt
		if m.IsPromotion() {
			newPt = pt.Promoted()
		}
		p.setPiece(NewPiece(newPt, us), to)
		p.Hash ^= zobristPiece[us][pt][from] ^ zobristPiece[us][newPt][to]

		if pt == Pawn {
			p.PawnKey ^= zobristPiece[us][Pawn][from]
		}
		if newPt == Pawn {
			p.PawnKey ^= zobristPiece[us][Pawn][to]
		}
	}

	p.SideToMove = them
	p.Hash ^= zobristSideToMove
	p.MoveNumber++

	p.UpdateCheckers()

	p.history = append(p.history, StateInfo{
		Hash:      p.Hash,
		Move:      m,
		Captured:  undo.Captured,
		GaveCheck: p.Checkers.More(),
	})

	if DebugMoveValidation {
		p.assertConsistent("MakeMove", m)
	}

	return undo
}

// UnmakeMove undoes a move using the stored undo information.
// Uses full position restoration rather than reversing each step.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.Checkers = undo.Checkers
	p.KingSquare = undo.KingSquare
	p.Hands = undo.Hands
	p.Pieces = undo.Pieces
	p.Occupied = undo.Occupied
	p.AllOccupied = undo.AllOccupied
	p.board = undo.Board
	p.MoveNumber = undo.MoveNumber
	p.SideToMove = p.SideToMove.Other()
	p.history = p.history[:len(p.history)-1]

	if DebugMoveValidation {
		p.assertConsistent("UnmakeMove", m)
	}
}

// Play validates m against the legal move list and applies it. An illegal
// move returns ErrIllegalMove and leaves the position unchanged.
func (p *Position) Play(m Move) error {
	if !p.GenerateLegalMoves().Contains(m) {
		return fmt.Errorf("%w: %s", ErrIllegalMove, m)
	}
	p.MakeMove(m)
	return nil
}

// NullMoveUndo stores state for unmake of null move.
// Returned by MakeNullMove and passed to UnmakeNullMove.
type NullMoveUndo struct {
	Hash     uint64
	Checkers Bitboard
}

// MakeNullMove passes the turn without moving. Used for null move pruning.
// The history entry it records ends any repetition scan.
func (p *Position) MakeNullMove() NullMoveUndo {
	undo := NullMoveUndo{
		Hash:     p.Hash,
		Checkers: p.Checkers,
	}

	p.SideToMove = p.SideToMove.Other()
	p.Hash ^= zobristSideToMove
	p.UpdateCheckers()

	p.history = append(p.history, StateInfo{Hash: p.Hash, Captured: NoPiece, Null: true})

	return undo
}

// UnmakeNullMove undoes a null move.
func (p *Position) UnmakeNullMove(undo NullMoveUndo) {
	p.Hash = undo.Hash
	p.Checkers = undo.Checkers
	p.SideToMove = p.SideToMove.Other()
	p.history = p.history[:len(p.history)-1]
}

// assertConsistent panics if incremental state drifted from a full recompute.
func (p *Position) assertConsistent(where string, m Move) {
	fail := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Error().Str("where", where).Str("move", m.String()).Str("sfen", p.SFEN()).Msg(msg)
		panic(fmt.Sprintf("%s %s: %s", where, m, msg))
	}

	for c := Black; c <= White; c++ {
		if n := p.Pieces[c][King].PopCount(); n != 1 {
			fail("%v has %d kings", c, n)
		}
		for pt := 0; pt < NumHandTypes; pt++ {
			if int(p.Hands[c][pt]) > MaxHandCount[pt] {
				fail("%v hand holds %d of %v", c, p.Hands[c][pt], PieceType(pt))
			}
		}
	}
	if h := ComputeHash(p); h != p.Hash {
		fail("hash %016x, recomputed %016x", p.Hash, h)
	}
	if k := ComputePawnKey(p); k != p.PawnKey {
		fail("pawn key %016x, recomputed %016x", p.PawnKey, k)
	}
	if last := p.history[len(p.history)-1]; last.Hash != p.Hash {
		fail("history tail %016x, position %016x", last.Hash, p.Hash)
	}
}

// Validate checks that the position could arise in a game.
func (p *Position) Validate() error {
	for c := Black; c <= White; c++ {
		if n := p.Pieces[c][King].PopCount(); n != 1 {
			return fmt.Errorf("%w: %v must have exactly one king, has %d", ErrInvalidPosition, c, n)
		}

		// Unpromoted pieces that could never move again
		if p.Pieces[c][Pawn].Or(p.Pieces[c][Lance]).Intersects(LastRanks(c, 1)) {
			return fmt.Errorf("%w: %v pawn or lance on last rank", ErrInvalidPosition, c)
		}
		if p.Pieces[c][Knight].Intersects(LastRanks(c, 2)) {
			return fmt.Errorf("%w: %v knight on last two ranks", ErrInvalidPosition, c)
		}
	}

	// Board plus hands may not exceed the standard set
	for i, base := range HandTypes {
		total := int(p.Hands[Black][i]) + int(p.Hands[White][i])
		for c := Black; c <= White; c++ {
			total += p.Pieces[c][base].PopCount()
			if promoted := base.Promoted(); promoted != base {
				total += p.Pieces[c][promoted].PopCount()
			}
		}
		if total > MaxHandCount[i] {
			return fmt.Errorf("%w: %d %v exceeds %d", ErrInvalidPosition, total, base, MaxHandCount[i])
		}
	}

	them := p.SideToMove.Other()
	if p.IsSquareAttacked(p.KingSquare[them], p.SideToMove) {
		return fmt.Errorf("%w: %v king is in check with %v to move", ErrInvalidPosition, them, p.SideToMove)
	}

	return nil
}

// Material returns the material balance (positive favors Black), hands included.
func (p *Position) Material() int {
	score := 0
	for pt := Pawn; pt < NoPieceType; pt++ {
		if pt == King {
			continue
		}
		score += p.Pieces[Black][pt].PopCount() * PieceValue[pt]
		score -= p.Pieces[White][pt].PopCount() * PieceValue[pt]
	}
	for i := range HandTypes {
		score += int(p.Hands[Black][i]) * HandValue[i]
		score -= int(p.Hands[White][i]) * HandValue[i]
	}
	return score
}

// HasNonPawnMaterial returns true if the side to move has anything besides
// king and pawns, on the board or in hand.
func (p *Position) HasNonPawnMaterial() bool {
	us := p.SideToMove
	others := p.Occupied[us].AndNot(p.Pieces[us][King]).AndNot(p.Pieces[us][Pawn])
	if others.More() {
		return true
	}
	for i := Lance; i <= Rook; i++ {
		if p.Hands[us][i] > 0 {
			return true
		}
	}
	return false
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	var sb strings.Builder
	sb.WriteString("\n   9  8  7  6  5  4  3  2  1\n")
	for rank := 0; rank < 9; rank++ {
		sb.WriteString(fmt.Sprintf("%c ", 'a'+rank))
		for col := 0; col < 9; col++ {
			piece := p.PieceAt(NewSquare(col, rank))
			if piece == NoPiece {
				sb.WriteString("  .")
			} else {
				sb.WriteString(fmt.Sprintf("%3s", piece))
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(fmt.Sprintf("\nBlack hand: %s\n", handString(&p.Hands[Black], Black)))
	sb.WriteString(fmt.Sprintf("White hand: %s\n", handString(&p.Hands[White], White)))
	sb.WriteString(fmt.Sprintf("Side to move: %s\n", p.SideToMove))
	sb.WriteString(fmt.Sprintf("Move: %d\n", p.MoveNumber))
	sb.WriteString(fmt.Sprintf("SFEN: %s\n", p.SFEN()))
	sb.WriteString(fmt.Sprintf("Hash: %016x\n", p.Hash))
	return sb.String()
}

func handString(h *Hand, c Color) string {
	if h.IsEmpty() {
		return "-"
	}
	var parts []string
	for i := NumHandTypes - 1; i >= 0; i-- {
		if h[i] > 0 {
			parts = append(parts, fmt.Sprintf("%s%d", NewPiece(PieceType(i), c), h[i]))
		}
	}
	return strings.Join(parts, " ")
}
