package engine

import (
	"github.com/hailam/shogiplay/internal/board"
)

// Move ordering priorities
const (
	TTMoveScore     = 10000000 // TT move gets highest priority
	GoodCaptureBase = 1000000  // Base score for captures that do not lose material
	PromotionBase   = 950000   // Quiet promotions
	KillerScore1    = 900000   // First killer move
	KillerScore2    = 800000   // Second killer move
	CounterScore    = 790000   // Reply to the opponent's last move
	BadCaptureBase  = -100000  // Losing captures
)

const historyMax = 400000

// historySlots covers board moves (from square) plus one row per drop type.
const historySlots = board.NumSquares + board.NumHandTypes

// mvvLva scores a capture: most valuable victim first, then least valuable attacker.
func mvvLva(victim, attacker board.PieceType) int {
	return board.PieceValue[victim]*10 - board.PieceValue[attacker]/10
}

// MoveOrderer holds the killer, history and counter-move tables of one search.
type MoveOrderer struct {
	// Killer moves (quiet moves that caused beta cutoffs)
	killers [MaxPly][2]board.Move

	// History heuristic, [from or drop row][to]
	history [historySlots][board.NumSquares]int

	// Counter move heuristic, [piece that moved][its destination]
	counterMoves [board.NoPiece][board.NumSquares]board.Move
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// Clear resets every table for a new search.
func (mo *MoveOrderer) Clear() {
	mo.killers = [MaxPly][2]board.Move{}
	mo.history = [historySlots][board.NumSquares]int{}
	mo.counterMoves = [board.NoPiece][board.NumSquares]board.Move{}
}

// historyRow returns the history row of a move; drops use one row per type.
func historyRow(m board.Move) int {
	if m.IsDrop() {
		return board.NumSquares + int(m.DropPiece())
	}
	return int(m.From())
}

// ScoreMoves assigns ordering scores; prevMove selects the counter-move.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove, prevMove board.Move) []int {
	scores := make([]int, moves.Len())
	counter := mo.GetCounterMove(prevMove, pos)

	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		scores[i] = mo.scoreMove(pos, move, ply, ttMove)
		if move == counter && scores[i] < CounterScore {
			scores[i] = CounterScore
		}
	}

	return scores
}

// scoreMove returns the ordering score for a single move.
func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	if m.IsCapture(pos) {
		attacker := pos.PieceAt(m.From()).Type()
		victim := pos.PieceAt(m.To()).Type()
		score := mvvLva(victim, attacker)
		if m.IsPromotion() {
			score += board.PieceValue[attacker.Promoted()] - board.PieceValue[attacker]
		}
		// Only pay for an exchange estimate when the attacker is worth more
		if board.PieceValue[attacker] > board.PieceValue[victim] && SEE(pos, m) < 0 {
			return BadCaptureBase + score
		}
		return GoodCaptureBase + score
	}

	if m.IsPromotion() {
		pt := pos.PieceAt(m.From()).Type()
		return PromotionBase + board.PieceValue[pt.Promoted()] - board.PieceValue[pt]
	}

	if ply < MaxPly {
		if m == mo.killers[ply][0] {
			return KillerScore1
		}
		if m == mo.killers[ply][1] {
			return KillerScore2
		}
	}

	return mo.history[historyRow(m)][m.To()]
}

// SortMoves sorts moves by their scores (descending).
func SortMoves(moves *board.MoveList, scores []int) {
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		PickMove(moves, scores, i)
	}
}

// PickMove selects the best remaining move and moves it to position index.
// This allows lazy move sorting (only sort as much as needed). Ties keep
// generation order, so ordering is deterministic.
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// UpdateKillers adds a killer move at the given ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly {
		return
	}
	if mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// Killers returns the two killer moves stored for ply.
func (mo *MoveOrderer) Killers(ply int) [2]board.Move {
	if ply >= MaxPly {
		return [2]board.Move{}
	}
	return mo.killers[ply]
}

// UpdateHistory updates the history score for a quiet move.
func (mo *MoveOrderer) UpdateHistory(m board.Move, depth int, isGood bool) {
	row, to := historyRow(m), m.To()

	bonus := depth * depth
	if isGood {
		mo.history[row][to] += bonus
		if mo.history[row][to] > historyMax {
			mo.ageHistory()
		}
	} else {
		mo.history[row][to] -= bonus
		if mo.history[row][to] < -historyMax {
			mo.history[row][to] = -historyMax
		}
	}
}

func (mo *MoveOrderer) ageHistory() {
	for i := range mo.history {
		for j := range mo.history[i] {
			mo.history[i][j] /= 2
		}
	}
}

// GetHistoryScore returns the history score for a move.
func (mo *MoveOrderer) GetHistoryScore(m board.Move) int {
	return mo.history[historyRow(m)][m.To()]
}

// UpdateCounterMove records counterMove as the refutation of prevMove.
// pos is the position after prevMove was played.
func (mo *MoveOrderer) UpdateCounterMove(prevMove, counterMove board.Move, pos *board.Position) {
	if prevMove == board.NoMove {
		return
	}
	piece := pos.PieceAt(prevMove.To())
	if piece == board.NoPiece {
		return
	}
	mo.counterMoves[piece][prevMove.To()] = counterMove
}

// GetCounterMove returns the counter move for a previous move.
func (mo *MoveOrderer) GetCounterMove(prevMove board.Move, pos *board.Position) board.Move {
	if prevMove == board.NoMove {
		return board.NoMove
	}
	piece := pos.PieceAt(prevMove.To())
	if piece == board.NoPiece {
		return board.NoMove
	}
	return mo.counterMoves[piece][prevMove.To()]
}
