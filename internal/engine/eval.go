// Package engine implements the shogi search engine.
package engine

import (
	"github.com/hailam/shogiplay/internal/board"
)

// MaxEvalScore bounds every static evaluation, far below the mate range.
const MaxEvalScore = 20000

// Tempo bonus - small advantage for having the move
const tempoBonus = 20

// King safety
var defenderWeight = [board.NumPieceTypes]int{
	board.Pawn: 4, board.Lance: 2, board.Knight: 4, board.Silver: 14, board.Gold: 18,
	board.Bishop: 6, board.Rook: 4, board.King: 0,
	board.ProPawn: 12, board.ProLance: 12, board.ProKnight: 12, board.ProSilver: 12,
	board.Horse: 16, board.Dragon: 10,
}

const (
	kingZoneAttackerPenalty = 18 // Per enemy piece within two squares of the king
	kingHandPressure        = 6  // Per enemy hand piece (excluding pawns) while the king is exposed
	kingOpenPenalty         = 25 // No defender next to the king at all
)

// Mobility weights per piece type (per reachable square)
var mobilityWeight = [board.NumPieceTypes]int{
	board.Pawn: 0, board.Lance: 2, board.Knight: 2, board.Silver: 2, board.Gold: 1,
	board.Bishop: 4, board.Rook: 3, board.King: 0,
	board.ProPawn: 1, board.ProLance: 1, board.ProKnight: 1, board.ProSilver: 1,
	board.Horse: 3, board.Dragon: 3,
}

const centerControlBonus = 2

// Pawn structure
const (
	pawnChainBonus      = 10
	isolatedPawnPenalty = -14
)

// Per relative rank (0 = promotion rank, 8 = own back rank)
var pawnAdvanceBonus = [9]int{0, 40, 24, 14, 8, 2, 0, 0, 0}

// Piece coordination
const (
	rookPairBonus   = 30 // Two rooks/dragons on an open shared rank or file
	bishopPairBonus = 20 // Two bishops/horses on an open shared diagonal
)

// kingZone holds every square within Chebyshev distance 2.
var kingZone = func() (zone [board.NumSquares]board.Bitboard) {
	for sq := board.Square(0); sq < board.NoSquare; sq++ {
		for t := board.Square(0); t < board.NoSquare; t++ {
			if chebyshevDistance(sq, t) <= 2 && t != sq {
				zone[sq] = zone[sq].Set(t)
			}
		}
	}
	return zone
}()

// Piece-square tables, Black's orientation: row 0 is rank a (the enemy camp).
// White looks its squares up through Square.Mirror.

var pawnPST = [board.NumSquares]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	10, 12, 14, 16, 16, 16, 14, 12, 10,
	8, 10, 12, 14, 14, 14, 12, 10, 8,
	4, 6, 8, 10, 12, 10, 8, 6, 4,
	2, 2, 4, 6, 8, 6, 4, 2, 2,
	0, 0, 2, 2, 4, 2, 2, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0,
}

var lancePST = [board.NumSquares]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	4, 0, 0, 0, 0, 0, 0, 0, 4,
	6, 2, 0, 0, 0, 0, 0, 2, 6,
	6, 2, 0, 0, 0, 0, 0, 2, 6,
	4, 0, 0, 0, 0, 0, 0, 0, 4,
	2, 0, 0, 0, 0, 0, 0, 0, 2,
	2, 0, 0, 0, 0, 0, 0, 0, 2,
	4, 0, 0, 0, 0, 0, 0, 0, 4,
	6, 0, 0, 0, 0, 0, 0, 0, 6,
}

var knightPST = [board.NumSquares]int{
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0,
	4, 10, 14, 16, 16, 16, 14, 10, 4,
	2, 8, 12, 14, 16, 14, 12, 8, 2,
	0, 4, 8, 10, 12, 10, 8, 4, 0,
	-4, 0, 4, 6, 8, 6, 4, 0, -4,
	-6, -2, 0, 2, 2, 2, 0, -2, -6,
	-8, -4, -2, 0, 0, 0, -2, -4, -8,
	-10, -4, -6, -6, -6, -6, -6, -4, -10,
}

var silverPST = [board.NumSquares]int{
	-4, 0, 2, 4, 4, 4, 2, 0, -4,
	0, 6, 8, 10, 10, 10, 8, 6, 0,
	2, 8, 12, 14, 14, 14, 12, 8, 2,
	2, 8, 12, 14, 16, 14, 12, 8, 2,
	0, 6, 10, 12, 14, 12, 10, 6, 0,
	0, 4, 8, 10, 12, 10, 8, 4, 0,
	-2, 2, 6, 8, 8, 8, 6, 2, -2,
	-4, 0, 4, 6, 6, 6, 4, 0, -4,
	-8, -4, -2, 0, 0, 0, -2, -4, -8,
}

var goldPST = [board.NumSquares]int{
	-2, 2, 4, 6, 6, 6, 4, 2, -2,
	2, 6, 8, 10, 10, 10, 8, 6, 2,
	2, 6, 10, 12, 12, 12, 10, 6, 2,
	0, 4, 8, 10, 10, 10, 8, 4, 0,
	-2, 2, 4, 6, 8, 6, 4, 2, -2,
	-4, 0, 2, 4, 4, 4, 2, 0, -4,
	-4, 0, 4, 6, 6, 6, 4, 0, -4,
	-6, 0, 6, 8, 8, 8, 6, 0, -6,
	-8, -4, 2, 4, 4, 4, 2, -4, -8,
}

var bishopPST = [board.NumSquares]int{
	4, 2, 2, 2, 2, 2, 2, 2, 4,
	2, 8, 6, 6, 6, 6, 6, 8, 2,
	2, 6, 10, 8, 8, 8, 10, 6, 2,
	2, 6, 8, 12, 10, 12, 8, 6, 2,
	2, 6, 8, 10, 14, 10, 8, 6, 2,
	2, 6, 8, 12, 10, 12, 8, 6, 2,
	2, 6, 10, 8, 8, 8, 10, 6, 2,
	2, 8, 6, 6, 6, 6, 6, 8, 2,
	4, 2, 2, 2, 2, 2, 2, 2, 4,
}

var rookPST = [board.NumSquares]int{
	12, 14, 14, 14, 14, 14, 14, 14, 12,
	14, 16, 16, 16, 16, 16, 16, 16, 14,
	10, 12, 12, 12, 12, 12, 12, 12, 10,
	2, 4, 4, 4, 4, 4, 4, 4, 2,
	0, 2, 2, 2, 2, 2, 2, 2, 0,
	0, 2, 2, 2, 2, 2, 2, 2, 0,
	0, 2, 2, 2, 2, 2, 2, 2, 0,
	0, 4, 2, 2, 2, 2, 2, 4, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// The king prefers a castle on either wing of its own camp.
var kingPST = [board.NumSquares]int{
	-60, -60, -60, -60, -60, -60, -60, -60, -60,
	-50, -50, -50, -50, -50, -50, -50, -50, -50,
	-40, -40, -40, -40, -40, -40, -40, -40, -40,
	-30, -30, -30, -30, -30, -30, -30, -30, -30,
	-20, -20, -20, -24, -24, -24, -20, -20, -20,
	-10, -10, -12, -16, -16, -16, -12, -10, -10,
	4, 6, 2, -6, -10, -6, 2, 6, 4,
	14, 20, 14, 0, -4, 0, 14, 20, 14,
	16, 16, 10, 4, 0, 4, 10, 16, 16,
}

var psts = [board.NumPieceTypes]*[board.NumSquares]int{
	board.Pawn:      &pawnPST,
	board.Lance:     &lancePST,
	board.Knight:    &knightPST,
	board.Silver:    &silverPST,
	board.Gold:      &goldPST,
	board.Bishop:    &bishopPST,
	board.Rook:      &rookPST,
	board.King:      &kingPST,
	board.ProPawn:   &goldPST,
	board.ProLance:  &goldPST,
	board.ProKnight: &goldPST,
	board.ProSilver: &goldPST,
	board.Horse:     &bishopPST,
	board.Dragon:    &rookPST,
}

// pstIndex maps a square to its PST slot for color c.
func pstIndex(c board.Color, sq board.Square) board.Square {
	if c == board.White {
		return sq.Mirror()
	}
	return sq
}

// Evaluate returns the static evaluation from the side to move's perspective.
func Evaluate(pos *board.Position) int {
	return EvaluateWithPawnTable(pos, nil)
}

// EvaluateWithPawnTable is like Evaluate but uses cached pawn structure.
// A nil table computes the pawn term directly.
func EvaluateWithPawnTable(pos *board.Position, pawnTable *PawnTable) int {
	// Accumulated from Black's point of view
	score := evaluateMaterialAndPST(pos)
	score += evaluateKingSafety(pos, board.Black) - evaluateKingSafety(pos, board.White)
	score += evaluateMobility(pos)
	score += evaluatePawnStructureWithCache(pos, pawnTable)
	score += evaluatePieceCoordination(pos)

	if pos.SideToMove == board.White {
		score = -score
	}
	score += tempoBonus

	return clampEval(score)
}

func clampEval(score int) int {
	if score > MaxEvalScore {
		return MaxEvalScore
	}
	if score < -MaxEvalScore {
		return -MaxEvalScore
	}
	return score
}

// EvaluateMaterial returns just the material balance (hands included) from
// the side to move's perspective.
func EvaluateMaterial(pos *board.Position) int {
	score := pos.Material()
	if pos.SideToMove == board.White {
		return -score
	}
	return score
}

func evaluateMaterialAndPST(pos *board.Position) int {
	score := 0
	for c := board.Black; c <= board.White; c++ {
		sign := 1
		if c == board.White {
			sign = -1
		}

		for pt := board.Pawn; pt < board.NoPieceType; pt++ {
			bb := pos.Pieces[c][pt]
			table := psts[pt]
			for bb.More() {
				sq := bb.PopLSB()
				if pt != board.King {
					score += sign * board.PieceValue[pt]
				}
				score += sign * table[pstIndex(c, sq)]
			}
		}

		for i, pt := range board.HandTypes {
			score += sign * pos.Hands[c].Count(pt) * board.HandValue[i]
		}
	}
	return score
}

// evaluateKingSafety scores c's king shelter: weighted adjacent defenders
// minus the enemy pieces crowding the surrounding two-square zone.
func evaluateKingSafety(pos *board.Position, c board.Color) int {
	if pos.Pieces[c][board.King].IsEmpty() {
		return 0
	}
	ksq := pos.KingSquare[c]
	them := c.Other()

	score := 0
	defenders := board.StepAttacks(c, board.King, ksq).And(pos.Occupied[c])
	if defenders.IsEmpty() {
		score -= kingOpenPenalty
	}
	for defenders.More() {
		sq := defenders.PopLSB()
		score += defenderWeight[pos.PieceAt(sq).Type()]
	}

	attackers := kingZone[ksq].And(pos.Occupied[them]).PopCount()
	score -= attackers * kingZoneAttackerPenalty

	// Pieces in hand can be dropped next to a thin shelter
	if attackers > 0 {
		inHand := pos.Hands[them].Total() - pos.Hands[them].Count(board.Pawn)
		score -= inHand * kingHandPressure * attackers
	}
	return score
}

// evaluateMobility counts pseudo-legal destination squares per board piece.
// Drops are not counted; every side can drop on any empty square.
func evaluateMobility(pos *board.Position) int {
	score := 0
	center := board.CenterZone()
	for c := board.Black; c <= board.White; c++ {
		sign := 1
		if c == board.White {
			sign = -1
		}
		own := pos.Occupied[c]
		for pt := board.Pawn; pt < board.NoPieceType; pt++ {
			w := mobilityWeight[pt]
			if w == 0 {
				continue
			}
			bb := pos.Pieces[c][pt]
			for bb.More() {
				sq := bb.PopLSB()
				targets := board.PieceAttacks(c, pt, sq, pos.AllOccupied).AndNot(own)
				score += sign * (targets.PopCount()*w + targets.And(center).PopCount()*centerControlBonus)
			}
		}
	}
	return score
}

// evaluatePawnStructure scores pawn chains, advancement and isolated pawns
// from Black's point of view.
func evaluatePawnStructure(pos *board.Position) int {
	score := 0
	for c := board.Black; c <= board.White; c++ {
		sign := 1
		if c == board.White {
			sign = -1
		}
		pawns := pos.Pieces[c][board.Pawn]
		all := pawns
		for pawns.More() {
			sq := pawns.PopLSB()
			col, rank := sq.Col(), sq.Rank()

			score += sign * pawnAdvanceBonus[sq.RelativeRank(c)]

			var neighbours board.Bitboard
			if col > 0 {
				neighbours = neighbours.Or(board.FileMask[col-1])
			}
			if col < 8 {
				neighbours = neighbours.Or(board.FileMask[col+1])
			}
			adjacent := all.And(neighbours)
			if adjacent.IsEmpty() {
				score += sign * isolatedPawnPenalty
				continue
			}
			for adjacent.More() {
				other := adjacent.PopLSB()
				if d := other.Rank() - rank; d >= -1 && d <= 1 {
					score += sign * pawnChainBonus
					break
				}
			}
		}
	}
	return score
}

func evaluatePawnStructureWithCache(pos *board.Position, pt *PawnTable) int {
	if pt == nil {
		return evaluatePawnStructure(pos)
	}
	if score, found := pt.Probe(pos.PawnKey); found {
		return score
	}
	score := evaluatePawnStructure(pos)
	pt.Store(pos.PawnKey, score)
	return score
}

// evaluatePieceCoordination rewards major pieces that see each other along
// an open line.
func evaluatePieceCoordination(pos *board.Position) int {
	score := 0
	for c := board.Black; c <= board.White; c++ {
		sign := 1
		if c == board.White {
			sign = -1
		}
		orth := pos.Pieces[c][board.Rook].Or(pos.Pieces[c][board.Dragon])
		if orth.PopCount() == 2 {
			a := orth.PopLSB()
			if board.RookAttacks(a, pos.AllOccupied).IsSet(orth.LSB()) {
				score += sign * rookPairBonus
			}
		}
		diag := pos.Pieces[c][board.Bishop].Or(pos.Pieces[c][board.Horse])
		if diag.PopCount() == 2 {
			a := diag.PopLSB()
			if board.BishopAttacks(a, pos.AllOccupied).IsSet(diag.LSB()) {
				score += sign * bishopPairBonus
			}
		}
	}
	return score
}

// chebyshevDistance returns the number of king steps between two squares.
func chebyshevDistance(sq1, sq2 board.Square) int {
	dc := sq1.Col() - sq2.Col()
	if dc < 0 {
		dc = -dc
	}
	dr := sq1.Rank() - sq2.Rank()
	if dr < 0 {
		dr = -dr
	}
	return max(dc, dr)
}

// seeOrder lists attacker types from least to most valuable.
var seeOrder = [...]board.PieceType{
	board.Pawn, board.Lance, board.Knight, board.ProPawn, board.ProLance,
	board.ProKnight, board.Silver, board.ProSilver, board.Gold,
	board.Bishop, board.Rook, board.Horse, board.Dragon, board.King,
}

// SEE (Static Exchange Evaluation) estimates the material outcome of the
// capture sequence started by m on its destination square, from the mover's
// perspective. Drops and quiet moves return 0.
func SEE(pos *board.Position, m board.Move) int {
	if m.IsDrop() {
		return 0
	}
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	victim := pos.PieceAt(to)
	if attacker == board.NoPiece || victim == board.NoPiece {
		return 0
	}

	gain := board.PieceValue[victim.Type()]
	attackerType := attacker.Type()
	if m.IsPromotion() {
		promoted := attackerType.Promoted()
		gain += board.PieceValue[promoted] - board.PieceValue[attackerType]
		attackerType = promoted
	}

	return seeSwap(pos, to, from, attacker.Color(), attackerType, gain)
}

// seeSwap performs the swap algorithm: alternate least-valuable recaptures on
// target, then negamax the gain list.
func seeSwap(pos *board.Position, target, excludeFrom board.Square, side board.Color, attackerType board.PieceType, initialGain int) int {
	var gain [40]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied.Clear(excludeFrom)
	attackerValue := board.PieceValue[attackerType]
	side = side.Other()

	for d < len(gain)-1 {
		d++
		gain[d] = attackerValue - gain[d-1]

		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		sq, pt := leastValuableAttacker(pos, target, side, occupied)
		if sq == board.NoSquare {
			break
		}
		occupied = occupied.Clear(sq)
		attackerValue = board.PieceValue[pt]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}
	return gain[0]
}

// leastValuableAttacker finds side's cheapest piece attacking target.
// Sliders behind removed pieces are found through the updated occupancy.
func leastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.PieceType) {
	attackers := pos.AttackersByColor(target, side, occupied).And(occupied)
	if attackers.IsEmpty() {
		return board.NoSquare, board.NoPieceType
	}
	for _, pt := range seeOrder {
		if bb := attackers.And(pos.Pieces[side][pt]); bb.More() {
			return bb.LSB(), pt
		}
	}
	return board.NoSquare, board.NoPieceType
}
