package board

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// GenerateLegalMoves generates all legal moves for the position.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
// Drop restrictions, uchifu-zume included, are already applied.
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// GenerateCaptures generates legal captures and promotions. Non-capturing
// moves are only included in their promoting form.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generateCaptures(ml)
	return p.filterLegalMoves(ml)
}

// GenerateEvasions generates the legal replies to a check. Outside of
// check it is the same as GenerateLegalMoves.
func (p *Position) GenerateEvasions() *MoveList {
	ml := NewMoveList()
	us := p.SideToMove
	if p.Checkers.PopCount() > 1 {
		// Double check: only the king can move
		p.generatePieceMoves(ml, us, King, p.Occupied[us].Not())
	} else {
		p.generateAllMoves(ml)
	}
	return p.filterLegalMoves(ml)
}

// generateAllMoves generates all pseudo-legal board moves and drops.
func (p *Position) generateAllMoves(ml *MoveList) {
	us := p.SideToMove
	targets := p.Occupied[us].Not()
	for pt := Pawn; pt < NoPieceType; pt++ {
		p.generatePieceMoves(ml, us, pt, targets)
	}
	p.generateDrops(ml, p.AllOccupied.Not())
}

// generatePieceMoves adds board moves of every piece of type pt to targets.
func (p *Position) generatePieceMoves(ml *MoveList, us Color, pt PieceType, targets Bitboard) {
	pieces := p.Pieces[us][pt]
	for pieces.More() {
		from := pieces.PopLSB()
		attacks := PieceAttacks(us, pt, from, p.AllOccupied).And(targets)
		for attacks.More() {
			addBoardMove(ml, us, pt, from, attacks.PopLSB())
		}
	}
}

// addBoardMove adds the promoting and non-promoting variants of a board
// move, omitting the non-promoting one where it would strand the piece.
func addBoardMove(ml *MoveList, us Color, pt PieceType, from, to Square) {
	if pt.CanPromote() && (from.InPromotionZone(us) || to.InPromotionZone(us)) {
		ml.Add(NewPromotion(from, to))
	}
	if !MustPromote(us, pt, to) {
		ml.Add(NewMove(from, to))
	}
}

// MustPromote returns true if an unpromoted pt of color us arriving on to
// would have no legal move afterwards.
func MustPromote(us Color, pt PieceType, to Square) bool {
	switch pt {
	case Pawn, Lance:
		return to.RelativeRank(us) == 0
	case Knight:
		return to.RelativeRank(us) <= 1
	}
	return false
}

// generateCaptures generates captures plus quiet promotions.
func (p *Position) generateCaptures(ml *MoveList) {
	us := p.SideToMove
	enemies := p.Occupied[us.Other()]
	empty := p.AllOccupied.Not()
	zone := PromotionZone(us)

	for pt := Pawn; pt < NoPieceType; pt++ {
		pieces := p.Pieces[us][pt]
		for pieces.More() {
			from := pieces.PopLSB()
			attacks := PieceAttacks(us, pt, from, p.AllOccupied)

			captures := attacks.And(enemies)
			for captures.More() {
				addBoardMove(ml, us, pt, from, captures.PopLSB())
			}

			if !pt.CanPromote() {
				continue
			}
			quiet := attacks.And(empty)
			if !from.InPromotionZone(us) {
				quiet = quiet.And(zone)
			}
			for quiet.More() {
				ml.Add(NewPromotion(from, quiet.PopLSB()))
			}
		}
	}
}

// generateDrops adds every legal-by-rule drop onto targets, which must be empty squares.
func (p *Position) generateDrops(ml *MoveList, targets Bitboard) {
	us := p.SideToMove
	hand := &p.Hands[us]
	if hand.IsEmpty() {
		return
	}

	for _, pt := range HandTypes {
		if !hand.Has(pt) {
			continue
		}

		allowed := targets
		switch pt {
		case Pawn:
			allowed = allowed.AndNot(LastRanks(us, 1)).AndNot(p.pawnFiles(us))
		case Lance:
			allowed = allowed.AndNot(LastRanks(us, 1))
		case Knight:
			allowed = allowed.AndNot(LastRanks(us, 2))
		}

		if pt == Pawn {
			// The only square from which a pawn drop checks is directly in
			// front of the enemy king.
			them := us.Other()
			if p.Pieces[them][King].More() {
				checkSq := StepAttacks(them, Pawn, p.KingSquare[them])
				if checkSq.Intersects(allowed) && p.isPawnDropMate(checkSq.LSB()) {
					allowed = allowed.AndNot(checkSq)
				}
			}
		}

		for allowed.More() {
			ml.Add(NewDrop(pt, allowed.PopLSB()))
		}
	}
}

// pawnFiles returns the files holding an unpromoted pawn of color c (nifu).
func (p *Position) pawnFiles(c Color) Bitboard {
	var files Bitboard
	pawns := p.Pieces[c][Pawn]
	for pawns.More() {
		files = files.Or(FileMask[pawns.PopLSB().Col()])
	}
	return files
}

// isPawnDropMate reports whether dropping a pawn on sq checkmates (uchifu-zume).
// A pawn check cannot be interposed, so only board moves can answer it.
func (p *Position) isPawnDropMate(sq Square) bool {
	m := NewDrop(Pawn, sq)
	undo := p.MakeMove(m)
	defer p.UnmakeMove(m, undo)

	// Dropping into a self-check is filtered elsewhere; it is never mate.
	if p.IsSquareAttacked(p.KingSquare[p.SideToMove.Other()], p.SideToMove) {
		return false
	}

	ml := NewMoveList()
	us := p.SideToMove
	targets := p.Occupied[us].Not()
	for pt := Pawn; pt < NoPieceType; pt++ {
		p.generatePieceMoves(ml, us, pt, targets)
	}
	pinned := p.ComputePinned()
	for i := 0; i < ml.Len(); i++ {
		if p.IsLegalFast(ml.Get(i), pinned) {
			return false
		}
	}
	return true
}

// ComputePinned computes pieces pinned to the king for the side to move.
// Uses x-ray attacks from enemy sliders through exactly one friendly piece.
func (p *Position) ComputePinned() Bitboard {
	us := p.SideToMove
	them := us.Other()
	if p.Pieces[us][King].IsEmpty() {
		return Empty
	}
	ksq := p.KingSquare[us]

	snipers := RookAttacks(ksq, Empty).And(p.Pieces[them][Rook].Or(p.Pieces[them][Dragon]))
	snipers = snipers.Or(BishopAttacks(ksq, Empty).And(p.Pieces[them][Bishop].Or(p.Pieces[them][Horse])))
	snipers = snipers.Or(LanceAttacks(us, ksq, Empty).And(p.Pieces[them][Lance]))

	var pinned Bitboard
	for snipers.More() {
		sq := snipers.PopLSB()
		blockers := Between(sq, ksq).And(p.AllOccupied)
		if blockers.PopCount() == 1 && blockers.Intersects(p.Occupied[us]) {
			pinned = pinned.Or(blockers)
		}
	}
	return pinned
}

// DebugLegalMoveVerification enables dual-path verification in filterLegalMoves.
// Set to true during development to catch any fast path bugs.
var DebugLegalMoveVerification = false

// filterLegalMoves removes moves that leave the mover's king attacked.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()
	pinned := p.ComputePinned()

	for i := 0; i < ml.Len(); i++ {
		m := ml.Get(i)
		legal := p.IsLegalFast(m, pinned)
		if DebugLegalMoveVerification {
			if slow := p.IsLegal(m); slow != legal {
				log.Error().Str("move", m.String()).Bool("fast", legal).Bool("slow", slow).
					Str("sfen", p.SFEN()).Msg("legality mismatch")
				panic(fmt.Sprintf("legality mismatch for %s in %s", m, p.SFEN()))
			}
		}
		if legal {
			result.Add(m)
		}
	}

	return result
}

// IsLegalFast returns true if the pseudo-legal move m is legal.
// Outside of check, drops and moves of unpinned non-king pieces cannot
// expose the king, which avoids make/unmake for most moves.
func (p *Position) IsLegalFast(m Move, pinned Bitboard) bool {
	us := p.SideToMove
	them := us.Other()

	if m.IsDrop() {
		if !p.InCheck() {
			return true
		}
		return p.IsLegal(m)
	}

	from := m.From()
	if p.PieceAt(from).Type() == King {
		occ := p.AllOccupied.Clear(from)
		return p.AttackersByColor(m.To(), them, occ).IsEmpty()
	}

	if !p.InCheck() && !pinned.IsSet(from) {
		return true
	}
	if !p.InCheck() {
		// A pinned piece may only move along the pin line
		ksq := p.KingSquare[us]
		to := m.To()
		return Between(ksq, to).IsSet(from) || Between(ksq, from).IsSet(to) ||
			Between(from, to).IsSet(ksq)
	}
	return p.IsLegal(m)
}

// IsLegal returns true if the pseudo-legal move m does not leave the king
// attacked. Uses make/unmake for guaranteed correctness.
func (p *Position) IsLegal(m Move) bool {
	us := p.SideToMove
	undo := p.MakeMove(m)
	attacked := p.IsSquareAttacked(p.KingSquare[us], us.Other())
	p.UnmakeMove(m, undo)
	return !attacked
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	ml := p.GeneratePseudoLegalMoves()
	pinned := p.ComputePinned()
	for i := 0; i < ml.Len(); i++ {
		if p.IsLegalFast(ml.Get(i), pinned) {
			return true
		}
	}
	return false
}

// IsCheckmate returns true if the side to move is in check with no legal move.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the side to move has no legal move but is not
// in check. Unlike chess this is a loss for the stalemated side.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// GivesCheck returns true if the pseudo-legal move m checks the opponent.
func (p *Position) GivesCheck(m Move) bool {
	undo := p.MakeMove(m)
	check := p.InCheck()
	p.UnmakeMove(m, undo)
	return check
}
