package board

// RepetitionResult classifies a repeated position from the side to move's view.
type RepetitionResult uint8

const (
	RepetitionNone RepetitionResult = iota
	RepetitionDraw                  // sennichite
	RepetitionWin                   // the opponent kept giving check
	RepetitionLoss                  // we kept giving check
)

// SennichiteCount is the number of occurrences that ends a game in sennichite.
const SennichiteCount = 4

// String returns the result name.
func (r RepetitionResult) String() string {
	switch r {
	case RepetitionDraw:
		return "Draw"
	case RepetitionWin:
		return "Win"
	case RepetitionLoss:
		return "Loss"
	default:
		return "None"
	}
}

// Repetition reports whether the current position has occurred at least
// minOccurrences times (counting itself) with the same side to move.
//
// If every move the opponent made inside the repeated cycle gave check,
// the result is RepetitionWin (perpetual check loses for the checker); if
// every move of the side to move did, RepetitionLoss. Otherwise it is a draw.
// The scan never crosses a null move.
func (p *Position) Repetition(minOccurrences int) RepetitionResult {
	n := len(p.history)
	if minOccurrences < 2 || n < 5 {
		return RepetitionNone
	}

	count := 1
	earliest := -1
	for i := n - 3; i >= 0; i -= 2 {
		// Any null move inside the span breaks it
		if p.history[i+1].Null || p.history[i+2].Null {
			break
		}
		if p.history[i].Hash == p.history[n-1].Hash {
			count++
			earliest = i
		}
	}
	if count < minOccurrences {
		return RepetitionNone
	}

	// Moves history[earliest+1 .. n-1] form the cycle. The last one was
	// made by the opponent of the side to move.
	oppAllChecks, ourAllChecks := true, true
	for j := n - 1; j > earliest; j-- {
		byOpponent := (n-1-j)%2 == 0
		if p.history[j].GaveCheck {
			continue
		}
		if byOpponent {
			oppAllChecks = false
		} else {
			ourAllChecks = false
		}
	}

	switch {
	case oppAllChecks && !ourAllChecks:
		return RepetitionWin
	case ourAllChecks && !oppAllChecks:
		return RepetitionLoss
	}
	return RepetitionDraw
}

// GameState is the status of the game in the current position.
type GameState uint8

const (
	Ongoing GameState = iota
	Checkmate
	Stalemate // no legal move without check; a loss in shogi
	Sennichite
	PerpetualCheck // the side to move wins: the opponent checked perpetually
	PerpetualCheckLoss
)

// String returns the state name.
func (s GameState) String() string {
	switch s {
	case Checkmate:
		return "Checkmate"
	case Stalemate:
		return "Stalemate"
	case Sennichite:
		return "Sennichite"
	case PerpetualCheck:
		return "PerpetualCheck"
	case PerpetualCheckLoss:
		return "PerpetualCheckLoss"
	default:
		return "Ongoing"
	}
}

// GameState returns the game-rule status of the position: mate, stalemate,
// or fourfold repetition.
func (p *Position) GameState() GameState {
	switch p.Repetition(SennichiteCount) {
	case RepetitionDraw:
		return Sennichite
	case RepetitionWin:
		return PerpetualCheck
	case RepetitionLoss:
		return PerpetualCheckLoss
	}
	if !p.HasLegalMoves() {
		if p.InCheck() {
			return Checkmate
		}
		return Stalemate
	}
	return Ongoing
}

// IsGameOver returns true if the game has ended by rule.
func (p *Position) IsGameOver() bool {
	return p.GameState() != Ongoing
}
