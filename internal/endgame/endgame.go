// Package endgame recognizes positions whose outcome or best move is known
// without searching.
package endgame

import (
	"github.com/hailam/shogiplay/internal/board"
	"github.com/hailam/shogiplay/internal/engine"
)

// bareKingScore is reported for the side facing a lone king. It stays far
// below the mate range so search scores still dominate.
const bareKingScore = 5000

// ProbeResult is a recognizer's verdict for the side to move.
type ProbeResult struct {
	Found   bool
	Move    board.Move // NoMove when only the score is known
	Score   int        // side to move's perspective
	Pattern string
}

// Recognizer is the interface for endgame pattern probing.
type Recognizer interface {
	// Probe classifies pos. Found is false when no pattern applies.
	Probe(pos *board.Position) ProbeResult

	// Name identifies the recognizer in logs.
	Name() string
}

// MateInOne finds a move after which the opponent has no legal reply.
// Uchifuzume drops never qualify since they are not generated.
type MateInOne struct{}

func (MateInOne) Name() string { return "mate-in-one" }

func (MateInOne) Probe(pos *board.Position) ProbeResult {
	moves := pos.GenerateLegalMoves()
	work := pos.Copy()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := work.MakeMove(m)
		mated := !work.HasLegalMoves()
		work.UnmakeMove(m, undo)
		if mated {
			return ProbeResult{Found: true, Move: m, Score: engine.MateScore - 1, Pattern: "mate-in-one"}
		}
	}
	return ProbeResult{}
}

// SingleReply plays the only legal move without searching.
type SingleReply struct{}

func (SingleReply) Name() string { return "single-reply" }

func (SingleReply) Probe(pos *board.Position) ProbeResult {
	moves := pos.GenerateLegalMoves()
	if moves.Len() != 1 {
		return ProbeResult{}
	}
	return ProbeResult{
		Found:   true,
		Move:    moves.Get(0),
		Score:   engine.Evaluate(pos),
		Pattern: "single-reply",
	}
}

// BareKing scores positions where one side has nothing but its king, on
// the board or in hand, and the other side still has material. The move is
// left to the search, which adds the score to its leaf evaluations.
type BareKing struct{}

func (BareKing) Name() string { return "bare-king" }

func (BareKing) Probe(pos *board.Position) ProbeResult {
	us := pos.SideToMove
	them := us.Other()
	switch {
	case bare(pos, them) && !bare(pos, us):
		return ProbeResult{Found: true, Score: bareKingScore, Pattern: "bare-king"}
	case bare(pos, us) && !bare(pos, them):
		return ProbeResult{Found: true, Score: -bareKingScore, Pattern: "bare-king"}
	}
	return ProbeResult{}
}

// LeafBonus implements engine.LeafScorer.
func (b BareKing) LeafBonus(pos *board.Position) (int, bool) {
	res := b.Probe(pos)
	return res.Score, res.Found
}

// bare reports whether c owns only its king.
func bare(pos *board.Position, c board.Color) bool {
	return pos.Occupied[c].PopCount() <= 1 && pos.Hands[c].IsEmpty()
}

// Chain asks each recognizer in turn and returns the first verdict.
type Chain []Recognizer

func (c Chain) Name() string { return "chain" }

func (c Chain) Probe(pos *board.Position) ProbeResult {
	for _, r := range c {
		if res := r.Probe(pos); res.Found {
			return res
		}
	}
	return ProbeResult{}
}

// Default returns the standard recognizers behind a cache.
func Default() *CachedRecognizer {
	return NewCachedRecognizer(Chain{MateInOne{}, SingleReply{}, BareKing{}}, 100000)
}

// Suggester adapts a Recognizer to engine.Suggester. Verdicts without a move
// are not suggestions.
type Suggester struct {
	Recognizer
}

// NewSuggester wraps r.
func NewSuggester(r Recognizer) *Suggester {
	return &Suggester{Recognizer: r}
}

// Suggest implements engine.Suggester.
func (s *Suggester) Suggest(pos *board.Position) (engine.Suggestion, bool) {
	res := s.Probe(pos)
	if !res.Found || res.Move == board.NoMove {
		return engine.Suggestion{}, false
	}
	return engine.Suggestion{Move: res.Move, Score: res.Score, Source: engine.SourceEndgame}, true
}
