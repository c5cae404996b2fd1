package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hailam/shogiplay/internal/board"
)

// ErrInsufficientTime is returned when the budget ran out before depth 1
// completed. The accompanying Result still carries a legal move.
var ErrInsufficientTime = errors.New("time budget too small to complete depth 1")

// DefaultQuiescenceDepth caps the quiescence extension below the nominal depth.
const DefaultQuiescenceDepth = 16

// DefaultAspirationWindow is the initial half-width of the aspiration window.
const DefaultAspirationWindow = 64

// Source tells where a result came from.
type Source uint8

const (
	SourceSearch Source = iota
	SourceBook
	SourceEndgame
	SourceTerminal // no legal move; the side to move resigns
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceSearch:
		return "search"
	case SourceBook:
		return "book"
	case SourceEndgame:
		return "endgame"
	case SourceTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Result is the outcome of one GetBestMove call.
type Result struct {
	Move   board.Move
	Score  int // side to move's view
	Depth  int // last completed depth; 0 for suggestions and terminal positions
	Nodes  uint64
	PV     []board.Move
	Source Source
	Resign bool // true only when no legal move exists
	ID     uuid.UUID
}

// Suggestion is a move proposed before search.
type Suggestion struct {
	Move   board.Move
	Score  int
	Source Source
}

// Suggester may short-circuit the search with a move and score. Returning
// false lets the full search run unmodified.
type Suggester interface {
	Suggest(pos *board.Position) (Suggestion, bool)
}

// LeafScorer adds a known-outcome bonus to the static evaluation of
// positions the search stops at. The sum is clamped to MaxEvalScore.
type LeafScorer interface {
	LeafBonus(pos *board.Position) (int, bool)
}

// SearchInfo contains information about the current search.
type SearchInfo struct {
	ID       uuid.UUID
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = engine default)
	Nodes    uint64        // Maximum nodes (0 = no limit)
	MoveTime time.Duration // Hard time limit for this move (0 = no limit)
	SoftTime time.Duration // Do not start a new iteration past this (0 = MoveTime/2)
	Infinite bool          // Search until stopped
}

// Options configures an Engine.
type Options struct {
	HashMB           int
	MaxDepth         int
	MoveTime         time.Duration
	UseTT            bool
	UseNullMove      bool
	UseFutility      bool
	QuiescenceDepth  int
	AspirationWindow int
	UseSuggesters    bool // consult the book and endgame recognizers
}

// DefaultOptions returns the options used by NewEngine.
func DefaultOptions() Options {
	return Options{
		HashMB:           64,
		MaxDepth:         MaxSearchDepth,
		MoveTime:         5 * time.Second,
		UseTT:            true,
		UseNullMove:      true,
		UseFutility:      true,
		QuiescenceDepth:  DefaultQuiescenceDepth,
		AspirationWindow: DefaultAspirationWindow,
		UseSuggesters:    true,
	}
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // ~3 ply, 500ms
	Medium                   // ~5 ply, 2s
	Hard                     // ~7+ ply, 5s
)

// String returns the difficulty name.
func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("difficulty(%d)", int(d))
	}
}

// ParseDifficulty parses a difficulty name.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(s) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return Medium, fmt.Errorf("unknown difficulty %q", s)
}

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 5, MoveTime: 2 * time.Second},
	Hard:   {Depth: 7, MoveTime: 5 * time.Second},
}

// Engine is the shogi AI engine. One Engine runs one search at a time; the
// transposition and pawn tables persist across searches until Clear.
type Engine struct {
	opts       Options
	tt         *TranspositionTable
	pawnTable  *PawnTable
	stop       atomic.Bool
	difficulty Difficulty
	suggesters []Suggester
	leaf       LeafScorer

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates a new engine with the given transposition table size in MB.
func NewEngine(ttSizeMB int) *Engine {
	opts := DefaultOptions()
	opts.HashMB = ttSizeMB
	return NewEngineWithOptions(opts)
}

// NewEngineWithOptions creates an engine from explicit options.
func NewEngineWithOptions(opts Options) *Engine {
	if opts.HashMB < 1 {
		opts.HashMB = 1
	}
	if opts.MaxDepth <= 0 || opts.MaxDepth > MaxSearchDepth {
		opts.MaxDepth = MaxSearchDepth
	}
	if opts.QuiescenceDepth <= 0 {
		opts.QuiescenceDepth = DefaultQuiescenceDepth
	}
	return &Engine{
		opts:       opts,
		tt:         NewTranspositionTable(opts.HashMB),
		pawnTable:  NewPawnTable(1),
		difficulty: Medium,
	}
}

// Options returns the engine options.
func (e *Engine) Options() Options {
	return e.opts
}

// SetHashSize replaces the transposition table with one of sizeMB.
func (e *Engine) SetHashSize(sizeMB int) {
	if sizeMB < 1 {
		sizeMB = 1
	}
	e.opts.HashMB = sizeMB
	e.tt = NewTranspositionTable(sizeMB)
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// Difficulty returns the current difficulty.
func (e *Engine) Difficulty() Difficulty {
	return e.difficulty
}

// SetSuggesters installs the pre-search suggesters, consulted in order.
func (e *Engine) SetSuggesters(s ...Suggester) {
	e.suggesters = s
}

// SetLeafScorer installs the endgame leaf scorer; nil removes it. Stored
// TT scores depend on it, so the table is cleared.
func (e *Engine) SetLeafScorer(l LeafScorer) {
	e.leaf = l
	e.tt.Clear()
}

// SetUseSuggesters turns the pre-search suggesters and the leaf scorer on
// or off.
func (e *Engine) SetUseSuggesters(on bool) {
	if e.opts.UseSuggesters != on && e.leaf != nil {
		e.tt.Clear()
	}
	e.opts.UseSuggesters = on
}

// Search finds the best move using the difficulty presets.
func (e *Engine) Search(pos *board.Position) (Result, error) {
	return e.SearchWithLimits(pos, DifficultySettings[e.difficulty])
}

// GetBestMove searches pos to at most maxDepth plies within timeLimit.
// A zero maxDepth or timeLimit falls back to the engine options.
func (e *Engine) GetBestMove(pos *board.Position, maxDepth int, timeLimit time.Duration) (Result, error) {
	if maxDepth <= 0 {
		maxDepth = e.opts.MaxDepth
	}
	if timeLimit <= 0 {
		timeLimit = e.opts.MoveTime
	}
	return e.SearchWithLimits(pos, SearchLimits{Depth: maxDepth, MoveTime: timeLimit})
}

// SearchWithLimits finds the best move with specific search limits.
//
// A legal move is returned whenever one exists. When no legal move exists
// the Result has Resign set. If depth 1 could not complete, the first
// ordered legal move is returned together with ErrInsufficientTime.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) (Result, error) {
	id := uuid.New()
	logger := log.With().Str("search", id.String()).Logger()
	e.stop.Store(false)

	startTime := time.Now()

	legal := pos.GenerateLegalMoves()
	if legal.Len() == 0 {
		logger.Info().Str("sfen", pos.SFEN()).Msg("no-legal-moves")
		return Result{Score: -MateScore, Source: SourceTerminal, Resign: true, ID: id}, nil
	}

	if e.opts.UseSuggesters && !limits.Infinite {
		for _, sg := range e.suggesters {
			sug, ok := sg.Suggest(pos)
			if !ok {
				continue
			}
			if !legal.Contains(sug.Move) {
				logger.Warn().Str("move", sug.Move.String()).Str("source", sug.Source.String()).
					Msg("suggester-returned-illegal-move")
				continue
			}
			logger.Info().Str("move", sug.Move.String()).Str("source", sug.Source.String()).
				Int("score", sug.Score).Msg("suggested-move")
			return Result{
				Move:   sug.Move,
				Score:  sug.Score,
				PV:     []board.Move{sug.Move},
				Source: sug.Source,
				ID:     id,
			}, nil
		}
	}

	maxDepth := e.opts.MaxDepth
	if limits.Depth > 0 && limits.Depth < maxDepth {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	softTime := limits.SoftTime
	if limits.MoveTime > 0 && !limits.Infinite {
		deadline = startTime.Add(limits.MoveTime)
		if softTime <= 0 {
			softTime = limits.MoveTime / 2
		}
	}

	e.tt.NewSearch()
	var tt *TranspositionTable
	if e.opts.UseTT {
		tt = e.tt
	}
	s := NewSearcher(pos, tt, e.pawnTable, &e.stop)
	s.cfg = searchConfig{
		useNullMove:     e.opts.UseNullMove,
		useFutility:     e.opts.UseFutility,
		quiescenceDepth: e.opts.QuiescenceDepth,
	}
	if e.opts.UseSuggesters {
		s.leaf = e.leaf
	}
	s.SetDeadline(deadline)
	s.SetNodeLimit(limits.Nodes)

	result := Result{Source: SourceSearch, ID: id}
	prevScore := 0

	// Iterative deepening
	for depth := 1; depth <= maxDepth; depth++ {
		score, err := s.aspiration(depth, prevScore, e.opts.AspirationWindow)
		if err != nil {
			logger.Debug().Int("depth", depth).Uint64("nodes", s.Nodes()).Msg("iteration-aborted")
			break
		}

		best := s.BestMove()
		if best == board.NoMove {
			break
		}
		s.rootBest = best
		prevScore = score

		result.Move = best
		result.Score = score
		result.Depth = depth
		result.PV = s.GetPV()

		elapsed := time.Since(startTime)
		logger.Debug().
			Int("depth", depth).
			Int("score", score).
			Uint64("nodes", s.Nodes()).
			Str("pv", formatPV(result.PV)).
			Dur("elapsed", elapsed).
			Msg("depth-complete")

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				ID:       id,
				Depth:    depth,
				Score:    score,
				Nodes:    s.Nodes(),
				Time:     elapsed,
				PV:       result.PV,
				HashFull: e.tt.HashFull(),
			})
		}

		// Early termination: found mate
		if isMateScore(score) && !limits.Infinite {
			break
		}

		if softTime > 0 && elapsed >= softTime {
			break
		}
	}
	result.Nodes = s.Nodes()

	if result.Depth == 0 {
		result.Move = s.orderedRootMoves().Get(0)
		result.PV = []board.Move{result.Move}
		logger.Warn().Str("move", result.Move.String()).Dur("limit", limits.MoveTime).
			Msg("depth-1-incomplete")
		return result, ErrInsufficientTime
	}

	logger.Info().
		Str("move", result.Move.String()).
		Int("score", result.Score).
		Int("depth", result.Depth).
		Uint64("nodes", result.Nodes).
		Dur("elapsed", time.Since(startTime)).
		Msg("best-move")
	return result, nil
}

// Stop stops the current search. Safe to call from another goroutine.
func (e *Engine) Stop() {
	e.stop.Store(true)
}

// Clear clears the transposition table and other caches for a new game.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.pawnTable.Clear()
}

// Perft counts leaf nodes of the legal move tree (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) int64 {
	return pos.Copy().Perft(depth)
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int {
	return EvaluateWithPawnTable(pos, e.pawnTable)
}

// MateIn returns the signed number of plies to mate encoded in score:
// positive when the side to move mates, negative when it is mated.
func MateIn(score int) (int, bool) {
	if score > MateScore-MaxPly {
		return MateScore - score, true
	}
	if score < -MateScore+MaxPly {
		return -(MateScore + score), true
	}
	return 0, false
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if plies, ok := MateIn(score); ok {
		if plies > 0 {
			return fmt.Sprintf("Mate in %d", (plies+1)/2)
		}
		return fmt.Sprintf("Mated in %d", (-plies+1)/2)
	}

	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	return fmt.Sprintf("%s%d.%02d", sign, score/100, score%100)
}

func formatPV(pv []board.Move) string {
	parts := make([]string, len(pv))
	for i, m := range pv {
		parts[i] = m.String()
	}
	return strings.Join(parts, " ")
}
