package engine

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/hailam/shogiplay/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// MaxSearchDepth caps iterative deepening so the PV and killer tables
// always have room for quiescence plies below the nominal depth.
const MaxSearchDepth = 64

// Pruning constants
const (
	nullMoveMinDepth   = 3
	futilityMaxDepth   = 3
	aspirationMinDepth = 4
	deltaMargin        = 200 // Quiescence delta pruning margin
	checkInterval      = 1024
)

// futilityMargin is indexed by remaining depth.
var futilityMargin = [futilityMaxDepth + 1]int{0, 200, 300, 500}

// searchRepetitions is the occurrence count treated as a repetition inside
// the tree. Seeing a position twice on the path is enough to score it.
const searchRepetitions = 2

// errSearchAborted is returned up the tree when the deadline, node budget or
// stop flag ends the search. Scores that come with it are meaningless.
var errSearchAborted = errors.New("search aborted")

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// searchConfig carries the switches a Searcher reads on every node.
type searchConfig struct {
	useNullMove     bool
	useFutility     bool
	quiescenceDepth int
}

// Searcher owns everything one search invocation mutates: a private copy of
// the root position, the ordering tables, the PV and the node counter.
// The transposition and pawn tables are borrowed from the Engine.
type Searcher struct {
	pos       *board.Position
	orderer   *MoveOrderer
	tt        *TranspositionTable // nil when disabled
	pawnTable *PawnTable
	leaf      LeafScorer // nil when disabled
	cfg       searchConfig

	nodes     uint64
	nodeLimit uint64
	deadline  time.Time
	stop      *atomic.Bool
	pv        PVTable

	// Best move of the last completed iteration, tried first at the root.
	rootBest board.Move
}

// NewSearcher creates a searcher for pos. The position is copied, so the
// caller's position is never touched.
func NewSearcher(pos *board.Position, tt *TranspositionTable, pawnTable *PawnTable, stop *atomic.Bool) *Searcher {
	if stop == nil {
		stop = new(atomic.Bool)
	}
	return &Searcher{
		pos:       pos.Copy(),
		orderer:   NewMoveOrderer(),
		tt:        tt,
		pawnTable: pawnTable,
		cfg: searchConfig{
			useNullMove:     true,
			useFutility:     true,
			quiescenceDepth: DefaultQuiescenceDepth,
		},
		stop: stop,
	}
}

// SetDeadline sets the wall-clock time after which the search aborts.
// A zero time means no deadline.
func (s *Searcher) SetDeadline(t time.Time) {
	s.deadline = t
}

// SetNodeLimit aborts the search after n nodes. Zero means no limit.
func (s *Searcher) SetNodeLimit(n uint64) {
	s.nodeLimit = n
}

// Nodes returns the number of nodes searched.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// Position returns the searcher's private position.
func (s *Searcher) Position() *board.Position {
	return s.pos
}

// GetPV returns the principal variation of the last completed root search.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	copy(pv, s.pv.moves[0][:s.pv.length[0]])
	return pv
}

// BestMove returns the first move of the principal variation.
func (s *Searcher) BestMove() board.Move {
	if s.pv.length[0] == 0 {
		return board.NoMove
	}
	return s.pv.moves[0][0]
}

// evaluate returns the static evaluation using the cached pawn structure,
// plus the leaf scorer's bonus when one applies.
func (s *Searcher) evaluate() int {
	eval := EvaluateWithPawnTable(s.pos, s.pawnTable)
	if s.leaf != nil {
		if bonus, ok := s.leaf.LeafBonus(s.pos); ok {
			eval = clampEval(eval + bonus)
		}
	}
	return eval
}

// checkAbort polls the stop conditions every checkInterval nodes.
func (s *Searcher) checkAbort() error {
	if s.nodes%checkInterval != 0 {
		return nil
	}
	if s.stop.Load() {
		return errSearchAborted
	}
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		return errSearchAborted
	}
	if s.nodeLimit > 0 && s.nodes >= s.nodeLimit {
		return errSearchAborted
	}
	return nil
}

// SearchDepth runs one full-width search of the root to depth.
func (s *Searcher) SearchDepth(depth int) (int, error) {
	return s.SearchWithBounds(depth, -Infinity, Infinity)
}

// SearchWithBounds searches the root with a custom window.
func (s *Searcher) SearchWithBounds(depth, alpha, beta int) (int, error) {
	score, err := s.negamax(depth, 0, alpha, beta, board.NoMove, true)
	if err != nil {
		return 0, err
	}
	return score, nil
}

// aspiration searches depth with a window around the previous iteration's
// score, widening after each fail until the score lands inside it.
func (s *Searcher) aspiration(depth, prevScore, window int) (int, error) {
	if depth < aspirationMinDepth || window <= 0 || isMateScore(prevScore) {
		return s.SearchDepth(depth)
	}

	alpha := max(prevScore-window, -Infinity)
	beta := min(prevScore+window, Infinity)
	for {
		score, err := s.SearchWithBounds(depth, alpha, beta)
		if err != nil {
			return 0, err
		}
		switch {
		case score <= alpha && alpha > -Infinity:
			window *= 2
			alpha = max(score-window, -Infinity)
		case score >= beta && beta < Infinity:
			window *= 2
			beta = min(score+window, Infinity)
		default:
			return score, nil
		}
	}
}

// orderedRootMoves returns the legal root moves in search order.
func (s *Searcher) orderedRootMoves() *board.MoveList {
	moves := s.pos.GenerateLegalMoves()
	ttMove := s.rootBest
	if ttMove == board.NoMove && s.tt != nil {
		if entry, ok := s.tt.Probe(s.pos.Hash); ok {
			ttMove = entry.BestMove
		}
	}
	scores := s.orderer.ScoreMoves(s.pos, moves, 0, ttMove, s.pos.LastMove())
	SortMoves(moves, scores)
	return moves
}

// repetitionScore scores a repeated position from the side to move's view.
func repetitionScore(r board.RepetitionResult, ply int) (int, bool) {
	switch r {
	case board.RepetitionDraw:
		return 0, true
	case board.RepetitionWin:
		return MateScore - ply, true
	case board.RepetitionLoss:
		return -MateScore + ply, true
	}
	return 0, false
}

// negamax implements principal variation search with alpha-beta pruning.
func (s *Searcher) negamax(depth, ply int, alpha, beta int, prevMove board.Move, nullAllowed bool) (int, error) {
	if err := s.checkAbort(); err != nil {
		return 0, err
	}
	s.nodes++

	s.pv.length[ply] = ply
	if ply >= MaxPly-1 {
		return s.evaluate(), nil
	}

	if ply > 0 {
		if score, ok := repetitionScore(s.pos.Repetition(searchRepetitions), ply); ok {
			return score, nil
		}
	}

	if depth <= 0 {
		return s.quiescence(ply, 0, alpha, beta)
	}

	// Probe transposition table. The root always searches its moves so the
	// PV is rebuilt every iteration.
	var ttMove board.Move
	if s.tt != nil {
		if entry, found := s.tt.Probe(s.pos.Hash); found {
			ttMove = entry.BestMove
			if ply > 0 && int(entry.Depth) >= depth {
				score := AdjustScoreFromTT(int(entry.Score), ply)
				switch entry.Flag {
				case TTExact:
					return score, nil
				case TTLowerBound:
					if score >= beta {
						return score, nil
					}
				case TTUpperBound:
					if score <= alpha {
						return score, nil
					}
				}
			}
		}
	}
	if ply == 0 && ttMove == board.NoMove {
		ttMove = s.rootBest
	}

	inCheck := s.pos.InCheck()

	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		// Checkmate, or stalemate which loses in shogi too
		return -MateScore + ply, nil
	}

	staticEval := 0
	if !inCheck {
		staticEval = s.evaluate()
	}
	pvNode := beta-alpha > 1

	// Reverse futility pruning
	if s.cfg.useFutility && !inCheck && !pvNode && ply > 0 && depth <= futilityMaxDepth && !isMateScore(beta) {
		if staticEval-futilityMargin[depth] >= beta {
			return staticEval - futilityMargin[depth], nil
		}
	}

	// Null move pruning
	if s.cfg.useNullMove && nullAllowed && !inCheck && !pvNode && ply > 0 &&
		depth >= nullMoveMinDepth && staticEval >= beta && !isMateScore(beta) && s.pos.HasNonPawnMaterial() {
		R := 2 + depth/4
		if R > depth-1 {
			R = depth - 1
		}

		nullUndo := s.pos.MakeNullMove()
		nullScore, err := s.negamax(depth-1-R, ply+1, -beta, -beta+1, board.NoMove, false)
		s.pos.UnmakeNullMove(nullUndo)
		if err != nil {
			return 0, err
		}
		if -nullScore >= beta {
			return beta, nil
		}
	}

	// Futility pruning flag for quiet moves
	pruneQuiet := s.cfg.useFutility && !inCheck && !pvNode && ply > 0 &&
		depth <= futilityMaxDepth && staticEval+futilityMargin[depth] <= alpha

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove, prevMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	quietsTried := make([]board.Move, 0, 16)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		quiet := !move.IsCapture(s.pos) && !move.IsPromotion()

		undo := s.pos.MakeMove(move)

		if pruneQuiet && quiet && bestMove != board.NoMove && !s.pos.InCheck() {
			s.pos.UnmakeMove(move, undo)
			continue
		}

		var score int
		var err error
		if bestMove == board.NoMove {
			score, err = s.negamax(depth-1, ply+1, -beta, -alpha, move, true)
			score = -score
		} else {
			// Zero window first; re-search with the full window only if it
			// unexpectedly improves alpha.
			score, err = s.negamax(depth-1, ply+1, -alpha-1, -alpha, move, true)
			score = -score
			if err == nil && score > alpha && score < beta {
				score, err = s.negamax(depth-1, ply+1, -beta, -alpha, move, true)
				score = -score
			}
		}

		s.pos.UnmakeMove(move, undo)
		if err != nil {
			return 0, err
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = max(s.pv.length[ply+1], ply+1)
			}
		}

		if score >= beta {
			if s.tt != nil {
				s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, move)
			}
			if quiet {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(move, depth, true)
				s.orderer.UpdateCounterMove(prevMove, move, s.pos)
				for _, q := range quietsTried {
					s.orderer.UpdateHistory(q, depth, false)
				}
			}
			return score, nil
		}

		if quiet {
			quietsTried = append(quietsTried, move)
		}
	}

	// Every move was pruned: fall back to the static bound
	if bestMove == board.NoMove {
		return alpha, nil
	}

	if s.tt != nil {
		s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove)
	}
	return bestScore, nil
}

// quiescence resolves captures and promotions below the nominal depth, or
// every evasion when in check, so the static evaluation is only taken in
// quiet positions. qPly caps the extension.
func (s *Searcher) quiescence(ply, qPly int, alpha, beta int) (int, error) {
	if err := s.checkAbort(); err != nil {
		return 0, err
	}
	s.nodes++

	s.pv.length[ply] = ply
	if ply >= MaxPly-1 || qPly >= s.cfg.quiescenceDepth {
		return s.evaluate(), nil
	}

	inCheck := s.pos.InCheck()

	var moves *board.MoveList
	bestScore := -Infinity
	standPat := 0
	if inCheck {
		moves = s.pos.GenerateEvasions()
		if moves.Len() == 0 {
			return -MateScore + ply, nil
		}
	} else {
		// No legal move loses in shogi even when not in check
		if !s.pos.HasLegalMoves() {
			return -MateScore + ply, nil
		}
		standPat = s.evaluate()
		if standPat >= beta {
			return standPat, nil
		}
		if standPat > alpha {
			alpha = standPat
		}
		bestScore = standPat
		moves = s.pos.GenerateCaptures()
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, board.NoMove, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if !inCheck && s.cfg.useFutility {
			// Delta pruning
			gain := 0
			if victim := s.pos.PieceAt(move.To()); victim != board.NoPiece {
				gain = board.PieceValue[victim.Type()]
			}
			if move.IsPromotion() {
				pt := s.pos.PieceAt(move.From()).Type()
				gain += board.PieceValue[pt.Promoted()] - board.PieceValue[pt]
			}
			if standPat+gain+deltaMargin < alpha {
				continue
			}
		}
		if !inCheck && scores[i] < 0 {
			// Losing captures are left to the main search
			continue
		}

		undo := s.pos.MakeMove(move)
		score, err := s.quiescence(ply+1, qPly+1, -beta, -alpha)
		s.pos.UnmakeMove(move, undo)
		if err != nil {
			return 0, err
		}
		score = -score

		if score > bestScore {
			bestScore = score
		}
		if score >= beta {
			return score, nil
		}
		if score > alpha {
			alpha = score
		}
	}

	return bestScore, nil
}

// isMateScore reports whether score encodes a forced mate or mated line.
func isMateScore(score int) bool {
	return score > MateScore-MaxPly || score < -MateScore+MaxPly
}
