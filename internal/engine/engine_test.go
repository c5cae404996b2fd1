package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/shogiplay/internal/board"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	board.DebugMoveValidation = true
}

func mustParse(t *testing.T, sfen string) *board.Position {
	t.Helper()
	pos, err := board.ParseSFEN(sfen)
	if err != nil {
		t.Fatalf("ParseSFEN(%q): %v", sfen, err)
	}
	return pos
}

// exactOptions disables every pruning that may change the minimax value.
func exactOptions(useTT bool) Options {
	opts := DefaultOptions()
	opts.HashMB = 8
	opts.UseTT = useTT
	opts.UseNullMove = false
	opts.UseFutility = false
	opts.UseSuggesters = false
	return opts
}

func TestSearchStartPosition(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	res, err := eng.GetBestMove(pos, 3, 30*time.Second)
	if err != nil {
		t.Fatalf("GetBestMove: %v", err)
	}
	if res.Move == board.NoMove || res.Resign {
		t.Fatalf("no move returned for the starting position")
	}
	if !pos.GenerateLegalMoves().Contains(res.Move) {
		t.Errorf("returned move %s is not legal", res.Move)
	}
	if res.Depth != 3 {
		t.Errorf("Depth = %d, want 3", res.Depth)
	}
	if pos.SFEN() != board.StartSFEN {
		t.Errorf("search modified the caller's position: %s", pos.SFEN())
	}
	t.Logf("Best move: %s score %d nodes %d", res.Move, res.Score, res.Nodes)
}

func TestMateInOne(t *testing.T) {
	// G*5b is mate: the pawn on 5c guards the gold.
	pos := mustParse(t, "4k4/9/4P4/9/9/9/9/9/4K4 b G 1")

	for _, depth := range []int{2, 3, 4} {
		eng := NewEngine(8)
		res, err := eng.GetBestMove(pos, depth, 30*time.Second)
		if err != nil {
			t.Fatalf("depth %d: %v", depth, err)
		}
		if res.Move.String() != "G*5b" {
			t.Errorf("depth %d: got %s, want G*5b", depth, res.Move)
		}
		if plies, ok := MateIn(res.Score); !ok || plies != 1 {
			t.Errorf("depth %d: score %d is not mate in 1", depth, res.Score)
		}
	}
}

func TestCheckmatedPositionResigns(t *testing.T) {
	pos := mustParse(t, "4k4/4G4/4P4/9/9/9/9/9/4K4 w - 1")
	eng := NewEngine(8)

	res, err := eng.GetBestMove(pos, 4, time.Second)
	if err != nil {
		t.Fatalf("GetBestMove: %v", err)
	}
	if !res.Resign || res.Move != board.NoMove {
		t.Errorf("expected resignation, got %+v", res)
	}
	if res.Score > -MateScore+MaxPly {
		t.Errorf("mated side should score as lost, got %d", res.Score)
	}
}

func TestTerminalScoringAtAnyDepth(t *testing.T) {
	pos := mustParse(t, "4k4/4G4/4P4/9/9/9/9/9/4K4 w - 1")
	for depth := 1; depth <= 4; depth++ {
		s := NewSearcher(pos, nil, nil, nil)
		score, err := s.SearchDepth(depth)
		if err != nil {
			t.Fatal(err)
		}
		if score != -MateScore {
			t.Errorf("depth %d: score %d, want %d", depth, score, -MateScore)
		}
	}

	// Stalemate also loses in shogi: the king on 1a cannot move.
	stale := mustParse(t, "8k/6G2/7G1/9/9/9/9/9/4K4 w - 1")
	if stale.InCheck() || stale.HasLegalMoves() {
		t.Fatalf("test position is not a stalemate")
	}
	s := NewSearcher(stale, nil, nil, nil)
	if score, _ := s.SearchDepth(2); score != -MateScore {
		t.Errorf("stalemate score %d, want %d", score, -MateScore)
	}
}

func TestQuiescenceScoresStalemateAsLoss(t *testing.T) {
	stale := mustParse(t, "8k/6G2/7G1/9/9/9/9/9/4K4 w - 1")
	s := NewSearcher(stale, nil, nil, nil)
	score, err := s.quiescence(0, 0, -Infinity, Infinity)
	if err != nil {
		t.Fatal(err)
	}
	if score != -MateScore {
		t.Errorf("quiescence score %d, want %d", score, -MateScore)
	}

	// 2d2c (or 2d1c) leaves the white king without a move; depth 1 must see it.
	pos := mustParse(t, "8k/6G2/9/7G1/9/9/9/9/4K4 b - 1")
	eng := NewEngine(8)
	res, err := eng.GetBestMove(pos, 1, 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	after := pos.Copy()
	after.MakeMove(res.Move)
	if after.HasLegalMoves() {
		t.Errorf("best move %s leaves white a legal move", res.Move)
	}
	if plies, ok := MateIn(res.Score); !ok || plies != 1 {
		t.Errorf("score %d is not mate in 1", res.Score)
	}
}

func TestSennichiteScoresDraw(t *testing.T) {
	pos := board.NewPosition()
	cycle := []string{"2h1h", "8b9b", "1h2h", "9b8b"}
	for i := 0; i < 2; i++ {
		for _, tok := range cycle {
			m, err := board.ParseMove(tok, pos)
			if err != nil {
				t.Fatal(err)
			}
			pos.MakeMove(m)
		}
	}
	for _, tok := range cycle[:3] {
		m, _ := board.ParseMove(tok, pos)
		pos.MakeMove(m)
	}

	// 9b8b now reaches the start position for the fourth time.
	s := NewSearcher(pos, NewTranspositionTable(1), nil, nil)
	m, err := board.ParseMove("9b8b", s.pos)
	if err != nil {
		t.Fatal(err)
	}
	s.pos.MakeMove(m)
	if s.pos.GameState() != board.Sennichite {
		t.Fatalf("expected sennichite, got %v", s.pos.GameState())
	}
	for depth := 1; depth <= 3; depth++ {
		score, err := s.negamax(depth, 1, -Infinity, Infinity, m, true)
		if err != nil {
			t.Fatal(err)
		}
		if score != 0 {
			t.Errorf("depth %d: repeated position scored %d, want 0", depth, score)
		}
	}
}

func TestRepetitionScore(t *testing.T) {
	tests := []struct {
		r    board.RepetitionResult
		want int
		ok   bool
	}{
		{board.RepetitionNone, 0, false},
		{board.RepetitionDraw, 0, true},
		{board.RepetitionWin, MateScore - 3, true},
		{board.RepetitionLoss, -MateScore + 3, true},
	}
	for _, tc := range tests {
		got, ok := repetitionScore(tc.r, 3)
		if got != tc.want || ok != tc.ok {
			t.Errorf("repetitionScore(%v) = %d, %v; want %d, %v", tc.r, got, ok, tc.want, tc.ok)
		}
	}
}

func TestMandatoryKnightPromotion(t *testing.T) {
	// The knight on 3c can take the rook on 2a; on rank a it must promote.
	pos := mustParse(t, "k6r1/9/6N2/9/9/9/9/9/4K4 b - 1")
	eng := NewEngine(8)

	res, err := eng.GetBestMove(pos, 3, 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Move.IsDrop() && pos.PieceAt(res.Move.From()).Type() == board.Knight &&
		res.Move.To().RelativeRank(board.Black) < 2 {
		if !res.Move.IsPromotion() {
			t.Errorf("knight move %s to the last two ranks is not promoted", res.Move)
		}
	}
	if res.Move.String() != "3c2a+" {
		t.Errorf("got %s, want the rook capture 3c2a+", res.Move)
	}
}

func TestNifuNeverPlayed(t *testing.T) {
	pos := mustParse(t, "4k4/9/9/9/9/9/4P4/9/4K4 b P 1")
	for depth := 1; depth <= 3; depth++ {
		eng := NewEngine(8)
		res, err := eng.GetBestMove(pos, depth, 30*time.Second)
		if err != nil {
			t.Fatal(err)
		}
		m := res.Move
		if m.IsDrop() && m.DropPiece() == board.Pawn && m.To().File() == 5 {
			t.Errorf("depth %d: engine dropped a second pawn on file 5: %s", depth, m)
		}
	}
}

func TestTranspositionTableDoesNotChangeScore(t *testing.T) {
	positions := []struct {
		sfen  string
		depth int
	}{
		{board.StartSFEN, 3},
		{"lnsgkgsnl/1r5b1/pppppp1pp/6p2/9/2P6/PP1PPPPPP/1B5R1/LNSGKGSNL b - 3", 3},
		{"4k4/9/4P4/9/9/9/9/9/4K4 b G 1", 3},
		{"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1", 2},
		{"ln1g5/1ks1g3l/1pp2+Bpp1/p2pp4/7Pp/P1PP1P3/1PS1P1P2/1KG6/LN1G3rL b BSNPsnp 59", 2},
	}

	for _, tc := range positions {
		t.Run(tc.sfen, func(t *testing.T) {
			pos := mustParse(t, tc.sfen)
			depth := tc.depth
			if testing.Short() {
				depth = min(depth, 2)
			}

			with := NewEngineWithOptions(exactOptions(true))
			without := NewEngineWithOptions(exactOptions(false))
			a, err := with.SearchWithLimits(pos, SearchLimits{Depth: depth})
			if err != nil {
				t.Fatal(err)
			}
			b, err := without.SearchWithLimits(pos, SearchLimits{Depth: depth})
			if err != nil {
				t.Fatal(err)
			}
			if a.Score != b.Score {
				t.Errorf("depth %d: TT score %d, no-TT score %d", depth, a.Score, b.Score)
			}
		})
	}
}

func TestSearchDeterminism(t *testing.T) {
	pos, err := board.ParsePositionCommand("startpos moves 7g7f 3c3d 2g2f")
	if err != nil {
		t.Fatal(err)
	}

	first, err := NewEngine(8).GetBestMove(pos, 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewEngine(8).GetBestMove(pos, 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if first.Move != second.Move || first.Score != second.Score {
		t.Errorf("fresh engines disagree: %s/%d vs %s/%d", first.Move, first.Score, second.Move, second.Score)
	}

	eng := NewEngine(8)
	a, _ := eng.GetBestMove(pos, 3, time.Minute)
	eng.Clear()
	b, _ := eng.GetBestMove(pos, 3, time.Minute)
	if a.Move != b.Move || a.Score != b.Score {
		t.Errorf("search after Clear differs: %s/%d vs %s/%d", a.Move, a.Score, b.Move, b.Score)
	}
}

func TestInsufficientTime(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(8)

	res, err := eng.GetBestMove(pos, 6, time.Nanosecond)
	if !errors.Is(err, ErrInsufficientTime) {
		t.Fatalf("err = %v, want ErrInsufficientTime", err)
	}
	if !pos.GenerateLegalMoves().Contains(res.Move) {
		t.Errorf("fallback move %s is not legal", res.Move)
	}
	if res.Resign {
		t.Errorf("fallback must not resign")
	}
}

func TestNodeLimitEndsInfiniteSearch(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(8)

	res, err := eng.SearchWithLimits(pos, SearchLimits{Infinite: true, Nodes: 20000})
	if err != nil {
		t.Fatalf("SearchWithLimits: %v", err)
	}
	if res.Depth == 0 || res.Move == board.NoMove {
		t.Errorf("expected at least one completed depth, got %+v", res)
	}
	if res.Nodes > 20000+checkInterval {
		t.Errorf("searched %d nodes past a 20000 node limit", res.Nodes)
	}
}

func TestStopEndsInfiniteSearch(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(8)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := eng.SearchWithLimits(pos, SearchLimits{Infinite: true})
		done <- outcome{res, err}
	}()

	time.Sleep(200 * time.Millisecond)
	eng.Stop()

	select {
	case out := <-done:
		if out.err != nil && !errors.Is(out.err, ErrInsufficientTime) {
			t.Fatalf("unexpected error: %v", out.err)
		}
		if !pos.GenerateLegalMoves().Contains(out.res.Move) {
			t.Errorf("stopped search returned %s", out.res.Move)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("search did not stop")
	}
}

type fixedSuggester struct {
	move board.Move
	hits int
}

func (f *fixedSuggester) Suggest(pos *board.Position) (Suggestion, bool) {
	f.hits++
	if f.move == board.NoMove {
		return Suggestion{}, false
	}
	return Suggestion{Move: f.move, Score: 7, Source: SourceBook}, true
}

func TestSuggesters(t *testing.T) {
	pos := board.NewPosition()
	m, _ := board.ParseMove("2g2f", pos)

	eng := NewEngine(8)
	decline := &fixedSuggester{}
	accept := &fixedSuggester{move: m}
	eng.SetSuggesters(decline, accept)

	res, err := eng.GetBestMove(pos, 3, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Move != m || res.Source != SourceBook || res.Score != 7 {
		t.Errorf("suggestion not used: %+v", res)
	}
	if decline.hits != 1 || accept.hits != 1 {
		t.Errorf("suggesters consulted %d/%d times", decline.hits, accept.hits)
	}

	// An illegal suggestion is ignored and the search runs.
	eng.SetSuggesters(&fixedSuggester{move: board.NewDrop(board.Rook, board.SquareAt(5, 5))})
	res, err = eng.GetBestMove(pos, 2, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceSearch {
		t.Errorf("illegal suggestion was accepted")
	}

	eng.SetUseSuggesters(false)
	eng.SetSuggesters(accept)
	res, _ = eng.GetBestMove(pos, 1, 10*time.Second)
	if res.Source != SourceSearch {
		t.Errorf("suggesters consulted while disabled")
	}
}

func TestOnInfoReportsEveryDepth(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(8)

	var depths []int
	eng.OnInfo = func(info SearchInfo) {
		depths = append(depths, info.Depth)
		if len(info.PV) == 0 {
			t.Errorf("depth %d reported an empty PV", info.Depth)
		}
	}
	if _, err := eng.GetBestMove(pos, 3, time.Minute); err != nil {
		t.Fatal(err)
	}
	if len(depths) != 3 || depths[0] != 1 || depths[2] != 3 {
		t.Errorf("OnInfo depths = %v, want [1 2 3]", depths)
	}
}

func TestDifficultyPresets(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(8)
	eng.SetDifficulty(Easy)

	res, err := eng.Search(pos)
	if err != nil && !errors.Is(err, ErrInsufficientTime) {
		t.Fatal(err)
	}
	if res.Move == board.NoMove {
		t.Error("Search returned NoMove for starting position")
	}
	if res.Depth > DifficultySettings[Easy].Depth {
		t.Errorf("Easy searched to depth %d", res.Depth)
	}

	for _, name := range []string{"easy", "Medium", "HARD"} {
		if _, err := ParseDifficulty(name); err != nil {
			t.Errorf("ParseDifficulty(%q): %v", name, err)
		}
	}
	if _, err := ParseDifficulty("grandmaster"); err == nil {
		t.Error("ParseDifficulty accepted an unknown name")
	}
}

func TestScoreToString(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "0.00"},
		{153, "1.53"},
		{-7, "-0.07"},
		{MateScore - 1, "Mate in 1"},
		{MateScore - 3, "Mate in 2"},
		{-MateScore + 2, "Mated in 1"},
	}
	for _, tc := range tests {
		if got := ScoreToString(tc.score); got != tc.want {
			t.Errorf("ScoreToString(%d) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestPawnHashTable(t *testing.T) {
	pt := NewPawnTable(1) // 1MB

	pos := board.NewPosition()

	if _, found := pt.Probe(pos.PawnKey); found {
		t.Error("Expected cache miss on first probe")
	}

	pt.Store(pos.PawnKey, -15)
	score, found := pt.Probe(pos.PawnKey)
	if !found || score != -15 {
		t.Errorf("Probe = %d, %v; want -15, true", score, found)
	}

	oldKey := pos.PawnKey
	move := board.NewMove(board.SquareAt(7, 7), board.SquareAt(7, 6))
	undo := pos.MakeMove(move)
	if pos.PawnKey == oldKey {
		t.Error("PawnKey should change when pawn moves")
	}
	pos.UnmakeMove(move, undo)
	if pos.PawnKey != oldKey {
		t.Error("PawnKey should be restored on unmake")
	}

	// The cached term must match a direct computation.
	cached := EvaluateWithPawnTable(pos, NewPawnTable(1))
	if direct := Evaluate(pos); cached != direct {
		t.Errorf("cached eval %d, direct %d", cached, direct)
	}

	pt.Clear()
	if _, found := pt.Probe(pos.PawnKey); found {
		t.Error("Clear left entries behind")
	}
}

func TestPerft(t *testing.T) {
	eng := NewEngine(1)
	if got := eng.Perft(board.NewPosition(), 2); got != 900 {
		t.Errorf("Perft(2) = %d, want 900", got)
	}
}
