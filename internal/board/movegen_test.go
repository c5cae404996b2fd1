package board

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	DebugMoveValidation = true
}

// naiveReaches reports whether a piece of type pt and color c on from could
// move to to on the given board, derived directly from the movement rules.
func naiveReaches(pos *Position, c Color, pt PieceType, from, to Square) bool {
	dc := to.Col() - from.Col()
	dr := to.Rank() - from.Rank()
	fwd := dr * c.Forward() // positive = toward the opponent
	adc, adr := abs(dc), abs(dr)

	pathClear := func() bool {
		sc, sr := sign(dc), sign(dr)
		col, rank := from.Col()+sc, from.Rank()+sr
		for NewSquare(col, rank) != to {
			if !pos.IsEmpty(NewSquare(col, rank)) {
				return false
			}
			col += sc
			rank += sr
		}
		return true
	}
	kingStep := adc <= 1 && adr <= 1 && (adc+adr > 0)
	bishopLine := adc == adr && adc > 0 && pathClear()
	rookLine := (dc == 0) != (dr == 0) && pathClear()

	switch pt {
	case Pawn:
		return dc == 0 && fwd == 1
	case Lance:
		return dc == 0 && fwd > 0 && pathClear()
	case Knight:
		return adc == 1 && fwd == 2
	case Silver:
		return (adc <= 1 && fwd == 1) || (adc == 1 && fwd == -1)
	case Gold, ProPawn, ProLance, ProKnight, ProSilver:
		return (adc <= 1 && fwd == 1) || (adc == 1 && dr == 0) || (dc == 0 && fwd == -1)
	case King:
		return kingStep
	case Bishop:
		return bishopLine
	case Rook:
		return rookLine
	case Horse:
		return bishopLine || kingStep
	case Dragon:
		return rookLine || kingStep
	}
	return false
}

func naiveAttacked(pos *Position, sq Square, by Color) bool {
	for from := Square(0); from < NoSquare; from++ {
		p := pos.PieceAt(from)
		if p != NoPiece && p.Color() == by && naiveReaches(pos, by, p.Type(), from, sq) {
			return true
		}
	}
	return false
}

func naiveKingSafe(pos *Position, c Color) bool {
	return !naiveAttacked(pos, pos.KingSquare[c], c.Other())
}

// bruteForceLegalMoves tries every origin/destination/drop combination and
// keeps those the rules allow.
func bruteForceLegalMoves(pos *Position) []Move {
	us := pos.SideToMove
	var candidates []Move

	for from := Square(0); from < NoSquare; from++ {
		p := pos.PieceAt(from)
		if p == NoPiece || p.Color() != us {
			continue
		}
		pt := p.Type()
		for to := Square(0); to < NoSquare; to++ {
			if q := pos.PieceAt(to); q != NoPiece && q.Color() == us {
				continue
			}
			if !naiveReaches(pos, us, pt, from, to) {
				continue
			}
			zone := from.RelativeRank(us) < 3 || to.RelativeRank(us) < 3
			promotable := pt == Pawn || pt == Lance || pt == Knight || pt == Silver || pt == Bishop || pt == Rook
			if promotable && zone {
				candidates = append(candidates, NewPromotion(from, to))
			}
			dead := ((pt == Pawn || pt == Lance) && to.RelativeRank(us) == 0) ||
				(pt == Knight && to.RelativeRank(us) <= 1)
			if !dead {
				candidates = append(candidates, NewMove(from, to))
			}
		}
	}

	for _, pt := range HandTypes {
		if pos.Hands[us][pt] == 0 {
			continue
		}
		for to := Square(0); to < NoSquare; to++ {
			if !pos.IsEmpty(to) {
				continue
			}
			rr := to.RelativeRank(us)
			if (pt == Pawn || pt == Lance) && rr == 0 || pt == Knight && rr <= 1 {
				continue
			}
			if pt == Pawn {
				nifu := false
				for rank := 0; rank < 9; rank++ {
					if pos.PieceAt(NewSquare(to.Col(), rank)) == NewPiece(Pawn, us) {
						nifu = true
					}
				}
				if nifu {
					continue
				}
			}
			candidates = append(candidates, NewDrop(pt, to))
		}
	}

	var legal []Move
	for _, m := range candidates {
		undo := pos.MakeMove(m)
		ok := naiveKingSafe(pos, us)
		if ok && m.IsDrop() && m.DropPiece() == Pawn {
			// Uchifu-zume: the dropped pawn may not deliver mate
			them := us.Other()
			if naiveAttacked(pos, pos.KingSquare[them], us) && pos.GenerateLegalMoves().Len() == 0 {
				ok = false
			}
		}
		pos.UnmakeMove(m, undo)
		if ok {
			legal = append(legal, m)
		}
	}
	return legal
}

func sortedStrings(moves []Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.String()
	}
	sort.Strings(out)
	return out
}

func compareMoveSets(t *testing.T, sfen string, got, want []Move) {
	t.Helper()
	g, w := sortedStrings(got), sortedStrings(want)
	gs := make(map[string]bool, len(g))
	for _, s := range g {
		gs[s] = true
	}
	ws := make(map[string]bool, len(w))
	for _, s := range w {
		ws[s] = true
	}
	for _, s := range w {
		if !gs[s] {
			t.Errorf("%s: generator missed %s", sfen, s)
		}
	}
	for _, s := range g {
		if !ws[s] {
			t.Errorf("%s: generator produced extra %s", sfen, s)
		}
	}
	if len(g) != len(w) {
		t.Errorf("%s: generator has %d moves, brute force %d", sfen, len(g), len(w))
	}
}

var bruteForceSFENs = []string{
	StartSFEN,
	"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
	"ln1g5/1ks1g3l/1pp2+Bpp1/p2pp4/7Pp/P1PP1P3/1PS1P1P2/1KG6/LN1G3rL b BSNPsnp 59",
	"4k4/9/4P4/9/9/9/9/9/4K4 b P 1",
	"8k/9/8P/9/9/9/9/9/K8 b GP 1",
	"k8/1r7/9/9/9/9/9/7B1/K7L w - 1",
	"3gkg3/9/9/9/9/9/9/9/4K4 b NL2P 1",
}

func TestGeneratorMatchesBruteForce(t *testing.T) {
	for _, sfen := range bruteForceSFENs {
		pos, err := ParseSFEN(sfen)
		if err != nil {
			t.Fatalf("ParseSFEN(%q): %v", sfen, err)
		}
		compareMoveSets(t, sfen, pos.GenerateLegalMoves().Slice(), bruteForceLegalMoves(pos))
	}
}

func TestGeneratorMatchesBruteForceOnRandomGames(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	games, plies := 6, 60
	if testing.Short() {
		games, plies = 2, 30
	}

	for g := 0; g < games; g++ {
		pos := NewPosition()
		for ply := 0; ply < plies; ply++ {
			legal := pos.GenerateLegalMoves()
			if ply%5 == 0 {
				compareMoveSets(t, pos.SFEN(), legal.Slice(), bruteForceLegalMoves(pos))
			}
			if legal.Len() == 0 {
				break
			}
			pos.MakeMove(legal.Get(rng.Intn(legal.Len())))
		}
	}
}

func TestGeneratedMovesNeverLeaveKingInCheck(t *testing.T) {
	for _, sfen := range bruteForceSFENs {
		pos, err := ParseSFEN(sfen)
		if err != nil {
			t.Fatal(err)
		}
		us := pos.SideToMove
		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			undo := pos.MakeMove(m)
			if !naiveKingSafe(pos, us) {
				t.Errorf("%s: %s leaves the king in check", sfen, m)
			}
			pos.UnmakeMove(m, undo)
		}
	}
}

func TestMandatoryPromotion(t *testing.T) {
	tests := []struct {
		name string
		sfen string
		from string
		to   string
	}{
		{"knight to second rank", "4k4/9/9/4N4/9/9/9/9/4K4 b - 1", "5d", "6b"},
		{"knight to third rank", "4k4/9/9/9/4N4/9/9/9/4K4 b - 1", "5e", "4c"},
		{"pawn to last rank", "4k4/P8/9/9/9/9/9/9/4K4 b - 1", "9b", "9a"},
		{"lance to last rank", "4k4/9/9/9/L8/9/9/9/4K4 b - 1", "9e", "9a"},
		{"white knight", "4k4/9/9/9/9/9/4n4/9/4K4 w - 1", "5g", "6i"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseSFEN(tc.sfen)
			if err != nil {
				t.Fatal(err)
			}
			from, _ := ParseSquare(tc.from)
			to, _ := ParseSquare(tc.to)
			legal := pos.GenerateLegalMoves()

			mustPromote := MustPromote(pos.SideToMove, pos.PieceAt(from).Type(), to)
			if legal.Contains(NewMove(from, to)) && mustPromote {
				t.Errorf("unpromoted %s%s generated", tc.from, tc.to)
			}
			if !legal.Contains(NewPromotion(from, to)) {
				t.Errorf("promoting %s%s+ missing", tc.from, tc.to)
			}
		})
	}
}

func TestKnightNeverUnpromotedOnLastTwoRanks(t *testing.T) {
	for _, sfen := range bruteForceSFENs {
		pos, err := ParseSFEN(sfen)
		if err != nil {
			t.Fatal(err)
		}
		us := pos.SideToMove
		moves := pos.GenerateLegalMoves()
		for i := 0; i < moves.Len(); i++ {
			m := moves.Get(i)
			if m.IsDrop() || m.IsPromotion() {
				continue
			}
			pt := pos.PieceAt(m.From()).Type()
			if MustPromote(us, pt, m.To()) {
				t.Errorf("%s: %s strands a %v", sfen, m, pt)
			}
		}
	}
}

func TestOptionalPromotion(t *testing.T) {
	pos, err := ParseSFEN("4k4/9/9/4S4/9/9/9/9/4K4 b - 1")
	if err != nil {
		t.Fatal(err)
	}
	from, to := SquareAt(5, 4), SquareAt(5, 3)
	legal := pos.GenerateLegalMoves()
	if !legal.Contains(NewMove(from, to)) || !legal.Contains(NewPromotion(from, to)) {
		t.Errorf("silver entering the zone should offer both 5d5c and 5d5c+")
	}

	// Leaving the zone still allows promotion
	pos, err = ParseSFEN("4k4/9/4S4/9/9/9/9/9/4K4 b - 1")
	if err != nil {
		t.Fatal(err)
	}
	if !pos.GenerateLegalMoves().Contains(NewPromotion(SquareAt(5, 3), SquareAt(4, 4))) {
		t.Errorf("silver leaving the zone should be able to promote")
	}

	// Gold never promotes
	pos, err = ParseSFEN("4k4/9/9/4G4/9/9/9/9/4K4 b - 1")
	if err != nil {
		t.Fatal(err)
	}
	if pos.GenerateLegalMoves().Contains(NewPromotion(SquareAt(5, 4), SquareAt(5, 3))) {
		t.Errorf("gold must not promote")
	}
}

func TestNifu(t *testing.T) {
	pos, err := ParseSFEN("4k4/9/9/9/9/9/2P6/9/4K4 b P 1")
	if err != nil {
		t.Fatal(err)
	}
	legal := pos.GenerateLegalMoves()

	for rank := 1; rank <= 9; rank++ {
		if legal.Contains(NewDrop(Pawn, SquareAt(7, rank))) {
			t.Errorf("pawn drop on file 7 (rank %d) allowed despite pawn on 7g", rank)
		}
	}
	if !legal.Contains(NewDrop(Pawn, SquareAt(6, 5))) {
		t.Errorf("pawn drop on 6e should be legal")
	}

	// A promoted pawn does not count
	pos, err = ParseSFEN("4k4/9/9/9/9/9/2+P6/9/4K4 b P 1")
	if err != nil {
		t.Fatal(err)
	}
	if !pos.GenerateLegalMoves().Contains(NewDrop(Pawn, SquareAt(7, 5))) {
		t.Errorf("tokin on file 7 must not block a pawn drop")
	}
}

func TestNifuRandomPositions(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for g := 0; g < 20; g++ {
		pos := NewPosition()
		for ply := 0; ply < 80; ply++ {
			legal := pos.GenerateLegalMoves()
			if legal.Len() == 0 {
				break
			}
			files := pos.pawnFiles(pos.SideToMove)
			for i := 0; i < legal.Len(); i++ {
				m := legal.Get(i)
				if m.IsDrop() && m.DropPiece() == Pawn && files.IsSet(m.To()) {
					t.Fatalf("%s: nifu drop %s generated", pos.SFEN(), m)
				}
			}
			pos.MakeMove(legal.Get(rng.Intn(legal.Len())))
		}
	}
}

func TestDeadSquareDrops(t *testing.T) {
	pos, err := ParseSFEN("4k4/9/9/9/9/9/9/9/4K4 b NLP 1")
	if err != nil {
		t.Fatal(err)
	}
	legal := pos.GenerateLegalMoves()
	for col := 0; col < 9; col++ {
		a, b := NewSquare(col, 0), NewSquare(col, 1)
		for _, pt := range []PieceType{Pawn, Lance, Knight} {
			if legal.Contains(NewDrop(pt, a)) {
				t.Errorf("%v drop on rank a allowed", pt)
			}
		}
		if legal.Contains(NewDrop(Knight, b)) {
			t.Errorf("knight drop on rank b allowed")
		}
	}
	if !legal.Contains(NewDrop(Lance, SquareAt(1, 2))) {
		t.Errorf("lance drop on 1b should be legal")
	}
}

func TestUchifuzume(t *testing.T) {
	// White king on 1a is boxed in by its own knight and silver, and the
	// black gold on 1c guards 1b, so P*1b would be mate.
	pos, err := ParseSFEN("7nk/7s1/8G/9/9/9/9/9/4K4 b P 1")
	if err != nil {
		t.Fatal(err)
	}
	drop := NewDrop(Pawn, SquareAt(1, 2))
	legal := pos.GenerateLegalMoves()
	if legal.Contains(drop) {
		t.Errorf("pawn drop mate P*1b generated")
	}
	if !legal.Contains(NewDrop(Pawn, SquareAt(2, 3))) {
		t.Errorf("ordinary pawn drop P*2c missing")
	}
	if got := bruteForceLegalMoves(pos); len(got) != legal.Len() {
		t.Errorf("brute force found %d moves, generator %d", len(got), legal.Len())
	}
}

func TestPawnDropCheckIsLegal(t *testing.T) {
	// Same shape without the gold: the king can capture the pawn.
	pos, err := ParseSFEN("7nk/7s1/9/9/9/9/9/9/4K4 b P 1")
	if err != nil {
		t.Fatal(err)
	}
	drop := NewDrop(Pawn, SquareAt(1, 2))
	if !pos.GenerateLegalMoves().Contains(drop) {
		t.Errorf("checking pawn drop P*1b missing")
	}
}

func TestCheckmateAndStalemate(t *testing.T) {
	// Gold on 5b supported by the pawn on 5c mates the king on 5a.
	mate, err := ParseSFEN("4k4/4G4/4P4/9/9/9/9/9/4K4 w - 1")
	if err != nil {
		t.Fatal(err)
	}
	if !mate.IsCheckmate() {
		t.Errorf("expected checkmate")
	}
	if mate.GameState() != Checkmate {
		t.Errorf("GameState = %v, want Checkmate", mate.GameState())
	}

	start := NewPosition()
	if start.IsCheckmate() || start.IsStalemate() {
		t.Errorf("start position is not terminal")
	}
}

func TestPlayRejectsIllegalMove(t *testing.T) {
	pos := NewPosition()
	before := pos.SFEN()
	hash := pos.Hash

	err := pos.Play(NewMove(SquareAt(7, 7), SquareAt(7, 5)))
	if err == nil {
		t.Fatal("7g7e accepted")
	}
	if pos.SFEN() != before || pos.Hash != hash || pos.Ply() != 0 {
		t.Errorf("position changed by rejected move")
	}

	if err := pos.Play(NewMove(SquareAt(7, 7), SquareAt(7, 6))); err != nil {
		t.Errorf("7g7f rejected: %v", err)
	}
}
