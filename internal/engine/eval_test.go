package engine

import (
	"strings"
	"testing"
	"unicode"

	"github.com/hailam/shogiplay/internal/board"
)

// rotateSFEN turns the board 180 degrees and swaps the colors, giving the
// same position seen from the other side.
func rotateSFEN(t *testing.T, sfen string) string {
	t.Helper()
	fields := strings.Fields(sfen)
	if len(fields) < 3 {
		t.Fatalf("short sfen %q", sfen)
	}

	ranks := strings.Split(fields[0], "/")
	rotated := make([]string, len(ranks))
	for i, rank := range ranks {
		var tokens []string
		for j := 0; j < len(rank); j++ {
			if rank[j] == '+' {
				tokens = append(tokens, rank[j:j+2])
				j++
				continue
			}
			tokens = append(tokens, rank[j:j+1])
		}
		var sb strings.Builder
		for k := len(tokens) - 1; k >= 0; k-- {
			sb.WriteString(swapCase(tokens[k]))
		}
		rotated[len(ranks)-1-i] = sb.String()
	}

	side := "w"
	if fields[1] == "w" {
		side = "b"
	}
	hands := fields[2]
	if hands != "-" {
		hands = swapCase(hands)
	}
	out := []string{strings.Join(rotated, "/"), side, hands}
	return strings.Join(append(out, fields[3:]...), " ")
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsUpper(r) {
			return unicode.ToLower(r)
		}
		return unicode.ToUpper(r)
	}, s)
}

func TestEvaluateStartPosition(t *testing.T) {
	pos := board.NewPosition()
	if got := Evaluate(pos); got != tempoBonus {
		t.Errorf("Evaluate(start) = %d, want %d", got, tempoBonus)
	}
	if got := EvaluateMaterial(pos); got != 0 {
		t.Errorf("EvaluateMaterial(start) = %d, want 0", got)
	}
}

func TestEvaluateRotationSymmetry(t *testing.T) {
	positions := []string{
		board.StartSFEN,
		"lnsgkgsnl/1r5b1/pppppp1pp/6p2/9/2P6/PP1PPPPPP/1B5R1/LNSGKGSNL b - 3",
		"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
		"ln1g5/1ks1g3l/1pp2+Bpp1/p2pp4/7Pp/P1PP1P3/1PS1P1P2/1KG6/LN1G3rL b BSNPsnp 59",
		"4k4/9/4P4/9/9/9/9/9/4K4 b G 1",
	}
	for _, sfen := range positions {
		pos := mustParse(t, sfen)
		rot := mustParse(t, rotateSFEN(t, sfen))
		if a, b := Evaluate(pos), Evaluate(rot); a != b {
			t.Errorf("%s: eval %d, rotated eval %d", sfen, a, b)
		}
		if a, b := EvaluateMaterial(pos), EvaluateMaterial(rot); a != b {
			t.Errorf("%s: material %d, rotated material %d", sfen, a, b)
		}
	}
}

func TestPieceSquareTablesAreFileSymmetric(t *testing.T) {
	for pt, table := range psts {
		if table == nil {
			continue
		}
		for rank := 0; rank < 9; rank++ {
			for col := 0; col < 9; col++ {
				a := table[board.NewSquare(col, rank)]
				b := table[board.NewSquare(8-col, rank)]
				if a != b {
					t.Errorf("%v: row %d col %d = %d, mirrored = %d", board.PieceType(pt), rank, col, a, b)
				}
			}
		}
	}
}

func TestEvaluateSideToMoveFlipsSign(t *testing.T) {
	black := mustParse(t, "4k4/9/9/9/9/9/9/9/4K4 b R 1")
	white := mustParse(t, "4k4/9/9/9/9/9/9/9/4K4 w R 1")

	b, w := Evaluate(black), Evaluate(white)
	if b <= 0 || w >= 0 {
		t.Errorf("rook in Black's hand: black-to-move %d, white-to-move %d", b, w)
	}
	if b-tempoBonus != -(w - tempoBonus) {
		t.Errorf("scores are not mirrored around the tempo bonus: %d vs %d", b, w)
	}
}

func TestEvaluatePawnTableMatchesDirect(t *testing.T) {
	pt := NewPawnTable(1)
	for _, sfen := range []string{
		board.StartSFEN,
		"ln1g5/1ks1g3l/1pp2+Bpp1/p2pp4/7Pp/P1PP1P3/1PS1P1P2/1KG6/LN1G3rL b BSNPsnp 59",
	} {
		pos := mustParse(t, sfen)
		want := Evaluate(pos)
		for i := 0; i < 2; i++ {
			if got := EvaluateWithPawnTable(pos, pt); got != want {
				t.Errorf("%s pass %d: cached eval %d, direct %d", sfen, i, got, want)
			}
		}
	}
}

func TestClampEval(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0},
		{MaxEvalScore + 5, MaxEvalScore},
		{-MaxEvalScore - 5, -MaxEvalScore},
		{123, 123},
	}
	for _, tc := range tests {
		if got := clampEval(tc.in); got != tc.want {
			t.Errorf("clampEval(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSEE(t *testing.T) {
	pawn := board.PieceValue[board.Pawn]
	rook := board.PieceValue[board.Rook]

	tests := []struct {
		name string
		sfen string
		move string
		want int
	}{
		{"undefended pawn", "8k/9/9/4p4/4P4/9/9/9/K8 b - 1", "5e5d", pawn},
		{"pawn for pawn", "8k/9/4g4/4p4/4P4/9/9/9/K8 b - 1", "5e5d", 0},
		{"rook for pawn", "8k/9/4g4/4p4/9/9/9/4R4/K8 b - 1", "5h5d", pawn - rook},
		{"drop", "8k/9/9/9/9/9/9/9/K8 b P 1", "P*5e", 0},
		{"quiet move", "8k/9/9/9/9/9/9/4R4/K8 b - 1", "5h5d", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos := mustParse(t, tc.sfen)
			m, err := board.ParseMove(tc.move, pos)
			if err != nil {
				t.Fatal(err)
			}
			if got := SEE(pos, m); got != tc.want {
				t.Errorf("SEE(%s) = %d, want %d", tc.move, got, tc.want)
			}
		})
	}
}

func TestKingZone(t *testing.T) {
	center := board.SquareAt(5, 5)
	if got := kingZone[center].PopCount(); got != 24 {
		t.Errorf("zone around 5e has %d squares, want 24", got)
	}
	if kingZone[center].IsSet(center) {
		t.Error("king zone contains the king square")
	}
	corner := board.SquareAt(9, 9)
	if got := kingZone[corner].PopCount(); got != 8 {
		t.Errorf("zone around 9i has %d squares, want 8", got)
	}
}
