package board

import (
	"math/rand"
	"testing"
)

func TestZobristHandKeysStartAtZero(t *testing.T) {
	for c := Black; c <= White; c++ {
		for _, pt := range HandTypes {
			if ZobristHand(c, pt, 0) != 0 {
				t.Errorf("%v %v: empty-hand key must be zero", c, pt)
			}
			if ZobristHand(c, pt, 1) == 0 {
				t.Errorf("%v %v: key for one piece is zero", c, pt)
			}
		}
	}
}

func TestStartPositionHash(t *testing.T) {
	a := NewPosition()
	b := NewPosition()
	if a.Hash != b.Hash || a.Hash != ComputeHash(a) {
		t.Errorf("start hash not reproducible")
	}

	c := a.Copy()
	c.MakeMove(NewMove(SquareAt(7, 7), SquareAt(7, 6)))
	if c.Hash == a.Hash {
		t.Errorf("hash did not change after a move")
	}
	if a.Ply() != 0 {
		t.Errorf("copy shares history with the original")
	}
}

// TestMakeUnmakeRestoresState plays 10,000 random legal moves from varied
// starting positions, checking the incremental hash after every make and the
// exact restoration of board, hands and hash after every unmake.
func TestMakeUnmakeRestoresState(t *testing.T) {
	starts := []string{
		StartSFEN,
		"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
		"ln1g5/1ks1g3l/1pp2+Bpp1/p2pp4/7Pp/P1PP1P3/1PS1P1P2/1KG6/LN1G3rL b BSNPsnp 59",
		"4k4/9/9/9/9/9/9/9/4K4 b RB2G2S2N2L9Prb2g2s2n2l9p 1",
	}
	rng := rand.New(rand.NewSource(42))

	total := 10000
	if testing.Short() {
		total = 2000
	}

	played := 0
	for played < total {
		pos, err := ParseSFEN(starts[played%len(starts)])
		if err != nil {
			t.Fatal(err)
		}

		type frame struct {
			m    Move
			undo UndoInfo
			sfen string
			hash uint64
			pawn uint64
		}
		var stack []frame

		for ply := 0; ply < 120 && played < total; ply++ {
			legal := pos.GenerateLegalMoves()
			if legal.Len() == 0 {
				break
			}
			m := legal.Get(rng.Intn(legal.Len()))
			f := frame{m: m, sfen: pos.SFEN(), hash: pos.Hash, pawn: pos.PawnKey}
			f.undo = pos.MakeMove(m)
			stack = append(stack, f)
			played++

			if pos.Hash != ComputeHash(pos) {
				t.Fatalf("after %s from %s: incremental hash differs from recomputed", m, f.sfen)
			}
			if pos.PawnKey != ComputePawnKey(pos) {
				t.Fatalf("after %s from %s: pawn key differs from recomputed", m, f.sfen)
			}

			// Occasionally step back and forth to exercise unmake mid-game
			if rng.Intn(4) == 0 {
				last := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				pos.UnmakeMove(last.m, last.undo)
				checkRestored(t, pos, last.sfen, last.hash, last.pawn)
			}
		}

		for i := len(stack) - 1; i >= 0; i-- {
			pos.UnmakeMove(stack[i].m, stack[i].undo)
			checkRestored(t, pos, stack[i].sfen, stack[i].hash, stack[i].pawn)
		}
		if pos.Ply() != 0 {
			t.Fatalf("history not unwound: ply %d", pos.Ply())
		}
	}
}

func checkRestored(t *testing.T, pos *Position, sfen string, hash, pawn uint64) {
	t.Helper()
	if got := pos.SFEN(); got != sfen {
		t.Fatalf("unmake restored %s, want %s", got, sfen)
	}
	if pos.Hash != hash || pos.PawnKey != pawn {
		t.Fatalf("unmake restored hash %016x/%016x, want %016x/%016x", pos.Hash, pos.PawnKey, hash, pawn)
	}
}

func TestNullMoveRestoresHash(t *testing.T) {
	pos := NewPosition()
	hash := pos.Hash

	undo := pos.MakeNullMove()
	if pos.SideToMove != White || pos.Hash == hash || pos.Hash != ComputeHash(pos) {
		t.Fatalf("null move did not flip side and hash")
	}
	pos.UnmakeNullMove(undo)
	if pos.SideToMove != Black || pos.Hash != hash || pos.Ply() != 0 {
		t.Errorf("null move not undone")
	}
}

func TestHandCountsAffectHash(t *testing.T) {
	one, err := ParseSFEN("4k4/9/9/9/9/9/9/9/4K4 b P 1")
	if err != nil {
		t.Fatal(err)
	}
	two, err := ParseSFEN("4k4/9/9/9/9/9/9/9/4K4 b 2P 1")
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := ParseSFEN("4k4/9/9/9/9/9/9/9/4K4 b p 1")
	if err != nil {
		t.Fatal(err)
	}
	if one.Hash == two.Hash || one.Hash == theirs.Hash {
		t.Errorf("hand contents must change the hash")
	}
}
