package board

// Zobrist hash keys for position hashing.
// Uses PRNG with fixed seed for reproducibility.
var (
	zobristPiece      [2][NumPieceTypes][NumSquares]uint64 // [Color][PieceType][Square]
	zobristHand       [2][NumHandTypes][19]uint64          // [Color][HandType][Count], count 0 is zero
	zobristSideToMove uint64                               // XOR when White to move
)

func init() {
	initZobrist()
}

// Simple PRNG for reproducible Zobrist keys
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func initZobrist() {
	rng := newPRNG(0x5A0C1E7D2B9F4631)

	for c := Black; c <= White; c++ {
		for pt := Pawn; pt < NoPieceType; pt++ {
			for sq := Square(0); sq < NoSquare; sq++ {
				zobristPiece[c][pt][sq] = rng.next()
			}
		}
	}

	// One key per (color, type, count). Count 0 stays zero so an empty
	// hand contributes nothing.
	for c := Black; c <= White; c++ {
		for pt := 0; pt < NumHandTypes; pt++ {
			for n := 1; n <= MaxHandCount[pt]; n++ {
				zobristHand[c][pt][n] = rng.next()
			}
		}
	}

	zobristSideToMove = rng.next()
}

// ZobristPiece returns the Zobrist key for a piece on a square.
func ZobristPiece(c Color, pt PieceType, sq Square) uint64 {
	return zobristPiece[c][pt][sq]
}

// ZobristHand returns the Zobrist key for holding n pieces of type pt.
func ZobristHand(c Color, pt PieceType, n int) uint64 {
	return zobristHand[c][pt][n]
}

// ZobristSideToMove returns the Zobrist key for side to move.
func ZobristSideToMove() uint64 {
	return zobristSideToMove
}

// ComputeHash recomputes the hash of pos from scratch. The incremental
// hash maintained by MakeMove must always equal this.
func ComputeHash(pos *Position) uint64 {
	var h uint64
	for sq := Square(0); sq < NoSquare; sq++ {
		p := pos.PieceAt(sq)
		if p != NoPiece {
			h ^= zobristPiece[p.Color()][p.Type()][sq]
		}
	}
	for c := Black; c <= White; c++ {
		for pt := 0; pt < NumHandTypes; pt++ {
			h ^= zobristHand[c][pt][pos.Hands[c][pt]]
		}
	}
	if pos.SideToMove == White {
		h ^= zobristSideToMove
	}
	return h
}

// ComputePawnKey recomputes the pawn-structure key of pos from scratch.
func ComputePawnKey(pos *Position) uint64 {
	var h uint64
	for c := Black; c <= White; c++ {
		bb := pos.Pieces[c][Pawn]
		for bb.More() {
			h ^= zobristPiece[c][Pawn][bb.PopLSB()]
		}
	}
	return h
}
