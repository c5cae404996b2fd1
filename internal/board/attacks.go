package board

// Pre-computed attack tables for the stepping part of each piece's movement.
// Lance, Bishop and Rook are pure sliders and have empty step entries; Horse
// and Dragon carry their one-square king-like extras here.
var (
	stepAttacks [2][NumPieceTypes][NumSquares]Bitboard // [Color][PieceType][Square]

	// Squares strictly between two aligned squares (rank, file or diagonal).
	betweenBB [NumSquares][NumSquares]Bitboard
)

type offset struct{ dc, dr int }

var (
	orthogonal = []offset{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}
	diagonal   = []offset{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
)

func init() {
	initStepAttacks()
	initBetweenBB()
}

// stepOffsets returns the single-step offsets for pt moving as color c.
// f is the forward rank delta.
func stepOffsets(pt PieceType, c Color) []offset {
	f := c.Forward()
	switch {
	case pt == Pawn:
		return []offset{{0, f}}
	case pt == Knight:
		return []offset{{-1, 2 * f}, {1, 2 * f}}
	case pt == Silver:
		return []offset{{-1, f}, {0, f}, {1, f}, {-1, -f}, {1, -f}}
	case pt.MovesLikeGold():
		return []offset{{-1, f}, {0, f}, {1, f}, {-1, 0}, {1, 0}, {0, -f}}
	case pt == King:
		return append(append([]offset{}, orthogonal...), diagonal...)
	case pt == Horse:
		return orthogonal
	case pt == Dragon:
		return diagonal
	}
	return nil
}

func initStepAttacks() {
	for c := Black; c <= White; c++ {
		for pt := Pawn; pt < NoPieceType; pt++ {
			offsets := stepOffsets(pt, c)
			for sq := Square(0); sq < NoSquare; sq++ {
				var attacks Bitboard
				for _, o := range offsets {
					col, rank := sq.Col()+o.dc, sq.Rank()+o.dr
					if onBoard(col, rank) {
						attacks = attacks.Set(NewSquare(col, rank))
					}
				}
				stepAttacks[c][pt][sq] = attacks
			}
		}
	}
}

func initBetweenBB() {
	for sq1 := Square(0); sq1 < NoSquare; sq1++ {
		for sq2 := Square(0); sq2 < NoSquare; sq2++ {
			if sq1 == sq2 {
				continue
			}

			dc := sq2.Col() - sq1.Col()
			dr := sq2.Rank() - sq1.Rank()

			// Only aligned squares have a between set
			if dc != 0 && dr != 0 && abs(dc) != abs(dr) {
				continue
			}

			sc, sr := sign(dc), sign(dr)
			var between Bitboard
			col, rank := sq1.Col()+sc, sq1.Rank()+sr
			for NewSquare(col, rank) != sq2 {
				between = between.Set(NewSquare(col, rank))
				col += sc
				rank += sr
			}
			betweenBB[sq1][sq2] = between
		}
	}
}

func onBoard(col, rank int) bool {
	return col >= 0 && col < 9 && rank >= 0 && rank < 9
}

func sign(x int) int {
	if x > 0 {
		return 1
	}
	if x < 0 {
		return -1
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// slide walks from sq in each direction until the edge or the first
// occupied square, which is included.
func slide(sq Square, occupied Bitboard, dirs []offset) Bitboard {
	var attacks Bitboard
	for _, d := range dirs {
		col, rank := sq.Col()+d.dc, sq.Rank()+d.dr
		for onBoard(col, rank) {
			to := NewSquare(col, rank)
			attacks = attacks.Set(to)
			if occupied.IsSet(to) {
				break
			}
			col += d.dc
			rank += d.dr
		}
	}
	return attacks
}

// StepAttacks returns the one-step attack set of a piece of type pt and color c.
func StepAttacks(c Color, pt PieceType, sq Square) Bitboard {
	return stepAttacks[c][pt][sq]
}

// LanceAttacks returns the forward ray of a lance of color c.
func LanceAttacks(c Color, sq Square, occupied Bitboard) Bitboard {
	return slide(sq, occupied, []offset{{0, c.Forward()}})
}

// BishopAttacks returns the diagonal rays from sq with given occupancy.
func BishopAttacks(sq Square, occupied Bitboard) Bitboard {
	return slide(sq, occupied, diagonal)
}

// RookAttacks returns the orthogonal rays from sq with given occupancy.
func RookAttacks(sq Square, occupied Bitboard) Bitboard {
	return slide(sq, occupied, orthogonal)
}

// PieceAttacks returns every square a piece of type pt and color c on sq
// attacks, given the board occupancy.
func PieceAttacks(c Color, pt PieceType, sq Square, occupied Bitboard) Bitboard {
	switch pt {
	case Lance:
		return LanceAttacks(c, sq, occupied)
	case Bishop:
		return BishopAttacks(sq, occupied)
	case Rook:
		return RookAttacks(sq, occupied)
	case Horse:
		return BishopAttacks(sq, occupied).Or(stepAttacks[c][Horse][sq])
	case Dragon:
		return RookAttacks(sq, occupied).Or(stepAttacks[c][Dragon][sq])
	}
	return stepAttacks[c][pt][sq]
}

// Between returns the bitboard of squares strictly between two squares.
// Returns empty if squares are not aligned.
func Between(sq1, sq2 Square) Bitboard {
	return betweenBB[sq1][sq2]
}

// goldMovers returns color c's gold and gold-moving promoted pieces.
func (p *Position) goldMovers(c Color) Bitboard {
	return p.Pieces[c][Gold].Or(p.Pieces[c][ProPawn]).Or(p.Pieces[c][ProLance]).
		Or(p.Pieces[c][ProKnight]).Or(p.Pieces[c][ProSilver])
}

// AttackersByColor returns a bitboard of pieces of the given color attacking a square.
// Step attacks are looked up from the square's point of view with the
// opposite color's table; every shogi step set is symmetric under that swap.
func (p *Position) AttackersByColor(sq Square, c Color, occupied Bitboard) Bitboard {
	enemy := c.Other()
	pc := &p.Pieces[c]

	attackers := stepAttacks[enemy][Pawn][sq].And(pc[Pawn])
	attackers = attackers.Or(stepAttacks[enemy][Knight][sq].And(pc[Knight]))
	attackers = attackers.Or(stepAttacks[enemy][Silver][sq].And(pc[Silver]))
	attackers = attackers.Or(stepAttacks[enemy][Gold][sq].And(p.goldMovers(c)))
	attackers = attackers.Or(stepAttacks[enemy][King][sq].And(pc[King].Or(pc[Horse]).Or(pc[Dragon])))

	if pc[Lance].More() {
		attackers = attackers.Or(LanceAttacks(enemy, sq, occupied).And(pc[Lance]))
	}
	if diag := pc[Bishop].Or(pc[Horse]); diag.More() {
		attackers = attackers.Or(BishopAttacks(sq, occupied).And(diag))
	}
	if orth := pc[Rook].Or(pc[Dragon]); orth.More() {
		attackers = attackers.Or(RookAttacks(sq, occupied).And(orth))
	}
	return attackers
}

// AttackersTo returns a bitboard of all pieces attacking a square.
func (p *Position) AttackersTo(sq Square, occupied Bitboard) Bitboard {
	return p.AttackersByColor(sq, Black, occupied).Or(p.AttackersByColor(sq, White, occupied))
}

// IsSquareAttacked returns true if the square is attacked by the given color.
func (p *Position) IsSquareAttacked(sq Square, byColor Color) bool {
	return p.AttackersByColor(sq, byColor, p.AllOccupied).More()
}

// UpdateCheckers updates the Checkers bitboard for the side to move.
func (p *Position) UpdateCheckers() {
	us := p.SideToMove
	if p.Pieces[us][King].IsEmpty() {
		p.Checkers = Empty
		return
	}
	p.Checkers = p.AttackersByColor(p.KingSquare[us], us.Other(), p.AllOccupied)
}
