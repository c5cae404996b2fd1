package board

// Perft counts the leaf nodes of the legal move tree to the given depth.
// This is the standard way to verify move generation correctness.
func (p *Position) Perft(depth int) int64 {
	if depth == 0 {
		return 1
	}

	moves := p.GenerateLegalMoves()
	if depth == 1 {
		return int64(moves.Len())
	}

	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := p.MakeMove(m)
		nodes += p.Perft(depth - 1)
		p.UnmakeMove(m, undo)
	}
	return nodes
}

// PerftDivide returns the perft count below each root move, keyed by USI token.
func (p *Position) PerftDivide(depth int) map[string]int64 {
	result := make(map[string]int64)
	if depth < 1 {
		return result
	}

	moves := p.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := p.MakeMove(m)
		result[m.String()] = p.Perft(depth - 1)
		p.UnmakeMove(m, undo)
	}
	return result
}
