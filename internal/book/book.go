// Package book implements the opening book consulted before search.
package book

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"lukechampine.com/frand"

	"github.com/hailam/shogiplay/internal/board"
	"github.com/hailam/shogiplay/internal/engine"
	"github.com/hailam/shogiplay/internal/storage"
)

// BookEntry represents a single book entry.
type BookEntry struct {
	Move   board.Move
	Weight uint32
}

// Book represents an opening book keyed by position hash.
type Book struct {
	entries map[uint64][]BookEntry

	// Best makes Suggest play the heaviest move instead of a weighted pick.
	Best bool
}

// New creates an empty book.
func New() *Book {
	return &Book{
		entries: make(map[uint64][]BookEntry),
	}
}

// Add records move with weight for pos. The move must be legal; adding a
// move already present replaces its weight.
func (b *Book) Add(pos *board.Position, move board.Move, weight uint32) error {
	if !pos.GenerateLegalMoves().Contains(move) {
		return fmt.Errorf("%w: %s in %s", board.ErrIllegalMove, move, pos.SFEN())
	}
	b.add(pos.Hash, move, weight)
	return nil
}

func (b *Book) add(hash uint64, move board.Move, weight uint32) {
	entries := b.entries[hash]
	for i := range entries {
		if entries[i].Move == move {
			entries[i].Weight = weight
			return
		}
	}
	b.entries[hash] = append(entries, BookEntry{Move: move, Weight: weight})
}

// LoadText reads a book in text form. Each non-empty line that does not
// start with '#' reads
//
//	<sfen|startpos> [moves m1 m2 ...] | <move> [weight]
//
// The weight defaults to 1.
func LoadText(r io.Reader) (*Book, error) {
	book := New()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := book.addLine(line); err != nil {
			return nil, fmt.Errorf("book line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return book, nil
}

// LoadFile loads a text book from a file.
func LoadFile(filename string) (*Book, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadText(file)
}

func (b *Book) addLine(line string) error {
	posPart, movePart, ok := strings.Cut(line, "|")
	if !ok {
		return fmt.Errorf("missing '|' separator")
	}
	pos, err := board.ParsePositionCommand(posPart)
	if err != nil {
		return err
	}

	fields := strings.Fields(movePart)
	if len(fields) == 0 || len(fields) > 2 {
		return fmt.Errorf("expected '<move> [weight]', got %q", strings.TrimSpace(movePart))
	}
	move, err := board.ParseMove(fields[0], pos)
	if err != nil {
		return err
	}
	weight := uint64(1)
	if len(fields) == 2 {
		weight, err = strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return fmt.Errorf("bad weight %q: %w", fields[1], err)
		}
	}
	return b.Add(pos, move, uint32(weight))
}

// WriteText writes the book in the LoadText format, one line per move.
// Positions are written as SFEN, so the output does not depend on how a
// position was first reached.
func (b *Book) WriteText(w io.Writer, positions []*board.Position) error {
	bw := bufio.NewWriter(w)
	for _, pos := range positions {
		for _, e := range b.ProbeAll(pos) {
			if _, err := fmt.Fprintf(bw, "%s | %s %d\n", pos.SFEN(), e.Move, e.Weight); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Save writes every entry to the persistent book store.
func (b *Book) Save(bs *storage.BookStore) error {
	var recs []storage.BookRecord
	for hash, entries := range b.entries {
		for _, e := range entries {
			recs = append(recs, storage.BookRecord{Hash: hash, Move: e.Move, Weight: e.Weight})
		}
	}
	return bs.PutBookEntries(recs)
}

// LoadStore reads a book from the persistent book store. Moves are checked
// for legality when probed, since the store only keeps hashes.
func LoadStore(bs *storage.BookStore) (*Book, error) {
	book := New()
	err := bs.ForEachBookEntry(func(rec storage.BookRecord) error {
		book.add(rec.Hash, rec.Move, rec.Weight)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return book, nil
}

// legalEntries returns the legal book moves for pos, heaviest first.
func (b *Book) legalEntries(pos *board.Position) []BookEntry {
	if b == nil {
		return nil
	}
	entries, ok := b.entries[pos.Hash]
	if !ok || len(entries) == 0 {
		return nil
	}

	legal := pos.GenerateLegalMoves()
	result := make([]BookEntry, 0, len(entries))
	for _, e := range entries {
		if legal.Contains(e.Move) {
			result = append(result, e)
		}
	}

	// Sort by weight (highest first) for deterministic ordering
	slices.SortStableFunc(result, func(x, y BookEntry) int {
		if x.Weight != y.Weight {
			if x.Weight > y.Weight {
				return -1
			}
			return 1
		}
		return int(x.Move) - int(y.Move)
	})
	return result
}

// Probe looks up a position in the book and returns a move using weighted
// random selection.
func (b *Book) Probe(pos *board.Position) (board.Move, bool) {
	entries := b.legalEntries(pos)
	if len(entries) == 0 {
		return board.NoMove, false
	}

	total := uint64(0)
	for _, e := range entries {
		total += uint64(e.Weight)
	}
	if total == 0 {
		// All weights are 0, just pick the first
		return entries[0].Move, true
	}

	r := frand.Uint64n(total)
	cumulative := uint64(0)
	for _, e := range entries {
		cumulative += uint64(e.Weight)
		if r < cumulative {
			return e.Move, true
		}
	}
	return entries[0].Move, true
}

// ProbeBest returns the legal book move with the highest weight.
func (b *Book) ProbeBest(pos *board.Position) (board.Move, bool) {
	entries := b.legalEntries(pos)
	if len(entries) == 0 {
		return board.NoMove, false
	}
	return entries[0].Move, true
}

// ProbeAll returns all legal book moves for the position, sorted by weight.
func (b *Book) ProbeAll(pos *board.Position) []BookEntry {
	return b.legalEntries(pos)
}

// Suggest implements engine.Suggester.
func (b *Book) Suggest(pos *board.Position) (engine.Suggestion, bool) {
	probe := b.Probe
	if b.Best {
		probe = b.ProbeBest
	}
	move, ok := probe(pos)
	if !ok {
		return engine.Suggestion{}, false
	}
	return engine.Suggestion{Move: move, Source: engine.SourceBook}, true
}

// Size returns the number of unique positions in the book.
func (b *Book) Size() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
