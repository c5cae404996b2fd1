package engine

// PawnEntry stores a cached pawn structure score (Black's point of view).
type PawnEntry struct {
	Key   uint64
	Score int16
	Used  bool
}

// PawnTable is a hash table for caching pawn structure evaluations, keyed by
// Position.PawnKey.
type PawnTable struct {
	entries []PawnEntry
	mask    uint64
}

// NewPawnTable creates a new pawn hash table with the given size in MB.
func NewPawnTable(sizeMB int) *PawnTable {
	// Each entry is 16 bytes once padded
	entrySize := 16
	numEntries := (sizeMB * 1024 * 1024) / entrySize

	// Round down to power of 2
	size := 1
	for size*2 <= numEntries {
		size *= 2
	}

	return &PawnTable{
		entries: make([]PawnEntry, size),
		mask:    uint64(size - 1),
	}
}

// Probe looks up a pawn structure score.
func (pt *PawnTable) Probe(key uint64) (score int, found bool) {
	entry := &pt.entries[key&pt.mask]
	if entry.Used && entry.Key == key {
		return int(entry.Score), true
	}
	return 0, false
}

// Store saves a pawn structure score, always replacing the slot.
func (pt *PawnTable) Store(key uint64, score int) {
	entry := &pt.entries[key&pt.mask]
	entry.Key = key
	entry.Score = int16(score)
	entry.Used = true
}

// Clear clears the pawn hash table.
func (pt *PawnTable) Clear() {
	clear(pt.entries)
}
