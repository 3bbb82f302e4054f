package opponent

// pawnEntry caches a pawn-structure evaluation keyed by pawn hash.
type pawnEntry struct {
	Key     uint64
	MgScore int16
	EgScore int16
}

// pawnTable avoids recomputing passed-pawn evaluation for positions
// that share a pawn skeleton across plies of the same search.
type pawnTable struct {
	entries []pawnEntry
	mask    uint64
}

func newPawnTable(sizeMB int) *pawnTable {
	entrySize := 12
	numEntries := (sizeMB * 1024 * 1024) / entrySize

	size := 1
	for size*2 <= numEntries {
		size *= 2
	}
	if size < 1 {
		size = 1
	}

	return &pawnTable{
		entries: make([]pawnEntry, size),
		mask:    uint64(size - 1),
	}
}

func (pt *pawnTable) probe(key uint64) (mg, eg int, found bool) {
	entry := &pt.entries[key&pt.mask]
	if entry.Key == key {
		return int(entry.MgScore), int(entry.EgScore), true
	}
	return 0, 0, false
}

func (pt *pawnTable) store(key uint64, mg, eg int) {
	entry := &pt.entries[key&pt.mask]
	entry.Key = key
	entry.MgScore = int16(mg)
	entry.EgScore = int16(eg)
}
