package opponent

import (
	"github.com/hailam/chessrl/internal/board"
)

// ttFlag indicates the type of bound stored in the transposition table.
type ttFlag uint8

const (
	ttExact      ttFlag = iota // exact score
	ttLowerBound               // failed high (beta cutoff)
	ttUpperBound               // failed low
)

// ttEntry is an entry in the transposition table.
type ttEntry struct {
	Key      uint32
	BestMove board.Move
	Score    int16
	Depth    int8
	Flag     ttFlag
	Age      uint8
}

// transpositionTable caches search results keyed by Zobrist hash, one
// per opponent instance so concurrent self-play games never share
// state across goroutines.
type transpositionTable struct {
	entries []ttEntry
	size    uint64
	mask    uint64
	age     uint8
}

func newTranspositionTable(sizeMB int) *transpositionTable {
	entrySize := uint64(12)
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}

	return &transpositionTable{
		entries: make([]ttEntry, numEntries),
		size:    numEntries,
		mask:    numEntries - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

func (tt *transpositionTable) probe(hash uint64) (ttEntry, bool) {
	entry := tt.entries[hash&tt.mask]
	if entry.Key == uint32(hash>>32) && entry.Depth > 0 {
		return entry, true
	}
	return ttEntry{}, false
}

func (tt *transpositionTable) store(hash uint64, depth, score int, flag ttFlag, bestMove board.Move) {
	entry := &tt.entries[hash&tt.mask]
	if entry.Age != tt.age || depth >= int(entry.Depth) {
		entry.Key = uint32(hash >> 32)
		entry.BestMove = bestMove
		entry.Score = int16(score)
		entry.Depth = int8(depth)
		entry.Flag = flag
		entry.Age = tt.age
	}
}

func (tt *transpositionTable) newSearch() {
	tt.age++
}

func (tt *transpositionTable) clear() {
	for i := range tt.entries {
		tt.entries[i] = ttEntry{}
	}
	tt.age = 0
}

// adjustScoreFromTT converts a mate score stored at a different ply
// distance into one relative to the current ply.
func adjustScoreFromTT(score, ply int) int {
	if score > mateScore-maxPly {
		return score - ply
	}
	if score < -mateScore+maxPly {
		return score + ply
	}
	return score
}

// adjustScoreToTT is the inverse of adjustScoreFromTT, applied before storing.
func adjustScoreToTT(score, ply int) int {
	if score > mateScore-maxPly {
		return score + ply
	}
	if score < -mateScore+maxPly {
		return score - ply
	}
	return score
}
