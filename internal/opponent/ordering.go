package opponent

import (
	"github.com/hailam/chessrl/internal/board"
)

// Move ordering priorities.
const (
	ttMoveScore     = 10000000
	goodCaptureBase = 1000000
	killerScore1    = 900000
	killerScore2    = 800000
)

// mvvLva (Most Valuable Victim - Least Valuable Attacker): higher score
// searched first. Rows are the victim, columns the attacker: each more
// valuable victim adds 10, and a cheaper attacker scores higher
// (knight and bishop tie).
var mvvLva = [6][6]int{
	/* P */ {15, 14, 14, 13, 12, 11},
	/* N */ {25, 24, 24, 23, 22, 21},
	/* B */ {35, 34, 34, 33, 32, 31},
	/* R */ {45, 44, 44, 43, 42, 41},
	/* Q */ {55, 54, 54, 53, 52, 51},
	/* K */ {0, 0, 0, 0, 0, 0},
}

// moveOrderer holds the killer-move and history-heuristic tables a
// search needs to try its best moves first. Counter-move and
// capture-history refinements are not carried over: this searcher
// runs single-threaded, fixed-depth games for training/evaluation, not
// UCI time-controlled play, so the extra tables bought little beyond
// the basic MVV-LVA/killers/history triad.
type moveOrderer struct {
	killers [maxPly][2]board.Move
	history [64][64]int
}

func newMoveOrderer() *moveOrderer {
	return &moveOrderer{}
}

// clear resets killers and ages history scores for a new search.
func (mo *moveOrderer) clear() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
	for i := range mo.history {
		for j := range mo.history[i] {
			mo.history[i][j] /= 2
		}
	}
}

func (mo *moveOrderer) scoreMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) []int {
	scores := make([]int, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mo.scoreMove(pos, moves.Get(i), ply, ttMove)
	}
	return scores
}

func (mo *moveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return ttMoveScore
	}

	from, to := m.From(), m.To()

	if m.IsCapture(pos) {
		attackerPiece := pos.PieceAt(from)
		if attackerPiece == board.NoPiece {
			return goodCaptureBase
		}
		attacker := attackerPiece.Type()

		var victim board.PieceType
		if m.IsEnPassant() {
			victim = board.Pawn
		} else {
			capturedPiece := pos.PieceAt(to)
			if capturedPiece == board.NoPiece {
				return goodCaptureBase
			}
			victim = capturedPiece.Type()
		}
		if victim >= board.King || attacker > board.King {
			return goodCaptureBase
		}

		score := goodCaptureBase + mvvLva[victim][attacker]*1000
		if pieceValues[attacker] < pieceValues[victim] {
			score += 10000
		}
		return score
	}

	if m.IsPromotion() {
		return goodCaptureBase - 1000 + int(m.Promotion())*100
	}

	if m == mo.killers[ply][0] {
		return killerScore1
	}
	if m == mo.killers[ply][1] {
		return killerScore2
	}

	return mo.history[from][to]
}

// pickMove selects the best remaining move and moves it to index,
// allowing lazy incremental sorting instead of sorting the whole list.
func pickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

func (mo *moveOrderer) updateKillers(m board.Move, ply int) {
	if ply >= maxPly {
		return
	}
	if mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

func (mo *moveOrderer) updateHistory(m board.Move, depth int, isGood bool) {
	from, to := m.From(), m.To()
	bonus := depth * depth
	if isGood {
		mo.history[from][to] += bonus
		if mo.history[from][to] > 400000 {
			for i := range mo.history {
				for j := range mo.history[i] {
					mo.history[i][j] /= 2
				}
			}
		}
	} else {
		mo.history[from][to] -= bonus
		if mo.history[from][to] < -400000 {
			mo.history[from][to] = -400000
		}
	}
}
