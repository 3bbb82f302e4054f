// Package opponent implements the fixed-depth alpha-beta search and
// classical evaluation used as a training/evaluation adversary for
// self-play: the "heuristic" policy (one-ply greedy evaluation, no
// search) and the
// "minimax(depth d)" policy named in the self-play configuration.
package opponent

import (
	"sync/atomic"

	"github.com/hailam/chessrl/internal/board"
)

const (
	infinity  = 30000
	mateScore = 29000
	maxPly    = 128

	nullMoveReduction = 2
	nullMoveMinDepth  = 3
)

type pvTable struct {
	length [maxPly]int
	moves  [maxPly][maxPly]board.Move
}

// searcher performs a negamax alpha-beta search from a single,
// privately-owned position. Each concurrent self-play game constructs
// its own searcher so goroutines never share transposition table or
// move-ordering state -- unlike a shared Lazy-SMP engine, an opponent
// policy here is cheap enough per-game that sharing tables across
// games isn't worth the synchronization.
type searcher struct {
	pos     *board.Position
	tt      *transpositionTable
	pawns   *pawnTable
	orderer *moveOrderer

	nodes    uint64
	stopFlag atomic.Bool

	pv        pvTable
	undoStack [maxPly]board.UndoInfo
}

// newSearcher builds a searcher with its own transposition and pawn
// tables, sized small since a training opponent is replayed thousands
// of times per cycle and large tables would dominate memory.
func newSearcher() *searcher {
	return &searcher{
		tt:      newTranspositionTable(4),
		pawns:   newPawnTable(1),
		orderer: newMoveOrderer(),
	}
}

func (s *searcher) reset() {
	s.stopFlag.Store(false)
	s.nodes = 0
	s.orderer.clear()
}

// stop requests the in-progress search to unwind. Nothing in this
// module calls it; a search always runs to its fixed depth.
func (s *searcher) stop() {
	s.stopFlag.Store(true)
}

// search returns the best move and its score at depth plies, or
// board.NoMove if pos has no legal moves.
func (s *searcher) search(pos *board.Position, depth int) (board.Move, int) {
	s.pos = pos.Copy()
	s.reset()
	s.tt.newSearch()

	score := s.negamax(depth, 0, -infinity, infinity)

	var best board.Move
	if s.pv.length[0] > 0 {
		best = s.pv.moves[0][0]
	}
	return best, score
}

func (s *searcher) negamax(depth, ply, alpha, beta int) int {
	if s.nodes&4095 == 0 && s.stopFlag.Load() {
		return 0
	}
	s.nodes++
	s.pv.length[ply] = ply

	if ply > 0 && s.isDraw() {
		return 0
	}

	var ttMove board.Move
	if entry, found := s.tt.probe(s.pos.Hash); found {
		ttMove = entry.BestMove
		if int(entry.Depth) >= depth {
			score := adjustScoreFromTT(int(entry.Score), ply)
			switch entry.Flag {
			case ttExact:
				return score
			case ttLowerBound:
				if score > alpha {
					alpha = score
				}
			case ttUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				return score
			}
		}
	}

	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	inCheck := s.pos.InCheck()

	if s.canTryNullMove(depth, ply, beta, inCheck) {
		undo := s.pos.MakeNullMove()
		score := -s.negamax(depth-1-nullMoveReduction, ply+1, -beta, -beta+1)
		s.pos.UnmakeNullMove(undo)
		if score >= beta {
			return beta
		}
	}

	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -mateScore + ply
		}
		return 0
	}

	scores := s.orderer.scoreMoves(s.pos, moves, ply, ttMove)

	bestScore := -infinity
	bestMove := board.NoMove
	flag := ttUpperBound

	for i := 0; i < moves.Len(); i++ {
		pickMove(moves, scores, i)
		move := moves.Get(i)

		s.undoStack[ply] = s.pos.MakeMove(move)
		if !s.undoStack[ply].Valid {
			continue
		}

		score := -s.negamax(depth-1, ply+1, -beta, -alpha)
		s.pos.UnmakeMove(move, s.undoStack[ply])

		if s.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = ttExact

				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = s.pv.length[ply+1]
			}
		}

		if score >= beta {
			s.tt.store(s.pos.Hash, depth, adjustScoreToTT(score, ply), ttLowerBound, bestMove)
			if !move.IsCapture(s.pos) {
				s.orderer.updateKillers(move, ply)
				s.orderer.updateHistory(move, depth, true)
			}
			return score
		}
	}

	s.tt.store(s.pos.Hash, depth, adjustScoreToTT(bestScore, ply), flag, bestMove)
	return bestScore
}

func (s *searcher) quiescence(ply, alpha, beta int) int {
	const maxQuiescencePly = 32
	if ply >= maxPly || ply > maxQuiescencePly {
		return evaluateWithPawnTable(s.pos, s.pawns)
	}
	if s.stopFlag.Load() {
		return 0
	}
	s.nodes++

	standPat := evaluateWithPawnTable(s.pos, s.pawns)
	if standPat >= beta {
		return beta
	}
	if standPat > alpha {
		alpha = standPat
	}
	if standPat+queenValue < alpha {
		return alpha
	}

	moves := s.pos.GenerateCaptures()
	scores := s.orderer.scoreMoves(s.pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		pickMove(moves, scores, i)
		move := moves.Get(i)

		if !s.pos.InCheck() {
			var captureValue int
			if move.IsEnPassant() {
				captureValue = pawnValue
			} else if captured := s.pos.PieceAt(move.To()); captured != board.NoPiece {
				captureValue = pieceValues[captured.Type()]
			}
			if move.IsPromotion() {
				captureValue += queenValue - pawnValue
			}
			if standPat+captureValue+200 < alpha {
				continue
			}
		}

		undo := s.pos.MakeMove(move)
		if !undo.Valid {
			continue
		}
		score := -s.quiescence(ply+1, -beta, -alpha)
		s.pos.UnmakeMove(move, undo)

		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// canTryNullMove reports whether passing the turn is safe to probe
// here: not in check (a null move would illegally escape check),
// enough depth left to make the reduced re-search meaningful, beta
// not already near mate, and the side to move holds material where
// zugzwang is not a live risk.
func (s *searcher) canTryNullMove(depth, ply, beta int, inCheck bool) bool {
	if inCheck || ply == 0 || depth < nullMoveMinDepth {
		return false
	}
	if beta >= mateScore-maxPly {
		return false
	}
	return s.pos.HasNonPawnMaterial()
}

func (s *searcher) isDraw() bool {
	if s.pos.HalfMoveClock >= 100 {
		return true
	}
	return s.pos.IsInsufficientMaterial()
}
