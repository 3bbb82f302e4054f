package opponent

import (
	"fmt"
	"math/rand"

	"github.com/hailam/chessrl/internal/board"
)

// Policy selects a move for the side to move in pos. It is the
// adversary a self-play cycle plays the learning agent against when
// its configuration names a non-self opponent.
type Policy interface {
	// SelectMove returns a legal move for pos, or board.NoMove if pos
	// has no legal moves.
	SelectMove(pos *board.Position) board.Move
	// Name identifies the policy for logging and checkpoint manifests.
	Name() string
}

// Kind enumerates the opponent policies the self-play orchestrator's
// configuration can select between.
type Kind string

const (
	// KindSelf means the opponent is the learning agent's own current
	// network; selfplay wires this up directly
	// rather than constructing an opponent.Policy for it.
	KindSelf Kind = "self"
	// KindHeuristic plays the move maximizing the static evaluation
	// one ply deep -- a greedy, non-searching baseline.
	KindHeuristic Kind = "heuristic"
	// KindMinimax plays an alpha-beta search to a fixed depth.
	KindMinimax Kind = "minimax"
	// KindRandom plays a uniformly random legal move, used for
	// sanity-checking the training loop itself.
	KindRandom Kind = "random"
)

// New constructs the Policy named by kind. depth is only consulted by
// KindMinimax, where it must be at least 1.
func New(kind Kind, depth int, seed int64) (Policy, error) {
	switch kind {
	case KindHeuristic:
		return &heuristicPolicy{}, nil
	case KindMinimax:
		if depth < 1 {
			return nil, fmt.Errorf("opponent: minimax depth must be >= 1, got %d", depth)
		}
		return &minimaxPolicy{depth: depth, s: newSearcher()}, nil
	case KindRandom:
		return &randomPolicy{rng: rand.New(rand.NewSource(seed))}, nil
	default:
		return nil, fmt.Errorf("opponent: unknown policy kind %q", kind)
	}
}

type heuristicPolicy struct{}

func (h *heuristicPolicy) Name() string { return string(KindHeuristic) }

// SelectMove tries every legal move and keeps the one with the best
// resulting static evaluation for the side to move -- a one-ply greedy
// search with no recursion, cheap enough to run every self-play step
// when the configuration wants a weak but non-random opponent.
func (h *heuristicPolicy) SelectMove(pos *board.Position) board.Move {
	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		return board.NoMove
	}

	best := board.NoMove
	bestScore := -infinity - 1
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		if !undo.Valid {
			continue
		}
		score := -evaluate(pos)
		pos.UnmakeMove(move, undo)

		if score > bestScore {
			bestScore = score
			best = move
		}
	}
	return best
}

type minimaxPolicy struct {
	depth int
	s     *searcher
}

func (m *minimaxPolicy) Name() string { return fmt.Sprintf("%s(depth=%d)", KindMinimax, m.depth) }

func (m *minimaxPolicy) SelectMove(pos *board.Position) board.Move {
	move, _ := m.s.search(pos, m.depth)
	return move
}

type randomPolicy struct {
	rng *rand.Rand
}

func (r *randomPolicy) Name() string { return string(KindRandom) }

func (r *randomPolicy) SelectMove(pos *board.Position) board.Move {
	moves := pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		return board.NoMove
	}
	return moves.Get(r.rng.Intn(moves.Len()))
}
