package opponent

import (
	"testing"

	"github.com/hailam/chessrl/internal/board"
)

func TestMinimaxPicksMateInOne(t *testing.T) {
	// White: Kh1, Qa1. Black: Kg8 boxed in by its own pawns on
	// f7/g7/h7, so Qa8 is a back-rank mate.
	pos, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/Q6K w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	p, err := New(KindMinimax, 2, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	move := p.SelectMove(pos)
	if move == board.NoMove {
		t.Fatal("expected a move, got NoMove")
	}

	undo := pos.MakeMove(move)
	if !undo.Valid {
		t.Fatalf("searcher returned invalid move %v", move)
	}
	pos.UpdateCheckers()
	if !pos.IsCheckmate() {
		t.Errorf("expected mate-in-one move, got %v leaving a non-mate position", move)
	}
}

func TestHeuristicPolicyPrefersCapture(t *testing.T) {
	// White rook can capture a hanging black knight.
	pos, err := board.ParseFEN("4k3/8/8/3n4/3R4/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	p, _ := New(KindHeuristic, 0, 0)
	move := p.SelectMove(pos)
	if move == board.NoMove {
		t.Fatal("expected a move")
	}
	if !move.IsCapture(pos) {
		t.Errorf("expected heuristic policy to take the hanging knight, got %v", move)
	}
}

func TestRandomPolicyAlwaysLegal(t *testing.T) {
	pos := board.NewPosition()
	p, _ := New(KindRandom, 0, 42)

	legal := pos.GenerateLegalMoves()
	for i := 0; i < 20; i++ {
		move := p.SelectMove(pos)
		if !legal.Contains(move) {
			t.Fatalf("random policy returned illegal move %v", move)
		}
	}
}

func TestNewRejectsBadMinimaxDepth(t *testing.T) {
	if _, err := New(KindMinimax, 0, 0); err == nil {
		t.Error("expected error for depth 0")
	}
}
