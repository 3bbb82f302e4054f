package features

import (
	"testing"

	"github.com/hailam/chessrl/internal/board"
	"github.com/hailam/chessrl/internal/rules"
)

func TestBoardToFeaturesDeterministic(t *testing.T) {
	g := rules.NewGame()
	a := BoardToFeatures(g)
	b := BoardToFeatures(g)

	if len(a) != Size {
		t.Fatalf("expected length %d, got %d", Size, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic encoding at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestBoardToFeaturesSideToMove(t *testing.T) {
	g := rules.NewGame()
	white := BoardToFeatures(g)
	if white[768] != 1 {
		t.Errorf("expected side-to-move bit set for White, got %v", white[768])
	}

	if _, err := g.MakeUCIMove("e2e4"); err != nil {
		t.Fatalf("MakeUCIMove: %v", err)
	}
	black := BoardToFeatures(g)
	if black[768] != 0 {
		t.Errorf("expected side-to-move bit clear for Black, got %v", black[768])
	}
}

func TestActionIndexRoundTrip(t *testing.T) {
	g := rules.NewGame()
	moves := g.LegalMoves()

	for _, m := range moves {
		if m.IsPromotion() {
			continue
		}
		idx := MoveToActionIndex(m)
		decoded := ActionIndexToMove(idx, g.Pos)
		if decoded.From() != m.From() || decoded.To() != m.To() {
			t.Errorf("round-trip mismatch for %v: got from=%v to=%v", m, decoded.From(), decoded.To())
		}
	}
}

func TestActionIndexToMoveDefaultsToQueenPromotion(t *testing.T) {
	g, err := rules.NewGameFromFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	if err != nil {
		t.Fatalf("NewGameFromFEN: %v", err)
	}

	idx := MoveToActionIndex(board.NewMove(board.A7, board.A8))
	decoded := ActionIndexToMove(idx, g.Pos)
	if !decoded.IsPromotion() || decoded.Promotion() != board.Queen {
		t.Errorf("expected queen promotion, got %v (isPromotion=%v, promo=%v)", decoded, decoded.IsPromotion(), decoded.Promotion())
	}
}

func TestActionIndexOutOfRange(t *testing.T) {
	g := rules.NewGame()
	if m := ActionIndexToMove(ActionCount, g.Pos); m != board.NoMove {
		t.Errorf("expected NoMove for out-of-range index, got %v", m)
	}
}
