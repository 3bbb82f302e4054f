package board

import "testing"

func TestPositionCheckmateDetection(t *testing.T) {
	cases := []struct {
		name      string
		fen       string
		checkmate bool
	}{
		{
			name:      "back rank mate, pawns seal the escape",
			fen:       "R6k/6pp/8/8/8/8/8/K7 b - - 0 1",
			checkmate: true,
		},
		{
			name:      "king can capture the checking rook",
			fen:       "6Rk/8/8/8/8/8/8/K7 b - - 0 1",
			checkmate: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos, err := ParseFEN(tc.fen)
			if err != nil {
				t.Fatalf("parsing FEN %q: %v", tc.fen, err)
			}

			if got := pos.IsCheckmate(); got != tc.checkmate {
				t.Errorf("IsCheckmate() = %v, want %v (in check: %v, legal moves: %d)",
					got, tc.checkmate, pos.InCheck(), pos.GenerateLegalMoves().Len())
			}
		})
	}
}
