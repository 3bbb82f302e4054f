// Package features turns a position into the fixed-length real vector
// a network consumes, and maps chess moves to and from the dense
// from-square/to-square action index a Q-network produces one output
// per. It follows this codebase's bitboard-iteration idiom
// (`for bb != 0 { sq := bb.PopLSB(); ... }`) rather than scanning all
// 64 squares per plane.
package features

import (
	"github.com/hailam/chessrl/internal/board"
	"github.com/hailam/chessrl/internal/rules"
)

// Size is the fixed length of the vector BoardToFeatures produces:
// 12 piece-occupancy planes of 64 squares (768), side to move (1),
// castling rights (4), en-passant file one-hot with an all-zero
// "absent" encoding (8), halfmove clock normalized (1), and fullmove
// number normalized (1).
const Size = 12*64 + 1 + 4 + 8 + 1 + 1

// ActionCount is the size of the move action space: 64 from-squares by
// 64 to-squares.
const ActionCount = 64 * 64

// maxFullMoveForNorm caps the fullmove-number normalization so a long
// endgame doesn't push the feature outside [0,1]; moves beyond it just
// saturate at 1.0.
const maxFullMoveForNorm = 200

// planeIndex orders the 12 occupancy planes White-then-Black,
// Pawn..King within each color, matching Position.Pieces[color][type].
func planeIndex(color board.Color, pt board.PieceType) int {
	return int(color)*6 + int(pt)
}

// BoardToFeatures encodes g's current position into a deterministic,
// fixed-length vector: identical position state always produces a
// bit-identical vector.
func BoardToFeatures(g *rules.Game) []float64 {
	pos := g.Pos
	v := make([]float64, Size)

	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt <= board.King; pt++ {
			base := planeIndex(c, pt) * 64
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				v[base+int(sq)] = 1
			}
		}
	}

	off := 12 * 64

	if pos.SideToMove == board.White {
		v[off] = 1
	} else {
		v[off] = 0
	}
	off++

	if pos.CastlingRights&board.WhiteKingSideCastle != 0 {
		v[off] = 1
	}
	if pos.CastlingRights&board.WhiteQueenSideCastle != 0 {
		v[off+1] = 1
	}
	if pos.CastlingRights&board.BlackKingSideCastle != 0 {
		v[off+2] = 1
	}
	if pos.CastlingRights&board.BlackQueenSideCastle != 0 {
		v[off+3] = 1
	}
	off += 4

	if pos.EnPassant != board.NoSquare {
		v[off+int(pos.EnPassant.File())] = 1
	}
	off += 8

	v[off] = float64(pos.HalfMoveClock) / 100.0
	off++

	fullMoveNorm := float64(pos.FullMoveNumber) / float64(maxFullMoveForNorm)
	if fullMoveNorm > 1 {
		fullMoveNorm = 1
	}
	v[off] = fullMoveNorm

	return v
}

// MoveToActionIndex maps a move to its dense action index
// (from*64+to); promotions of the same from/to collapse onto the same
// index -- the environment resolves promotion choice on decode.
func MoveToActionIndex(m board.Move) uint16 {
	return uint16(m.From())*64 + uint16(m.To())
}

// ActionIndexToMove decodes an action index into a move against pos,
// defaulting to Queen promotion when a pawn reaches the last rank and
// flagging a king's two-file step as castling and a pawn landing on the
// en-passant square as an en-passant capture, as the move generator
// does. It returns board.NoMove if from or to is out of range; it does
// not check legality, only well-formedness -- callers intersect the
// result against the position's legal moves.
func ActionIndexToMove(i uint16, pos *board.Position) board.Move {
	if i >= ActionCount {
		return board.NoMove
	}
	from := board.Square(i / 64)
	to := board.Square(i % 64)

	piece := pos.PieceAt(from)
	switch piece.Type() {
	case board.Pawn:
		toRank := to.Rank()
		if toRank == 0 || toRank == 7 {
			return board.NewPromotion(from, to, board.Queen)
		}
		if to == pos.EnPassant {
			return board.NewEnPassant(from, to)
		}
	case board.King:
		if d := int(to) - int(from); d == 2 || d == -2 {
			return board.NewCastling(from, to)
		}
	}
	return board.NewMove(from, to)
}
