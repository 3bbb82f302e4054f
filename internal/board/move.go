package board

import "fmt"

// Move packs a single ply into 16 bits: a from-square, a to-square,
// a move-kind tag, and (for promotions) which piece the pawn becomes.
//
//	bits 0-5:   from square
//	bits 6-11:  to square
//	bits 12-13: promotion slot, only meaningful when kind is kindPromotion
//	bits 14-15: move kind
type Move uint16

// moveKind distinguishes the handful of ways a move differs from a
// plain from/to relocation.
type moveKind uint16

const (
	kindNormal moveKind = iota
	kindPromotion
	kindEnPassant
	kindCastling
)

// Exported flag values, kept for callers that inspect Move.Flag()
// directly rather than going through the IsX predicates.
const (
	FlagNormal    = uint16(kindNormal) << 14
	FlagPromotion = uint16(kindPromotion) << 14
	FlagEnPassant = uint16(kindEnPassant) << 14
	FlagCastling  = uint16(kindCastling) << 14
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

// promotionSlots lists the pieces a pawn can promote to, in the order
// their 2-bit slot encodes them; also drives the UCI suffix letters.
var promotionSlots = [4]PieceType{Knight, Bishop, Rook, Queen}
var promotionLetters = [4]byte{'n', 'b', 'r', 'q'}

func promotionSlot(pt PieceType) Move {
	for i, cand := range promotionSlots {
		if cand == pt {
			return Move(i)
		}
	}
	return 0
}

func packMove(from, to Square, kind moveKind) Move {
	return Move(from) | Move(to)<<6 | Move(kind)<<14
}

// NewMove creates a normal, non-special move.
func NewMove(from, to Square) Move {
	return packMove(from, to, kindNormal)
}

// NewPromotion creates a pawn promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return packMove(from, to, kindPromotion) | promotionSlot(promo)<<12
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return packMove(from, to, kindEnPassant)
}

// NewCastling creates a castling move, encoded as the king's own travel.
func NewCastling(from, to Square) Move {
	return packMove(from, to, kindCastling)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> 6) & 0x3F)
}

func (m Move) kind() moveKind {
	return moveKind(m >> 14)
}

// Flag returns the raw move-kind bits.
func (m Move) Flag() uint16 {
	return uint16(m) & 0xC000
}

// Promotion returns the promotion piece type; only meaningful when
// IsPromotion is true.
func (m Move) Promotion() PieceType {
	return promotionSlots[(m>>12)&3]
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.kind() == kindPromotion
}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m.kind() == kindCastling
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.kind() == kindEnPassant
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture(pos *Position) bool {
	return m.IsEnPassant() || !pos.IsEmpty(m.To())
}

// IsQuiet returns true if this is not a capture or promotion.
func (m Move) IsQuiet(pos *Position) bool {
	return !m.IsCapture(pos) && !m.IsPromotion()
}

// String returns the UCI form of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += string(promotionLetters[(m>>12)&3])
	}
	return s
}

// ParseMove parses a UCI move string against pos, inferring castling
// and en passant from the moving piece since UCI carries no flag bits.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	if len(s) == 5 {
		promo, ok := promotionFromChar(s[4])
		if !ok {
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo), nil
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()

	if pt == King && absInt(int(to)-int(from)) == 2 {
		return NewCastling(from, to), nil
	}
	if pt == Pawn && to == pos.EnPassant {
		return NewEnPassant(from, to), nil
	}
	return NewMove(from, to), nil
}

func promotionFromChar(c byte) (PieceType, bool) {
	for i, letter := range promotionLetters {
		if letter == c {
			return promotionSlots[i], true
		}
	}
	return NoPieceType, false
}

// MoveList is a fixed-capacity move buffer sized for the legal moves
// reachable from any one position, avoiding per-position allocation
// during search.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add appends a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set overwrites the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap exchanges the moves at indices i and j.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear empties the list without releasing its backing array.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains reports whether m appears in the list.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the list's moves as a slice backed by the list itself.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}
