package board

// slidingAttacker computes a slider's attack bitboard from one square
// given board occupancy; BishopAttacks, RookAttacks, and QueenAttacks
// all share this shape.
type slidingAttacker func(sq Square, occupied Bitboard) Bitboard

// slidingPieces lists the sliding piece types paired with their
// attack function, so generation code loops once instead of repeating
// a bishop/rook/queen block three times.
var slidingPieces = []struct {
	pt      PieceType
	attacks slidingAttacker
}{
	{Bishop, BishopAttacks},
	{Rook, RookAttacks},
	{Queen, QueenAttacks},
}

// GenerateLegalMoves returns every legal move in the position.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return p.filterLegalMoves(ml)
}

// GeneratePseudoLegalMoves returns every pseudo-legal move, which may
// leave the mover's own king in check.
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// GenerateCaptures returns every legal capturing (and promoting) move,
// for quiescence search.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.generateCaptures(ml)
	return p.filterLegalMoves(ml)
}

func (p *Position) generateAllMoves(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	occupied := p.AllOccupied
	enemies := p.Occupied[them]

	p.generatePawnMoves(ml, us, enemies, occupied)
	p.generateLeaperMoves(ml, Knight, us, ^p.Occupied[us])
	for _, sp := range slidingPieces {
		p.generateSliderMoves(ml, sp.pt, sp.attacks, us, occupied, ^p.Occupied[us])
	}
	p.generateKingMoves(ml, us)
	p.generateCastlingMoves(ml, us)
}

func (p *Position) generateCaptures(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	occupied := p.AllOccupied
	enemies := p.Occupied[them]

	p.generatePawnCaptures(ml, us, enemies, occupied)
	p.generateLeaperMoves(ml, Knight, us, enemies)
	for _, sp := range slidingPieces {
		p.generateSliderMoves(ml, sp.pt, sp.attacks, us, occupied, enemies)
	}

	from := p.KingSquare[us]
	attacks := KingAttacks(from) & enemies
	for attacks != 0 {
		ml.Add(NewMove(from, attacks.PopLSB()))
	}
}

// generateLeaperMoves adds moves for a non-sliding piece type, masked
// to target (destination squares allowed: empty squares for quiet
// generation, enemy squares for capture generation).
func (p *Position) generateLeaperMoves(ml *MoveList, pt PieceType, us Color, target Bitboard) {
	pieces := p.Pieces[us][pt]
	attacksFor := KnightAttacks
	if pt == King {
		attacksFor = KingAttacks
	}
	for pieces != 0 {
		from := pieces.PopLSB()
		attacks := attacksFor(from) & target
		for attacks != 0 {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}
}

func (p *Position) generateSliderMoves(ml *MoveList, pt PieceType, attacksFor slidingAttacker, us Color, occupied, target Bitboard) {
	pieces := p.Pieces[us][pt]
	for pieces != 0 {
		from := pieces.PopLSB()
		attacks := attacksFor(from, occupied) & target
		for attacks != 0 {
			ml.Add(NewMove(from, attacks.PopLSB()))
		}
	}
}

func (p *Position) generateKingMoves(ml *MoveList, us Color) {
	from := p.KingSquare[us]
	attacks := KingAttacks(from) & ^p.Occupied[us]
	for attacks != 0 {
		ml.Add(NewMove(from, attacks.PopLSB()))
	}
}

// filterLegalMoves keeps only the moves in ml that don't leave the
// mover's own king in check.
func (p *Position) filterLegalMoves(ml *MoveList) *MoveList {
	result := NewMoveList()
	for i := 0; i < ml.Len(); i++ {
		if m := ml.Get(i); p.IsLegal(m) {
			result.Add(m)
		}
	}
	return result
}
