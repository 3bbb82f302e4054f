package board

// pawnGeometry bundles the direction-dependent quantities pawn move
// generation needs, computed once per color instead of branching on
// White/Black at every call site.
type pawnGeometry struct {
	push1, push2     Bitboard
	attackL, attackR Bitboard
	promotionRank    Bitboard
	pushDir          int
}

func computePawnGeometry(p *Position, us Color, enemies, occupied Bitboard) pawnGeometry {
	pawns := p.Pieces[us][Pawn]
	empty := ^occupied

	if us == White {
		push1 := pawns.North() & empty
		return pawnGeometry{
			push1:         push1,
			push2:         (push1 & Rank3).North() & empty,
			attackL:       pawns.NorthWest() & enemies,
			attackR:       pawns.NorthEast() & enemies,
			promotionRank: Rank8,
			pushDir:       8,
		}
	}
	push1 := pawns.South() & empty
	return pawnGeometry{
		push1:         push1,
		push2:         (push1 & Rank6).South() & empty,
		attackL:       pawns.SouthWest() & enemies,
		attackR:       pawns.SouthEast() & enemies,
		promotionRank: Rank1,
		pushDir:       -8,
	}
}

func enPassantAttackers(p *Position, us Color) Bitboard {
	if p.EnPassant == NoSquare {
		return 0
	}
	epBB := SquareBB(p.EnPassant)
	pawns := p.Pieces[us][Pawn]
	if us == White {
		return (epBB.SouthWest() | epBB.SouthEast()) & pawns
	}
	return (epBB.NorthWest() | epBB.NorthEast()) & pawns
}

// addFromBitboard walks bb, deriving each origin square as to-delta and
// invoking add for every set bit.
func addFromBitboard(bb Bitboard, delta int, add func(from, to Square)) {
	for bb != 0 {
		to := bb.PopLSB()
		add(Square(int(to)-delta), to)
	}
}

// generatePawnMoves generates all pawn pushes, captures, promotions,
// and en passant captures for the side to move.
func (p *Position) generatePawnMoves(ml *MoveList, us Color, enemies, occupied Bitboard) {
	g := computePawnGeometry(p, us, enemies, occupied)

	addFromBitboard(g.push1& ^g.promotionRank, g.pushDir, func(from, to Square) { ml.Add(NewMove(from, to)) })
	addFromBitboard(g.push2, 2*g.pushDir, func(from, to Square) { ml.Add(NewMove(from, to)) })
	addFromBitboard(g.attackL& ^g.promotionRank, g.pushDir-1, func(from, to Square) { ml.Add(NewMove(from, to)) })
	addFromBitboard(g.attackR& ^g.promotionRank, g.pushDir+1, func(from, to Square) { ml.Add(NewMove(from, to)) })

	addFromBitboard(g.push1&g.promotionRank, g.pushDir, func(from, to Square) { addPromotions(ml, from, to) })
	addFromBitboard(g.attackL&g.promotionRank, g.pushDir-1, func(from, to Square) { addPromotions(ml, from, to) })
	addFromBitboard(g.attackR&g.promotionRank, g.pushDir+1, func(from, to Square) { addPromotions(ml, from, to) })

	addEnPassant(ml, p, us)
}

// addEnPassant adds one en passant capture per attacking pawn; unlike
// the push/capture tables, the attacker bitboard already holds origin
// squares, and the destination is the fixed en passant target.
func addEnPassant(ml *MoveList, p *Position, us Color) {
	attackers := enPassantAttackers(p, us)
	for attackers != 0 {
		from := attackers.PopLSB()
		ml.Add(NewEnPassant(from, p.EnPassant))
	}
}

// generatePawnCaptures generates pawn captures, promotions reachable by
// a straight push, and en passant -- the pawn subset of quiescence
// move generation.
func (p *Position) generatePawnCaptures(ml *MoveList, us Color, enemies, occupied Bitboard) {
	g := computePawnGeometry(p, us, enemies, occupied)

	addFromBitboard(g.attackL& ^g.promotionRank, g.pushDir-1, func(from, to Square) { ml.Add(NewMove(from, to)) })
	addFromBitboard(g.attackR& ^g.promotionRank, g.pushDir+1, func(from, to Square) { ml.Add(NewMove(from, to)) })
	addFromBitboard(g.attackL&g.promotionRank, g.pushDir-1, func(from, to Square) { addPromotions(ml, from, to) })
	addFromBitboard(g.attackR&g.promotionRank, g.pushDir+1, func(from, to Square) { addPromotions(ml, from, to) })
	addFromBitboard(g.push1&g.promotionRank, g.pushDir, func(from, to Square) { addPromotions(ml, from, to) })
	addEnPassant(ml, p, us)
}

// addPromotions adds all four promotion moves for one from/to pair.
func addPromotions(ml *MoveList, from, to Square) {
	for _, pt := range promotionSlots {
		ml.Add(NewPromotion(from, to, pt))
	}
}
