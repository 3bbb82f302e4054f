package board

// IsLegal reports whether m leaves the mover's own king safe. King
// moves are checked by probing the destination directly; everything
// else is verified by actually playing the move and inspecting check
// status, then unplaying it.
func (p *Position) IsLegal(m Move) bool {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	ksq := p.KingSquare[us]

	if from == ksq {
		if m.IsCastling() {
			return true // squares already vetted during generation
		}
		occ := p.AllOccupied &^ SquareBB(from)
		return p.AttackersByColor(m.To(), them, occ) == 0
	}

	undo := p.MakeMove(m)
	if !undo.Valid {
		return false
	}
	attacked := p.IsSquareAttacked(ksq, them)
	p.UnmakeMove(m, undo)
	return !attacked
}

// MakeMove applies m to p in place and returns the state needed to
// reverse it with UnmakeMove.
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
		Checkers:       p.Checkers,
	}

	us := p.SideToMove
	them := us.Other()
	from, to := m.From(), m.To()
	piece := p.PieceAt(from)
	if piece == NoPiece {
		return undo
	}
	undo.Valid = true
	pt := piece.Type()

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]
	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	undo.CapturedPiece = p.applyCapture(m, us, them, to)
	p.movePiece(from, to)
	p.Hash ^= zobristPiece[us][pt][from]
	p.Hash ^= zobristPiece[us][pt][to]

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][Pawn] &^= SquareBB(to)
		p.Pieces[us][promoPt] |= SquareBB(to)
		p.Hash ^= zobristPiece[us][Pawn][to]
		p.Hash ^= zobristPiece[us][promoPt][to]
	}
	if m.IsCastling() {
		rookFrom, rookTo := castlingRookTravel(from, to)
		p.movePiece(rookFrom, rookTo)
		p.Hash ^= zobristPiece[us][Rook][rookFrom]
		p.Hash ^= zobristPiece[us][Rook][rookTo]
	}

	p.CastlingRights = castlingRightsAfterMove(p.CastlingRights, us, pt, from, to)
	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn && absInt(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		p.Hash ^= zobristEnPassant[epSquare.File()]
	}

	if pt == Pawn || undo.CapturedPiece.Type() == Pawn {
		p.PawnKey = p.ComputePawnKey()
	}

	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}
	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.UpdateCheckers()
	return undo
}

// applyCapture removes whatever m captures (if anything) before the
// mover's own piece is relocated, updating the hash to match, and
// returns the captured piece (NoPiece if m captures nothing).
func (p *Position) applyCapture(m Move, us, them Color, to Square) Piece {
	if m.IsEnPassant() {
		capturedSq := epCapturedSquare(us, to)
		captured := p.removePiece(capturedSq)
		p.Hash ^= zobristPiece[them][Pawn][capturedSq]
		return captured
	}
	captured := p.PieceAt(to)
	if captured != NoPiece {
		p.removePiece(to)
		p.Hash ^= zobristPiece[them][captured.Type()][to]
	}
	return captured
}

func epCapturedSquare(us Color, to Square) Square {
	if us == White {
		return to - 8
	}
	return to + 8
}

// UnmakeMove reverses m using the undo info MakeMove returned for it.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	them := p.SideToMove
	us := them.Other()
	from, to := m.From(), m.To()

	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.Checkers = undo.Checkers
	p.SideToMove = us
	if us == Black {
		p.FullMoveNumber--
	}

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][promoPt] &^= SquareBB(to)
		p.Pieces[us][Pawn] |= SquareBB(to)
	}

	p.movePiece(to, from)

	if m.IsCastling() {
		rookFrom, rookTo := castlingRookTravel(from, to)
		p.movePiece(rookTo, rookFrom)
	}

	if undo.CapturedPiece == NoPiece {
		return
	}
	if m.IsEnPassant() {
		p.setPiece(undo.CapturedPiece, epCapturedSquare(us, to))
	} else {
		p.setPiece(undo.CapturedPiece, to)
	}
}

// NullMoveUndo carries the state MakeNullMove changes, for UnmakeNullMove.
type NullMoveUndo struct {
	EnPassant Square
	Hash      uint64
}

// MakeNullMove passes the turn without moving a piece, used by search
// to probe whether the side to move is already doing well enough that
// even a free tempo for the opponent doesn't change the verdict.
func (p *Position) MakeNullMove() NullMoveUndo {
	undo := NullMoveUndo{EnPassant: p.EnPassant, Hash: p.Hash}

	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare
	p.SideToMove = p.SideToMove.Other()
	p.Hash ^= zobristSideToMove
	p.UpdateCheckers()
	return undo
}

// UnmakeNullMove reverses MakeNullMove.
func (p *Position) UnmakeNullMove(undo NullMoveUndo) {
	p.EnPassant = undo.EnPassant
	p.Hash = undo.Hash
	p.SideToMove = p.SideToMove.Other()
	p.UpdateCheckers()
}

// HasNonPawnMaterial reports whether the side to move has any piece
// besides pawns and king; used to avoid null-move pruning in pawn
// endgames where zugzwang makes the free-tempo assumption unsound.
func (p *Position) HasNonPawnMaterial() bool {
	us := p.SideToMove
	return p.Pieces[us][Knight]|p.Pieces[us][Bishop]|p.Pieces[us][Rook]|p.Pieces[us][Queen] != 0
}
