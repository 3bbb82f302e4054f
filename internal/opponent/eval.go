package opponent

import (
	"github.com/hailam/chessrl/internal/board"
)

// Material values in centipawns.
const (
	pawnValue   = 100
	knightValue = 320
	bishopValue = 330
	rookValue   = 500
	queenValue  = 900
	kingValue   = 20000
)

var pieceValues = [7]int{pawnValue, knightValue, bishopValue, rookValue, queenValue, kingValue, 0}

var passedPawnBonus = [8]int{0, 10, 20, 40, 70, 120, 200, 0}

const (
	passedPawnConnectedBonus = 20
	passedPawnProtectedBonus = 15
	passedPawnFreePathBonus  = 30
)

var mobilityMgWeight = [6]int{0, 4, 5, 2, 1, 0}
var mobilityEgWeight = [6]int{0, 3, 4, 4, 2, 0}

var attackerWeight = [6]int{0, 20, 20, 40, 80, 0}

const (
	pawnShieldBonus      = 10
	pawnShieldMissing    = -15
	openFileNearKing     = -20
	semiOpenFileNearKing = -10
)

const (
	bishopPairMgBonus = 25
	bishopPairEgBonus = 50
)

const tempoBonus = 10

var kingDistanceBonus = [8]int{0, 0, 10, 20, 30, 40, 50, 60}

const passedPawnUnstoppableBonus = 200

var pawnPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	50, 50, 50, 50, 50, 50, 50, 50,
	10, 10, 20, 30, 30, 20, 10, 10,
	5, 5, 10, 25, 25, 10, 5, 5,
	0, 0, 0, 20, 20, 0, 0, 0,
	5, -5, -10, 0, 0, -10, -5, 5,
	5, 10, 10, -20, -20, 10, 10, 5,
	0, 0, 0, 0, 0, 0, 0, 0,
}

var knightPST = [64]int{
	-50, -40, -30, -30, -30, -30, -40, -50,
	-40, -20, 0, 0, 0, 0, -20, -40,
	-30, 0, 10, 15, 15, 10, 0, -30,
	-30, 5, 15, 20, 20, 15, 5, -30,
	-30, 0, 15, 20, 20, 15, 0, -30,
	-30, 5, 10, 15, 15, 10, 5, -30,
	-40, -20, 0, 5, 5, 0, -20, -40,
	-50, -40, -30, -30, -30, -30, -40, -50,
}

var bishopPST = [64]int{
	-20, -10, -10, -10, -10, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 10, 10, 5, 0, -10,
	-10, 5, 5, 10, 10, 5, 5, -10,
	-10, 0, 10, 10, 10, 10, 0, -10,
	-10, 10, 10, 10, 10, 10, 10, -10,
	-10, 5, 0, 0, 0, 0, 5, -10,
	-20, -10, -10, -10, -10, -10, -10, -20,
}

var rookPST = [64]int{
	0, 0, 0, 0, 0, 0, 0, 0,
	5, 10, 10, 10, 10, 10, 10, 5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	-5, 0, 0, 0, 0, 0, 0, -5,
	0, 0, 0, 5, 5, 0, 0, 0,
}

var queenPST = [64]int{
	-20, -10, -10, -5, -5, -10, -10, -20,
	-10, 0, 0, 0, 0, 0, 0, -10,
	-10, 0, 5, 5, 5, 5, 0, -10,
	-5, 0, 5, 5, 5, 5, 0, -5,
	0, 0, 5, 5, 5, 5, 0, -5,
	-10, 5, 5, 5, 5, 5, 0, -10,
	-10, 0, 5, 0, 0, 0, 0, -10,
	-20, -10, -10, -5, -5, -10, -10, -20,
}

var kingMidgamePST = [64]int{
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-30, -40, -40, -50, -50, -40, -40, -30,
	-20, -30, -30, -40, -40, -30, -30, -20,
	-10, -20, -20, -20, -20, -20, -20, -10,
	20, 20, 0, 0, 0, 0, 20, 20,
	20, 30, 10, 0, 0, 10, 30, 20,
}

var kingEndgamePST = [64]int{
	-50, -40, -30, -20, -20, -30, -40, -50,
	-30, -20, -10, 0, 0, -10, -20, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 30, 40, 40, 30, -10, -30,
	-30, -10, 20, 30, 30, 20, -10, -30,
	-30, -30, 0, 0, 0, 0, -30, -30,
	-50, -30, -30, -30, -30, -30, -30, -50,
}

var psts = [...][64]int{
	pawnPST, knightPST, bishopPST, rookPST, queenPST, kingMidgamePST,
}

const maxPhase = 24

// evaluate returns a tapered middlegame/endgame static evaluation of
// pos from the side-to-move's perspective. It covers material, piece-
// square tables, passed pawns, mobility, king safety, and the bishop
// pair -- the subset of a classical hand-written evaluation that still
// pulls its weight once it only has to separate "good" positions from
// "bad" ones for a fixed-depth training opponent, not squeeze another
// ten Elo out of a tournament engine. Outposts, threats, piece
// coordination, space, trapped pieces and king tropism are dropped:
// each added a few dozen lines for a signal this evaluator's only
// consumers -- the minimax and heuristic opponents -- don't need.
func evaluate(pos *board.Position) int {
	return evaluateWithPawnTable(pos, nil)
}

// evaluateWithPawnTable is like evaluate but consults pt (if non-nil)
// to skip recomputing passed-pawn scores for an unchanged pawn skeleton.
func evaluateWithPawnTable(pos *board.Position, pt *pawnTable) int {
	var mgScore, egScore, phase int

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}

		for p := board.Pawn; p <= board.King; p++ {
			bb := pos.Pieces[c][p]
			for bb != 0 {
				sq := bb.PopLSB()

				mgScore += sign * pieceValues[p]
				egScore += sign * pieceValues[p]

				pstSq := sq
				if c == board.Black {
					pstSq = sq.Mirror()
				}

				if p == board.King {
					mgScore += sign * kingMidgamePST[pstSq]
					egScore += sign * kingEndgamePST[pstSq]
				} else {
					v := psts[p][pstSq]
					mgScore += sign * v
					egScore += sign * v
				}

				switch p {
				case board.Knight, board.Bishop:
					phase++
				case board.Rook:
					phase += 2
				case board.Queen:
					phase += 4
				}
			}
		}
	}

	var ppMg, ppEg int
	if pt != nil {
		if mg, eg, found := pt.probe(pos.PawnKey); found {
			ppMg, ppEg = mg, eg
		} else {
			ppMg, ppEg = evaluatePassedPawns(pos)
			pt.store(pos.PawnKey, ppMg, ppEg)
		}
	} else {
		ppMg, ppEg = evaluatePassedPawns(pos)
	}
	mgScore += ppMg
	egScore += ppEg

	mobMg, mobEg := evaluateMobility(pos)
	mgScore += mobMg
	egScore += mobEg

	mgScore += evaluateKingSafety(pos)

	bpMg, bpEg := evaluateBishopPair(pos)
	mgScore += bpMg
	egScore += bpEg

	mgScore += evaluatePins(pos)

	if phase > maxPhase {
		phase = maxPhase
	}
	score := (mgScore*phase + egScore*(maxPhase-phase)) / maxPhase
	score += tempoBonus

	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}

// evaluateMaterial returns the pure material balance from the side to
// move's perspective.
func evaluateMaterial(pos *board.Position) int {
	score := 0
	for p := board.Pawn; p < board.King; p++ {
		score += pos.Pieces[board.White][p].PopCount() * pieceValues[p]
		score -= pos.Pieces[board.Black][p].PopCount() * pieceValues[p]
	}
	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}

func isPassedPawn(pos *board.Position, sq board.Square, color board.Color) bool {
	file := sq.File()
	enemyPawns := pos.Pieces[color.Other()][board.Pawn]

	fileMask := board.FileMask[file]
	if file > 0 {
		fileMask |= board.FileMask[file-1]
	}
	if file < 7 {
		fileMask |= board.FileMask[file+1]
	}

	var frontMask board.Bitboard
	if color == board.White {
		frontMask = board.SquareBB(sq).NorthFill() &^ board.SquareBB(sq)
	} else {
		frontMask = board.SquareBB(sq).SouthFill() &^ board.SquareBB(sq)
	}

	return (enemyPawns & fileMask & frontMask) == 0
}

func evaluatePassedPawns(pos *board.Position) (mgBonus, egBonus int) {
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		pawns := pos.Pieces[color][board.Pawn]
		friendlyPawns := pawns
		enemy := color.Other()

		friendlyKingSq := pos.KingSquare[color]
		enemyKingSq := pos.KingSquare[enemy]

		for pawns != 0 {
			sq := pawns.PopLSB()
			if !isPassedPawn(pos, sq, color) {
				continue
			}

			relRank := sq.RelativeRank(color)
			file := sq.File()
			bonus := passedPawnBonus[relRank]
			egExtra := 0

			var promoSq board.Square
			if color == board.White {
				promoSq = board.NewSquare(file, 7)
			} else {
				promoSq = board.NewSquare(file, 0)
			}

			friendlyKingDist := chebyshevDistance(friendlyKingSq, sq)
			egExtra += kingDistanceBonus[7-minInt(friendlyKingDist, 7)]

			enemyKingDistToPromo := chebyshevDistance(enemyKingSq, promoSq)
			egExtra += kingDistanceBonus[minInt(enemyKingDistToPromo, 7)]

			if board.PawnAttacks(sq, color.Other())&friendlyPawns != 0 {
				bonus += passedPawnProtectedBonus
			}

			var adjacentFiles board.Bitboard
			if file > 0 {
				adjacentFiles |= board.FileMask[file-1]
			}
			if file < 7 {
				adjacentFiles |= board.FileMask[file+1]
			}
			for temp := friendlyPawns & adjacentFiles; temp != 0; {
				connSq := temp.PopLSB()
				if isPassedPawn(pos, connSq, color) {
					bonus += passedPawnConnectedBonus
					break
				}
			}

			var frontSquares board.Bitboard
			if color == board.White {
				frontSquares = board.SquareBB(sq).NorthFill() &^ board.SquareBB(sq)
			} else {
				frontSquares = board.SquareBB(sq).SouthFill() &^ board.SquareBB(sq)
			}
			frontSquares &= board.FileMask[file]
			pathClear := (frontSquares & pos.AllOccupied) == 0
			if pathClear {
				bonus += passedPawnFreePathBonus
			}

			if pathClear && relRank >= 4 {
				squaresToPromo := 7 - relRank
				enemyKingDistToPawn := chebyshevDistance(enemyKingSq, sq)
				tempo := 0
				if pos.SideToMove == color {
					tempo = 1
				}
				if enemyKingDistToPawn > squaresToPromo+1-tempo {
					egExtra += passedPawnUnstoppableBonus
				}
			}

			mgBonus += sign * bonus
			egBonus += sign * (bonus*3/2 + egExtra)
		}
	}

	return mgBonus, egBonus
}

func evaluateMobility(pos *board.Position) (mgBonus, egBonus int) {
	occupied := pos.AllOccupied

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemyPawns := pos.Pieces[color.Other()][board.Pawn]
		var unsafe board.Bitboard
		if color == board.White {
			unsafe = enemyPawns.SouthEast() | enemyPawns.SouthWest()
		} else {
			unsafe = enemyPawns.NorthEast() | enemyPawns.NorthWest()
		}
		blocked := unsafe | pos.Occupied[color]

		score := func(pt board.PieceType, attacks board.Bitboard) {
			count := (attacks &^ blocked).PopCount()
			mgBonus += sign * mobilityMgWeight[pt] * count
			egBonus += sign * mobilityEgWeight[pt] * count
		}

		for knights := pos.Pieces[color][board.Knight]; knights != 0; {
			sq := knights.PopLSB()
			score(board.Knight, board.KnightAttacks(sq))
		}
		for bishops := pos.Pieces[color][board.Bishop]; bishops != 0; {
			sq := bishops.PopLSB()
			score(board.Bishop, board.BishopAttacks(sq, occupied))
		}
		for rooks := pos.Pieces[color][board.Rook]; rooks != 0; {
			sq := rooks.PopLSB()
			score(board.Rook, board.RookAttacks(sq, occupied))
		}
		for queens := pos.Pieces[color][board.Queen]; queens != 0; {
			sq := queens.PopLSB()
			score(board.Queen, board.QueenAttacks(sq, occupied))
		}
	}

	return mgBonus, egBonus
}

func evaluateKingSafety(pos *board.Position) int {
	var score int
	occupied := pos.AllOccupied

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		kingSq := pos.KingSquare[color]
		kingFile := kingSq.File()
		kingZone := board.KingAttacks(kingSq) | board.SquareBB(kingSq)
		if color == board.White {
			kingZone |= kingZone.North()
		} else {
			kingZone |= kingZone.South()
		}

		enemy := color.Other()
		attackerCount, attackWeight := 0, 0

		attacksInto := func(pt board.PieceType, attacks board.Bitboard) {
			if attacks&kingZone != 0 {
				attackerCount++
				attackWeight += attackerWeight[pt]
			}
		}
		for temp := pos.Pieces[enemy][board.Knight]; temp != 0; {
			sq := temp.PopLSB()
			attacksInto(board.Knight, board.KnightAttacks(sq))
		}
		for temp := pos.Pieces[enemy][board.Bishop]; temp != 0; {
			sq := temp.PopLSB()
			attacksInto(board.Bishop, board.BishopAttacks(sq, occupied))
		}
		for temp := pos.Pieces[enemy][board.Rook]; temp != 0; {
			sq := temp.PopLSB()
			attacksInto(board.Rook, board.RookAttacks(sq, occupied))
		}
		for temp := pos.Pieces[enemy][board.Queen]; temp != 0; {
			sq := temp.PopLSB()
			attacksInto(board.Queen, board.QueenAttacks(sq, occupied))
		}

		if attackerCount >= 2 {
			attackWeight = attackWeight * attackerCount / 2
		}
		score -= sign * attackWeight

		ownPawns := pos.Pieces[color][board.Pawn]
		enemyPawns := pos.Pieces[enemy][board.Pawn]

		for f := kingFile - 1; f <= kingFile+1; f++ {
			if f < 0 || f > 7 {
				continue
			}
			filePawns := ownPawns & board.FileMask[f]
			enemyOnFile := enemyPawns & board.FileMask[f]

			shieldRank := 1
			if color == board.Black {
				shieldRank = 6
			}
			shieldMask := board.FileMask[f] & board.RankMask[shieldRank]
			if ownPawns&shieldMask != 0 {
				score += sign * pawnShieldBonus
			} else if filePawns == 0 {
				score += sign * pawnShieldMissing
			}

			if filePawns == 0 && enemyOnFile == 0 {
				score += sign * openFileNearKing
			} else if filePawns == 0 {
				score += sign * semiOpenFileNearKing
			}
		}
	}

	return score
}

func evaluateBishopPair(pos *board.Position) (mgBonus, egBonus int) {
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}
		if pos.Pieces[color][board.Bishop].PopCount() >= 2 {
			mgBonus += sign * bishopPairMgBonus
			egBonus += sign * bishopPairEgBonus
		}
	}
	return mgBonus, egBonus
}

const pinPenalty = 12

// evaluatePins penalizes a side for pieces pinned to its own king: a
// pinned piece's mobility is constrained along the pin line, which
// good play in front of sliders routinely exploits. Pins for the
// side not on move are read by probing a null move and reverting it,
// since ComputePinned only answers for the side to move.
func evaluatePins(pos *board.Position) int {
	white, black := pinnedCounts(pos)
	return (black - white) * pinPenalty
}

func pinnedCounts(pos *board.Position) (white, black int) {
	mover := pos.ComputePinned().PopCount()
	undo := pos.MakeNullMove()
	other := pos.ComputePinned().PopCount()
	pos.UnmakeNullMove(undo)

	if pos.SideToMove == board.White {
		return mover, other
	}
	return other, mover
}

func chebyshevDistance(sq1, sq2 board.Square) int {
	f1, r1 := sq1.File(), sq1.Rank()
	f2, r2 := sq2.File(), sq2.Rank()

	fileDiff := f1 - f2
	if fileDiff < 0 {
		fileDiff = -fileDiff
	}
	rankDiff := r1 - r2
	if rankDiff < 0 {
		rankDiff = -rankDiff
	}
	if fileDiff > rankDiff {
		return fileDiff
	}
	return rankDiff
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
