// Package rules layers game-level state on top of internal/board's
// bitboard move generator: legality-checked move application, status
// classification, and the position-history multiset that a plain
// single-position search engine never needs (its search tree is
// transient and unmade after every line, so it never has to remember
// a whole game).
package rules

import (
	"errors"
	"fmt"

	"github.com/hailam/chessrl/internal/board"
)

// ErrIllegalMove is returned by Game.MakeMove when the supplied move is
// not among the legal moves of the side to move. The position is left
// unmodified.
var ErrIllegalMove = errors.New("rules: illegal move")

// Status classifies a position for the side to move.
type Status int

const (
	Ongoing Status = iota
	Check
	WhiteWins
	BlackWins
	DrawStalemate
	DrawInsufficientMaterial
	DrawFiftyMoveRule
	DrawRepetition
)

func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ONGOING"
	case Check:
		return "CHECK"
	case WhiteWins:
		return "WHITE_WINS"
	case BlackWins:
		return "BLACK_WINS"
	case DrawStalemate:
		return "DRAW_STALEMATE"
	case DrawInsufficientMaterial:
		return "DRAW_INSUFFICIENT_MATERIAL"
	case DrawFiftyMoveRule:
		return "DRAW_FIFTY_MOVE_RULE"
	case DrawRepetition:
		return "DRAW_REPETITION"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether a status ends the game (as opposed to
// ONGOING/CHECK, which both still have a move to make).
func (s Status) IsTerminal() bool {
	switch s {
	case WhiteWins, BlackWins, DrawStalemate, DrawInsufficientMaterial, DrawFiftyMoveRule, DrawRepetition:
		return true
	default:
		return false
	}
}

// Game wraps a board.Position with the repetition history required to
// detect threefold repetition across a whole game, rather than just
// within one transient search tree.
type Game struct {
	Pos     *board.Position
	history map[uint64]int
	keys    []uint64 // insertion order of history's keys, for Copy/debugging
}

// NewGame creates a game at the standard starting position.
func NewGame() *Game {
	return newGameFromPosition(board.NewPosition())
}

// NewEmptyGame creates a game with an empty board. The caller is
// expected to place pieces with SetPieceAt before using it.
func NewEmptyGame() *Game {
	pos := &board.Position{}
	pos.Clear()
	return newGameFromPosition(pos)
}

// NewGameFromFEN parses a full FEN string into a Game.
func NewGameFromFEN(fen string) (*Game, error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return nil, fmt.Errorf("rules: parse FEN: %w", err)
	}
	return newGameFromPosition(pos), nil
}

func newGameFromPosition(pos *board.Position) *Game {
	g := &Game{
		Pos:     pos,
		history: make(map[uint64]int, 64),
	}
	g.recordCurrent()
	return g
}

func (g *Game) recordCurrent() {
	h := g.Pos.Hash
	g.history[h]++
	g.keys = append(g.keys, h)
}

// FEN returns the six-field FEN string of the current position.
func (g *Game) FEN() string {
	return g.Pos.ToFEN()
}

// SetPieceAt places a piece on a square of an otherwise-uncommitted
// board (intended for building test/scenario positions, not for
// mutating a game in progress).
func (g *Game) SetPieceAt(piece board.Piece, sq board.Square) {
	g.Pos.SetPiece(piece, sq)
	g.refreshDerived()
}

// GetPieceAt returns the piece occupying a square, or board.NoPiece.
func (g *Game) GetPieceAt(sq board.Square) board.Piece {
	return g.Pos.PieceAt(sq)
}

// ClearBoard empties the board, resets game state, and clears history.
func (g *Game) ClearBoard() {
	g.Pos.Clear()
	g.history = make(map[uint64]int, 64)
	g.keys = g.keys[:0]
	g.refreshDerived()
	g.recordCurrent()
}

// FindKing returns the square of the king of the given color, or
// board.NoSquare if the board has none (only possible on a
// caller-assembled scenario board before Finalize).
func (g *Game) FindKing(c board.Color) board.Square {
	return g.Pos.KingSquare[c]
}

// refreshDerived recomputes occupancy/hash/checkers after direct piece
// placement via SetPieceAt, mirroring what ParseFEN does once parsing
// completes.
func (g *Game) refreshDerived() {
	g.Pos.RefreshDerivedState()
}

// Finalize must be called after a sequence of SetPieceAt calls and
// before the game is played, once SideToMove/castling/en-passant have
// been set directly on Pos. It recomputes hashes and checkers and
// seeds the repetition history with the resulting position.
func (g *Game) Finalize() {
	g.refreshDerived()
	g.history = make(map[uint64]int, 64)
	g.keys = g.keys[:0]
	g.recordCurrent()
}

// LegalMoves returns the legal moves for the side to move.
func (g *Game) LegalMoves() []board.Move {
	ml := g.Pos.GenerateLegalMoves()
	return ml.Slice()
}

// MakeMove applies m if legal, updating castling rights, en-passant
// target, halfmove clock, fullmove number, and repetition history. It
// performs no partial mutation: on an illegal move the position is left
// exactly as it was.
func (g *Game) MakeMove(m board.Move) error {
	legal := g.Pos.GenerateLegalMoves()
	if !legal.Contains(m) {
		return ErrIllegalMove
	}
	g.Pos.MakeMove(m)
	g.recordCurrent()
	return nil
}

// MakeUCIMove parses and applies a UCI move string such as "e2e4" or
// "a7a8q".
func (g *Game) MakeUCIMove(s string) (board.Move, error) {
	m, err := board.ParseMove(s, g.Pos)
	if err != nil {
		return board.NoMove, fmt.Errorf("rules: %w", err)
	}
	if err := g.MakeMove(m); err != nil {
		return board.NoMove, err
	}
	return m, nil
}

// repetitionCount returns how many times the current position has
// occurred (including the current occurrence).
func (g *Game) repetitionCount() int {
	return g.history[g.Pos.Hash]
}

// Status classifies the current position in priority order:
// checkmate/stalemate first, then insufficient material, fifty-move,
// repetition, then plain check vs ongoing.
func (g *Game) Status() Status {
	g.Pos.UpdateCheckers()
	if !g.Pos.HasLegalMoves() {
		if g.Pos.InCheck() {
			if g.Pos.SideToMove == board.White {
				return BlackWins
			}
			return WhiteWins
		}
		return DrawStalemate
	}
	if g.Pos.IsInsufficientMaterial() {
		return DrawInsufficientMaterial
	}
	if g.Pos.HalfMoveClock >= 100 {
		return DrawFiftyMoveRule
	}
	if g.repetitionCount() >= 3 {
		return DrawRepetition
	}
	if g.Pos.InCheck() {
		return Check
	}
	return Ongoing
}

// Copy returns a deep copy of the game, including repetition history,
// suitable for handing an independent board to a new self-play worker.
func (g *Game) Copy() *Game {
	cp := &Game{
		Pos:     g.Pos.Copy(),
		history: make(map[uint64]int, len(g.history)),
		keys:    append([]uint64(nil), g.keys...),
	}
	for k, v := range g.history {
		cp.history[k] = v
	}
	return cp
}
