// Package env adapts a chess game into a single-agent MDP: Reset
// starts a fresh game and returns its initial state and legal action
// set, Step applies one action index and returns the next state,
// reward, and terminal flag. It is grounded on the alphabeth Chess
// wrapper's ActionSpace/Apply/Ended shape
// (other_examples/53b8e148_Elvenson-alphabeth__game-chess.go.go),
// ported from notnil/chess onto the board/rules/features packages.
package env

import (
	"fmt"
	"math/rand"

	"github.com/hailam/chessrl/internal/board"
	"github.com/hailam/chessrl/internal/features"
	"github.com/hailam/chessrl/internal/rules"
)

// IllegalActionPolicy decides what Step does when the decoded action
// is not among the position's legal moves.
type IllegalActionPolicy string

const (
	// Terminate ends the episode immediately with LossReward,
	// attributing the result to the agent that proposed an illegal
	// action.
	Terminate IllegalActionPolicy = "terminate"
	// Fallback substitutes a uniformly random legal move so the episode
	// continues, useful early in training when the policy hasn't yet
	// learned to stay inside the legal set.
	Fallback IllegalActionPolicy = "fallback"
)

// Config controls reward shaping, episode length, and how illegal or
// stalled games are handled.
type Config struct {
	WinReward        float64
	LossReward       float64
	DrawReward       float64
	StepLimitPenalty float64

	MaxStepsPerGame     int
	IllegalActionPolicy IllegalActionPolicy

	EarlyAdjudication        bool
	ResignMaterialThreshold  int // centipawns; side down by this much or more resigns
	NoProgressPlies          int // halfmove clock at/above this adjudicates a draw

	Seed int64
}

// StepResult is what Step returns after applying one action.
type StepResult struct {
	State   []float64
	Reward  float64
	Done    bool
	Status  rules.Status
	Illegal bool // the proposed action was not legal; Fallback substituted a move
}

// Env wraps one rules.Game as an environment instance. Not safe for
// concurrent use; self-play runs one Env per worker goroutine.
type Env struct {
	cfg  Config
	game *rules.Game
	rng  *rand.Rand
	step int
}

// New constructs an Env. Call Reset before the first Step.
func New(cfg Config) (*Env, error) {
	if cfg.MaxStepsPerGame <= 0 {
		return nil, fmt.Errorf("env: MaxStepsPerGame must be positive, got %d", cfg.MaxStepsPerGame)
	}
	if cfg.IllegalActionPolicy == "" {
		cfg.IllegalActionPolicy = Terminate
	}
	return &Env{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Reset starts a fresh game from the standard starting position and
// returns its encoded state.
func (e *Env) Reset() []float64 {
	e.game = rules.NewGame()
	e.step = 0
	return features.BoardToFeatures(e.game)
}

// GetValidActions returns the dense action index for every legal move
// in the current position. Promotions to different pieces from the
// same from/to square collapse onto one index (features.MoveToActionIndex
// ignores promotion piece), so the returned slice is deduplicated.
func (e *Env) GetValidActions() []uint16 {
	moves := e.game.LegalMoves()
	seen := make(map[uint16]bool, len(moves))
	out := make([]uint16, 0, len(moves))
	for _, m := range moves {
		idx := features.MoveToActionIndex(m)
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	return out
}

// Step decodes actionIndex into a move against the current position,
// applies it, and reports the resulting state, reward, and terminal
// status. If the decoded move is illegal, behavior follows
// Config.IllegalActionPolicy: Terminate ends the episode with
// LossReward charged to the side that proposed it; Fallback
// substitutes a uniformly random legal move and continues.
func (e *Env) Step(actionIndex uint16) (StepResult, error) {
	if e.game == nil {
		return StepResult{}, fmt.Errorf("env: Step called before Reset")
	}

	mover := e.game.Pos.SideToMove
	legal := e.game.LegalMoves()

	move := features.ActionIndexToMove(actionIndex, e.game.Pos)
	illegal := false
	if !containsMove(legal, move) {
		switch e.cfg.IllegalActionPolicy {
		case Fallback:
			move = legal[e.rng.Intn(len(legal))]
			illegal = true
		default: // Terminate
			return StepResult{
				State:   features.BoardToFeatures(e.game),
				Reward:  e.cfg.LossReward,
				Done:    true,
				Illegal: true,
			}, nil
		}
	}

	if err := e.game.MakeMove(move); err != nil {
		return StepResult{}, fmt.Errorf("env: applying legal move %v: %w", move, err)
	}
	e.step++

	status := e.game.Status()
	state := features.BoardToFeatures(e.game)

	if status.IsTerminal() {
		return StepResult{State: state, Reward: e.terminalReward(status, mover), Done: true, Status: status, Illegal: illegal}, nil
	}

	if e.cfg.EarlyAdjudication {
		if adjudicated, reward, ok := e.checkEarlyAdjudication(mover); ok {
			return StepResult{State: state, Reward: reward, Done: true, Status: adjudicated, Illegal: illegal}, nil
		}
	}

	if e.step >= e.cfg.MaxStepsPerGame {
		return StepResult{State: state, Reward: e.cfg.StepLimitPenalty, Done: true, Status: rules.Ongoing, Illegal: illegal}, nil
	}

	return StepResult{State: state, Reward: 0, Done: false, Status: status, Illegal: illegal}, nil
}

// terminalReward maps a terminal Status to a reward from mover's
// point of view: mover just played the move that produced status.
func (e *Env) terminalReward(status rules.Status, mover board.Color) float64 {
	switch status {
	case rules.WhiteWins:
		if mover == board.White {
			return e.cfg.WinReward
		}
		return e.cfg.LossReward
	case rules.BlackWins:
		if mover == board.Black {
			return e.cfg.WinReward
		}
		return e.cfg.LossReward
	default: // any draw status
		return e.cfg.DrawReward
	}
}

// checkEarlyAdjudication resigns a game early on a lopsided material
// deficit or a long stretch without a capture or pawn move, saving
// self-play cycles on games whose outcome is no longer in doubt.
func (e *Env) checkEarlyAdjudication(mover board.Color) (rules.Status, float64, bool) {
	if e.cfg.NoProgressPlies > 0 && int(e.game.Pos.HalfMoveClock) >= e.cfg.NoProgressPlies {
		return rules.DrawFiftyMoveRule, e.cfg.DrawReward, true
	}

	if e.cfg.ResignMaterialThreshold <= 0 {
		return rules.Ongoing, 0, false
	}
	balance := materialBalance(e.game.Pos) // positive favors White
	threshold := float64(e.cfg.ResignMaterialThreshold)

	if balance >= threshold {
		if mover == board.White {
			return rules.WhiteWins, e.cfg.WinReward, true
		}
		return rules.WhiteWins, e.cfg.LossReward, true
	}
	if balance <= -threshold {
		if mover == board.Black {
			return rules.BlackWins, e.cfg.WinReward, true
		}
		return rules.BlackWins, e.cfg.LossReward, true
	}
	return rules.Ongoing, 0, false
}

var pieceCentipawns = map[board.PieceType]int{
	board.Pawn: 100, board.Knight: 320, board.Bishop: 330,
	board.Rook: 500, board.Queen: 900, board.King: 0,
}

func materialBalance(pos *board.Position) float64 {
	var balance int
	for pt, v := range pieceCentipawns {
		balance += v * pos.Pieces[board.White][pt].PopCount()
		balance -= v * pos.Pieces[board.Black][pt].PopCount()
	}
	return float64(balance)
}

func containsMove(moves []board.Move, m board.Move) bool {
	for _, candidate := range moves {
		if candidate == m {
			return true
		}
	}
	return false
}

// CurrentGame exposes the underlying game for callers that need
// direct read access (logging a PGN-like move list, inspecting FEN).
func (e *Env) CurrentGame() *rules.Game {
	return e.game
}
