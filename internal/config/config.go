// Package config defines the training run's configuration surface and
// its validation rules. It is a plain validated-struct-plus-Validate
// type, collected into one place since self-play training has a
// single run-level configuration rather than per-user preferences.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/hailam/chessrl/internal/env"
	"github.com/hailam/chessrl/internal/network"
	"github.com/hailam/chessrl/internal/opponent"
	"github.com/hailam/chessrl/internal/replay"
)

// Config collects every tunable of a self-play training run: network
// architecture, DQN hyperparameters, replay buffer shape, self-play
// cycle structure, reward shaping, checkpointing, and logging.
type Config struct {
	// Network architecture (C3)
	HiddenLayers []int
	Activation   network.Activation
	WeightInit   network.WeightInit
	Optimizer    network.Optimizer
	LearningRate float64
	L2Decay      float64
	ClipNorm     float64
	Loss         network.Loss
	HuberDelta   float64

	// DQN (C5)
	BatchSize             int
	ExplorationRate       float64
	ExplorationRateMin    float64
	ExplorationRateDecay  float64
	TargetUpdateFrequency int
	DoubleDQN             bool
	Gamma                 float64

	// Replay buffer (C4)
	MaxExperienceBuffer int
	ReplayType          replay.Type
	PrioritizedAlpha    float64
	PrioritizedBeta     float64
	PrioritizedBetaStep float64
	PrioritizedEpsilon  float64

	// Self-play cycle structure (C7)
	GamesPerCycle      int
	MaxCycles          int
	MaxConcurrentGames int
	MaxStepsPerGame    int
	MaxBatchesPerCycle int
	// CycleTimeout bounds how long a single game within a cycle may run
	// before it is abandoned and its experiences discarded, independent
	// of the run's overall wall-clock budget. Zero means no per-game
	// deadline beyond MaxStepsPerGame.
	CycleTimeout time.Duration

	// Reward shaping (C6)
	WinReward        float64
	LossReward       float64
	DrawReward       float64
	StepLimitPenalty float64

	// Training-opponent (games the learner plays against while training)
	TrainOpponentType           opponent.Kind
	TrainOpponentDepth          int
	TrainEarlyAdjudication      bool
	TrainResignMaterialThreshold int
	TrainNoProgressPlies        int

	// Evaluation-opponent (held-out games used to score a checkpoint)
	EvaluationGames             int
	EvalEarlyAdjudication       bool
	EvalResignMaterialThreshold int
	EvalNoProgressPlies         int

	IllegalActionPolicy env.IllegalActionPolicy

	Seed int64

	CheckpointInterval     int
	CheckpointDirectory    string
	CheckpointMaxVersions  int

	LogInterval int
}

// Warning is a non-fatal configuration concern: the run can proceed,
// but the value is unusual enough to surface to the operator.
type Warning string

// Validate rejects configurations that cannot produce a coherent
// training run and returns any non-fatal Warnings alongside a nil
// error when the configuration is otherwise usable.
func (c Config) Validate() ([]Warning, error) {
	var warnings []Warning

	if len(c.HiddenLayers) == 0 {
		return nil, fmt.Errorf("config: hiddenLayers must be non-empty")
	}
	for _, h := range c.HiddenLayers {
		if h < 0 {
			return nil, fmt.Errorf("config: hiddenLayers entries must be non-negative, got %d", h)
		}
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("config: batchSize must be positive, got %d", c.BatchSize)
	}
	if c.MaxExperienceBuffer <= 0 {
		return nil, fmt.Errorf("config: maxExperienceBuffer must be positive, got %d", c.MaxExperienceBuffer)
	}
	if c.MaxExperienceBuffer <= c.BatchSize {
		return nil, fmt.Errorf("config: maxExperienceBuffer (%d) must exceed batchSize (%d)", c.MaxExperienceBuffer, c.BatchSize)
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return nil, fmt.Errorf("config: learningRate must be in (0,1], got %v", c.LearningRate)
	}
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		return nil, fmt.Errorf("config: explorationRate must be in [0,1], got %v", c.ExplorationRate)
	}
	if c.Gamma <= 0 || c.Gamma >= 1 {
		return nil, fmt.Errorf("config: gamma must be in (0,1), got %v", c.Gamma)
	}
	if c.TargetUpdateFrequency <= 0 {
		return nil, fmt.Errorf("config: targetUpdateFrequency must be positive, got %d", c.TargetUpdateFrequency)
	}
	if c.GamesPerCycle <= 0 {
		return nil, fmt.Errorf("config: gamesPerCycle must be positive, got %d", c.GamesPerCycle)
	}
	if c.MaxCycles <= 0 {
		return nil, fmt.Errorf("config: maxCycles must be positive, got %d", c.MaxCycles)
	}
	if c.MaxConcurrentGames <= 0 {
		return nil, fmt.Errorf("config: maxConcurrentGames must be positive, got %d", c.MaxConcurrentGames)
	}
	if c.MaxStepsPerGame <= 0 {
		return nil, fmt.Errorf("config: maxStepsPerGame must be positive, got %d", c.MaxStepsPerGame)
	}
	if c.CheckpointInterval <= 0 {
		return nil, fmt.Errorf("config: checkpointInterval must be positive, got %d", c.CheckpointInterval)
	}
	if c.CheckpointDirectory == "" {
		return nil, fmt.Errorf("config: checkpointDirectory must be set")
	}

	if c.MaxConcurrentGames > runtime.GOMAXPROCS(0) {
		warnings = append(warnings, Warning(fmt.Sprintf(
			"maxConcurrentGames (%d) exceeds available concurrency (%d); workers will contend for CPU",
			c.MaxConcurrentGames, runtime.GOMAXPROCS(0))))
	}
	if c.DrawReward > c.WinReward {
		warnings = append(warnings, Warning(fmt.Sprintf(
			"drawReward (%v) is greater than winReward (%v); the agent may learn to prefer draws",
			c.DrawReward, c.WinReward)))
	}

	return warnings, nil
}

// Default returns a reasonable starting configuration, consumed by
// the CLI entrypoint when no flags override it.
func Default() Config {
	return Config{
		HiddenLayers:          []int{512, 256},
		Activation:            network.ReLU,
		WeightInit:            network.InitHe,
		Optimizer:             network.OptAdam,
		LearningRate:          0.001,
		L2Decay:               0,
		ClipNorm:              10,
		Loss:                  network.LossHuber,
		HuberDelta:            1.0,
		BatchSize:             64,
		ExplorationRate:       1.0,
		ExplorationRateMin:    0.05,
		ExplorationRateDecay:  0.995,
		TargetUpdateFrequency: 1000,
		DoubleDQN:             true,
		Gamma:                 0.99,
		MaxExperienceBuffer:   100000,
		ReplayType:            replay.Prioritized,
		PrioritizedAlpha:      0.6,
		PrioritizedBeta:       0.4,
		PrioritizedBetaStep:   0.000001,
		PrioritizedEpsilon:    0.01,
		GamesPerCycle:         50,
		MaxCycles:             1000,
		MaxConcurrentGames:    runtime.GOMAXPROCS(0),
		MaxStepsPerGame:       300,
		MaxBatchesPerCycle:    200,
		CycleTimeout:          2 * time.Minute,
		WinReward:             1.0,
		LossReward:            -1.0,
		DrawReward:            0.0,
		StepLimitPenalty:      -0.1,
		TrainOpponentType:     opponent.KindSelf,
		TrainOpponentDepth:    2,
		EvaluationGames:       20,
		IllegalActionPolicy:   env.Terminate,
		CheckpointInterval:    10,
		CheckpointDirectory:   "./checkpoints",
		CheckpointMaxVersions: 5,
		LogInterval:           1,
	}
}
