package selfplay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hailam/chessrl/internal/config"
	"github.com/hailam/chessrl/internal/env"
	"github.com/hailam/chessrl/internal/network"
	"github.com/hailam/chessrl/internal/opponent"
	"github.com/hailam/chessrl/internal/replay"
)

func tinyConfig(t *testing.T) config.Config {
	t.Helper()
	c := config.Default()
	c.HiddenLayers = []int{8}
	c.BatchSize = 4
	c.MaxExperienceBuffer = 64
	c.GamesPerCycle = 2
	c.MaxCycles = 1
	c.MaxConcurrentGames = 2
	c.MaxStepsPerGame = 10
	c.MaxBatchesPerCycle = 2
	c.CheckpointInterval = 1
	c.EvaluationGames = 1
	c.TargetUpdateFrequency = 1
	c.ReplayType = replay.Uniform
	c.TrainOpponentType = opponent.KindRandom
	c.IllegalActionPolicy = env.Fallback
	c.CheckpointDirectory = filepath.Join(t.TempDir(), "ckpt")
	c.Activation = network.ReLU
	c.WeightInit = network.InitHe
	c.Optimizer = network.OptAdam
	c.Loss = network.LossHuber
	c.Seed = 42
	return c
}

func TestOrchestratorRunsOneCycle(t *testing.T) {
	cfg := tinyConfig(t)
	orch, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer orch.Close()

	var stats CycleStats
	orch.OnCycle = func(s CycleStats) { stats = s }

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Cycle != 1 {
		t.Errorf("expected 1 cycle reported, got %d", stats.Cycle)
	}
	if stats.GamesPlayed != cfg.GamesPerCycle {
		t.Errorf("expected %d games played, got %d", cfg.GamesPerCycle, stats.GamesPlayed)
	}
	if stats.CheckpointedAt == nil {
		t.Error("expected a checkpoint to be recorded on the only cycle")
	}
}

func TestOrchestratorRespectsContextCancellation(t *testing.T) {
	cfg := tinyConfig(t)
	cfg.MaxCycles = 1000
	orch, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer orch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = orch.Run(ctx)
	if err == nil {
		t.Error("expected Run to return an error for an already-cancelled context")
	}
}

func TestOrchestratorAbandonsGamesPastCycleTimeout(t *testing.T) {
	cfg := tinyConfig(t)
	cfg.CycleTimeout = 1 // nanosecond: expires before any game can finish a single ply
	orch, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer orch.Close()

	var stats CycleStats
	orch.OnCycle = func(s CycleStats) { stats = s }

	if err := orch.Run(context.Background()); err == nil {
		t.Error("expected Run to report the cycle's abandoned-game errors")
	}
	if stats.GameErrors != cfg.GamesPerCycle {
		t.Errorf("expected all %d games abandoned, got %d errors", cfg.GamesPerCycle, stats.GameErrors)
	}
	if orch.buffer.Size() != 0 {
		t.Errorf("expected no experiences buffered from abandoned games, got %d", orch.buffer.Size())
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
