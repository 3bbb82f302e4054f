// Command selfplay-train runs self-play training cycles against the
// configured opponent, checkpointing the learner's network and
// logging progress. Its flag.Parse-then-build-then-run shape follows
// the UCI entrypoint's (cmd/chessplay-uci/main.go), pointed at
// internal/selfplay instead of the UCI protocol loop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hailam/chessrl/internal/config"
	"github.com/hailam/chessrl/internal/opponent"
	"github.com/hailam/chessrl/internal/replay"
	"github.com/hailam/chessrl/internal/selfplay"
)

var (
	hiddenLayers       = flag.String("hidden-layers", "512,256", "comma-separated hidden layer widths")
	learningRate       = flag.Float64("learning-rate", 0.001, "optimizer learning rate")
	batchSize          = flag.Int("batch-size", 64, "training batch size")
	explorationRate    = flag.Float64("exploration-rate", 1.0, "initial epsilon for epsilon-greedy action selection")
	gamma              = flag.Float64("gamma", 0.99, "discount factor")
	doubleDQN          = flag.Bool("double-dqn", true, "use Double DQN target computation")
	maxExperienceBuffer = flag.Int("max-experience-buffer", 100000, "replay buffer capacity")
	prioritizedReplay  = flag.Bool("prioritized-replay", true, "use prioritized experience replay instead of uniform")
	gamesPerCycle      = flag.Int("games-per-cycle", 50, "self-play games collected per cycle")
	maxCycles          = flag.Int("max-cycles", 1000, "number of self-play cycles to run")
	maxConcurrentGames = flag.Int("max-concurrent-games", 0, "concurrent self-play games (0 = GOMAXPROCS)")
	maxStepsPerGame    = flag.Int("max-steps-per-game", 300, "ply budget per game before adjudicating a draw")
	opponentKind       = flag.String("opponent", "self", "training opponent: self, heuristic, minimax, random")
	opponentDepth      = flag.Int("opponent-depth", 2, "search depth for the minimax opponent")
	checkpointDir      = flag.String("checkpoint-dir", "./checkpoints", "directory to write checkpoints to")
	checkpointInterval = flag.Int("checkpoint-interval", 10, "cycles between checkpoint saves")
	evaluationGames    = flag.Int("evaluation-games", 20, "held-out games played to score each checkpoint")
	seed               = flag.Int64("seed", 1, "base RNG seed for reproducibility")
	resumeFrom         = flag.String("resume", "", "checkpoint file to resume weights from")
	trainTimeout       = flag.Duration("max-duration", 0, "wall-clock budget for the run (0 = unbounded)")
	cycleTimeout       = flag.Duration("cycle-timeout", 2*time.Minute, "wall-clock budget per in-flight game before it is abandoned (0 = unbounded)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	cfg.HiddenLayers = parseIntList(*hiddenLayers)
	cfg.LearningRate = *learningRate
	cfg.BatchSize = *batchSize
	cfg.ExplorationRate = *explorationRate
	cfg.Gamma = *gamma
	cfg.DoubleDQN = *doubleDQN
	cfg.MaxExperienceBuffer = *maxExperienceBuffer
	if *prioritizedReplay {
		cfg.ReplayType = replay.Prioritized
	} else {
		cfg.ReplayType = replay.Uniform
	}
	cfg.GamesPerCycle = *gamesPerCycle
	cfg.MaxCycles = *maxCycles
	if *maxConcurrentGames > 0 {
		cfg.MaxConcurrentGames = *maxConcurrentGames
	}
	cfg.MaxStepsPerGame = *maxStepsPerGame
	cfg.CycleTimeout = *cycleTimeout
	cfg.TrainOpponentType = opponent.Kind(*opponentKind)
	cfg.TrainOpponentDepth = *opponentDepth
	cfg.CheckpointDirectory = *checkpointDir
	cfg.CheckpointInterval = *checkpointInterval
	cfg.EvaluationGames = *evaluationGames
	cfg.Seed = *seed

	warnings, err := cfg.Validate()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	orch, err := selfplay.New(cfg)
	if err != nil {
		log.Fatalf("building orchestrator: %v", err)
	}
	defer orch.Close()

	if *resumeFrom != "" {
		if err := orch.LoadCheckpoint(*resumeFrom); err != nil {
			log.Fatalf("resuming from %s: %v", *resumeFrom, err)
		}
		log.Printf("resumed weights from %s", *resumeFrom)
	}

	orch.OnCycle = func(stats selfplay.CycleStats) {
		log.Printf("cycle=%d games=%d errors=%d winRate=%.3f drawRate=%.3f loss=%.4f gradNorm=%.4f entropy=%.4f epsilon=%.4f bufferSize=%d",
			stats.Cycle, stats.GamesPlayed, stats.GameErrors, stats.WinRate, stats.DrawRate,
			stats.MeanLoss, stats.MeanGradNorm, stats.MeanEntropy, stats.Epsilon, stats.BufferSize)
		if stats.CheckpointedAt != nil {
			log.Printf("checkpoint saved: cycle=%d path=%s winRate=%.3f", stats.CheckpointedAt.Cycle, stats.CheckpointedAt.Path, stats.CheckpointedAt.WinRate)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *trainTimeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, *trainTimeout)
		defer timeoutCancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received interrupt, finishing current cycle and exiting")
		cancel()
	}()

	if err := orch.Run(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		log.Fatalf("training run failed: %v", err)
	}
	log.Println("training run complete")
}

func parseIntList(s string) []int {
	var out []int
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, atoiOrZero(s[start:i]))
			}
			start = i + 1
		}
	}
	return out
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
