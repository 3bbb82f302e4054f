// Package selfplay implements the training orchestrator: a pool of
// goroutines plays games concurrently, feeding a shared experience
// replay buffer that a single training loop draws batches from,
// checkpointing and evaluating on a cycle boundary. The worker-pool
// shape -- a result channel sized ahead of time, a collector goroutine
// that closes it once a sync.WaitGroup drains, and a loop draining
// results while each game runs under its own deadline -- is grounded on the
// teacher's Engine.search goroutine fan-out
// (internal/engine/engine.go, since deleted in favor of this package;
// its worker-per-search shape is preserved here as worker-per-game).
package selfplay

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/hailam/chessrl/internal/board"
	"github.com/hailam/chessrl/internal/checkpoint"
	"github.com/hailam/chessrl/internal/config"
	"github.com/hailam/chessrl/internal/dqn"
	"github.com/hailam/chessrl/internal/env"
	"github.com/hailam/chessrl/internal/features"
	"github.com/hailam/chessrl/internal/network"
	"github.com/hailam/chessrl/internal/opponent"
	"github.com/hailam/chessrl/internal/replay"
	"github.com/hailam/chessrl/internal/rules"
)

// gameOutcome is one finished game's bookkeeping, sent from a worker
// goroutine to the cycle collector.
type gameOutcome struct {
	learnerReward float64
	learnerWon    bool
	draw          bool
	steps         int
	err           error
}

// CycleStats summarizes one completed training cycle, handed to
// Orchestrator.OnCycle if set.
type CycleStats struct {
	Cycle         int
	GamesPlayed   int
	GameErrors    int
	WinRate       float64
	DrawRate      float64
	MeanLoss      float64
	MeanGradNorm  float64
	MeanEntropy   float64
	Epsilon       float64
	BufferSize    int
	CheckpointedAt *checkpoint.Meta
}

// Orchestrator runs the collect -> train -> evaluate -> checkpoint ->
// log cycle loop described by the self-play training algorithm.
type Orchestrator struct {
	cfg         config.Config
	agent       *dqn.Agent
	buffer      *replay.Buffer
	checkpoints *checkpoint.Manager
	rng         *rand.Rand

	epsilon float64

	// OnCycle, if set, is called synchronously after each cycle
	// completes; used by the CLI entrypoint to print progress.
	OnCycle func(CycleStats)
}

// New builds an Orchestrator: a fresh DQN agent sized to the feature
// and action space, a replay buffer per cfg's replay settings, and a
// checkpoint manager rooted at cfg.CheckpointDirectory.
func New(cfg config.Config) (*Orchestrator, error) {
	if _, err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("selfplay: invalid config: %w", err)
	}

	netCfg := network.Config{
		InputSize:    features.Size,
		HiddenLayers: cfg.HiddenLayers,
		OutputSize:   features.ActionCount,
		Activation:   cfg.Activation,
		WeightInit:   cfg.WeightInit,
		Seed:         cfg.Seed,
		Optimizer:    cfg.Optimizer,
		LearningRate: cfg.LearningRate,
		L2Decay:      cfg.L2Decay,
		ClipNorm:     cfg.ClipNorm,
		Loss:         cfg.Loss,
		HuberDelta:   cfg.HuberDelta,
	}
	dqnCfg := dqn.Config{
		Gamma:                 cfg.Gamma,
		DoubleDQN:             cfg.DoubleDQN,
		TargetUpdateFrequency: cfg.TargetUpdateFrequency,
	}
	agent, err := dqn.New(netCfg, dqnCfg, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("selfplay: building agent: %w", err)
	}

	buf, err := replay.New(cfg.ReplayType, cfg.MaxExperienceBuffer,
		cfg.PrioritizedAlpha, cfg.PrioritizedBeta, cfg.PrioritizedBetaStep, cfg.PrioritizedEpsilon)
	if err != nil {
		return nil, fmt.Errorf("selfplay: building replay buffer: %w", err)
	}

	ckpt, err := checkpoint.Open(cfg.CheckpointDirectory, cfg.CheckpointMaxVersions)
	if err != nil {
		return nil, fmt.Errorf("selfplay: opening checkpoint manager: %w", err)
	}

	return &Orchestrator{
		cfg:         cfg,
		agent:       agent,
		buffer:      buf,
		checkpoints: ckpt,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		epsilon:     cfg.ExplorationRate,
	}, nil
}

// LoadCheckpoint resumes training from previously saved weights,
// replacing the agent's online network and resyncing its target.
func (o *Orchestrator) LoadCheckpoint(path string) error {
	return o.agent.LoadOnlineWeights(path)
}

// Close releases the checkpoint manager's resources.
func (o *Orchestrator) Close() error {
	return o.checkpoints.Close()
}

// Run executes cycles until MaxCycles completes, ctx is cancelled, or
// a cycle reports an error (a failed game, training, evaluation or
// checkpoint step), whichever comes first. OnCycle receives the stats
// of a cycle that reported an error before Run returns it.
func (o *Orchestrator) Run(ctx context.Context) error {
	for cycle := 1; cycle <= o.cfg.MaxCycles; cycle++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stats, err := o.runCycle(ctx, cycle)
		if o.OnCycle != nil {
			o.OnCycle(stats)
		}
		if err != nil {
			return fmt.Errorf("selfplay: cycle %d: %w", cycle, err)
		}

		o.epsilon = math.Max(o.cfg.ExplorationRateMin, o.epsilon*o.cfg.ExplorationRateDecay)
	}
	return nil
}

func (o *Orchestrator) runCycle(ctx context.Context, cycle int) (CycleStats, error) {
	outcomes, gameErr := o.collectGames(ctx, cycle)

	stats := CycleStats{
		Cycle:       cycle,
		GamesPlayed: len(outcomes),
		Epsilon:     o.epsilon,
		BufferSize:  o.buffer.Size(),
	}

	var wins, draws, lossSum, gradSum, entropySum float64
	var trainSteps int
	for _, out := range outcomes {
		if out.err != nil {
			stats.GameErrors++
			continue
		}
		if out.learnerWon {
			wins++
		}
		if out.draw {
			draws++
		}
	}
	if stats.GamesPlayed > 0 {
		stats.WinRate = wins / float64(stats.GamesPlayed)
		stats.DrawRate = draws / float64(stats.GamesPlayed)
	}

	for b := 0; b < o.cfg.MaxBatchesPerCycle; b++ {
		if o.buffer.Size() < o.cfg.BatchSize {
			break
		}
		result, err := o.agent.TrainBatch(o.buffer, o.cfg.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("training batch %d: %w", b, err)
		}
		lossSum += result.Loss
		gradSum += result.GradNorm
		entropySum += result.PolicyEntropy
		trainSteps++
	}
	if trainSteps > 0 {
		stats.MeanLoss = lossSum / float64(trainSteps)
		stats.MeanGradNorm = gradSum / float64(trainSteps)
		stats.MeanEntropy = entropySum / float64(trainSteps)
	}

	if cycle%o.cfg.CheckpointInterval == 0 {
		winRate, err := o.evaluate(ctx)
		if err != nil {
			return stats, fmt.Errorf("evaluation: %w", err)
		}
		meta, err := o.checkpoints.Save(onlineNetworkOf(o.agent), cycle, winRate)
		if err != nil {
			return stats, fmt.Errorf("checkpointing: %w", err)
		}
		stats.CheckpointedAt = &meta
	}

	return stats, gameErr
}

// collectGames launches up to MaxConcurrentGames goroutines to play
// GamesPerCycle games and returns once all of them finish (or ctx is
// cancelled), aggregating every per-game error into one multierror so
// a handful of broken games don't mask the rest of the cycle's results.
func (o *Orchestrator) collectGames(ctx context.Context, cycle int) ([]gameOutcome, error) {
	resultCh := make(chan gameOutcome, o.cfg.GamesPerCycle)
	sem := make(chan struct{}, o.cfg.MaxConcurrentGames)

	var wg sync.WaitGroup
spawn:
	for i := 0; i < o.cfg.GamesPerCycle; i++ {
		select {
		case <-ctx.Done():
			break spawn
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		gameSeed := o.rng.Int63()
		go func(seed int64) {
			defer wg.Done()
			defer func() { <-sem }()

			gameCtx := ctx
			if o.cfg.CycleTimeout > 0 {
				var cancel context.CancelFunc
				gameCtx, cancel = context.WithTimeout(ctx, o.cfg.CycleTimeout)
				defer cancel()
			}
			resultCh <- o.playGame(gameCtx, seed)
		}(gameSeed)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(resultCh)
		close(done)
	}()

	var outcomes []gameOutcome
	var errs *multierror.Error
	for out := range resultCh {
		outcomes = append(outcomes, out)
		if out.err != nil {
			errs = multierror.Append(errs, out.err)
		}
	}
	<-done

	var err error
	if errs != nil {
		err = errs
	}
	return outcomes, err
}

// playGame plays one game to completion, buffering every transition
// taken by the learner's side locally and flushing them into the
// shared replay buffer only once the game finishes cleanly -- an
// error or a ctx expiry discards the game's experiences rather than
// polluting the buffer with a partial trajectory. It reports the
// outcome from the learner's perspective.
func (o *Orchestrator) playGame(ctx context.Context, seed int64) gameOutcome {
	rng := rand.New(rand.NewSource(seed))

	e, err := env.New(env.Config{
		WinReward:               o.cfg.WinReward,
		LossReward:              o.cfg.LossReward,
		DrawReward:              o.cfg.DrawReward,
		StepLimitPenalty:        o.cfg.StepLimitPenalty,
		MaxStepsPerGame:         o.cfg.MaxStepsPerGame,
		IllegalActionPolicy:     o.cfg.IllegalActionPolicy,
		EarlyAdjudication:       o.cfg.TrainEarlyAdjudication,
		ResignMaterialThreshold: o.cfg.TrainResignMaterialThreshold,
		NoProgressPlies:         o.cfg.TrainNoProgressPlies,
		Seed:                    seed,
	})
	if err != nil {
		return gameOutcome{err: fmt.Errorf("building env: %w", err)}
	}

	var opp opponent.Policy
	if o.cfg.TrainOpponentType != opponent.KindSelf {
		opp, err = opponent.New(o.cfg.TrainOpponentType, o.cfg.TrainOpponentDepth, seed)
		if err != nil {
			return gameOutcome{err: fmt.Errorf("building opponent: %w", err)}
		}
	}

	learnerColor := board.White
	if rng.Intn(2) == 1 {
		learnerColor = board.Black
	}

	state := e.Reset()
	steps := 0
	var outcome gameOutcome
	var pending []replay.Experience

	for {
		select {
		case <-ctx.Done():
			return gameOutcome{err: fmt.Errorf("game cancelled: %w", ctx.Err()), steps: steps}
		default:
		}

		game := e.CurrentGame()
		mover := game.Pos.SideToMove

		var actionIdx uint16
		if opp != nil && mover != learnerColor {
			move := opp.SelectMove(game.Pos)
			actionIdx = features.MoveToActionIndex(move)
		} else {
			valid := e.GetValidActions()
			actionIdx, err = o.agent.SelectAction(state, valid, o.epsilon)
			if err != nil {
				return gameOutcome{err: fmt.Errorf("selecting action: %w", err), steps: steps}
			}
		}

		res, err := e.Step(actionIdx)
		if err != nil {
			return gameOutcome{err: fmt.Errorf("stepping: %w", err), steps: steps}
		}
		steps++

		var nextValid []uint16
		if !res.Done {
			nextValid = e.GetValidActions()
		}

		if mover == learnerColor {
			pending = append(pending, replay.Experience{
				State:            state,
				Action:           actionIdx,
				Reward:           res.Reward,
				NextState:        res.State,
				Done:             res.Done,
				NextValidActions: nextValid,
			})
			outcome.learnerReward += res.Reward
		}
		state = res.State

		if res.Done {
			outcome.steps = steps
			switch res.Status {
			case rules.WhiteWins:
				outcome.learnerWon = learnerColor == board.White
			case rules.BlackWins:
				outcome.learnerWon = learnerColor == board.Black
			default:
				outcome.draw = true
			}
			for _, exp := range pending {
				o.buffer.Add(exp)
			}
			return outcome
		}
	}
}

// evaluate plays EvaluationGames games at epsilon=0 through playGame,
// so against the training opponent with the training adjudication
// settings (the Eval* settings are not read), and returns the
// learner's win rate, the score Manager.Save tracks for
// best-checkpoint selection. Games that finish cleanly add their
// experiences to the replay buffer like collected games do.
func (o *Orchestrator) evaluate(ctx context.Context) (float64, error) {
	if o.cfg.EvaluationGames <= 0 {
		return 0, nil
	}

	savedEpsilon := o.epsilon
	o.epsilon = 0
	defer func() { o.epsilon = savedEpsilon }()

	var wins int
	for i := 0; i < o.cfg.EvaluationGames; i++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		gameCtx := ctx
		if o.cfg.CycleTimeout > 0 {
			var cancel context.CancelFunc
			gameCtx, cancel = context.WithTimeout(ctx, o.cfg.CycleTimeout)
			defer cancel()
		}
		out := o.playGame(gameCtx, o.rng.Int63())
		if out.err != nil {
			continue
		}
		if out.learnerWon {
			wins++
		}
	}
	return float64(wins) / float64(o.cfg.EvaluationGames), nil
}

// onlineNetworkOf returns the agent's online network for checkpointing,
// via dqn.Agent's exported OnlineNetwork accessor.
func onlineNetworkOf(a *dqn.Agent) *network.Network {
	return a.OnlineNetwork()
}
