// Package dqn implements the Deep Q-Network learning algorithm:
// epsilon-greedy masked action selection, target-network bootstrapped
// TD-target construction with optional Double DQN, and the training
// step that fits the online network toward those targets. It is
// grounded on the mnkagent DQN agent's SelectAction/Learn split
// (other_examples/0298e29b_Fardinak-mnkagent__agents-dqagent.go.go),
// adapted from a tabular/simple-net agent onto network.Network and
// replay.Buffer.
package dqn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hailam/chessrl/internal/network"
	"github.com/hailam/chessrl/internal/replay"
)

// Config configures the learning rule around a pair of networks built
// from the same architecture.
type Config struct {
	Gamma                 float64
	DoubleDQN             bool
	TargetUpdateFrequency int // steps between target <- online syncs
	MaxNonFiniteLosses    int // consecutive non-finite losses before Agent gives up
}

// Agent owns the online and target networks and the step counter that
// drives periodic target synchronization.
type Agent struct {
	online *network.Network
	target *network.Network
	cfg    Config
	rng    *rand.Rand

	steps                int
	consecutiveNonFinite int
}

// New constructs an Agent. onlineCfg is used to build both the online
// and target networks so their architectures match exactly; the
// target starts as an exact copy of the freshly initialized online
// network.
func New(onlineCfg network.Config, cfg Config, seed int64) (*Agent, error) {
	if cfg.Gamma <= 0 || cfg.Gamma >= 1 {
		return nil, fmt.Errorf("dqn: gamma must be in (0,1), got %v", cfg.Gamma)
	}
	if cfg.TargetUpdateFrequency <= 0 {
		return nil, fmt.Errorf("dqn: targetUpdateFrequency must be positive, got %d", cfg.TargetUpdateFrequency)
	}
	if cfg.MaxNonFiniteLosses <= 0 {
		cfg.MaxNonFiniteLosses = 3
	}

	online, err := network.New(onlineCfg)
	if err != nil {
		return nil, fmt.Errorf("dqn: building online network: %w", err)
	}
	targetCfg := onlineCfg
	targetCfg.Seed = onlineCfg.Seed + 1 // distinct init before the first CopyWeightsTo overwrites it
	target, err := network.New(targetCfg)
	if err != nil {
		return nil, fmt.Errorf("dqn: building target network: %w", err)
	}
	if err := online.CopyWeightsTo(target); err != nil {
		return nil, fmt.Errorf("dqn: initial target sync: %w", err)
	}

	return &Agent{
		online: online,
		target: target,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

// GetActionValues returns the online network's Q-values for state.
func (a *Agent) GetActionValues(state []float64) ([]float64, error) {
	out, err := a.online.Forward([][]float64{state})
	if err != nil {
		return nil, fmt.Errorf("dqn: GetActionValues: %w", err)
	}
	return out[0], nil
}

// SelectAction runs epsilon-greedy selection masked to validActions:
// with probability epsilon it draws uniformly among validActions;
// otherwise it picks the validActions entry with the highest online
// Q-value, breaking ties by the lowest action index. validActions must
// be non-empty -- an empty slice means the caller reached a terminal
// state and has no business asking for an action there.
func (a *Agent) SelectAction(state []float64, validActions []uint16, epsilon float64) (uint16, error) {
	if len(validActions) == 0 {
		return 0, fmt.Errorf("dqn: SelectAction called with no valid actions")
	}

	if epsilon > 0 && a.rng.Float64() < epsilon {
		return validActions[a.rng.Intn(len(validActions))], nil
	}

	values, err := a.GetActionValues(state)
	if err != nil {
		return 0, err
	}

	best := validActions[0]
	bestValue := math.Inf(-1)
	// Iterate validActions in ascending order so equal Q-values resolve
	// to the lowest action index deterministically.
	sorted := append([]uint16(nil), validActions...)
	sortUint16(sorted)
	for _, act := range sorted {
		if int(act) >= len(values) {
			continue
		}
		v := values[act]
		if v > bestValue {
			bestValue = v
			best = act
		}
	}
	return best, nil
}

func sortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// TrainResult reports one TrainBatch call's bookkeeping.
type TrainResult struct {
	Loss         float64
	GradNorm     float64
	PolicyEntropy float64
}

// TrainBatch draws batchSize experiences from buf, builds TD targets
// (y_i = r_i for terminal transitions, else r_i + gamma * max_a
// target(s'_i, a), or under Double DQN r_i + gamma *
// target(s'_i, argmax_a online(s'_i, a)), with a ranging over the
// experience's NextValidActions), fits the online network toward them,
// writes the batch's TD errors back to buf as new priorities and
// anneals its beta, and syncs the target network every
// TargetUpdateFrequency steps. The importance-sampling weights Sample
// returns are not applied to the loss.
func (a *Agent) TrainBatch(buf *replay.Buffer, batchSize int) (TrainResult, error) {
	experiences, indices, _ := buf.Sample(batchSize, a.rng)
	if len(experiences) == 0 {
		return TrainResult{}, fmt.Errorf("dqn: TrainBatch called on empty replay buffer")
	}

	states := make([][]float64, len(experiences))
	nextStates := make([][]float64, len(experiences))
	for i, e := range experiences {
		states[i] = e.State
		nextStates[i] = e.NextState
	}

	onlineNext, err := a.online.Forward(nextStates)
	if err != nil {
		return TrainResult{}, fmt.Errorf("dqn: forward online(next): %w", err)
	}
	targetNext, err := a.target.Forward(nextStates)
	if err != nil {
		return TrainResult{}, fmt.Errorf("dqn: forward target(next): %w", err)
	}
	currentQ, err := a.online.Forward(states)
	if err != nil {
		return TrainResult{}, fmt.Errorf("dqn: forward online(current): %w", err)
	}

	targets := make([][]float64, len(experiences))
	tdErrors := make([]float64, len(experiences))
	for i, e := range experiences {
		row := append([]float64(nil), currentQ[i]...)
		var bootstrap float64
		if !e.Done && len(e.NextValidActions) > 0 {
			if a.cfg.DoubleDQN {
				bestAction := argmaxMasked(onlineNext[i], e.NextValidActions)
				bootstrap = targetNext[i][bestAction]
			} else {
				bootstrap = maxFloatMasked(targetNext[i], e.NextValidActions)
			}
		}
		y := e.Reward
		if !e.Done {
			y += a.cfg.Gamma * bootstrap
		}
		tdErrors[i] = y - row[e.Action]
		row[e.Action] = y
		targets[i] = row
	}

	loss, gradNorm, err := a.online.TrainBatch(states, targets)
	if err != nil {
		a.consecutiveNonFinite++
		if a.consecutiveNonFinite >= a.cfg.MaxNonFiniteLosses {
			return TrainResult{}, fmt.Errorf("dqn: %d consecutive non-finite losses, aborting: %w", a.consecutiveNonFinite, err)
		}
		return TrainResult{}, err
	}
	a.consecutiveNonFinite = 0

	buf.UpdatePriorities(indices, tdErrors)
	buf.AnnealBeta()

	a.steps++
	if a.steps%a.cfg.TargetUpdateFrequency == 0 {
		if err := a.ForceUpdate(); err != nil {
			return TrainResult{}, fmt.Errorf("dqn: target sync: %w", err)
		}
	}

	return TrainResult{
		Loss:         loss,
		GradNorm:     gradNorm,
		PolicyEntropy: batchPolicyEntropy(currentQ),
	}, nil
}

// LoadOnlineWeights replaces the agent's online network with the one
// saved at path and immediately syncs the target network to match,
// used to resume training from a checkpoint.
func (a *Agent) LoadOnlineWeights(path string) error {
	online, err := network.Load(path)
	if err != nil {
		return fmt.Errorf("dqn: loading weights from %s: %w", path, err)
	}
	a.online = online
	return a.ForceUpdate()
}

// OnlineNetwork exposes the agent's online network, e.g. for
// checkpointing; the target network stays private since callers
// never need it independent of the agent that steps it.
func (a *Agent) OnlineNetwork() *network.Network {
	return a.online
}

// ForceUpdate overwrites the target network's weights with the
// online network's, independent of the step counter.
func (a *Agent) ForceUpdate() error {
	return a.online.CopyWeightsTo(a.target)
}

// Save persists the online network; the target network is not saved
// since ForceUpdate/periodic sync reconstructs it from the online
// network on load.
func (a *Agent) Save(path string) error {
	return a.online.Save(path)
}

// Load restores an Agent's online network from path and syncs the
// target network to match.
func Load(path string, cfg Config, seed int64) (*Agent, error) {
	online, err := network.Load(path)
	if err != nil {
		return nil, fmt.Errorf("dqn: loading online network: %w", err)
	}
	a := &Agent{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
	a.online = online
	// Save only persists the online network, so the target is rebuilt
	// from the same file rather than aliasing online -- CopyWeightsTo
	// later must write into a distinct tensor set.
	target, err := network.Load(path)
	if err != nil {
		return nil, fmt.Errorf("dqn: loading target network: %w", err)
	}
	a.target = target
	return a, nil
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func maxFloat(values []float64) float64 {
	return values[argmax(values)]
}

// argmaxMasked returns the entry of validActions with the highest
// value, ties broken toward the first action in validActions order.
// validActions must be non-empty.
func argmaxMasked(values []float64, validActions []uint16) int {
	best := int(validActions[0])
	bestValue := values[best]
	for _, act := range validActions[1:] {
		if v := values[act]; v > bestValue {
			bestValue = v
			best = int(act)
		}
	}
	return best
}

// maxFloatMasked returns the highest value among validActions, used to
// bootstrap a TD target from only the actions the environment would
// actually allow in the next state.
func maxFloatMasked(values []float64, validActions []uint16) float64 {
	return values[argmaxMasked(values, validActions)]
}

// batchPolicyEntropy reports the mean softmax entropy of the online
// network's current-state Q-values across a batch, using gonum's
// stat.Entropy -- a diagnostic logged alongside loss and gradient
// norm, not part of the training objective itself.
func batchPolicyEntropy(qValues [][]float64) float64 {
	if len(qValues) == 0 {
		return 0
	}
	var sum float64
	for _, row := range qValues {
		sum += stat.Entropy(softmax(row))
	}
	return sum / float64(len(qValues))
}

func softmax(values []float64) []float64 {
	out := make([]float64, len(values))
	maxV := maxFloat(values)
	var total float64
	for i, v := range values {
		out[i] = math.Exp(v - maxV)
		total += out[i]
	}
	if total > 0 {
		floats.Scale(1.0/total, out)
	}
	return out
}
