package dqn

import (
	"testing"

	"github.com/hailam/chessrl/internal/network"
	"github.com/hailam/chessrl/internal/replay"
)

func testNetConfig() network.Config {
	return network.Config{
		InputSize:    4,
		HiddenLayers: []int{8},
		OutputSize:   3,
		Activation:   network.ReLU,
		WeightInit:   network.InitHe,
		Seed:         1,
		Optimizer:    network.OptAdam,
		LearningRate: 0.01,
		Loss:         network.LossHuber,
	}
}

func testDQNConfig() Config {
	return Config{Gamma: 0.99, DoubleDQN: false, TargetUpdateFrequency: 5}
}

func TestSelectActionMasksToValidActions(t *testing.T) {
	agent, err := New(testNetConfig(), testDQNConfig(), 7)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	valid := []uint16{1, 2}
	for i := 0; i < 20; i++ {
		act, err := agent.SelectAction([]float64{1, 2, 3, 4}, valid, 0.0)
		if err != nil {
			t.Fatalf("SelectAction: %v", err)
		}
		if act != 1 && act != 2 {
			t.Fatalf("expected action in %v, got %d", valid, act)
		}
	}
}

func TestSelectActionRejectsEmptyValidActions(t *testing.T) {
	agent, _ := New(testNetConfig(), testDQNConfig(), 1)
	if _, err := agent.SelectAction([]float64{1, 2, 3, 4}, nil, 0); err == nil {
		t.Error("expected error for empty validActions")
	}
}

func TestTrainBatchSyncsTargetOnSchedule(t *testing.T) {
	cfg := testDQNConfig()
	cfg.TargetUpdateFrequency = 2
	agent, err := New(testNetConfig(), cfg, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	buf, err := replay.New(replay.Uniform, 16, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("replay.New: %v", err)
	}
	for i := 0; i < 8; i++ {
		done := i%3 == 0
		var nextValid []uint16
		if !done {
			nextValid = []uint16{0, 1, 2}
		}
		buf.Add(replay.Experience{
			State:            []float64{1, 0, 0, 0},
			Action:           0,
			Reward:           1,
			NextState:        []float64{0, 1, 0, 0},
			Done:             done,
			NextValidActions: nextValid,
		})
	}

	for i := 0; i < 2; i++ {
		if _, err := agent.TrainBatch(buf, 4); err != nil {
			t.Fatalf("TrainBatch iter %d: %v", i, err)
		}
	}
	if agent.steps != 2 {
		t.Errorf("expected 2 steps recorded, got %d", agent.steps)
	}

	probe := [][]float64{{0, 1, 0, 0}}
	onlineOut, err := agent.online.Forward(probe)
	if err != nil {
		t.Fatalf("online Forward: %v", err)
	}
	targetOut, err := agent.target.Forward(probe)
	if err != nil {
		t.Fatalf("target Forward: %v", err)
	}
	for j := range onlineOut[0] {
		if onlineOut[0][j] != targetOut[0][j] {
			t.Errorf("expected target synced to online after 2 steps, output %d: online %v, target %v", j, onlineOut[0][j], targetOut[0][j])
		}
	}
}

func TestArgmaxMaskedIgnoresActionsOutsideValidSet(t *testing.T) {
	values := []float64{5, 1, 9, 2} // index 2 is globally best but not valid here
	valid := []uint16{0, 1, 3}
	if got := argmaxMasked(values, valid); got != 0 {
		t.Errorf("expected masked argmax 0, got %d", got)
	}
	if got := maxFloatMasked(values, valid); got != 5 {
		t.Errorf("expected masked max 5, got %v", got)
	}
}

func TestTrainBatchRejectsEmptyBuffer(t *testing.T) {
	agent, _ := New(testNetConfig(), testDQNConfig(), 5)
	buf, _ := replay.New(replay.Uniform, 4, 0, 0, 0, 0)
	if _, err := agent.TrainBatch(buf, 4); err == nil {
		t.Error("expected error training on empty buffer")
	}
}
