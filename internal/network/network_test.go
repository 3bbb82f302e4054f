package network

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfig() Config {
	return Config{
		InputSize:    4,
		HiddenLayers: []int{8},
		OutputSize:   3,
		Activation:   ReLU,
		WeightInit:   InitHe,
		Seed:         1,
		Optimizer:    OptAdam,
		LearningRate: 0.01,
		Loss:         LossHuber,
	}
}

func TestForwardShape(t *testing.T) {
	n, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := n.Forward([][]float64{{1, 2, 3, 4}, {0, 0, 0, 0}})
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(out) != 2 || len(out[0]) != 3 {
		t.Fatalf("expected 2x3 output, got %dx%d", len(out), len(out[0]))
	}
}

func TestDeterministicInitGivenSeed(t *testing.T) {
	a, _ := New(testConfig())
	b, _ := New(testConfig())

	outA, _ := a.Forward([][]float64{{1, 2, 3, 4}})
	outB, _ := b.Forward([][]float64{{1, 2, 3, 4}})

	for i := range outA[0] {
		if outA[0][i] != outB[0][i] {
			t.Errorf("expected identical init for same seed, got %v vs %v", outA, outB)
		}
	}
}

func TestTrainBatchReducesLossOnRepeatedTarget(t *testing.T) {
	n, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	states := [][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}}
	targets := [][]float64{{1, 0, 0}, {0, 1, 0}}

	first, _, err := n.TrainBatch(states, targets)
	if err != nil {
		t.Fatalf("TrainBatch: %v", err)
	}
	var last float64
	for i := 0; i < 20; i++ {
		last, _, err = n.TrainBatch(states, targets)
		if err != nil {
			t.Fatalf("TrainBatch iter %d: %v", i, err)
		}
	}
	if last >= first {
		t.Errorf("expected loss to decrease over repeated training on fixed targets, first=%v last=%v", first, last)
	}
}

func TestCopyWeightsToMatchesForwardOutput(t *testing.T) {
	src, _ := New(testConfig())
	dst, _ := New(Config{
		InputSize: 4, HiddenLayers: []int{8}, OutputSize: 3,
		Activation: ReLU, WeightInit: InitXavier, Seed: 99,
		Optimizer: OptAdam, LearningRate: 0.01, Loss: LossMSE,
	})

	if err := src.CopyWeightsTo(dst); err != nil {
		t.Fatalf("CopyWeightsTo: %v", err)
	}

	state := [][]float64{{1, 2, 3, 4}}
	outSrc, _ := src.Forward(state)
	outDst, _ := dst.Forward(state)
	for i := range outSrc[0] {
		if outSrc[0][i] != outDst[0][i] {
			t.Errorf("expected matching output after CopyWeightsTo, got %v vs %v", outSrc, outDst)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	n, _ := New(testConfig())
	path := filepath.Join(t.TempDir(), "net.gob")
	if err := n.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	state := [][]float64{{1, 2, 3, 4}}
	want, _ := n.Forward(state)
	got, _ := loaded.Forward(state)
	for i := range want[0] {
		if want[0][i] != got[0][i] {
			t.Errorf("expected matching output after Save/Load, got %v vs %v", want, got)
		}
	}
}

func TestRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{InputSize: 0, OutputSize: 1, HiddenLayers: []int{4}}); err == nil {
		t.Error("expected error for non-positive input size")
	}
	if _, err := New(Config{InputSize: 1, OutputSize: 1}); err == nil {
		t.Error("expected error for empty hidden layers")
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
