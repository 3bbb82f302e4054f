package checkpoint

import (
	"os"
	"testing"

	"github.com/hailam/chessrl/internal/network"
)

func testNetwork(t *testing.T) *network.Network {
	t.Helper()
	n, err := network.New(network.Config{
		InputSize: 4, HiddenLayers: []int{8}, OutputSize: 3,
		Activation: network.ReLU, WeightInit: network.InitHe, Seed: 1,
		Optimizer: network.OptAdam, LearningRate: 0.01, Loss: network.LossHuber,
	})
	if err != nil {
		t.Fatalf("network.New: %v", err)
	}
	return n
}

func TestSaveAndLoadLatest(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if _, err := m.Save(testNetwork(t), 1, 0.4); err != nil {
		t.Fatalf("Save cycle 1: %v", err)
	}
	if _, err := m.Save(testNetwork(t), 2, 0.6); err != nil {
		t.Fatalf("Save cycle 2: %v", err)
	}

	_, meta, err := m.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if meta.Cycle != 2 {
		t.Errorf("expected latest cycle 2, got %d", meta.Cycle)
	}
}

func TestBestTracksHighestWinRate(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	m.Save(testNetwork(t), 1, 0.3)
	m.Save(testNetwork(t), 2, 0.9)
	m.Save(testNetwork(t), 3, 0.5)

	_, meta, err := m.LoadBest()
	if err != nil {
		t.Fatalf("LoadBest: %v", err)
	}
	if meta.Cycle != 2 {
		t.Errorf("expected best checkpoint to be cycle 2 (win rate 0.9), got cycle %d", meta.Cycle)
	}
}

func TestPruneRetainsLatestAndBest(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, 2)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	m.Save(testNetwork(t), 1, 0.9) // best, should survive pruning
	m.Save(testNetwork(t), 2, 0.1)
	m.Save(testNetwork(t), 3, 0.2)
	m.Save(testNetwork(t), 4, 0.2)

	versions, err := m.ListVersions()
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	foundBest := false
	for _, v := range versions {
		if v.Cycle == 1 {
			foundBest = true
		}
	}
	if !foundBest {
		t.Error("expected best checkpoint (cycle 1) to survive pruning")
	}
	if len(versions) > 3 { // the retained best counts toward maxVersions
		t.Errorf("expected pruning to bound retained versions, got %d: %+v", len(versions), versions)
	}
}

func TestLoadBestErrorsWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if _, _, err := m.LoadBest(); err == nil {
		t.Error("expected error loading best from an empty manifest")
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
