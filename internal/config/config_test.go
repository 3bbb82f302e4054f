package config

import "testing"

func validConfig() Config {
	c := Default()
	c.MaxConcurrentGames = 1 // avoid the concurrency warning tripping unrelated tests
	return c
}

func TestDefaultConfigValidates(t *testing.T) {
	if _, err := validConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestRejectsEmptyHiddenLayers(t *testing.T) {
	c := validConfig()
	c.HiddenLayers = nil
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for empty hiddenLayers")
	}
}

func TestRejectsNonPositiveBatchSize(t *testing.T) {
	c := validConfig()
	c.BatchSize = 0
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for non-positive batchSize")
	}
}

func TestRejectsLearningRateOutOfRange(t *testing.T) {
	c := validConfig()
	c.LearningRate = 1.5
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for learningRate > 1")
	}
	c.LearningRate = 0
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for learningRate == 0")
	}
}

func TestRejectsExplorationRateOutOfRange(t *testing.T) {
	c := validConfig()
	c.ExplorationRate = -0.1
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for negative explorationRate")
	}
}

func TestRejectsGammaOutOfRange(t *testing.T) {
	c := validConfig()
	c.Gamma = 1.0
	if _, err := c.Validate(); err == nil {
		t.Error("expected error for gamma == 1")
	}
}

func TestRejectsBufferNotExceedingBatchSize(t *testing.T) {
	c := validConfig()
	c.MaxExperienceBuffer = c.BatchSize
	if _, err := c.Validate(); err == nil {
		t.Error("expected error when maxExperienceBuffer <= batchSize")
	}
}

func TestWarnsOnExcessiveConcurrency(t *testing.T) {
	c := validConfig()
	c.MaxConcurrentGames = 1 << 20
	warnings, err := c.Validate()
	if err != nil {
		t.Fatalf("expected excessive concurrency to warn, not fail: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for maxConcurrentGames exceeding available concurrency")
	}
}

func TestWarnsOnDrawRewardExceedingWinReward(t *testing.T) {
	c := validConfig()
	c.DrawReward = 2
	c.WinReward = 1
	warnings, err := c.Validate()
	if err != nil {
		t.Fatalf("expected drawReward>winReward to warn, not fail: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for drawReward exceeding winReward")
	}
}
