package dqn

import (
	"errors"
	"path/filepath"
	"testing"

	"flappy-rl/internal/flappy"
)

func flappyAction(i int) flappy.Action {
	if i%2 == 0 {
		return flappy.NoFlap
	}
	return flappy.Flap
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")

	cfg := testConfig()
	trained, err := NewAgent(cfg)
	if err != nil {
		t.Fatal(err)
	}
	obs := testObservation()
	for i := 0; i < 20; i++ {
		trained.StoreExperience(obs, flappyAction(i), 0.5, obs, i%5 == 0)
	}
	for i := 0; i < 10; i++ {
		if _, err := trained.Train(); err != nil {
			t.Fatal(err)
		}
	}
	if err := trained.SaveWeights(path); err != nil {
		t.Fatal(err)
	}

	cfg.Seed = 999 // different init; load must overwrite it
	loaded, err := NewAgent(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := loaded.LoadWeights(path); err != nil {
		t.Fatal(err)
	}

	wantQ, err := trained.QValues(obs)
	if err != nil {
		t.Fatal(err)
	}
	gotQ, err := loaded.QValues(obs)
	if err != nil {
		t.Fatal(err)
	}
	for i := range wantQ {
		if wantQ[i] != gotQ[i] {
			t.Fatalf("q-values differ after load: %v vs %v", wantQ, gotQ)
		}
	}

	if loaded.optimizer.Step() != 0 {
		t.Errorf("optimizer step after load = %d, want 0", loaded.optimizer.Step())
	}
}

func TestLoadWeightsShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.json")

	small, err := NewAgent(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := small.SaveWeights(path); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.LayerSizes = []int{4, 16, 2}
	big, err := NewAgent(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := big.LoadWeights(path); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("error = %v, want ErrShapeMismatch", err)
	}
}

func TestLoadWeightsMissingFile(t *testing.T) {
	agent, err := NewAgent(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := agent.LoadWeights(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("loading a missing file succeeded")
	}
}
