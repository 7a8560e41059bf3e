package dqn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"flappy-rl/internal/flappy"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LayerSizes = []int{4, 8, 2}
	cfg.BatchSize = 4
	cfg.ReplayBufferSize = 100
	cfg.LearningRate = 0.001
	return cfg
}

func testObservation() flappy.Observation {
	return flappy.Observation{Y: 0.5, VY: 0.1, DXPipe: 1.0, DYGap: 0.2}
}

func TestSelectActionValid(t *testing.T) {
	agent, err := NewAgent(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		action := agent.SelectAction(testObservation())
		if action != flappy.Flap && action != flappy.NoFlap {
			t.Fatalf("invalid action %v", action)
		}
	}
	if agent.TotalSteps() != 100 {
		t.Errorf("total steps = %d, want 100", agent.TotalSteps())
	}
}

func TestEpsilonLinearDecay(t *testing.T) {
	cfg := testConfig()
	cfg.EpsilonStart = 1.0
	cfg.EpsilonEnd = 0.01
	cfg.EpsilonDecaySteps = 100

	agent, err := NewAgent(cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		agent.SelectAction(testObservation())
	}
	want := 1.0 + (0.01-1.0)*0.5
	if math.Abs(agent.Epsilon()-want) > 1e-9 {
		t.Errorf("epsilon at half decay = %v, want %v", agent.Epsilon(), want)
	}

	for i := 0; i < 200; i++ {
		agent.SelectAction(testObservation())
	}
	if agent.Epsilon() != 0.01 {
		t.Errorf("epsilon after decay = %v, want clamped at 0.01", agent.Epsilon())
	}
}

func TestGreedyTieFavorsNoFlap(t *testing.T) {
	cfg := testConfig()
	cfg.EpsilonStart = 0
	cfg.EpsilonEnd = 0

	agent, err := NewAgent(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// Zero all parameters: Q-values tie at 0 for every state.
	zeroW := []*mat.Dense{mat.NewDense(8, 4, nil), mat.NewDense(2, 8, nil)}
	zeroB := []*mat.VecDense{mat.NewVecDense(8, nil), mat.NewVecDense(2, nil)}
	if err := agent.network.SetWeights(zeroW); err != nil {
		t.Fatal(err)
	}
	if err := agent.network.SetBiases(zeroB); err != nil {
		t.Fatal(err)
	}

	if action := agent.SelectAction(testObservation()); action != flappy.NoFlap {
		t.Errorf("tie broke toward %v, want NoFlap", action)
	}

	// A positive Flap bias must flip the choice.
	flapB := []*mat.VecDense{mat.NewVecDense(8, nil), mat.NewVecDense(2, []float64{0, 1})}
	if err := agent.network.SetBiases(flapB); err != nil {
		t.Fatal(err)
	}
	if action := agent.SelectAction(testObservation()); action != flappy.Flap {
		t.Errorf("greedy action = %v, want Flap", action)
	}
}

func TestTrainRequiresFullBatch(t *testing.T) {
	agent, err := NewAgent(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	obs := testObservation()
	for i := 0; i < 3; i++ {
		agent.StoreExperience(obs, flappy.NoFlap, 0.1, obs, false)
	}

	loss, err := agent.Train()
	if err != nil {
		t.Fatal(err)
	}
	if loss != 0 {
		t.Errorf("train under batch size returned loss %v, want 0", loss)
	}
	if agent.TrainingSteps() != 0 {
		t.Errorf("training steps = %d, want 0", agent.TrainingSteps())
	}

	agent.StoreExperience(obs, flappy.Flap, -1.0, obs, true)
	loss, err = agent.Train()
	if err != nil {
		t.Fatal(err)
	}
	if loss < 0 || math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.Errorf("loss = %v, want finite and non-negative", loss)
	}
	if agent.TrainingSteps() != 1 {
		t.Errorf("training steps = %d, want 1", agent.TrainingSteps())
	}
}

func TestTrainReducesLossOnFixedBatch(t *testing.T) {
	cfg := testConfig()
	cfg.LearningRate = 0.01
	agent, err := NewAgent(cfg)
	if err != nil {
		t.Fatal(err)
	}

	// A replay set of terminal transitions makes the targets stationary, so
	// repeated updates must drive the regression loss down.
	states := []flappy.Observation{
		{Y: 0.5, VY: 0.1, DXPipe: 1.0, DYGap: 0.2},
		{Y: 0.4, VY: 0.2, DXPipe: 0.8, DYGap: 0.1},
		{Y: 0.6, VY: -0.1, DXPipe: 0.6, DYGap: 0.3},
		{Y: 0.3, VY: 0.3, DXPipe: 0.4, DYGap: 0.0},
	}
	for i, s := range states {
		action := flappy.NoFlap
		if i%2 == 1 {
			action = flappy.Flap
		}
		agent.StoreExperience(s, action, 1.0, s, true)
	}

	first, err := agent.Train()
	if err != nil {
		t.Fatal(err)
	}
	var last float64
	for i := 0; i < 200; i++ {
		last, err = agent.Train()
		if err != nil {
			t.Fatal(err)
		}
	}
	if last >= first {
		t.Errorf("loss did not decrease: first=%v last=%v", first, last)
	}
}

func TestUpdateTargetNetworkCopiesWeightsOnly(t *testing.T) {
	agent, err := NewAgent(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	// Perturb the live network.
	w := agent.network.Weights()
	w[0].Set(0, 0, 42)
	if err := agent.network.SetWeights(w); err != nil {
		t.Fatal(err)
	}
	b := agent.network.Biases()
	b[0].SetVec(0, 7)
	if err := agent.network.SetBiases(b); err != nil {
		t.Fatal(err)
	}

	agent.UpdateTargetNetwork()

	if got := agent.targetNetwork.Weights()[0].At(0, 0); got != 42 {
		t.Errorf("target weight = %v, want 42", got)
	}
	if got := agent.targetNetwork.Biases()[0].AtVec(0); got != 0 {
		t.Errorf("target bias = %v, want 0 (weights-only sync)", got)
	}
}

func TestUpdateTargetNetworkSyncBiases(t *testing.T) {
	cfg := testConfig()
	cfg.SyncBiases = true
	agent, err := NewAgent(cfg)
	if err != nil {
		t.Fatal(err)
	}

	b := agent.network.Biases()
	b[0].SetVec(0, 7)
	if err := agent.network.SetBiases(b); err != nil {
		t.Fatal(err)
	}

	agent.UpdateTargetNetwork()

	if got := agent.targetNetwork.Biases()[0].AtVec(0); got != 7 {
		t.Errorf("target bias = %v, want 7 with SyncBiases", got)
	}
}

func TestTargetNetworkIsIndependentCopy(t *testing.T) {
	agent, err := NewAgent(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	agent.UpdateTargetNetwork()

	w := agent.network.Weights()
	w[0].Set(0, 0, -99)
	if err := agent.network.SetWeights(w); err != nil {
		t.Fatal(err)
	}

	if got := agent.targetNetwork.Weights()[0].At(0, 0); got == -99 {
		t.Error("mutating the live network leaked into the target network")
	}
}

func TestQValues(t *testing.T) {
	agent, err := NewAgent(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	q, err := agent.QValues(testObservation())
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 2 {
		t.Fatalf("q-values length = %d, want 2", len(q))
	}
	for i, v := range q {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("q[%d] = %v, want finite", i, v)
		}
	}
}
