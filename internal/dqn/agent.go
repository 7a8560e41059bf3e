package dqn

import (
	"fmt"
	"math"
	"math/rand"

	"flappy-rl/internal/flappy"
)

// Config holds agent hyperparameters.
type Config struct {
	// Network architecture: input, hidden..., output.
	LayerSizes []int

	LearningRate      float64
	Gamma             float64 // discount factor
	EpsilonStart      float64
	EpsilonEnd        float64
	EpsilonDecaySteps int

	ReplayBufferSize int
	BatchSize        int

	// GradientScale multiplies the summed per-example gradients before the
	// optimizer step. 1 keeps plain summation; 1/BatchSize averages.
	GradientScale float64

	// SyncBiases extends target-network synchronization to biases. Off by
	// default: the historical behavior copies weights only.
	SyncBiases bool

	AdamBeta1   float64
	AdamBeta2   float64
	AdamEpsilon float64

	Seed int64
}

// DefaultConfig returns the hyperparameters the environment defaults were
// tuned with.
func DefaultConfig() Config {
	return Config{
		LayerSizes:        []int{4, 128, 128, 2},
		LearningRate:      0.0001,
		Gamma:             0.99,
		EpsilonStart:      1.0,
		EpsilonEnd:        0.01,
		EpsilonDecaySteps: 10000,
		ReplayBufferSize:  10000,
		BatchSize:         32,
		GradientScale:     1.0,
		AdamBeta1:         0.9,
		AdamBeta2:         0.999,
		AdamEpsilon:       1e-8,
		Seed:              12345,
	}
}

// Agent owns a live and a target network, a replay buffer, and an optimizer.
// It selects actions epsilon-greedily, stores transitions, and trains the
// live network by bootstrapped regression against the target network.
// Not safe for concurrent use.
type Agent struct {
	cfg Config

	network       *Network
	targetNetwork *Network
	buffer        *ReplayBuffer
	optimizer     *Adam
	rng           *rand.Rand // exploration decisions

	totalSteps    int
	trainingSteps int
	epsilon       float64
}

// NewAgent constructs an agent and immediately synchronizes the target
// network to the live network's parameters.
func NewAgent(cfg Config) (*Agent, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero, got %d", cfg.BatchSize)
	}
	if cfg.GradientScale == 0 {
		cfg.GradientScale = 1.0
	}

	network, err := NewNetwork(cfg.LayerSizes, cfg.Seed)
	if err != nil {
		return nil, err
	}
	targetNetwork, err := NewNetwork(cfg.LayerSizes, cfg.Seed+1)
	if err != nil {
		return nil, err
	}
	buffer, err := NewReplayBuffer(cfg.ReplayBufferSize, cfg.Seed+2)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:           cfg,
		network:       network,
		targetNetwork: targetNetwork,
		buffer:        buffer,
		optimizer:     NewAdam(cfg.LearningRate, cfg.AdamBeta1, cfg.AdamBeta2, cfg.AdamEpsilon),
		rng:           rand.New(rand.NewSource(cfg.Seed + 3)),
		epsilon:       cfg.EpsilonStart,
	}
	a.UpdateTargetNetwork()
	return a, nil
}

// SelectAction returns an epsilon-greedy action for the given state and
// advances the linear epsilon decay. Greedy ties favor NoFlap.
func (a *Agent) SelectAction(state flappy.Observation) flappy.Action {
	a.totalSteps++

	progress := float64(a.totalSteps) / float64(a.cfg.EpsilonDecaySteps)
	if progress > 1 {
		progress = 1
	}
	a.epsilon = a.cfg.EpsilonStart + (a.cfg.EpsilonEnd-a.cfg.EpsilonStart)*progress

	if a.rng.Float64() < a.epsilon {
		if a.rng.Float64() < 0.5 {
			return flappy.NoFlap
		}
		return flappy.Flap
	}

	q, err := a.network.Forward(inputVector(state))
	if err != nil {
		// Observation length is fixed; a mismatch here is a programming error.
		panic(err)
	}
	if q[flappy.Flap] > q[flappy.NoFlap] {
		return flappy.Flap
	}
	return flappy.NoFlap
}

// StoreExperience packages a transition and pushes it to the replay buffer.
func (a *Agent) StoreExperience(state flappy.Observation, action flappy.Action, reward float64, nextState flappy.Observation, done bool) {
	a.buffer.Push(Experience{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Done:      done,
	})
}

// Train samples a batch, regresses the live network toward bootstrapped
// targets computed from the target network, and applies one optimizer step.
// Returns the batch's mean squared error on the taken actions, or zero if
// the buffer cannot yet supply a full batch.
func (a *Agent) Train() (float64, error) {
	if !a.buffer.CanSample(a.cfg.BatchSize) {
		return 0, nil
	}

	batch, err := a.buffer.Sample(a.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	total := NewGradients(a.network.LayerSizes())
	totalLoss := 0.0

	for _, exp := range batch {
		trace, err := a.network.ForwardTrace(inputVector(exp.State))
		if err != nil {
			return 0, err
		}
		predicted := trace.Output()

		target := make([]float64, len(predicted))
		copy(target, predicted) // untaken action's gradient contribution is zero

		targetQ := exp.Reward
		if !exp.Done {
			nextQ, err := a.targetNetwork.Forward(inputVector(exp.NextState))
			if err != nil {
				return 0, err
			}
			targetQ += a.cfg.Gamma * math.Max(nextQ[0], nextQ[1])
		}
		target[exp.Action] = targetQ

		diff := predicted[exp.Action] - targetQ
		totalLoss += diff * diff

		grads, err := a.network.Backward(trace, target)
		if err != nil {
			return 0, err
		}
		total.Add(grads)
	}

	if a.cfg.GradientScale != 1.0 {
		for l := range total.Weights {
			total.Weights[l].Scale(a.cfg.GradientScale, total.Weights[l])
			total.Biases[l].ScaleVec(a.cfg.GradientScale, total.Biases[l])
		}
	}

	a.optimizer.Update(a.network.weights, a.network.biases, total)
	a.trainingSteps++

	return totalLoss / float64(len(batch)), nil
}

// UpdateTargetNetwork copies the live network's weights into the target
// network. Biases are copied only when Config.SyncBiases is set; the
// weights-only default preserves the historical behavior.
func (a *Agent) UpdateTargetNetwork() {
	if err := a.targetNetwork.SetWeights(a.network.Weights()); err != nil {
		panic(err) // both networks share a layer descriptor
	}
	if a.cfg.SyncBiases {
		if err := a.targetNetwork.SetBiases(a.network.Biases()); err != nil {
			panic(err)
		}
	}
}

// Epsilon returns the current exploration rate.
func (a *Agent) Epsilon() float64 { return a.epsilon }

// QValues returns the live network's action values for a state.
func (a *Agent) QValues(state flappy.Observation) ([]float64, error) {
	return a.network.Forward(inputVector(state))
}

// TotalSteps returns the number of SelectAction calls.
func (a *Agent) TotalSteps() int { return a.totalSteps }

// TrainingSteps returns the number of optimizer updates applied.
func (a *Agent) TrainingSteps() int { return a.trainingSteps }

// BufferSize returns the number of stored transitions.
func (a *Agent) BufferSize() int { return a.buffer.Size() }

// inputVector converts an observation into the network input layout.
func inputVector(obs flappy.Observation) []float64 {
	return obs.Vector()
}
