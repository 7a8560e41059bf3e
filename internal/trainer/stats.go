package trainer

import (
	"math"
	"sync"

	"github.com/gammazero/deque"
	"gonum.org/v1/gonum/stat"
)

// Tracker aggregates episode results behind a mutex so a stats endpoint can
// read snapshots while training runs.
type Tracker struct {
	mu         sync.Mutex
	window     deque.Deque[float64]
	windowSize int

	episodes   int
	totalSteps int
	bestReward float64
	lastReward float64
}

// NewTracker keeps aggregate counters plus a moving window of the most
// recent windowSize episode rewards.
func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &Tracker{windowSize: windowSize, bestReward: math.Inf(-1)}
}

// Record folds one episode result into the tracker.
func (t *Tracker) Record(result EpisodeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.episodes++
	t.totalSteps += result.Steps
	t.lastReward = result.Reward
	if result.Reward > t.bestReward {
		t.bestReward = result.Reward
	}

	t.window.PushBack(result.Reward)
	for t.window.Len() > t.windowSize {
		t.window.PopFront()
	}
}

// Snapshot is a point-in-time view of training progress.
type Snapshot struct {
	Episodes     int     `json:"episodes"`
	TotalSteps   int     `json:"total_steps"`
	BestReward   float64 `json:"best_reward"`
	LastReward   float64 `json:"last_reward"`
	WindowSize   int     `json:"window_size"`
	WindowMean   float64 `json:"window_mean"`
	WindowStdDev float64 `json:"window_std_dev"`
}

// Snapshot returns current aggregates; window mean/stddev cover the most
// recent episodes only.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Episodes:   t.episodes,
		TotalSteps: t.totalSteps,
		BestReward: t.bestReward,
		LastReward: t.lastReward,
		WindowSize: t.window.Len(),
	}
	if t.episodes == 0 {
		snap.BestReward = 0
	}
	if t.window.Len() > 0 {
		rewards := make([]float64, t.window.Len())
		for i := range rewards {
			rewards[i] = t.window.At(i)
		}
		mean, std := stat.MeanStdDev(rewards, nil)
		snap.WindowMean = mean
		if !math.IsNaN(std) {
			snap.WindowStdDev = std
		}
	}
	return snap
}
