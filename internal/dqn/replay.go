package dqn

import (
	"fmt"
	"math/rand"

	"flappy-rl/internal/flappy"
)

// Experience is one environment transition, copied by value into the buffer.
type Experience struct {
	State     flappy.Observation `json:"state"`
	Action    flappy.Action      `json:"action"`
	Reward    float64            `json:"reward"`
	NextState flappy.Observation `json:"next_state"`
	Done      bool               `json:"done"`
}

// ReplayBuffer is a bounded store of past transitions. Once at capacity, new
// pushes overwrite the oldest entry at a circular write cursor: FIFO
// overwrite with O(1) insert. Sampling is uniform without replacement.
type ReplayBuffer struct {
	experiences []Experience
	capacity    int
	writeIndex  int
	rng         *rand.Rand
}

// NewReplayBuffer creates a buffer holding at most capacity transitions.
func NewReplayBuffer(capacity int, seed int64) (*ReplayBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be greater than zero, got %d", capacity)
	}
	return &ReplayBuffer{
		experiences: make([]Experience, 0, capacity),
		capacity:    capacity,
		rng:         rand.New(rand.NewSource(seed)),
	}, nil
}

// Push stores a transition, overwriting the oldest once at capacity.
func (rb *ReplayBuffer) Push(exp Experience) {
	if len(rb.experiences) < rb.capacity {
		rb.experiences = append(rb.experiences, exp)
		return
	}
	rb.experiences[rb.writeIndex] = exp
	rb.writeIndex = (rb.writeIndex + 1) % rb.capacity
}

// Sample returns n distinct transitions drawn uniformly from the buffer.
// Fails with ErrNotEnoughData if fewer than n transitions are stored.
func (rb *ReplayBuffer) Sample(n int) ([]Experience, error) {
	if len(rb.experiences) < n {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrNotEnoughData, len(rb.experiences), n)
	}
	indices := rb.rng.Perm(len(rb.experiences))
	batch := make([]Experience, n)
	for i := 0; i < n; i++ {
		batch[i] = rb.experiences[indices[i]]
	}
	return batch, nil
}

// CanSample reports whether a batch of n transitions is available.
func (rb *ReplayBuffer) CanSample(n int) bool {
	return len(rb.experiences) >= n
}

// Size returns the number of stored transitions.
func (rb *ReplayBuffer) Size() int { return len(rb.experiences) }

// Capacity returns the maximum number of stored transitions.
func (rb *ReplayBuffer) Capacity() int { return rb.capacity }

// Clear empties the buffer and resets the write cursor.
func (rb *ReplayBuffer) Clear() {
	rb.experiences = rb.experiences[:0]
	rb.writeIndex = 0
}
