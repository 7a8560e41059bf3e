// Package flappy implements a deterministic side-scrolling obstacle
// environment: a point bird at a fixed x position must pass through gaps in
// scrolling pipes. The environment is the world model for DQN training and
// exposes a small bird-relative observation vector rather than raw state.
package flappy

import (
	"math/rand"
)

// Action is the binary control input.
type Action int

const (
	NoFlap Action = 0
	Flap   Action = 1
)

// Observation is the bird-relative view of the world, recomputed every tick.
type Observation struct {
	Y      float64 `json:"y"`          // bird vertical position
	VY     float64 `json:"vy"`         // bird vertical velocity
	DXPipe float64 `json:"dx_to_pipe"` // horizontal distance to next pipe center
	DYGap  float64 `json:"dy_to_gap"`  // vertical offset to next gap center
}

// Vector returns the observation as a network input slice.
func (o Observation) Vector() []float64 {
	return []float64{o.Y, o.VY, o.DXPipe, o.DYGap}
}

// StepResult bundles the outcome of one environment tick.
type StepResult struct {
	Observation Observation `json:"observation"`
	Reward      float64     `json:"reward"`
	Done        bool        `json:"done"`
}

// Config holds world geometry, physics, and reward constants.
// All distances are in world units; the world spans [0, WorldHeight] vertically.
type Config struct {
	WorldHeight float64
	PipeWidth   float64
	PipeGap     float64
	PipeSpacing float64 // distance from one pipe center to the next
	PipeSpeed   float64 // scroll speed, units per second
	DT          float64

	// Physics
	Gravity     float64 // downward accel (negative)
	FlapImpulse float64 // instantaneous vy += impulse
	TermVY      float64 // most-negative (downward) velocity bound
	MaxVY       float64 // most-positive (upward) velocity bound

	// Rewards
	RewardPass  float64 // crossing a pipe centerline
	RewardDeath float64 // terminal collision, overrides the step reward
	RewardStep  float64 // per-step shaping, default zero

	// Gap center is sampled uniformly from [GapYMin, GapYMax].
	GapYMin float64
	GapYMax float64
}

// DefaultConfig returns the tuned constants the agent defaults were trained
// against.
func DefaultConfig() Config {
	return Config{
		WorldHeight: 1.0,
		PipeWidth:   0.1,
		PipeGap:     0.25,
		PipeSpacing: 0.60,
		PipeSpeed:   0.50,
		DT:          1.0 / 60.0,
		Gravity:     -2.0,
		FlapImpulse: 0.60,
		TermVY:      -3.0,
		MaxVY:       2.5,
		RewardPass:  1.0,
		RewardDeath: -1.0,
		RewardStep:  0.0,
		GapYMin:     0.30,
		GapYMax:     0.70,
	}
}

const (
	// birdX is the bird's fixed horizontal position.
	birdX = 0.20
	// firstPipeX is where the first pipe spawns after a reset.
	firstPipeX = 1.0
	// spawnAheadX: pipes are appended until the furthest is past this x.
	spawnAheadX = 3.0
)

type pipe struct {
	x    float64 // center x
	gapY float64 // gap center y
}

// Env is a deterministic episodic simulation. It is not safe for concurrent
// use; parallel rollouts must each own an Env seeded from a derived seed.
type Env struct {
	cfg Config
	rng *rand.Rand

	y  float64
	vy float64

	pipes       []pipe
	currentPipe int
	passed      bool // scored the current pipe already

	done  bool
	steps int
}

// NewEnv creates an environment and resets it with the given seed.
func NewEnv(seed int64, cfg Config) *Env {
	e := &Env{cfg: cfg}
	e.Reset(seed)
	return e
}

// Reset re-seeds the generator and starts a new episode. Observation and
// reward sequences are reproducible for a fixed seed and action sequence.
func (e *Env) Reset(seed int64) Observation {
	e.rng = rand.New(rand.NewSource(seed))

	e.y = 0.5 * e.cfg.WorldHeight
	e.vy = 0

	e.pipes = e.pipes[:0]
	e.currentPipe = 0
	e.passed = false
	e.done = false
	e.steps = 0

	e.addPipe(firstPipeX)
	for e.pipes[len(e.pipes)-1].x < spawnAheadX {
		e.addPipe(e.pipes[len(e.pipes)-1].x + e.cfg.PipeSpacing)
	}

	return e.Observe()
}

// Observe returns the current observation without stepping.
func (e *Env) Observe() Observation {
	obs := Observation{Y: e.y, VY: e.vy}
	if e.currentPipe < len(e.pipes) {
		p := e.pipes[e.currentPipe]
		obs.DXPipe = p.x - birdX
		obs.DYGap = p.gapY - e.y
	} else {
		// No pipe ahead (transient during reseeding): report "far away".
		obs.DXPipe = 1.0
		obs.DYGap = 0.0
	}
	return obs
}

// Done reports whether the episode has terminated.
func (e *Env) Done() bool { return e.done }

// Steps returns the number of ticks elapsed since the last reset.
func (e *Env) Steps() int { return e.steps }

// Config returns the active configuration.
func (e *Env) Config() Config { return e.cfg }

// Step advances the simulation by one tick. Stage order is a contract:
// action, gravity+clamp, integrate, scroll, prune, advance current pipe,
// spawn, collision, pass scoring. A terminal environment is idempotent:
// further steps return the last observation with Done=true and no reward.
func (e *Env) Step(action Action) StepResult {
	if e.done {
		return StepResult{Observation: e.Observe(), Reward: 0, Done: true}
	}

	e.steps++
	result := StepResult{Reward: e.cfg.RewardStep}

	if action == Flap {
		e.vy += e.cfg.FlapImpulse
	}

	// Gravity first, then clamp.
	e.vy += e.cfg.Gravity * e.cfg.DT
	if e.vy < e.cfg.TermVY {
		e.vy = e.cfg.TermVY
	}
	if e.vy > e.cfg.MaxVY {
		e.vy = e.cfg.MaxVY
	}

	e.y += e.vy * e.cfg.DT

	// Scroll pipes left.
	scroll := e.cfg.PipeSpeed * e.cfg.DT
	for i := range e.pipes {
		e.pipes[i].x -= scroll
	}

	// Prune pipes whose right edge has scrolled past x=0.
	removed := 0
	for len(e.pipes) > 0 && e.pipes[0].x+0.5*e.cfg.PipeWidth < 0 {
		e.pipes = e.pipes[1:]
		removed++
	}
	e.currentPipe -= removed
	if e.currentPipe < 0 {
		e.currentPipe = 0
	}

	// Advance the current pipe to the first one at or ahead of the bird.
	// The pass flag re-arms only when a new pipe actually becomes current.
	for e.currentPipe+1 < len(e.pipes) &&
		e.pipes[e.currentPipe].x+0.5*e.cfg.PipeWidth < birdX {
		e.currentPipe++
		e.passed = false
	}

	// Spawn ahead.
	furthest := 0.0
	if len(e.pipes) > 0 {
		furthest = e.pipes[len(e.pipes)-1].x
	}
	for furthest < spawnAheadX {
		e.addPipe(furthest + e.cfg.PipeSpacing)
		furthest = e.pipes[len(e.pipes)-1].x
	}

	if e.collided() {
		e.done = true
		result.Done = true
		result.Reward = e.cfg.RewardDeath
	}

	// Pass scoring, additive to the step reward.
	if !e.done && e.passedPipe() {
		result.Reward += e.cfg.RewardPass
		e.passed = true
	}

	result.Observation = e.Observe()
	return result
}

func (e *Env) addPipe(x float64) {
	gap := e.cfg.GapYMin + e.rng.Float64()*(e.cfg.GapYMax-e.cfg.GapYMin)
	e.pipes = append(e.pipes, pipe{x: x, gapY: gap})
}

func (e *Env) collided() bool {
	if e.y <= 0 || e.y >= e.cfg.WorldHeight {
		return true
	}
	if e.currentPipe >= len(e.pipes) {
		return false
	}
	p := e.pipes[e.currentPipe]
	left := p.x - 0.5*e.cfg.PipeWidth
	right := p.x + 0.5*e.cfg.PipeWidth
	if birdX < left || birdX > right {
		return false
	}
	gapTop := p.gapY + 0.5*e.cfg.PipeGap
	gapBottom := p.gapY - 0.5*e.cfg.PipeGap
	return e.y <= gapBottom || e.y >= gapTop
}

func (e *Env) passedPipe() bool {
	if e.currentPipe >= len(e.pipes) || e.passed {
		return false
	}
	return birdX > e.pipes[e.currentPipe].x
}
