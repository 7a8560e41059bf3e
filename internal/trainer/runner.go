// Package trainer drives the closed training loop: it alternates environment
// steps with agent training and target-network synchronization on configured
// cadences, and tracks per-episode results.
package trainer

import (
	"context"
	"errors"

	"github.com/aunum/log"

	"flappy-rl/internal/dqn"
	"flappy-rl/internal/flappy"
)

// EpisodeResult summarizes one episode of training.
type EpisodeResult struct {
	Episode  int     `json:"episode"`
	Reward   float64 `json:"reward"`
	Steps    int     `json:"steps"`
	MeanLoss float64 `json:"mean_loss"`
	Epsilon  float64 `json:"epsilon"`
}

// Runner owns one environment/agent pair for the duration of a training run.
type Runner struct {
	Env   *flappy.Env
	Agent *dqn.Agent

	Episodes        int
	MaxEpisodeSteps int // safety cap per episode; 0 means unlimited
	TrainEvery      int // train every N agent steps
	SyncEvery       int // sync target network every N agent steps
	LogEvery        int // log every N episodes; 0 disables progress logging
	Seed            int64

	Stats *Tracker // optional
}

// Run executes the configured number of episodes. Each episode resets the
// environment with a seed derived from the run seed, so a fixed Seed
// reproduces the whole run. Returns the per-episode results collected so
// far alongside the context error if cancelled mid-run.
func (r *Runner) Run(ctx context.Context) ([]EpisodeResult, error) {
	if r.Env == nil || r.Agent == nil {
		return nil, errors.New("runner needs an environment and an agent")
	}
	if r.Episodes <= 0 {
		return nil, errors.New("episodes must be > 0")
	}
	if r.TrainEvery <= 0 {
		r.TrainEvery = 4
	}
	if r.SyncEvery <= 0 {
		r.SyncEvery = 100
	}

	results := make([]EpisodeResult, 0, r.Episodes)

	for ep := 0; ep < r.Episodes; ep++ {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		obs := r.Env.Reset(r.Seed + int64(ep))
		episodeReward := 0.0
		lossSum := 0.0
		trainCalls := 0

		for {
			action := r.Agent.SelectAction(obs)
			res := r.Env.Step(action)
			r.Agent.StoreExperience(obs, action, res.Reward, res.Observation, res.Done)
			episodeReward += res.Reward
			obs = res.Observation

			if r.Agent.TotalSteps()%r.TrainEvery == 0 {
				loss, err := r.Agent.Train()
				if err != nil {
					return results, err
				}
				lossSum += loss
				trainCalls++
			}
			if r.Agent.TotalSteps()%r.SyncEvery == 0 {
				r.Agent.UpdateTargetNetwork()
			}

			if res.Done {
				break
			}
			if r.MaxEpisodeSteps > 0 && r.Env.Steps() >= r.MaxEpisodeSteps {
				break
			}
		}

		result := EpisodeResult{
			Episode: ep,
			Reward:  episodeReward,
			Steps:   r.Env.Steps(),
			Epsilon: r.Agent.Epsilon(),
		}
		if trainCalls > 0 {
			result.MeanLoss = lossSum / float64(trainCalls)
		}
		results = append(results, result)

		if r.Stats != nil {
			r.Stats.Record(result)
		}
		if r.LogEvery > 0 && (ep+1)%r.LogEvery == 0 {
			log.Infof("episode %d: reward=%.2f steps=%d loss=%.4f epsilon=%.3f buffer=%d",
				ep, result.Reward, result.Steps, result.MeanLoss, result.Epsilon, r.Agent.BufferSize())
		}
	}

	return results, nil
}
