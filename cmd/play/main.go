// Play runs greedy episodes with a previously trained policy and logs the
// outcome of each one. Rendering is left to external tooling.
package main

import (
	"os"
	"strconv"

	"github.com/aunum/log"

	"flappy-rl/internal/dqn"
	"flappy-rl/internal/flappy"
)

func main() {
	seed := getenvInt64("SEED", 12345)
	episodes := getenvInt("EPISODES", 10)
	maxEpisodeSteps := getenvInt("MAX_EPISODE_STEPS", 100000)
	weightsPath := getenv("WEIGHTS", "weights.json")

	cfg := dqn.DefaultConfig()
	cfg.Seed = seed
	// Greedy playback: no exploration.
	cfg.EpsilonStart = 0
	cfg.EpsilonEnd = 0

	agent, err := dqn.NewAgent(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := agent.LoadWeights(weightsPath); err != nil {
		log.Fatalf("load weights from %s: %v", weightsPath, err)
	}

	env := flappy.NewEnv(seed, flappy.DefaultConfig())

	for ep := 0; ep < episodes; ep++ {
		obs := env.Reset(seed + int64(ep))
		reward := 0.0
		for !env.Done() && env.Steps() < maxEpisodeSteps {
			res := env.Step(agent.SelectAction(obs))
			reward += res.Reward
			obs = res.Observation
		}
		log.Infof("episode %d: reward=%.2f steps=%d", ep, reward, env.Steps())
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvInt64(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
