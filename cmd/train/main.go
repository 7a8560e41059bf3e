package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aunum/log"

	"flappy-rl/internal/dqn"
	"flappy-rl/internal/flappy"
	"flappy-rl/internal/trainer"
)

func main() {
	seed := getenvInt64("SEED", 12345)
	episodes := getenvInt("EPISODES", 2000)
	maxEpisodeSteps := getenvInt("MAX_EPISODE_STEPS", 10000)
	trainEvery := getenvInt("TRAIN_EVERY", 4)
	syncEvery := getenvInt("SYNC_EVERY", 100)
	logEvery := getenvInt("LOG_EVERY", 50)
	statsWindow := getenvInt("STATS_WINDOW", 100)
	weightsOut := getenv("WEIGHTS_OUT", "weights.json")
	plotOut := getenv("PLOT_OUT", "")
	metricsPort := getenv("METRICS_PORT", "")

	agentCfg := dqn.DefaultConfig()
	agentCfg.Seed = seed
	agentCfg.LearningRate = getenvFloat("LEARNING_RATE", agentCfg.LearningRate)
	agentCfg.Gamma = getenvFloat("GAMMA", agentCfg.Gamma)
	agentCfg.EpsilonStart = getenvFloat("EPSILON_START", agentCfg.EpsilonStart)
	agentCfg.EpsilonEnd = getenvFloat("EPSILON_END", agentCfg.EpsilonEnd)
	agentCfg.EpsilonDecaySteps = getenvInt("EPSILON_DECAY_STEPS", agentCfg.EpsilonDecaySteps)
	agentCfg.ReplayBufferSize = getenvInt("REPLAY_CAPACITY", agentCfg.ReplayBufferSize)
	agentCfg.BatchSize = getenvInt("BATCH_SIZE", agentCfg.BatchSize)
	agentCfg.SyncBiases = getenv("SYNC_BIASES", "") == "true"

	agent, err := dqn.NewAgent(agentCfg)
	if err != nil {
		log.Fatal(err)
	}

	stats := trainer.NewTracker(statsWindow)
	runner := &trainer.Runner{
		Env:             flappy.NewEnv(seed, flappy.DefaultConfig()),
		Agent:           agent,
		Episodes:        episodes,
		MaxEpisodeSteps: maxEpisodeSteps,
		TrainEvery:      trainEvery,
		SyncEvery:       syncEvery,
		LogEvery:        logEvery,
		Seed:            seed,
		Stats:           stats,
	}

	if metricsPort != "" {
		go serveStats(metricsPort, stats)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("training for %d episodes (seed=%d batch=%d buffer=%d)",
		episodes, seed, agentCfg.BatchSize, agentCfg.ReplayBufferSize)

	results, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	if errors.Is(err, context.Canceled) {
		log.Warningf("interrupted after %d episodes", len(results))
	}

	snap := stats.Snapshot()
	log.Infof("done: episodes=%d steps=%d best=%.2f recent_mean=%.2f",
		snap.Episodes, snap.TotalSteps, snap.BestReward, snap.WindowMean)

	if weightsOut != "" {
		if err := agent.SaveWeights(weightsOut); err != nil {
			log.Fatalf("save weights: %v", err)
		}
		log.Infof("weights saved to %s", weightsOut)
	}
	if plotOut != "" && len(results) > 0 {
		if err := trainer.SaveRewardPlot(results, plotOut); err != nil {
			log.Fatalf("save plot: %v", err)
		}
		log.Infof("learning curve saved to %s", plotOut)
	}
}

func serveStats(port string, stats *trainer.Tracker) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats.Snapshot()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	})

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Infof("stats endpoint listening on :%s", port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error(err)
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

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
