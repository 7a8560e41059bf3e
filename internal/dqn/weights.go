package dqn

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// snapshot is the on-disk weight layout: layer sizes followed by per-layer
// nested weight and bias arrays, as JSON.
type snapshot struct {
	LayerSizes []int         `json:"layer_sizes"`
	Weights    [][][]float64 `json:"weights"` // [layer][neuron][weight]
	Biases     [][]float64   `json:"biases"`  // [layer][neuron]
}

// SaveWeights writes the live network's parameters to path.
func (a *Agent) SaveWeights(path string) error {
	snap := snapshot{LayerSizes: a.network.LayerSizes()}
	for l := range a.network.weights {
		r, c := a.network.weights[l].Dims()
		layer := make([][]float64, r)
		for i := 0; i < r; i++ {
			row := make([]float64, c)
			for j := 0; j < c; j++ {
				row[j] = a.network.weights[l].At(i, j)
			}
			layer[i] = row
		}
		snap.Weights = append(snap.Weights, layer)

		biases := make([]float64, a.network.biases[l].Len())
		copy(biases, a.network.biases[l].RawVector().Data)
		snap.Biases = append(snap.Biases, biases)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadWeights replaces the live network's parameters with the contents of
// path, re-synchronizes the target network, and resets optimizer state.
// Fails with ErrShapeMismatch if the file does not match the network's
// layer descriptor.
func (a *Agent) LoadWeights(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse weights file: %w", err)
	}

	weights, biases, err := snap.parameters()
	if err != nil {
		return err
	}
	if err := a.network.SetWeights(weights); err != nil {
		return err
	}
	if err := a.network.SetBiases(biases); err != nil {
		return err
	}

	if err := a.targetNetwork.SetWeights(a.network.Weights()); err != nil {
		return err
	}
	if err := a.targetNetwork.SetBiases(a.network.Biases()); err != nil {
		return err
	}
	a.optimizer.Reset()
	return nil
}

func (s *snapshot) parameters() ([]*mat.Dense, []*mat.VecDense, error) {
	if len(s.Weights) != len(s.Biases) {
		return nil, nil, fmt.Errorf("%w: %d weight layers, %d bias layers", ErrShapeMismatch, len(s.Weights), len(s.Biases))
	}
	weights := make([]*mat.Dense, len(s.Weights))
	biases := make([]*mat.VecDense, len(s.Biases))
	for l, layer := range s.Weights {
		if len(layer) == 0 || len(layer[0]) == 0 || len(s.Biases[l]) == 0 {
			return nil, nil, fmt.Errorf("%w: empty layer %d", ErrShapeMismatch, l)
		}
		cols := len(layer[0])
		data := make([]float64, 0, len(layer)*cols)
		for _, row := range layer {
			if len(row) != cols {
				return nil, nil, fmt.Errorf("%w: ragged rows in weight layer %d", ErrShapeMismatch, l)
			}
			data = append(data, row...)
		}
		weights[l] = mat.NewDense(len(layer), cols, data)
		biases[l] = mat.NewVecDense(len(s.Biases[l]), append([]float64(nil), s.Biases[l]...))
	}
	return weights, biases, nil
}
