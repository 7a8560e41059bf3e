// Package dqn implements a Deep-Q-Network agent: a fully-connected
// feed-forward value network with analytic backpropagation, a circular
// experience replay buffer, an Adam optimizer, and an epsilon-greedy agent
// with a periodically-synchronized target network.
package dqn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrShapeMismatch = errors.New("parameter shape mismatch")
	ErrNotEnoughData = errors.New("not enough experiences in buffer")
)

// Network is a fully-connected feed-forward network with ReLU hidden layers
// and a linear output layer. Weights are per-layer gonum matrices, one row
// per output neuron; biases are per-layer vectors.
type Network struct {
	sizes   []int
	weights []*mat.Dense    // [layer] fanOut x fanIn
	biases  []*mat.VecDense // [layer] fanOut
}

// NewNetwork builds a network with the given layer sizes (input, hidden...,
// output). Weights use Xavier-uniform initialization drawn from the seeded
// generator; biases start at zero.
func NewNetwork(sizes []int, seed int64) (*Network, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("network needs at least input and output layers, got %d", len(sizes))
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("layer size must be positive, got %d", s)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	n := &Network{
		sizes:   append([]int(nil), sizes...),
		weights: make([]*mat.Dense, len(sizes)-1),
		biases:  make([]*mat.VecDense, len(sizes)-1),
	}
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		data := make([]float64, fanOut*fanIn)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * limit
		}
		n.weights[l] = mat.NewDense(fanOut, fanIn, data)
		n.biases[l] = mat.NewVecDense(fanOut, nil)
	}
	return n, nil
}

// LayerSizes returns the layer size descriptor.
func (n *Network) LayerSizes() []int {
	return append([]int(nil), n.sizes...)
}

// NumParameters returns the total scalar parameter count.
func (n *Network) NumParameters() int {
	total := 0
	for l := range n.weights {
		r, c := n.weights[l].Dims()
		total += r*c + n.biases[l].Len()
	}
	return total
}

// Trace records one forward pass: pre-activation and post-activation vectors
// per layer. Post[0] is the input; Post[len-1] the network output. Backward
// consumes a Trace rather than recomputing the forward pass.
type Trace struct {
	Pre  []*mat.VecDense // [layer] z = W*x + b
	Post []*mat.VecDense // [layer+1] activations, Post[0] = input
}

// Output returns the final activation as a fresh slice.
func (t *Trace) Output() []float64 {
	out := t.Post[len(t.Post)-1]
	res := make([]float64, out.Len())
	copy(res, out.RawVector().Data)
	return res
}

// Forward runs inference and returns the output vector (raw Q-values).
func (n *Network) Forward(input []float64) ([]float64, error) {
	t, err := n.ForwardTrace(input)
	if err != nil {
		return nil, err
	}
	return t.Output(), nil
}

// ForwardTrace runs inference and records every layer's pre- and
// post-activation values for a subsequent Backward call.
func (n *Network) ForwardTrace(input []float64) (*Trace, error) {
	if len(input) != n.sizes[0] {
		return nil, fmt.Errorf("input size mismatch: got %d, want %d", len(input), n.sizes[0])
	}

	t := &Trace{
		Pre:  make([]*mat.VecDense, len(n.weights)),
		Post: make([]*mat.VecDense, len(n.weights)+1),
	}
	x := mat.NewVecDense(len(input), append([]float64(nil), input...))
	t.Post[0] = x

	for l := range n.weights {
		z := mat.NewVecDense(n.sizes[l+1], nil)
		z.MulVec(n.weights[l], x)
		z.AddVec(z, n.biases[l])
		t.Pre[l] = z

		a := mat.NewVecDense(z.Len(), append([]float64(nil), z.RawVector().Data...))
		if l < len(n.weights)-1 {
			relu(a.RawVector().Data)
		}
		t.Post[l+1] = a
		x = a
	}
	return t, nil
}

// Gradients holds per-layer weight and bias gradients, shaped like the
// network parameters.
type Gradients struct {
	Weights []*mat.Dense
	Biases  []*mat.VecDense
}

// NewGradients returns zeroed gradients shaped for the given layer sizes.
func NewGradients(sizes []int) *Gradients {
	g := &Gradients{
		Weights: make([]*mat.Dense, len(sizes)-1),
		Biases:  make([]*mat.VecDense, len(sizes)-1),
	}
	for l := 0; l < len(sizes)-1; l++ {
		g.Weights[l] = mat.NewDense(sizes[l+1], sizes[l], nil)
		g.Biases[l] = mat.NewVecDense(sizes[l+1], nil)
	}
	return g
}

// Add accumulates other into g.
func (g *Gradients) Add(other *Gradients) {
	for l := range g.Weights {
		g.Weights[l].Add(g.Weights[l], other.Weights[l])
		g.Biases[l].AddVec(g.Biases[l], other.Biases[l])
	}
}

// Backward computes per-example gradients of the squared error between the
// trace's output and target. The output-layer error is predicted − target
// (unscaled); hidden-layer deltas are masked by the ReLU derivative taken at
// the recorded pre-activation values.
func (n *Network) Backward(t *Trace, target []float64) (*Gradients, error) {
	out := n.sizes[len(n.sizes)-1]
	if len(target) != out {
		return nil, fmt.Errorf("target size mismatch: got %d, want %d", len(target), out)
	}

	g := NewGradients(n.sizes)

	predicted := t.Post[len(t.Post)-1]
	delta := mat.NewVecDense(out, nil)
	for i := 0; i < out; i++ {
		delta.SetVec(i, predicted.AtVec(i)-target[i])
	}

	for l := len(n.weights) - 1; l >= 0; l-- {
		prev := t.Post[l]

		g.Biases[l].CopyVec(delta)
		g.Weights[l].Outer(1, delta, prev)

		if l > 0 {
			next := mat.NewVecDense(prev.Len(), nil)
			next.MulVec(n.weights[l].T(), delta)
			// Previous layer is hidden: apply ReLU derivative at its
			// pre-activation.
			pre := t.Pre[l-1].RawVector().Data
			for i, z := range pre {
				if z <= 0 {
					next.SetVec(i, 0)
				}
			}
			delta = next
		}
	}
	return g, nil
}

// ApplyGradients performs a plain gradient-descent step. Superseded by the
// Adam path in the Agent but kept for direct use.
func (n *Network) ApplyGradients(g *Gradients, learningRate float64) {
	for l := range n.weights {
		wd := n.weights[l].RawMatrix().Data
		gd := g.Weights[l].RawMatrix().Data
		for i := range wd {
			wd[i] -= learningRate * gd[i]
		}
		bd := n.biases[l].RawVector().Data
		gb := g.Biases[l].RawVector().Data
		for i := range bd {
			bd[i] -= learningRate * gb[i]
		}
	}
}

// Weights returns a deep copy of all weight matrices.
func (n *Network) Weights() []*mat.Dense {
	out := make([]*mat.Dense, len(n.weights))
	for l, w := range n.weights {
		out[l] = mat.DenseCopyOf(w)
	}
	return out
}

// Biases returns a deep copy of all bias vectors.
func (n *Network) Biases() []*mat.VecDense {
	out := make([]*mat.VecDense, len(n.biases))
	for l, b := range n.biases {
		out[l] = mat.VecDenseCopyOf(b)
	}
	return out
}

// SetWeights replaces all weight matrices after validating shape congruence.
func (n *Network) SetWeights(weights []*mat.Dense) error {
	if len(weights) != len(n.weights) {
		return fmt.Errorf("%w: got %d weight layers, want %d", ErrShapeMismatch, len(weights), len(n.weights))
	}
	for l, w := range weights {
		r, c := w.Dims()
		er, ec := n.weights[l].Dims()
		if r != er || c != ec {
			return fmt.Errorf("%w: layer %d is %dx%d, want %dx%d", ErrShapeMismatch, l, r, c, er, ec)
		}
	}
	for l, w := range weights {
		n.weights[l].Copy(w)
	}
	return nil
}

// SetBiases replaces all bias vectors after validating shape congruence.
func (n *Network) SetBiases(biases []*mat.VecDense) error {
	if len(biases) != len(n.biases) {
		return fmt.Errorf("%w: got %d bias layers, want %d", ErrShapeMismatch, len(biases), len(n.biases))
	}
	for l, b := range biases {
		if b.Len() != n.biases[l].Len() {
			return fmt.Errorf("%w: layer %d has %d biases, want %d", ErrShapeMismatch, l, b.Len(), n.biases[l].Len())
		}
	}
	for l, b := range biases {
		n.biases[l].CopyVec(b)
	}
	return nil
}

func relu(xs []float64) {
	for i, x := range xs {
		if x < 0 {
			xs[i] = 0
		}
	}
}
