package dqn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam is an adaptive per-parameter gradient-descent optimizer. Moment
// accumulators are lazily shaped from the first Update call; a step counter
// drives bias correction. The epsilon term keeps the denominator finite, so
// there is no error path here.
type Adam struct {
	learningRate float64
	beta1        float64
	beta2        float64
	epsilon      float64
	step         int

	mWeights []*mat.Dense
	vWeights []*mat.Dense
	mBiases  []*mat.VecDense
	vBiases  []*mat.VecDense
}

// NewAdam returns an optimizer with the standard DQN hyperparameters when
// given lr=1e-4, beta1=0.9, beta2=0.999, epsilon=1e-8.
func NewAdam(learningRate, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		learningRate: learningRate,
		beta1:        beta1,
		beta2:        beta2,
		epsilon:      epsilon,
	}
}

// Step returns the number of updates applied since construction or Reset.
func (a *Adam) Step() int { return a.step }

// Reset discards the step counter and all moment state.
func (a *Adam) Reset() {
	a.step = 0
	a.mWeights = nil
	a.vWeights = nil
	a.mBiases = nil
	a.vBiases = nil
}

// Update mutates weights and biases in place using the bias-corrected Adam
// rule. Gradient shapes must match the parameter shapes they were computed
// from; the first call fixes the accumulator shapes.
func (a *Adam) Update(weights []*mat.Dense, biases []*mat.VecDense, grads *Gradients) {
	if a.step == 0 {
		a.initState(weights, biases)
	}
	a.step++

	correction1 := 1 - math.Pow(a.beta1, float64(a.step))
	correction2 := 1 - math.Pow(a.beta2, float64(a.step))

	for l := range weights {
		a.apply(weights[l].RawMatrix().Data, grads.Weights[l].RawMatrix().Data,
			a.mWeights[l].RawMatrix().Data, a.vWeights[l].RawMatrix().Data,
			correction1, correction2)
		a.apply(biases[l].RawVector().Data, grads.Biases[l].RawVector().Data,
			a.mBiases[l].RawVector().Data, a.vBiases[l].RawVector().Data,
			correction1, correction2)
	}
}

func (a *Adam) apply(params, grads, m, v []float64, correction1, correction2 float64) {
	for i := range params {
		g := grads[i]
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
		mHat := m[i] / correction1
		vHat := v[i] / correction2
		params[i] -= a.learningRate * mHat / (math.Sqrt(vHat) + a.epsilon)
	}
}

func (a *Adam) initState(weights []*mat.Dense, biases []*mat.VecDense) {
	a.mWeights = make([]*mat.Dense, len(weights))
	a.vWeights = make([]*mat.Dense, len(weights))
	a.mBiases = make([]*mat.VecDense, len(biases))
	a.vBiases = make([]*mat.VecDense, len(biases))
	for l := range weights {
		r, c := weights[l].Dims()
		a.mWeights[l] = mat.NewDense(r, c, nil)
		a.vWeights[l] = mat.NewDense(r, c, nil)
		a.mBiases[l] = mat.NewVecDense(biases[l].Len(), nil)
		a.vBiases[l] = mat.NewVecDense(biases[l].Len(), nil)
	}
}
