package nn

import "math"

// ActivationFn is a scalar activation with its derivative.
type ActivationFn interface {
	Sigma(x float64) float64
	SigmaPrime(x float64) float64
}

// ReLU is the rectified linear activation used in trunk layers.
type ReLU struct{}

func (ReLU) Sigma(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func (ReLU) SigmaPrime(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Identity passes values through unchanged. Output heads use it so that
// regression predictions and classification logits come out unsquashed.
type Identity struct{}

func (Identity) Sigma(x float64) float64      { return x }
func (Identity) SigmaPrime(x float64) float64 { return 1 }

// Sigmoid converts a logit to a probability. It is applied at loss and
// metric time, not inside the network.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
