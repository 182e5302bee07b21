// Package nn implements the small feedforward framework the training
// engine delegates to: a shared trunk with one output head per task,
// AdamW minibatch updates, and gob checkpoint serialization.
package nn

import (
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// Sample is one training example. Mask, when non-nil, marks which target
// columns are valid; masked-out targets contribute no loss or gradient.
type Sample struct {
	Input  []float64
	Target []float64
	Mask   []bool
}

// Head is one task-specific output layer.
type Head struct {
	Name string
	// Outputs is the number of target columns the head predicts.
	Outputs int
	// Classification heads emit logits and train with binary
	// cross-entropy; regression heads train with squared error.
	Classification bool
}

// Network is a shared ReLU trunk with identity-activation output heads.
type Network struct {
	Inputs int
	Hidden []int
	Heads  []Head

	TrunkWeights []Matrix
	TrunkBiases  []Matrix
	HeadWeights  []Matrix
	HeadBiases   []Matrix
}

// New builds a network with uniform(-1/sqrt(in), 1/sqrt(in)) weights.
func New(inputs int, hidden []int, heads []Head, seed int64) *Network {
	rnd := rand.New(rand.NewSource(seed))

	net := &Network{
		Inputs:       inputs,
		Hidden:       hidden,
		Heads:        heads,
		TrunkWeights: make([]Matrix, len(hidden)),
		TrunkBiases:  make([]Matrix, len(hidden)),
		HeadWeights:  make([]Matrix, len(heads)),
		HeadBiases:   make([]Matrix, len(heads)),
	}

	in := inputs
	for i, out := range hidden {
		net.TrunkWeights[i] = NewMatrix(out, in)
		net.TrunkBiases[i] = NewMatrix(out, 1)
		initUniform(rnd, net.TrunkWeights[i].Data, in)
		in = out
	}
	embed := net.EmbeddingSize()
	for i, head := range heads {
		net.HeadWeights[i] = NewMatrix(head.Outputs, embed)
		net.HeadBiases[i] = NewMatrix(head.Outputs, 1)
		initUniform(rnd, net.HeadWeights[i].Data, embed)
	}
	return net
}

func initUniform(rnd *rand.Rand, data []float64, fanIn int) {
	max := 1.0
	if fanIn > 0 {
		max = 1.0 / math.Sqrt(float64(fanIn))
	}
	for i := range data {
		data[i] = (2*rnd.Float64() - 1) * max
	}
}

// EmbeddingSize is the width of the last trunk layer, the feature space
// output heads and simple regression fits operate in.
func (n *Network) EmbeddingSize() int {
	if len(n.Hidden) == 0 {
		return n.Inputs
	}
	return n.Hidden[len(n.Hidden)-1]
}

// HeadIndex resolves a head by name.
func (n *Network) HeadIndex(name string) (int, error) {
	for i, h := range n.Heads {
		if h.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("network has no head %q", name)
}

// Embed runs the trunk and returns the final hidden activations.
func (n *Network) Embed(input []float64) []float64 {
	act := input
	relu := ReLU{}
	for layer := range n.TrunkWeights {
		w := &n.TrunkWeights[layer]
		b := &n.TrunkBiases[layer]
		next := make([]float64, w.Rows)
		for out := 0; out < w.Rows; out++ {
			x := b.Data[out]
			for in := 0; in < w.Cols; in++ {
				x += act[in] * w.Get(out, in)
			}
			next[out] = relu.Sigma(x)
		}
		act = next
	}
	return act
}

// Predict returns the raw head outputs (values for regression heads,
// logits for classification heads).
func (n *Network) Predict(input []float64, head int) []float64 {
	embed := n.Embed(input)
	w := &n.HeadWeights[head]
	b := &n.HeadBiases[head]
	out := make([]float64, w.Rows)
	for o := 0; o < w.Rows; o++ {
		x := b.Data[o]
		for in := 0; in < w.Cols; in++ {
			x += embed[in] * w.Get(o, in)
		}
		out[o] = x
	}
	return out
}

// CopyTrunkFrom copies trunk parameters from a (possibly differently
// headed) pretrained network. Head parameters are left untouched, which
// mirrors loading a pretrained state dict non-strictly.
func (n *Network) CopyTrunkFrom(src *Network) error {
	if src.Inputs != n.Inputs || len(src.Hidden) != len(n.Hidden) {
		return fmt.Errorf("trunk shape mismatch: %dx%v vs %dx%v",
			src.Inputs, src.Hidden, n.Inputs, n.Hidden)
	}
	for i := range n.Hidden {
		if src.Hidden[i] != n.Hidden[i] {
			return fmt.Errorf("trunk shape mismatch at layer %d: %d vs %d", i, src.Hidden[i], n.Hidden[i])
		}
		n.TrunkWeights[i] = src.TrunkWeights[i].Clone()
		n.TrunkBiases[i] = src.TrunkBiases[i].Clone()
	}
	return nil
}

// Save writes the network to path with gob encoding.
func (n *Network) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(n); err != nil {
		return fmt.Errorf("failed to encode network: %w", err)
	}
	return nil
}

// Load reads a gob-encoded network from path.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer f.Close()

	var net Network
	if err := gob.NewDecoder(f).Decode(&net); err != nil {
		return nil, fmt.Errorf("failed to decode network: %w", err)
	}
	return &net, nil
}
