package nn

import (
	"context"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// neuron carries per-sample forward/backward state for one unit.
type neuron struct {
	a, e, prime float64
}

// workerState is the per-goroutine scratch space: raw gradient
// accumulators plus activation buffers, so workers never contend.
type workerState struct {
	trunkW []Matrix
	trunkB []Matrix
	headW  []Matrix
	headB  []Matrix

	trunk [][]neuron
	heads [][]neuron
}

// Config holds optimizer settings for a Trainer.
type Config struct {
	LearningRate float64
	WeightDecay  float64
	// Workers is the number of concurrent gradient workers
	// (default GOMAXPROCS).
	Workers int
	// FreezeTrunk skips trunk updates, which implements linear probing.
	FreezeTrunk bool
}

// Trainer runs AdamW minibatch updates against a network.
type Trainer struct {
	net *Network
	cfg Config

	trunkWGrads []Gradients
	trunkBGrads []Gradients
	headWGrads  []Gradients
	headBGrads  []Gradients

	workers []workerState
}

// NewTrainer prepares optimizer and worker state for net.
func NewTrainer(net *Network, cfg Config) *Trainer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	t := &Trainer{
		net:         net,
		cfg:         cfg,
		trunkWGrads: make([]Gradients, len(net.TrunkWeights)),
		trunkBGrads: make([]Gradients, len(net.TrunkWeights)),
		headWGrads:  make([]Gradients, len(net.Heads)),
		headBGrads:  make([]Gradients, len(net.Heads)),
		workers:     make([]workerState, cfg.Workers),
	}
	for i := range net.TrunkWeights {
		w := &net.TrunkWeights[i]
		t.trunkWGrads[i] = NewGradients(w.Rows, w.Cols)
		t.trunkBGrads[i] = NewGradients(w.Rows, 1)
	}
	for i := range net.Heads {
		w := &net.HeadWeights[i]
		t.headWGrads[i] = NewGradients(w.Rows, w.Cols)
		t.headBGrads[i] = NewGradients(w.Rows, 1)
	}
	for wi := range t.workers {
		ws := &t.workers[wi]
		ws.trunkW = make([]Matrix, len(net.TrunkWeights))
		ws.trunkB = make([]Matrix, len(net.TrunkWeights))
		ws.trunk = make([][]neuron, len(net.TrunkWeights))
		for i := range net.TrunkWeights {
			w := &net.TrunkWeights[i]
			ws.trunkW[i] = NewMatrix(w.Rows, w.Cols)
			ws.trunkB[i] = NewMatrix(w.Rows, 1)
			ws.trunk[i] = make([]neuron, w.Rows)
		}
		ws.headW = make([]Matrix, len(net.Heads))
		ws.headB = make([]Matrix, len(net.Heads))
		ws.heads = make([][]neuron, len(net.Heads))
		for i, head := range net.Heads {
			ws.headW[i] = NewMatrix(head.Outputs, net.EmbeddingSize())
			ws.headB[i] = NewMatrix(head.Outputs, 1)
			ws.heads[i] = make([]neuron, head.Outputs)
		}
	}
	return t
}

// Network returns the network under training.
func (t *Trainer) Network() *Network { return t.net }

// TrainBatch accumulates gradients over batch for one head and applies a
// single AdamW step. Workers steal samples through a shared atomic index.
func (t *Trainer) TrainBatch(ctx context.Context, head int, batch []Sample) error {
	var index int64 = -1
	g, ctx := errgroup.WithContext(ctx)
	for wi := range t.workers {
		ws := &t.workers[wi]
		g.Go(func() error {
			ws.reset(head)
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := int(atomic.AddInt64(&index, 1))
				if i >= len(batch) {
					return nil
				}
				sample := &batch[i]
				t.forward(ws, head, sample.Input)
				t.backward(ws, head, sample)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	t.applyGradients(head)
	return nil
}

// Loss computes the mean per-sample loss over samples for one head:
// squared error for regression heads, binary cross-entropy for
// classification heads. Masked targets are skipped.
func (t *Trainer) Loss(ctx context.Context, head int, samples []Sample) (float64, error) {
	var index int64 = -1
	sums := make([]float64, len(t.workers))
	counts := make([]int, len(t.workers))

	g, ctx := errgroup.WithContext(ctx)
	for wi := range t.workers {
		ws := &t.workers[wi]
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := int(atomic.AddInt64(&index, 1))
				if i >= len(samples) {
					return nil
				}
				sample := &samples[i]
				t.forward(ws, head, sample.Input)
				for o := range ws.heads[head] {
					if sample.Mask != nil && !sample.Mask[o] {
						continue
					}
					sums[wi] += sampleLoss(t.net.Heads[head], ws.heads[head][o].a, sample.Target[o])
					counts[wi]++
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total float64
	var n int
	for wi := range sums {
		total += sums[wi]
		n += counts[wi]
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

func sampleLoss(head Head, raw, target float64) float64 {
	if head.Classification {
		p := Sigmoid(raw)
		const tiny = 1e-12
		return -(target*math.Log(p+tiny) + (1-target)*math.Log(1-p+tiny))
	}
	d := raw - target
	return d * d
}

func (ws *workerState) reset(head int) {
	for i := range ws.trunkW {
		ws.trunkW[i].Reset()
		ws.trunkB[i].Reset()
	}
	ws.headW[head].Reset()
	ws.headB[head].Reset()
}

func (t *Trainer) forward(ws *workerState, head int, input []float64) {
	relu := ReLU{}
	for layer := range t.net.TrunkWeights {
		w := &t.net.TrunkWeights[layer]
		b := &t.net.TrunkBiases[layer]
		neurons := ws.trunk[layer]
		for out := range neurons {
			x := b.Data[out]
			if layer == 0 {
				for in := 0; in < w.Cols; in++ {
					x += input[in] * w.Get(out, in)
				}
			} else {
				prev := ws.trunk[layer-1]
				for in := range prev {
					x += prev[in].a * w.Get(out, in)
				}
			}
			neurons[out].a = relu.Sigma(x)
			neurons[out].prime = relu.SigmaPrime(x)
		}
	}

	w := &t.net.HeadWeights[head]
	b := &t.net.HeadBiases[head]
	neurons := ws.heads[head]
	embed := ws.embedding(input)
	for out := range neurons {
		x := b.Data[out]
		for in := range embed {
			x += embed[in] * w.Get(out, in)
		}
		// Identity activation: prediction error backpropagates with
		// derivative 1 for both loss kinds.
		neurons[out].a = x
		neurons[out].prime = 1
	}
}

// embedding returns the trunk output activations for the current sample,
// falling back to the raw input for trunkless (linear) networks.
func (ws *workerState) embedding(input []float64) []float64 {
	if len(ws.trunk) == 0 {
		return input
	}
	last := ws.trunk[len(ws.trunk)-1]
	out := make([]float64, len(last))
	for i := range last {
		out[i] = last[i].a
	}
	return out
}

func (t *Trainer) backward(ws *workerState, head int, sample *Sample) {
	hn := ws.heads[head]
	for o := range hn {
		if sample.Mask != nil && !sample.Mask[o] {
			hn[o].e = 0
			continue
		}
		pred := hn[o].a
		if t.net.Heads[head].Classification {
			// dBCE/dlogit = sigmoid(logit) - y
			pred = Sigmoid(pred)
		}
		hn[o].e = pred - sample.Target[o]
	}

	embed := ws.embedding(sample.Input)
	hw := &t.net.HeadWeights[head]
	hwGrad := &ws.headW[head]
	hbGrad := &ws.headB[head]
	for o := range hn {
		x := hn[o].e * hn[o].prime
		hbGrad.Data[o] += x
		for in := range embed {
			hwGrad.Add(o, in, x*embed[in])
		}
	}

	if t.cfg.FreezeTrunk || len(ws.trunk) == 0 {
		return
	}

	// Propagate head error into the last trunk layer, then down the trunk.
	last := ws.trunk[len(ws.trunk)-1]
	for i := range last {
		last[i].e = 0
	}
	for o := range hn {
		x := hn[o].e * hn[o].prime
		for in := range last {
			last[in].e += hw.Get(o, in) * x
		}
	}

	for layer := len(ws.trunk) - 1; layer >= 0; layer-- {
		neurons := ws.trunk[layer]
		if layer < len(ws.trunk)-1 {
			next := ws.trunk[layer+1]
			w := &t.net.TrunkWeights[layer+1]
			for i := range neurons {
				neurons[i].e = 0
			}
			for out := range next {
				x := next[out].e * next[out].prime
				for in := range neurons {
					neurons[in].e += w.Get(out, in) * x
				}
			}
		}

		wGrad := &ws.trunkW[layer]
		bGrad := &ws.trunkB[layer]
		for out := range neurons {
			x := neurons[out].e * neurons[out].prime
			bGrad.Data[out] += x
			if layer == 0 {
				for in, v := range sample.Input {
					wGrad.Add(out, in, x*v)
				}
			} else {
				prev := ws.trunk[layer-1]
				for in := range prev {
					wGrad.Add(out, in, x*prev[in].a)
				}
			}
		}
	}
}

func (t *Trainer) applyGradients(head int) {
	if !t.cfg.FreezeTrunk {
		for layer := range t.net.TrunkWeights {
			for wi := range t.workers {
				t.trunkWGrads[layer].AddMatrix(&t.workers[wi].trunkW[layer])
				t.trunkBGrads[layer].AddMatrix(&t.workers[wi].trunkB[layer])
			}
			t.trunkWGrads[layer].Apply(&t.net.TrunkWeights[layer], t.cfg.LearningRate, t.cfg.WeightDecay)
			t.trunkBGrads[layer].Apply(&t.net.TrunkBiases[layer], t.cfg.LearningRate, 0)
		}
	}
	for wi := range t.workers {
		t.headWGrads[head].AddMatrix(&t.workers[wi].headW[head])
		t.headBGrads[head].AddMatrix(&t.workers[wi].headB[head])
	}
	t.headWGrads[head].Apply(&t.net.HeadWeights[head], t.cfg.LearningRate, t.cfg.WeightDecay)
	t.headBGrads[head].Apply(&t.net.HeadBiases[head], t.cfg.LearningRate, 0)
}
