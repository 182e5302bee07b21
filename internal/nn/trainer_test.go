package nn

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSamples(n int, seed int64) []Sample {
	rnd := rand.New(rand.NewSource(seed))
	samples := make([]Sample, n)
	for i := range samples {
		x0 := rnd.Float64()
		x1 := rnd.Float64()
		samples[i] = Sample{
			Input:  []float64{x0, x1},
			Target: []float64{0.7*x0 - 0.3*x1 + 0.1},
		}
	}
	return samples
}

func TestTrainerReducesRegressionLoss(t *testing.T) {
	net := New(2, []int{8}, []Head{{Name: "toy", Outputs: 1}}, 1)
	trainer := NewTrainer(net, Config{LearningRate: 0.01, Workers: 2})

	ctx := context.Background()
	samples := linearSamples(256, 7)

	before, err := trainer.Loss(ctx, 0, samples)
	require.NoError(t, err)

	for epoch := 0; epoch < 50; epoch++ {
		for i := 0; i+32 <= len(samples); i += 32 {
			require.NoError(t, trainer.TrainBatch(ctx, 0, samples[i:i+32]))
		}
	}

	after, err := trainer.Loss(ctx, 0, samples)
	require.NoError(t, err)
	assert.Less(t, after, before, "training should reduce loss")
}

func TestTrainerMaskedTargetsContributeNothing(t *testing.T) {
	net := New(2, []int{4}, []Head{{Name: "toy", Outputs: 2}}, 1)
	trainer := NewTrainer(net, Config{LearningRate: 0.01, Workers: 1})

	// The second target column is garbage but fully masked.
	samples := []Sample{
		{Input: []float64{1, 0}, Target: []float64{0.5, 1e9}, Mask: []bool{true, false}},
		{Input: []float64{0, 1}, Target: []float64{0.2, -1e9}, Mask: []bool{true, false}},
	}

	loss, err := trainer.Loss(context.Background(), 0, samples)
	require.NoError(t, err)
	assert.Less(t, loss, 1e6, "masked targets must not enter the loss")

	require.NoError(t, trainer.TrainBatch(context.Background(), 0, samples))
	for _, w := range net.TrunkWeights[0].Data {
		assert.False(t, w != w, "weights must stay finite")
	}
}

func TestTrainerFreezeTrunk(t *testing.T) {
	net := New(2, []int{4}, []Head{{Name: "toy", Outputs: 1}}, 3)
	frozen := net.TrunkWeights[0].Clone()

	trainer := NewTrainer(net, Config{LearningRate: 0.05, Workers: 1, FreezeTrunk: true})
	samples := linearSamples(64, 11)
	for i := 0; i < 10; i++ {
		require.NoError(t, trainer.TrainBatch(context.Background(), 0, samples))
	}

	assert.Equal(t, frozen.Data, net.TrunkWeights[0].Data, "frozen trunk must not move")
}

func TestClassificationLossUsesSigmoid(t *testing.T) {
	net := New(1, nil, []Head{{Name: "cls", Outputs: 1, Classification: true}}, 5)
	trainer := NewTrainer(net, Config{LearningRate: 0.1, Workers: 1})

	samples := []Sample{
		{Input: []float64{1}, Target: []float64{1}},
		{Input: []float64{-1}, Target: []float64{0}},
	}

	before, err := trainer.Loss(context.Background(), 0, samples)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, trainer.TrainBatch(context.Background(), 0, samples))
	}
	after, err := trainer.Loss(context.Background(), 0, samples)
	require.NoError(t, err)
	assert.Less(t, after, before)

	p := Sigmoid(net.Predict([]float64{1}, 0)[0])
	assert.Greater(t, p, 0.5)
}

func TestNetworkSaveLoadRoundTrip(t *testing.T) {
	net := New(3, []int{5, 4}, []Head{{Name: "a", Outputs: 2}, {Name: "b", Outputs: 1, Classification: true}}, 9)
	path := filepath.Join(t.TempDir(), "net.ckpt")

	require.NoError(t, net.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, net.Hidden, loaded.Hidden)
	assert.Equal(t, net.Heads, loaded.Heads)
	assert.Equal(t, net.TrunkWeights, loaded.TrunkWeights)
	assert.Equal(t, net.HeadWeights, loaded.HeadWeights)

	in := []float64{0.1, 0.2, 0.3}
	assert.Equal(t, net.Predict(in, 0), loaded.Predict(in, 0))
}

func TestCopyTrunkFrom(t *testing.T) {
	src := New(3, []int{4}, []Head{{Name: "pretrain", Outputs: 2}}, 1)
	dst := New(3, []int{4}, []Head{{Name: "finetune", Outputs: 1}}, 2)

	require.NoError(t, dst.CopyTrunkFrom(src))
	assert.Equal(t, src.TrunkWeights, dst.TrunkWeights)

	bad := New(3, []int{5}, []Head{{Name: "other", Outputs: 1}}, 3)
	assert.Error(t, bad.CopyTrunkFrom(src))
}
