package lstm

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSet(count, window int) ([][]float64, []float64) {
	series := make([]float64, count+window)
	for i := range series {
		series[i] = 0.5 + 0.4*math.Sin(float64(i)/4)
	}
	x := make([][]float64, count)
	y := make([]float64, count)
	for i := 0; i < count; i++ {
		x[i] = series[i : i+window]
		y[i] = series[i+window]
	}
	return x, y
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Window: 0, Units: []int{4}})
	assert.Error(t, err)
	_, err = New(Config{Window: 5})
	assert.Error(t, err)
	_, err = New(Config{Window: 5, Units: []int{4}, Dropout: 1})
	assert.Error(t, err)
}

func TestPredictShape(t *testing.T) {
	n, err := New(Config{Window: 5, Units: []int{3, 2}, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, n.WindowSize())

	_, err = n.Predict([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrShape)
	_, err = n.Predict([]float64{1, 2, 3, 4, math.NaN()})
	assert.ErrorIs(t, err, ErrShape)

	a, err := n.Predict([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	require.NoError(t, err)
	b, err := n.Predict([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	require.NoError(t, err)
	assert.Equal(t, a, b, "inference is deterministic")
}

func TestSameSeedSameWeights(t *testing.T) {
	a, err := New(Config{Window: 4, Units: []int{3}, Seed: 7})
	require.NoError(t, err)
	b, err := New(Config{Window: 4, Units: []int{3}, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, a.params(), b.params())
}

func TestGradientsMatchNumeric(t *testing.T) {
	n, err := New(Config{Window: 4, Units: []int{3, 2}, Seed: 3})
	require.NoError(t, err)
	window := []float64{0.2, 0.7, 0.4, 0.9}
	target := 0.3

	loss := func() float64 {
		p, _, _ := n.forward(window, nil)
		return (p - target) * (p - target)
	}

	pred, caches, hOut := n.forward(window, nil)
	grads := n.zeroLike()
	n.backward(caches, hOut, 2*(pred-target), grads)

	const eps = 1e-6
	params, analytic := n.params(), grads.params()
	for i := range params {
		for k := range params[i] {
			orig := params[i][k]
			params[i][k] = orig + eps
			up := loss()
			params[i][k] = orig - eps
			down := loss()
			params[i][k] = orig

			numeric := (up - down) / (2 * eps)
			assert.InDelta(t, numeric, analytic[i][k], 1e-6, "param group %d index %d", i, k)
		}
	}
}

func TestFitReducesLoss(t *testing.T) {
	x, y := sineSet(120, 10)
	n, err := New(Config{Window: 10, Units: []int{8}, Seed: 42})
	require.NoError(t, err)

	before := n.Evaluate(x, y)
	var epochs int
	hist, err := n.Fit(context.Background(), x, y, nil, nil, TrainConfig{
		Epochs:       30,
		BatchSize:    16,
		LearningRate: 0.01,
		Seed:         42,
		OnEpoch:      func(EpochStats) { epochs++ },
	})
	require.NoError(t, err)

	after := n.Evaluate(x, y)
	assert.Less(t, after, before*0.5)
	assert.Equal(t, hist.Epochs(), epochs)
	assert.InDelta(t, hist.BestLoss, minOf(hist.Loss), 1e-12)
	assert.True(t, math.IsNaN(hist.ValLoss[0]))
}

func TestFitEarlyStopsAndRestoresBest(t *testing.T) {
	x, y := sineSet(20, 5)
	n, err := New(Config{Window: 5, Units: []int{3}, Seed: 1})
	require.NoError(t, err)
	snapshot := n.Clone()

	// a zero learning rate never improves after the first epoch
	hist, err := n.Fit(context.Background(), x, y, x, y, TrainConfig{
		Epochs:    50,
		BatchSize: 8,
		Patience:  3,
		Seed:      1,
	})
	require.NoError(t, err)
	assert.True(t, hist.Stopped)
	assert.Equal(t, 4, hist.Epochs())
	assert.Equal(t, 1, hist.BestEpoch)
	assert.Equal(t, snapshot.params(), n.params())
}

func TestFitWithDropoutTrains(t *testing.T) {
	x, y := sineSet(60, 8)
	n, err := New(Config{Window: 8, Units: []int{6, 4}, Dropout: 0.2, Seed: 9})
	require.NoError(t, err)

	hist, err := n.Fit(context.Background(), x[:48], y[:48], x[48:], y[48:], TrainConfig{
		Epochs:       5,
		BatchSize:    8,
		LearningRate: 0.005,
		Seed:         9,
	})
	require.NoError(t, err)
	assert.Len(t, hist.ValLoss, 5)
	for _, v := range hist.ValLoss {
		assert.False(t, math.IsNaN(v))
	}
}

func TestFitValidatesInput(t *testing.T) {
	n, err := New(Config{Window: 3, Units: []int{2}})
	require.NoError(t, err)
	cfg := TrainConfig{Epochs: 1, BatchSize: 1}

	_, err = n.Fit(context.Background(), nil, nil, nil, nil, cfg)
	assert.Error(t, err)
	_, err = n.Fit(context.Background(), [][]float64{{1, 2}}, []float64{1}, nil, nil, cfg)
	assert.ErrorIs(t, err, ErrShape)
	_, err = n.Fit(context.Background(), [][]float64{{1, 2, 3}}, []float64{1, 2}, nil, nil, cfg)
	assert.ErrorIs(t, err, ErrShape)
}

func TestFitHonoursContext(t *testing.T) {
	x, y := sineSet(10, 3)
	n, err := New(Config{Window: 3, Units: []int{2}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Fit(ctx, x, y, nil, nil, TrainConfig{Epochs: 3, BatchSize: 2, LearningRate: 0.01})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveLoad(t *testing.T) {
	n, err := New(Config{Window: 6, Units: []int{4, 3}, Dropout: 0.2, Seed: 5})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, n.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)
	window := []float64{0.1, 0.3, 0.2, 0.6, 0.5, 0.4}
	want, _ := n.Predict(window)
	got, err := loaded.Predict(window)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestLoadRejectsCorruptArtifact(t *testing.T) {
	_, err := Load(bytes.NewBufferString(`{"format":1,"network":{"window":3,"layers":[{"in":1,"units":2,"wx":[1],"wh":[],"b":[]}]}}`))
	assert.ErrorIs(t, err, ErrShape)

	_, err = Load(bytes.NewBufferString(`{"format":99,"network":{}}`))
	assert.Error(t, err)

	_, err = Load(bytes.NewBufferString(`not json`))
	assert.Error(t, err)
}

func minOf(v []float64) float64 {
	m := math.Inf(1)
	for _, x := range v {
		m = math.Min(m, x)
	}
	return m
}
