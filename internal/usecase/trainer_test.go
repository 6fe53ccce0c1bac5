package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/services/dataset"
	"StockForecaster/internal/services/lstm"
	pkgkafka "StockForecaster/pkg/kafka"
)

type memSaver struct {
	model  *lstm.Network
	scaler dataset.MinMaxScaler
	saves  int
}

func (s *memSaver) Save(model *lstm.Network, scaler dataset.MinMaxScaler) error {
	s.model, s.scaler = model, scaler
	s.saves++
	return nil
}

func wavySeries(n int) models.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 150 + 0.2*float64(i) + 5*math.Sin(float64(i)/6)
	}
	return models.PriceSeries{Source: "yahoo", Points: points(day(2020, 1, 1), closes...)}
}

func smallTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Window:       60,
		SplitRatio:   0.8,
		Units:        []int{4, 4},
		Dropout:      0.2,
		Epochs:       3,
		BatchSize:    8,
		LearningRate: 0.01,
		Patience:     10,
		Seed:         42,
	}
}

func TestTrainThenPredictEndToEnd(t *testing.T) {
	series := wavySeries(100)
	fetcher := &stubFetcher{series: series}
	saver := &memSaver{}
	trainer := NewTrainer(fetcher, saver, smallTrainerConfig(), nil, nil)

	report, err := trainer.Train(context.Background(), TrainJob{Symbol: "AAPL", Start: day(2020, 1, 1), End: day(2020, 4, 30)})
	require.NoError(t, err)

	assert.Equal(t, 100, report.Points)
	assert.Equal(t, 20, report.TrainPairs, "80 training points with window 60")
	assert.Equal(t, 0, report.TestPairs, "20 test points cannot fill a window")
	assert.Equal(t, 3, report.Epochs)
	assert.Greater(t, report.Train.RMSE, 0.0)
	assert.Equal(t, models.ErrorMetrics{}, report.Test)
	require.Equal(t, 1, saver.saves)

	// scaler is fitted on the training split only
	train := series.Closes()[:80]
	assert.Equal(t, minOf(train), saver.scaler.Min)
	assert.Equal(t, maxOf(train), saver.scaler.Max)

	rt := NewReadyRuntime(saver.model, saver.scaler)
	out, err := NewPredictor(rt, fetcher).Predict(context.Background(), "AAPL", day(2020, 1, 1), day(2020, 4, 30))
	require.NoError(t, err)
	require.True(t, out.OK())
	assert.False(t, math.IsNaN(out.Price))
	assert.Greater(t, out.Price, 0.0)
	assert.Less(t, out.Price, 2*maxOf(series.Closes()))
}

func TestTrainInsufficientHistory(t *testing.T) {
	saver := &memSaver{}
	trainer := NewTrainer(&stubFetcher{series: wavySeries(70)}, saver, smallTrainerConfig(), nil, nil)

	_, err := trainer.Train(context.Background(), TrainJob{Symbol: "AAPL", Start: day(2020, 1, 1)})
	assert.ErrorIs(t, err, dataset.ErrInsufficientData)
	assert.Zero(t, saver.saves)
}

func TestTrainDefaultsEndToToday(t *testing.T) {
	fetcher := &stubFetcher{}
	trainer := NewTrainer(fetcher, &memSaver{}, smallTrainerConfig(), nil, nil)
	trainer.now = func() time.Time { return time.Date(2024, 5, 6, 20, 0, 0, 0, time.UTC) }

	_, err := trainer.Train(context.Background(), TrainJob{Symbol: "AAPL", Start: day(2020, 1, 1)})
	assert.ErrorIs(t, err, dataset.ErrInsufficientData)
	assert.Equal(t, day(2024, 5, 6), fetcher.end)
}

type fakeRunner struct {
	mu   sync.Mutex
	jobs []TrainJob
	err  error
}

func (r *fakeRunner) Train(_ context.Context, job TrainJob) (models.TrainingReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return models.TrainingReport{Symbol: job.Symbol}, r.err
}

func TestTrainRequestHandler(t *testing.T) {
	runner := &fakeRunner{}
	h := NewTrainRequestHandler("stock.train.requests", runner, day(2020, 1, 1), nil)
	assert.Equal(t, "stock.train.requests", h.Topic())

	payload, _ := json.Marshal(models.TrainRequest{Symbol: "NVDA", EndDate: "2024-03-01"})
	require.NoError(t, h.Handle(context.Background(), payload))
	require.Len(t, runner.jobs, 1)
	assert.Equal(t, "NVDA", runner.jobs[0].Symbol)
	assert.Equal(t, day(2020, 1, 1), runner.jobs[0].Start)
	assert.Equal(t, day(2024, 3, 1), runner.jobs[0].End)
	assert.Equal(t, "kafka", runner.jobs[0].Trigger)
}

func TestTrainRequestHandlerPermanentFailures(t *testing.T) {
	runner := &fakeRunner{}
	h := NewTrainRequestHandler("t", runner, day(2020, 1, 1), nil)

	for name, payload := range map[string]string{
		"malformed":      `{"symbol":`,
		"missing symbol": `{"start_date":"2021-01-01"}`,
		"bad date":       `{"symbol":"AAPL","start_date":"01/02/2021"}`,
		"reversed range": `{"symbol":"AAPL","start_date":"2024-02-01","end_date":"2024-01-01"}`,
	} {
		err := h.Handle(context.Background(), []byte(payload))
		var perm *pkgkafka.PermanentError
		assert.True(t, errors.As(err, &perm), name)
	}
	assert.Empty(t, runner.jobs)

	runner.err = dataset.ErrInsufficientData
	err := h.Handle(context.Background(), []byte(`{"symbol":"AAPL"}`))
	var perm *pkgkafka.PermanentError
	assert.True(t, errors.As(err, &perm))

	runner.err = errors.New("yahoo down")
	err = h.Handle(context.Background(), []byte(`{"symbol":"AAPL"}`))
	require.Error(t, err)
	assert.False(t, errors.As(err, &perm), "transient failures are retried")
}

func TestTrainScheduler(t *testing.T) {
	runner := &fakeRunner{}
	s := NewTrainScheduler(context.Background(), runner, "AAPL", day(2020, 1, 1), nil)

	assert.Error(t, s.Register("not a cron expression"))
	require.NoError(t, s.Register("0 30 22 * * 1-5"))

	s.RunNow()
	require.Len(t, runner.jobs, 1)
	assert.Equal(t, "schedule", runner.jobs[0].Trigger)
	assert.Equal(t, day(2020, 1, 1), runner.jobs[0].Start)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func minOf(v []float64) float64 {
	m := math.Inf(1)
	for _, x := range v {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(v []float64) float64 {
	m := math.Inf(-1)
	for _, x := range v {
		m = math.Max(m, x)
	}
	return m
}
