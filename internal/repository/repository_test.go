package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/services/dataset"
	"StockForecaster/internal/services/lstm"
	pkgkafka "StockForecaster/pkg/kafka"
)

func TestArtifactStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	store := NewArtifactStore(dir, "lstm_model.json", "scaler.json")

	net, err := lstm.New(lstm.Config{Window: 4, Units: []int{3}, Seed: 1})
	require.NoError(t, err)
	_, scaler, err := dataset.FitTransform([]float64{10, 12, 15})
	require.NoError(t, err)

	require.NoError(t, store.Save(net, scaler))

	loadedNet, err := store.LoadModel()
	require.NoError(t, err)
	window := []float64{0.1, 0.5, 0.2, 0.9}
	want, _ := net.Predict(window)
	got, err := loadedNet.Predict(window)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)

	loadedScaler, err := store.LoadScaler()
	require.NoError(t, err)
	assert.Equal(t, scaler, loadedScaler)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files are cleaned up")
}

func TestArtifactStoreMissingFiles(t *testing.T) {
	store := NewArtifactStore(t.TempDir(), "lstm_model.json", "scaler.json")

	_, err := store.LoadModel()
	assert.ErrorIs(t, err, fs.ErrNotExist)
	_, err = store.LoadScaler()
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestArtifactStoreCorruptScaler(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scaler.json"), []byte(`{"min":1,"max":2}`), 0o644))
	store := NewArtifactStore(dir, "lstm_model.json", "scaler.json")

	_, err := store.LoadScaler()
	assert.ErrorIs(t, err, dataset.ErrScalerNotFitted)
}

type fakeBatchStore struct {
	mu      sync.Mutex
	schema  []string
	queries []string
	rows    [][][]any
	err     error
}

func (f *fakeBatchStore) InitSchema(_ context.Context, stmts []string) error {
	f.schema = stmts
	return f.err
}

func (f *fakeBatchStore) InsertBatch(_ context.Context, query string, rows [][]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.queries = append(f.queries, query)
	f.rows = append(f.rows, rows)
	return nil
}

func (f *fakeBatchStore) Health(context.Context) error { return f.err }
func (f *fakeBatchStore) Close() error                 { return nil }

func TestClickHouseArchiveSaveSeries(t *testing.T) {
	store := &fakeBatchStore{}
	a := newClickHouseArchive(store, nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	require.NoError(t, a.Init(context.Background()))
	assert.Len(t, store.schema, 2)

	series := models.PriceSeries{
		Symbol: "AAPL",
		Source: "yahoo",
		Points: []models.PricePoint{
			{Date: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), Close: 181.4},
			{Date: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Close: 180.7},
		},
	}
	require.NoError(t, a.SaveSeries(context.Background(), series))
	require.Len(t, store.rows, 1)
	assert.Equal(t, insertCloseSQL, store.queries[0])
	require.Len(t, store.rows[0], 2)
	assert.Equal(t, []any{series.Points[1].Date, "AAPL", 180.7, "yahoo", fixed}, store.rows[0][1])

	require.NoError(t, a.SaveSeries(context.Background(), models.PriceSeries{Symbol: "AAPL"}))
	assert.Len(t, store.rows, 1, "empty series is not written")
}

func TestClickHouseArchiveErrors(t *testing.T) {
	store := &fakeBatchStore{err: errors.New("connection refused")}
	a := newClickHouseArchive(store, nil)

	err := a.SavePrediction(context.Background(), models.PredictionEvent{ID: "x", Symbol: "AAPL", Window: 60})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Error(t, a.Health(context.Background()))
}

type memWriter struct {
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func TestKafkaPublisherAssignsID(t *testing.T) {
	w := &memWriter{}
	p := NewKafkaPublisher(pkgkafka.NewProducerWithWriter(w, "none"), "stock.predictions")

	require.NoError(t, p.PublishPrediction(context.Background(), models.PredictionEvent{Symbol: "MSFT", PredictedPrice: 412.5, Window: 60}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "stock.predictions", w.msgs[0].Topic)
	assert.Equal(t, []byte("MSFT"), w.msgs[0].Key)

	var ev models.PredictionEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())
	assert.Equal(t, 412.5, ev.PredictedPrice)
	require.NoError(t, p.Close())
}
