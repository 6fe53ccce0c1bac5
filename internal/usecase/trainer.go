package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"StockForecaster/internal/domain/models"
	domrepo "StockForecaster/internal/domain/repository"
	"StockForecaster/internal/domain/service"
	svcmetrics "StockForecaster/internal/service/metrics"
	"StockForecaster/internal/services/dataset"
	"StockForecaster/internal/services/lstm"
	applogger "StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
	xutil "StockForecaster/pkg/util"
)

// ArtifactSaver persists a trained model with the scaler it was trained against.
type ArtifactSaver interface {
	Save(model *lstm.Network, scaler dataset.MinMaxScaler) error
}

// TrainerConfig mirrors the training section of the config.
type TrainerConfig struct {
	Window       int
	SplitRatio   float64
	Units        []int
	Dropout      float64
	Epochs       int
	BatchSize    int
	LearningRate float64
	Patience     int
	Seed         int64
}

// TrainJob is one training request. A zero End means today.
type TrainJob struct {
	Symbol  string
	Start   time.Time
	End     time.Time
	Trigger string
}

// Trainer runs the offline pipeline: fetch, split, fit scaler on the training
// part, window, fit the network and persist both artifacts.
type Trainer struct {
	fetcher service.SeriesFetcher
	saver   ArtifactSaver
	cfg     TrainerConfig
	l       *applogger.Logger
	metrics domrepo.Metrics
	now     func() time.Time
}

func NewTrainer(fetcher service.SeriesFetcher, saver ArtifactSaver, cfg TrainerConfig, l *applogger.Logger, m domrepo.Metrics) *Trainer {
	if l == nil {
		l = applogger.Nop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Trainer{fetcher: fetcher, saver: saver, cfg: cfg, l: l, metrics: m, now: time.Now}
}

// Train runs one job and returns its report. Artifacts are written only on success.
func (t *Trainer) Train(ctx context.Context, job TrainJob) (report models.TrainingReport, err error) {
	trigger := job.Trigger
	if trigger == "" {
		trigger = "manual"
	}
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		svcmetrics.RunsTotal.WithLabelValues(trigger, result).Inc()
	}()

	began := time.Now()
	symbol := xutil.NormalizeSymbol(job.Symbol)
	end := job.End
	if end.IsZero() {
		end = xutil.TruncateDay(t.now())
	}
	report = models.TrainingReport{Symbol: symbol, Start: job.Start, End: end}

	t.l.Info("training started",
		applogger.String("symbol", symbol),
		applogger.String("trigger", trigger),
		applogger.Date("start", job.Start),
		applogger.Date("end", end),
	)

	series, err := t.fetcher.Fetch(ctx, symbol, job.Start, end)
	if err != nil {
		return report, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	report.Points = series.Len()

	train, test, err := dataset.SplitChronological(series.Closes(), t.cfg.SplitRatio)
	if err != nil {
		return report, err
	}
	t.l.Info("dataset split",
		applogger.String("symbol", symbol),
		applogger.Int("train_points", len(train)),
		applogger.Int("test_points", len(test)),
	)
	if len(train) <= t.cfg.Window {
		return report, fmt.Errorf("%w: %d training points for window %d", dataset.ErrInsufficientData, len(train), t.cfg.Window)
	}

	scaledTrain, scaler, err := dataset.FitTransform(train)
	if err != nil {
		return report, fmt.Errorf("fit scaler: %w", err)
	}
	scaledTest, err := scaler.Transform(test)
	if err != nil {
		return report, fmt.Errorf("transform test split: %w", err)
	}

	xTrain, yTrain := dataset.Split(dataset.BuildSequences(scaledTrain, t.cfg.Window))
	xTest, yTest := dataset.Split(dataset.BuildSequences(scaledTest, t.cfg.Window))
	report.TrainPairs, report.TestPairs = len(xTrain), len(xTest)

	net, err := lstm.New(lstm.Config{
		Window:  t.cfg.Window,
		Units:   t.cfg.Units,
		Dropout: t.cfg.Dropout,
		Seed:    t.cfg.Seed,
	})
	if err != nil {
		return report, fmt.Errorf("build model: %w", err)
	}

	hist, err := net.Fit(ctx, xTrain, yTrain, xTest, yTest, lstm.TrainConfig{
		Epochs:       t.cfg.Epochs,
		BatchSize:    t.cfg.BatchSize,
		LearningRate: t.cfg.LearningRate,
		Patience:     t.cfg.Patience,
		Seed:         t.cfg.Seed,
		OnEpoch:      t.epochObserver(symbol),
	})
	if err != nil {
		return report, fmt.Errorf("train model: %w", err)
	}
	report.Epochs = hist.Epochs()
	report.BestEpoch = hist.BestEpoch
	report.BestLoss = hist.BestLoss

	if report.Train, err = priceErrors(net, scaler, xTrain, yTrain); err != nil {
		return report, err
	}
	if report.Test, err = priceErrors(net, scaler, xTest, yTest); err != nil {
		return report, err
	}

	if err := t.saver.Save(net, scaler); err != nil {
		return report, fmt.Errorf("save artifacts: %w", err)
	}
	report.Duration = time.Since(began)
	t.metrics.RecordTraining(symbol, report)

	t.l.Info("training finished",
		applogger.String("symbol", symbol),
		applogger.Int("train_pairs", report.TrainPairs),
		applogger.Int("test_pairs", report.TestPairs),
		applogger.Int("epochs", report.Epochs),
		applogger.Int("best_epoch", report.BestEpoch),
		applogger.Float64("test_rmse", report.Test.RMSE),
		applogger.Bool("early_stopped", hist.Stopped),
		applogger.Duration("duration_ms", report.Duration),
	)
	return report, nil
}

func (t *Trainer) epochObserver(symbol string) func(lstm.EpochStats) {
	return func(s lstm.EpochStats) {
		svcmetrics.EpochsTotal.WithLabelValues(symbol).Inc()
		svcmetrics.EpochLoss.WithLabelValues(symbol, "train").Set(s.Loss)
		fields := []applogger.Field{
			applogger.String("symbol", symbol),
			applogger.Int("epoch", s.Epoch),
			applogger.Float64("loss", s.Loss),
			applogger.Bool("improved", s.Improved),
		}
		if !math.IsNaN(s.ValLoss) {
			svcmetrics.EpochLoss.WithLabelValues(symbol, "validation").Set(s.ValLoss)
			fields = append(fields, applogger.Float64("val_loss", s.ValLoss))
		}
		t.l.Debug("epoch done", fields...)
	}
}

// priceErrors reports MSE, MAE and RMSE in price units. No samples yields zeros.
func priceErrors(net *lstm.Network, scaler dataset.MinMaxScaler, x [][]float64, y []float64) (models.ErrorMetrics, error) {
	if len(x) == 0 {
		return models.ErrorMetrics{}, nil
	}
	preds := make([]float64, len(x))
	for i, w := range x {
		p, err := net.Predict(w)
		if err != nil {
			return models.ErrorMetrics{}, fmt.Errorf("evaluate: %w", err)
		}
		preds[i] = p
	}
	predPrices, err := scaler.InverseTransform(preds)
	if err != nil {
		return models.ErrorMetrics{}, err
	}
	truePrices, err := scaler.InverseTransform(y)
	if err != nil {
		return models.ErrorMetrics{}, err
	}

	var se, ae float64
	for i := range predPrices {
		d := predPrices[i] - truePrices[i]
		se += d * d
		ae += math.Abs(d)
	}
	n := float64(len(predPrices))
	return models.ErrorMetrics{MSE: se / n, MAE: ae / n, RMSE: math.Sqrt(se / n)}, nil
}
