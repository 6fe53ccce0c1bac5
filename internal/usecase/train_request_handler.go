package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"StockForecaster/internal/domain/models"
	"StockForecaster/internal/services/dataset"
	xhttp "StockForecaster/pkg/http"
	pkgkafka "StockForecaster/pkg/kafka"
	applogger "StockForecaster/pkg/logger"
	xutil "StockForecaster/pkg/util"
)

// TrainRequestHandler consumes retrain requests from Kafka. Malformed
// payloads and symbols without enough history are permanent failures and go
// to the DLQ; anything else is retried by the consumer.
type TrainRequestHandler struct {
	topic        string
	runner       JobRunner
	defaultStart time.Time
	l            *applogger.Logger
}

func NewTrainRequestHandler(topic string, runner JobRunner, defaultStart time.Time, l *applogger.Logger) *TrainRequestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &TrainRequestHandler{topic: topic, runner: runner, defaultStart: defaultStart, l: l}
}

func (h *TrainRequestHandler) Topic() string { return h.topic }

func (h *TrainRequestHandler) Handle(ctx context.Context, data []byte) error {
	var req models.TrainRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("decode train request: %w", err))
	}
	if verrs := xhttp.Validate(&req); len(verrs) > 0 {
		return pkgkafka.Permanent(fmt.Errorf("invalid train request: %s", verrs[0].Message))
	}

	job := TrainJob{Symbol: req.Symbol, Start: h.defaultStart, Trigger: "kafka"}
	if req.StartDate != "" {
		job.Start, _ = xutil.ParseDate(req.StartDate)
	}
	if req.EndDate != "" {
		job.End, _ = xutil.ParseDate(req.EndDate)
	}
	if !job.End.IsZero() && !job.Start.Before(job.End) {
		return pkgkafka.Permanent(fmt.Errorf("invalid train request: start_date %s is not before end_date %s", req.StartDate, req.EndDate))
	}

	report, err := h.runner.Train(ctx, job)
	if err != nil {
		if errors.Is(err, dataset.ErrInsufficientData) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.l.Info("train request done",
		applogger.String("symbol", report.Symbol),
		applogger.Int("epochs", report.Epochs),
		applogger.Float64("test_rmse", report.Test.RMSE),
	)
	return nil
}
