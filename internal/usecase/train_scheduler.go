package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"StockForecaster/internal/domain/models"
	applogger "StockForecaster/pkg/logger"
)

// JobRunner runs training jobs; *Trainer implements it.
type JobRunner interface {
	Train(ctx context.Context, job TrainJob) (models.TrainingReport, error)
}

// TrainScheduler retrains one symbol on a cron schedule (with seconds).
// A run still in progress causes the next tick to be skipped.
type TrainScheduler struct {
	cron    *cron.Cron
	trainer JobRunner
	symbol  string
	start   time.Time
	timeout time.Duration
	ctx     context.Context
	l       *applogger.Logger
}

func NewTrainScheduler(ctx context.Context, trainer JobRunner, symbol string, start time.Time, l *applogger.Logger) *TrainScheduler {
	if l == nil {
		l = applogger.Nop()
	}
	cl := cronLogger{l: l}
	return &TrainScheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		trainer: trainer,
		symbol:  symbol,
		start:   start,
		timeout: 6 * time.Hour,
		ctx:     ctx,
		l:       l,
	}
}

// Register adds the training job under expr.
func (s *TrainScheduler) Register(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.RunNow); err != nil {
		return fmt.Errorf("register training schedule %q: %w", expr, err)
	}
	s.l.Info("training schedule registered", applogger.String("schedule", expr), applogger.String("symbol", s.symbol))
	return nil
}

func (s *TrainScheduler) Start() {
	s.cron.Start()
	s.l.Info("training scheduler started")
}

// Stop stops the scheduler and waits for a running job up to ctx.
func (s *TrainScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.l.Info("training scheduler stopped")
}

// RunNow trains immediately with the end date set to today.
func (s *TrainScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	if _, err := s.trainer.Train(ctx, TrainJob{Symbol: s.symbol, Start: s.start, Trigger: "schedule"}); err != nil {
		s.l.Error("scheduled training failed", applogger.String("symbol", s.symbol), applogger.Error(err))
	}
}

// cronLogger adapts the app logger to cron.Logger.
type cronLogger struct{ l *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	fields := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
