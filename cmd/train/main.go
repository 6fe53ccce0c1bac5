package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockForecaster/internal/di"
	"StockForecaster/internal/domain/models"
	svcmetrics "StockForecaster/internal/service/metrics"
	"StockForecaster/internal/usecase"
	"StockForecaster/pkg/config"
	xhttp "StockForecaster/pkg/http"
	applogger "StockForecaster/pkg/logger"
	xutil "StockForecaster/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	mode := flag.String("mode", "once", "once | schedule | worker")
	symbol := flag.String("symbol", "", "ticker to train on (default training.symbol)")
	startDate := flag.String("start", "", "first date YYYY-MM-DD (default training.start_date)")
	endDate := flag.String("end", "", "last date YYYY-MM-DD (default today)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *symbol != "" {
		cfg.Training.Symbol = *symbol
	}
	if *startDate != "" {
		cfg.Training.StartDate = *startDate
	}

	if err := run(cfg, *mode, *endDate); err != nil {
		log.Printf("train error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, mode, endDate string) error {
	req := models.TrainRequest{Symbol: cfg.Training.Symbol, StartDate: cfg.Training.StartDate, EndDate: endDate}
	if verrs := xhttp.Validate(&req); len(verrs) > 0 {
		return fmt.Errorf("invalid training parameters: %s", verrs[0].Message)
	}
	start, _ := xutil.ParseDate(req.StartDate)
	var end time.Time
	if endDate != "" {
		end, _ = xutil.ParseDate(endDate)
	}

	producer, closeProducer, err := di.ProvideKafkaProducer(cfg)
	if err != nil {
		return err
	}
	defer closeProducer()
	l, closeLogger, err := di.ProvideLogger(cfg, producer)
	if err != nil {
		return err
	}
	defer closeLogger()
	seriesCache, closeCache, err := di.ProvideSeriesCache(cfg, l)
	if err != nil {
		return err
	}
	defer closeCache()
	archive, closeArchive, err := di.ProvidePriceArchive(cfg, l)
	if err != nil {
		return err
	}
	defer closeArchive()

	m := di.ProvideMetrics(cfg)
	svcmetrics.Register()
	fetcher := di.ProvidePriceFetcher(cfg, seriesCache, archive, l, m)
	store := di.ProvideArtifactStore(cfg)
	trainer := di.ProvideTrainer(cfg, fetcher, store, l, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "once":
		report, err := trainer.Train(ctx, usecase.TrainJob{Symbol: req.Symbol, Start: start, End: end, Trigger: "cli"})
		if err != nil {
			return err
		}
		l.Info("artifacts written",
			applogger.String("model", store.ModelPath()),
			applogger.String("scaler", store.ScalerPath()),
			applogger.Float64("train_mse", report.Train.MSE),
			applogger.Float64("train_mae", report.Train.MAE),
			applogger.Float64("train_rmse", report.Train.RMSE),
			applogger.Float64("test_mse", report.Test.MSE),
			applogger.Float64("test_mae", report.Test.MAE),
			applogger.Float64("test_rmse", report.Test.RMSE),
		)
		return nil
	case "schedule":
		if cfg.Training.Schedule == "" {
			return fmt.Errorf("training.schedule is required in schedule mode")
		}
		sched := usecase.NewTrainScheduler(ctx, trainer, req.Symbol, start, l)
		if err := sched.Register(cfg.Training.Schedule); err != nil {
			return err
		}
		return serve(ctx, cfg, l, sched.Start, func(stopCtx context.Context) error {
			sched.Stop(stopCtx)
			return nil
		})
	case "worker":
		if !cfg.Kafka.Enabled {
			return fmt.Errorf("kafka must be enabled in worker mode")
		}
		consumer, err := di.ProvideTrainConsumer(cfg, l)
		if err != nil {
			return err
		}
		consumer.RegisterHandler(usecase.NewTrainRequestHandler(cfg.Kafka.TrainTopic, trainer, start, l))
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		return serve(ctx, cfg, l, func() {}, consumer.Stop)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// serve runs a long-lived mode until ctx ends, exposing /metrics when enabled.
func serve(ctx context.Context, cfg *config.Config, l *applogger.Logger, start func(), stop func(context.Context) error) error {
	var metricsServer *xhttp.Server
	if cfg.Metrics.Enabled {
		metricsServer = xhttp.NewServer(nil,
			xhttp.WithPort(cfg.Server.Port),
			xhttp.WithMetricsPath(cfg.Metrics.Path),
			xhttp.WithLogger(l),
		)
		if err := metricsServer.Start(); err != nil {
			return err
		}
	}
	start()

	<-ctx.Done()
	l.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	err := stop(stopCtx)
	if metricsServer != nil {
		if serr := metricsServer.Stop(stopCtx); serr != nil {
			l.Warn("metrics server stop error", applogger.Error(serr))
		}
	}
	return err
}
