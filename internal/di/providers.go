package di

import (
	"context"
	"fmt"
	"time"

	"StockForecaster/internal/domain/repository"
	"StockForecaster/internal/handler/api"
	internalrepo "StockForecaster/internal/repository"
	"StockForecaster/internal/service/alphavantage"
	"StockForecaster/internal/service/cache"
	"StockForecaster/internal/service/ratelimit"
	"StockForecaster/internal/service/yahoo"
	"StockForecaster/internal/usecase"
	pkgch "StockForecaster/pkg/clickhouse"
	"StockForecaster/pkg/config"
	pkgkafka "StockForecaster/pkg/kafka"
	applogger "StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
	"StockForecaster/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression("snappy"),
		pkgkafka.WithRequiredAcks(-1),
		pkgkafka.WithMaxAttempts(cfg.Kafka.RetryMax),
		pkgkafka.WithBatching(100, 50*time.Millisecond),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the app logger. With Kafka enabled, repeated error
// logs are aggregated and shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.LogTopic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideSeriesCache returns the fetched-series cache: Redis when configured,
// otherwise in-process. Nil when caching is disabled.
func ProvideSeriesCache(cfg *config.Config, l *applogger.Logger) (cache.BytesCache, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}
	if !cfg.Cache.Redis.Enabled {
		return cache.NewTTLCache(), func() {}, nil
	}

	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   "forecaster:",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	l.Info("redis series cache ready", applogger.String("addr", cfg.Cache.Redis.Addr))
	return rc, func() { _ = rc.Close() }, nil
}

// ProvidePriceArchive connects to ClickHouse and creates the archive tables.
// Nil when ClickHouse is disabled.
func ProvidePriceArchive(cfg *config.Config, l *applogger.Logger) (repository.PriceArchive, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	archive := internalrepo.NewClickHouseArchive(client, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = archive.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse archive ready", applogger.String("database", cfg.ClickHouse.Database))
	return archive, func() { _ = archive.Close() }, nil
}

// ProvidePredictionPublisher publishes prediction events. Nil without a producer.
func ProvidePredictionPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.PredictionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.PredictionTopic)
}

// ProvidePriceFetcher builds the Yahoo -> Alpha Vantage fetcher.
func ProvidePriceFetcher(
	cfg *config.Config,
	c cache.BytesCache,
	archive repository.PriceArchive,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.PriceFetcher {
	p := cfg.Providers
	opts := []usecase.FetcherOption{
		usecase.WithFetcherLogger(l),
		usecase.WithFetcherMetrics(m),
	}
	if c != nil {
		opts = append(opts, usecase.WithSeriesCache(c, cfg.Cache.TTL))
	}
	if archive != nil {
		opts = append(opts, usecase.WithPriceArchive(archive))
	}
	return usecase.NewPriceFetcher(
		yahoo.New(p.Yahoo.BaseURL, p.Yahoo.UserAgent, p.Yahoo.Timeout),
		alphavantage.New(p.AlphaVantage.BaseURL, p.AlphaVantage.APIKey, p.AlphaVantage.Timeout),
		p.Retry.MaxRetries,
		p.Retry.Delay,
		opts...,
	)
}

// ProvideArtifactStore points at the model directory.
func ProvideArtifactStore(cfg *config.Config) *internalrepo.ArtifactStore {
	return internalrepo.NewArtifactStore(cfg.Model.Dir, cfg.Model.ModelFile, cfg.Model.ScalerFile)
}

// ProvideRuntime loads the artifacts once. A failed load leaves the runtime
// FAILED; the server still starts and reports it on /readyz.
func ProvideRuntime(store *internalrepo.ArtifactStore, l *applogger.Logger) *usecase.Runtime {
	rt := usecase.NewRuntime()
	if err := rt.Load(store); err != nil {
		l.Error("model artifacts not loaded",
			applogger.String("model", store.ModelPath()),
			applogger.String("scaler", store.ScalerPath()),
			applogger.Error(err),
		)
		return rt
	}
	l.Info("model artifacts loaded", applogger.String("model", store.ModelPath()))
	return rt
}

// ProvidePredictor creates the prediction use case.
func ProvidePredictor(
	cfg *config.Config,
	rt *usecase.Runtime,
	fetcher *usecase.PriceFetcher,
	archive repository.PriceArchive,
	pub repository.PredictionPublisher,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.Predictor {
	return usecase.NewPredictor(rt, fetcher,
		usecase.WithLookback(repository.NormalizePeriod(cfg.Predict.Lookback)),
		usecase.WithPredictionSinks(archive, pub),
		usecase.WithPredictorLogger(l),
		usecase.WithPredictorMetrics(m),
	)
}

// ProvidePredictHandler creates the HTTP handler.
func ProvidePredictHandler(l *applogger.Logger, p *usecase.Predictor, rt *usecase.Runtime) *api.PredictEchoHandler {
	return api.NewPredictEchoHandler(l, p, rt)
}

// ProvideLimiter creates the per-IP request limiter, or nil when disabled.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h *api.PredictEchoHandler,
	limiter *ratelimit.Limiter,
	c cache.BytesCache,
) *server.App {
	app := server.New(cfg, l, h)
	if limiter != nil {
		app.SetLimiter(limiter)
	}
	if ttl, ok := c.(*cache.TTLCache); ok {
		app.SetPurger(ttl)
	}
	return app
}

// ProvideTrainer creates the offline training use case.
func ProvideTrainer(
	cfg *config.Config,
	fetcher *usecase.PriceFetcher,
	store *internalrepo.ArtifactStore,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.Trainer {
	t := cfg.Training
	units := make([]int, t.Layers)
	for i := range units {
		units[i] = t.Units
	}
	return usecase.NewTrainer(fetcher, store, usecase.TrainerConfig{
		Window:       cfg.Model.Window,
		SplitRatio:   t.SplitRatio,
		Units:        units,
		Dropout:      t.Dropout,
		Epochs:       t.Epochs,
		BatchSize:    t.BatchSize,
		LearningRate: t.LearningRate,
		Patience:     t.Patience,
		Seed:         t.Seed,
	}, l, m)
}

// ProvideTrainConsumer creates the retrain-request consumer with its DLQ.
func ProvideTrainConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, cfg.Kafka.BackoffMin, cfg.Kafka.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}
