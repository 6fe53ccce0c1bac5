package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Providers struct {
		Yahoo struct {
			BaseURL   string        `yaml:"base_url"`
			Timeout   time.Duration `yaml:"timeout"`
			UserAgent string        `yaml:"user_agent"`
		} `yaml:"yahoo"`
		AlphaVantage struct {
			BaseURL string        `yaml:"base_url"`
			APIKey  string        `yaml:"api_key"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"alpha_vantage"`
		Retry struct {
			MaxRetries int           `yaml:"max_retries"`
			Delay      time.Duration `yaml:"delay"`
		} `yaml:"retry"`
	} `yaml:"providers"`
	Model struct {
		Dir        string `yaml:"dir"`
		ModelFile  string `yaml:"model_file"`
		ScalerFile string `yaml:"scaler_file"`
		Window     int    `yaml:"window"`
	} `yaml:"model"`
	Predict struct {
		Lookback string `yaml:"lookback"`
	} `yaml:"predict"`
	Training struct {
		Symbol       string  `yaml:"symbol"`
		StartDate    string  `yaml:"start_date"`
		SplitRatio   float64 `yaml:"split_ratio"`
		Layers       int     `yaml:"layers"`
		Units        int     `yaml:"units"`
		Dropout      float64 `yaml:"dropout"`
		Epochs       int     `yaml:"epochs"`
		BatchSize    int     `yaml:"batch_size"`
		LearningRate float64 `yaml:"learning_rate"`
		Patience     int     `yaml:"patience"`
		Seed         int64   `yaml:"seed"`
		Schedule     string  `yaml:"schedule"`
	} `yaml:"training"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	RateLimit struct {
		Enabled      bool    `yaml:"enabled"`
		Capacity     int     `yaml:"capacity"`
		RefillPerSec float64 `yaml:"refill_per_sec"`
	} `yaml:"ratelimit"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled         bool          `yaml:"enabled"`
		Brokers         []string      `yaml:"brokers"`
		PredictionTopic string        `yaml:"prediction_topic"`
		TrainTopic      string        `yaml:"train_topic"`
		LogTopic        string        `yaml:"log_topic"`
		GroupID         string        `yaml:"group_id"`
		Workers         int           `yaml:"workers"`
		RetryMax        int           `yaml:"retry_max"`
		BackoffMin      time.Duration `yaml:"backoff_min"`
		BackoffMax      time.Duration `yaml:"backoff_max"`
		DLQTopic        string        `yaml:"dlq_topic"`
	} `yaml:"kafka"`
}

// Load reads and parses a YAML configuration file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads a .env file next to the process (if present), then the
// YAML config, and overrides it with environment variables before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ALPHA_KEY"); v != "" {
		c.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		c.Model.Dir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// a rate-limited fetch may sleep through several retries
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Providers.Yahoo.BaseURL == "" {
		c.Providers.Yahoo.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Providers.Yahoo.Timeout == 0 {
		c.Providers.Yahoo.Timeout = 15 * time.Second
	}
	if c.Providers.Yahoo.UserAgent == "" {
		c.Providers.Yahoo.UserAgent = "Mozilla/5.0 (compatible; StockForecaster/1.0)"
	}
	if c.Providers.AlphaVantage.BaseURL == "" {
		c.Providers.AlphaVantage.BaseURL = "https://www.alphavantage.co"
	}
	if c.Providers.AlphaVantage.Timeout == 0 {
		c.Providers.AlphaVantage.Timeout = 30 * time.Second
	}
	if c.Providers.Retry.MaxRetries == 0 {
		c.Providers.Retry.MaxRetries = 3
	}
	if c.Providers.Retry.Delay == 0 {
		c.Providers.Retry.Delay = 60 * time.Second
	}

	if c.Model.Dir == "" {
		c.Model.Dir = "models"
	}
	if c.Model.ModelFile == "" {
		c.Model.ModelFile = "lstm_model.json"
	}
	if c.Model.ScalerFile == "" {
		c.Model.ScalerFile = "scaler.json"
	}
	if c.Model.Window == 0 {
		c.Model.Window = 60
	}
	if c.Predict.Lookback == "" {
		c.Predict.Lookback = "120d"
	}

	if c.Training.Symbol == "" {
		c.Training.Symbol = "AAPL"
	}
	if c.Training.StartDate == "" {
		c.Training.StartDate = "2020-01-01"
	}
	if c.Training.SplitRatio == 0 {
		c.Training.SplitRatio = 0.8
	}
	if c.Training.Layers == 0 {
		c.Training.Layers = 2
	}
	if c.Training.Units == 0 {
		c.Training.Units = 50
	}
	if c.Training.Epochs == 0 {
		c.Training.Epochs = 100
	}
	if c.Training.BatchSize == 0 {
		c.Training.BatchSize = 32
	}
	if c.Training.LearningRate == 0 {
		c.Training.LearningRate = 0.001
	}
	if c.Training.Patience == 0 {
		c.Training.Patience = 10
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = 42
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 20
	}
	if c.RateLimit.RefillPerSec == 0 {
		c.RateLimit.RefillPerSec = 5
	}

	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "forecaster"
	}
	if c.ClickHouse.User == "" {
		c.ClickHouse.User = "default"
	}

	if c.Kafka.PredictionTopic == "" {
		c.Kafka.PredictionTopic = "stock.predictions"
	}
	if c.Kafka.TrainTopic == "" {
		c.Kafka.TrainTopic = "stock.train.requests"
	}
	if c.Kafka.LogTopic == "" {
		c.Kafka.LogTopic = "stock.logs"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "stock-forecaster-trainer"
	}
	if c.Kafka.Workers == 0 {
		c.Kafka.Workers = 1
	}
	if c.Kafka.RetryMax == 0 {
		c.Kafka.RetryMax = 3
	}
	if c.Kafka.BackoffMin == 0 {
		c.Kafka.BackoffMin = 500 * time.Millisecond
	}
	if c.Kafka.BackoffMax == 0 {
		c.Kafka.BackoffMax = 10 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Providers.AlphaVantage.APIKey == "" {
		return fmt.Errorf("providers.alpha_vantage.api_key is required (set ALPHA_KEY)")
	}
	if c.Providers.Retry.MaxRetries < 1 {
		return fmt.Errorf("providers.retry.max_retries must be >= 1, got %d", c.Providers.Retry.MaxRetries)
	}
	if c.Providers.Retry.Delay < 0 {
		return fmt.Errorf("providers.retry.delay must not be negative")
	}
	if c.Model.Dir == "" {
		return fmt.Errorf("model.dir is required")
	}
	if c.Model.Window < 1 {
		return fmt.Errorf("model.window must be >= 1, got %d", c.Model.Window)
	}
	if c.Training.SplitRatio <= 0 || c.Training.SplitRatio >= 1 {
		return fmt.Errorf("training.split_ratio must be in (0, 1), got %v", c.Training.SplitRatio)
	}
	if c.Training.Dropout < 0 || c.Training.Dropout >= 1 {
		return fmt.Errorf("training.dropout must be in [0, 1), got %v", c.Training.Dropout)
	}
	if c.Cache.Enabled && c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when redis cache is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
