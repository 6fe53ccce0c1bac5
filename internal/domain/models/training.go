package models

import "time"

// ErrorMetrics summarizes regression error in price units.
type ErrorMetrics struct {
	MSE  float64 `json:"mse"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// TrainingReport describes one completed training run.
type TrainingReport struct {
	Symbol     string        `json:"symbol"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Points     int           `json:"points"`
	TrainPairs int           `json:"train_pairs"`
	TestPairs  int           `json:"test_pairs"`
	Epochs     int           `json:"epochs"`
	BestEpoch  int           `json:"best_epoch"`
	BestLoss   float64       `json:"best_loss"`
	Train      ErrorMetrics  `json:"train"`
	Test       ErrorMetrics  `json:"test"`
	Duration   time.Duration `json:"duration"`
}
