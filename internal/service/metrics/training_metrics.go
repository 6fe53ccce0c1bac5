package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EpochLoss = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "forecaster",
			Subsystem: "training",
			Name:      "epoch_loss",
			Help:      "Loss of the most recent epoch by split",
		},
		[]string{"symbol", "split"},
	)

	EpochsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecaster",
			Subsystem: "training",
			Name:      "epochs_total",
			Help:      "Completed training epochs",
		},
		[]string{"symbol"},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecaster",
			Subsystem: "training",
			Name:      "runs_total",
			Help:      "Training runs by trigger and result",
		},
		[]string{"trigger", "result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EpochLoss, EpochsTotal, RunsTotal)
	})
}
