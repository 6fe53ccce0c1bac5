package usecase

import (
	"errors"
	"fmt"
	"sync/atomic"

	"StockForecaster/internal/domain/service"
	"StockForecaster/internal/services/dataset"
	"StockForecaster/internal/services/lstm"
)

// ErrNotReady is returned for every prediction while the runtime is not READY.
var ErrNotReady = errors.New("forecaster not ready")

// State is the lifecycle of the loaded model and scaler.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ArtifactLoader reads the persisted model and scaler.
type ArtifactLoader interface {
	LoadModel() (*lstm.Network, error)
	LoadScaler() (dataset.MinMaxScaler, error)
}

type components struct {
	model  service.SequenceModel
	scaler service.Normalizer
	err    error
}

// Runtime holds the model and scaler shared by all requests. It moves
// UNINITIALIZED -> LOADING -> READY, or LOADING -> FAILED, exactly once.
// Components are immutable once published so readers take no lock.
type Runtime struct {
	state atomic.Int32
	comp  atomic.Pointer[components]
}

func NewRuntime() *Runtime { return &Runtime{} }

// NewReadyRuntime returns a READY runtime around already built components.
func NewReadyRuntime(model service.SequenceModel, scaler service.Normalizer) *Runtime {
	r := &Runtime{}
	r.comp.Store(&components{model: model, scaler: scaler})
	r.state.Store(int32(StateReady))
	return r
}

// Load reads both artifacts. A failure leaves the runtime FAILED for good.
func (r *Runtime) Load(loader ArtifactLoader) error {
	if !r.state.CompareAndSwap(int32(StateUninitialized), int32(StateLoading)) {
		return fmt.Errorf("runtime load: already %s", r.State())
	}

	model, scaler, err := loadArtifacts(loader)
	if err != nil {
		r.comp.Store(&components{err: err})
		r.state.Store(int32(StateFailed))
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	r.comp.Store(&components{model: model, scaler: scaler})
	r.state.Store(int32(StateReady))
	return nil
}

func loadArtifacts(loader ArtifactLoader) (*lstm.Network, dataset.MinMaxScaler, error) {
	model, err := loader.LoadModel()
	if err != nil {
		return nil, dataset.MinMaxScaler{}, err
	}
	scaler, err := loader.LoadScaler()
	if err != nil {
		return nil, dataset.MinMaxScaler{}, err
	}
	if !scaler.Fitted {
		return nil, dataset.MinMaxScaler{}, dataset.ErrScalerNotFitted
	}
	return model, scaler, nil
}

func (r *Runtime) State() State { return State(r.state.Load()) }

// Err returns the load failure of a FAILED runtime.
func (r *Runtime) Err() error {
	if c := r.comp.Load(); c != nil {
		return c.err
	}
	return nil
}

// Components returns the model and scaler, or ErrNotReady.
func (r *Runtime) Components() (service.SequenceModel, service.Normalizer, error) {
	if r.State() != StateReady {
		return nil, nil, fmt.Errorf("%w: state %s", ErrNotReady, r.State())
	}
	c := r.comp.Load()
	return c.model, c.scaler, nil
}
