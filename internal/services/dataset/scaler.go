package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrScalerNotFitted is returned by Transform/InverseTransform before Fit.
	ErrScalerNotFitted = errors.New("scaler not fitted")
	// ErrInsufficientData means fewer points than the model window.
	ErrInsufficientData = errors.New("insufficient data")
)

// MinMaxScaler maps a single column onto [0, 1] using the bounds seen at fit
// time. Values outside those bounds map outside [0, 1] and are not clamped.
// A zero range scales by 1.
type MinMaxScaler struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Fitted bool    `json:"fitted"`
}

// Fit records the bounds of values.
func (s *MinMaxScaler) Fit(values []float64) error {
	if len(values) == 0 {
		return fmt.Errorf("fit scaler: %w", ErrInsufficientData)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("fit scaler: non-finite value %v", v)
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	s.Min, s.Max, s.Fitted = lo, hi, true
	return nil
}

// FitTransform fits a new scaler on values and returns the scaled values.
func FitTransform(values []float64) ([]float64, MinMaxScaler, error) {
	var s MinMaxScaler
	if err := s.Fit(values); err != nil {
		return nil, MinMaxScaler{}, err
	}
	out, err := s.Transform(values)
	return out, s, err
}

func (s MinMaxScaler) scale() float64 {
	if r := s.Max - s.Min; r != 0 {
		return r
	}
	return 1
}

// Transform scales values with the fitted bounds. It never re-fits.
func (s MinMaxScaler) Transform(values []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, ErrScalerNotFitted
	}
	k := s.scale()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.Min) / k
	}
	return out, nil
}

// InverseTransform maps scaled values back to price units.
func (s MinMaxScaler) InverseTransform(values []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, ErrScalerNotFitted
	}
	k := s.scale()
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*k + s.Min
	}
	return out, nil
}

// InverseValue is InverseTransform for a single value.
func (s MinMaxScaler) InverseValue(v float64) (float64, error) {
	out, err := s.InverseTransform([]float64{v})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// MarshalJSON refuses to persist an unfitted scaler.
func (s MinMaxScaler) MarshalJSON() ([]byte, error) {
	if !s.Fitted {
		return nil, ErrScalerNotFitted
	}
	type plain MinMaxScaler
	return json.Marshal(plain(s))
}

// UnmarshalJSON validates the stored bounds.
func (s *MinMaxScaler) UnmarshalJSON(b []byte) error {
	type plain MinMaxScaler
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if !p.Fitted {
		return fmt.Errorf("decode scaler: %w", ErrScalerNotFitted)
	}
	if p.Max < p.Min {
		return fmt.Errorf("decode scaler: max %v < min %v", p.Max, p.Min)
	}
	*s = MinMaxScaler(p)
	return nil
}
