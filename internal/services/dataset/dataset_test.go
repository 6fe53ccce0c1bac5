package dataset

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)*0.5 + 3*math.Sin(float64(i)/5)
	}
	return out
}

func TestScalerRoundTrip(t *testing.T) {
	values := ramp(80)
	scaled, s, err := FitTransform(values)
	require.NoError(t, err)

	for _, v := range scaled {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.InDeltaSlice(t, values, back, 1e-9)
}

func TestScalerNotFitted(t *testing.T) {
	var s MinMaxScaler
	_, err := s.Transform([]float64{1})
	assert.ErrorIs(t, err, ErrScalerNotFitted)
	_, err = s.InverseTransform([]float64{1})
	assert.ErrorIs(t, err, ErrScalerNotFitted)
	_, err = json.Marshal(s)
	assert.Error(t, err)
}

func TestScalerDoesNotClampOrRefit(t *testing.T) {
	_, s, err := FitTransform([]float64{10, 20})
	require.NoError(t, err)

	out, err := s.Transform([]float64{30, 5})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out[0], 1e-12)
	assert.InDelta(t, -0.5, out[1], 1e-12)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 20.0, s.Max)
}

func TestScalerZeroRange(t *testing.T) {
	scaled, s, err := FitTransform([]float64{7, 7, 7})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, scaled)
	v, err := s.InverseValue(0.5)
	require.NoError(t, err)
	assert.InDelta(t, 7.5, v, 1e-12)
}

func TestScalerFitRejectsBadInput(t *testing.T) {
	var s MinMaxScaler
	assert.ErrorIs(t, s.Fit(nil), ErrInsufficientData)
	assert.Error(t, s.Fit([]float64{1, math.NaN()}))
}

func TestScalerJSON(t *testing.T) {
	_, s, err := FitTransform([]float64{1, 3})
	require.NoError(t, err)
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var got MinMaxScaler
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, s, got)

	assert.Error(t, json.Unmarshal([]byte(`{"min":1,"max":3,"fitted":false}`), &got))
	assert.Error(t, json.Unmarshal([]byte(`{"min":3,"max":1,"fitted":true}`), &got))
}

func TestBuildSequencesCount(t *testing.T) {
	for _, tc := range []struct{ l, n, want int }{
		{100, 60, 40},
		{61, 60, 1},
		{60, 60, 0},
		{10, 60, 0},
		{0, 60, 0},
	} {
		pairs := BuildSequences(ramp(tc.l), tc.n)
		assert.Len(t, pairs, tc.want, "L=%d N=%d", tc.l, tc.n)
		for _, p := range pairs {
			assert.Len(t, p.Window, tc.n)
		}
	}
}

func TestBuildSequencesContent(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	pairs := BuildSequences(values, 3)
	require.Len(t, pairs, 2)
	assert.Equal(t, []float64{1, 2, 3}, pairs[0].Window)
	assert.Equal(t, 4.0, pairs[0].Target)
	assert.Equal(t, []float64{2, 3, 4}, pairs[1].Window)
	assert.Equal(t, 5.0, pairs[1].Target)

	values[0] = 99
	assert.Equal(t, 1.0, pairs[0].Window[0], "windows are copies")

	windows, targets := Split(pairs)
	assert.Len(t, windows, 2)
	assert.Equal(t, []float64{4, 5}, targets)
}

func TestLastWindow(t *testing.T) {
	w, err := LastWindow([]float64{1, 2, 3, 4}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4}, w)

	_, err = LastWindow([]float64{1, 2}, 3)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = LastWindow([]float64{1}, 0)
	assert.Error(t, err)
}

func TestSplitChronological(t *testing.T) {
	values := ramp(100)
	train, test, err := SplitChronological(values, 0.8)
	require.NoError(t, err)
	assert.Len(t, train, 80)
	assert.Len(t, test, 20)
	assert.Equal(t, values[79], train[79])
	assert.Equal(t, values[80], test[0])

	// appending to train must not clobber test
	train = append(train, -1)
	assert.Equal(t, values[80], test[0])

	_, _, err = SplitChronological(values, 1)
	assert.Error(t, err)
}
