package dataset

import "fmt"

// DefaultWindow is the number of past closes fed to the model.
const DefaultWindow = 60

// SequencePair is one supervised example: N consecutive values and the value after them.
type SequencePair struct {
	Window []float64
	Target float64
}

// BuildSequences slides a window of n over values with stride 1. A series
// of length L yields max(0, L-n) pairs. Windows share no memory with values.
func BuildSequences(values []float64, n int) []SequencePair {
	if n <= 0 || len(values) <= n {
		return nil
	}
	pairs := make([]SequencePair, 0, len(values)-n)
	for i := n; i < len(values); i++ {
		w := make([]float64, n)
		copy(w, values[i-n:i])
		pairs = append(pairs, SequencePair{Window: w, Target: values[i]})
	}
	return pairs
}

// LastWindow returns a copy of the most recent n values.
func LastWindow(values []float64, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", n)
	}
	if len(values) < n {
		return nil, fmt.Errorf("%w: have %d points, need %d", ErrInsufficientData, len(values), n)
	}
	w := make([]float64, n)
	copy(w, values[len(values)-n:])
	return w, nil
}

// SplitChronological splits at int(len*ratio) without shuffling. The split
// happens before windowing so no window straddles the boundary.
func SplitChronological(values []float64, ratio float64) (train, test []float64, err error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("split ratio must be in (0, 1), got %v", ratio)
	}
	cut := int(float64(len(values)) * ratio)
	return values[:cut:cut], values[cut:], nil
}

// Split separates windows and targets for model training.
func Split(pairs []SequencePair) (windows [][]float64, targets []float64) {
	windows = make([][]float64, len(pairs))
	targets = make([]float64, len(pairs))
	for i, p := range pairs {
		windows[i] = p.Window
		targets[i] = p.Target
	}
	return windows, targets
}
