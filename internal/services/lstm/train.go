package lstm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// TrainConfig controls Fit.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64

	// Patience is the number of epochs without improvement before stopping.
	// Zero disables early stopping.
	Patience int

	// OnEpoch is called after every epoch.
	OnEpoch func(EpochStats)
}

// EpochStats summarizes one epoch. ValLoss is NaN without validation data.
type EpochStats struct {
	Epoch    int
	Loss     float64
	ValLoss  float64
	Improved bool
}

// History is the outcome of Fit. The network holds the best weights seen.
type History struct {
	Loss      []float64
	ValLoss   []float64
	BestEpoch int
	BestLoss  float64
	Stopped   bool
}

// Epochs is the number of epochs actually run.
func (h History) Epochs() int { return len(h.Loss) }

// Fit trains with Adam on mean squared error. Early stopping monitors the
// validation loss when validation data is given and the training loss otherwise.
func (n *Network) Fit(ctx context.Context, x [][]float64, y []float64, valX [][]float64, valY []float64, cfg TrainConfig) (History, error) {
	if err := n.checkBatch(x, y); err != nil {
		return History{}, fmt.Errorf("training set: %w", err)
	}
	if len(valX) > 0 {
		if err := n.checkBatch(valX, valY); err != nil {
			return History{}, fmt.Errorf("validation set: %w", err)
		}
	}
	if cfg.Epochs < 1 || cfg.BatchSize < 1 {
		return History{}, fmt.Errorf("epochs and batch size must be >= 1, got %d/%d", cfg.Epochs, cfg.BatchSize)
	}
	if cfg.LearningRate < 0 {
		return History{}, fmt.Errorf("learning rate must be >= 0, got %v", cfg.LearningRate)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	opt := newAdam(n, cfg.LearningRate)
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}

	hist := History{BestLoss: math.Inf(1)}
	best := n.Clone()
	wait := 0
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var sum float64
		for lo := 0; lo < len(order); lo += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			hi := min(lo+cfg.BatchSize, len(order))
			grads := n.zeroLike()
			for _, idx := range order[lo:hi] {
				pred, caches, hOut := n.forward(x[idx], rng)
				diff := pred - y[idx]
				sum += diff * diff
				n.backward(caches, hOut, 2*diff/float64(hi-lo), grads)
			}
			opt.step(n.params(), grads.params())
		}
		loss := sum / float64(len(x))

		valLoss := math.NaN()
		monitor := loss
		if len(valX) > 0 {
			valLoss = n.Evaluate(valX, valY)
			monitor = valLoss
		}
		hist.Loss = append(hist.Loss, loss)
		hist.ValLoss = append(hist.ValLoss, valLoss)

		improved := monitor < hist.BestLoss
		if improved {
			hist.BestLoss, hist.BestEpoch = monitor, epoch
			best = n.Clone()
			wait = 0
		} else {
			wait++
		}
		if cfg.OnEpoch != nil {
			cfg.OnEpoch(EpochStats{Epoch: epoch, Loss: loss, ValLoss: valLoss, Improved: improved})
		}
		if cfg.Patience > 0 && wait >= cfg.Patience {
			hist.Stopped = true
			break
		}
	}
	n.restore(best)
	return hist, nil
}

// Evaluate returns the mean squared error of the network on x/y without dropout.
func (n *Network) Evaluate(x [][]float64, y []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	var sum float64
	for i, w := range x {
		pred, _, _ := n.forward(w, nil)
		d := pred - y[i]
		sum += d * d
	}
	return sum / float64(len(x))
}

func (n *Network) checkBatch(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return errors.New("no samples")
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d windows but %d targets", ErrShape, len(x), len(y))
	}
	for i, w := range x {
		if len(w) != n.Window {
			return fmt.Errorf("%w: sample %d has %d values, network expects %d", ErrShape, i, len(w), n.Window)
		}
	}
	return nil
}

func (n *Network) restore(from *Network) {
	dst, src := n.params(), from.params()
	for i := range dst {
		copy(dst[i], src[i])
	}
}

// backward accumulates into grads the gradient of the loss given dy = dLoss/dPrediction.
func (n *Network) backward(caches []layerCache, hOut []float64, dy float64, grads *Network) {
	for j, v := range hOut {
		grads.Out.W[j] += dy * v
	}
	grads.Out.B[0] += dy

	top := len(n.Layers) - 1
	T := len(caches[top].steps)
	dHs := make([][]float64, T)
	last := make([]float64, n.Layers[top].Units)
	for j := range last {
		last[j] = dy * n.Out.W[j]
		if m := caches[top].mask; m != nil {
			last[j] *= m[0][j]
		}
	}
	dHs[T-1] = last

	for li := top; li >= 0; li-- {
		dXs := n.Layers[li].backward(caches[li].steps, dHs, grads.Layers[li])
		if li == 0 {
			break
		}
		if m := caches[li-1].mask; m != nil {
			for t := range dXs {
				for j := range dXs[t] {
					dXs[t][j] *= m[t][j]
				}
			}
		}
		dHs = dXs
	}
}

// backward runs BPTT through one layer. dHs[t] is the gradient flowing into
// h_t from above and may be nil. It returns the gradient for each input x_t.
func (l *Layer) backward(steps []stepCache, dHs [][]float64, g *Layer) [][]float64 {
	H := l.Units
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dz := make([]float64, 4*H)
	dXs := make([][]float64, len(steps))

	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]
		for j := 0; j < H; j++ {
			dh := dhNext[j]
			if dHs[t] != nil {
				dh += dHs[t][j]
			}
			dc := dh*s.o[j]*(1-s.tc[j]*s.tc[j]) + dcNext[j]
			dz[j] = dc * s.g[j] * s.i[j] * (1 - s.i[j])
			dz[H+j] = dc * s.cPrev[j] * s.f[j] * (1 - s.f[j])
			dz[2*H+j] = dc * s.i[j] * (1 - s.g[j]*s.g[j])
			dz[3*H+j] = dh * s.tc[j] * s.o[j] * (1 - s.o[j])
			dcNext[j] = dc * s.f[j]
		}

		clear(dhNext)
		dx := make([]float64, l.In)
		for r := 0; r < 4*H; r++ {
			d := dz[r]
			if d == 0 {
				continue
			}
			g.B[r] += d
			row := r * l.In
			for k, v := range s.x {
				g.Wx[row+k] += d * v
				dx[k] += d * l.Wx[row+k]
			}
			rowh := r * H
			for k, v := range s.hPrev {
				g.Wh[rowh+k] += d * v
				dhNext[k] += d * l.Wh[rowh+k]
			}
		}
		dXs[t] = dx
	}
	return dXs
}

type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(n *Network, lr float64) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
	for _, p := range n.params() {
		a.m = append(a.m, make([]float64, len(p)))
		a.v = append(a.v, make([]float64, len(p)))
	}
	return a
}

func (a *adam) step(params, grads [][]float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range params {
		m, v, g := a.m[i], a.v[i], grads[i]
		for k := range p {
			m[k] = a.beta1*m[k] + (1-a.beta1)*g[k]
			v[k] = a.beta2*v[k] + (1-a.beta2)*g[k]*g[k]
			p[k] -= a.lr * (m[k] / c1) / (math.Sqrt(v[k]/c2) + a.eps)
		}
	}
}
