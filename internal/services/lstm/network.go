// Package lstm implements a stacked LSTM regressor that maps a window of
// scaled closes to the next scaled close.
package lstm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrShape is returned when an input window does not match the network.
var ErrShape = errors.New("input shape mismatch")

// Layer holds one LSTM layer. Gate rows are ordered input, forget, cell, output.
type Layer struct {
	In    int       `json:"in"`
	Units int       `json:"units"`
	Wx    []float64 `json:"wx"` // 4*Units x In, row-major
	Wh    []float64 `json:"wh"` // 4*Units x Units, row-major
	B     []float64 `json:"b"`
}

// Dense is the single-output regression head.
type Dense struct {
	W []float64 `json:"w"`
	B []float64 `json:"b"`
}

// Network is a stack of LSTM layers followed by Dense. Only the last hidden
// state of the top layer reaches the head.
type Network struct {
	Window  int      `json:"window"`
	Dropout float64  `json:"dropout"`
	Layers  []*Layer `json:"layers"`
	Out     Dense    `json:"out"`
}

// Config describes the network shape.
type Config struct {
	Window  int
	Units   []int
	Dropout float64
	Seed    int64
}

// New builds a network with Glorot-uniform weights and forget-gate bias 1.
func New(cfg Config) (*Network, error) {
	if cfg.Window < 1 {
		return nil, fmt.Errorf("window must be >= 1, got %d", cfg.Window)
	}
	if len(cfg.Units) == 0 {
		return nil, errors.New("at least one lstm layer is required")
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, fmt.Errorf("dropout must be in [0, 1), got %v", cfg.Dropout)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	n := &Network{Window: cfg.Window, Dropout: cfg.Dropout}
	in := 1
	for _, units := range cfg.Units {
		if units < 1 {
			return nil, fmt.Errorf("units must be >= 1, got %d", units)
		}
		l := &Layer{
			In:    in,
			Units: units,
			Wx:    glorot(rng, 4*units*in, in, 4*units),
			Wh:    glorot(rng, 4*units*units, units, 4*units),
			B:     make([]float64, 4*units),
		}
		for j := units; j < 2*units; j++ {
			l.B[j] = 1
		}
		n.Layers = append(n.Layers, l)
		in = units
	}
	n.Out = Dense{W: glorot(rng, in, in, 1), B: make([]float64, 1)}
	return n, nil
}

func glorot(rng *rand.Rand, size, fanIn, fanOut int) []float64 {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	w := make([]float64, size)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return w
}

// WindowSize returns the number of closes the network consumes.
func (n *Network) WindowSize() int { return n.Window }

// Predict runs inference on one scaled window. Dropout is disabled.
func (n *Network) Predict(window []float64) (float64, error) {
	if len(window) != n.Window {
		return 0, fmt.Errorf("%w: window has %d values, network expects %d", ErrShape, len(window), n.Window)
	}
	for _, v := range window {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: non-finite input", ErrShape)
		}
	}
	y, _, _ := n.forward(window, nil)
	return y, nil
}

// Clone returns a deep copy.
func (n *Network) Clone() *Network {
	c := &Network{Window: n.Window, Dropout: n.Dropout}
	for _, l := range n.Layers {
		c.Layers = append(c.Layers, &Layer{
			In:    l.In,
			Units: l.Units,
			Wx:    append([]float64(nil), l.Wx...),
			Wh:    append([]float64(nil), l.Wh...),
			B:     append([]float64(nil), l.B...),
		})
	}
	c.Out = Dense{W: append([]float64(nil), n.Out.W...), B: append([]float64(nil), n.Out.B...)}
	return c
}

// zeroLike returns a network of the same shape with zeroed weights, used as a gradient buffer.
func (n *Network) zeroLike() *Network {
	z := &Network{Window: n.Window}
	for _, l := range n.Layers {
		z.Layers = append(z.Layers, &Layer{
			In:    l.In,
			Units: l.Units,
			Wx:    make([]float64, len(l.Wx)),
			Wh:    make([]float64, len(l.Wh)),
			B:     make([]float64, len(l.B)),
		})
	}
	z.Out = Dense{W: make([]float64, len(n.Out.W)), B: make([]float64, len(n.Out.B))}
	return z
}

func (n *Network) params() [][]float64 {
	ps := make([][]float64, 0, 3*len(n.Layers)+2)
	for _, l := range n.Layers {
		ps = append(ps, l.Wx, l.Wh, l.B)
	}
	return append(ps, n.Out.W, n.Out.B)
}

func (n *Network) validate() error {
	if n.Window < 1 || len(n.Layers) == 0 {
		return fmt.Errorf("%w: empty network", ErrShape)
	}
	in := 1
	for i, l := range n.Layers {
		if l == nil || l.In != in || l.Units < 1 {
			return fmt.Errorf("%w: layer %d", ErrShape, i)
		}
		g := 4 * l.Units
		if len(l.Wx) != g*l.In || len(l.Wh) != g*l.Units || len(l.B) != g {
			return fmt.Errorf("%w: layer %d weights", ErrShape, i)
		}
		in = l.Units
	}
	if len(n.Out.W) != in || len(n.Out.B) != 1 {
		return fmt.Errorf("%w: dense head", ErrShape)
	}
	return nil
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

type stepCache struct {
	x, hPrev, cPrev      []float64
	i, f, g, o, c, tc, h []float64
}

type layerCache struct {
	steps []stepCache

	// mask scales the layer output; nil when dropout is off.
	mask [][]float64
}

func (l *Layer) forward(xs [][]float64) []stepCache {
	H := l.Units
	h := make([]float64, H)
	c := make([]float64, H)
	z := make([]float64, 4*H)
	steps := make([]stepCache, len(xs))

	for t, x := range xs {
		for r := 0; r < 4*H; r++ {
			s := l.B[r]
			row := l.Wx[r*l.In : (r+1)*l.In]
			for k, v := range x {
				s += row[k] * v
			}
			rowh := l.Wh[r*H : (r+1)*H]
			for k, v := range h {
				s += rowh[k] * v
			}
			z[r] = s
		}
		sc := stepCache{
			x: x, hPrev: h, cPrev: c,
			i: make([]float64, H), f: make([]float64, H), g: make([]float64, H), o: make([]float64, H),
			c: make([]float64, H), tc: make([]float64, H), h: make([]float64, H),
		}
		for j := 0; j < H; j++ {
			sc.i[j] = sigmoid(z[j])
			sc.f[j] = sigmoid(z[H+j])
			sc.g[j] = math.Tanh(z[2*H+j])
			sc.o[j] = sigmoid(z[3*H+j])
			sc.c[j] = sc.f[j]*c[j] + sc.i[j]*sc.g[j]
			sc.tc[j] = math.Tanh(sc.c[j])
			sc.h[j] = sc.o[j] * sc.tc[j]
		}
		h, c = sc.h, sc.c
		steps[t] = sc
	}
	return steps
}

// forward returns the prediction, per-layer caches and the (masked) top
// hidden state fed to the head. A nil rng disables dropout.
func (n *Network) forward(window []float64, rng *rand.Rand) (float64, []layerCache, []float64) {
	xs := make([][]float64, len(window))
	for t, v := range window {
		xs[t] = []float64{v}
	}
	drop := rng != nil && n.Dropout > 0
	caches := make([]layerCache, len(n.Layers))
	top := len(n.Layers) - 1

	var out []float64
	for li, l := range n.Layers {
		steps := l.forward(xs)
		lc := layerCache{steps: steps}
		if li == top {
			out = steps[len(steps)-1].h
			if drop {
				m := dropoutMask(rng, l.Units, n.Dropout)
				out = applyMask(out, m)
				lc.mask = [][]float64{m}
			}
			caches[li] = lc
			break
		}
		next := make([][]float64, len(steps))
		if drop {
			lc.mask = make([][]float64, len(steps))
		}
		for t, s := range steps {
			next[t] = s.h
			if drop {
				lc.mask[t] = dropoutMask(rng, l.Units, n.Dropout)
				next[t] = applyMask(s.h, lc.mask[t])
			}
		}
		caches[li] = lc
		xs = next
	}

	y := n.Out.B[0]
	for j, v := range out {
		y += n.Out.W[j] * v
	}
	return y, caches, out
}

func dropoutMask(rng *rand.Rand, size int, p float64) []float64 {
	keep := 1 / (1 - p)
	m := make([]float64, size)
	for i := range m {
		if rng.Float64() >= p {
			m[i] = keep
		}
	}
	return m
}

func applyMask(v, m []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * m[i]
	}
	return out
}
