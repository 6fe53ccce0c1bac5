package lstm

import (
	"encoding/json"
	"fmt"
	"io"
)

// FormatVersion is bumped whenever the weight layout changes.
const FormatVersion = 1

type artifact struct {
	Format  int      `json:"format"`
	Network *Network `json:"network"`
}

// Save writes the network as JSON.
func (n *Network) Save(w io.Writer) error {
	if err := n.validate(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	return enc.Encode(artifact{Format: FormatVersion, Network: n})
}

// Load reads a network written by Save and checks its shape.
func Load(r io.Reader) (*Network, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if a.Format != FormatVersion {
		return nil, fmt.Errorf("unsupported model format %d", a.Format)
	}
	if a.Network == nil {
		return nil, fmt.Errorf("%w: model artifact has no network", ErrShape)
	}
	if err := a.Network.validate(); err != nil {
		return nil, err
	}
	return a.Network, nil
}
