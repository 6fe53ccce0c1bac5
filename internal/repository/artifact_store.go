package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"StockForecaster/internal/services/dataset"
	"StockForecaster/internal/services/lstm"
)

// ArtifactStore reads and writes the model and scaler files in one directory.
type ArtifactStore struct {
	dir        string
	modelFile  string
	scalerFile string
}

func NewArtifactStore(dir, modelFile, scalerFile string) *ArtifactStore {
	return &ArtifactStore{dir: dir, modelFile: modelFile, scalerFile: scalerFile}
}

func (s *ArtifactStore) ModelPath() string  { return filepath.Join(s.dir, s.modelFile) }
func (s *ArtifactStore) ScalerPath() string { return filepath.Join(s.dir, s.scalerFile) }

// LoadModel reads the network artifact. A missing file wraps fs.ErrNotExist.
func (s *ArtifactStore) LoadModel() (*lstm.Network, error) {
	f, err := os.Open(s.ModelPath())
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	n, err := lstm.Load(f)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", s.ModelPath(), err)
	}
	return n, nil
}

// LoadScaler reads the scaler artifact. A missing file wraps fs.ErrNotExist.
func (s *ArtifactStore) LoadScaler() (dataset.MinMaxScaler, error) {
	b, err := os.ReadFile(s.ScalerPath())
	if err != nil {
		return dataset.MinMaxScaler{}, fmt.Errorf("open scaler: %w", err)
	}
	var sc dataset.MinMaxScaler
	if err := json.Unmarshal(b, &sc); err != nil {
		return dataset.MinMaxScaler{}, fmt.Errorf("load scaler %s: %w", s.ScalerPath(), err)
	}
	return sc, nil
}

// Save writes both artifacts. Each file is written to a temp file in the same
// directory and renamed so readers never observe a partial artifact.
func (s *ArtifactStore) Save(model *lstm.Network, scaler dataset.MinMaxScaler) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	scalerJSON, err := json.MarshalIndent(scaler, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scaler: %w", err)
	}
	if err := s.writeAtomic(s.ModelPath(), func(f *os.File) error { return model.Save(f) }); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	if err := s.writeAtomic(s.ScalerPath(), func(f *os.File) error {
		_, err := f.Write(scalerJSON)
		return err
	}); err != nil {
		return fmt.Errorf("save scaler: %w", err)
	}
	return nil
}

func (s *ArtifactStore) writeAtomic(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
