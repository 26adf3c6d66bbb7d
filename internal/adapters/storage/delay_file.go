package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/hoopsarb/internal/domain"
)

// delayModelFile es el formato en disco del modelo de delay.
type delayModelFile struct {
	Samples []domain.DelaySample `json:"samples"`
	Count   int                  `json:"count"`
}

// DelayFile implementa ports.DelayStore sobre un fichero JSON.
// Cada escritura es atómica: fichero temporal + rename.
type DelayFile struct {
	path string
}

// NewDelayFile crea el store para la ruta dada. El fichero no tiene por qué existir.
func NewDelayFile(path string) *DelayFile {
	return &DelayFile{path: path}
}

// LoadSamples implementa ports.DelayStore. Un fichero inexistente no es error.
func (f *DelayFile) LoadSamples() ([]domain.DelaySample, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.DelayFile.LoadSamples: read %q: %w", f.path, err)
	}

	var m delayModelFile
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("storage.DelayFile.LoadSamples: decode %q: %w", f.path, err)
	}
	return m.Samples, nil
}

// SaveSamples implementa ports.DelayStore.
func (f *DelayFile) SaveSamples(samples []domain.DelaySample) error {
	if samples == nil {
		samples = []domain.DelaySample{}
	}
	b, err := json.MarshalIndent(delayModelFile{Samples: samples, Count: len(samples)}, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.DelayFile.SaveSamples: encode: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage.DelayFile.SaveSamples: mkdir %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage.DelayFile.SaveSamples: temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op tras el rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("storage.DelayFile.SaveSamples: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage.DelayFile.SaveSamples: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("storage.DelayFile.SaveSamples: rename: %w", err)
	}
	return nil
}
