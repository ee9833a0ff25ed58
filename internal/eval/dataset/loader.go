package dataset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader reads labeled evaluation datasets from disk.
type Loader struct {
	datasetPath string
}

// NewLoader creates a loader for the dataset at path.
func NewLoader(datasetPath string) *Loader {
	return &Loader{datasetPath: datasetPath}
}

// Load reads the full dataset. Image paths are resolved relative to the
// dataset file so a dataset directory can be moved as a unit.
func (l *Loader) Load() (*Dataset, error) {
	data, err := os.ReadFile(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	base := filepath.Dir(l.datasetPath)
	for i := range ds.Samples {
		if ds.Samples[i].ID == "" {
			ds.Samples[i].ID = fmt.Sprintf("sample-%d", i+1)
		}
		if !filepath.IsAbs(ds.Samples[i].ImagePath) {
			ds.Samples[i].ImagePath = filepath.Join(base, ds.Samples[i].ImagePath)
		}
	}

	slog.Debug("Dataset loaded", "path", l.datasetPath, "samples", len(ds.Samples))
	return &ds, nil
}

// LoadSample loads at most limit samples.
func (l *Loader) LoadSample(limit int) (*Dataset, error) {
	ds, err := l.Load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ds.Samples) > limit {
		ds.Samples = ds.Samples[:limit]
	}
	return ds, nil
}
