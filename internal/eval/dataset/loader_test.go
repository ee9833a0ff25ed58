package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDataset = `name: bench-items
samples:
  - id: router
    image_path: images/router.jpg
    expected:
      name: ASUS RT-AX88U Router
      manufacturer: ASUS
      model_number: RT-AX88U
      quantity: 1
  - image_path: /abs/drill.jpg
    expected:
      name: Cordless Drill
      quantity: 2
`

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "items.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeDataset(t, sampleDataset)

	ds, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Name != "bench-items" {
		t.Errorf("Name = %q", ds.Name)
	}
	if len(ds.Samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(ds.Samples))
	}

	first := ds.Samples[0]
	if first.ID != "router" {
		t.Errorf("ID = %q", first.ID)
	}
	if first.Expected.Name != "ASUS RT-AX88U Router" || first.Expected.Quantity != 1 {
		t.Errorf("Expected = %+v", first.Expected)
	}
	// Relative paths resolve against the dataset file's directory.
	if want := filepath.Join(filepath.Dir(path), "images/router.jpg"); first.ImagePath != want {
		t.Errorf("ImagePath = %q, want %q", first.ImagePath, want)
	}

	second := ds.Samples[1]
	if second.ID != "sample-2" {
		t.Errorf("missing IDs get generated, got %q", second.ID)
	}
	if second.ImagePath != "/abs/drill.jpg" {
		t.Errorf("absolute path must be untouched, got %q", second.ImagePath)
	}
}

func TestLoadSample(t *testing.T) {
	path := writeDataset(t, sampleDataset)

	ds, err := NewLoader(path).LoadSample(1)
	if err != nil {
		t.Fatalf("LoadSample() error = %v", err)
	}
	if len(ds.Samples) != 1 {
		t.Errorf("got %d samples, want 1", len(ds.Samples))
	}

	ds, err = NewLoader(path).LoadSample(0)
	if err != nil {
		t.Fatalf("LoadSample(0) error = %v", err)
	}
	if len(ds.Samples) != 2 {
		t.Errorf("limit 0 means all samples, got %d", len(ds.Samples))
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := NewLoader("/nonexistent/items.yaml").Load(); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeDataset(t, "samples: [not a mapping")
	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
