package dataset

import "github.com/synssins/homebox-companion/internal/models"

// LabeledImage is one ground-truth sample: a photo plus the fields a
// correct extraction should produce.
type LabeledImage struct {
	ID        string            `yaml:"id"`
	ImagePath string            `yaml:"image_path"`
	Expected  models.ItemFields `yaml:"expected"`
	Notes     string            `yaml:"notes,omitempty"`
}

// Dataset is a labeled evaluation set.
type Dataset struct {
	Name    string         `yaml:"name"`
	Samples []LabeledImage `yaml:"samples"`
}
