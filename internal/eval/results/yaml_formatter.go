// Package results writes evaluation output in a diffable YAML shape so
// runs against different providers or models can be compared in review.
package results

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/synssins/homebox-companion/internal/eval/metrics"
)

type report struct {
	EvaluationDate  time.Time     `yaml:"evaluation_date"`
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	TotalSamples    int           `yaml:"total_samples"`
	SuccessCount    int           `yaml:"success_count"`
	FailureCount    int           `yaml:"failure_count"`
	OverallAccuracy float64       `yaml:"overall_accuracy"`
	Fields          []fieldReport  `yaml:"fields"`
	Samples         []sampleReport `yaml:"samples"`
}

type fieldReport struct {
	Name          string  `yaml:"name"`
	AverageScore  float64 `yaml:"average_score"`
	ExactMatches  int     `yaml:"exact_matches"`
	FuzzyMatches  int     `yaml:"fuzzy_matches"`
	NoMatches     int     `yaml:"no_matches"`
	MissingFields int     `yaml:"missing_fields"`
}

type sampleReport struct {
	ID           string  `yaml:"id"`
	OverallScore float64 `yaml:"overall_score,omitempty"`
	Error        string  `yaml:"error,omitempty"`
}

// WriteYAML writes the aggregated evaluation results to path.
func WriteYAML(agg *metrics.AggregateResults, path string) error {
	r := report{
		EvaluationDate:  agg.EvaluationDate,
		Provider:        agg.Provider,
		Model:           agg.Model,
		TotalSamples:    agg.TotalSamples,
		SuccessCount:    agg.SuccessCount,
		FailureCount:    agg.FailureCount,
		OverallAccuracy: agg.OverallAccuracy,
		Fields: []fieldReport{
			toFieldReport("name", agg.NameAccuracy),
			toFieldReport("manufacturer", agg.ManufacturerAccuracy),
			toFieldReport("model_number", agg.ModelNumberAccuracy),
			toFieldReport("serial_number", agg.SerialNumberAccuracy),
			toFieldReport("quantity", agg.QuantityAccuracy),
		},
	}
	for _, result := range agg.Results {
		sample := sampleReport{ID: result.SampleID, Error: result.Error}
		if result.Comparison != nil {
			sample.OverallScore = result.Comparison.OverallScore
		}
		r.Samples = append(r.Samples, sample)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func toFieldReport(name string, stats metrics.FieldStats) fieldReport {
	return fieldReport{
		Name:          name,
		AverageScore:  stats.AverageScore,
		ExactMatches:  stats.ExactMatches,
		FuzzyMatches:  stats.FuzzyMatches,
		NoMatches:     stats.NoMatches,
		MissingFields: stats.MissingFields,
	}
}
