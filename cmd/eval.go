package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/synssins/homebox-companion/internal/config"
	"github.com/synssins/homebox-companion/internal/eval/dataset"
	"github.com/synssins/homebox-companion/internal/eval/metrics"
	"github.com/synssins/homebox-companion/internal/eval/results"
	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/providers"
)

func newEvalCmd() *cobra.Command {
	var (
		datasetPath string
		output      string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate extraction accuracy against a labeled dataset",
		Long: `Runs the configured vision provider over a labeled set of photos and
scores the extracted fields against ground truth.

The dataset is a YAML file listing image paths and the expected item
fields. Results are printed as a summary and written as YAML for
comparison across providers and models.`,
		Example: `  # Evaluate the default provider against a dataset
  homebox-companion eval --dataset testdata/items.yaml

  # Evaluate a 10-sample subset and keep the report
  homebox-companion eval --dataset items.yaml --limit 10 --output run1.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			extractor, err := buildExtractor(cfg)
			if err != nil {
				return err
			}

			ds, err := dataset.NewLoader(datasetPath).LoadSample(limit)
			if err != nil {
				return err
			}
			if len(ds.Samples) == 0 {
				return fmt.Errorf("dataset %s contains no samples", datasetPath)
			}

			evalResults := make([]metrics.EvaluationResult, 0, len(ds.Samples))
			for _, sample := range ds.Samples {
				evalResults = append(evalResults, evaluateSample(cmd, extractor, cfg, sample))
			}

			agg := metrics.Aggregate(evalResults, cfg.Provider, cfg.Model)
			agg.PrintSummary()

			if output != "" {
				if err := results.WriteYAML(agg, output); err != nil {
					return err
				}
				slog.Info("Evaluation report written", "output", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&datasetPath, "dataset", "d", "", "Path to the labeled dataset YAML")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the full report to this YAML file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Evaluate at most this many samples (0 = all)")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func evaluateSample(cmd *cobra.Command, extractor providers.Extractor, cfg *config.Config, sample dataset.LabeledImage) metrics.EvaluationResult {
	result := metrics.EvaluationResult{SampleID: sample.ID, ImagePath: sample.ImagePath}

	image, err := os.ReadFile(sample.ImagePath)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read image: %v", err)
		return result
	}

	start := time.Now()
	items, err := extractor.Detect(cmd.Context(), image, providers.DetectOptions{Model: cfg.Model})
	result.ProcessingTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var actual models.ItemFields
	if len(items) > 0 {
		actual = items[0].Fields
	}
	result.Comparison = metrics.CompareFields(sample.Expected, actual)
	return result
}
