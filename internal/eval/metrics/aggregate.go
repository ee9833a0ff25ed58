package metrics

import (
	"fmt"
	"strings"
	"time"
)

// EvaluationResult is the outcome of evaluating one labeled image.
type EvaluationResult struct {
	SampleID       string
	ImagePath      string
	Comparison     *ExtractionComparison
	ProcessingTime time.Duration
	Error          string // set when extraction failed
}

// FieldStats accumulates match statistics for one field across the set.
type FieldStats struct {
	ExactMatches  int
	FuzzyMatches  int
	NoMatches     int
	MissingFields int
	AverageScore  float64
	Scores        []float64
}

// AggregateResults summarizes an evaluation run.
type AggregateResults struct {
	TotalSamples int
	SuccessCount int
	FailureCount int

	NameAccuracy         FieldStats
	ManufacturerAccuracy FieldStats
	ModelNumberAccuracy  FieldStats
	SerialNumberAccuracy FieldStats
	QuantityAccuracy     FieldStats

	OverallAccuracy float64

	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	Results []EvaluationResult

	EvaluationDate time.Time
	Provider       string
	Model          string
}

// Aggregate rolls individual results up into summary statistics.
func Aggregate(results []EvaluationResult, provider, model string) *AggregateResults {
	agg := &AggregateResults{
		TotalSamples:   len(results),
		Results:        results,
		EvaluationDate: time.Now(),
		Provider:       provider,
		Model:          model,
	}

	totalOverallScore := 0.0
	var totalDuration, successDuration time.Duration

	for _, result := range results {
		totalDuration += result.ProcessingTime

		if result.Error != "" {
			agg.FailureCount++
			continue
		}
		agg.SuccessCount++
		successDuration += result.ProcessingTime

		if result.Comparison == nil {
			continue
		}
		aggregateFieldStats(&agg.NameAccuracy, result.Comparison.NameMatch)
		aggregateFieldStats(&agg.ManufacturerAccuracy, result.Comparison.ManufacturerMatch)
		aggregateFieldStats(&agg.ModelNumberAccuracy, result.Comparison.ModelNumberMatch)
		aggregateFieldStats(&agg.SerialNumberAccuracy, result.Comparison.SerialNumberMatch)
		aggregateFieldStats(&agg.QuantityAccuracy, result.Comparison.QuantityMatch)
		totalOverallScore += result.Comparison.OverallScore
	}

	if agg.SuccessCount > 0 {
		agg.NameAccuracy.AverageScore = average(agg.NameAccuracy.Scores)
		agg.ManufacturerAccuracy.AverageScore = average(agg.ManufacturerAccuracy.Scores)
		agg.ModelNumberAccuracy.AverageScore = average(agg.ModelNumberAccuracy.Scores)
		agg.SerialNumberAccuracy.AverageScore = average(agg.SerialNumberAccuracy.Scores)
		agg.QuantityAccuracy.AverageScore = average(agg.QuantityAccuracy.Scores)
		agg.OverallAccuracy = totalOverallScore / float64(agg.SuccessCount)
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}
	agg.TotalProcessingTime = totalDuration

	return agg
}

func aggregateFieldStats(stats *FieldStats, match FieldMatch) {
	stats.Scores = append(stats.Scores, match.Score)

	switch match.Method {
	case "exact", "both_missing":
		stats.ExactMatches++
	case "fuzzy_high", "fuzzy_medium", "substring":
		stats.FuzzyMatches++
	case "no_match":
		stats.NoMatches++
	case "actual_missing", "expected_missing":
		stats.MissingFields++
	}
}

func average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, score := range scores {
		sum += score
	}
	return sum / float64(len(scores))
}

// PrintSummary prints a human-readable summary of the evaluation.
func (a *AggregateResults) PrintSummary() {
	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Println("EXTRACTION EVALUATION SUMMARY")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Printf("Provider: %s\n", a.Provider)
	fmt.Printf("Model: %s\n", a.Model)
	fmt.Printf("Samples: %d\n", a.TotalSamples)
	fmt.Println()

	fmt.Println("PROCESSING STATISTICS")
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Successful: %d\n", a.SuccessCount)
	fmt.Printf("Failed: %d\n", a.FailureCount)
	fmt.Printf("Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Printf("Total Processing Time: %s\n", a.TotalProcessingTime)
	fmt.Println()

	fmt.Println("FIELD ACCURACY")
	fmt.Println(strings.Repeat("-", 70))
	printFieldStats("Name", a.NameAccuracy)
	printFieldStats("Manufacturer", a.ManufacturerAccuracy)
	printFieldStats("Model Number", a.ModelNumberAccuracy)
	printFieldStats("Serial Number", a.SerialNumberAccuracy)
	printFieldStats("Quantity", a.QuantityAccuracy)
	fmt.Println()
	fmt.Printf("OVERALL ACCURACY: %.1f%%\n", a.OverallAccuracy*100)
	fmt.Println(strings.Repeat("=", 70))
}

func printFieldStats(name string, stats FieldStats) {
	fmt.Printf("%-14s avg %.2f  (exact %d, fuzzy %d, miss %d, absent %d)\n",
		name, stats.AverageScore, stats.ExactMatches, stats.FuzzyMatches,
		stats.NoMatches, stats.MissingFields)
}
