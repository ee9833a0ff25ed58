package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/synssins/homebox-companion/internal/models"
)

// ExtractionComparison holds field-level comparison results for one
// extracted item against its ground truth.
type ExtractionComparison struct {
	NameMatch         FieldMatch
	ManufacturerMatch FieldMatch
	ModelNumberMatch  FieldMatch
	SerialNumberMatch FieldMatch
	QuantityMatch     FieldMatch

	FieldLevelScores map[string]float64
	OverallScore     float64
}

// FieldMatch is the comparison result for a single field.
type FieldMatch struct {
	Expected string
	Actual   string
	Score    float64 // 0.0 to 1.0
	Method   string  // "exact", "substring", "fuzzy_high", "fuzzy_medium", "no_match", ...
	Notes    string
}

// CompareFields scores an extracted item against the expected fields.
// Name and model number carry the most weight: they determine whether a
// catalog entry is findable.
func CompareFields(expected, actual models.ItemFields) *ExtractionComparison {
	comparison := &ExtractionComparison{
		FieldLevelScores: make(map[string]float64),
	}

	comparison.NameMatch = compareField(expected.Name, actual.Name)
	comparison.FieldLevelScores["name"] = comparison.NameMatch.Score

	comparison.ManufacturerMatch = compareField(expected.Manufacturer, actual.Manufacturer)
	comparison.FieldLevelScores["manufacturer"] = comparison.ManufacturerMatch.Score

	comparison.ModelNumberMatch = compareField(normalizeIdentifier(expected.ModelNumber), normalizeIdentifier(actual.ModelNumber))
	comparison.FieldLevelScores["model_number"] = comparison.ModelNumberMatch.Score

	comparison.SerialNumberMatch = compareField(normalizeIdentifier(expected.SerialNumber), normalizeIdentifier(actual.SerialNumber))
	comparison.FieldLevelScores["serial_number"] = comparison.SerialNumberMatch.Score

	comparison.QuantityMatch = compareQuantity(expected.Quantity, actual.Quantity)
	comparison.FieldLevelScores["quantity"] = comparison.QuantityMatch.Score

	weights := map[string]float64{
		"name":          0.35,
		"manufacturer":  0.15,
		"model_number":  0.25,
		"serial_number": 0.15,
		"quantity":      0.10,
	}

	totalScore := 0.0
	for field, weight := range weights {
		totalScore += comparison.FieldLevelScores[field] * weight
	}
	comparison.OverallScore = totalScore

	return comparison
}

func compareQuantity(expected, actual int) FieldMatch {
	match := FieldMatch{
		Expected: fmt.Sprintf("%d", expected),
		Actual:   fmt.Sprintf("%d", actual),
	}
	if expected == actual {
		match.Score = 1.0
		match.Method = "exact"
		return match
	}
	match.Score = 0.0
	match.Method = "no_match"
	match.Notes = "Quantity mismatch"
	return match
}

// compareField performs field comparison with fuzzy matching.
func compareField(expected, actual string) FieldMatch {
	match := FieldMatch{
		Expected: expected,
		Actual:   actual,
	}

	expNorm := normalizeForComparison(expected)
	actNorm := normalizeForComparison(actual)

	if expected == "" && actual == "" {
		match.Score = 1.0
		match.Method = "both_missing"
		match.Notes = "Both fields are empty"
		return match
	}
	if expected == "" {
		// The model invented a value the label does not have. Scored
		// neutral: it may be right, there is just no ground truth.
		match.Score = 0.5
		match.Method = "expected_missing"
		match.Notes = "No ground truth for this field"
		return match
	}
	if actual == "" {
		match.Score = 0.0
		match.Method = "actual_missing"
		match.Notes = "Extraction missing this field"
		return match
	}

	if expNorm == actNorm {
		match.Score = 1.0
		match.Method = "exact"
		match.Notes = "Exact match"
		return match
	}

	if strings.Contains(actNorm, expNorm) || strings.Contains(expNorm, actNorm) {
		match.Score = 0.8
		match.Method = "substring"
		match.Notes = "Partial match (substring found)"
		return match
	}

	similarity := calculateSimilarity(expNorm, actNorm)
	match.Score = similarity
	if similarity > 0.7 {
		match.Method = "fuzzy_high"
		match.Notes = fmt.Sprintf("High similarity (%.2f)", similarity)
	} else if similarity > 0.4 {
		match.Method = "fuzzy_medium"
		match.Notes = fmt.Sprintf("Medium similarity (%.2f)", similarity)
	} else {
		match.Method = "no_match"
		match.Notes = fmt.Sprintf("Low similarity (%.2f)", similarity)
	}

	return match
}

var nonWordRe = regexp.MustCompile(`[^\w\s]`)

// normalizeForComparison lowercases and strips punctuation and extra
// whitespace.
func normalizeForComparison(text string) string {
	text = strings.ToLower(text)
	text = nonWordRe.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

var identifierRe = regexp.MustCompile(`[^A-Za-z0-9]`)

// normalizeIdentifier strips separators from model/serial numbers so
// "RT-AX88U" and "RTAX88U" compare equal.
func normalizeIdentifier(text string) string {
	return strings.ToUpper(identifierRe.ReplaceAllString(text, ""))
}

// calculateSimilarity converts Levenshtein distance to a 0..1 ratio.
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	return 1.0 - (float64(distance) / float64(maxLen))
}

func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
