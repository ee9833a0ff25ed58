package metrics

import (
	"testing"

	"github.com/synssins/homebox-companion/internal/models"
)

func TestCompareFieldExact(t *testing.T) {
	match := compareField("ASUS Router", "asus router")
	if match.Method != "exact" || match.Score != 1.0 {
		t.Errorf("case-insensitive comparison: method=%s score=%v", match.Method, match.Score)
	}

	match = compareField("ASUS Router!", "ASUS Router")
	if match.Method != "exact" {
		t.Errorf("punctuation should be ignored, got method=%s", match.Method)
	}
}

func TestCompareFieldSubstring(t *testing.T) {
	match := compareField("Router", "ASUS Wi-Fi Router")
	if match.Method != "substring" || match.Score != 0.8 {
		t.Errorf("method=%s score=%v, want substring 0.8", match.Method, match.Score)
	}
}

func TestCompareFieldFuzzy(t *testing.T) {
	match := compareField("RT-AX88U Router", "RT-AX88V Router")
	if match.Score < 0.7 {
		t.Errorf("near-identical strings scored %v", match.Score)
	}

	match = compareField("Cordless Drill", "Espresso Machine")
	if match.Method != "no_match" {
		t.Errorf("unrelated strings got method=%s", match.Method)
	}
}

func TestCompareFieldMissing(t *testing.T) {
	match := compareField("", "")
	if match.Method != "both_missing" || match.Score != 1.0 {
		t.Errorf("both empty: method=%s score=%v", match.Method, match.Score)
	}

	match = compareField("ASUS", "")
	if match.Method != "actual_missing" || match.Score != 0.0 {
		t.Errorf("missing extraction: method=%s score=%v", match.Method, match.Score)
	}

	match = compareField("", "ASUS")
	if match.Method != "expected_missing" || match.Score != 0.5 {
		t.Errorf("missing ground truth: method=%s score=%v", match.Method, match.Score)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	if got := normalizeIdentifier("rt-ax88u"); got != "RTAX88U" {
		t.Errorf("normalizeIdentifier() = %q", got)
	}
	if got := normalizeIdentifier("SN: 1234-5678"); got != "SN12345678" {
		t.Errorf("normalizeIdentifier() = %q", got)
	}
}

func TestCompareFields(t *testing.T) {
	expected := models.ItemFields{
		Name:         "ASUS RT-AX88U Router",
		Manufacturer: "ASUS",
		ModelNumber:  "RT-AX88U",
		SerialNumber: "SN12345",
		Quantity:     1,
	}
	perfect := CompareFields(expected, expected)
	if perfect.OverallScore < 0.99 {
		t.Errorf("identical fields scored %v", perfect.OverallScore)
	}

	actual := models.ItemFields{
		Name:        "ASUS Router",
		ModelNumber: "RTAX88U", // separators stripped before comparison
		Quantity:    2,
	}
	partial := CompareFields(expected, actual)
	if partial.ModelNumberMatch.Method != "exact" {
		t.Errorf("model number with separators: method=%s", partial.ModelNumberMatch.Method)
	}
	if partial.QuantityMatch.Score != 0.0 {
		t.Errorf("quantity mismatch scored %v", partial.QuantityMatch.Score)
	}
	if partial.OverallScore >= perfect.OverallScore {
		t.Error("partial match must score below perfect match")
	}
}

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		s1, s2 string
		want   int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"router", "routers", 1},
	}
	for _, tt := range tests {
		if got := levenshteinDistance(tt.s1, tt.s2); got != tt.want {
			t.Errorf("levenshteinDistance(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.want)
		}
	}
}
