package providers

import (
	"encoding/json"
	"strings"

	"github.com/synssins/homebox-companion/internal/apperrors"
	"github.com/synssins/homebox-companion/internal/models"
)

// DetectPrompt instructs vision models to return item data as strict
// JSON. Shared by all providers so their outputs parse identically.
const DetectPrompt = `You are an inventory assistant. Identify the physical item(s) in this photo.

Return ONLY a JSON array, no explanations. Each element:

{
  "name": "",
  "manufacturer": "",
  "model_number": "",
  "serial_number": "",
  "quantity": 1,
  "mac_address": "",
  "fcc_id": "",
  "notes": "",
  "confidence": {"name": 0.0, "manufacturer": 0.0, "model_number": 0.0, "serial_number": 0.0, "overall": 0.0}
}

Rules:
- Read labels, stickers and engravings for model/serial numbers, MAC addresses and FCC IDs.
- Use "" for fields you cannot determine and lower the matching confidence.
- Confidence values are between 0 and 1.
- quantity is the count of identical items visible.`

// wireItem is the JSON shape models are asked to produce.
type wireItem struct {
	Name         string             `json:"name"`
	Manufacturer string             `json:"manufacturer"`
	ModelNumber  string             `json:"model_number"`
	SerialNumber string             `json:"serial_number"`
	Quantity     int                `json:"quantity"`
	MACAddress   string             `json:"mac_address"`
	FCCID        string             `json:"fcc_id"`
	Notes        string             `json:"notes"`
	Confidence   map[string]float64 `json:"confidence"`
}

// CleanJSON strips markdown code fences and surrounding prose from a
// model response, leaving the first JSON array or object.
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)

	start := strings.IndexAny(content, "[{")
	if start == -1 {
		return content
	}
	var end int
	if content[start] == '[' {
		end = strings.LastIndex(content, "]")
	} else {
		end = strings.LastIndex(content, "}")
	}
	if end <= start {
		return content
	}
	return strings.TrimSpace(content[start : end+1])
}

// ParseDetectedItems parses a model response into detected items.
// Output that cannot be parsed as the expected schema is a permanent,
// non-retryable failure.
func ParseDetectedItems(content string) ([]DetectedItem, error) {
	cleaned := CleanJSON(content)

	var wire []wireItem
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		// Some models return a single object instead of an array.
		var single wireItem
		if err2 := json.Unmarshal([]byte(cleaned), &single); err2 != nil {
			return nil, apperrors.Newf(apperrors.KindInvalid, "malformed model output: %v", err)
		}
		wire = []wireItem{single}
	}

	items := make([]DetectedItem, 0, len(wire))
	for _, w := range wire {
		if w.Name == "" {
			continue
		}
		if w.Quantity <= 0 {
			w.Quantity = 1
		}
		overall := w.Confidence["overall"]
		fields := w.Confidence
		delete(fields, "overall")
		items = append(items, DetectedItem{
			Fields: models.ItemFields{
				Name:         w.Name,
				Manufacturer: w.Manufacturer,
				ModelNumber:  w.ModelNumber,
				SerialNumber: w.SerialNumber,
				Quantity:     w.Quantity,
				MACAddress:   w.MACAddress,
				FCCID:        w.FCCID,
				Notes:        w.Notes,
			},
			Confidence: models.ConfidenceScores{Fields: fields, Overall: overall},
			Raw:        content,
		})
	}
	return items, nil
}
