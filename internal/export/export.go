package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/store"
)

// Row is one exported image record, flattened for columnar analysis.
type Row struct {
	SessionID     string  `parquet:"session_id"`
	SessionStatus string  `parquet:"session_status"`
	ImageID       string  `parquet:"image_id"`
	ImageStatus   string  `parquet:"image_status"`
	Name          string  `parquet:"name"`
	Manufacturer  string  `parquet:"manufacturer"`
	ModelNumber   string  `parquet:"model_number"`
	SerialNumber  string  `parquet:"serial_number"`
	Quantity      int32   `parquet:"quantity"`
	Confidence    float64 `parquet:"confidence"`
	Enriched      bool    `parquet:"enriched"`
	Category      string  `parquet:"category"`
	Edited        bool    `parquet:"edited"`
	CatalogItemID string  `parquet:"catalog_item_id"`
	CreatedAt     int64   `parquet:"created_at,timestamp(millisecond)"`
}

// manifest is the YAML sidecar written next to the parquet file.
type manifest struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	Sessions    int       `yaml:"sessions"`
	Images      int       `yaml:"images"`
	Output      string    `yaml:"output"`
}

// Sessions writes all sessions' image records to a parquet file plus a
// YAML manifest describing the export.
func Sessions(ctx context.Context, st *store.Store, outputPath string) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return err
	}

	var rows []Row
	for _, session := range sessions {
		images, err := st.ListImages(ctx, session.ID)
		if err != nil {
			return err
		}
		for _, rec := range images {
			rows = append(rows, toRow(session, rec))
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	writer := parquet.NewGenericWriter[Row](f)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}

	m := manifest{
		GeneratedAt: time.Now(),
		Sessions:    len(sessions),
		Images:      len(rows),
		Output:      outputPath,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(outputPath+".manifest.yaml", data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func toRow(session *models.CaptureSession, rec *models.ImageRecord) Row {
	row := Row{
		SessionID:     session.ID,
		SessionStatus: string(session.Status),
		ImageID:       rec.ID,
		ImageStatus:   string(rec.Status),
		CatalogItemID: rec.CatalogItemID,
		CreatedAt:     rec.CreatedAt.UnixMilli(),
	}
	if rec.Result != nil {
		row.Name = rec.Result.Fields.Name
		row.Manufacturer = rec.Result.Fields.Manufacturer
		row.ModelNumber = rec.Result.Fields.ModelNumber
		row.SerialNumber = rec.Result.Fields.SerialNumber
		row.Quantity = int32(rec.Result.Fields.Quantity)
		row.Confidence = rec.Result.Confidence.Overall
		row.Enriched = rec.Result.Enrichment.Enriched
		row.Category = rec.Result.Enrichment.Category
		row.Edited = rec.Result.Edit.Edited
	}
	return row
}
