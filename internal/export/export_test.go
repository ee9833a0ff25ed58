package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/synssins/homebox-companion/internal/models"
	"github.com/synssins/homebox-companion/internal/store"
)

func TestSessionsExport(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	session := &models.CaptureSession{
		ID: "s1", Status: models.SessionReady, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, st.SaveSession(ctx, session))
	require.NoError(t, st.SaveImage(ctx, &models.ImageRecord{
		ID: "img1", SessionID: "s1", Status: models.ImageCompleted,
		ImagePath: "/tmp/img1.jpg", CreatedAt: now, UpdatedAt: now,
		Result: &models.ExtractionResult{
			Fields:     models.ItemFields{Name: "Router", Quantity: 2},
			Confidence: models.ConfidenceScores{Overall: 0.9},
			Enrichment: models.Enrichment{Enriched: true, Category: "networking"},
		},
	}))

	out := filepath.Join(t.TempDir(), "captures.parquet")
	require.NoError(t, Sessions(ctx, st, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	rows, err := parquet.Read[Row](f, info.Size())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "s1", rows[0].SessionID)
	assert.Equal(t, "Router", rows[0].Name)
	assert.Equal(t, int32(2), rows[0].Quantity)
	assert.True(t, rows[0].Enriched)
	assert.Equal(t, "networking", rows[0].Category)

	data, err := os.ReadFile(out + ".manifest.yaml")
	require.NoError(t, err)
	var m struct {
		Sessions int `yaml:"sessions"`
		Images   int `yaml:"images"`
	}
	require.NoError(t, yaml.Unmarshal(data, &m))
	assert.Equal(t, 1, m.Sessions)
	assert.Equal(t, 1, m.Images)
}

func TestSessionsExportEmpty(t *testing.T) {
	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	out := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, Sessions(context.Background(), st, out))

	_, err = os.Stat(out)
	require.NoError(t, err)
	_, err = os.Stat(out + ".manifest.yaml")
	require.NoError(t, err)
}
