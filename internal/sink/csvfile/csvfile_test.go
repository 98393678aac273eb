package csvfile

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
	"github.com/KhavKivar/piwebapi-etl/internal/transform"
)

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	assert.Equal(t, "eventframes_trinidad_20250601_123045.csv", DefaultFilename("TRINIDAD", now))
	assert.Equal(t, "eventframes_port_of_spain_20250601_123045.csv", DefaultFilename("Port of Spain", now))
}

func TestSinkWritesHeaderAndRows(t *testing.T) {
	schema := config.SchemaConfig{
		Columns:      []string{"id", "event_frame_name", "excursion_value", "site"},
		FloatColumns: []string{"excursion_value"},
		ColumnMap: map[string]string{
			"id":               model.FieldID,
			"event_frame_name": model.FieldName,
			"excursion_value":  "Excursion value",
		},
	}
	tr := transform.New(schema, "TRINIDAD", config.SiteConfig{})

	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := New(path, tr)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Write(ctx, []model.FlatRecord{
		{ID: "f-1", Name: "EF-1", Attributes: map[string]any{"Excursion value": 12.5}},
		{ID: "f-2", Name: "EF-2", Attributes: map[string]any{"Excursion value": "N/A"}},
	}))
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, schema.Columns, rows[0])
	assert.Equal(t, []string{"f-1", "EF-1", "12.5", "TRINIDAD"}, rows[1])
	// N/A empties out instead of propagating.
	assert.Equal(t, []string{"f-2", "EF-2", "", "TRINIDAD"}, rows[2])
}

func TestNewFailsOnBadPath(t *testing.T) {
	tr := transform.New(config.SchemaConfig{}, "X", config.SiteConfig{})
	_, err := New(filepath.Join(t.TempDir(), "missing", "out.csv"), tr)
	assert.Error(t, err)
}
