package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

func testSchema() config.SchemaConfig {
	return config.SchemaConfig{
		Columns: []string{
			"id", "event_frame_name", "start_time", "excursion_value",
			"sdlh", "sdll", "excursion_type", "tag_name", "plant",
			"sdl_limit", "site", "last_update",
		},
		FloatColumns:    []string{"excursion_value", "sdlh", "sdll", "sdl_limit"},
		DatetimeColumns: []string{"start_time"},
		NameColumns:     []string{"excursion_type", "plant"},
		PrefixColumns:   []string{"tag_name"},
		ExcursionColumn: "excursion_type",
		LimitColumn:     "sdl_limit",
		ColumnMap: map[string]string{
			"id":               model.FieldID,
			"event_frame_name": model.FieldName,
			"start_time":       model.FieldStartTimeUTC,
			"excursion_value":  "Excursion value",
			"sdlh":             "SDLH",
			"sdll":             "SDLL",
			"excursion_type":   "Excursion type",
			"tag_name":         "Tag name",
			"plant":            "Plant",
		},
	}
}

func testRecord() model.FlatRecord {
	return model.FlatRecord{
		ID:           "f-1",
		Name:         "EF-1",
		StartTimeUTC: "2025-01-01T06:00:00.1234567Z",
		Attributes: map[string]any{
			"Excursion value": "12.5",
			"SDLH":            95.0,
			"SDLL":            "N/A",
			"Excursion type":  `{"Name": "> SDLH", "Value": 3}`,
			"Tag name":        "FIC101 PV",
			"Plant":           map[string]any{"Name": "Unit 3", "Value": 2.0},
		},
	}
}

func TestRowTyping(t *testing.T) {
	tr := New(testSchema(), "TRINIDAD", config.SiteConfig{
		LimitRules: map[string]string{"> SDLH": "sdlh", "< SDLL": "sdll"},
	})
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	row := tr.Row(testRecord(), stamp)

	assert.Equal(t, "f-1", row["id"])
	assert.Equal(t, "EF-1", row["event_frame_name"])
	assert.Equal(t, "TRINIDAD", row["site"])
	assert.Equal(t, stamp, row["last_update"])

	// Floats parse from strings; N/A lands as NULL.
	assert.Equal(t, 12.5, row["excursion_value"])
	assert.Equal(t, 95.0, row["sdlh"])
	assert.Nil(t, row["sdll"])

	// Name envelopes reduce to the name, from both strings and maps.
	assert.Equal(t, "> SDLH", row["excursion_type"])
	assert.Equal(t, "Unit 3", row["plant"])

	// Prefix columns keep the token before the separator.
	assert.Equal(t, "FIC101", row["tag_name"])

	// Datetime columns parse with the fraction truncated to microseconds.
	ts, ok := row["start_time"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 1, 6, 0, 0, 123456000, time.UTC), ts)
}

func TestBreachedLimit(t *testing.T) {
	tr := New(testSchema(), "TRINIDAD", config.SiteConfig{
		LimitRules: map[string]string{"> SDLH": "sdlh", "< SDLL": "sdll"},
	})

	// The derived limit column copies whichever limit the excursion text names.
	row := tr.Row(testRecord(), time.Now())
	assert.Equal(t, 95.0, row["sdl_limit"])

	// Unmatched direction text yields NULL.
	rec := testRecord()
	rec.Attributes["Excursion type"] = `{"Name": "flatline", "Value": 0}`
	row = tr.Row(rec, time.Now())
	assert.Nil(t, row["sdl_limit"])

	// Missing excursion value yields NULL.
	delete(rec.Attributes, "Excursion type")
	row = tr.Row(rec, time.Now())
	assert.Nil(t, row["sdl_limit"])
}

func TestSiteAliases(t *testing.T) {
	// The site reports its high limit under a short local name.
	tr := New(testSchema(), "CHILE", config.SiteConfig{
		Aliases:    map[string]string{"sdlh": "Hi"},
		LimitRules: map[string]string{"> SDLH": "sdlh"},
	})

	rec := testRecord()
	delete(rec.Attributes, "SDLH")
	rec.Attributes["Hi"] = 88.0

	row := tr.Row(rec, time.Now())
	assert.Equal(t, 88.0, row["sdlh"])
	assert.Equal(t, 88.0, row["sdl_limit"])
}

func TestValuesOrder(t *testing.T) {
	schema := testSchema()
	tr := New(schema, "TRINIDAD", config.SiteConfig{})
	stamp := time.Now()

	vals := tr.Values(testRecord(), stamp)
	require.Len(t, vals, len(schema.Columns))
	assert.Equal(t, "f-1", vals[0])
	assert.Equal(t, "TRINIDAD", vals[len(vals)-2])
	assert.Equal(t, stamp, vals[len(vals)-1])
}

func TestExtractName(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"map envelope", map[string]any{"Name": "High High", "Value": 4.0}, "High High"},
		{"json string", `{"Name": "> SDLH", "Value": 3}`, "> SDLH"},
		{"single quoted string", `{'Name': '> SDLH', 'Value': 3}`, "> SDLH"},
		{"bare name key", `{Name: 'Hi Hi'}`, "Hi Hi"},
		{"plain string", "already plain", "already plain"},
		{"map without name", map[string]any{"Value": 3.0}, map[string]any{"Value": 3.0}},
		{"nil", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractName(tc.in))
		})
	}
}

func TestParseFloat(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"float", 3.5, 3.5},
		{"int", 7, 7.0},
		{"numeric string", " 42.25 ", 42.25},
		{"empty string", "", nil},
		{"garbage", "Bad Input", nil},
		{"nil", nil, nil},
		{"bool", true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseFloat(tc.in))
		})
	}
}

func TestParseDatetime(t *testing.T) {
	want := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"zulu", "2025-01-01T06:00:00Z", want},
		{"no suffix", "2025-01-01T06:00:00", want},
		{"space separated", "2025-01-01 06:00:00", want},
		{"seven digit fraction", "2025-01-01T06:00:00.1234567Z", want.Add(123456 * time.Microsecond)},
		{"passthrough time", want, want},
		{"empty", "", nil},
		{"garbage", "yesterday", nil},
		{"nil", nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseDatetime(tc.in))
		})
	}
}

func TestSplitPrefix(t *testing.T) {
	assert.Equal(t, "FIC101", splitPrefix("FIC101 PV"))
	assert.Equal(t, "FIC101", splitPrefix("FIC101_PV"))
	assert.Equal(t, "FIC101", splitPrefix("FIC101"))
	assert.Equal(t, "", splitPrefix("_leading"))
}
