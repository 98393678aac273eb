// Package transform shapes the engine's flat records into typed sink rows:
// configured column order, per-site attribute aliases, float/datetime
// parsing, and the derived breached-limit column.
package transform

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
)

// Transformer maps FlatRecord fields onto one site's sink columns.
type Transformer struct {
	schema    config.SchemaConfig
	site      string
	aliases   map[string]string
	limits    map[string]string
	floatCols map[string]bool
	dtCols    map[string]bool
	nameCols  map[string]bool
	prefCols  map[string]bool
}

// New builds a Transformer for one site.
func New(schema config.SchemaConfig, siteName string, site config.SiteConfig) *Transformer {
	return &Transformer{
		schema:    schema,
		site:      siteName,
		aliases:   site.Aliases,
		limits:    site.LimitRules,
		floatCols: toSet(schema.FloatColumns),
		dtCols:    toSet(schema.DatetimeColumns),
		nameCols:  toSet(schema.NameColumns),
		prefCols:  toSet(schema.PrefixColumns),
	}
}

// Columns returns the configured sink column order.
func (t *Transformer) Columns() []string { return t.schema.Columns }

// Row converts one record into a column-to-typed-value map. stamp fills the
// last_update column.
func (t *Transformer) Row(rec model.FlatRecord, stamp time.Time) map[string]any {
	fields := rec.Fields()
	row := make(map[string]any, len(t.schema.Columns))

	for _, col := range t.schema.Columns {
		switch col {
		case "site":
			row[col] = t.site
		case "last_update":
			row[col] = stamp
		case t.schema.LimitColumn:
			// Filled after the mapped columns below.
		default:
			row[col] = t.value(col, fields[t.sourceField(col)])
		}
	}

	if t.schema.LimitColumn != "" {
		row[t.schema.LimitColumn] = t.breachedLimit(row)
	}
	return row
}

// Values returns the row's values in the configured column order.
func (t *Transformer) Values(rec model.FlatRecord, stamp time.Time) []any {
	row := t.Row(rec, stamp)
	vals := make([]any, len(t.schema.Columns))
	for i, col := range t.schema.Columns {
		vals[i] = row[col]
	}
	return vals
}

// sourceField resolves which record field feeds a column. Sites may alias a
// column to their local attribute name.
func (t *Transformer) sourceField(col string) string {
	if alias, ok := t.aliases[col]; ok {
		return alias
	}
	return t.schema.ColumnMap[col]
}

// breachedLimit picks the limit value matching the excursion direction text,
// e.g. "> SDLH" selects the row's sdlh column.
func (t *Transformer) breachedLimit(row map[string]any) any {
	exc, _ := row[t.schema.ExcursionColumn].(string)
	if exc == "" {
		return nil
	}
	if limitCol, ok := t.limits[exc]; ok {
		return row[limitCol]
	}
	return nil
}

func (t *Transformer) value(col string, v any) any {
	if s, ok := v.(string); ok && strings.EqualFold(strings.TrimSpace(s), "N/A") {
		return nil
	}
	switch {
	case t.nameCols[col]:
		return extractName(v)
	case t.floatCols[col]:
		return parseFloat(v)
	case t.dtCols[col]:
		return parseDatetime(v)
	case t.prefCols[col]:
		if s, ok := v.(string); ok {
			return splitPrefix(s)
		}
	}
	return v
}

func toSet(cols []string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

var nameEnvelopeRE = regexp.MustCompile(`\{.*?"?Name"?\s*:\s*['"](.*?)['"]`)

// extractName reduces a {"Name": ...} envelope (as a JSON string or a map)
// to its name. Anything else passes through untouched.
func extractName(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if name, ok := val["Name"]; ok {
			return name
		}
	case string:
		if m := nameEnvelopeRE.FindStringSubmatch(val); m != nil {
			return m[1]
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.ReplaceAll(val, "'", `"`)), &obj); err == nil {
			if name, ok := obj["Name"]; ok {
				return name
			}
		}
	}
	return v
}

func parseFloat(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}

// parseDatetime parses the remote timestamp shapes: optional trailing Z,
// fractional seconds truncated to microseconds.
func parseDatetime(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(val), "Z")
		if s == "" {
			return nil
		}
		if dot := strings.IndexByte(s, '.'); dot >= 0 {
			frac := make([]rune, 0, 6)
			for _, r := range s[dot+1:] {
				if r < '0' || r > '9' {
					break
				}
				frac = append(frac, r)
				if len(frac) == 6 {
					break
				}
			}
			s = s[:dot] + "." + string(frac)
		}
		for _, layout := range []string{"2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts
			}
		}
		return nil
	default:
		return nil
	}
}

// splitPrefix keeps the token before the first space or underscore:
// "FIC101 PV" and "FIC101_PV" both become "FIC101".
func splitPrefix(s string) string {
	if i := strings.IndexAny(s, " _"); i >= 0 {
		return s[:i]
	}
	return s
}
