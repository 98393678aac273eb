// Package csvfile exports event frame records as a flat CSV workbook.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
	"github.com/KhavKivar/piwebapi-etl/internal/transform"
)

// DefaultFilename builds the conventional export name for a site.
func DefaultFilename(site string, now time.Time) string {
	return fmt.Sprintf("eventframes_%s_%s.csv",
		strings.ToLower(strings.ReplaceAll(site, " ", "_")),
		now.Format("20060102_150405"))
}

// Sink writes transformed records to a CSV file: one header row from the
// configured columns, one row per record.
type Sink struct {
	mu   sync.Mutex
	f    *os.File
	w    *csv.Writer
	tr   *transform.Transformer
	path string
}

// New creates (or truncates) the CSV file at path.
func New(path string, tr *transform.Transformer) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv output: create %s: %w", path, err)
	}
	return &Sink{f: f, w: csv.NewWriter(f), tr: tr, path: path}, nil
}

// Path returns the destination file path.
func (s *Sink) Path() string { return s.path }

// Init writes the header row.
func (s *Sink) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Write(s.tr.Columns()); err != nil {
		return fmt.Errorf("csv output: header: %w", err)
	}
	return nil
}

// Write appends one row per record.
func (s *Sink) Write(_ context.Context, records []model.FlatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := time.Now().UTC()
	row := make([]string, len(s.tr.Columns()))
	for _, rec := range records {
		for i, v := range s.tr.Values(rec, stamp) {
			row[i] = cell(v)
		}
		if err := s.w.Write(row); err != nil {
			return fmt.Errorf("csv output: write frame %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Close flushes buffered rows and closes the file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return fmt.Errorf("csv output: flush: %w", err)
	}
	return s.f.Close()
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
