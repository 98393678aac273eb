// Package sqlite persists event frame records into a SQLite table with a
// typed, configuration-driven schema.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KhavKivar/piwebapi-etl/internal/config"
	"github.com/KhavKivar/piwebapi-etl/internal/logger"
	"github.com/KhavKivar/piwebapi-etl/internal/model"
	"github.com/KhavKivar/piwebapi-etl/internal/transform"
)

// sqlTimeFormat is the SQLite TIMESTAMP layout used for datetime columns.
const sqlTimeFormat = "2006-01-02 15:04:05"

// Open opens (or creates) the SQLite database file with conservative pool
// settings and reliability pragmas.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// SQLite tolerates one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Option configures a Sink.
type Option func(*Sink)

// WithRowWise switches Write from a single transaction to row-at-a-time
// inserts that skip failing rows. Slower, but one bad row no longer sinks
// the batch.
func WithRowWise() Option {
	return func(s *Sink) { s.rowWise = true }
}

// Sink writes transformed records into one site's rows of the configured
// table. The *sql.DB is owned by the caller.
type Sink struct {
	db      *sql.DB
	table   string
	schema  config.SchemaConfig
	tr      *transform.Transformer
	log     *logger.Logger
	rowWise bool
}

// New creates a Sink over an open database handle.
func New(db *sql.DB, table string, schema config.SchemaConfig, tr *transform.Transformer, log *logger.Logger, opts ...Option) *Sink {
	s := &Sink{db: db, table: table, schema: schema, tr: tr, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the destination table, dropping any previous one. Column
// types follow the schema's float/datetime sets; id is the primary key.
func (s *Sink) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", s.table)); err != nil {
		return fmt.Errorf("drop table %s: %w", s.table, err)
	}
	if _, err := s.db.ExecContext(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.log.Infow("table created", "table", s.table, "columns", len(s.schema.Columns))
	return nil
}

func (s *Sink) createTableSQL() string {
	floatSet := toSet(s.schema.FloatColumns)
	dtSet := toSet(s.schema.DatetimeColumns)

	defs := make([]string, 0, len(s.schema.Columns))
	for _, col := range s.schema.Columns {
		switch {
		case col == "id":
			defs = append(defs, `"id" TEXT PRIMARY KEY`)
		case floatSet[col]:
			defs = append(defs, fmt.Sprintf("%q REAL", col))
		case dtSet[col]:
			defs = append(defs, fmt.Sprintf("%q TIMESTAMP", col))
		default:
			defs = append(defs, fmt.Sprintf("%q TEXT", col))
		}
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", s.table, strings.Join(defs, ", "))
}

// Write inserts the batch. Default mode runs one transaction and fails whole;
// row-wise mode inserts individually and logs failing rows.
func (s *Sink) Write(ctx context.Context, records []model.FlatRecord) error {
	if len(records) == 0 {
		return nil
	}

	stamp := time.Now().UTC()
	insertSQL := s.insertSQL()
	started := time.Now()

	var inserted int
	var err error
	if s.rowWise {
		inserted, err = s.insertRowWise(ctx, insertSQL, records, stamp)
	} else {
		inserted, err = s.insertBatch(ctx, insertSQL, records, stamp)
	}
	if err != nil {
		return err
	}

	s.log.Infow("rows inserted", "table", s.table, "rows", inserted,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

func (s *Sink) insertSQL() string {
	quoted := make([]string, len(s.schema.Columns))
	marks := make([]string, len(s.schema.Columns))
	for i, col := range s.schema.Columns {
		quoted[i] = fmt.Sprintf("%q", col)
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
}

func (s *Sink) insertBatch(ctx context.Context, insertSQL string, records []model.FlatRecord, stamp time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, s.args(rec, stamp)...); err != nil {
			return 0, fmt.Errorf("insert frame %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert transaction: %w", err)
	}
	return len(records), nil
}

func (s *Sink) insertRowWise(ctx context.Context, insertSQL string, records []model.FlatRecord, stamp time.Time) (int, error) {
	var inserted int
	for _, rec := range records {
		if _, err := s.db.ExecContext(ctx, insertSQL, s.args(rec, stamp)...); err != nil {
			s.log.Warnw("row insert failed, skipping", "frame", rec.ID, "err", err)
			continue
		}
		inserted++
	}
	return inserted, nil
}

func (s *Sink) args(rec model.FlatRecord, stamp time.Time) []any {
	vals := s.tr.Values(rec, stamp)
	for i, v := range vals {
		if t, ok := v.(time.Time); ok {
			vals[i] = t.Format(sqlTimeFormat)
		}
	}
	return vals
}

// DeleteSite removes every row belonging to one site, ahead of a full
// repopulate.
func (s *Sink) DeleteSite(ctx context.Context, site string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE site = ?", s.table), site)
	if err != nil {
		return fmt.Errorf("delete rows for site %s: %w", site, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.log.Infow("rows deleted", "table", s.table, "site", site, "rows", n)
	}
	return nil
}

// Close is a no-op: the database handle belongs to the caller.
func (s *Sink) Close() error { return nil }

func toSet(cols []string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}
