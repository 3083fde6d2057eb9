// Package db stores per-class scalar time series in DuckDB.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/plat-water/internal/scalar"
)

var ErrUnknownClass = errors.New("unknown class")

// Config holds database configuration. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir string
	DBName  string
}

const schema = `CREATE TABLE IF NOT EXISTS scalar (
	class_id VARCHAR NOT NULL,
	year     INTEGER NOT NULL,
	day      INTEGER NOT NULL,
	average  DOUBLE  NOT NULL
)`

// ScalarStore answers scalar queries from the scalar table.
type ScalarStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the scalar database.
func Open(cfg Config) (*ScalarStore, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "water"
		}
		dsn = filepath.Join(duckdbDir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create scalar table: %w", err)
	}
	return &ScalarStore{db: conn}, nil
}

// Close closes the database connection.
func (s *ScalarStore) Close() error {
	return s.db.Close()
}

// Put appends samples for classID.
func (s *ScalarStore) Put(ctx context.Context, classID string, points []scalar.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scalar (class_id, year, day, average) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, classID, p.Year, p.Day, p.Average); err != nil {
			return fmt.Errorf("insert %s %d-%d: %w", classID, p.Year, p.Day, err)
		}
	}
	return tx.Commit()
}

// ImportCSV loads a CSV file with columns class_id, year, day, average and
// returns the number of rows added.
func (s *ScalarStore) ImportCSV(ctx context.Context, path string) (int64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`INSERT INTO scalar
		SELECT CAST(class_id AS VARCHAR), CAST(year AS INTEGER), CAST(day AS INTEGER), CAST(average AS DOUBLE)
		FROM read_csv_auto('%s', header = true)
		WHERE average IS NOT NULL`, strings.ReplaceAll(path, "'", "''"))
	res, err := s.db.ExecContext(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	return res.RowsAffected()
}

// Record builds the scalar record for classID.
func (s *ScalarStore) Record(ctx context.Context, classID string) (*scalar.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, day, average FROM scalar WHERE class_id = ? ORDER BY year, day`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rec := &scalar.Record{Data: scalar.Series{}}
	for rows.Next() {
		var (
			year, day int
			avg       float64
		)
		if err := rows.Scan(&year, &day, &avg); err != nil {
			return nil, err
		}
		days, ok := rec.Data[year]
		if !ok {
			days = make(map[int]scalar.Sample)
			rec.Data[year] = days
		}
		days[day] = scalar.Sample{Average: avg}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if rec.Len() == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, classID)
	}
	return rec, nil
}

// Classes lists the class ids that have samples.
func (s *ScalarStore) Classes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT class_id FROM scalar ORDER BY class_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Tables lists the tables in the database.
func (s *ScalarStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	return tables, rows.Err()
}
