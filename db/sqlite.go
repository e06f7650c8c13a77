package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"fuzzyscore/config"
)

// ErrNotFound is returned when a result id is unknown.
var ErrNotFound = errors.New("result not found")

// Result is one scored batch.
type Result struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Output    string    `json:"output"`
	Count     int       `json:"count"`
	Sum       float64   `json:"sum"`
	Average   float64   `json:"average"`
	Score     int       `json:"score"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is one scored row of a batch.
type Record struct {
	Index  int                `json:"index"`
	Inputs map[string]float64 `json:"inputs"`
	Output float64            `json:"output"`
}

// Store persists batch results in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"
	if cfg.EnableWAL {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(1)

	query := `
    CREATE TABLE IF NOT EXISTS batch_results (
        id TEXT PRIMARY KEY,
        source TEXT NOT NULL DEFAULT '',
        output_variable TEXT NOT NULL,
        record_count INTEGER NOT NULL,
        total REAL NOT NULL,
        average REAL NOT NULL,
        score INTEGER NOT NULL,
        label TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_batch_results_created ON batch_results(created_at);
    CREATE TABLE IF NOT EXISTS batch_records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        result_id TEXT NOT NULL REFERENCES batch_results(id) ON DELETE CASCADE,
        row_index INTEGER NOT NULL,
        inputs TEXT NOT NULL,
        output REAL NOT NULL,
        UNIQUE(result_id, row_index)
    );
    `
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult stores a result and its records in one transaction.
func (s *Store) SaveResult(ctx context.Context, res Result, records []Record) error {
	if res.ID == "" {
		return errors.New("result id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO batch_results (id, source, output_variable, record_count, total, average, score, label, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Source, res.Output, res.Count, res.Sum, res.Average, res.Score, res.Label, res.CreatedAt.UTC())
	if err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO batch_records (result_id, row_index, inputs, output)
        VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		inputs, err := json.Marshal(rec.Inputs)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, res.ID, rec.Index, string(inputs), rec.Output); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

const resultColumns = `id, source, output_variable, record_count, total, average, score, label, created_at`

func scanResult(row interface{ Scan(...interface{}) error }) (Result, error) {
	var r Result
	err := row.Scan(&r.ID, &r.Source, &r.Output, &r.Count, &r.Sum, &r.Average, &r.Score, &r.Label, &r.CreatedAt)
	return r, err
}

// GetResult loads one result by id.
func (s *Store) GetResult(ctx context.Context, id string) (*Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM batch_results WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListResults returns the most recent results first.
func (s *Store) ListResults(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM batch_results ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Records returns the scored rows of a result in row order.
func (s *Store) Records(ctx context.Context, id string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT row_index, inputs, output
        FROM batch_records
        WHERE result_id = ?
        ORDER BY row_index`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var inputs string
		if err := rows.Scan(&rec.Index, &inputs, &rec.Output); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(inputs), &rec.Inputs); err != nil {
			return nil, fmt.Errorf("decode inputs of row %d: %w", rec.Index, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
