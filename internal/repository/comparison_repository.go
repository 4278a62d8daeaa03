// Package repository provides data access implementations
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/abelzeko/kommunekamp/internal/entities"
)

// ComparisonRepository persists the outcome of finished comparisons
type ComparisonRepository interface {
	SaveComparison(ctx context.Context, rec *entities.ComparisonRecord) error
	RecentComparisons(ctx context.Context, limit int) ([]entities.ComparisonRecord, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// SQLiteComparisonRepository implements ComparisonRepository using SQLite
type SQLiteComparisonRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteComparisonRepository creates and initializes a new SQLite repository
func NewSQLiteComparisonRepository(dbPath string) (*SQLiteComparisonRepository, error) {
	if dbPath == "" {
		dbDir := "data"
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dbPath = filepath.Join(dbDir, "comparisons.db")
	} else if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Info().Str("path", dbPath).Msg("Opening comparison database")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS comparisons (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		komm1 TEXT NOT NULL,
		komm1_name TEXT,
		komm2 TEXT NOT NULL,
		komm2_name TEXT,
		score1 REAL NOT NULL,
		score2 REAL NOT NULL,
		winner TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comparisons_created_at ON comparisons(created_at);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteComparisonRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLiteComparisonRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveComparison appends a comparison outcome and fills in its ID
func (r *SQLiteComparisonRepository) SaveComparison(ctx context.Context, rec *entities.ComparisonRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO comparisons(komm1, komm1_name, komm2, komm2_name, score1, score2, winner, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Komm1, rec.Komm1Name, rec.Komm2, rec.Komm2Name, rec.Score1, rec.Score2, rec.Winner, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comparison %s vs %s: %w", rec.Komm1, rec.Komm2, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read comparison id: %w", err)
	}
	rec.ID = id
	return nil
}

// RecentComparisons returns the newest comparisons first
func (r *SQLiteComparisonRepository) RecentComparisons(ctx context.Context, limit int) ([]entities.ComparisonRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, komm1, komm1_name, komm2, komm2_name, score1, score2, winner, created_at
		FROM comparisons
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var result []entities.ComparisonRecord
	for rows.Next() {
		var rec entities.ComparisonRecord
		var name1, name2, winner sql.NullString
		if err := rows.Scan(
			&rec.ID,
			&rec.Komm1,
			&name1,
			&rec.Komm2,
			&name2,
			&rec.Score1,
			&rec.Score2,
			&winner,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.Komm1Name = name1.String
		rec.Komm2Name = name2.String
		rec.Winner = winner.String
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// PruneBefore deletes comparisons older than cutoff and reports how many were removed
func (r *SQLiteComparisonRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM comparisons WHERE created_at < ?", cutoff.UTC().Truncate(time.Second))
	if err != nil {
		return 0, fmt.Errorf("failed to prune comparisons: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned comparisons: %w", err)
	}
	return n, nil
}

// NoopComparisonRepository discards everything; used when no history database is configured
type NoopComparisonRepository struct{}

func (NoopComparisonRepository) SaveComparison(context.Context, *entities.ComparisonRecord) error {
	return nil
}

func (NoopComparisonRepository) RecentComparisons(context.Context, int) ([]entities.ComparisonRecord, error) {
	return nil, nil
}

func (NoopComparisonRepository) PruneBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (NoopComparisonRepository) Close() error { return nil }
