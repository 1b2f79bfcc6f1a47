package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"simbench/logging"
	"simbench/types"
)

// MemoryDSN is a private in-memory database that disappears with the process
const MemoryDSN = ":memory:"

// InitDatabase opens the session database and creates its tables
func InitDatabase(dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS image_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		condition TEXT NOT NULL,
		model TEXT NOT NULL,
		trial TEXT NOT NULL,
		dir TEXT NOT NULL,
		filename TEXT NOT NULL,
		position INTEGER NOT NULL,
		similarity REAL NOT NULL,
		is_reference INTEGER NOT NULL DEFAULT 0,
		UNIQUE(dir, filename)
	);
	CREATE TABLE IF NOT EXISTS directory_means (
		dir TEXT PRIMARY KEY,
		condition TEXT NOT NULL,
		model TEXT NOT NULL,
		trial TEXT NOT NULL,
		reference TEXT NOT NULL,
		compared INTEGER NOT NULL,
		mean REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS model_results (
		condition TEXT NOT NULL,
		model TEXT NOT NULL,
		position INTEGER NOT NULL,
		mean_t1 REAL NOT NULL,
		mean_t2 REAL NOT NULL,
		UNIQUE(condition, model)
	);
	CREATE INDEX IF NOT EXISTS idx_scores_dir ON image_scores(dir);`

	if _, err = db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, err
	}

	logging.DebugLog("session database ready (%s)", dsn)
	return db, nil
}

// RunKey locates one aggregated directory inside the experiment
type RunKey struct {
	Condition string
	Model     string
	Trial     string
}

// Store records the scores of one session
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialised session database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveDirectory stores every image score of a directory and its mean
func (s *Store) SaveDirectory(ctx context.Context, key RunKey, summary types.DirectorySummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cannot begin transaction for %s: %w", summary.Dir, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO image_scores (
			condition, model, trial, dir, filename, position, similarity, is_reference
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %w", summary.Dir, err)
	}
	defer stmt.Close()

	for i, score := range summary.Scores {
		if _, err := stmt.ExecContext(ctx,
			key.Condition, key.Model, key.Trial, summary.Dir,
			score.Filename, i, score.Similarity, score.Reference,
		); err != nil {
			return fmt.Errorf("cannot insert score for %s: %w", score.Filename, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO directory_means (
			dir, condition, model, trial, reference, compared, mean
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.Dir, key.Condition, key.Model, key.Trial,
		summary.Reference, summary.Compared(), summary.Mean,
	); err != nil {
		return fmt.Errorf("cannot insert mean for %s: %w", summary.Dir, err)
	}

	return tx.Commit()
}

// SaveResult stores the means of one model under a condition. position keeps
// the configured model order.
func (s *Store) SaveResult(ctx context.Context, condition string, position int, result types.ModelResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO model_results (condition, model, position, mean_t1, mean_t2)
		VALUES (?, ?, ?, ?, ?)`,
		condition, result.Model, position, result.MeanT1, result.MeanT2,
	)
	if err != nil {
		return fmt.Errorf("cannot insert result for %s/%s: %w", condition, result.Model, err)
	}
	return nil
}

// ConditionResults returns the model results of a condition in model order
func (s *Store) ConditionResults(ctx context.Context, condition string) ([]types.ModelResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, mean_t1, mean_t2 FROM model_results
		WHERE condition = ? ORDER BY position`, condition)
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	defer rows.Close()

	var results []types.ModelResult
	for rows.Next() {
		var r types.ModelResult
		if err := rows.Scan(&r.Model, &r.MeanT1, &r.MeanT2); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SessionStats summarises what a session computed
type SessionStats struct {
	Directories int
	Images      int
	Compared    int
	Results     int
}

// GetSessionStats retrieves counts across the whole session
func (s *Store) GetSessionStats(ctx context.Context) (*SessionStats, error) {
	var stats SessionStats

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(compared), 0) FROM directory_means").
		Scan(&stats.Directories, &stats.Compared)
	if err != nil {
		return nil, fmt.Errorf("failed to count directories: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM image_scores").Scan(&stats.Images); err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM model_results").Scan(&stats.Results); err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}

	return &stats, nil
}
