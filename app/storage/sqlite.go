package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStorage struct {
	db *sql.DB
}

var _ Interface = &SQLiteStorage{}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "ragbench.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db at %s: %w", dbPath, err)
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            started_at TIMESTAMP NOT NULL,
            finished_at TIMESTAMP NULL,
            report TEXT NULL
        );
        CREATE TABLE IF NOT EXISTS answers (
            run_id TEXT NOT NULL,
            question_id TEXT NOT NULL,
            mode TEXT NOT NULL,
            question TEXT NOT NULL,
            generated TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL,
            PRIMARY KEY (run_id, question_id, mode)
        );
        CREATE TABLE IF NOT EXISTS gradings (
            run_id TEXT NOT NULL,
            question_id TEXT NOT NULL,
            mode TEXT NOT NULL,
            verdict TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL,
            PRIMARY KEY (run_id, question_id, mode)
        );
        CREATE INDEX IF NOT EXISTS idx_answers_run ON answers (run_id);
        CREATE INDEX IF NOT EXISTS idx_gradings_run ON gradings (run_id);
    `)
	if err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) CreateRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, datetime(?))`,
		runID, startedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("create run %s: %w", runID, err)
	}
	return nil
}

func (s *SQLiteStorage) SaveAnswer(ctx context.Context, row AnswerRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answers (run_id, question_id, mode, question, generated, created_at)
		 VALUES (?, ?, ?, ?, ?, datetime(?))`,
		row.RunID, row.QuestionID, row.Mode, row.Question, row.Generated,
		row.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save answer %s/%s: %w", row.QuestionID, row.Mode, err)
	}
	return nil
}

func (s *SQLiteStorage) SaveGrading(ctx context.Context, row GradingRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gradings (run_id, question_id, mode, verdict, created_at)
		 VALUES (?, ?, ?, ?, datetime(?))`,
		row.RunID, row.QuestionID, row.Mode, row.Verdict,
		row.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save grading %s/%s: %w", row.QuestionID, row.Mode, err)
	}
	return nil
}

func (s *SQLiteStorage) FinishRun(ctx context.Context, runID, report string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = datetime(?), report = ? WHERE id = ?`,
		finishedAt.UTC().Format(timeLayout), report, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

const timeLayout = "2006-01-02 15:04:05"
