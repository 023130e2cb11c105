package storage

import (
	"context"
	"time"
)

// AnswerRow is one persisted answer record: one per (question, mode) pair.
type AnswerRow struct {
	RunID      string
	QuestionID string
	Mode       string
	Question   string
	Generated  string
	CreatedAt  time.Time
}

// GradingRow is one persisted grading verdict.
type GradingRow struct {
	RunID      string
	QuestionID string
	Mode       string
	Verdict    string
	CreatedAt  time.Time
}

type Interface interface {
	CreateRun(ctx context.Context, runID string, startedAt time.Time) error
	SaveAnswer(ctx context.Context, row AnswerRow) error
	SaveGrading(ctx context.Context, row GradingRow) error
	FinishRun(ctx context.Context, runID, report string, finishedAt time.Time) error
	Close() error
}
