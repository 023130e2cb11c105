package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	now := time.Now()
	require.NoError(t, s.CreateRun(ctx, "run-1", now))

	require.NoError(t, s.SaveAnswer(ctx, AnswerRow{
		RunID: "run-1", QuestionID: "0", Mode: "baseline",
		Question: "What is the capital of France?", Generated: "Paris", CreatedAt: now,
	}))
	require.NoError(t, s.SaveAnswer(ctx, AnswerRow{
		RunID: "run-1", QuestionID: "0", Mode: "rag",
		Question: "What is the capital of France?", Generated: "Paris, France", CreatedAt: now,
	}))
	require.NoError(t, s.SaveGrading(ctx, GradingRow{
		RunID: "run-1", QuestionID: "0", Mode: "baseline", Verdict: "correct", CreatedAt: now,
	}))
	require.NoError(t, s.FinishRun(ctx, "run-1", "report body", now))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE run_id = ?`, "run-1").Scan(&count))
	require.Equal(t, 2, count)

	var report string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT report FROM runs WHERE id = ?`, "run-1").Scan(&report))
	require.Equal(t, "report body", report)
}

func TestSQLiteStorageAnswersAreNeverOverwritten(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateRun(ctx, "run-1", time.Now()))
	row := AnswerRow{RunID: "run-1", QuestionID: "0", Mode: "baseline", Question: "q", Generated: "a", CreatedAt: time.Now()}
	require.NoError(t, s.SaveAnswer(ctx, row))
	require.Error(t, s.SaveAnswer(ctx, row))
}
