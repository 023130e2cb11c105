package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLoggerAppendsExchanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "llm.log")
	audit, err := NewAuditLogger(path)
	require.NoError(t, err)

	audit.LogExchange("completion", "What is water?", "H2O")
	audit.LogExchange("judge", "Compare answers", "CORRECT")
	require.NoError(t, audit.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "completion prompt:\nWhat is water?")
	require.Contains(t, content, "--- Response:\nH2O")
	require.Contains(t, content, "judge prompt:\nCompare answers")
}

func TestAuditLoggerNilReceiverIsNoOp(t *testing.T) {
	var audit *AuditLogger
	audit.LogExchange("completion", "prompt", "response")
	require.NoError(t, audit.Close())
}
