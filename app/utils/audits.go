package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLogger appends every model exchange to a plain-text transcript file so
// a finished run can be replayed and inspected offline.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

func NewAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &AuditLogger{file: file}, nil
}

// LogExchange records one prompt/response pair. Nil receivers are allowed so
// callers never need to guard the disabled case.
func (a *AuditLogger) LogExchange(kind, prompt, response string) {
	if a == nil {
		return
	}
	entry := fmt.Sprintf(
		"Timestamp: %s\n--- %s prompt:\n%s\n--- Response:\n%s\n\n",
		time.Now().Format(time.RFC3339), kind, prompt, response,
	)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.file.WriteString(entry); err != nil {
		log.Printf("⚠️ Could not write audit log entry: %v", err)
	}
}

func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	return a.file.Close()
}
