package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Question is one evaluation record: a factual question and its ground-truth
// answer. Read-only after loading.
type Question struct {
	ID          string
	Text        string
	GroundTruth string
}

type corpusRecord struct {
	ID      string `json:"id"`
	Passage string `json:"passage"`
	Title   string `json:"title"`
}

type qaRecord struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CorpusEntry is a raw corpus line before it becomes an index passage.
type CorpusEntry struct {
	ID          string
	Text        string
	SourceTitle string
}

// LoadCorpus reads a JSONL corpus of passages. Passage text is sanitized of
// markup before it ever reaches the index.
func LoadCorpus(path string) ([]CorpusEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer file.Close()

	var entries []CorpusEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec corpusRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", line, err)
		}
		if rec.Passage == "" {
			continue
		}
		id := rec.ID
		if id == "" {
			id = strconv.Itoa(line - 1)
		}
		entries = append(entries, CorpusEntry{
			ID:          id,
			Text:        StripHTML(rec.Passage),
			SourceTitle: rec.Title,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("corpus %s contains no passages", path)
	}
	return entries, nil
}

// LoadQuestions reads a JSONL evaluation set in dataset order. A positive
// limit truncates to the first N records.
func LoadQuestions(path string, limit int) ([]Question, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions: %w", err)
	}
	defer file.Close()

	var questions []Question
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec qaRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("questions line %d: %w", line, err)
		}
		if rec.Question == "" || rec.Answer == "" {
			continue
		}
		questions = append(questions, Question{
			ID:          strconv.Itoa(len(questions)),
			Text:        rec.Question,
			GroundTruth: rec.Answer,
		})
		if limit > 0 && len(questions) == limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("evaluation set %s contains no questions", path)
	}
	return questions, nil
}
