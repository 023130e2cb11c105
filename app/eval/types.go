package eval

// Mode distinguishes the two answer-generation passes.
type Mode string

const (
	ModeBaseline Mode = "baseline"
	ModeRAG      Mode = "rag"
)

// Modes in reporting order.
var Modes = []Mode{ModeBaseline, ModeRAG}

// Verdict is the binary outcome of semantic equivalence grading.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
)

// AnswerRecord captures one generated answer. Created once per (question,
// mode) pair and never mutated afterwards.
type AnswerRecord struct {
	QuestionID string
	Mode       Mode
	Generated  string
}

// GradingResult is the judged outcome for one answer record.
type GradingResult struct {
	QuestionID string
	Mode       Mode
	Verdict    Verdict
}
