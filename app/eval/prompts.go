package eval

import (
	"fmt"
	"strings"

	"RAGBench/app/index"
)

const (
	answerStyleInstruction = "Answer in a single word or a short sentence. Do not ask follow-up questions or make suggestions."

	// Long passages are clipped in the prompt to keep the context block from
	// drowning the question.
	contextSnippetLimit = 300
)

// BuildBaselinePrompt renders the unaugmented prompt: the bare question plus
// the concise-answer instruction. Pure and deterministic.
func BuildBaselinePrompt(question string) string {
	return question + "\n\n" + answerStyleInstruction
}

// BuildRAGPrompt renders the context-augmented prompt with retrieved passages
// enumerated in rank order. With no retrieved context it degrades to the
// baseline rendering. Pure and deterministic.
func BuildRAGPrompt(question string, passages []index.ScoredPassage) string {
	if len(passages) == 0 {
		return BuildBaselinePrompt(question)
	}

	var sb strings.Builder
	sb.WriteString("QUESTION:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nCONTEXT:\n")
	for i, p := range passages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Context %d: %s", i+1, clipSnippet(p.Passage.Text))
	}
	sb.WriteString("\n\nUsing the CONTEXT provided, answer the QUESTION. ")
	sb.WriteString("Keep your answer grounded in the facts of the CONTEXT. ")
	sb.WriteString("If the CONTEXT doesn't contain the answer to the QUESTION, say you don't know.\n")
	sb.WriteString(answerStyleInstruction)
	return sb.String()
}

// BuildJudgePrompt renders the semantic equivalence comparison prompt. The
// judge must answer with exactly one of the two verdict tokens.
func BuildJudgePrompt(generated, groundTruth string) string {
	var sb strings.Builder
	sb.WriteString("Compare these two answers for semantic equivalence:\n\n")
	fmt.Fprintf(&sb, "Answer 1: %s\n", generated)
	fmt.Fprintf(&sb, "Answer 2: %s\n\n", groundTruth)
	sb.WriteString(`Are these answers semantically equivalent? Answer only "CORRECT" if they are equivalent or "INCORRECT" if they are not. Do not elaborate.`)
	return sb.String()
}

func clipSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= contextSnippetLimit {
		return s
	}
	return string(runes[:contextSnippetLimit]) + "..."
}
