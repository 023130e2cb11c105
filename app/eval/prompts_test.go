package eval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"RAGBench/app/index"
)

var parisPassages = []index.ScoredPassage{
	{Passage: index.Passage{ID: "1", Text: "Paris is the capital of France.", SourceTitle: "Paris"}, Score: 0.91},
	{Passage: index.Passage{ID: "0", Text: "Abraham Lincoln was the 16th president.", SourceTitle: "Lincoln"}, Score: 0.12},
}

func TestBuildBaselinePromptIsDeterministic(t *testing.T) {
	q := "What is the capital of France?"
	first := BuildBaselinePrompt(q)
	second := BuildBaselinePrompt(q)
	require.Equal(t, first, second)
	require.True(t, strings.HasPrefix(first, q))
	require.Contains(t, first, "Answer in a single word or a short sentence.")
}

func TestBuildRAGPromptIsDeterministic(t *testing.T) {
	q := "What is the capital of France?"
	first := BuildRAGPrompt(q, parisPassages)
	second := BuildRAGPrompt(q, parisPassages)
	require.Equal(t, first, second)
}

func TestBuildRAGPromptEnumeratesContextInRankOrder(t *testing.T) {
	prompt := BuildRAGPrompt("What is the capital of France?", parisPassages)
	require.Contains(t, prompt, "QUESTION:\nWhat is the capital of France?")
	require.Contains(t, prompt, "Context 1: Paris is the capital of France.")
	require.Contains(t, prompt, "Context 2: Abraham Lincoln was the 16th president.")
	require.Less(t,
		strings.Index(prompt, "Context 1:"),
		strings.Index(prompt, "Context 2:"),
	)
	require.Contains(t, prompt, "answer the QUESTION")
	require.Contains(t, prompt, "say you don't know")
}

func TestBuildRAGPromptClipsLongPassages(t *testing.T) {
	long := strings.Repeat("x", 500)
	prompt := BuildRAGPrompt("q", []index.ScoredPassage{
		{Passage: index.Passage{Text: long}, Score: 1},
	})
	require.Contains(t, prompt, strings.Repeat("x", 300)+"...")
	require.NotContains(t, prompt, strings.Repeat("x", 301))
}

func TestBuildRAGPromptWithoutContextFallsBackToBaseline(t *testing.T) {
	q := "What is the capital of France?"
	require.Equal(t, BuildBaselinePrompt(q), BuildRAGPrompt(q, nil))
}

func TestBuildJudgePromptIsDeterministic(t *testing.T) {
	first := BuildJudgePrompt("Paris", "Paris, France")
	second := BuildJudgePrompt("Paris", "Paris, France")
	require.Equal(t, first, second)
	require.Contains(t, first, "Answer 1: Paris\n")
	require.Contains(t, first, "Answer 2: Paris, France\n")
	require.Contains(t, first, `"CORRECT"`)
	require.Contains(t, first, `"INCORRECT"`)
}
