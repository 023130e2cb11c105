package eval

import (
	"context"
	"errors"
	"strings"

	"RAGBench/app/models"
)

// ErrUngradable means the judge response did not unambiguously contain one of
// the two verdict tokens. Such answers are counted as ungraded; defaulting
// them to either verdict would bias the accuracy statistic.
var ErrUngradable = errors.New("judge response contained no unambiguous verdict")

// Grade asks the generative model whether a generated answer is semantically
// equivalent to the ground truth and parses the binary verdict.
func Grade(ctx context.Context, model models.Interface, generated, groundTruth string) (Verdict, error) {
	response, err := model.Complete(ctx, BuildJudgePrompt(generated, groundTruth))
	if err != nil {
		return "", err
	}
	return ParseVerdict(response)
}

// ParseVerdict extracts the verdict token from the judge's raw response,
// case-insensitively and ignoring surrounding whitespace. "CORRECT" only
// counts when "INCORRECT" is absent, since the latter contains the former.
func ParseVerdict(response string) (Verdict, error) {
	result := strings.ToUpper(strings.TrimSpace(response))
	switch {
	case strings.Contains(result, "INCORRECT"):
		return VerdictIncorrect, nil
	case strings.Contains(result, "CORRECT"):
		return VerdictCorrect, nil
	default:
		return "", ErrUngradable
	}
}
