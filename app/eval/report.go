package eval

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// ModeSummary aggregates grading outcomes for one answer-generation mode.
// Total counts graded answers only; ungraded answers are reported alongside,
// never folded into the denominator.
type ModeSummary struct {
	Mode        Mode
	Total       int
	Correct     int
	Incorrect   int
	Ungraded    int
	AccuracyPct float64
}

// Report is the immutable final summary of one evaluation run.
type Report struct {
	RunID     string
	Attempted int
	Failed    int
	Baseline  ModeSummary
	RAG       ModeSummary

	// AbsoluteDeltaPP is rag accuracy minus baseline accuracy in percentage
	// points. RelativeDeltaPct is undefined when baseline accuracy is zero.
	AbsoluteDeltaPP  float64
	RelativeDeltaPct float64
	RelativeDefined  bool
}

// BuildReport tallies the complete set of grading results for a run.
func BuildReport(runID string, attempted, failed int, gradings []GradingResult, ungraded map[Mode]int) *Report {
	summaries := map[Mode]*ModeSummary{
		ModeBaseline: {Mode: ModeBaseline, Ungraded: ungraded[ModeBaseline]},
		ModeRAG:      {Mode: ModeRAG, Ungraded: ungraded[ModeRAG]},
	}

	for _, g := range gradings {
		s, ok := summaries[g.Mode]
		if !ok {
			continue
		}
		s.Total++
		if g.Verdict == VerdictCorrect {
			s.Correct++
		} else {
			s.Incorrect++
		}
	}

	for _, s := range summaries {
		if s.Total > 0 {
			s.AccuracyPct = 100 * float64(s.Correct) / float64(s.Total)
		}
	}

	report := &Report{
		RunID:     runID,
		Attempted: attempted,
		Failed:    failed,
		Baseline:  *summaries[ModeBaseline],
		RAG:       *summaries[ModeRAG],
	}
	report.AbsoluteDeltaPP = report.RAG.AccuracyPct - report.Baseline.AccuracyPct
	if report.Baseline.AccuracyPct > 0 {
		report.RelativeDeltaPct = 100 * report.AbsoluteDeltaPP / report.Baseline.AccuracyPct
		report.RelativeDefined = true
	}
	return report
}

// Render produces the human-readable run report.
func (r *Report) Render() string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("evaluation run %s (%d questions attempted)", r.RunID, r.Attempted))

	for _, s := range []ModeSummary{r.Baseline, r.RAG} {
		branch := tree.AddBranch(string(s.Mode))
		branch.AddNode(fmt.Sprintf("total graded: %d", s.Total))
		branch.AddNode(fmt.Sprintf("correct: %d", s.Correct))
		branch.AddNode(fmt.Sprintf("incorrect: %d", s.Incorrect))
		branch.AddNode(fmt.Sprintf("ungraded: %d", s.Ungraded))
		branch.AddNode(fmt.Sprintf("accuracy: %.1f%%", s.AccuracyPct))
	}

	tree.AddNode(fmt.Sprintf("failed questions (excluded from both modes): %d", r.Failed))

	comparison := tree.AddBranch("comparison")
	comparison.AddNode(fmt.Sprintf("absolute delta: %+.1f pp", r.AbsoluteDeltaPP))
	if r.RelativeDefined {
		comparison.AddNode(fmt.Sprintf("relative delta: %+.1f%%", r.RelativeDeltaPct))
	} else {
		comparison.AddNode("relative delta: N/A (baseline accuracy is 0)")
	}

	return tree.String()
}
