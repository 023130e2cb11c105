package eval

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"RAGBench/app/dataset"
	"RAGBench/app/index"
	"RAGBench/app/models"
	"RAGBench/app/storage"
)

const progressEvery = 10

type Options struct {
	TopK     int
	Workers  int
	FailFast bool
}

// Runner owns one evaluation run: for every question it retrieves context,
// generates a baseline and a RAG answer, grades both against the ground
// truth, and accumulates the results for the final report.
type Runner struct {
	model    models.Interface
	searcher index.Searcher
	store    storage.Interface
	opts     Options
	runID    string
}

func NewRunner(model models.Interface, searcher index.Searcher, store storage.Interface, opts Options) *Runner {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{
		model:    model,
		searcher: searcher,
		store:    store,
		opts:     opts,
		runID:    uuid.New().String(),
	}
}

func (r *Runner) RunID() string { return r.runID }

// runState is the sole mutation point for the growing result collections.
// Workers on disjoint questions only touch it through the mutex.
type runState struct {
	mu       sync.Mutex
	total    int
	done     int
	failed   int
	answers  []AnswerRecord
	gradings []GradingResult
	ungraded map[Mode]int
}

func newRunState(total int) *runState {
	return &runState{
		total:    total,
		ungraded: map[Mode]int{ModeBaseline: 0, ModeRAG: 0},
	}
}

func (s *runState) recordDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done++
	if s.done%progressEvery == 0 || s.done == s.total {
		log.Printf("🤖 Processed %d/%d questions...", s.done, s.total)
	}
}

func (s *runState) recordFailed() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
	s.recordDone()
}

func (s *runState) recordAnswers(records ...AnswerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, records...)
}

func (s *runState) recordGrading(g GradingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gradings = append(s.gradings, g)
}

func (s *runState) recordUngraded(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ungraded[mode]++
}

// Run processes all questions and returns the final report. A cancellation
// stops issuing new work; questions already in flight finish or time out and
// no partial grading is recorded for them.
func (r *Runner) Run(ctx context.Context, questions []dataset.Question) (*Report, error) {
	state := newRunState(len(questions))

	if r.store != nil {
		if err := r.store.CreateRun(ctx, r.runID, time.Now()); err != nil {
			log.Printf("⚠️ Could not persist run %s: %v", r.runID, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan dataset.Question)
	var wg sync.WaitGroup
	var failMu sync.Mutex
	var failFastErr error

	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range queue {
				if runCtx.Err() != nil {
					continue
				}
				err := r.processQuestion(runCtx, q, state)
				switch {
				case err == nil:
					state.recordDone()
				case runCtx.Err() != nil:
					// Cancelled mid-flight: not a question failure, and no
					// partial result is recorded for it.
				default:
					log.Printf("⚠️ Question %s failed, excluded from both modes: %v", q.ID, err)
					state.recordFailed()
					if r.opts.FailFast {
						failMu.Lock()
						if failFastErr == nil {
							failFastErr = fmt.Errorf("question %s: %w", q.ID, err)
						}
						failMu.Unlock()
						cancel()
					}
				}
			}
		}()
	}

	for _, q := range questions {
		queue <- q
	}
	close(queue)
	wg.Wait()

	if failFastErr != nil {
		return nil, failFastErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := BuildReport(r.runID, state.done, state.failed, state.gradings, state.ungraded)

	if r.store != nil {
		if err := r.store.FinishRun(ctx, r.runID, report.Render(), time.Now()); err != nil {
			log.Printf("⚠️ Could not finish run %s: %v", r.runID, err)
		}
	}

	return report, nil
}

// processQuestion runs the full pipeline for one question. A returned error
// means the question is excluded from both modes; answers are only recorded
// once both generation passes succeeded.
func (r *Runner) processQuestion(ctx context.Context, q dataset.Question, state *runState) error {
	retrieved, err := r.searcher.Search(ctx, q.Text, r.opts.TopK)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	baselineAnswer, err := r.model.Complete(ctx, BuildBaselinePrompt(q.Text))
	if err != nil {
		return fmt.Errorf("generate baseline answer: %w", err)
	}
	ragAnswer, err := r.model.Complete(ctx, BuildRAGPrompt(q.Text, retrieved))
	if err != nil {
		return fmt.Errorf("generate rag answer: %w", err)
	}

	answers := map[Mode]string{
		ModeBaseline: baselineAnswer,
		ModeRAG:      ragAnswer,
	}
	records := make([]AnswerRecord, 0, len(Modes))
	for _, mode := range Modes {
		records = append(records, AnswerRecord{QuestionID: q.ID, Mode: mode, Generated: answers[mode]})
	}
	state.recordAnswers(records...)
	r.persistAnswers(ctx, q, records)

	for _, mode := range Modes {
		verdict, err := Grade(ctx, r.model, answers[mode], q.GroundTruth)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("⚠️ Question %s (%s) ungraded: %v", q.ID, mode, err)
			state.recordUngraded(mode)
			continue
		}
		grading := GradingResult{QuestionID: q.ID, Mode: mode, Verdict: verdict}
		state.recordGrading(grading)
		r.persistGrading(ctx, grading)
	}

	return nil
}

func (r *Runner) persistAnswers(ctx context.Context, q dataset.Question, records []AnswerRecord) {
	if r.store == nil {
		return
	}
	for _, rec := range records {
		err := r.store.SaveAnswer(ctx, storage.AnswerRow{
			RunID:      r.runID,
			QuestionID: rec.QuestionID,
			Mode:       string(rec.Mode),
			Question:   q.Text,
			Generated:  rec.Generated,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			log.Printf("⚠️ Could not persist answer %s/%s: %v", rec.QuestionID, rec.Mode, err)
		}
	}
}

func (r *Runner) persistGrading(ctx context.Context, g GradingResult) {
	if r.store == nil {
		return
	}
	err := r.store.SaveGrading(ctx, storage.GradingRow{
		RunID:      r.runID,
		QuestionID: g.QuestionID,
		Mode:       string(g.Mode),
		Verdict:    string(g.Verdict),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		log.Printf("⚠️ Could not persist grading %s/%s: %v", g.QuestionID, g.Mode, err)
	}
}
