package batch

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cap-dcis-prompt-server/internal/domain"
	"github.com/cap-dcis-prompt-server/internal/service"
)

// Assembler is the part of the prompt assembler the runner needs
type Assembler interface {
	Assemble(ctx context.Context, req service.AssembleRequest) (*service.AssembleResult, error)
}

// Result is the outcome of one case
type Result struct {
	ID         string                  `json:"id"`
	Source     string                  `json:"source"`
	Status     string                  `json:"status"`
	Result     *service.AssembleResult `json:"result,omitempty"`
	Violations []domain.Violation      `json:"violations,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// Summary counts results by outcome
type Summary struct {
	Total     int `json:"total"`
	Assembled int `json:"assembled"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
}

// OK reports whether every case assembled
func (s Summary) OK() bool { return s.Assembled == s.Total }

// Runner assembles many cases with bounded concurrency
type Runner struct {
	assembler       Assembler
	concurrency     int
	includeEnvelope bool
	logger          *logrus.Logger
}

// NewRunner creates a runner processing at most concurrency cases at once
func NewRunner(assembler Assembler, concurrency int, includeEnvelope bool, logger *logrus.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		assembler:       assembler,
		concurrency:     concurrency,
		includeEnvelope: includeEnvelope,
		logger:          logger,
	}
}

// Run assembles every case. A failing case never affects the others and the
// results are returned in input order.
func (r *Runner) Run(ctx context.Context, cases []Case) ([]Result, Summary) {
	start := time.Now()
	results := make([]Result, len(cases))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)

	for i, c := range cases {
		eg.Go(func() error {
			results[i] = r.runOne(egCtx, c)
			return nil
		})
	}
	_ = eg.Wait()

	summary := Summarize(results)
	r.logger.WithFields(logrus.Fields{
		"total":     summary.Total,
		"assembled": summary.Assembled,
		"rejected":  summary.Rejected,
		"failed":    summary.Failed,
		"duration":  time.Since(start),
	}).Info("Batch completed")
	return results, summary
}

func (r *Runner) runOne(ctx context.Context, c Case) Result {
	res := Result{ID: c.ID, Source: c.Source}
	if err := ctx.Err(); err != nil {
		res.Status = domain.OutcomeFailed
		res.Error = err.Error()
		return res
	}

	out, err := r.assembler.Assemble(ctx, service.AssembleRequest{
		CaseID:          c.ID,
		Source:          domain.SourceBatch,
		Data:            c.Data,
		IncludeEnvelope: r.includeEnvelope,
		Context:         c.Context,
	})

	var failure *domain.ValidationFailure
	switch {
	case err == nil:
		res.Status = domain.OutcomeAssembled
		res.Result = out
	case errors.As(err, &failure):
		res.Status = domain.OutcomeRejected
		res.Violations = failure.Violations
	default:
		res.Status = domain.OutcomeFailed
		res.Error = err.Error()
	}
	return res
}

// Summarize counts results by status
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case domain.OutcomeAssembled:
			s.Assembled++
		case domain.OutcomeRejected:
			s.Rejected++
		default:
			s.Failed++
		}
	}
	return s
}
