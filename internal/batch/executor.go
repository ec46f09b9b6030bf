package batch

import (
	"context"
	"sync"
	"sync/atomic"

	"genvrbatch/internal/domain"
	"genvrbatch/internal/infra"
)

// Runner executes one job through to its terminal result. The genvr client
// satisfies it; tests substitute stubs.
type Runner interface {
	RunJob(ctx context.Context, req domain.JobRequest, cancel <-chan struct{}) domain.JobResult
}

// Executor runs batches of job requests against a Runner with bounded
// concurrency. It owns no state between runs.
type Executor struct {
	runner Runner
	logger infra.Logger
}

// NewExecutor wires a runner and a logger.
func NewExecutor(runner Runner, logger infra.Logger) *Executor {
	return &Executor{runner: runner, logger: logger}
}

// Run processes every request and returns the final summary. It blocks until
// all workers have exited, then emits batch-completed as the last event.
//
// min(concurrency, len(requests)) workers share an atomic cursor over the
// request slice, so each index is claimed exactly once. A set token stops
// further claims; the item in flight observes it at its next poll tick and
// comes back as a cancelled failure. Item-completed events may arrive in any
// order.
func (e *Executor) Run(ctx context.Context, requests []domain.JobRequest, concurrency int, reporter Reporter, token *Token) domain.BatchSummary {
	if reporter == nil {
		reporter = NopReporter{}
	}
	if token == nil {
		token = NewToken()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	total := len(requests)
	workers := concurrency
	if workers > total {
		workers = total
	}

	var cursor, succeeded, failed atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if token.Cancelled() || ctx.Err() != nil {
					return
				}
				index := int(cursor.Add(1)) - 1
				if index >= total {
					return
				}
				e.processItem(ctx, workerID, index, requests[index], reporter, token, &succeeded, &failed)
			}
		}(i)
	}
	wg.Wait()

	summary := domain.BatchSummary{
		Total:     total,
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
		Cancelled: token.Cancelled() || ctx.Err() != nil,
	}
	e.logger.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Bool("cancelled", summary.Cancelled).
		Msg("batch: completed")
	reporter.BatchCompleted(summary)
	return summary
}

func (e *Executor) processItem(ctx context.Context, workerID, index int, req domain.JobRequest, reporter Reporter, token *Token, succeeded, failed *atomic.Int64) {
	reporter.ItemStarted(index, req)

	var result domain.JobResult
	if err := req.Validate(); err != nil {
		// Malformed requests never reach the network.
		result = domain.FailureResult(domain.WrapJobError(domain.ErrKindValidation, err))
	} else {
		result = e.runner.RunJob(ctx, req, token.Done())
	}

	if result.Succeeded() {
		succeeded.Add(1)
		e.logger.Debug().
			Int("worker", workerID).
			Int("index", index).
			Msg("batch: item succeeded")
	} else {
		failed.Add(1)
		e.logger.Debug().
			Int("worker", workerID).
			Int("index", index).
			Str("error", result.Err.Error()).
			Msg("batch: item failed")
	}
	reporter.ItemCompleted(index, result)
}
