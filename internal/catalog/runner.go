package catalog

import (
	"context"

	"genvrbatch/internal/batch"
	"genvrbatch/internal/domain"
)

// ValidatingRunner checks each request against the cached model schema before
// handing it to the underlying runner, so items missing required parameters or
// carrying disallowed enum values fail locally instead of burning a remote
// submission.
type ValidatingRunner struct {
	catalog *Catalog
	runner  batch.Runner
}

// NewValidatingRunner wraps runner with schema validation from catalog.
func NewValidatingRunner(catalog *Catalog, runner batch.Runner) *ValidatingRunner {
	return &ValidatingRunner{catalog: catalog, runner: runner}
}

func (r *ValidatingRunner) RunJob(ctx context.Context, req domain.JobRequest, cancel <-chan struct{}) domain.JobResult {
	if err := r.catalog.ValidateRequest(req); err != nil {
		return domain.FailureResult(domain.WrapJobError(domain.ErrKindValidation, err))
	}
	return r.runner.RunJob(ctx, req, cancel)
}

var _ batch.Runner = (*ValidatingRunner)(nil)
