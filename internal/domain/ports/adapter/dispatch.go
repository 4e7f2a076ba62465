package adapter

import (
	"context"

	"offer-ai-service/internal/domain/model"
)

// Dispatcher hands a freshly created job to the processing side. It must not
// wait for processing to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Notifier is told when a job reaches a terminal state.
type Notifier interface {
	JobFinished(ctx context.Context, job *model.OfferJob, title string) error
}
