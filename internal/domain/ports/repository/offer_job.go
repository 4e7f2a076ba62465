package repository

import (
	"context"

	"offer-ai-service/internal/domain/model"
)

// OfferJobRepository is the job store. Update is applied unconditionally;
// idempotency is enforced by the caller inspecting the current status.
type OfferJobRepository interface {
	Create(ctx context.Context, tx Tx, job *model.OfferJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.OfferJob, error)
	Update(ctx context.Context, tx Tx, id string, patch model.JobPatch) error
	Ping(ctx context.Context) error
}
