package repository

import (
	"context"

	"offer-ai-service/internal/domain/model"
)

type LearningRepository interface {
	Record(ctx context.Context, tx Tx, obs *model.LearningObservation) error
}
