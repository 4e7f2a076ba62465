package adapter

import (
	"context"

	"offer-ai-service/internal/domain/model"
)

type PolicyValidator interface {
	Validate(ctx context.Context, offer *model.Offer) (*model.ValidationResult, error)
}

type QualityAnalyzer interface {
	Analyze(ctx context.Context, offer *model.Offer) (*model.QualityReport, error)
}

// LearningRecorder accepts observations on a best-effort basis.
type LearningRecorder interface {
	Learn(ctx context.Context, obs *model.LearningObservation) error
}
