package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/domain/ports/repository"
)

var (
	_ repository.LearningRepository = (*learningRepo)(nil)
	_ adapter.LearningRecorder      = (*learningRepo)(nil)
)

type learningRepo struct {
	pool *pgxpool.Pool
}

func NewLearningRepo(pool *pgxpool.Pool) *learningRepo {
	return &learningRepo{pool: pool}
}

func (r *learningRepo) Record(ctx context.Context, tx repository.Tx, obs *model.LearningObservation) error {
	if obs.ID == "" {
		obs.ID = ulid.Make().String()
	}
	offer, err := json.Marshal(obs.Offer)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(obs.Metadata)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO offer_learning (id, description, offer, metadata, created_at)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5);`
	_, err = execSQL(ctx, r.pool, tx, q, obs.ID, obs.ProjectDescription, string(offer), string(meta), time.Now().UTC())
	return err
}

// Learn is the pipeline-facing entry point; it writes outside any transaction.
func (r *learningRepo) Learn(ctx context.Context, obs *model.LearningObservation) error {
	return r.Record(ctx, nil, obs)
}
