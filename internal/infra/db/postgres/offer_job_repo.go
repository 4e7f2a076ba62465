package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/repository"
)

var _ repository.OfferJobRepository = (*offerJobRepo)(nil)

type offerJobRepo struct {
	pool *pgxpool.Pool
}

func NewOfferJobRepo(pool *pgxpool.Pool) *offerJobRepo {
	return &offerJobRepo{pool: pool}
}

func (r *offerJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.OfferJob) error {
	input, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("encode job input: %w", err)
	}
	const q = `
INSERT INTO offer_jobs (id, status, input, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4, $5);`
	_, err = execSQL(ctx, r.pool, tx, q, job.ID, string(job.Status), string(input), job.CreatedAt, job.UpdatedAt)
	return err
}

func (r *offerJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.OfferJob, error) {
	const q = `
SELECT id, status, input, result, error, created_at, updated_at
FROM offer_jobs
WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var (
		job    model.OfferJob
		status string
		input  []byte
		result []byte
		errMsg *string
	)
	if err := row.Scan(&job.ID, &status, &input, &result, &errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	job.Status = model.JobStatus(status)
	if err := json.Unmarshal(input, &job.Input); err != nil {
		return nil, fmt.Errorf("decode job input: %w", err)
	}
	if result != nil {
		job.Result = json.RawMessage(result)
	}
	if errMsg != nil {
		job.Error = *errMsg
	}
	return &job, nil
}

// Update applies the patch unconditionally, last write wins.
func (r *offerJobRepo) Update(ctx context.Context, tx repository.Tx, id string, p model.JobPatch) error {
	var result *string
	if p.Result != nil {
		s := string(p.Result)
		result = &s
	}
	const q = `
UPDATE offer_jobs SET
  status     = COALESCE(NULLIF($2, ''), status),
  result     = COALESCE($3::jsonb, result),
  error      = CASE WHEN $4::text IS NOT NULL THEN $4::text WHEN $5 THEN NULL ELSE error END,
  updated_at = $6
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(p.Status), result, p.Error, p.ClearError, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *offerJobRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
