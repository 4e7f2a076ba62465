// Package memory holds process-local stores used in dev mode when no
// database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/domain/ports/repository"

	"github.com/oklog/ulid/v2"
)

var _ repository.OfferJobRepository = (*OfferJobRepo)(nil)

type OfferJobRepo struct {
	mu   sync.RWMutex
	jobs map[string]*model.OfferJob
}

func NewOfferJobRepo() *OfferJobRepo {
	return &OfferJobRepo{jobs: make(map[string]*model.OfferJob)}
}

func clone(j *model.OfferJob) *model.OfferJob {
	cp := *j
	if j.Result != nil {
		cp.Result = append([]byte(nil), j.Result...)
	}
	return &cp
}

func (r *OfferJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.OfferJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrInvalidArgument
	}
	r.jobs[job.ID] = clone(job)
	return nil
}

func (r *OfferJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.OfferJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(j), nil
}

func (r *OfferJobRepo) Update(ctx context.Context, tx repository.Tx, id string, patch model.JobPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.Apply(patch, time.Now().UTC())
	return nil
}

func (r *OfferJobRepo) Ping(ctx context.Context) error { return nil }

var (
	_ repository.LearningRepository = (*LearningLog)(nil)
	_ adapter.LearningRecorder      = (*LearningLog)(nil)
)

// LearningLog keeps observations in memory, newest last.
type LearningLog struct {
	mu  sync.Mutex
	obs []model.LearningObservation
}

func NewLearningLog() *LearningLog { return &LearningLog{} }

func (l *LearningLog) Record(ctx context.Context, tx repository.Tx, obs *model.LearningObservation) error {
	if obs.ID == "" {
		obs.ID = ulid.Make().String()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.obs = append(l.obs, *obs)
	return nil
}

func (l *LearningLog) Learn(ctx context.Context, obs *model.LearningObservation) error {
	return l.Record(ctx, nil, obs)
}

func (l *LearningLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.obs)
}
