// File: internal/usecase/offer_job_uc.go
package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/domain/ports/repository"
	"offer-ai-service/internal/infra/logging"
	"offer-ai-service/internal/infra/metrics"
)

const PollPathPrefix = "/api/ai/job-status/"

// Compile-time check
var _ OfferJobUseCase = (*offerJobUC)(nil)

type OfferJobUseCase interface {
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)
	Status(ctx context.Context, jobID string) (*StatusView, error)
	Process(ctx context.Context, secret, jobID string) (*ProcessOutcome, error)
	// Authorize checks a trigger secret without touching any job.
	Authorize(secret string) error
	Export(ctx context.Context, jobID string) (*model.Offer, error)
}

// PipelineRunner is satisfied by *Pipeline.
type PipelineRunner interface {
	Run(ctx context.Context, description string, obs Observer) (*PipelineResult, error)
}

type SubmitInput struct {
	ProjectDescription string
	Metadata           map[string]any
}

type SubmitResult struct {
	JobID   string
	Status  model.JobStatus
	PollURL string
}

// StatusView is the client-safe projection of a job. Input is never exposed.
type StatusView struct {
	JobID     string          `json:"jobId"`
	Status    model.JobStatus `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type ProcessOutcome struct {
	JobID            string
	Status           model.JobStatus
	AlreadyProcessed bool
}

// JobFailedError is returned by Process when a stage failed and the job was
// moved to failed. Message is exactly what was stored on the job.
type JobFailedError struct {
	JobID   string
	Message string
	Err     error
}

func (e *JobFailedError) Error() string { return e.Message }

func (e *JobFailedError) Unwrap() []error { return []error{domain.ErrGeneration, e.Err} }

type offerJobUC struct {
	jobs       repository.OfferJobRepository
	pipeline   PipelineRunner
	dispatcher adapter.Dispatcher
	notifier   adapter.Notifier
	secret     string
	now        func() time.Time
	log        *zerolog.Logger
}

func NewOfferJobUseCase(
	jobs repository.OfferJobRepository,
	pipeline PipelineRunner,
	dispatcher adapter.Dispatcher,
	notifier adapter.Notifier,
	secret string,
	log *zerolog.Logger,
) *offerJobUC {
	return &offerJobUC{
		jobs:       jobs,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		notifier:   notifier,
		secret:     secret,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

func (uc *offerJobUC) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	defer logging.TraceDuration(uc.log, "OfferJobUC.Submit")()

	job, err := model.NewOfferJob("", model.JobInput{
		ProjectDescription: strings.TrimSpace(in.ProjectDescription),
		Metadata:           in.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := uc.jobs.Create(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	metrics.IncOfferJob("submitted")

	if uc.dispatcher != nil {
		if err := uc.dispatcher.Dispatch(ctx, job.ID); err != nil {
			uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("dispatch failed; job stays pending")
		}
	}

	return &SubmitResult{
		JobID:   job.ID,
		Status:  job.Status,
		PollURL: PollPathPrefix + job.ID,
	}, nil
}

func (uc *offerJobUC) Status(ctx context.Context, jobID string) (*StatusView, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	return NewStatusView(job), nil
}

// NewStatusView projects a job. Result appears only when completed and
// Error only when failed.
func NewStatusView(job *model.OfferJob) *StatusView {
	v := &StatusView{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	switch job.Status {
	case model.JobStatusCompleted:
		v.Result = job.Result
	case model.JobStatusFailed:
		v.Error = job.Error
	}
	return v
}

// Process drives one job through the pipeline. It is safe to call more than
// once for the same job: a terminal job is reported and left untouched.
func (uc *offerJobUC) Process(ctx context.Context, secret, jobID string) (*ProcessOutcome, error) {
	defer logging.TraceDuration(uc.log, "OfferJobUC.Process")()

	if !uc.secretMatches(secret) {
		return nil, domain.ErrUnauthorized
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, domain.ErrInvalidArgument
	}

	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		metrics.IncOfferJob("duplicate")
		return &ProcessOutcome{JobID: job.ID, Status: job.Status, AlreadyProcessed: true}, nil
	}
	if !job.Status.CanTransitionTo(model.JobStatusProcessing) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, job.Status, model.JobStatusProcessing)
	}

	if err := uc.jobs.Update(ctx, nil, job.ID, model.JobPatch{Status: model.JobStatusProcessing}); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	job.Apply(model.JobPatch{Status: model.JobStatusProcessing}, uc.now())

	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, uc.log)
	log.Info().Msg("processing offer job")

	res, runErr := uc.pipeline.Run(ctx, job.Input.ProjectDescription, nil)
	var payload []byte
	if runErr == nil {
		payload, runErr = json.Marshal(res.Offer)
	}
	if runErr != nil {
		return nil, uc.fail(ctx, log, job, runErr)
	}

	done := model.JobPatch{Status: model.JobStatusCompleted, Result: payload, ClearError: true}
	if err := uc.jobs.Update(ctx, nil, job.ID, done); err != nil {
		return nil, fmt.Errorf("persist result: %w", err)
	}
	job.Apply(done, uc.now())
	metrics.IncOfferJob(string(model.JobStatusCompleted))
	log.Info().
		Int("rows", res.Offer.RowCount()).
		Float64("total_excl_vat", res.Offer.TotalEstimate.TotalExclVat).
		Dur("duration", res.Timings.Total).
		Msg("offer job completed")

	uc.notify(ctx, log, job, res.Offer.ProjectTitle)
	return &ProcessOutcome{JobID: job.ID, Status: job.Status}, nil
}

func (uc *offerJobUC) fail(ctx context.Context, log *zerolog.Logger, job *model.OfferJob, cause error) error {
	msg := cause.Error()
	log.Error().Err(cause).Msg("offer job failed")

	patch := model.JobPatch{Status: model.JobStatusFailed, Error: &msg}
	if err := uc.jobs.Update(ctx, nil, job.ID, patch); err != nil {
		log.Error().Err(err).Msg("record job failure")
		return fmt.Errorf("record failure of job %s (%s): %w", job.ID, msg, err)
	}
	job.Apply(patch, uc.now())
	metrics.IncOfferJob(string(model.JobStatusFailed))
	uc.notify(ctx, log, job, "")
	return &JobFailedError{JobID: job.ID, Message: msg, Err: cause}
}

func (uc *offerJobUC) notify(ctx context.Context, log *zerolog.Logger, job *model.OfferJob, title string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.JobFinished(ctx, job, title); err != nil {
		log.Warn().Err(err).Msg("job notification failed")
	}
}

func (uc *offerJobUC) Authorize(secret string) error {
	if !uc.secretMatches(secret) {
		return domain.ErrUnauthorized
	}
	return nil
}

// secretMatches compares in constant time. An empty configured secret
// matches nothing.
func (uc *offerJobUC) secretMatches(got string) bool {
	if uc.secret == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(uc.secret)) == 1
}

func (uc *offerJobUC) Export(ctx context.Context, jobID string) (*model.Offer, error) {
	job, err := uc.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, domain.ErrJobNotCompleted
	}
	var offer model.Offer
	if err := json.Unmarshal(job.Result, &offer); err != nil {
		return nil, fmt.Errorf("decode stored offer: %w", err)
	}
	return &offer, nil
}
