package model

import (
	"encoding/json"
	"strings"
	"time"

	"offer-ai-service/internal/domain"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo enforces the monotonic lifecycle
// pending -> processing -> {completed|failed}. Re-entering processing is
// allowed so a re-delivered trigger can pick up a job whose worker died.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusProcessing || next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// JobInput is what the client submitted. Metadata is opaque to the pipeline.
type JobInput struct {
	ProjectDescription string         `json:"projectDescription"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

// OfferJob tracks one offer-generation request. Result is set only when
// completed, Error only when failed.
type OfferJob struct {
	ID        string
	Status    JobStatus
	Input     JobInput
	Result    json.RawMessage
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOfferJob(id string, input JobInput) (*OfferJob, error) {
	if strings.TrimSpace(input.ProjectDescription) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = ulid.Make().String()
	}
	now := time.Now().UTC()
	return &OfferJob{
		ID:        id,
		Status:    JobStatusPending,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// JobPatch is an unconditional update applied by the orchestrator.
// A nil field is left untouched.
type JobPatch struct {
	Status     JobStatus
	Result     json.RawMessage
	Error      *string
	ClearError bool
}

// Apply mutates the job in memory the same way the store applies a patch.
func (j *OfferJob) Apply(p JobPatch, now time.Time) {
	if p.Status != "" {
		j.Status = p.Status
	}
	if p.Result != nil {
		j.Result = p.Result
	}
	if p.ClearError {
		j.Error = ""
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	j.UpdatedAt = now
}
