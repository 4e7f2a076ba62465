//go:build !integration

package memory

import (
	"context"
	"errors"
	"testing"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
)

func TestOfferJobRepo(t *testing.T) {
	ctx := context.Background()
	r := NewOfferJobRepo()
	job, _ := model.NewOfferJob("", model.JobInput{ProjectDescription: "Byta tak"})

	if err := r.Create(ctx, nil, job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(ctx, nil, job); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("duplicate create err = %v", err)
	}

	got, _ := r.FindByID(ctx, nil, job.ID)
	got.Status = model.JobStatusFailed // must not leak into the store
	again, _ := r.FindByID(ctx, nil, job.ID)
	if again.Status != model.JobStatusPending {
		t.Fatal("FindByID returned shared state")
	}

	if err := r.Update(ctx, nil, job.ID, model.JobPatch{Status: model.JobStatusCompleted, Result: []byte(`{}`)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ = r.FindByID(ctx, nil, job.ID)
	if again.Status != model.JobStatusCompleted || string(again.Result) != `{}` {
		t.Errorf("after update: %+v", again)
	}
	if err := r.Update(ctx, nil, "missing", model.JobPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
}

func TestLearningLog(t *testing.T) {
	l := NewLearningLog()
	obs := &model.LearningObservation{ProjectDescription: "Byta tak"}
	if err := l.Learn(context.Background(), obs); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if obs.ID == "" || l.Len() != 1 {
		t.Fatalf("id=%q len=%d", obs.ID, l.Len())
	}
}
