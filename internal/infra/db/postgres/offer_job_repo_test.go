//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v4"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/repository"
)

func TestOfferJobRepo_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewOfferJobRepo(testPool)

	newJob := func(t *testing.T) *model.OfferJob {
		t.Helper()
		job, err := model.NewOfferJob("", model.JobInput{
			ProjectDescription: "Byta tak på villa, 150 kvm",
			Metadata:           map[string]any{"source": "webflow"},
		})
		if err != nil {
			t.Fatalf("NewOfferJob: %v", err)
		}
		if err := repo.Create(ctx, nil, job); err != nil {
			t.Fatalf("Create: %v", err)
		}
		return job
	}

	t.Run("create and read back", func(t *testing.T) {
		cleanup(t)
		job := newJob(t)
		got, err := repo.FindByID(ctx, nil, job.ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if got.Status != model.JobStatusPending || got.Input.ProjectDescription != job.Input.ProjectDescription {
			t.Errorf("got %+v", got)
		}
		if got.Input.Metadata["source"] != "webflow" {
			t.Errorf("metadata = %v", got.Input.Metadata)
		}
		if got.Result != nil || got.Error != "" {
			t.Errorf("fresh job carries result/error: %+v", got)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if err := repo.Update(ctx, nil, "missing", model.JobPatch{Status: model.JobStatusProcessing}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("update err = %v, want ErrNotFound", err)
		}
	})

	t.Run("patches apply field by field", func(t *testing.T) {
		cleanup(t)
		job := newJob(t)

		msg := "generation failed: pass 1 returned no content"
		if err := repo.Update(ctx, nil, job.ID, model.JobPatch{Status: model.JobStatusFailed, Error: &msg}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		got, _ := repo.FindByID(ctx, nil, job.ID)
		if got.Status != model.JobStatusFailed || got.Error != msg {
			t.Fatalf("after failure: %+v", got)
		}

		done := model.JobPatch{Status: model.JobStatusCompleted, Result: []byte(`{"projectTitle":"Takbyte"}`), ClearError: true}
		if err := repo.Update(ctx, nil, job.ID, done); err != nil {
			t.Fatalf("Update completed: %v", err)
		}
		got, _ = repo.FindByID(ctx, nil, job.ID)
		if got.Status != model.JobStatusCompleted || got.Error != "" || string(got.Result) != `{"projectTitle": "Takbyte"}` {
			t.Fatalf("after completion: %+v (result %s)", got, got.Result)
		}
		if !got.UpdatedAt.After(job.UpdatedAt) {
			t.Error("updated_at did not advance")
		}
	})

	t.Run("inside a transaction", func(t *testing.T) {
		cleanup(t)
		tm := NewTxManager(testPool)
		rollback := errors.New("rollback")
		var id string
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			job, _ := model.NewOfferJob("", model.JobInput{ProjectDescription: "Måla fasad"})
			id = job.ID
			if err := repo.Create(ctx, tx, job); err != nil {
				return err
			}
			return rollback
		})
		if !errors.Is(err, rollback) {
			t.Fatalf("WithTx err = %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("rolled back job is visible: %v", err)
		}
	})
}

func TestLearningRepo_Integration(t *testing.T) {
	ctx := context.Background()
	cleanup(t)
	repo := NewLearningRepo(testPool)
	obs := &model.LearningObservation{
		ProjectDescription: "Byta tak",
		Offer:              &model.Offer{ProjectTitle: "Takbyte"},
		Metadata:           map[string]any{"seed": 42},
	}
	if err := repo.Learn(ctx, obs); err != nil {
		t.Fatalf("Learn: %v", err)
	}
	if obs.ID == "" {
		t.Fatal("observation id not assigned")
	}
	var title string
	if err := testPool.QueryRow(ctx, `SELECT offer->>'projectTitle' FROM offer_learning WHERE id = $1`, obs.ID).Scan(&title); err != nil {
		t.Fatalf("query: %v", err)
	}
	if title != "Takbyte" {
		t.Errorf("title = %q", title)
	}
}
