//go:build !integration

package analyzer

import (
	"context"
	"fmt"
	"testing"

	"offer-ai-service/internal/domain/model"
)

func completeOffer() *model.Offer {
	o := &model.Offer{
		Assumptions:      []string{"Fri framkomlighet"},
		NotIncludedItems: []string{"Bygglov"},
		RiskAssessment:   model.RiskAssessment{Level: 2, Percentage: 15, Reasoning: "Okänt underlag"},
	}
	for i := 0; i < targetWorkRows; i++ {
		o.WorkItems = append(o.WorkItems, model.LineItem{Description: fmt.Sprintf("Moment %d", i), Quantity: 4, UnitPrice: 550})
	}
	for i := 0; i < targetMaterialRows; i++ {
		o.MaterialItems = append(o.MaterialItems, model.LineItem{Description: fmt.Sprintf("Material %d", i), Quantity: 1, UnitPrice: 1200, Supplier: "Beijer"})
	}
	o.TotalEstimate = model.TotalEstimate{WorkCost: 33000, MaterialCost: 36000, TotalExclVat: 69000}
	return o
}

func TestAnalyze_CompleteOfferScoresFull(t *testing.T) {
	rep, err := New().Analyze(context.Background(), completeOffer())
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.Score != 100 {
		t.Fatalf("score: got %v want 100 (metrics %v)", rep.Score, rep.Metrics)
	}
}

func TestAnalyze_EmptyOffer(t *testing.T) {
	rep, err := New().Analyze(context.Background(), &model.Offer{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if rep.Score != 0 {
		t.Fatalf("score: got %v want 0", rep.Score)
	}
	for k, v := range rep.Metrics {
		if v != 0 {
			t.Errorf("metric %s: got %v want 0", k, v)
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	o := completeOffer()
	o.MaterialItems[0].Supplier = ""
	o.WorkItems = o.WorkItems[:5]
	a, _ := New().Analyze(context.Background(), o)
	b, _ := New().Analyze(context.Background(), o)
	if a.Score != b.Score {
		t.Fatalf("score changed between runs: %v vs %v", a.Score, b.Score)
	}
	if a.Score >= 100 || a.Score <= 0 {
		t.Fatalf("partial offer should score strictly between 0 and 100, got %v", a.Score)
	}
}

func TestMetrics_LaborShareBand(t *testing.T) {
	tests := []struct {
		work, total float64
		want        float64
	}{
		{work: 50, total: 100, want: 1},
		{work: 15, total: 100, want: 0.5},
		{work: 85, total: 100, want: 0.5},
		{work: 100, total: 100, want: 0},
		{work: 10, total: 0, want: 0},
	}
	for _, tt := range tests {
		got := laborShareScore(model.TotalEstimate{WorkCost: tt.work, TotalExclVat: tt.total})
		if got != tt.want {
			t.Errorf("laborShare(%v/%v): got %v want %v", tt.work, tt.total, got, tt.want)
		}
	}
}

func TestAnalyze_NilOffer(t *testing.T) {
	if _, err := New().Analyze(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil offer")
	}
}
