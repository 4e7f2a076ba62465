//go:build !integration

package twopass

import (
	"encoding/json"
	"testing"

	"offer-ai-service/internal/domain/model"
)

func roofPlan(area float64) *model.ProjectPlan {
	generic := "generisk"
	return &model.ProjectPlan{
		WorkBlocks: []string{"forberedelse", "tak", "avslut"},
		ScopeTags:  []string{"takbyte_papp"},
		Quantities: model.Quantities{TakAreaM2: &area},
		MaterialChoices: model.MaterialChoices{
			UnderlagspappTyp: &generic,
		},
		ReuseItems:     []string{},
		RiskOptions:    model.RiskOptions{Byggstallning: true, Container: true},
		Assumptions:    []string{"Fri åtkomst till fastigheten"},
		NotIncluded:    []string{"Bygglov"},
		RiskLevel:      2,
		RiskPercentage: 10,
		RiskReasoning:  "Okänt skick på råspont",
	}
}

func planJSON(t *testing.T, p *model.ProjectPlan) string {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}
	return string(b)
}
