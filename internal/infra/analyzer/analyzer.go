// Package analyzer scores a generated offer for completeness. The score is
// deterministic: the same offer always gets the same report.
package analyzer

import (
	"context"
	"errors"
	"math"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
)

var _ adapter.QualityAnalyzer = Analyzer{}

// Target row counts for a complete offer.
const (
	targetWorkRows     = 15
	targetMaterialRows = 30
)

var weights = []struct {
	metric string
	weight float64
}{
	{"workRows", 15},
	{"materialRows", 15},
	{"laborShare", 15},
	{"pricingCompleteness", 20},
	{"supplierCoverage", 10},
	{"assumptions", 10},
	{"riskCoverage", 15},
}

type Analyzer struct{}

func New() Analyzer { return Analyzer{} }

// Analyze computes each metric in [0,1] and a weighted score in [0,100].
func (Analyzer) Analyze(ctx context.Context, offer *model.Offer) (*model.QualityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, errors.New("analyzer: nil offer")
	}
	m := Metrics(offer)
	score := 0.0
	for _, w := range weights {
		score += w.weight * m[w.metric]
	}
	return &model.QualityReport{Score: round1(score), Metrics: m}, nil
}

// Metrics returns the per-dimension values the score is built from.
func Metrics(o *model.Offer) map[string]float64 {
	rows := o.RowCount()
	m := map[string]float64{
		"workRows":            ratio(float64(len(o.WorkItems)), targetWorkRows),
		"materialRows":        ratio(float64(len(o.MaterialItems)), targetMaterialRows),
		"laborShare":          laborShareScore(o.TotalEstimate),
		"pricingCompleteness": 0,
		"supplierCoverage":    0,
		"assumptions":         0,
		"riskCoverage":        0,
	}

	if rows > 0 {
		priced := 0
		for _, group := range [][]model.LineItem{o.WorkItems, o.MaterialItems, o.OptionalItems} {
			for _, it := range group {
				if it.UnitPrice > 0 && it.Quantity > 0 {
					priced++
				}
			}
		}
		m["pricingCompleteness"] = round2(float64(priced) / float64(rows))
	}

	if n := len(o.MaterialItems); n > 0 {
		withSupplier := 0
		for _, it := range o.MaterialItems {
			if it.Supplier != "" && it.Supplier != "-" {
				withSupplier++
			}
		}
		m["supplierCoverage"] = round2(float64(withSupplier) / float64(n))
	}

	if len(o.Assumptions) > 0 && len(o.NotIncludedItems) > 0 {
		m["assumptions"] = 1
	} else if len(o.Assumptions) > 0 || len(o.NotIncludedItems) > 0 {
		m["assumptions"] = 0.5
	}

	r := o.RiskAssessment
	if r.Percentage >= 5 && r.Percentage <= 30 && r.Level >= 1 && r.Level <= 3 {
		m["riskCoverage"] = 1
		if r.Reasoning == "" {
			m["riskCoverage"] = 0.5
		}
	}
	return m
}

// laborShareScore is 1 when labor is 30-70% of the total and falls off
// linearly outside that band.
func laborShareScore(t model.TotalEstimate) float64 {
	if t.TotalExclVat <= 0 {
		return 0
	}
	share := t.WorkCost / t.TotalExclVat
	switch {
	case share < 0.3:
		return round2(share / 0.3)
	case share > 0.7:
		return round2(math.Max(0, (1-share)/0.3))
	default:
		return 1
	}
}

func ratio(v, target float64) float64 {
	return round2(math.Min(1, v/target))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
