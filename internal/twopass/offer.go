package twopass

import (
	"fmt"
	"math"
	"strings"

	"offer-ai-service/internal/domain/model"
)

const (
	fallbackTitle       = "Projekt"
	fallbackProjectType = "Renovering"
	skeletonTitle       = "Byggprojekt"
)

var titles = map[string]string{
	"takbyte_papp":           "Takbyte",
	"takbyte_plat":           "Takbyte plåt",
	"takbyte_tegel":          "Takbyte tegel",
	"tak_reparation":         "Takreparation",
	"fasad_panel_ny":         "Ny fasadpanel",
	"fasad_panel_malning":    "Fasadmålning",
	"fasad_puts_ny":          "Ny fasadputs",
	"fasad_puts_renovering":  "Fasadrenovering",
	"badrum_totalrenovering": "Badrumsrenovering",
	"badrum_delrenovering":   "Badrumsrenovering",
	"kok_totalrenovering":    "Köksrenovering",
	"kok_delrenovering":      "Köksrenovering",
	"tillbyggnad_tra_1plan":  "Tillbyggnad",
	"tillbyggnad_tra_2plan":  "Tillbyggnad 2-plan",
	"altan_tradack":          "Altan",
	"grund_platta":           "Grundläggning",
	"grund_plintar":          "Grundläggning",
	"renovering_generisk":    "Renovering",
}

var projectTypes = map[string]string{
	"takbyte_papp":           "Takbyte (papp)",
	"takbyte_plat":           "Takbyte (plåt)",
	"takbyte_tegel":          "Takbyte (tegel)",
	"tak_reparation":         "Takreparation",
	"fasad_panel_ny":         "Fasad (ny panel)",
	"fasad_panel_malning":    "Fasad (målning)",
	"fasad_puts_ny":          "Fasad (ny puts)",
	"fasad_puts_renovering":  "Fasadrenovering",
	"badrum_totalrenovering": "Badrumsrenovering (total)",
	"badrum_delrenovering":   "Badrumsrenovering (del)",
	"kok_totalrenovering":    "Köksrenovering (total)",
	"kok_delrenovering":      "Köksrenovering (del)",
	"tillbyggnad_tra_1plan":  "Tillbyggnad (1 plan)",
	"tillbyggnad_tra_2plan":  "Tillbyggnad (2 plan)",
	"altan_tradack":          "Altan/Trädäck",
	"grund_platta":           "Grundläggning",
	"grund_plintar":          "Grundläggning",
	"renovering_generisk":    "Renovering",
}

// ProjectTitle maps the primary scope tag to a title and appends the first
// known area (roof, facade, floor).
func ProjectTitle(plan *model.ProjectPlan) string {
	title, ok := titles[plan.PrimaryScopeTag()]
	if !ok {
		title = fallbackTitle
	}
	q := plan.Quantities
	area := model.Float(q.TakAreaM2)
	if area == 0 {
		area = model.Float(q.FasadAreaM2)
	}
	if area == 0 {
		area = model.Float(q.GolvAreaM2)
	}
	if area > 0 {
		return fmt.Sprintf("%s %d m²", title, int(math.Round(area)))
	}
	return title
}

// ProjectTypes maps every scope tag to its label.
func ProjectTypes(plan *model.ProjectPlan) []string {
	tags := plan.ScopeTags
	if len(tags) == 0 {
		tags = []string{plan.PrimaryScopeTag()}
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if label, ok := projectTypes[t]; ok {
			out = append(out, label)
		} else {
			out = append(out, fallbackProjectType)
		}
	}
	return out
}

// ProjectDescription builds a short sentence list: project type, positive
// areas, reused items.
func ProjectDescription(plan *model.ProjectPlan) string {
	parts := []string{ProjectTypes(plan)[0]}
	q := plan.Quantities
	for _, a := range []struct {
		v    *float64
		what string
	}{{q.TakAreaM2, "tak"}, {q.FasadAreaM2, "fasad"}, {q.GolvAreaM2, "golv"}} {
		if v := model.Float(a.v); v > 0 {
			parts = append(parts, fmt.Sprintf("%d m² %s", int(math.Round(v)), a.what))
		}
	}
	if len(plan.ReuseItems) > 0 {
		parts = append(parts, "Återanvänder: "+strings.Join(plan.ReuseItems, ", "))
	}
	return strings.Join(parts, ". ") + "."
}

// Aggregate totals the line items. Work cost is derived from the rounded
// hour total so that workCost == workHours * StandardHourlyRate holds.
func Aggregate(items []model.LineItem) model.TotalEstimate {
	var hours, material, optional float64
	for _, it := range items {
		switch it.Category {
		case model.LineLabor:
			hours += it.Quantity
		case model.LineMaterial:
			material += it.Total()
		case model.LineRental:
			optional += it.Total()
		}
	}
	t := model.TotalEstimate{
		WorkHours:    math.Round(hours*10) / 10,
		MaterialCost: material,
		OptionalCost: optional,
	}
	t.WorkCost = t.WorkHours * StandardHourlyRate
	t.TotalExclVat = t.WorkCost + t.MaterialCost + t.OptionalCost
	return t
}

// BuildOffer assembles the offer from a plan and its parsed rows.
func BuildOffer(plan *model.ProjectPlan, items []model.LineItem) *model.Offer {
	o := &model.Offer{
		ProjectTitle:       ProjectTitle(plan),
		ProjectType:        ProjectTypes(plan),
		ProjectDescription: ProjectDescription(plan),
		WorkItems:          []model.LineItem{},
		MaterialItems:      []model.LineItem{},
		OptionalItems:      []model.LineItem{},
		Assumptions:        nonNil(plan.Assumptions),
		NotIncludedItems:   nonNil(plan.NotIncluded),
		RiskAssessment: model.RiskAssessment{
			Level:      plan.RiskLevel,
			Percentage: plan.RiskPercentage,
			Reasoning:  plan.RiskReasoning,
		},
		TotalEstimate: Aggregate(items),
	}
	for _, it := range items {
		switch it.Category {
		case model.LineLabor:
			o.WorkItems = append(o.WorkItems, it)
		case model.LineMaterial:
			o.MaterialItems = append(o.MaterialItems, it)
		case model.LineRental:
			o.OptionalItems = append(o.OptionalItems, it)
		}
	}
	return o
}

// EmptyOffer is the skeleton used when two-pass generation is switched off.
func EmptyOffer() *model.Offer {
	return &model.Offer{
		ProjectTitle:     skeletonTitle,
		ProjectType:      []string{},
		WorkItems:        []model.LineItem{},
		MaterialItems:    []model.LineItem{},
		OptionalItems:    []model.LineItem{},
		Assumptions:      []string{},
		NotIncludedItems: []string{},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
