package model

type LineCategory string

const (
	LineLabor    LineCategory = "labor"
	LineMaterial LineCategory = "material"
	LineRental   LineCategory = "rental"
)

// LineItem is one parsed Pass 2 row.
type LineItem struct {
	Category    LineCategory `json:"-"`
	Subtype     string       `json:"category,omitempty"`
	Description string       `json:"description"`
	Quantity    float64      `json:"quantity"`
	Unit        string       `json:"unit"`
	UnitPrice   int          `json:"unitPrice"`
	Supplier    string       `json:"supplier,omitempty"`
}

// Total is quantity times unit price.
func (l LineItem) Total() float64 {
	return l.Quantity * float64(l.UnitPrice)
}

type RiskAssessment struct {
	Level      int    `json:"level"`
	Percentage int    `json:"percentage"`
	Reasoning  string `json:"reasoning"`
}

type TotalEstimate struct {
	WorkHours    float64 `json:"workHours"`
	WorkCost     float64 `json:"workCost"`
	MaterialCost float64 `json:"materialCost"`
	OptionalCost float64 `json:"optionalCost"`
	TotalExclVat float64 `json:"totalExclVat"`
}

// Offer is the priced artifact stored as a completed job's result.
type Offer struct {
	ProjectTitle       string             `json:"projectTitle"`
	ProjectType        []string           `json:"projectType"`
	ProjectDescription string             `json:"projectDescription"`
	WorkItems          []LineItem         `json:"workItems"`
	MaterialItems      []LineItem         `json:"materialItems"`
	OptionalItems      []LineItem         `json:"optionalItems"`
	Assumptions        []string           `json:"assumptions"`
	NotIncludedItems   []string           `json:"notIncludedItems"`
	RiskAssessment     RiskAssessment     `json:"riskAssessment"`
	TotalEstimate      TotalEstimate      `json:"totalEstimate"`
	QualityScore       *float64           `json:"qualityScore,omitempty"`
	QualityMetrics     map[string]float64 `json:"qualityMetrics,omitempty"`
}

func (o *Offer) RowCount() int {
	return len(o.WorkItems) + len(o.MaterialItems) + len(o.OptionalItems)
}

// ValidationResult is what a policy validator reports; invalid is advisory.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Warnings []string `json:"warnings"`
}

// QualityReport is attached to the offer by the analyzer stage.
type QualityReport struct {
	Score   float64            `json:"score"`
	Metrics map[string]float64 `json:"metrics"`
}

// LearningObservation is recorded after a successful generation for later
// tuning of prompts and catalogs.
type LearningObservation struct {
	ID                 string         `json:"id"`
	ProjectDescription string         `json:"projectDescription"`
	Offer              *Offer         `json:"offer"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}
