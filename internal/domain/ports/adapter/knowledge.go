package adapter

import "context"

// Enrichment is the ontology stage output.
type Enrichment struct {
	Description string         `json:"enrichedDescription"`
	Metadata    map[string]any `json:"metadata"`
}

type OntologyEnricher interface {
	Enrich(ctx context.Context, description string) (*Enrichment, error)
}

// CatalogEntry is a read-only row from the work-task, material or rental catalog.
type CatalogEntry struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Category string   `json:"category" yaml:"category"`
	Unit     string   `json:"unit" yaml:"unit"`
	Price    int      `json:"price,omitempty" yaml:"price"`
	Hours    float64  `json:"hours,omitempty" yaml:"hours"`
	Supplier string   `json:"supplier,omitempty" yaml:"supplier"`
	Keywords []string `json:"-" yaml:"keywords"`
}

type SearchResults struct {
	WorkTasks []CatalogEntry `json:"workTasks"`
	Materials []CatalogEntry `json:"materials"`
	Rentals   []CatalogEntry `json:"rentals"`
}

func (s *SearchResults) Empty() bool {
	return s == nil || len(s.WorkTasks)+len(s.Materials)+len(s.Rentals) == 0
}

type CatalogSearcher interface {
	Search(ctx context.Context, description string) (*SearchResults, error)
}

// ExampleSource serves the few-shot examples appended to the system prompt.
type ExampleSource interface {
	Examples(ctx context.Context) ([]map[string]any, error)
}
