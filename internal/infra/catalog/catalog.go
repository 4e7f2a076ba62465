// Package catalog serves the read-only work task, material and rental
// catalogs and the few-shot examples used to steer generation.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"offer-ai-service/internal/domain/ports/adapter"
)

var (
	//go:embed catalog.yaml
	defaultCatalog []byte
	//go:embed examples.yaml
	defaultExamples []byte
)

var (
	_ adapter.CatalogSearcher = (*Catalog)(nil)
	_ adapter.ExampleSource   = (*Catalog)(nil)
)

type document struct {
	WorkTasks []adapter.CatalogEntry `yaml:"work_tasks"`
	Materials []adapter.CatalogEntry `yaml:"materials"`
	Rentals   []adapter.CatalogEntry `yaml:"rentals"`
}

type Catalog struct {
	doc      document
	examples []map[string]any
	limit    int
}

// New loads the embedded catalogs. limit caps results per catalog.
func New(limit int) (*Catalog, error) {
	return Parse(defaultCatalog, defaultExamples, limit)
}

func Parse(catalogYAML, examplesYAML []byte, limit int) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if len(doc.WorkTasks)+len(doc.Materials)+len(doc.Rentals) == 0 {
		return nil, errors.New("catalog: no entries")
	}
	var examples []map[string]any
	if len(examplesYAML) > 0 {
		if err := yaml.Unmarshal(examplesYAML, &examples); err != nil {
			return nil, fmt.Errorf("catalog examples: %w", err)
		}
	}
	if limit <= 0 {
		limit = 8
	}
	return &Catalog{doc: doc, examples: examples, limit: limit}, nil
}

// Search ranks each catalog by token overlap with the description and
// returns the best matches. Entries with no overlap are never returned.
func (c *Catalog) Search(ctx context.Context, description string) (*adapter.SearchResults, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(description)
	return &adapter.SearchResults{
		WorkTasks: c.top(c.doc.WorkTasks, tokens),
		Materials: c.top(c.doc.Materials, tokens),
		Rentals:   c.top(c.doc.Rentals, tokens),
	}, nil
}

// Examples returns the few-shot set.
func (c *Catalog) Examples(ctx context.Context) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.examples, nil
}

type scored struct {
	entry adapter.CatalogEntry
	score int
	index int
}

func (c *Catalog) top(entries []adapter.CatalogEntry, tokens []string) []adapter.CatalogEntry {
	var hits []scored
	for i, e := range entries {
		if s := score(e, tokens); s > 0 {
			hits = append(hits, scored{entry: e, score: s, index: i})
		}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].index < hits[b].index
	})
	if len(hits) > c.limit {
		hits = hits[:c.limit]
	}
	out := make([]adapter.CatalogEntry, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.entry)
	}
	return out
}

// score counts description tokens that hit a keyword or a name word.
// Keywords count double. Prefix matches cover inflected forms.
func score(e adapter.CatalogEntry, tokens []string) int {
	name := tokenize(e.Name)
	s := 0
	for _, t := range tokens {
		if len(t) < 3 {
			continue
		}
		for _, k := range e.Keywords {
			if related(t, strings.ToLower(k)) {
				s += 2
				break
			}
		}
		for _, w := range name {
			if related(t, w) {
				s++
				break
			}
		}
	}
	return s
}

func related(token, word string) bool {
	if len(word) < 3 {
		return token == word
	}
	return strings.HasPrefix(token, word) || (len(token) >= 4 && strings.HasPrefix(word, token))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
