// Package ontology enriches free-text project descriptions with canonical
// domain terms from an embedded knowledge base.
package ontology

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"offer-ai-service/internal/domain/ports/adapter"
)

//go:embed ontology.yaml
var defaultOntology []byte

var _ adapter.OntologyEnricher = (*Enricher)(nil)

type Term struct {
	Canonical  string   `yaml:"canonical"`
	Synonyms   []string `yaml:"synonyms"`
	WorkBlocks []string `yaml:"work_blocks"`
	Scope      string   `yaml:"scope"`
}

type document struct {
	Terms []Term `yaml:"terms"`
}

type Enricher struct {
	terms []Term
}

// New loads the embedded ontology.
func New() (*Enricher, error) {
	return Parse(defaultOntology)
}

// Parse loads an ontology from YAML.
func Parse(raw []byte) (*Enricher, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ontology: %w", err)
	}
	for i, t := range doc.Terms {
		if t.Canonical == "" {
			return nil, fmt.Errorf("ontology: term %d has no canonical name", i)
		}
		for j, s := range t.Synonyms {
			doc.Terms[i].Synonyms[j] = strings.ToLower(s)
		}
	}
	return &Enricher{terms: doc.Terms}, nil
}

// Enrich appends the detected canonical terms to the description. The
// metadata lists matched terms, implied work blocks and scope hints, each
// in first-seen order.
func (e *Enricher) Enrich(ctx context.Context, description string) (*adapter.Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := tokenize(description)

	var matched, blocks, scopes []string
	seenBlock := map[string]bool{}
	seenScope := map[string]bool{}
	for _, t := range e.terms {
		syn, ok := t.match(words)
		if !ok {
			continue
		}
		matched = append(matched, t.Canonical+" ("+syn+")")
		for _, b := range t.WorkBlocks {
			if !seenBlock[b] {
				seenBlock[b] = true
				blocks = append(blocks, b)
			}
		}
		if t.Scope != "" && !seenScope[t.Scope] {
			seenScope[t.Scope] = true
			scopes = append(scopes, t.Scope)
		}
	}

	out := &adapter.Enrichment{
		Description: description,
		Metadata: map[string]any{
			"matchedTerms": nonNil(matched),
			"workBlocks":   nonNil(blocks),
			"scopeHints":   nonNil(scopes),
		},
	}
	if len(matched) > 0 {
		out.Description = strings.TrimSpace(description) + "\n\nIdentifierade begrepp: " + strings.Join(matched, ", ")
	}
	return out, nil
}

// match reports the first synonym found in words. Multi-word synonyms must
// appear as a contiguous sequence; single words match as prefixes so that
// inflected and compound forms ("takpannorna") are caught.
func (t Term) match(words []string) (string, bool) {
	for _, s := range t.Synonyms {
		parts := strings.Fields(s)
		if len(parts) == 0 {
			continue
		}
		for i := 0; i+len(parts) <= len(words); i++ {
			ok := true
			for k, p := range parts {
				w := words[i+k]
				if k == len(parts)-1 {
					ok = strings.HasPrefix(w, p)
				} else {
					ok = w == p
				}
				if !ok {
					break
				}
			}
			if ok {
				return s, true
			}
		}
	}
	return "", false
}

// WorkBlocks returns every work block the ontology knows about, sorted.
func (e *Enricher) WorkBlocks() []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range e.terms {
		for _, b := range t.WorkBlocks {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	sort.Strings(out)
	return out
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
