//go:build !integration

package ontology

import (
	"context"
	"strings"
	"testing"

	"offer-ai-service/internal/twopass"
)

func TestEnrich_RoofDescription(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	res, err := e.Enrich(context.Background(), "Vi vill lägga om taket och byta takpannorna, ca 140 kvm.")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !strings.Contains(res.Description, "Identifierade begrepp:") {
		t.Fatalf("description not enriched: %q", res.Description)
	}
	if !strings.HasPrefix(res.Description, "Vi vill lägga om taket") {
		t.Fatalf("original text must lead: %q", res.Description)
	}

	blocks := res.Metadata["workBlocks"].([]string)
	if !contains(blocks, "tak") {
		t.Fatalf("expected tak block, got %v", blocks)
	}
	scopes := res.Metadata["scopeHints"].([]string)
	if !contains(scopes, "takbyte_tegel") {
		t.Fatalf("expected takbyte_tegel hint, got %v", scopes)
	}
}

func TestEnrich_NoMatchKeepsDescription(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	desc := "Hej, kan ni ringa mig?"
	res, err := e.Enrich(context.Background(), desc)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if res.Description != desc {
		t.Fatalf("unmatched description should be unchanged, got %q", res.Description)
	}
	if got := res.Metadata["matchedTerms"].([]string); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestEnrich_MultiWordSynonym(t *testing.T) {
	e, err := Parse([]byte(`
terms:
  - canonical: tillbyggnad
    synonyms: [bygga till]
    work_blocks: [stomme]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	res, _ := e.Enrich(context.Background(), "Vi vill Bygga Till huset")
	if got := res.Metadata["matchedTerms"].([]string); len(got) != 1 {
		t.Fatalf("expected one match, got %v", got)
	}
	res, _ = e.Enrich(context.Background(), "bygga ett till")
	if got := res.Metadata["matchedTerms"].([]string); len(got) != 0 {
		t.Fatalf("non-contiguous words must not match, got %v", got)
	}
}

func TestParse_RejectsNamelessTerm(t *testing.T) {
	if _, err := Parse([]byte("terms:\n  - synonyms: [x]\n")); err == nil {
		t.Fatal("expected error for term without canonical name")
	}
}

// Every block in the knowledge base must be one the plan schema accepts.
func TestOntology_WorkBlocksAreKnown(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, b := range e.WorkBlocks() {
		if !contains(twopass.WorkBlocks, b) {
			t.Errorf("unknown work block %q", b)
		}
	}
	for _, term := range e.terms {
		if term.Scope != "" && !contains(twopass.ScopeTags, term.Scope) {
			t.Errorf("unknown scope %q on %s", term.Scope, term.Canonical)
		}
	}
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
