package twopass

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"offer-ai-service/internal/domain"
	"offer-ai-service/internal/domain/model"
)

// SchemaName is the name the strict Pass 1 schema is registered under with the provider.
const SchemaName = "project_plan"

var (
	WorkBlocks = []string{
		"forberedelse", "mark", "grund", "stomme", "tak", "fasad",
		"oppningar", "invandig_stomme", "ror", "ytskikt", "avslut",
	}
	ScopeTags = []string{
		"takbyte_papp", "takbyte_plat", "takbyte_tegel", "tak_reparation",
		"fasad_panel_ny", "fasad_panel_malning", "fasad_puts_ny", "fasad_puts_renovering",
		"badrum_totalrenovering", "badrum_delrenovering", "kok_totalrenovering", "kok_delrenovering",
		"tillbyggnad_tra_1plan", "tillbyggnad_tra_2plan", "altan_tradack",
		"grund_platta", "grund_plintar", "renovering_generisk",
	}
	ReuseItems = []string{
		"takpannor", "taktegel", "takplat", "fönster", "dorrar",
		"kakel", "klinker", "panel", "golv", "koksluckor",
	}
)

// materialEnums keeps the closed value set per material choice. Order is
// the order of the required list.
var materialEnums = []struct {
	field  string
	values []string
}{
	{"raaspont_dim", []string{"22x95", "23x95", "25x100", "generisk"}},
	{"lakt_bar_dim", []string{"38x38", "38x50", "45x45", "generisk"}},
	{"lakt_stro_dim", []string{"28x70", "25x75", "32x70", "generisk"}},
	{"underlagspapp_typ", []string{"S-T", "T-Y", "generisk"}},
	{"takpanel_typ", []string{"trapezplat", "bandtackning", "falsad_plat", "generisk"}},
	{"regel_dim", []string{"45x45", "45x95", "45x145", "45x170", "45x195", "45x220", "generisk"}},
	{"bjalklag_dim", []string{"45x195", "45x220", "45x245", "generisk"}},
	{"isoleringsskiva_tjocklek", []string{"95mm", "145mm", "170mm", "195mm", "220mm", "generisk"}},
	{"gipsskiva_typ", []string{"13mm standard", "15mm brandskydd", "13mm fukttålig", "generisk"}},
	{"panel_dim", []string{"22x100", "25x100", "28x120", "28x145", "generisk"}},
	{"panel_montering", []string{"liggande", "staende", "generisk"}},
	{"puts_typ", []string{"mineralputz", "akrylputz", "silikonputz", "kalkbruksputz", "generisk"}},
	{"kakel_storlek", []string{"200x200", "300x300", "300x600", "generisk"}},
	{"klinker_storlek", []string{"300x300", "600x600", "generisk"}},
	{"tatskikt_typ", []string{"membran", "flytande", "generisk"}},
}

var (
	numberQuantities  = []string{"tak_area_m2", "fasad_area_m2", "golv_area_m2", "raaspont_byte_m2", "gips_area_m2", "kakel_area_m2", "langd_meter", "bredd_meter", "hojd_meter"}
	integerQuantities = []string{"antal_fönster", "antal_dorrar"}
	riskOptionFields  = []string{"byggstallning", "lift", "container", "skyddsplast", "tipp"}
)

// Pass1Schema returns a fresh copy of the closed project-plan schema. Every
// object forbids additional properties and lists all of its fields as
// required, which is what strict structured output demands.
func Pass1Schema() map[string]any {
	quantities := map[string]any{}
	var quantityKeys []string
	for _, k := range numberQuantities {
		quantities[k] = map[string]any{"type": []any{"number", "null"}, "minimum": 0}
		quantityKeys = append(quantityKeys, k)
	}
	for _, k := range integerQuantities {
		quantities[k] = map[string]any{"type": []any{"integer", "null"}, "minimum": 0}
		quantityKeys = append(quantityKeys, k)
	}

	materials := map[string]any{}
	var materialKeys []string
	for _, m := range materialEnums {
		enum := make([]any, 0, len(m.values)+1)
		for _, v := range m.values {
			enum = append(enum, v)
		}
		enum = append(enum, nil)
		materials[m.field] = map[string]any{"type": []any{"string", "null"}, "enum": enum}
		materialKeys = append(materialKeys, m.field)
	}

	risks := map[string]any{}
	for _, k := range riskOptionFields {
		risks[k] = map[string]any{"type": "boolean"}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"work_blocks":      enumArray(WorkBlocks, 2, 15),
			"scope_tags":       enumArray(ScopeTags, 1, 2),
			"quantities":       closedObject(quantities, quantityKeys),
			"material_choices": closedObject(materials, materialKeys),
			"reuse_items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": toAny(ReuseItems)},
			},
			"risk_options":    closedObject(risks, riskOptionFields),
			"assumptions":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": 5},
			"not_included":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "maxItems": 5},
			"risk_level":      map[string]any{"type": "integer", "enum": []any{1, 2, 3}},
			"risk_percentage": map[string]any{"type": "integer", "minimum": 5, "maximum": 30},
			"risk_reasoning":  map[string]any{"type": "string", "maxLength": 100},
		},
		"required": []string{
			"work_blocks", "scope_tags", "quantities", "material_choices", "reuse_items",
			"risk_options", "assumptions", "not_included", "risk_level", "risk_percentage", "risk_reasoning",
		},
		"additionalProperties": false,
	}
}

func enumArray(values []string, minItems, maxItems int) map[string]any {
	return map[string]any{
		"type":     "array",
		"items":    map[string]any{"type": "string", "enum": toAny(values)},
		"minItems": minItems,
		"maxItems": maxItems,
	}
}

func closedObject(props map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// PlanValidator enforces the Pass 1 contract locally, independent of whether
// the provider honoured it.
type PlanValidator struct {
	schema *jsonschema.Schema
}

func NewPlanValidator() (*PlanValidator, error) {
	b, err := json.Marshal(Pass1Schema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("project_plan.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("project_plan.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &PlanValidator{schema: schema}, nil
}

// Parse validates raw provider output and decodes it into a plan.
func (v *PlanValidator) Parse(raw string) (*model.ProjectPlan, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: pass 1 returned invalid JSON: %v", domain.ErrGeneration, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: pass 1 plan does not match schema: %v", domain.ErrGeneration, err)
	}
	var plan model.ProjectPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: decode plan: %v", domain.ErrGeneration, err)
	}
	return &plan, nil
}
