package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"offer-ai-service/internal/domain/model"
	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/twopass"
)

var _ adapter.GenerationProvider = (*OfflineAdapter)(nil)

const offlineModel = "offline-heuristic"

var areaPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:kvm|m2|m²|kvadratmeter)`)

// OfflineAdapter answers without any network call. Structured requests get
// a keyword-derived project plan; free text requests get the reference TSV
// for the plan produced under the previous seed. It backs local runs and
// demos where no API key is configured.
type OfflineAdapter struct {
	mu    sync.Mutex
	plans map[int64]*model.ProjectPlan
}

func NewOfflineAdapter() *OfflineAdapter {
	return &OfflineAdapter{plans: make(map[int64]*model.ProjectPlan)}
}

func (a *OfflineAdapter) Name() string { return "offline" }

func (a *OfflineAdapter) Generate(ctx context.Context, req adapter.GenerationRequest) (adapter.Generation, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Generation{}, err
	}
	if req.Structured() {
		plan := PlanFromDescription(description(req.Prompt))
		b, err := json.Marshal(plan)
		if err != nil {
			return adapter.Generation{}, fmt.Errorf("offline: encode plan: %w", err)
		}
		a.mu.Lock()
		a.plans[req.Seed] = plan
		a.mu.Unlock()
		return a.generation(string(b), req.Prompt), nil
	}

	a.mu.Lock()
	plan, ok := a.plans[req.Seed-1]
	delete(a.plans, req.Seed-1)
	a.mu.Unlock()
	if !ok {
		plan = PlanFromDescription(req.Prompt)
	}
	return a.generation(twopass.ReferenceTSV(plan), req.Prompt), nil
}

func (a *OfflineAdapter) generation(content, prompt string) adapter.Generation {
	in := len(strings.Fields(prompt))
	out := len(strings.Fields(content))
	return adapter.Generation{
		Content: content,
		Model:   offlineModel,
		Usage:   adapter.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}

// description extracts the customer text from a Pass 1 prompt, or returns
// the prompt unchanged.
func description(prompt string) string {
	const marker = "PROJEKTBESKRIVNING:"
	i := strings.Index(prompt, marker)
	if i < 0 {
		return prompt
	}
	rest := prompt[i+len(marker):]
	if j := strings.Index(rest, "\n\n"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

// PlanFromDescription builds a schema-valid plan from keywords in the text.
func PlanFromDescription(text string) *model.ProjectPlan {
	l := strings.ToLower(text)
	area := firstArea(l)

	plan := &model.ProjectPlan{
		WorkBlocks:     []string{"forberedelse"},
		ReuseItems:     []string{},
		Assumptions:    []string{"Fri framkomlighet för fordon och material"},
		NotIncluded:    []string{"Bygglov och myndighetsavgifter"},
		RiskLevel:      2,
		RiskPercentage: 15,
		RiskReasoning:  "Uppskattning utan platsbesök",
	}
	generisk := "generisk"

	switch {
	case strings.Contains(l, "tak"):
		plan.ScopeTags = []string{"takbyte_papp"}
		if strings.Contains(l, "plåt") || strings.Contains(l, "plat") {
			plan.ScopeTags = []string{"takbyte_plat"}
		} else if strings.Contains(l, "tegel") {
			plan.ScopeTags = []string{"takbyte_tegel"}
		}
		plan.WorkBlocks = append(plan.WorkBlocks, "tak")
		plan.Quantities.TakAreaM2 = area
		plan.MaterialChoices.UnderlagspappTyp = &generisk
		plan.RiskOptions = model.RiskOptions{Byggstallning: true, Container: true, Tipp: true}
		if strings.Contains(l, "pannor") || strings.Contains(l, "återanvänd") {
			plan.ReuseItems = append(plan.ReuseItems, "takpannor")
		}
	case strings.Contains(l, "fasad"):
		plan.ScopeTags = []string{"fasad_panel_ny"}
		if strings.Contains(l, "puts") {
			plan.ScopeTags = []string{"fasad_puts_ny"}
		}
		plan.WorkBlocks = append(plan.WorkBlocks, "fasad")
		plan.Quantities.FasadAreaM2 = area
		plan.MaterialChoices.PanelDim = &generisk
		plan.RiskOptions = model.RiskOptions{Byggstallning: true, Container: true}
	case strings.Contains(l, "badrum"):
		plan.ScopeTags = []string{"badrum_totalrenovering"}
		plan.WorkBlocks = append(plan.WorkBlocks, "invandig_stomme", "ror", "ytskikt")
		plan.Quantities.GolvAreaM2 = area
		plan.MaterialChoices.TatskiktTyp = &generisk
		plan.RiskOptions = model.RiskOptions{Container: true, Skyddsplast: true}
	case strings.Contains(l, "kök") || strings.Contains(l, "kok"):
		plan.ScopeTags = []string{"kok_totalrenovering"}
		plan.WorkBlocks = append(plan.WorkBlocks, "invandig_stomme", "ytskikt")
		plan.Quantities.GolvAreaM2 = area
		plan.RiskOptions = model.RiskOptions{Container: true, Skyddsplast: true}
	default:
		plan.ScopeTags = []string{"renovering_generisk"}
		plan.WorkBlocks = append(plan.WorkBlocks, "ytskikt")
		plan.Quantities.GolvAreaM2 = area
		plan.RiskLevel = 3
		plan.RiskPercentage = 20
	}
	plan.WorkBlocks = append(plan.WorkBlocks, "avslut")
	return plan
}

func firstArea(text string) *float64 {
	m := areaPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
