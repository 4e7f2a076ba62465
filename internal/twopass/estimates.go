package twopass

import (
	"fmt"
	"math"
	"strings"

	"offer-ai-service/internal/domain/model"
)

// StandardHourlyRate is the labor price in SEK per hour. Labor rows are
// always priced at this rate, whatever the provider wrote.
const StandardHourlyRate = 550

// LaborEstimate is a reference work step with an hour figure scaled from
// the plan's quantities.
type LaborEstimate struct {
	Block       string
	Subtype     string
	Description string
	Hours       int
}

// MaterialEstimate is a reference material line with a quantity scaled
// from the plan's quantities.
type MaterialEstimate struct {
	Block       string
	Subtype     string
	Description string
	Quantity    int
	Unit        string
	UnitPrice   int
	Supplier    string
}

// scaled returns ceil(area*factor), or fallback when the area is unknown.
func scaled(area, factor float64, fallback int) int {
	if area > 0 {
		return int(math.Ceil(area * factor))
	}
	return fallback
}

type planAreas struct {
	tak, fasad, golv, gips float64
	fonster, dorrar        int
}

func areasOf(plan *model.ProjectPlan) planAreas {
	q := plan.Quantities
	a := planAreas{
		tak:     model.Float(q.TakAreaM2),
		fasad:   model.Float(q.FasadAreaM2),
		golv:    model.Float(q.GolvAreaM2),
		gips:    model.Float(q.GipsAreaM2),
		fonster: model.Int(q.AntalFonster),
		dorrar:  model.Int(q.AntalDorrar),
	}
	if a.gips == 0 {
		a.gips = a.golv * 2.4
	}
	return a
}

// activeBlocks lists the plan's work blocks in canonical order. Blocks that
// a positive quantity clearly implies are included even when the plan left
// them out, and the closing block is always present.
func activeBlocks(plan *model.ProjectPlan) []string {
	a := areasOf(plan)
	implied := map[string]bool{
		"tak":       a.tak > 0,
		"fasad":     a.fasad > 0,
		"oppningar": a.fonster > 0 || a.dorrar > 0,
		"avslut":    true,
	}
	var out []string
	for _, b := range WorkBlocks {
		if plan.HasWorkBlock(b) || implied[b] {
			out = append(out, b)
		}
	}
	return out
}

// LaborEstimates returns the reference work steps for every active block.
func LaborEstimates(plan *model.ProjectPlan) []LaborEstimate {
	a := areasOf(plan)
	var out []LaborEstimate
	add := func(block, subtype, desc string, hours int) {
		if hours > 0 {
			out = append(out, LaborEstimate{Block: block, Subtype: subtype, Description: desc, Hours: hours})
		}
	}
	for _, b := range activeBlocks(plan) {
		switch b {
		case "forberedelse":
			add(b, "Förberedelse", "Byggställning montering/demontering", 8)
			add(b, "Förberedelse", "Skyddsåtgärder och byggtorkering", 4)
		case "mark":
			add(b, "Mark", "Schaktning", scaled(a.golv, 0.25, 6))
			add(b, "Mark", "Läggning dräneringsrör", 4)
		case "grund":
			add(b, "Grund", "Montering av gjutform", 8)
			add(b, "Grund", "Armering", 6)
			add(b, "Grund", "Gjutning platta", scaled(a.golv, 0.4, 12))
		case "stomme":
			add(b, "Stomme", "Resning ytterväggar", scaled(a.golv, 1.0, 30))
			add(b, "Stomme", "Montering bjälklag", scaled(a.golv, 0.5, 15))
			add(b, "Stomme", "Isolering ytterväggar", scaled(a.golv, 0.4, 12))
		case "tak":
			add(b, "Tak", "Montering takstolar", scaled(a.tak, 0.3, 10))
			add(b, "Tak", "Montering läkt och papp", scaled(a.tak, 0.4, 14))
		case "fasad":
			add(b, "Fasad", "Grundbehandling fasad", scaled(a.fasad, 0.4, 16))
			add(b, "Fasad", "Putsning/panelmontering", scaled(a.fasad, 0.6, 24))
			add(b, "Fasad", "Finish fasad", scaled(a.fasad, 0.3, 12))
		case "oppningar":
			add(b, "Öppningar", "Montering fönster", a.fonster*3)
			add(b, "Öppningar", "Montering dörrar", a.dorrar*4)
		case "invandig_stomme":
			add(b, "Invändig stomme", "Resning innerväggar", scaled(a.gips, 0.15, 12))
			add(b, "Invändig stomme", "Montering gips", scaled(a.gips, 0.25, 20))
			add(b, "Invändig stomme", "Fogning gips", scaled(a.gips, 0.15, 12))
		case "ytskikt":
			add(b, "Ytskikt", "Spackling", scaled(a.gips, 0.15, 12))
			add(b, "Ytskikt", "Grundmålning", scaled(a.gips, 0.1, 8))
			add(b, "Ytskikt", "Slutmålning", scaled(a.gips, 0.1, 8))
			add(b, "Ytskikt", "Golvbeläggning", scaled(a.golv, 0.6, 20))
		case "avslut":
			add(b, "Avslut", "Slutbesiktning", 1)
			add(b, "Avslut", "Slutstädning", 4)
		}
	}
	return out
}

// MaterialEstimates returns the area-driven material quantities. Lines whose
// quantity would be zero are left out.
func MaterialEstimates(plan *model.ProjectPlan) []MaterialEstimate {
	a := areasOf(plan)
	var out []MaterialEstimate
	add := func(m MaterialEstimate) {
		if m.Quantity > 0 {
			out = append(out, m)
		}
	}
	ceil := func(v float64) int { return int(math.Ceil(v)) }
	for _, b := range activeBlocks(plan) {
		switch b {
		case "forberedelse":
			add(MaterialEstimate{b, "Förbrukning", "Presenning 4x6m", 2, "st", 350, "Byggmax"})
		case "grund":
			add(MaterialEstimate{b, "Grund", "Betong K30", ceil(a.golv * 0.2), "m³", 1200, "Betongleverantör"})
			add(MaterialEstimate{b, "Grund", "Armeringsjärn", ceil(a.golv * 8), "kg", 15, "Beijer"})
		case "stomme":
			add(MaterialEstimate{b, "Stomme", "Reglar C24", ceil(a.golv * 2), "m", 35, "Beijer"})
			add(MaterialEstimate{b, "Stomme", "Isolering mineralull", ceil(a.golv * 1.05), "m²", 60, "Beijer"})
		case "tak":
			add(MaterialEstimate{b, "Tak", "Underlagspapp", ceil(a.tak * 1.1), "m²", 45, "Beijer"})
			add(MaterialEstimate{b, "Tak", "Läkt 25x38", ceil(a.tak * 3), "m", 9, "Beijer"})
		case "fasad":
			add(MaterialEstimate{b, "Fasad", "Puts/panel", ceil(a.fasad * 1.05), "m²", 180, "Beijer"})
		case "invandig_stomme":
			add(MaterialEstimate{b, "Invändigt", "Gipsskiva (standard dimension)", ceil(a.gips), "m²", 100, "Byggmax"})
		case "ytskikt":
			add(MaterialEstimate{b, "Ytskikt", "Golvmaterial", ceil(a.golv), "m²", 350, "K-rauta"})
		}
	}
	return out
}

// ReferenceTSV renders the estimates in the Pass 2 row format.
func ReferenceTSV(plan *model.ProjectPlan) string {
	var b strings.Builder
	for _, l := range LaborEstimates(plan) {
		fmt.Fprintf(&b, "ARBETE\t%s\t%s\t%d\ttim\t%d\t-\n", l.Subtype, l.Description, l.Hours, StandardHourlyRate)
	}
	for _, m := range MaterialEstimates(plan) {
		fmt.Fprintf(&b, "MATERIAL\t%s\t%s\t%d\t%s\t%d\t%s\n", m.Subtype, m.Description, m.Quantity, m.Unit, m.UnitPrice, m.Supplier)
	}
	r := plan.RiskOptions
	if r.Byggstallning {
		b.WriteString("HYRA\tStällning\tByggställning hyra\t4\tvecka\t2500\t-\n")
	}
	if r.Container {
		b.WriteString("HYRA\tAvfall\tContainer 10m³\t1\tst\t4500\t-\n")
	}
	if r.Lift {
		b.WriteString("HYRA\tLift\tSaxlift\t5\tdag\t1200\t-\n")
	}
	return b.String()
}
