package twopass

import (
	"encoding/json"
	"fmt"
	"strings"

	"offer-ai-service/internal/domain/model"
)

const (
	pass1System = "Du är en expert på byggprojektering och offertskrivning för svenska byggprojekt. " +
		"Du analyserar projekt noggrant och returnerar strukturerad, komplett data enligt schema."
	pass2System = "Du genererar kompletta TSV-filer med arbetsposter och material för byggoffert. " +
		"Var detaljerad och noggrann."
)

// Pass1Prompt asks for the structured project plan.
func Pass1Prompt(description string) string {
	var b strings.Builder
	b.WriteString("Du är en expert på byggprojektering och offertskrivning för svenska byggprojekt.\n\n")
	b.WriteString("UPPDRAG: Analysera följande byggprojektbeskrivning och returnera strukturerad data enligt det strikt definierade schemat.\n\n")
	b.WriteString("PROJEKTBESKRIVNING:\n")
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\nANALYSERA:\n")
	fmt.Fprintf(&b, "1. work_blocks: Vilka byggfaser behövs? (välj från: %s)\n", strings.Join(WorkBlocks, ", "))
	b.WriteString("2. scope_tags: Vad är projekttypen? (t.ex. takbyte_papp, fasad_panel_ny, tillbyggnad_tra_1plan)\n")
	b.WriteString("3. quantities: Beräkna eller uppskatta areor och antal (tak_area_m2, fasad_area_m2, golv_area_m2, antal_fönster, antal_dorrar). Ange null om ej relevant.\n")
	b.WriteString("4. material_choices: Välj lämpliga material baserat på svensk byggstandard\n")
	b.WriteString("5. reuse_items: Vad kan återanvändas? (t.ex. takpannor, fönster, dorrar)\n")
	b.WriteString("6. risk_options: Behövs byggställning, lift, container, etc?\n")
	b.WriteString("7. assumptions: Lista antaganden (max 5)\n")
	b.WriteString("8. not_included: Vad ingår INTE? (max 5)\n")
	b.WriteString("9. risk_level (1-3): 1 = enkelt och tydligt, 2 = några osäkerheter, 3 = många okända faktorer\n")
	b.WriteString("10. risk_percentage (5-30%): Rekommenderad riskbuffert\n\n")
	b.WriteString("Returnera valid JSON enligt schemat.")
	return b.String()
}

// Pass2Prompt asks for the tab separated line items for a validated plan.
func Pass2Prompt(plan *model.ProjectPlan) string {
	a := areasOf(plan)
	var b strings.Builder
	b.WriteString("TSV-GENERATOR för komplett byggoffert\n\n")
	b.WriteString("FORMAT: KATEGORI\\tTYP\\tBESKRIVNING\\tMÄNGD\\tENHET\\tA-PRIS\\tLEVERANTÖR\n")
	b.WriteString("KATEGORI är ARBETE, MATERIAL eller HYRA.\n\n")
	b.WriteString("MÅL: 15-20 ARBETSMOMENT (separata per delmoment) + 30-40 MATERIAL\n\n")

	b.WriteString("ARBETSMOMENT PER WORK_BLOCK:\n")
	block := ""
	for _, l := range LaborEstimates(plan) {
		if l.Block != block {
			block = l.Block
			fmt.Fprintf(&b, "\n%s:\n", block)
		}
		fmt.Fprintf(&b, "- %q (%d tim)\n", l.Description, l.Hours)
	}

	b.WriteString("\nMATERIAL PER WORK_BLOCK:\n")
	for _, m := range MaterialEstimates(plan) {
		fmt.Fprintf(&b, "- %s: %s %d%s\n", m.Block, m.Description, m.Quantity, m.Unit)
	}

	b.WriteString("\nMÄNGDER:\n")
	fmt.Fprintf(&b, "- Tak: %gm²\n- Fasad: %gm²\n- Golv: %gm²\n- Gips: %.0fm²\n", a.tak, a.fasad, a.golv, a.gips)
	fmt.Fprintf(&b, "\nWORK_BLOCKS: %s\n", strings.Join(plan.WorkBlocks, ", "))

	b.WriteString("\nEXEMPEL TSV:\n\n")
	b.WriteString(ReferenceTSV(plan))

	b.WriteString("\nGENERERA NU KOMPLETT TSV (15-20 ARBETSMOMENT + 30-40 MATERIAL):\n\n")
	if raw, err := json.MarshalIndent(plan, "", "  "); err == nil {
		b.Write(raw)
	}
	return b.String()
}

// withOntology appends enrichment metadata to the Pass 1 user prompt.
func withOntology(prompt string, meta map[string]any) string {
	if len(meta) == 0 {
		return prompt
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return prompt
	}
	return prompt + "\n\nONTOLOGI:\n" + string(raw)
}
