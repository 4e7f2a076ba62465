// Package export renders completed offers as spreadsheet workbooks.
package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"offer-ai-service/internal/domain/model"
)

// SheetName is the single sheet every exported workbook carries.
const SheetName = "Offert"

const vatRate = 0.25

var itemHeaders = []string{"Beskrivning", "Kategori", "Mängd", "Enhet", "À-pris", "Summa", "Leverantör"}

type sheetWriter struct {
	f    *excelize.File
	row  int
	bold int
}

func (w *sheetWriter) write(values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		_ = w.f.SetCellValue(SheetName, cell, v)
	}
	w.row++
}

func (w *sheetWriter) heading(text string) {
	cell, _ := excelize.CoordinatesToCellName(1, w.row)
	_ = w.f.SetCellValue(SheetName, cell, text)
	_ = w.f.SetCellStyle(SheetName, cell, cell, w.bold)
	w.row++
}

func (w *sheetWriter) section(title string, items []model.LineItem) {
	w.heading(title)
	start := w.row
	w.write(toAny(itemHeaders)...)
	from, _ := excelize.CoordinatesToCellName(1, start)
	to, _ := excelize.CoordinatesToCellName(len(itemHeaders), start)
	_ = w.f.SetCellStyle(SheetName, from, to, w.bold)
	for _, it := range items {
		values := []any{it.Description, it.Subtype, it.Quantity, it.Unit, it.UnitPrice, round2(it.Total())}
		if it.Supplier != "" && it.Supplier != "-" {
			values = append(values, it.Supplier)
		}
		w.write(values...)
	}
	w.row++
}

// WriteOffer builds the workbook for one offer. Sections follow the offer:
// header, work, material, optional, then totals.
func WriteOffer(offer *model.Offer, jobID string) ([]byte, error) {
	if offer == nil {
		return nil, fmt.Errorf("export: nil offer")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("export: style: %w", err)
	}
	w := &sheetWriter{f: f, row: 1, bold: bold}

	w.heading(offer.ProjectTitle)
	w.write("Jobb-ID", jobID)
	if len(offer.ProjectType) > 0 {
		w.write("Projekttyp", joinComma(offer.ProjectType))
	}
	w.write("Beskrivning", offer.ProjectDescription)
	w.row++

	w.section("Arbetsmoment", offer.WorkItems)
	w.section("Material", offer.MaterialItems)
	w.section("Tillval och hyra", offer.OptionalItems)

	if len(offer.Assumptions) > 0 {
		w.heading("Antaganden")
		for _, a := range offer.Assumptions {
			w.write(a)
		}
		w.row++
	}
	if len(offer.NotIncludedItems) > 0 {
		w.heading("Ingår ej")
		for _, a := range offer.NotIncludedItems {
			w.write(a)
		}
		w.row++
	}

	t := offer.TotalEstimate
	w.heading("Sammanställning")
	w.write("Arbetstimmar", t.WorkHours)
	w.write("Arbetskostnad", t.WorkCost)
	w.write("Materialkostnad", t.MaterialCost)
	w.write("Tillval", t.OptionalCost)
	w.write(fmt.Sprintf("Riskpåslag (%d%%)", offer.RiskAssessment.Percentage), round2(t.TotalExclVat*float64(offer.RiskAssessment.Percentage)/100))
	w.write("Totalt exkl. moms", t.TotalExclVat)
	w.write("Moms 25%", round2(t.TotalExclVat*vatRate))
	w.write("Totalt inkl. moms", round2(t.TotalExclVat*(1+vatRate)))

	_ = f.SetColWidth(SheetName, "A", "A", 48)
	_ = f.SetColWidth(SheetName, "B", "B", 18)
	_ = f.SetColWidth(SheetName, "C", "F", 12)
	_ = f.SetColWidth(SheetName, "G", "G", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func joinComma(s []string) string {
	out := ""
	for i, v := range s {
		if i > 0 {
			out += ", "
		}
		out += v
	}
	return out
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
