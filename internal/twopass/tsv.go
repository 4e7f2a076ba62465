package twopass

import (
	"regexp"
	"strconv"
	"strings"

	"offer-ai-service/internal/domain/model"
)

const (
	labelLabor    = "ARBETE"
	labelMaterial = "MATERIAL"
	labelRental   = "HYRA"

	defaultSupplier = "TBD"
	minFields       = 6
)

var (
	fencePattern  = regexp.MustCompile("(?i)```(tsv)?")
	floatPrefix   = regexp.MustCompile(`^[-+]?(?:\d+(?:[.,]\d*)?|[.,]\d+)(?:[eE][-+]?\d+)?`)
	integerPrefix = regexp.MustCompile(`^[-+]?\d+`)
)

// CleanTSV removes markdown fences and turns escaped tabs and newlines that
// some models emit into real ones.
func CleanTSV(raw string) string {
	s := fencePattern.ReplaceAllString(raw, "")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `\t`, "\t")
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}

// ParseTSV turns Pass 2 text into line items. Blank lines, comment lines and
// rows with fewer than six fields are dropped; rows with an unknown category
// are ignored. The function is pure.
func ParseTSV(text string) []model.LineItem {
	var items []model.LineItem
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(parts) < minFields {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		var supplier string
		if len(parts) > minFields {
			supplier = parts[6]
		}

		item := model.LineItem{
			Subtype:     parts[1],
			Description: parts[2],
			Quantity:    parseQuantity(parts[3]),
			Unit:        parts[4],
			UnitPrice:   parsePrice(parts[5]),
		}
		switch strings.ToUpper(parts[0]) {
		case labelLabor:
			item.Category = model.LineLabor
			item.UnitPrice = StandardHourlyRate
		case labelMaterial:
			item.Category = model.LineMaterial
			item.Supplier = supplier
			if item.Supplier == "" {
				item.Supplier = defaultSupplier
			}
		case labelRental:
			item.Category = model.LineRental
		default:
			continue
		}
		items = append(items, item)
	}
	return items
}

// parseQuantity reads a leading decimal number, accepting a decimal comma,
// a bare fraction (".5") and an exponent.
// Zero and unreadable values become 1.
func parseQuantity(s string) float64 {
	m := floatPrefix.FindString(s)
	if m == "" {
		return 1
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || v == 0 {
		return 1
	}
	return v
}

// parsePrice reads a leading integer; anything else is 0.
func parsePrice(s string) int {
	m := integerPrefix.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return v
}
