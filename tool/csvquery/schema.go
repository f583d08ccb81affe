package csvquery

import (
	"strings"
)

// maxSampleValues caps the distinct sample values reported per column.
const maxSampleValues = 5

// Schema describes the structure of a loaded CSV file. Categories tag
// columns by header keywords so query planning can find the company /
// product / country columns regardless of the dataset's language.
type Schema struct {
	Columns      []string
	SampleValues map[string][]string
	RowCount     int
	Categories   map[string][]string
}

// category keyword sets, English and Spanish. Matching is ordered so a
// column lands in its first matching category.
var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"company", []string{"company", "empresa", "corporation", "manufacturer", "applicant"}},
	{"product", []string{"product", "medicamento", "drug", "medicine", "brand", "trademark"}},
	{"country", []string{"country", "pais", "nation", "location"}},
	{"approval", []string{"approval", "approved", "authorization", "permit", "license", "licencia"}},
	{"date", []string{"date", "fecha", "time", "year", "month"}},
	{"status", []string{"status", "estado", "state", "condition"}},
}

// analyzeSchema inspects headers and rows, collecting distinct sample values
// and categorizing columns.
func analyzeSchema(header []string, rows [][]string) *Schema {
	s := &Schema{
		Columns:      header,
		SampleValues: make(map[string][]string, len(header)),
		RowCount:     len(rows),
		Categories:   make(map[string][]string),
	}

	for i, col := range header {
		seen := make(map[string]bool)
		var samples []string
		for _, row := range rows {
			if len(samples) >= maxSampleValues {
				break
			}
			if i >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[i])
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			samples = append(samples, v)
		}
		s.SampleValues[col] = samples

		category := categorizeColumn(col)
		s.Categories[category] = append(s.Categories[category], col)
	}

	return s
}

func categorizeColumn(col string) string {
	lower := strings.ToLower(col)
	for _, cat := range categoryKeywords {
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				return cat.name
			}
		}
	}
	return "other"
}

// suggestColumn finds the closest real column for an unknown identifier.
// Matching passes, in order: case-insensitive exact, substring either way,
// alphanumeric-normalized, then shared category keywords.
func suggestColumn(target string, columns []string) string {
	lower := strings.ToLower(strings.TrimSpace(target))
	if lower == "" {
		return ""
	}

	for _, col := range columns {
		if strings.ToLower(strings.TrimSpace(col)) == lower {
			return col
		}
	}

	for _, col := range columns {
		colLower := strings.ToLower(col)
		if strings.Contains(colLower, lower) || strings.Contains(lower, colLower) {
			return col
		}
	}

	norm := normalizeIdent(lower)
	if norm != "" {
		for _, col := range columns {
			colNorm := normalizeIdent(col)
			if colNorm == norm || strings.Contains(colNorm, norm) || strings.Contains(norm, colNorm) {
				return col
			}
		}
	}

	if category := matchCategory(lower); category != "" {
		for _, col := range columns {
			if categorizeColumn(col) == category {
				return col
			}
		}
	}

	return ""
}

// matchCategory returns the category whose keywords appear in the target.
func matchCategory(target string) string {
	for _, cat := range categoryKeywords {
		for _, kw := range cat.keywords {
			if strings.Contains(target, kw) {
				return cat.name
			}
		}
	}
	return ""
}

// normalizeIdent lowercases and strips every non-alphanumeric rune.
func normalizeIdent(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// describe renders the schema for prompts and result headers.
func (s *Schema) describe() string {
	var b strings.Builder
	b.WriteString("Columns by category:\n")
	for _, cat := range categoryKeywords {
		if cols := s.Categories[cat.name]; len(cols) > 0 {
			b.WriteString("- " + cat.name + ": " + strings.Join(cols, ", ") + "\n")
		}
	}
	if cols := s.Categories["other"]; len(cols) > 0 {
		b.WriteString("- other: " + strings.Join(cols, ", ") + "\n")
	}

	b.WriteString("Sample values:\n")
	for _, col := range s.Columns {
		if samples := s.SampleValues[col]; len(samples) > 0 {
			b.WriteString("- " + col + ": " + strings.Join(samples, " | ") + "\n")
		}
	}

	return b.String()
}
