package review

import "strings"

// MissingFieldComments builds the auto-generated correction comment for a
// section: one "Falta <label>" line per empty governed field, in field
// order. Returns "" when nothing is missing.
func MissingFieldComments(sectionID string, values Values) string {
	section, ok := SectionByID(sectionID)
	if !ok {
		return ""
	}
	var lines []string
	for _, field := range section.Fields {
		if isMissing(values[field.Name]) {
			lines = append(lines, "Falta "+field.Label)
		}
	}
	return strings.Join(lines, "\n")
}
