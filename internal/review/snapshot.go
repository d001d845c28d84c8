package review

import (
	"encoding/json"
	"fmt"
	"sort"
)

// CaptureSnapshot copies the section's governed field values as the drift
// baseline. Missing fields are recorded as explicit nulls so a later fill-in
// is visible as a change.
func CaptureSnapshot(sectionID string, values Values) map[string]any {
	section, ok := SectionByID(sectionID)
	if !ok {
		return nil
	}
	snapshot := make(map[string]any, len(section.Fields))
	for _, field := range section.Fields {
		snapshot[field.Name] = normalize(values[field.Name])
	}
	return snapshot
}

// isMissing reports whether a field value counts as empty for comment
// generation and completeness: nil, empty string, or an empty list.
func isMissing(value any) bool {
	return normalize(value) == nil
}

// normalize maps the empty shapes (nil, "", empty list) to nil so null and
// undefined compare as equivalent.
func normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return v
	case []any:
		if len(v) == 0 {
			return nil
		}
		return v
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	default:
		return value
	}
}

// valuesEqual compares a snapshot value with a live value. Scalars compare
// by value with null and undefined equivalent; lists compare as sorted sets
// of strings. A shape the engine cannot evaluate compares as equal, so a
// comparison error never spuriously reopens a section.
func valuesEqual(a, b any) bool {
	a = normalize(a)
	b = normalize(b)
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	setA, aIsList := toStringSet(a)
	setB, bIsList := toStringSet(b)
	if aIsList != bIsList {
		// A list on one side and a scalar on the other is a shape the
		// engine cannot evaluate; fail safe as "no drift".
		return true
	}
	if aIsList {
		if len(setA) != len(setB) {
			return false
		}
		for i := range setA {
			if setA[i] != setB[i] {
				return false
			}
		}
		return true
	}

	return scalarKey(a) == scalarKey(b)
}

// toStringSet renders a list value as its sorted string elements.
func toStringSet(value any) ([]string, bool) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []string:
		items = make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
	default:
		return nil, false
	}

	set := make([]string, 0, len(items))
	for _, item := range items {
		set = append(set, scalarKey(item))
	}
	sort.Strings(set)
	return set, true
}

// scalarKey renders a scalar comparably regardless of the numeric type it
// arrived as (JSON decoding yields float64, in-memory values may not).
func scalarKey(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case float32:
		return fmt.Sprintf("%g", float64(v))
	case int:
		return fmt.Sprintf("%g", float64(v))
	case int64:
		return fmt.Sprintf("%g", float64(v))
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		if data, err := json.Marshal(value); err == nil {
			return string(data)
		}
		return fmt.Sprint(value)
	}
}
