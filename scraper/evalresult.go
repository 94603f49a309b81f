package scraper

import "fmt"

// In-page JavaScript returns loosely shaped values: a bare string, a list,
// a map of fields, or a wrapper object around one of those. The helpers
// below normalize every shape at the browser boundary so the extraction
// code only ever sees []string and map[string]string.

var wrapperKeys = []string{"links", "items", "results", "data"}

// StringList flattens an Evaluate result into a list of non-empty strings.
func StringList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		var out []string
		for _, item := range val {
			out = append(out, StringList(item)...)
		}
		return out
	case map[string]any:
		for _, key := range wrapperKeys {
			if inner, ok := val[key]; ok {
				return StringList(inner)
			}
		}
		return nil
	default:
		return nil
	}
}

// StringMap coerces an Evaluate result into a field map. Non-string values
// are stringified; nested wrapper objects are unwrapped first.
func StringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range wrapperKeys {
		if inner, ok := m[key].(map[string]any); ok {
			m = inner
			break
		}
	}

	out := make(map[string]string, len(m))
	for k, raw := range m {
		switch val := raw.(type) {
		case nil:
			continue
		case string:
			if val != "" {
				out[k] = val
			}
		case float64:
			out[k] = trimFloat(val)
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		default:
			continue
		}
	}
	return out
}

// trimFloat renders whole numbers without a fractional part, matching how
// the page scripts emit numeric fields.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
