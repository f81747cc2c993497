package postgres

import "strings"

// Tool inputs arrive as decoded JSON, so numbers are float64 and arrays are
// []any. These helpers normalize the shapes the services care about.

func stringInput(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intInput(input map[string]any, key string, fallback int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func boolInput(input map[string]any, key string, fallback bool) bool {
	if v, ok := input[key].(bool); ok {
		return v
	}
	return fallback
}

func stringSliceInput(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		if direct, ok := input[key].([]string); ok {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
