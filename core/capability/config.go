package capability

import (
	"fmt"
	"strconv"
	"strings"
)

// Config is the option map of a node or the keyword arguments of a task.
// Values come from decoded JSON or YAML, so numbers may arrive as float64,
// int or numeric strings; the accessors normalize them.
type Config map[string]any

// String returns the value under key as a trimmed string, or fallback when
// the key is missing or empty.
func (config Config) String(key, fallback string) string {
	value, exists := config[key]
	if !exists || value == nil {
		return fallback
	}

	text := strings.TrimSpace(fmt.Sprint(value))
	if text == "" {
		return fallback
	}
	return text
}

// Int returns the value under key as an int, or fallback when it is missing
// or not numeric.
func (config Config) Int(key string, fallback int) int {
	switch typed := config[key].(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case float32:
		return int(typed)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			return parsed
		}
	}
	return fallback
}

// Float returns the value under key as a float64, or fallback.
func (config Config) Float(key string, fallback float64) float64 {
	switch typed := config[key].(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// Bool returns the value under key as a bool, or fallback.
func (config Config) Bool(key string, fallback bool) bool {
	switch typed := config[key].(type) {
	case bool:
		return typed
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(typed)); err == nil {
			return parsed
		}
	}
	return fallback
}

// Strings returns the value under key as a list of non-empty strings. A
// single string is split on commas.
func (config Config) Strings(key string) []string {
	var raw []string
	switch typed := config[key].(type) {
	case []string:
		raw = typed
	case []any:
		for _, item := range typed {
			if item != nil {
				raw = append(raw, fmt.Sprint(item))
			}
		}
	case string:
		raw = strings.Split(typed, ",")
	}

	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
