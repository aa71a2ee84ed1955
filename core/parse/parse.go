package parse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSON is returned when the text holds nothing that looks like JSON.
var ErrNoJSON = errors.New("no JSON object or array found")

// JSONAs decodes a JSON value embedded in model output into T. It strips
// markdown fences and surrounding prose, repairs malformed JSON with
// jsonrepair, and as a last step unwraps {"type":..., "value":...} envelopes
// that models sometimes emit in place of plain values.
func JSONAs[T any](content string) (T, error) {
	var result T

	candidate, err := ExtractJSON(content)
	if err != nil {
		return result, err
	}

	if err = sonic.UnmarshalString(candidate, &result); err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr != nil {
		return result, fmt.Errorf("unmarshal %T: %w (repair failed: %v)", result, err, repairErr)
	}
	if err = sonic.UnmarshalString(repaired, &result); err == nil {
		return result, nil
	}

	if unwrapped, unwrapErr := unwrapSchemaValues(repaired); unwrapErr == nil {
		if err = sonic.UnmarshalString(unwrapped, &result); err == nil {
			return result, nil
		}
	}
	return result, fmt.Errorf("unmarshal repaired JSON as %T: %w", result, err)
}

// ExtractJSON returns the outermost JSON object or array in content. Code
// fences are removed first; an unterminated value runs to the end of the text
// so that jsonrepair can close it.
func ExtractJSON(content string) (string, error) {
	text := stripFences(strings.TrimSpace(content))

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	opening := text[start]
	closing := byte('}')
	if opening == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for index := start; index < len(text); index++ {
		character := text[index]
		switch {
		case escaped:
			escaped = false
		case character == '\\' && inString:
			escaped = true
		case character == '"':
			inString = !inString
		case inString:
		case character == opening:
			depth++
		case character == closing:
			depth--
			if depth == 0 {
				return text[start : index+1], nil
			}
		}
	}
	return text[start:], nil
}

func stripFences(text string) string {
	fenceStart := strings.Index(text, "```")
	if fenceStart < 0 {
		return text
	}
	body := text[fenceStart+3:]
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	}
	if fenceEnd := strings.Index(body, "```"); fenceEnd >= 0 {
		body = body[:fenceEnd]
	}
	return strings.TrimSpace(body)
}

// unwrapSchemaValues rewrites {"name": {"type": "string", "value": "x"}} as
// {"name": "x"} at any depth.
func unwrapSchemaValues(jsonText string) (string, error) {
	var data any
	if err := sonic.UnmarshalString(jsonText, &data); err != nil {
		return "", err
	}
	return sonic.MarshalString(recursiveUnwrap(data))
}

func recursiveUnwrap(data any) any {
	switch value := data.(type) {
	case map[string]any:
		if _, hasType := value["type"]; hasType {
			if inner, hasValue := value["value"]; hasValue && len(value) == 2 {
				return recursiveUnwrap(inner)
			}
		}
		result := make(map[string]any, len(value))
		for key, item := range value {
			result[key] = recursiveUnwrap(item)
		}
		return result
	case []any:
		result := make([]any, len(value))
		for index, item := range value {
			result[index] = recursiveUnwrap(item)
		}
		return result
	default:
		return data
	}
}
