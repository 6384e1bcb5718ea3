package jsonx

import (
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoObject = errors.New("no json object found in payload")

// Extract parses model output that should contain a single JSON object but may
// be wrapped in markdown fences or surrounded by prose. It first strips fences,
// then falls back to the outermost brace-delimited slice.
func Extract(raw string, out any) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ErrNoObject
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ErrNoObject
	}

	return json.Unmarshal([]byte(text[start:end+1]), out)
}
