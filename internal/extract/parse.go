package extract

import (
	"encoding/json"
	"strings"
)

// extractLastJSONBlock finds the last ```json ... ``` fenced code block in the text.
func extractLastJSONBlock(text string) string {
	lastIdx := -1
	searchFrom := 0
	for {
		idx := strings.Index(text[searchFrom:], "```json")
		if idx < 0 {
			break
		}
		lastIdx = searchFrom + idx
		searchFrom = lastIdx + 7
	}
	if lastIdx < 0 {
		return ""
	}

	start := lastIdx + 7 // skip "```json"
	for start < len(text) && (text[start] == ' ' || text[start] == '\t' || text[start] == '\n' || text[start] == '\r') {
		start++
	}

	end := strings.Index(text[start:], "```")
	if end < 0 {
		return ""
	}

	return strings.TrimSpace(text[start : start+end])
}

// extractRawJSON tries to find the last top-level JSON object {...} in the text.
func extractRawJSON(text string) string {
	// Find the last '}' and try to match it to a '{'.
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '}' {
			depth := 0
			for j := i; j >= 0; j-- {
				switch text[j] {
				case '}':
					depth++
				case '{':
					depth--
				}
				if depth == 0 {
					candidate := strings.TrimSpace(text[j : i+1])
					// Validate it's actually JSON.
					var parsed map[string]interface{}
					if json.Unmarshal([]byte(candidate), &parsed) == nil {
						return candidate
					}
					return ""
				}
			}
			break
		}
	}
	return ""
}
