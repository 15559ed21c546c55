package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractJSON recovers a JSON document from raw model output and unmarshals
// it into out. Models in JSON mode still occasionally wrap the payload in
// code fences or prose; this tries, in order:
//  1. the raw text as-is,
//  2. the contents of a ```json fenced block,
//  3. the widest {...} or [...] slice that validates.
func ExtractJSON(raw string, out any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty model output")
	}

	if gjson.Valid(raw) {
		return json.Unmarshal([]byte(raw), out)
	}

	if fenced := extractFenced(raw); fenced != "" && gjson.Valid(fenced) {
		return json.Unmarshal([]byte(fenced), out)
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(raw, pair[0])
		end := strings.LastIndexByte(raw, pair[1])
		if start >= 0 && end > start {
			candidate := raw[start : end+1]
			if gjson.Valid(candidate) {
				return json.Unmarshal([]byte(candidate), out)
			}
		}
	}

	return fmt.Errorf("no valid JSON found in model output")
}

func extractFenced(raw string) string {
	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(raw, marker)
		if start < 0 {
			continue
		}
		rest := raw[start+len(marker):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		return strings.TrimSpace(rest[:end])
	}
	return ""
}
