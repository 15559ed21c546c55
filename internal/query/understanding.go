// Package query prepares raw user queries for retrieval: normalization,
// language detection, intent classification, constraint extraction, and
// LLM-backed decomposition of complex questions.
package query

import (
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/unicode/norm"
)

// Intent labels assigned by the heuristic classifier.
const (
	IntentComparison = "comparison"
	IntentHowTo      = "how_to"
	IntentFactual    = "factual"
	IntentCausal     = "causal"
	IntentList       = "list"
	IntentGeneral    = "general"
)

// TimeFilter is an extracted temporal constraint like "after 2020".
type TimeFilter struct {
	Type  string `json:"type"` // after, before, since, until
	Value string `json:"value"`
}

// Processed is the understanding result for one query.
type Processed struct {
	Normalized string
	Language   string
	Intent     string
	Years      []string
	TimeFilter *TimeFilter
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	yearPattern   = regexp.MustCompile(`\b(20\d{2})\b`)
	timePattern   = regexp.MustCompile(`(?i)(after|before|since|until)\s+(\w+\s?\d{0,4})`)
)

// Process normalizes the query and derives language, intent, and constraints.
// It never fails: unknown language falls back to "en".
func Process(raw string) Processed {
	normalized := Normalize(raw)
	return Processed{
		Normalized: normalized,
		Language:   detectLanguage(normalized),
		Intent:     classifyIntent(normalized),
		Years:      yearPattern.FindAllString(normalized, -1),
		TimeFilter: extractTimeFilter(normalized),
	}
}

// Normalize applies NFKC and collapses whitespace.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

func detectLanguage(text string) string {
	if text == "" {
		return "en"
	}
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		return "en"
	}
	return code
}

func classifyIntent(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "compare", "difference", "vs", "versus"):
		return IntentComparison
	case containsAny(q, "how to", "how do", "how can", "steps to"):
		return IntentHowTo
	case containsAny(q, "what is", "what are", "define", "explain"):
		return IntentFactual
	case containsAny(q, "why", "reason", "cause"):
		return IntentCausal
	case containsAny(q, "list", "enumerate", "name all"):
		return IntentList
	default:
		return IntentGeneral
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func extractTimeFilter(query string) *TimeFilter {
	m := timePattern.FindStringSubmatch(query)
	if m == nil {
		return nil
	}
	return &TimeFilter{
		Type:  strings.ToLower(m[1]),
		Value: strings.TrimSpace(m[2]),
	}
}
