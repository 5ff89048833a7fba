package supervisor

import (
	"strings"
	"unicode/utf8"
)

type SkipPolicy string

// Critique skip policies.
const (
	// SkipTrivial bypasses the gate for greetings and very short queries.
	SkipTrivial SkipPolicy = "trivial"
	// SkipKeyword drops goals that only ask for a status, update or progress
	// report and bypasses the gate when no goal is left.
	SkipKeyword SkipPolicy = "keyword"
)

const minQueryLen = 5

var trivialPhrases = map[string]struct{}{
	"hi":        {},
	"hello":     {},
	"hey":       {},
	"":          {},
	"thanks":    {},
	"thank you": {},
}

var routineGoalKeywords = []string{"status", "update", "progress"}

// IsTrivialQuery reports whether query is a greeting, a thank-you or too
// short to deserve a critique.
func IsTrivialQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if _, ok := trivialPhrases[q]; ok {
		return true
	}
	return utf8.RuneCountInString(q) < minQueryLen
}

// goalsNeedingCritique filters out routine reporting goals.
func goalsNeedingCritique(goals []string) []string {
	var out []string
	for _, g := range goals {
		lower := strings.ToLower(g)
		routine := false
		for _, kw := range routineGoalKeywords {
			if strings.Contains(lower, kw) {
				routine = true
				break
			}
		}
		if !routine {
			out = append(out, g)
		}
	}
	return out
}
