package nutrition

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	parenthetical  = regexp.MustCompile(`\([^)]*\)`)
	programNote    = regexp.MustCompile(`(?i)includes foods? for usda'?s? [^,]+`)
	skippedPhrases = []string{"usda", "program", "distribution"}
)

// CleanName turns a classifier or database label such as
// "Apples, raw, with skin (Includes foods for USDA's Food Distribution Program)"
// into a display name ("Apples"). Every lookup goes through it, so one food
// has one cache key whichever surface asked.
//
// Words are title cased. Acronyms in a mixed case label ("BBQ ribs") keep
// their capitals; a label written entirely in capitals is title cased whole.
func CleanName(label string) string {
	name := parenthetical.ReplaceAllString(label, "")
	name = programNote.ReplaceAllString(name, "")

	parts := strings.Split(name, ",")
	chosen := parts[0]
	for _, part := range parts {
		if meaningful(strings.TrimSpace(part)) {
			chosen = part
			break
		}
	}

	words := strings.Fields(chosen)
	if len(words) == 0 {
		return strings.TrimSpace(label)
	}

	shouted := isUpper(strings.Join(words, ""))
	caser := cases.Title(language.English)
	for i, w := range words {
		if !shouted && isUpper(w) && len([]rune(w)) > 1 {
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// isUpper reports whether s has letters and none of them are lowercase
func isUpper(s string) bool {
	letters := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters = true
		}
	}
	return letters
}

func meaningful(part string) bool {
	if len([]rune(part)) < 3 {
		return false
	}
	lower := strings.ToLower(part)
	for _, p := range skippedPhrases {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}
