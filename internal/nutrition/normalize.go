package nutrition

import "strings"

// Normalize produces the lookup key for a food name: lowercased, trimmed,
// with runs of internal whitespace collapsed to one space
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
