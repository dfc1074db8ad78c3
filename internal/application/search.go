package application

import "strings"

// ContainsFold returns true if term, trimmed of surrounding whitespace,
// appears (case-insensitive) anywhere in one of fields. A blank term matches
// everything.
func ContainsFold(term string, fields ...string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	needle := strings.ToLower(term)
	for _, f := range fields {
		if f == "" {
			continue
		}
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
