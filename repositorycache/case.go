package repositorycache

import (
	"strings"
	"unicode"
)

// toSnake converts s to snake_case. Anything that is not a letter or digit
// separates words, so reflected names such as "repo.Page[main.Item]" become
// plain identifiers.
func toSnake(s string) string {
	return strings.Join(words(s), "_")
}

// words splits s at separators, lower to upper transitions, letter to digit
// transitions and before the last upper case rune of an acronym that starts
// a new word ("HTTPServer" splits into "http" and "server").
func words(s string) []string {
	var (
		out  []string
		word []rune
	)
	flush := func() {
		if len(word) > 0 {
			out = append(out, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(word) > 0 && boundary(runes, i) {
			flush()
		}
		word = append(word, r)
	}
	flush()
	return out
}

// boundary reports whether a new word starts at runes[i], given that the
// previous rune belongs to the current word.
func boundary(runes []rune, i int) bool {
	prev, r := runes[i-1], runes[i]
	switch {
	case unicode.IsDigit(r):
		return !unicode.IsDigit(prev)
	case unicode.IsUpper(r):
		if unicode.IsLower(prev) || unicode.IsDigit(prev) {
			return true
		}
		return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
	}
	return false
}
