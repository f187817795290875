package search

import (
	"strings"
	"unicode"
)

// Tokenize splits an identifier on internal capitalization boundaries
// and non-alphanumeric separators, and appends the whole lowercase
// identifier. "CustomerCard" yields [customer card customercard],
// "XMLPort" yields [xml port xmlport]. Tokens are lowercase and
// deduplicated in first-appearance order.
func Tokenize(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	runes := []rune(name)
	var tokens []string
	seen := make(map[string]struct{}, 4)
	add := func(tok string) {
		if tok == "" {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			add(strings.ToLower(string(runes[start:end])))
		}
		start = -1
	}
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		if boundary(runes, i) {
			flush(i)
			start = i
		}
	}
	flush(len(runes))

	add(strings.ToLower(name))
	return tokens
}

// boundary reports whether a new token starts at position i. A token
// starts at an upper-case rune that follows a lower-case rune or
// digit, or that ends an acronym run ("XMLPort": the P starts "Port").
func boundary(runes []rune, i int) bool {
	r := runes[i]
	if !unicode.IsUpper(r) {
		return false
	}
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
