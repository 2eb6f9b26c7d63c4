// Package normalize folds free-text place labels into comparable keys.
package normalize

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// streetStopWords are dropped from street keys. They are compared after
// Simplify, so "d'" is already split into "d".
var streetStopWords = map[string]bool{
	"a":   true,
	"au":  true,
	"aux": true,
	"de":  true,
	"d":   true,
	"du":  true,
	"des": true,
	"la":  true,
	"le":  true,
	"les": true,
	"l":   true,
}

// Simplify lower-cases s, strips accents, replaces ASCII punctuation with
// spaces and collapses whitespace. It never fails: if the Unicode transform
// errors, the trimmed input is kept and a warning is logged.
func Simplify(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	folded, err := fold(s)
	if err != nil {
		slog.Warn("could not normalize label", "label", s, "error", err)
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < utf8.RuneSelf && strings.ContainsRune(punctuation, r) {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func fold(s string) (string, error) {
	// A chain keeps internal buffers, so each call gets its own.
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(stripAccents, strings.ToLower(s))
	if err != nil {
		return "", fmt.Errorf("failed to strip accents: %w", err)
	}
	if !isASCII(result) {
		// ligatures (œ, æ) and letters without a decomposition (ß, ø)
		result = strings.ToLower(unidecode.Unidecode(result))
	}
	return result, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Tokens returns the whitespace-separated tokens of Simplify(s).
func Tokens(s string) []string {
	return strings.Fields(Simplify(s))
}

// StreetKey builds an order-independent key for street names: prepositions
// and articles are dropped and the remaining tokens are sorted.
func StreetKey(s string) string {
	tokens := Tokens(s)
	kept := tokens[:0]
	for _, token := range tokens {
		if streetStopWords[token] {
			continue
		}
		kept = append(kept, token)
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// ContainsAny reports whether any token of s is in words.
func ContainsAny(s string, words map[string]bool) bool {
	for _, token := range Tokens(s) {
		if words[token] {
			return true
		}
	}
	return false
}

// Set builds a lookup set of simplified words.
func Set(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[Simplify(w)] = true
	}
	return set
}
