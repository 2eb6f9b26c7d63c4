// Package distance provides the string distances the matcher scores
// candidate pairs with. Every distance is in [0, 1] and is 0 for equal
// strings.
package distance

import (
	"fmt"
	"sort"
	"strings"

	editdistance "github.com/agnivade/levenshtein"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"github.com/xrash/smetrics"
)

// Func computes the distance between two already normalized strings.
type Func func(a, b string) float64

// Default is the distance used when none is configured.
const Default = "ratio"

var registry = map[string]Func{
	"ratio":       Ratio,
	"levenshtein": Levenshtein,
	"jarowinkler": JaroWinkler,
	"exact":       Exact,
	"zero":        Zero,
}

// ByName returns a registered distance.
func ByName(name string) (Func, error) {
	if name == "" {
		name = Default
	}
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown distance %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names lists registered distances.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ratio is 1 minus the matching ratio 2*M/T, where T is the total length of
// both strings and M the characters they share in an optimal alignment.
func Ratio(a, b string) float64 {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 1
	}
	return clamp(1 - levenshtein.RatioForStrings(ra, rb, levenshtein.DefaultOptions))
}

// Levenshtein is the edit distance normalized by the longer string.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 0
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	return clamp(float64(editdistance.ComputeDistance(a, b)) / float64(longest))
}

// JaroWinkler is 1 minus the Jaro-Winkler similarity with the usual 0.7
// boost threshold and 4 character prefix.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 0
	}
	return clamp(1 - smetrics.JaroWinkler(a, b, 0.7, 4))
}

// Exact is 0 for equal strings and 1 otherwise.
func Exact(a, b string) float64 {
	if a == b {
		return 0
	}
	return 1
}

// Zero accepts every pair; blocking alone decides.
func Zero(a, b string) float64 { return 0 }

func clamp(d float64) float64 {
	switch {
	case d < 0:
		return 0
	case d > 1:
		return 1
	default:
		return d
	}
}

// Method names the strength of a match, for reports.
func Method(d float64) string {
	switch {
	case d == 0:
		return "exact"
	case d <= 0.1:
		return "fuzzy_high"
	case d <= 0.3:
		return "fuzzy_medium"
	default:
		return "fuzzy_low"
	}
}
