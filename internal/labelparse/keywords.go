package labelparse

import (
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/normalize"
)

// Feature classes of topographic keywords, as used by the gazetteer.
const (
	ClassSpot       = "S"
	ClassHydro      = "H"
	ClassHypsometry = "T"
	ClassVegetation = "V"
	ClassArea       = "L"
)

// keyword is a simplified, possibly multi-word phrase.
type keyword struct {
	text  string
	words []string
	class string
}

func phrases(class string, texts ...string) []keyword {
	out := make([]keyword, 0, len(texts))
	for _, t := range texts {
		s := normalize.Simplify(t)
		out = append(out, keyword{text: s, words: strings.Fields(s), class: class})
	}
	return out
}

// blacklistedFeatures mark ecclesiastical and fiscal divisions the
// gazetteer does not carry. Labels qualified by them are never aligned.
var blacklistedFeatures = phrases("",
	"canton", "tunnel", "diocèse", "évêché", "archevêché", "archidiaconé",
	"doyenné", "prieuré-cure", "généralité", "subdélégation", "élection",
)

var administrativeKeywords = phrases("",
	"région", "département", "arrondissement", "commune nouvelle",
	"communauté de communes", "métropole",
)

var overseasKeywords = phrases("",
	"département d'outre-mer", "territoire d'outre-mer", "collectivité d'outre-mer",
)

var topographicKeywords = func() []keyword {
	var all []keyword
	all = append(all, phrases(ClassSpot,
		"château", "palais", "abbaye", "aéroport", "aérodrome", "barrage",
		"manoir", "fort", "citadelle")...)
	all = append(all, phrases(ClassHydro,
		"cours d'eau", "rivière", "fleuve", "ruisseau", "canal", "lac", "étang",
		"source", "port")...)
	all = append(all, phrases(ClassHypsometry,
		"mont", "montagne", "massif", "col", "pic", "île", "presqu'île", "plaine",
		"plateau", "colline")...)
	all = append(all, phrases(ClassVegetation, "forêt", "bois")...)
	all = append(all, phrases(ClassArea, "parc", "jardin")...)
	return all
}()

// prepositions may trail a keyword in inverted labels ("Versailles, château de").
var prepositions = [][]string{
	{"de", "la"}, {"de", "l"}, {"de"}, {"du"}, {"des"}, {"d"},
}

// cityWords are street-level words that, in minutier records, point to Paris.
var cityWords = normalize.Set(
	"rue", "impasse", "passage", "place", "avenue", "boulevard", "cité", "quai",
	"pont", "espanade", "chemin", "villa", "île", "ruelle", "allée", "parc",
	"jardin", "square",
)

// hasPrefix reports whether words start with prefix.
func hasPrefix(words, prefix []string) bool {
	if len(prefix) > len(words) {
		return false
	}
	for i, w := range prefix {
		if words[i] != w {
			return false
		}
	}
	return true
}

// onlyPreposition reports whether rest is empty or a lone preposition.
func onlyPreposition(rest []string) bool {
	if len(rest) == 0 {
		return true
	}
	for _, p := range prepositions {
		if len(p) == len(rest) && hasPrefix(rest, p) {
			return true
		}
	}
	return false
}

// leading returns the first keyword words start with. With exact set, the
// keyword may only be followed by a preposition.
func leading(words []string, keywords []keyword, exact bool) (keyword, bool) {
	var best keyword
	found := false
	for _, k := range keywords {
		if !hasPrefix(words, k.words) {
			continue
		}
		if exact && !onlyPreposition(words[len(k.words):]) {
			continue
		}
		// longest phrase wins
		if !found || len(k.words) > len(best.words) {
			best, found = k, true
		}
	}
	return best, found
}

// contains returns the first keyword appearing anywhere in words.
func contains(words []string, keywords []keyword) (keyword, bool) {
	for i := range words {
		if k, ok := leading(words[i:], keywords, false); ok {
			return k, true
		}
	}
	return keyword{}, false
}
