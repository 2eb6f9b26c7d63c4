package store

import (
	"net/url"
	"regexp"
	"strings"
)

// Sources of external references.
const (
	SourceGeoname  = "geoname"
	SourceBANO     = "bano"
	SourceDataBnF  = "databnf"
	SourceWikidata = "wikidata"
)

var (
	geonamesRE = regexp.MustCompile(`geonames\.org/(\d+)(?:/.+?\.html)?`)
	// optional language infix, then either the notice id or an ark whose
	// name starts with the notice id
	databnfRE  = regexp.MustCompile(`data\.bnf\.fr/(?:[a-z]{2}/)?(?:ark:/\d+/[a-z]{2})?(\d{8})`)
	wikidataRE = regexp.MustCompile(`wikidata\.org/wiki/(Q\d+)`)
)

// ParseExternalURI returns the source and source-specific id of an external
// URI. Unknown URIs yield their host as source and an empty id.
func ParseExternalURI(uri string) (source, id string) {
	if m := geonamesRE.FindStringSubmatch(uri); m != nil {
		return SourceGeoname, m[1]
	}
	if m := databnfRE.FindStringSubmatch(uri); m != nil {
		return SourceDataBnF, m[1]
	}
	if m := wikidataRE.FindStringSubmatch(uri); m != nil {
		return SourceWikidata, m[1]
	}
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil || u.Host == "" {
		return "", ""
	}
	return u.Host, ""
}
