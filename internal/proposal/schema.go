// Package proposal reads and writes the tab-separated alignment files
// exchanged with archivists, one fixed header set per kind of alignment.
package proposal

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Kind names an alignment file format.
type Kind string

const (
	KindGeoname Kind = "geoname"
	KindBANO    Kind = "bano"
	KindAgent   Kind = "agent"
	KindSubject Kind = "subject"
)

// Field is a Row member a column maps to.
type Field int

const (
	FieldAuthorityID Field = iota
	FieldIndexURI
	FieldIndexLabel
	FieldAuthorityURI
	FieldAuthorityLabel
	FieldIndexType
	FieldExternalURI
	FieldExternalLabel
	FieldLongitude
	FieldLatitude
	FieldKeep
	FieldConfidence
	FieldQuality
)

// Column maps a header to a field.
type Column struct {
	Header string
	Field  Field
}

// Schema describes the file format of a kind.
type Schema struct {
	Kind     Kind
	Columns  []Column
	Required []string
	Boolean  []string
	// Simplified lists the column positions dropped by the simplified
	// variant.
	Simplified []int
	// Source is the external source of every row, or "" when it is read
	// from the external URI.
	Source string
}

// ErrMissingColumns fails a whole file.
var ErrMissingColumns = errors.New("following required columns are missing")

// Schemas holds the formats by kind.
var Schemas = map[Kind]Schema{
	KindGeoname: {
		Kind: KindGeoname,
		Columns: []Column{
			{"identifiant_LocationAuthority", FieldAuthorityID},
			{"URI_Geogname", FieldIndexURI},
			{"libelle_Geogname", FieldIndexLabel},
			{"URI_LocationAuthority", FieldAuthorityURI},
			{"libelle_LocationAuthority", FieldAuthorityLabel},
			{"URI_GeoNames", FieldExternalURI},
			{"libelle_GeoNames", FieldExternalLabel},
			{"longitude", FieldLongitude},
			{"latitude", FieldLatitude},
			{"keep", FieldKeep},
			{"fiabilite_alignement", FieldConfidence},
			{"quality", FieldQuality},
		},
		Required:   []string{"identifiant_LocationAuthority", "libelle_LocationAuthority", "URI_GeoNames", "keep"},
		Boolean:    []string{"quality"},
		Simplified: []int{1, 2},
		Source:     store.SourceGeoname,
	},
	KindBANO: {
		Kind: KindBANO,
		Columns: []Column{
			{"identifiant_LocationAuthority", FieldAuthorityID},
			{"URI_Geogname", FieldIndexURI},
			{"libelle_Geogname", FieldIndexLabel},
			{"URI_LocationAuthority", FieldAuthorityURI},
			{"libelle_LocationAuthority", FieldAuthorityLabel},
			{"bano id", FieldExternalURI},
			{"bano label (used for UI display)", FieldExternalLabel},
			{"longitude", FieldLongitude},
			{"latitude", FieldLatitude},
			{"keep", FieldKeep},
			{"fiabilite_alignement", FieldConfidence},
		},
		Required:   []string{"identifiant_LocationAuthority", "libelle_LocationAuthority", "bano id", "keep"},
		Simplified: []int{1, 2},
		Source:     store.SourceBANO,
	},
	KindAgent:   authoritySchema(KindAgent, "AgentAuthority", "AgentName"),
	KindSubject: authoritySchema(KindSubject, "SubjectAuthority", "Subject"),
}

func authoritySchema(kind Kind, authority, index string) Schema {
	return Schema{
		Kind: kind,
		Columns: []Column{
			{"identifiant_" + authority, FieldAuthorityID},
			{"URI_" + index, FieldIndexURI},
			{"libelle_" + index, FieldIndexLabel},
			{"URI_" + authority, FieldAuthorityURI},
			{"libelle_" + authority, FieldAuthorityLabel},
			{"type_" + index, FieldIndexType},
			{"URI_ExternalUri", FieldExternalURI},
			{"libelle_ExternalUri", FieldExternalLabel},
			{"keep", FieldKeep},
			{"quality", FieldQuality},
		},
		Required:   []string{"identifiant_" + authority, "libelle_" + authority, "URI_ExternalUri", "keep"},
		Boolean:    []string{"quality"},
		Simplified: []int{1, 2, 5},
	}
}

// SchemaFor returns the schema of a kind.
func SchemaFor(kind Kind) (Schema, error) {
	s, ok := Schemas[Kind(strings.ToLower(string(kind)))]
	if !ok {
		return Schema{}, fmt.Errorf("unknown alignment kind %q", kind)
	}
	return s, nil
}

// Headers returns the column headers in order.
func (s Schema) Headers(simplified bool) []string {
	cols := s.columns(simplified)
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header
	}
	return out
}

func (s Schema) columns(simplified bool) []Column {
	if !simplified {
		return s.Columns
	}
	out := make([]Column, 0, len(s.Columns))
	for i, c := range s.Columns {
		if !slices.Contains(s.Simplified, i) {
			out = append(out, c)
		}
	}
	return out
}

func (s Schema) isBoolean(header string) bool {
	return slices.Contains(s.Boolean, header)
}
