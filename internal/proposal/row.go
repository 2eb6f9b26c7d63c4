package proposal

import (
	"strconv"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/reconcile"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Row is one alignment line. Kinds without a column leave its field empty.
type Row struct {
	AuthorityID    int64    `yaml:"authority"`
	IndexURI       string   `yaml:"index_uri,omitempty"`
	IndexLabel     string   `yaml:"index_label,omitempty"`
	AuthorityURI   string   `yaml:"authority_uri,omitempty"`
	AuthorityLabel string   `yaml:"authority_label"`
	IndexType      string   `yaml:"index_type,omitempty"`
	ExternalURI    string   `yaml:"external_uri"`
	ExternalLabel  string   `yaml:"external_label,omitempty"`
	Longitude      *float64 `yaml:"longitude,omitempty"`
	Latitude       *float64 `yaml:"latitude,omitempty"`
	Keep           bool     `yaml:"keep"`
	Confidence     *float64 `yaml:"confidence,omitempty"`
	Quality        *bool    `yaml:"quality,omitempty"`
	// Line is the 1-based data row in the file it was read from.
	Line int `yaml:"line,omitempty"`
}

// Proposal converts the row for reconciliation.
func (r Row) Proposal(s Schema) reconcile.Proposal {
	p := reconcile.Proposal{
		AuthorityID: r.AuthorityID,
		URI:         r.ExternalURI,
		Source:      s.Source,
		Label:       r.ExternalLabel,
		Keep:        r.Keep,
		Row:         r.Line,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
	switch s.Source {
	case store.SourceGeoname:
		if id, ok := geodata.IDFromURI(r.ExternalURI); ok {
			p.ExternalID = strconv.FormatInt(id, 10)
		}
	case store.SourceBANO:
		p.ExternalID = r.ExternalURI
	default:
		p.Source, p.ExternalID = store.ParseExternalURI(r.ExternalURI)
	}
	return p
}

// Proposals converts rows for reconciliation.
func Proposals(s Schema, rows []Row) []reconcile.Proposal {
	out := make([]reconcile.Proposal, len(rows))
	for i, r := range rows {
		out[i] = r.Proposal(s)
	}
	return out
}
