// Package alignment computes alignment proposals for authority labels and
// imports reviewed proposal files back into the record store.
package alignment

import (
	"context"
	"sort"

	"github.com/lehigh-university-libraries/placealign/internal/proposal"
	"github.com/lehigh-university-libraries/placealign/internal/records"
)

// Output is what a target computes for a batch of labels.
type Output struct {
	Kind       proposal.Kind
	Rows       []proposal.Row
	Candidates []proposal.Candidate
}

// Target computes proposals against one external source.
type Target interface {
	Kind() proposal.Kind
	// Compute aligns labels. progress, if set, receives the done fraction.
	Compute(ctx context.Context, labels []records.AuthorityLabel, progress func(float64)) (Output, error)
}

func labelRow(l records.AuthorityLabel) proposal.Row {
	quality := l.Quality
	return proposal.Row{
		AuthorityID:    l.AuthorityID,
		IndexURI:       l.GeognameURI,
		IndexLabel:     l.GeognameLabel,
		AuthorityURI:   l.AuthorityURI,
		AuthorityLabel: l.Label,
		Keep:           true,
		Quality:        &quality,
	}
}

// dedupe drops rows identical to an earlier one. Rows of several index
// entries of one authority differ by their index columns and stay.
func dedupe(rows []proposal.Row) []proposal.Row {
	type key struct {
		authority       int64
		indexURI, index string
		uri             string
	}
	seen := make(map[key]bool, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key{r.AuthorityID, r.IndexURI, r.IndexLabel, r.ExternalURI}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// sortOutput orders rows and candidates by authority, then external URI,
// whatever order the chunks were aligned in.
func sortOutput(out *Output) {
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, b := out.Rows[i], out.Rows[j]
		if a.AuthorityID != b.AuthorityID {
			return a.AuthorityID < b.AuthorityID
		}
		return a.ExternalURI < b.ExternalURI
	})
	sort.SliceStable(out.Candidates, func(i, j int) bool {
		a, b := out.Candidates[i], out.Candidates[j]
		if a.AuthorityID != b.AuthorityID {
			return a.AuthorityID < b.AuthorityID
		}
		return a.ExternalURI < b.ExternalURI
	})
}
