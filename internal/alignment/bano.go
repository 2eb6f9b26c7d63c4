package alignment

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/gazetteer"
	"github.com/lehigh-university-libraries/placealign/internal/normalize"
	"github.com/lehigh-university-libraries/placealign/internal/proposal"
	"github.com/lehigh-university-libraries/placealign/internal/records"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

var (
	// "City (context) -- street"
	banoLabelRE = regexp.MustCompile(`^(.+?)\s*(\(.+?\)\s*)?--\s*(.+)`)
	// "voie (type ; qualifier)"
	streetRE = regexp.MustCompile(`^(.+?)\s*\(\s*(.+?)(\s*;\s*.+?)?\)`)
)

// StreetSource returns the streets of simplified city names.
// *gazetteer.Source implements it.
type StreetSource interface {
	Streets(ctx context.Context, cityKeys []string) ([]gazetteer.Street, error)
}

// Address is a street label split into city and street.
type Address struct {
	City   string `yaml:"city"`
	Street string `yaml:"street"`
}

// ParseAddress splits "City -- Street (type)" labels. Notarial archives
// units are located in Paris whatever the label says. It returns false when
// no city can be found.
func ParseAddress(l records.AuthorityLabel) (Address, bool) {
	switch {
	case l.ServiceCode == "FRAN" && strings.HasPrefix(l.UnitID, "MC/"):
		return splitAddress(l.Label, "Paris")
	case strings.Contains(l.Label, "--"):
		return splitAddress(l.Label, "")
	}
	return Address{}, false
}

func splitAddress(label, city string) (Address, bool) {
	if m := banoLabelRE.FindStringSubmatch(label); m != nil {
		label = strings.TrimSpace(m[3])
		if city == "" {
			city = strings.TrimSpace(m[1])
		}
	}
	if city == "" {
		return Address{}, false
	}
	if m := streetRE.FindStringSubmatch(label); m != nil {
		return Address{City: city, Street: strings.TrimSpace(m[2] + " " + m[1])}, true
	}
	return Address{City: city, Street: label}, true
}

// Bano aligns street labels with the national address base on exact
// (city, street) keys.
type Bano struct {
	streets StreetSource
	log     *slog.Logger
}

var _ Target = (*Bano)(nil)

// NewBano returns the BANO target.
func NewBano(streets StreetSource, log *slog.Logger) *Bano {
	if log == nil {
		log = slog.Default()
	}
	return &Bano{streets: streets, log: log}
}

func (b *Bano) Kind() proposal.Kind { return proposal.KindBANO }

func (b *Bano) Compute(ctx context.Context, labels []records.AuthorityLabel, progress func(float64)) (Output, error) {
	out := Output{Kind: proposal.KindBANO}

	type addressKey struct{ city, street string }
	wanted := make(map[addressKey][]int)
	cities := make(map[string]bool)
	for i, l := range labels {
		addr, ok := ParseAddress(l)
		if !ok {
			continue
		}
		k := addressKey{normalize.Simplify(addr.City), normalize.StreetKey(addr.Street)}
		wanted[k] = append(wanted[k], i)
		cities[k.city] = true
	}
	if len(wanted) == 0 {
		b.log.Info("no location found, skip BANO alignment")
		return out, nil
	}

	keys := make([]string, 0, len(cities))
	for city := range cities {
		keys = append(keys, city)
	}
	sort.Strings(keys)
	streets, err := b.streets.Streets(ctx, keys)
	if err != nil {
		return out, fmt.Errorf("failed to load BANO streets: %w", err)
	}
	if len(streets) == 0 {
		b.log.Info("no BANO data found, skip BANO alignment", "cities", len(keys))
		return out, nil
	}

	// the last street of a key wins
	found := make(map[addressKey]int, len(streets))
	for i, st := range streets {
		found[addressKey{normalize.Simplify(st.City), normalize.StreetKey(st.Voie)}] = i
	}

	for k, idx := range wanted {
		si, ok := found[k]
		if !ok {
			continue
		}
		st := streets[si]
		for _, i := range idx {
			row := labelRow(labels[i])
			lat, lon := st.Latitude, st.Longitude
			row.ExternalURI = st.ID
			row.ExternalLabel = fmt.Sprintf("%s, %s", st.City, st.Voie)
			row.Latitude, row.Longitude = &lat, &lon
			row.Quality = nil
			out.Rows = append(out.Rows, row)
			out.Candidates = append(out.Candidates, proposal.Candidate{
				AuthorityID:    row.AuthorityID,
				AuthorityLabel: row.AuthorityLabel,
				ExternalURI:    row.ExternalURI,
				ExternalLabel:  row.ExternalLabel,
				Source:         store.SourceBANO,
				Stage:          "exact",
				Confidence:     1,
			})
		}
	}
	sortOutput(&out)
	out.Rows = dedupe(out.Rows)
	if progress != nil {
		progress(1)
	}
	b.log.Info("Computed BANO alignments", "labels", len(labels), "alignments", len(out.Rows))
	return out, nil
}
