package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/normalize"
	"github.com/lehigh-university-libraries/placealign/internal/records"
)

// Foreign aligns country-only records. Per country, a record naming the
// country aligns with it; otherwise a unique alternate name or a unique exact
// place name gives the city, and the country is the fallback at the
// configured distance. Ambiguous names are logged and never guessed.
func (m *Matcher) Foreign(ctx context.Context, cat *geodata.Catalog, recs []records.ParsedRecord) ([]CandidatePair, error) {
	byCountry := make(map[string][]int)
	for i, r := range recs {
		code := r.CountryCode
		if code == "" {
			code, _ = cat.CountryCode(r.Context.Country)
		}
		if code == "" {
			m.log.Info("Skipping record without country", "authority", r.Source.AuthorityID, "label", r.DisplayLabel)
			continue
		}
		byCountry[code] = append(byCountry[code], i)
	}
	codes := make([]string, 0, len(byCountry))
	for code := range byCountry {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	countrySet, err := cat.CountrySet(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load countries: %w", err)
	}

	var out []CandidatePair
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pairs, err := m.foreignCountry(ctx, cat, code, byCountry[code], recs, countrySet)
		if err != nil {
			return nil, err
		}
		out = append(out, pairs...)
	}
	return out, nil
}

func (m *Matcher) foreignCountry(ctx context.Context, cat *geodata.Catalog, code string, idx []int, recs []records.ParsedRecord, countrySet []geodata.ReferenceEntry) ([]CandidatePair, error) {
	log := m.log.With("country", code)

	var named, rest []records.ParsedRecord
	for _, i := range idx {
		r := recs[i]
		if normalize.Simplify(r.CoreName) == r.Context.Country {
			named = append(named, r)
		} else {
			rest = append(rest, r)
		}
	}

	var out []CandidatePair
	matched := make(map[int]bool)
	for _, p := range m.country.Align(RecordItems(named), EntryItems(countrySet)) {
		matched[p.Ref] = true
		out = append(out, CandidatePair{Record: named[p.Ref], Entry: countrySet[p.Target], Distance: p.Distance, Stage: p.Stage})
	}
	// a country record without a country entry falls through with the cities
	for i, r := range named {
		if !matched[i] {
			rest = append(rest, r)
		}
	}
	if len(rest) == 0 {
		return out, nil
	}

	src := cat.Source()
	alts, err := src.AltNames(ctx, code, cat.Language())
	if err != nil {
		return nil, fmt.Errorf("failed to load alternate names of %s: %w", code, err)
	}
	altIDs := make(map[string][]int64)
	for _, alt := range alts {
		key := normalize.Simplify(alt.Name)
		altIDs[key] = appendUnique(altIDs[key], alt.PlaceID)
	}

	places, err := src.Places(ctx, geodata.PlaceQuery{Countries: []string{code}, FeatureClasses: []string{"A", "P"}})
	if err != nil {
		return nil, fmt.Errorf("failed to load places of %s: %w", code, err)
	}
	byID := make(map[int64]geodata.PlaceRow, len(places))
	nameIDs := make(map[string][]int64)
	for _, row := range places {
		byID[row.ID] = row
		key := normalize.Simplify(row.Name)
		nameIDs[key] = appendUnique(nameIDs[key], row.ID)
	}

	fallback, hasCountry, err := cat.CountryEntry(ctx, code)
	if err != nil {
		return nil, err
	}

	for _, r := range rest {
		name := normalize.Simplify(r.CoreName)
		rlog := log.With("authority", r.Source.AuthorityID, "label", r.DisplayLabel)

		id, ok := unique(altIDs[name])
		if !ok && len(altIDs[name]) > 1 {
			rlog.Info("Ambiguous alternate name", "name", name, "places", altIDs[name])
		}
		stage := "foreign altname"
		if !ok {
			id, ok = unique(nameIDs[name])
			stage = "foreign name"
			if !ok && len(nameIDs[name]) > 1 {
				rlog.Info("Ambiguous place name", "name", name, "places", nameIDs[name])
			}
		}
		if ok {
			entry, found, err := m.foreignEntry(ctx, cat, id, byID)
			if err != nil {
				return nil, err
			}
			if found {
				out = append(out, CandidatePair{Record: r, Entry: entry, Distance: 0, Stage: stage})
				continue
			}
		}

		if !hasCountry {
			rlog.Info("No country entry for record")
			continue
		}
		out = append(out, CandidatePair{
			Record:   r,
			Entry:    fallback,
			Distance: m.cfg.ForeignCountryDistance,
			Stage:    "foreign country",
		})
	}
	return out, nil
}

func (m *Matcher) foreignEntry(ctx context.Context, cat *geodata.Catalog, id int64, byID map[int64]geodata.PlaceRow) (geodata.ReferenceEntry, bool, error) {
	row, ok := byID[id]
	if !ok {
		var err error
		row, ok, err = cat.Source().Place(ctx, id)
		if err != nil {
			return geodata.ReferenceEntry{}, false, fmt.Errorf("failed to fetch place %d: %w", id, err)
		}
		if !ok {
			return geodata.ReferenceEntry{}, false, nil
		}
	}
	label, err := cat.ExternalLabel(ctx, geodata.URIForID(id))
	if err != nil {
		return geodata.ReferenceEntry{}, false, err
	}
	if label == "" {
		label = row.Name
	}
	return geodata.ReferenceEntry{
		ID:              row.ID,
		Name:            row.Name,
		DisplayLabel:    label,
		ComparisonLabel: row.Name,
		Latitude:        row.Latitude,
		Longitude:       row.Longitude,
		Context:         geodata.Context{Country: normalize.Simplify(cat.Countries()[row.CountryCode])},
	}, true, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func unique(ids []int64) (int64, bool) {
	if len(ids) != 1 {
		return 0, false
	}
	return ids[0], true
}
