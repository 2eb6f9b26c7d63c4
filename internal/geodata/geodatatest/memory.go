// Package geodatatest provides an in-memory gazetteer for tests.
package geodatatest

import (
	"context"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
)

// Alternate is an alternate name row.
type Alternate struct {
	PlaceID   int64
	Lang      string
	Name      string
	Preferred bool
	Historic  bool
}

// Memory is a geodata.Source over slices.
type Memory struct {
	Admin      []geodata.AdminRow
	Countries  []geodata.CountryName
	Rows       []geodata.PlaceRow
	Alternates []Alternate

	// Loads counts AdminRows and CountryNames calls.
	Loads atomic.Int32
	// Err, when set, is returned by every method.
	Err error
}

var _ geodata.Source = (*Memory)(nil)

func (m *Memory) AdminRows(ctx context.Context, countries []string) ([]geodata.AdminRow, error) {
	m.Loads.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	var out []geodata.AdminRow
	for _, row := range m.Admin {
		if slices.Contains(countries, row.CountryCode) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *Memory) CountryNames(ctx context.Context, lang string) ([]geodata.CountryName, error) {
	m.Loads.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	out := slices.Clone(m.Countries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PlaceID != out[j].PlaceID {
			return out[i].PlaceID < out[j].PlaceID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) Places(ctx context.Context, q geodata.PlaceQuery) ([]geodata.PlaceRow, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []geodata.PlaceRow
	for _, row := range m.Rows {
		if len(q.Countries) > 0 && !slices.Contains(q.Countries, row.CountryCode) {
			continue
		}
		if q.Admin2 != "" && row.Admin2 != q.Admin2 {
			continue
		}
		if len(q.FeatureClasses) > 0 && !slices.Contains(q.FeatureClasses, row.FeatureClass) {
			continue
		}
		if len(q.FeatureCodes) > 0 && !slices.Contains(q.FeatureCodes, row.FeatureCode) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *Memory) AltNames(ctx context.Context, country, lang string) ([]geodata.AltName, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []geodata.AltName
	for _, alt := range m.Alternates {
		if alt.Lang != lang {
			continue
		}
		place, ok := m.place(alt.PlaceID)
		if !ok || place.CountryCode != country {
			continue
		}
		if place.FeatureClass != "A" && place.FeatureClass != "P" {
			continue
		}
		out = append(out, geodata.AltName{PlaceID: alt.PlaceID, Name: alt.Name})
	}
	return out, nil
}

func (m *Memory) Place(ctx context.Context, id int64) (geodata.PlaceRow, bool, error) {
	if m.Err != nil {
		return geodata.PlaceRow{}, false, m.Err
	}
	row, ok := m.place(id)
	return row, ok, nil
}

func (m *Memory) PreferredAltName(ctx context.Context, id int64, lang string) (string, bool, error) {
	if m.Err != nil {
		return "", false, m.Err
	}
	var fallback string
	for _, alt := range m.Alternates {
		if alt.PlaceID != id || alt.Lang != lang || alt.Historic {
			continue
		}
		if alt.Preferred {
			return alt.Name, true, nil
		}
		if fallback == "" {
			fallback = alt.Name
		}
	}
	return fallback, fallback != "", nil
}

func (m *Memory) place(id int64) (geodata.PlaceRow, bool) {
	for _, row := range m.Rows {
		if row.ID == id {
			return row, true
		}
	}
	return geodata.PlaceRow{}, false
}
