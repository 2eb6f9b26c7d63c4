package geodata

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/normalize"
)

// TopographicFeatureCodes are the gazetteer feature codes of the topographic
// reference set.
var TopographicFeatureCodes = []string{
	"CSTL", "PAL", "HSEC", "AIRP", "DAM", "PK", "MT", "MTS", "PASS",
	"ISL", "PEN", "PLN", "UPLD", "FRST", "PRK", "PRT", "STM", "LK", "CNL",
}

var geonamesURI = regexp.MustCompile(`geonames\.org/(\d+)(?:/.+?\.html)?`)

// ReferenceEntry is one gazetteer candidate.
type ReferenceEntry struct {
	ID              int64   `yaml:"id" json:"id" parquet:"id"`
	Name            string  `yaml:"name" json:"name" parquet:"name"`
	Context         Context `yaml:"context" json:"context" parquet:"-"`
	DisplayLabel    string  `yaml:"display_label" json:"display_label" parquet:"display_label"`
	ComparisonLabel string  `yaml:"comparison_label" json:"comparison_label" parquet:"comparison_label"`
	Latitude        float64 `yaml:"latitude" json:"latitude" parquet:"latitude"`
	Longitude       float64 `yaml:"longitude" json:"longitude" parquet:"longitude"`
}

// URI returns the canonical GeoNames URI of the entry.
func (e ReferenceEntry) URI() string { return URIForID(e.ID) }

// URIForID builds a GeoNames URI.
func URIForID(id int64) string {
	return fmt.Sprintf("https://www.geonames.org/%d", id)
}

// IDFromURI extracts the GeoNames id from a URI such as
// https://www.geonames.org/2988507 or https://www.geonames.org/2988507/paris.html.
func IDFromURI(uri string) (int64, bool) {
	m := geonamesURI.FindStringSubmatch(uri)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Label builds the display label "Name (Region, Department)".
func (c *Catalog) Label(name, admin1, admin2 string) string {
	var info []string
	if region := c.Regions()[admin1]; region != "" {
		info = append(info, region)
	}
	if dpt := c.Departments()[admin2]; dpt != "" {
		info = append(info, dpt)
	}
	if len(info) == 0 {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, strings.Join(info, ", "))
}

// ExternalLabel computes a label for a GeoNames URI: "name (region,
// department)" for home places, "localized name (country)" for foreign ones.
// It returns "" when the URI is not a known GeoNames place.
func (c *Catalog) ExternalLabel(ctx context.Context, uri string) (string, error) {
	if label, ok := c.labels.Get(uri); ok {
		return label, nil
	}
	label, err := c.externalLabel(ctx, uri)
	if err != nil {
		return "", err
	}
	c.labels.Add(uri, label)
	return label, nil
}

func (c *Catalog) externalLabel(ctx context.Context, uri string) (string, error) {
	id, ok := IDFromURI(uri)
	if !ok {
		return "", nil
	}
	place, ok, err := c.src.Place(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to fetch place %d: %w", id, err)
	}
	if !ok {
		return "", nil
	}
	if place.CountryCode == c.opts.Country {
		return c.Label(place.Name, place.Admin1, place.Admin2), nil
	}

	label := place.Name
	alt, ok, err := c.src.PreferredAltName(ctx, id, c.opts.Language)
	if err != nil {
		return "", fmt.Errorf("failed to fetch alternate name of %d: %w", id, err)
	}
	if ok {
		label = alt
	}
	if country := c.Countries()[place.CountryCode]; country != "" {
		label = fmt.Sprintf("%s (%s)", label, country)
	}
	return label, nil
}

func (c *Catalog) cachedSet(key string, build func() ([]ReferenceEntry, error)) ([]ReferenceEntry, error) {
	c.setsMu.Lock()
	defer c.setsMu.Unlock()
	if set, ok := c.sets[key]; ok {
		return set, nil
	}
	set, err := build()
	if err != nil {
		return nil, err
	}
	if c.sets == nil {
		c.sets = make(map[string][]ReferenceEntry)
	}
	c.sets[key] = set
	return set, nil
}

// PlaceSet returns populated places and administrative divisions. With an
// empty dptCode it covers the home country and its overseas departments;
// otherwise it is restricted to that department. Features sharing name and
// admin codes are collapsed, populated places (P) winning over divisions (A).
func (c *Catalog) PlaceSet(ctx context.Context, dptCode string) ([]ReferenceEntry, error) {
	return c.cachedSet("place:"+dptCode, func() ([]ReferenceEntry, error) {
		q := PlaceQuery{FeatureClasses: []string{"A", "P"}}
		if dptCode != "" {
			q.Countries = []string{c.CountryForDepartment(dptCode)}
			q.Admin2 = dptCode
		} else {
			q.Countries = c.homeCountries()
		}
		rows, err := c.src.Places(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to load places: %w", err)
		}
		rows = preferPopulated(rows)

		departments := c.SimplifiedDepartments()
		cities := c.SimplifiedCities()
		set := make([]ReferenceEntry, 0, len(rows))
		for _, row := range rows {
			entry := ReferenceEntry{
				ID:           row.ID,
				Name:         row.Name,
				DisplayLabel: c.Label(row.Name, row.Admin1, row.Admin2),
				Latitude:     row.Latitude,
				Longitude:    row.Longitude,
				Context: Context{
					Department: departments[row.Admin2],
					City:       cities[row.Admin4],
				},
			}
			entry.ComparisonLabel = row.Name
			if entry.Context.Department != "" {
				info := entry.Context.Department
				if dptCode == "" && entry.Context.City != "" {
					info += ", " + entry.Context.City
				}
				entry.ComparisonLabel = fmt.Sprintf("%s (%s)", row.Name, info)
			}
			set = append(set, entry)
		}
		c.log.Debug("Built place set", "department", dptCode, "entries", len(set))
		return set, nil
	})
}

// preferPopulated keeps one row per (name, admin1, admin2, admin4), the P
// feature when both P and A exist. Input order is otherwise preserved.
func preferPopulated(rows []PlaceRow) []PlaceRow {
	type key struct{ name, a1, a2, a4 string }
	best := make(map[key]int, len(rows))
	out := make([]PlaceRow, 0, len(rows))
	for _, row := range rows {
		k := key{row.Name, row.Admin1, row.Admin2, row.Admin4}
		if i, ok := best[k]; ok {
			if out[i].FeatureClass < row.FeatureClass {
				out[i] = row
			}
			continue
		}
		best[k] = len(out)
		out = append(out, row)
	}
	return out
}

// TopographicSet returns home-country features of the topographic classes,
// with (department, feature class) contexts.
func (c *Catalog) TopographicSet(ctx context.Context) ([]ReferenceEntry, error) {
	return c.cachedSet("topographic", func() ([]ReferenceEntry, error) {
		rows, err := c.src.Places(ctx, PlaceQuery{
			Countries:    []string{c.opts.Country},
			FeatureCodes: TopographicFeatureCodes,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load topographic features: %w", err)
		}
		departments := c.SimplifiedDepartments()
		set := make([]ReferenceEntry, 0, len(rows))
		for _, row := range rows {
			set = append(set, ReferenceEntry{
				ID:              row.ID,
				Name:            row.Name,
				DisplayLabel:    c.Label(row.Name, row.Admin1, row.Admin2),
				ComparisonLabel: row.Name,
				Latitude:        row.Latitude,
				Longitude:       row.Longitude,
				Context: Context{
					Department:   departments[row.Admin2],
					FeatureClass: row.FeatureClass,
				},
			})
		}
		c.log.Debug("Built topographic set", "entries", len(set))
		return set, nil
	})
}

// CountrySet returns one entry per country feature, keyed by its simplified
// localized name.
func (c *Catalog) CountrySet(ctx context.Context) ([]ReferenceEntry, error) {
	return c.cachedSet("country", func() ([]ReferenceEntry, error) {
		rows := c.countryTables().rows
		if rows == nil {
			if err := c.Warm(ctx); err != nil {
				return nil, err
			}
			rows = c.countryTables().rows
		}
		seen := make(map[int64]bool, len(rows))
		set := make([]ReferenceEntry, 0, len(rows))
		for _, row := range rows {
			if row.Historic || seen[row.PlaceID] {
				continue
			}
			seen[row.PlaceID] = true
			set = append(set, ReferenceEntry{
				ID:              row.PlaceID,
				Name:            row.PlaceName,
				DisplayLabel:    row.Name,
				ComparisonLabel: row.Name,
				Latitude:        row.Latitude,
				Longitude:       row.Longitude,
				Context:         Context{Country: normalize.Simplify(row.Name)},
			})
		}
		sort.SliceStable(set, func(i, j int) bool { return set[i].ID < set[j].ID })
		return set, nil
	})
}

// CountryEntry returns the reference entry of a country code.
func (c *Catalog) CountryEntry(ctx context.Context, code string) (ReferenceEntry, bool, error) {
	set, err := c.CountrySet(ctx)
	if err != nil {
		return ReferenceEntry{}, false, err
	}
	name := c.SimplifiedCountries()[code]
	if name == "" {
		return ReferenceEntry{}, false, nil
	}
	for _, entry := range set {
		if entry.Context.Country == name {
			return entry, true, nil
		}
	}
	return ReferenceEntry{}, false, nil
}
