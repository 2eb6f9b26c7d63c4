package geodata

import "context"

// AdminRow is an administrative division (feature class A) of the gazetteer.
type AdminRow struct {
	ID          int64
	Name        string
	FeatureCode string
	CountryCode string
	Admin1      string
	Admin2      string
	Admin4      string
}

// CountryName is a localized alternate name of a country feature (PCL, PCLI).
type CountryName struct {
	PlaceID     int64
	CountryCode string
	Name        string
	PlaceName   string
	Historic    bool
	Latitude    float64
	Longitude   float64
}

// PlaceRow is one gazetteer feature.
type PlaceRow struct {
	ID           int64
	Name         string
	FeatureClass string
	FeatureCode  string
	CountryCode  string
	Admin1       string
	Admin2       string
	Admin4       string
	Latitude     float64
	Longitude    float64
}

// PlaceQuery filters gazetteer features. Empty fields do not filter.
type PlaceQuery struct {
	Countries      []string
	Admin2         string
	FeatureClasses []string
	FeatureCodes   []string
}

// AltName is an alternate name of a feature.
type AltName struct {
	PlaceID int64
	Name    string
}

// Source is the gazetteer backing a Catalog.
type Source interface {
	// AdminRows returns ADM1, ADM2, ADM4 and ADM4H rows of the given countries.
	AdminRows(ctx context.Context, countries []string) ([]AdminRow, error)
	// CountryNames returns alternate names of country features in lang,
	// sorted by place and name.
	CountryNames(ctx context.Context, lang string) ([]CountryName, error)
	Places(ctx context.Context, q PlaceQuery) ([]PlaceRow, error)
	// AltNames returns alternate names in lang of populated places and
	// administrative divisions of a country.
	AltNames(ctx context.Context, country, lang string) ([]AltName, error)
	Place(ctx context.Context, id int64) (PlaceRow, bool, error)
	PreferredAltName(ctx context.Context, id int64, lang string) (string, bool, error)
}
