package gazetteer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Source serves the loaded gazetteer.
type Source struct {
	h store.Handle
}

var _ geodata.Source = (*Source)(nil)

// NewSource returns a Source reading through h.
func NewSource(h store.Handle) *Source {
	return &Source{h: h}
}

// countryCodes are the feature codes of independent and dependent political
// entities.
var countryCodes = []string{"PCL", "PCLI", "PCLD", "PCLF", "PCLS"}

const placeColumns = `SELECT geonameid, name, COALESCE(fclass, ''), COALESCE(fcode, ''), COALESCE(country_code, ''),
	COALESCE(admin1, ''), COALESCE(admin2, ''), COALESCE(admin4, ''), COALESCE(latitude, 0), COALESCE(longitude, 0)
	FROM geonames`

func (s *Source) AdminRows(ctx context.Context, countries []string) ([]geodata.AdminRow, error) {
	if len(countries) == 0 {
		return nil, nil
	}
	args := strArgs(countries)
	args = append(args, "ADM1", "ADM2", "ADM4", "ADM4H")
	rows, err := s.h.Query(ctx, `SELECT geonameid, name, fcode, country_code,
		COALESCE(admin1, ''), COALESCE(admin2, ''), COALESCE(admin4, '')
		FROM geonames
		WHERE country_code IN (`+store.In(len(countries))+`) AND fcode IN (?, ?, ?, ?)
		ORDER BY geonameid`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query administrative divisions: %w", err)
	}
	defer rows.Close()

	var out []geodata.AdminRow
	for rows.Next() {
		var r geodata.AdminRow
		if err := rows.Scan(&r.ID, &r.Name, &r.FeatureCode, &r.CountryCode, &r.Admin1, &r.Admin2, &r.Admin4); err != nil {
			return nil, fmt.Errorf("failed to scan administrative division: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Source) CountryNames(ctx context.Context, lang string) ([]geodata.CountryName, error) {
	args := append(strArgs(countryCodes), lang)
	rows, err := s.h.Query(ctx, `SELECT g.geonameid, g.country_code, a.name, g.name, a.historic,
		COALESCE(g.latitude, 0), COALESCE(g.longitude, 0)
		FROM geonames g JOIN geonames_altnames a ON a.geonameid = g.geonameid
		WHERE g.fcode IN (`+store.In(len(countryCodes))+`) AND a.lang = ?
		ORDER BY g.geonameid, a.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query country names: %w", err)
	}
	defer rows.Close()

	var out []geodata.CountryName
	for rows.Next() {
		var r geodata.CountryName
		if err := rows.Scan(&r.PlaceID, &r.CountryCode, &r.Name, &r.PlaceName, &r.Historic, &r.Latitude, &r.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan country name: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Source) Places(ctx context.Context, q geodata.PlaceQuery) ([]geodata.PlaceRow, error) {
	var (
		where []string
		args  []any
	)
	in := func(col string, values []string) {
		if len(values) > 0 {
			where = append(where, col+" IN ("+store.In(len(values))+")")
			args = append(args, strArgs(values)...)
		}
	}
	in("country_code", q.Countries)
	in("fclass", q.FeatureClasses)
	in("fcode", q.FeatureCodes)
	if q.Admin2 != "" {
		where = append(where, "admin2 = ?")
		args = append(args, q.Admin2)
	}
	query := placeColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return s.places(ctx, query+" ORDER BY geonameid", args...)
}

func (s *Source) places(ctx context.Context, query string, args ...any) ([]geodata.PlaceRow, error) {
	rows, err := s.h.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	var out []geodata.PlaceRow
	for rows.Next() {
		var r geodata.PlaceRow
		if err := rows.Scan(&r.ID, &r.Name, &r.FeatureClass, &r.FeatureCode, &r.CountryCode,
			&r.Admin1, &r.Admin2, &r.Admin4, &r.Latitude, &r.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Source) AltNames(ctx context.Context, country, lang string) ([]geodata.AltName, error) {
	rows, err := s.h.Query(ctx, `SELECT a.geonameid, a.name
		FROM geonames_altnames a JOIN geonames g ON g.geonameid = a.geonameid
		WHERE g.country_code = ? AND a.lang = ? AND g.fclass IN (?, ?)
		ORDER BY a.geonameid, a.id`, country, lang, "A", "P")
	if err != nil {
		return nil, fmt.Errorf("failed to query alternate names: %w", err)
	}
	defer rows.Close()

	var out []geodata.AltName
	for rows.Next() {
		var a geodata.AltName
		if err := rows.Scan(&a.PlaceID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan alternate name: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Source) Place(ctx context.Context, id int64) (geodata.PlaceRow, bool, error) {
	rows, err := s.places(ctx, placeColumns+" WHERE geonameid = ?", id)
	if err != nil || len(rows) == 0 {
		return geodata.PlaceRow{}, false, err
	}
	return rows[0], true, nil
}

// PreferredAltName returns the preferred non-historic name of a place in
// lang, else its first non-historic name.
func (s *Source) PreferredAltName(ctx context.Context, id int64, lang string) (string, bool, error) {
	var name string
	err := s.h.QueryRow(ctx, `SELECT name FROM geonames_altnames
		WHERE geonameid = ? AND lang = ? AND historic = ?
		ORDER BY preferred DESC, id`, id, lang, false).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query alternate name of %d: %w", id, err)
	}
	return name, true, nil
}

// Street is one BANO street.
type Street struct {
	ID        string
	Voie      string
	PostCode  string
	City      string
	CityKey   string
	Latitude  float64
	Longitude float64
}

// Streets returns the BANO streets of the given city keys.
func (s *Source) Streets(ctx context.Context, cityKeys []string) ([]Street, error) {
	if len(cityKeys) == 0 {
		return nil, nil
	}
	rows, err := s.h.Query(ctx, `SELECT id, voie, COALESCE(code_post, ''), nom_comm, city_key,
		COALESCE(latitude, 0), COALESCE(longitude, 0)
		FROM bano WHERE city_key IN (`+store.In(len(cityKeys))+`) ORDER BY id`, strArgs(cityKeys)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query streets: %w", err)
	}
	defer rows.Close()

	var out []Street
	for rows.Next() {
		var st Street
		if err := rows.Scan(&st.ID, &st.Voie, &st.PostCode, &st.City, &st.CityKey, &st.Latitude, &st.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan street: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func strArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
