package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/records"
)

// Authority is a place, agent or subject authority.
type Authority struct {
	ID        int64
	Label     string
	Quality   bool
	Latitude  *float64
	Longitude *float64
}

// IndexEntry attaches an authority to a finding aid with the service that
// published it.
type IndexEntry struct {
	ID             int64
	AuthorityID    int64
	URI            string
	Label          string
	ServiceCode    string
	UnitID         string
	ServiceDptCode string
}

// ExternalRef is an external resource an authority can be the same as. URI
// is unique across sources.
type ExternalRef struct {
	ID         int64
	URI        string
	Source     string
	ExternalID string
	Label      string
	Latitude   *float64
	Longitude  *float64
}

// Link is a same-as link with its external reference.
type Link struct {
	AuthorityID   int64
	ExternalRefID int64
	URI           string
	Source        string
	Label         string
}

// CreateAuthority inserts an authority and returns its id.
func (h Handle) CreateAuthority(ctx context.Context, a Authority) (int64, error) {
	id, err := h.insertID(ctx, "authorities", []string{"label", "quality", "latitude", "longitude"},
		a.Label, a.Quality, a.Latitude, a.Longitude)
	if err != nil {
		return 0, fmt.Errorf("failed to create authority: %w", err)
	}
	return id, nil
}

// Authority fetches an authority.
func (h Handle) Authority(ctx context.Context, id int64) (Authority, bool, error) {
	a := Authority{ID: id}
	var lat, lon sql.NullFloat64
	err := h.QueryRow(ctx, `SELECT label, quality, latitude, longitude FROM authorities WHERE id = ?`, id).
		Scan(&a.Label, &a.Quality, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return Authority{}, false, nil
	}
	if err != nil {
		return Authority{}, false, fmt.Errorf("failed to fetch authority %d: %w", id, err)
	}
	a.Latitude, a.Longitude = nullable(lat), nullable(lon)
	return a, true, nil
}

// AuthorityExists reports whether an authority exists.
func (h Handle) AuthorityExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := h.QueryRow(ctx, `SELECT 1 FROM authorities WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check authority %d: %w", id, err)
	}
	return true, nil
}

// SetCoordinates overwrites the coordinates of an authority. Nil clears them.
func (h Handle) SetCoordinates(ctx context.Context, id int64, lat, lon *float64) error {
	if _, err := h.Exec(ctx, `UPDATE authorities SET latitude = ?, longitude = ? WHERE id = ?`, lat, lon, id); err != nil {
		return fmt.Errorf("failed to set coordinates of %d: %w", id, err)
	}
	return nil
}

// SetCoordinatesIfUnset sets the coordinates of an authority without
// latitude. It reports whether a row changed.
func (h Handle) SetCoordinatesIfUnset(ctx context.Context, id int64, lat, lon float64) (bool, error) {
	res, err := h.Exec(ctx, `UPDATE authorities SET latitude = ?, longitude = ? WHERE id = ? AND latitude IS NULL`, lat, lon, id)
	if err != nil {
		return false, fmt.Errorf("failed to set coordinates of %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CreateIndexEntry inserts an index entry and returns its id.
func (h Handle) CreateIndexEntry(ctx context.Context, e IndexEntry) (int64, error) {
	id, err := h.insertID(ctx, "geognames",
		[]string{"authority_id", "uri", "label", "service_code", "unit_id", "service_dpt_code"},
		e.AuthorityID, e.URI, e.Label, e.ServiceCode, e.UnitID, e.ServiceDptCode)
	if err != nil {
		return 0, fmt.Errorf("failed to create index entry: %w", err)
	}
	return id, nil
}

// LabelQuery filters AuthorityLabels. Empty fields do not filter.
type LabelQuery struct {
	AuthorityIDs   []int64
	ServiceDptCode string
	// Unaligned keeps authorities without a link of this source.
	Unaligned string
}

// AuthorityLabels returns one row per (authority, index entry), ordered by
// authority and entry.
func (h Handle) AuthorityLabels(ctx context.Context, q LabelQuery) ([]records.AuthorityLabel, error) {
	var (
		where []string
		args  []any
	)
	if len(q.AuthorityIDs) > 0 {
		where = append(where, "a.id IN ("+In(len(q.AuthorityIDs))+")")
		for _, id := range q.AuthorityIDs {
			args = append(args, id)
		}
	}
	if q.ServiceDptCode != "" {
		where = append(where, "g.service_dpt_code = ?")
		args = append(args, q.ServiceDptCode)
	}
	if q.Unaligned != "" {
		where = append(where, `NOT EXISTS (SELECT 1 FROM same_as s JOIN external_refs e ON e.id = s.external_ref_id
			WHERE s.authority_id = a.id AND e.source = ?)`)
		args = append(args, q.Unaligned)
	}
	query := `SELECT a.id, g.uri, g.label, a.label, g.unit_id, g.service_code, g.service_dpt_code, a.quality
		FROM authorities a JOIN geognames g ON g.authority_id = a.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.id, g.id"

	rows, err := h.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query authority labels: %w", err)
	}
	defer rows.Close()

	var out []records.AuthorityLabel
	for rows.Next() {
		var l records.AuthorityLabel
		var uri, unit, service, dpt sql.NullString
		if err := rows.Scan(&l.AuthorityID, &uri, &l.GeognameLabel, &l.Label, &unit, &service, &dpt, &l.Quality); err != nil {
			return nil, fmt.Errorf("failed to scan authority label: %w", err)
		}
		l.GeognameURI, l.UnitID, l.ServiceCode, l.ServiceDptCode = uri.String, unit.String, service.String, dpt.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// ExternalRefByURI fetches an external reference.
func (h Handle) ExternalRefByURI(ctx context.Context, uri string) (ExternalRef, bool, error) {
	ref := ExternalRef{URI: uri}
	var extID, label sql.NullString
	var lat, lon sql.NullFloat64
	err := h.QueryRow(ctx, `SELECT id, source, external_id, label, latitude, longitude FROM external_refs WHERE uri = ?`, uri).
		Scan(&ref.ID, &ref.Source, &extID, &label, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return ExternalRef{}, false, nil
	}
	if err != nil {
		return ExternalRef{}, false, fmt.Errorf("failed to fetch external reference %s: %w", uri, err)
	}
	ref.ExternalID, ref.Label = extID.String, label.String
	ref.Latitude, ref.Longitude = nullable(lat), nullable(lon)
	return ref, true, nil
}

// EnsureExternalRef returns the reference with ref.URI, creating it from ref
// when absent. Concurrent callers for one URI end up with the same row.
func (h Handle) EnsureExternalRef(ctx context.Context, ref ExternalRef) (ExternalRef, bool, error) {
	if existing, ok, err := h.ExternalRefByURI(ctx, ref.URI); err != nil || ok {
		return existing, false, err
	}
	res, err := h.Exec(ctx, h.dialect.InsertIgnore("external_refs",
		[]string{"uri", "source", "external_id", "label", "latitude", "longitude"}, []string{"uri"}),
		ref.URI, ref.Source, ref.ExternalID, ref.Label, ref.Latitude, ref.Longitude)
	if err != nil {
		return ExternalRef{}, false, fmt.Errorf("failed to create external reference %s: %w", ref.URI, err)
	}
	created := false
	if n, err := res.RowsAffected(); err == nil {
		created = n > 0
	}
	stored, ok, err := h.ExternalRefByURI(ctx, ref.URI)
	if err != nil {
		return ExternalRef{}, false, err
	}
	if !ok {
		return ExternalRef{}, false, fmt.Errorf("external reference %s vanished after insert", ref.URI)
	}
	return stored, created, nil
}

// SetExternalRefLabel fills the label of a reference that has none.
func (h Handle) SetExternalRefLabel(ctx context.Context, id int64, label string) error {
	_, err := h.Exec(ctx, `UPDATE external_refs SET label = ? WHERE id = ? AND (label IS NULL OR label = '')`, label, id)
	if err != nil {
		return fmt.Errorf("failed to label external reference %d: %w", id, err)
	}
	return nil
}

// InsertLink links an authority to an external reference unless already
// linked. It reports whether a link was created.
func (h Handle) InsertLink(ctx context.Context, authorityID, refID int64) (bool, error) {
	res, err := h.Exec(ctx, h.dialect.InsertIgnore("same_as",
		[]string{"authority_id", "external_ref_id"}, []string{"authority_id", "external_ref_id"}),
		authorityID, refID)
	if err != nil {
		return false, fmt.Errorf("failed to link %d to %d: %w", authorityID, refID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteLink removes a link. Unless force is set, a link the history marks
// as kept for (uri, authority) stays. It reports whether a link was removed.
func (h Handle) DeleteLink(ctx context.Context, authorityID int64, uri string, force bool) (bool, error) {
	query := `DELETE FROM same_as WHERE authority_id = ?
		AND external_ref_id IN (SELECT id FROM external_refs WHERE uri = ?)`
	args := []any{authorityID, uri}
	if !force {
		query += ` AND NOT EXISTS (SELECT 1 FROM sameas_history h
			WHERE h.uri = ? AND h.authority_id = ? AND h.action = ?)`
		args = append(args, uri, authorityID, true)
	}
	res, err := h.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to unlink %d from %s: %w", authorityID, uri, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const linkColumns = `SELECT s.authority_id, s.external_ref_id, e.uri, e.source, e.label
	FROM same_as s JOIN external_refs e ON e.id = s.external_ref_id`

// LinksBySource lists the links to references of the given sources.
func (h Handle) LinksBySource(ctx context.Context, sources ...string) ([]Link, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	args := make([]any, len(sources))
	for i, s := range sources {
		args[i] = s
	}
	return h.links(ctx, linkColumns+` WHERE e.source IN (`+In(len(sources))+`) ORDER BY s.authority_id, e.uri`, args...)
}

// LinksForAuthority lists the links of an authority.
func (h Handle) LinksForAuthority(ctx context.Context, authorityID int64) ([]Link, error) {
	return h.links(ctx, linkColumns+` WHERE s.authority_id = ? ORDER BY e.uri`, authorityID)
}

func (h Handle) links(ctx context.Context, query string, args ...any) ([]Link, error) {
	rows, err := h.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var out []Link
	for rows.Next() {
		var l Link
		var label sql.NullString
		if err := rows.Scan(&l.AuthorityID, &l.ExternalRefID, &l.URI, &l.Source, &label); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		l.Label = label.String
		out = append(out, l)
	}
	return out, rows.Err()
}

// LinkedCoordinates returns the coordinates of the first reference of source
// linked to an authority.
func (h Handle) LinkedCoordinates(ctx context.Context, authorityID int64, source string) (lat, lon float64, ok bool, err error) {
	err = h.QueryRow(ctx, `SELECT e.latitude, e.longitude
		FROM same_as s JOIN external_refs e ON e.id = s.external_ref_id
		WHERE s.authority_id = ? AND e.source = ? AND e.latitude IS NOT NULL AND e.longitude IS NOT NULL
		ORDER BY e.id`, authorityID, source).Scan(&lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to fetch coordinates of %d: %w", authorityID, err)
	}
	return lat, lon, true, nil
}

func nullable(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
