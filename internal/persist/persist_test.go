package persist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/geodata/geodatatest"
	"github.com/lehigh-university-libraries/placealign/internal/ledger"
	"github.com/lehigh-university-libraries/placealign/internal/reconcile"
	"github.com/lehigh-university-libraries/placealign/internal/store"
	"github.com/lehigh-university-libraries/placealign/internal/store/storetest"
)

func ptr(f float64) *float64 { return &f }

func geoname(id int64, uri string, lat, lon float64) reconcile.Proposal {
	return reconcile.Proposal{
		AuthorityID: id, URI: uri, Source: store.SourceGeoname, Label: "Paris", Keep: true,
		Latitude: ptr(lat), Longitude: ptr(lon),
	}
}

func count(t *testing.T, s *store.Store, query string, args ...any) int {
	t.Helper()
	var n int
	if err := s.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	return n
}

func TestApplyIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	first := storetest.Authority(t, s, "Paris", "75")
	second := storetest.Authority(t, s, "Paris (Seine)", "75")
	p := New(s, nil, nil)

	plan := reconcile.Plan{ToAdd: []reconcile.Proposal{
		geoname(first, "U", 48.85, 2.35),
		geoname(second, "U", 48.85, 2.35),
	}}
	for i, expected := range []int{2, 0} {
		report, err := p.Apply(ctx, plan, false)
		if err != nil {
			t.Fatalf("Apply %d failed: %v", i, err)
		}
		if len(report.Added) != expected {
			t.Errorf("Apply %d: expected %d added, got %d", i, expected, len(report.Added))
		}
	}

	if n := count(t, s, `SELECT COUNT(*) FROM external_refs WHERE uri = ?`, "U"); n != 1 {
		t.Errorf("Expected one external reference, got %d", n)
	}
	if n := count(t, s, `SELECT COUNT(*) FROM same_as`); n != 2 {
		t.Errorf("Expected two links, got %d", n)
	}
}

func TestApplyUnknownAuthority(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Paris", "75")

	plan := reconcile.Plan{ToAdd: []reconcile.Proposal{
		geoname(9999, "A", 0, 0),
		geoname(id, "B", 48.85, 2.35),
	}}
	report, err := New(s, nil, nil).Apply(ctx, plan, false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Skipped) != 1 || !errors.Is(report.Skipped[0].Err, ErrAuthorityNotFound) {
		t.Errorf("Expected the unknown authority to be skipped, got %+v", report.Skipped)
	}
	if len(report.Added) != 1 || report.Added[0].AuthorityID != id {
		t.Errorf("Expected the other item to be added, got %+v", report.Added)
	}
	if n := count(t, s, `SELECT COUNT(*) FROM external_refs WHERE uri = ?`, "A"); n != 0 {
		t.Errorf("Expected the skipped item to leave no reference, got %d", n)
	}
}

func TestApplyOverrideRecordsHistory(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Paris", "75")
	p := New(s, nil, nil)

	if _, err := p.Apply(ctx, reconcile.Plan{ToAdd: []reconcile.Proposal{geoname(id, "X", 1, 1)}}, true); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	history, err := ledger.Get(ctx, s.Handle, ledger.Query{Complete: true})
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if action, ok := history.Action("X", id); !ok || !action {
		t.Errorf("Expected a kept entry, got action=%v ok=%v", action, ok)
	}

	// without override the kept entry guards the link
	remove := reconcile.Plan{ToRemove: []store.Link{{AuthorityID: id, URI: "X", Source: store.SourceGeoname}}}
	report, err := p.Apply(ctx, remove, false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Removed) != 0 || len(report.Skipped) != 1 {
		t.Errorf("Expected the guarded link to stay, got %+v", report)
	}

	report, err = p.Apply(ctx, remove, true)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Removed) != 1 {
		t.Errorf("Expected one removal, got %+v", report)
	}
	history, _ = ledger.Get(ctx, s.Handle, ledger.Query{Complete: true})
	if action, ok := history.Action("X", id); !ok || action {
		t.Errorf("Expected a removed entry, got action=%v ok=%v", action, ok)
	}
	a, _, _ := s.Authority(ctx, id)
	if a.Latitude != nil {
		t.Errorf("Expected coordinates to be cleared, got %v", *a.Latitude)
	}
}

func TestCoordinates(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Paris, rue de Rivoli", "75")
	p := New(s, nil, nil)

	address := reconcile.Proposal{
		AuthorityID: id, URI: "75101_1234", Source: store.SourceBANO, Label: "Paris, rue de Rivoli", Keep: true,
		Latitude: ptr(48.86), Longitude: ptr(2.34),
	}
	plan := reconcile.Plan{ToAdd: []reconcile.Proposal{address, geoname(id, "G", 48.85, 2.35)}}
	if _, err := p.Apply(ctx, plan, true); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	a, _, _ := s.Authority(ctx, id)
	if a.Latitude == nil || *a.Latitude != 48.86 {
		t.Fatalf("Expected the address coordinates to hold, got %v", a.Latitude)
	}

	plan = reconcile.Plan{ToRemove: []store.Link{{AuthorityID: id, URI: "75101_1234", Source: store.SourceBANO}}}
	if _, err := p.Apply(ctx, plan, true); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	a, _, _ = s.Authority(ctx, id)
	if a.Latitude == nil || *a.Latitude != 48.85 {
		t.Errorf("Expected the toponym coordinates after removal, got %v", a.Latitude)
	}
}

func TestCoordinatesWithoutOverride(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Paris", "75")
	if err := s.SetCoordinates(ctx, id, ptr(1), ptr(1)); err != nil {
		t.Fatalf("Failed to set coordinates: %v", err)
	}

	plan := reconcile.Plan{ToAdd: []reconcile.Proposal{geoname(id, "G", 48.85, 2.35)}}
	if _, err := New(s, nil, nil).Apply(ctx, plan, false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	a, _, _ := s.Authority(ctx, id)
	if a.Latitude == nil || *a.Latitude != 1 {
		t.Errorf("Expected existing coordinates to stay, got %v", a.Latitude)
	}
}

func TestHalfCoordinatesAreDropped(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Toulon, rue Jean Jaurès", "83")
	p := New(s, nil, nil)

	address := reconcile.Proposal{
		AuthorityID: id, URI: "83137_0420", Source: store.SourceBANO, Label: "Toulon, rue Jean Jaurès", Keep: true,
		Latitude: ptr(43.12),
	}
	if _, err := p.Apply(ctx, reconcile.Plan{ToAdd: []reconcile.Proposal{address}}, false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if n := count(t, s, `SELECT COUNT(*) FROM external_refs WHERE latitude IS NOT NULL OR longitude IS NOT NULL`); n != 0 {
		t.Errorf("Expected no stored coordinates, got %d references", n)
	}

	report, err := p.Apply(ctx, reconcile.Plan{ToAdd: []reconcile.Proposal{geoname(id, "G", 43.12, 5.93)}}, false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Added) != 1 || len(report.Failed) != 0 {
		t.Fatalf("Expected the toponym link to be added, got %+v", report)
	}
	a, _, _ := s.Authority(ctx, id)
	if a.Latitude == nil || *a.Latitude != 43.12 || a.Longitude == nil || *a.Longitude != 5.93 {
		t.Errorf("Expected the toponym coordinates, got %v %v", a.Latitude, a.Longitude)
	}

	remove := reconcile.Plan{ToRemove: []store.Link{{AuthorityID: id, URI: "83137_0420", Source: store.SourceBANO}}}
	report, err = p.Apply(ctx, remove, false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Removed) != 1 {
		t.Errorf("Expected the address link to be removed, got %+v", report)
	}
}

func TestExternalLabel(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Toulon (Var)", "83")
	catalog := geodata.New(geodatatest.Fixture(), geodata.Options{})

	uri := geodata.URIForID(geodatatest.ToulonID)
	prop := reconcile.Proposal{AuthorityID: id, URI: uri, Source: store.SourceGeoname, Keep: true}
	if _, err := New(s, catalog, nil).Apply(ctx, reconcile.Plan{ToAdd: []reconcile.Proposal{prop}}, false); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	ref, ok, err := s.ExternalRefByURI(ctx, uri)
	if err != nil || !ok {
		t.Fatalf("Expected the reference to exist, ok=%v err=%v", ok, err)
	}
	if !strings.HasPrefix(ref.Label, "Toulon (") {
		t.Errorf("Expected a computed label, got %q", ref.Label)
	}
}

// storeLabeler reads the store like the gazetteer-backed catalog does.
type storeLabeler struct {
	s     *store.Store
	calls int
}

func (l *storeLabeler) ExternalLabel(ctx context.Context, uri string) (string, error) {
	l.calls++
	var n int
	if err := l.s.QueryRow(ctx, `SELECT COUNT(*) FROM authorities`).Scan(&n); err != nil {
		return "", err
	}
	return "Label of " + uri, nil
}

func TestExternalLabelReadsStore(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	first := storetest.Authority(t, s, "Toulon", "83")
	second := storetest.Authority(t, s, "Toulon (Var)", "83")
	labels := &storeLabeler{s: s}

	plan := reconcile.Plan{ToAdd: []reconcile.Proposal{
		{AuthorityID: first, URI: "T", Source: store.SourceGeoname, Keep: true},
		{AuthorityID: second, URI: "T", Source: store.SourceGeoname, Keep: true},
	}}
	report, err := New(s, labels, nil).Apply(ctx, plan, false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if len(report.Added) != 2 {
		t.Errorf("Expected 2 added, got %+v", report)
	}
	if labels.calls != 1 {
		t.Errorf("Expected one label lookup per URI, got %d", labels.calls)
	}
	ref, _, _ := s.ExternalRefByURI(ctx, "T")
	if ref.Label != "Label of T" {
		t.Errorf("Expected the computed label, got %q", ref.Label)
	}
}
