package store_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/placealign/internal/store"
	"github.com/lehigh-university-libraries/placealign/internal/store/storetest"
)

func TestRebind(t *testing.T) {
	query := `SELECT * FROM t WHERE a = ? AND b = '?' AND c IN (?, ?)`
	tests := []struct {
		dialect  *store.Dialect
		expected string
	}{
		{store.SQLite, query},
		{store.MySQL, query},
		{store.Postgres, `SELECT * FROM t WHERE a = $1 AND b = '?' AND c IN ($2, $3)`},
		{store.SQLServer, `SELECT * FROM t WHERE a = @p1 AND b = '?' AND c IN (@p2, @p3)`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			if got := tt.dialect.Rebind(query); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDialectFor(t *testing.T) {
	for driver, expected := range map[string]*store.Dialect{
		"":          store.SQLite,
		"sqlite":    store.SQLite,
		"postgres":  store.Postgres,
		"mysql":     store.MySQL,
		"sqlserver": store.SQLServer,
	} {
		d, err := store.DialectFor(driver)
		if err != nil || d != expected {
			t.Errorf("DialectFor(%q): expected %s, got %v (%v)", driver, expected.Name, d, err)
		}
	}
	if _, err := store.DialectFor("oracle"); err == nil {
		t.Error("Expected an error for an unsupported driver")
	}
}

func TestInsertIgnore(t *testing.T) {
	cols, conflict := []string{"uri", "source"}, []string{"uri"}
	tests := []struct {
		dialect  *store.Dialect
		contains string
	}{
		{store.SQLite, "ON CONFLICT (uri) DO NOTHING"},
		{store.Postgres, "ON CONFLICT (uri) DO NOTHING"},
		{store.MySQL, "INSERT IGNORE INTO external_refs"},
		{store.SQLServer, "WHEN NOT MATCHED THEN INSERT (uri, source) VALUES (src.uri, src.source)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			got := tt.dialect.InsertIgnore("external_refs", cols, conflict)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("Expected %q in %q", tt.contains, got)
			}
		})
	}
}

func TestParseExternalURI(t *testing.T) {
	tests := []struct {
		source, id, uri string
	}{
		{"databnf", "11907966", "https://data.bnf.fr/11907966/victor_hugo"},
		{"databnf", "11907966", "https://data.bnf.fr/en/11907966/victor_hugo"},
		{"databnf", "13005429", "https://data.bnf.fr/fr/ark:/12148/cb13005429m"},
		{"databnf", "11921467", "http://data.bnf.fr/ark:/12148/cb11921467w"},
		{"databnf", "13946072", "https://data.bnf.fr/ark:/12148/cb139460728"},
		{"databnf", "39269025", "https://data.bnf.fr/ark:/12148/cb39269025q"},
		{"wikidata", "Q158768", "https://www.wikidata.org/wiki/Q158768"},
		{"wikidata", "Q131412", "http://www.wikidata.org/wiki/Q131412"},
		{"fr.wikipedia.org", "", "https://fr.wikipedia.org/wiki/Edmond_Maire"},
		{"geoname", "3033123", "https://www.geonames.org/3033123"},
		{"geoname", "2986302", "http://www.geonames.org/2986302/paris.html"},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			source, id := store.ParseExternalURI(tt.uri)
			if source != tt.source || id != tt.id {
				t.Errorf("Expected (%s, %s), got (%s, %s)", tt.source, tt.id, source, id)
			}
		})
	}
}

func TestAuthorities(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)

	toulon := storetest.Authority(t, s, "Toulon (Var)", "83")
	paris := storetest.Authority(t, s, "Paris", "75")

	ok, err := s.AuthorityExists(ctx, toulon)
	if err != nil || !ok {
		t.Fatalf("Expected authority %d to exist (%v)", toulon, err)
	}
	if ok, _ := s.AuthorityExists(ctx, 9999); ok {
		t.Error("Expected authority 9999 not to exist")
	}

	lat, lon := 43.12, 5.93
	if err := s.SetCoordinates(ctx, toulon, &lat, &lon); err != nil {
		t.Fatalf("Failed to set coordinates: %v", err)
	}
	changed, err := s.SetCoordinatesIfUnset(ctx, toulon, 1, 1)
	if err != nil || changed {
		t.Errorf("Expected coordinates to be kept, changed=%v err=%v", changed, err)
	}
	a, _, _ := s.Authority(ctx, toulon)
	if a.Latitude == nil || *a.Latitude != lat {
		t.Errorf("Expected latitude %f, got %v", lat, a.Latitude)
	}

	labels, err := s.AuthorityLabels(ctx, store.LabelQuery{ServiceDptCode: "75"})
	if err != nil {
		t.Fatalf("Failed to query labels: %v", err)
	}
	if len(labels) != 1 || labels[0].AuthorityID != paris || labels[0].Label != "Paris" {
		t.Errorf("Expected the Paris label, got %+v", labels)
	}

	labels, err = s.AuthorityLabels(ctx, store.LabelQuery{AuthorityIDs: []int64{toulon, paris}})
	if err != nil || len(labels) != 2 {
		t.Errorf("Expected two labels, got %d (%v)", len(labels), err)
	}
}

func TestEnsureExternalRefConcurrent(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)

	authorities := []int64{
		storetest.Authority(t, s, "Paris", "75"),
		storetest.Authority(t, s, "Paris (Paris)", "75"),
		storetest.Authority(t, s, "Paris (Seine)", "75"),
	}

	var created atomic.Int32
	var eg errgroup.Group
	for i := 0; i < 2; i++ {
		for _, authority := range authorities {
			eg.Go(func() error {
				return s.Tx(ctx, func(tx store.Handle) error {
					ref, isNew, err := tx.EnsureExternalRef(ctx, store.ExternalRef{URI: "U", Source: store.SourceGeoname})
					if err != nil {
						return err
					}
					if isNew {
						created.Add(1)
					}
					_, err = tx.InsertLink(ctx, authority, ref.ID)
					return err
				})
			})
		}
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var refs int
	if err := s.QueryRow(ctx, `SELECT COUNT(*) FROM external_refs WHERE uri = ?`, "U").Scan(&refs); err != nil {
		t.Fatalf("Failed to count references: %v", err)
	}
	if refs != 1 {
		t.Errorf("Expected one external reference, got %d", refs)
	}
	if n := created.Load(); n != 1 {
		t.Errorf("Expected one caller to create the reference, got %d", n)
	}

	links, err := s.LinksBySource(ctx, store.SourceGeoname)
	if err != nil {
		t.Fatalf("Failed to list links: %v", err)
	}
	if len(links) != len(authorities) {
		t.Fatalf("Expected %d links, got %d", len(authorities), len(links))
	}
	for _, l := range links[1:] {
		if l.ExternalRefID != links[0].ExternalRefID {
			t.Errorf("Expected every link to share the reference, got %d and %d", links[0].ExternalRefID, l.ExternalRefID)
		}
	}
}

func TestLinkedCoordinatesSkipsHalfPairs(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Toulon (Var)", "83")

	lat, lon := 43.12442, 5.92836
	refs := []store.ExternalRef{
		{URI: "https://bano.example/half", Source: store.SourceBANO, Latitude: &lat},
		{URI: "https://bano.example/full", Source: store.SourceBANO, Latitude: &lat, Longitude: &lon},
	}
	for _, ref := range refs {
		stored, _, err := s.EnsureExternalRef(ctx, ref)
		if err != nil {
			t.Fatalf("Failed to create reference: %v", err)
		}
		if _, err := s.InsertLink(ctx, id, stored.ID); err != nil {
			t.Fatalf("Failed to link: %v", err)
		}
	}

	gotLat, gotLon, ok, err := s.LinkedCoordinates(ctx, id, store.SourceBANO)
	if err != nil {
		t.Fatalf("LinkedCoordinates failed: %v", err)
	}
	if !ok || gotLat != lat || gotLon != lon {
		t.Errorf("Expected (%v, %v), got (%v, %v) ok=%v", lat, lon, gotLat, gotLon, ok)
	}
}

func TestLinks(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Toulon (Var)", "83")

	ref, created, err := s.EnsureExternalRef(ctx, store.ExternalRef{URI: "https://www.geonames.org/2972328", Source: store.SourceGeoname})
	if err != nil || !created {
		t.Fatalf("Expected a new reference, created=%v err=%v", created, err)
	}
	again, created, err := s.EnsureExternalRef(ctx, store.ExternalRef{URI: ref.URI, Source: store.SourceGeoname})
	if err != nil || created || again.ID != ref.ID {
		t.Errorf("Expected the existing reference %d, got %d created=%v err=%v", ref.ID, again.ID, created, err)
	}

	for i, expected := range []bool{true, false} {
		added, err := s.InsertLink(ctx, id, ref.ID)
		if err != nil {
			t.Fatalf("Failed to link: %v", err)
		}
		if added != expected {
			t.Errorf("Insert %d: expected added=%v, got %v", i, expected, added)
		}
	}

	// a kept history entry guards the link
	if _, err := s.Exec(ctx, `INSERT INTO sameas_history (uri, authority_id, action, updated_at) VALUES (?, ?, ?, ?)`,
		ref.URI, id, true, time.Now()); err != nil {
		t.Fatalf("Failed to write history: %v", err)
	}
	removed, err := s.DeleteLink(ctx, id, ref.URI, false)
	if err != nil || removed {
		t.Errorf("Expected the kept link to stay, removed=%v err=%v", removed, err)
	}
	removed, err = s.DeleteLink(ctx, id, ref.URI, true)
	if err != nil || !removed {
		t.Errorf("Expected a forced removal, removed=%v err=%v", removed, err)
	}
	links, _ := s.LinksForAuthority(ctx, id)
	if len(links) != 0 {
		t.Errorf("Expected no links, got %+v", links)
	}
}

func TestSavepoint(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)

	var kept, dropped int64
	err := s.Tx(ctx, func(tx store.Handle) error {
		var err error
		kept, err = tx.CreateAuthority(ctx, store.Authority{Label: "kept"})
		if err != nil {
			return err
		}
		spErr := tx.Savepoint(ctx, "item_1", func() error {
			dropped, err = tx.CreateAuthority(ctx, store.Authority{Label: "dropped"})
			if err != nil {
				return err
			}
			return errors.New("boom")
		})
		if spErr == nil {
			t.Error("Expected the savepoint error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	if ok, _ := s.AuthorityExists(ctx, kept); !ok {
		t.Error("Expected the authority created before the savepoint to be committed")
	}
	if ok, _ := s.AuthorityExists(ctx, dropped); ok {
		t.Error("Expected the authority created in the savepoint to be rolled back")
	}

	if err := s.Savepoint(ctx, "outside", func() error { return nil }); err == nil {
		t.Error("Expected an error for a savepoint outside of a transaction")
	}
}
