package alignment

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/placealign/internal/gazetteer"
	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/geodata/geodatatest"
	"github.com/lehigh-university-libraries/placealign/internal/ledger"
	"github.com/lehigh-university-libraries/placealign/internal/matcher"
	"github.com/lehigh-university-libraries/placealign/internal/pipeline"
	"github.com/lehigh-university-libraries/placealign/internal/proposal"
	"github.com/lehigh-university-libraries/placealign/internal/records"
	"github.com/lehigh-university-libraries/placealign/internal/store"
	"github.com/lehigh-university-libraries/placealign/internal/store/storetest"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGeonames(t *testing.T, pool pipeline.Options) *Geonames {
	t.Helper()
	m, err := matcher.New(matcher.DefaultConfig(), quiet())
	if err != nil {
		t.Fatalf("Failed to create matcher: %v", err)
	}
	catalog := geodata.New(geodatatest.Fixture(), geodata.Options{Logger: quiet()})
	return NewGeonames(catalog, m, pool, quiet())
}

var placeLabels = []records.AuthorityLabel{
	{AuthorityID: 1, Label: "Toulon (Var)"},
	{AuthorityID: 2, Label: "Paris", ServiceDptCode: "75"},
	{AuthorityID: 3, Label: "Allemagne"},
	{AuthorityID: 4, Label: "Rhône (cours d'eau)"},
	{AuthorityID: 5, Label: "Montaigu (collège de)"},
	{AuthorityID: 6, Label: "Munich (Allemagne)", Quality: true},
}

func TestGeonamesCompute(t *testing.T) {
	out, err := newGeonames(t, pipeline.Options{ChunkSize: 2, Workers: 2}).Compute(context.Background(), placeLabels, nil)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	expected := map[int64]int64{
		1: geodatatest.ToulonID,
		2: geodatatest.ParisID,
		3: geodatatest.GermanyID,
		4: geodatatest.RhoneRiverID,
		6: geodatatest.MunichID,
	}
	if len(out.Rows) != len(expected) {
		t.Fatalf("Expected %d rows, got %+v", len(expected), out.Rows)
	}
	for _, row := range out.Rows {
		if row.ExternalURI != geodata.URIForID(expected[row.AuthorityID]) {
			t.Errorf("Authority %d: expected %s, got %s", row.AuthorityID, geodata.URIForID(expected[row.AuthorityID]), row.ExternalURI)
		}
		if !row.Keep || row.Confidence == nil || *row.Confidence <= 0 {
			t.Errorf("Authority %d: expected a kept row with a confidence, got %+v", row.AuthorityID, row)
		}
		if row.Latitude == nil || row.Longitude == nil {
			t.Errorf("Authority %d: expected coordinates", row.AuthorityID)
		}
		if row.Quality == nil || *row.Quality != (row.AuthorityID == 6) {
			t.Errorf("Authority %d: expected the quality flag to be carried, got %v", row.AuthorityID, row.Quality)
		}
	}
	if len(out.Candidates) != len(out.Rows) {
		t.Errorf("Expected one candidate per row, got %d", len(out.Candidates))
	}
}

func TestGeonamesDeterministic(t *testing.T) {
	ctx := context.Background()
	var outputs []Output
	for _, pool := range []pipeline.Options{{ChunkSize: 1, Workers: 4}, {ChunkSize: 100, Workers: 1}} {
		out, err := newGeonames(t, pool).Compute(ctx, placeLabels, nil)
		if err != nil {
			t.Fatalf("Compute failed: %v", err)
		}
		outputs = append(outputs, out)
	}
	if !reflect.DeepEqual(outputs[0].Rows, outputs[1].Rows) {
		t.Errorf("Expected identical rows whatever the pool, got %+v and %+v", outputs[0].Rows, outputs[1].Rows)
	}
}

func TestGeonamesProgress(t *testing.T) {
	var seen []float64
	_, err := newGeonames(t, pipeline.Options{ChunkSize: 2, Workers: 1}).Compute(context.Background(), placeLabels, func(f float64) {
		seen = append(seen, f)
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(seen) != 3 || seen[2] != 1 {
		t.Errorf("Expected three progress reports ending at 1, got %v", seen)
	}
}

func TestParseAddress(t *testing.T) {
	minutier := func(label string) records.AuthorityLabel {
		return records.AuthorityLabel{Label: label, ServiceCode: "FRAN", UnitID: "MC/ET/XCII/1024"}
	}
	tests := []struct {
		name     string
		label    records.AuthorityLabel
		expected Address
		ok       bool
	}{
		{"street type", records.AuthorityLabel{Label: "Paris -- Rivoli (rue de)"}, Address{"Paris", "rue de Rivoli"}, true},
		{"context and qualifier", records.AuthorityLabel{Label: "Lyon (Rhône) -- Bellecour (place ; ancienne)"}, Address{"Lyon", "place Bellecour"}, true},
		{"plain street", records.AuthorityLabel{Label: "Toulon -- Boulevard de Strasbourg"}, Address{"Toulon", "Boulevard de Strasbourg"}, true},
		{"notarial archives", minutier("Saint-Honoré (rue)"), Address{"Paris", "rue Saint-Honoré"}, true},
		{"notarial archives with city", minutier("Versailles -- Satory (rue de)"), Address{"Paris", "rue de Satory"}, true},
		{"no subdivision", records.AuthorityLabel{Label: "Toulon (Var)"}, Address{}, false},
		{"no city", records.AuthorityLabel{Label: "-- Rivoli"}, Address{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, ok := ParseAddress(tt.label)
			if ok != tt.ok || addr != tt.expected {
				t.Errorf("Expected %+v (%v), got %+v (%v)", tt.expected, tt.ok, addr, ok)
			}
		})
	}
}

type streets struct {
	rows      []gazetteer.Street
	requested []string
}

func (s *streets) Streets(ctx context.Context, cityKeys []string) ([]gazetteer.Street, error) {
	s.requested = cityKeys
	var out []gazetteer.Street
	for _, st := range s.rows {
		if slices.Contains(cityKeys, st.CityKey) {
			out = append(out, st)
		}
	}
	return out, nil
}

func TestBanoCompute(t *testing.T) {
	src := &streets{rows: []gazetteer.Street{
		{ID: "751010001", Voie: "Rue de Rivoli", City: "Paris", CityKey: "paris", Latitude: 48.86, Longitude: 2.34},
		{ID: "751010002", Voie: "Rue Saint-Honoré", City: "Paris", CityKey: "paris", Latitude: 48.86, Longitude: 2.33},
		{ID: "831370001", Voie: "Boulevard de Strasbourg", City: "Toulon", CityKey: "toulon", Latitude: 43.12, Longitude: 5.93},
	}}
	labels := []records.AuthorityLabel{
		{AuthorityID: 1, Label: "Paris -- Rivoli (rue de)"},
		{AuthorityID: 2, Label: "Saint-Honoré (rue)", ServiceCode: "FRAN", UnitID: "MC/ET/XCII/1024"},
		{AuthorityID: 3, Label: "Lyon -- Bellecour (place)"},
		{AuthorityID: 4, Label: "Toulon (Var)"},
		{AuthorityID: 5, Label: "Paris -- Rivoli (rue)"},
	}

	out, err := NewBano(src, quiet()).Compute(context.Background(), labels, nil)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !reflect.DeepEqual(src.requested, []string{"lyon", "paris"}) {
		t.Errorf("Expected the streets of lyon and paris, got %v", src.requested)
	}

	expected := []struct {
		authority int64
		id        string
		label     string
	}{
		{1, "751010001", "Paris, Rue de Rivoli"},
		{2, "751010002", "Paris, Rue Saint-Honoré"},
		{5, "751010001", "Paris, Rue de Rivoli"},
	}
	if len(out.Rows) != len(expected) {
		t.Fatalf("Expected %d rows, got %+v", len(expected), out.Rows)
	}
	for i, e := range expected {
		row := out.Rows[i]
		if row.AuthorityID != e.authority || row.ExternalURI != e.id || row.ExternalLabel != e.label {
			t.Errorf("Row %d: expected %+v, got %+v", i, e, row)
		}
		if row.Latitude == nil || row.Quality != nil {
			t.Errorf("Row %d: expected coordinates and no quality, got %+v", i, row)
		}
	}
}

func TestBanoWithoutStreets(t *testing.T) {
	out, err := NewBano(&streets{}, quiet()).Compute(context.Background(), []records.AuthorityLabel{
		{AuthorityID: 1, Label: "Toulon (Var)"},
	}, nil)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(out.Rows) != 0 {
		t.Errorf("Expected no rows, got %+v", out.Rows)
	}
}

func geonameRow(id int64, label string, place int64, keep bool) proposal.Row {
	return proposal.Row{
		AuthorityID:    id,
		AuthorityLabel: label,
		ExternalURI:    geodata.URIForID(place),
		ExternalLabel:  label,
		Keep:           keep,
	}
}

func importFile(t *testing.T, im *Importer, rows []proposal.Row, opts ImportOptions) ImportReport {
	t.Helper()
	var buf bytes.Buffer
	if err := proposal.Write(&buf, proposal.KindGeoname, rows, false); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	report, err := im.Import(context.Background(), proposal.KindGeoname, &buf, opts)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	return report
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := storetest.Open(t)
	toulon := storetest.Authority(t, s, "Toulon (Var)", "83")
	paris := storetest.Authority(t, s, "Paris", "75")
	im := NewImporter(s, nil, quiet())

	rows := []proposal.Row{
		geonameRow(toulon, "Toulon (Var)", geodatatest.ToulonID, true),
		geonameRow(paris, "Paris", geodatatest.ParisID, true),
	}
	report := importFile(t, im, rows, ImportOptions{})
	if len(report.Persisted.Added) != 2 {
		t.Fatalf("Expected 2 added, got %+v", report.Persisted)
	}

	// the same file again changes nothing
	report = importFile(t, im, rows, ImportOptions{})
	if len(report.Persisted.Added) != 0 || len(report.Persisted.Removed) != 0 {
		t.Errorf("Expected an idempotent import, got %+v", report.Persisted)
	}

	rows[1].Keep = false
	report = importFile(t, im, rows, ImportOptions{Override: true})
	if len(report.Persisted.Removed) != 1 || report.Persisted.Removed[0].AuthorityID != paris {
		t.Fatalf("Expected the Paris link to go, got %+v", report.Persisted)
	}
	history, err := ledger.Get(ctx, s.Handle, ledger.Query{Complete: true})
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if action, ok := history.Action(geodata.URIForID(geodatatest.ParisID), paris); !ok || action {
		t.Errorf("Expected a removal in the history, got action=%v ok=%v", action, ok)
	}

	// the history now keeps the automatic pass from restoring it
	rows[1].Keep = true
	report = importFile(t, im, rows, ImportOptions{})
	if len(report.Persisted.Added) != 0 || len(report.Skipped) != 1 {
		t.Errorf("Expected the rejected link to stay out, got %+v", report)
	}

	links, err := s.LinksBySource(ctx, store.SourceGeoname)
	if err != nil {
		t.Fatalf("Failed to list links: %v", err)
	}
	if len(links) != 1 || links[0].AuthorityID != toulon {
		t.Errorf("Expected only the Toulon link, got %+v", links)
	}
}

func TestImportInvalidRows(t *testing.T) {
	s := storetest.Open(t)
	id := storetest.Authority(t, s, "Toulon (Var)", "83")
	schema, _ := proposal.SchemaFor(proposal.KindGeoname)

	var buf bytes.Buffer
	buf.WriteString(strings.Join(schema.Headers(false), "\t") + "\n")
	buf.WriteString(strings.Join([]string{strconv.FormatInt(id, 10), "", "", "", "Toulon (Var)", geodata.URIForID(geodatatest.ToulonID), "Toulon", "", "", "peut-être", "", ""}, "\t") + "\n")
	buf.WriteString(strings.Join([]string{"", "", "", "", "Toulon (Var)", geodata.URIForID(geodatatest.ToulonID), "Toulon", "", "", "yes", "", ""}, "\t") + "\n")

	report, err := NewImporter(s, nil, quiet()).Import(context.Background(), proposal.KindGeoname, &buf, ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(report.InvalidKeep) != 1 || report.InvalidKeep[0] != 1 {
		t.Errorf("Expected row 1 to carry an invalid keep, got %v", report.InvalidKeep)
	}
	if len(report.Invalid) != 1 {
		t.Errorf("Expected one invalid row, got %v", report.Invalid)
	}
	if report.Rows != 0 {
		t.Errorf("Expected no valid row, got %d", report.Rows)
	}
}

func TestImportMissingColumn(t *testing.T) {
	s := storetest.Open(t)
	_, err := NewImporter(s, nil, quiet()).Import(context.Background(), proposal.KindBANO, bytes.NewBufferString("keep\nyes\n"), ImportOptions{})
	if err == nil {
		t.Error("Expected an error for missing columns")
	}
}
