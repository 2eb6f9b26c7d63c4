package alignment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/matcher"
	"github.com/lehigh-university-libraries/placealign/internal/pipeline"
	"github.com/lehigh-university-libraries/placealign/internal/proposal"
	"github.com/lehigh-university-libraries/placealign/internal/records"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Geonames aligns place labels with the gazetteer.
type Geonames struct {
	catalog *geodata.Catalog
	matcher *matcher.Matcher
	builder *records.Builder
	pool    pipeline.Options
	log     *slog.Logger
}

var _ Target = (*Geonames)(nil)

// NewGeonames returns the GeoNames target. Chunks of labels are built and
// matched concurrently according to pool.
func NewGeonames(catalog *geodata.Catalog, m *matcher.Matcher, pool pipeline.Options, log *slog.Logger) *Geonames {
	if log == nil {
		log = slog.Default()
	}
	pool.Log = log
	return &Geonames{
		catalog: catalog,
		matcher: m,
		builder: records.NewBuilder(catalog, log),
		pool:    pool,
		log:     log,
	}
}

func (g *Geonames) Kind() proposal.Kind { return proposal.KindGeoname }

func (g *Geonames) Compute(ctx context.Context, labels []records.AuthorityLabel, progress func(float64)) (Output, error) {
	out := Output{Kind: proposal.KindGeoname}
	if len(labels) == 0 {
		g.log.Info("no location found, skip GeoNames alignment")
		return out, nil
	}
	if err := g.catalog.Warm(ctx); err != nil {
		return out, fmt.Errorf("failed to load the gazetteer: %w", err)
	}

	results, err := pipeline.Run(ctx, labels, g.pool, g.align, progress)
	pairs, failed := pipeline.Flatten(results)
	if err != nil {
		return out, err
	}
	if failed > 0 {
		return out, fmt.Errorf("failed to align %d of %d chunks", failed, len(results))
	}

	for _, p := range pairs {
		row := labelRow(p.Record.Source)
		row.ExternalURI = p.Entry.URI()
		row.ExternalLabel = p.Entry.DisplayLabel
		lat, lon, confidence := p.Entry.Latitude, p.Entry.Longitude, p.Confidence()
		row.Latitude, row.Longitude, row.Confidence = &lat, &lon, &confidence
		out.Rows = append(out.Rows, row)
		out.Candidates = append(out.Candidates, proposal.Candidate{
			AuthorityID:    p.Record.Source.AuthorityID,
			AuthorityLabel: p.Record.DisplayLabel,
			ExternalURI:    row.ExternalURI,
			ExternalLabel:  row.ExternalLabel,
			Source:         store.SourceGeoname,
			Stage:          p.Stage,
			Distance:       p.Distance,
			Confidence:     confidence,
		})
	}
	sortOutput(&out)
	out.Rows = dedupe(out.Rows)
	g.log.Info("Computed GeoNames alignments", "labels", len(labels), "alignments", len(out.Rows))
	return out, nil
}

// align builds and matches one chunk of labels.
func (g *Geonames) align(ctx context.Context, c pipeline.Chunk[records.AuthorityLabel]) ([]matcher.CandidatePair, error) {
	sets := g.builder.Build(c.Rows)
	g.log.Debug("Built records",
		"chunk", c.Index,
		"national", len(sets.National),
		"department_only", len(sets.DepartmentOnly),
		"country_only", len(sets.CountryOnly),
		"topographic", len(sets.Topographic))

	var pairs []matcher.CandidatePair
	if len(sets.National) > 0 {
		set, err := g.catalog.PlaceSet(ctx, "")
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, g.matcher.Geo(sets.National, set)...)
	}

	byDpt := make(map[string][]records.ParsedRecord)
	for _, r := range sets.DepartmentOnly {
		byDpt[r.Source.ServiceDptCode] = append(byDpt[r.Source.ServiceDptCode], r)
	}
	dpts := make([]string, 0, len(byDpt))
	for dpt := range byDpt {
		dpts = append(dpts, dpt)
	}
	sort.Strings(dpts)
	for _, dpt := range dpts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set, err := g.catalog.PlaceSet(ctx, dpt)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, g.matcher.Geo(byDpt[dpt], set)...)
	}

	if len(sets.Topographic) > 0 {
		set, err := g.catalog.TopographicSet(ctx)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, g.matcher.Topographic(sets.Topographic, set)...)
	}

	if len(sets.CountryOnly) > 0 {
		foreign, err := g.matcher.Foreign(ctx, g.catalog, sets.CountryOnly)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, foreign...)
	}
	return pairs, nil
}
