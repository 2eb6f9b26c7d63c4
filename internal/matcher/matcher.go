package matcher

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/placealign/internal/blocking"
	"github.com/lehigh-university-libraries/placealign/internal/distance"
	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/records"
)

// Config tunes the alignment pipelines.
type Config struct {
	Distance                  string  `yaml:"distance"`
	GeoThreshold              float64 `yaml:"geo_threshold"`
	MinHashThreshold          float64 `yaml:"minhash_threshold"`
	NGramSize                 int     `yaml:"ngram_size"`
	NGramDepth                int     `yaml:"ngram_depth"`
	TopographicThreshold      float64 `yaml:"topographic_threshold"`
	TopographicLooseThreshold float64 `yaml:"topographic_loose_threshold"`
	ForeignCountryDistance    float64 `yaml:"foreign_country_distance"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Distance:                  distance.Default,
		GeoThreshold:              0.2,
		MinHashThreshold:          0.4,
		NGramSize:                 3,
		NGramDepth:                1,
		TopographicThreshold:      0.2,
		TopographicLooseThreshold: 0.1,
		ForeignCountryDistance:    0.7,
	}
}

// Matcher holds the configured pipelines. It is immutable and safe for
// concurrent use.
type Matcher struct {
	cfg         Config
	log         *slog.Logger
	geo         PipelineAligner
	topographic PipelineAligner
	country     Aligner
}

// New builds the pipelines of cfg. A nil logger means slog.Default().
func New(cfg Config, log *slog.Logger) (*Matcher, error) {
	if log == nil {
		log = slog.Default()
	}
	dist, err := distance.ByName(cfg.Distance)
	if err != nil {
		return nil, fmt.Errorf("failed to configure matcher: %w", err)
	}
	m := &Matcher{cfg: cfg, log: log}

	minhash := func(ref, target blocking.Field) blocking.MinHash {
		return blocking.MinHash{Threshold: cfg.MinHashThreshold, RefField: ref, TargetField: target}
	}
	stages := func(stages ...blocking.Blocker) blocking.Pipeline {
		return blocking.Pipeline{Stages: stages, Log: log}
	}

	m.geo = PipelineAligner{Log: log, Aligners: []Aligner{
		{
			Name:      "department+city",
			Blocking:  stages(blocking.DepartmentCity(), minhash(blocking.Name, blocking.Name)),
			Distance:  dist,
			Threshold: cfg.GeoThreshold,
		},
		{
			Name:      "department",
			Blocking:  stages(blocking.Department(), minhash(blocking.Name, blocking.Name)),
			Distance:  dist,
			Threshold: cfg.GeoThreshold,
		},
		{
			Name: "ngram",
			Blocking: stages(
				blocking.NGram{Size: cfg.NGramSize, Depth: cfg.NGramDepth, RefField: blocking.Label, TargetField: blocking.Label},
				minhash(blocking.Label, blocking.Label),
			),
			Distance:  dist,
			Threshold: cfg.GeoThreshold,
		},
	}}

	located := stages(blocking.Department(), blocking.FeatureClass())
	m.topographic = PipelineAligner{Log: log, Aligners: []Aligner{
		{
			Name:      "topographic prefixed",
			Blocking:  located,
			Distance:  dist,
			Threshold: cfg.TopographicThreshold,
			RefField:  blocking.Label,
		},
		{
			Name:      "topographic",
			Blocking:  located,
			Distance:  dist,
			Threshold: cfg.TopographicThreshold,
		},
		{
			Name:      "topographic prefixed loose",
			Blocking:  stages(blocking.FeatureClass(), minhash(blocking.Label, blocking.Name)),
			Distance:  dist,
			Threshold: cfg.TopographicLooseThreshold,
			RefField:  blocking.Label,
		},
		{
			Name:      "topographic loose",
			Blocking:  stages(blocking.FeatureClass(), minhash(blocking.Name, blocking.Name)),
			Distance:  dist,
			Threshold: cfg.TopographicLooseThreshold,
		},
	}}

	m.country = Aligner{
		Name:     "country",
		Blocking: blocking.Country(),
		Distance: distance.Zero,
	}
	return m, nil
}

// Config returns the matcher tuning.
func (m *Matcher) Config() Config { return m.cfg }

// Geo aligns national or department-only records with a place set.
func (m *Matcher) Geo(recs []records.ParsedRecord, set []geodata.ReferenceEntry) []CandidatePair {
	return candidates(m.geo.Align(RecordItems(recs), EntryItems(set)), recs, set)
}

// Topographic aligns topographic records with the topographic set.
func (m *Matcher) Topographic(recs []records.ParsedRecord, set []geodata.ReferenceEntry) []CandidatePair {
	return candidates(m.topographic.Align(RecordItems(recs), EntryItems(set)), recs, set)
}

// Countries aligns records with the country set on the simplified country
// name of their context.
func (m *Matcher) Countries(recs []records.ParsedRecord, set []geodata.ReferenceEntry) []CandidatePair {
	return candidates(m.country.Align(RecordItems(recs), EntryItems(set)), recs, set)
}
