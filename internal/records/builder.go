// Package records turns authority labels into the parsed records the
// matcher aligns, partitioned by how they can be anchored.
package records

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/labelparse"
	"github.com/lehigh-university-libraries/placealign/internal/normalize"
)

// Class is the partition a record belongs to.
type Class int

const (
	Skipped Class = iota
	National
	DepartmentOnly
	CountryOnly
	Topographic
	Unanchored
)

func (c Class) String() string {
	switch c {
	case National:
		return "national"
	case DepartmentOnly:
		return "department-only"
	case CountryOnly:
		return "country-only"
	case Topographic:
		return "topographic"
	case Unanchored:
		return "unanchored"
	default:
		return "skipped"
	}
}

// MarshalYAML renders the class by name.
func (c Class) MarshalYAML() (interface{}, error) { return c.String(), nil }

// AuthorityLabel is one (authority, index entry) row to align.
type AuthorityLabel struct {
	AuthorityID    int64  `yaml:"authority_id" json:"authority_id" parquet:"authority_id"`
	GeognameURI    string `yaml:"geogname_uri,omitempty" json:"geogname_uri,omitempty" parquet:"geogname_uri,optional"`
	GeognameLabel  string `yaml:"geogname_label,omitempty" json:"geogname_label,omitempty" parquet:"geogname_label,optional"`
	AuthorityURI   string `yaml:"authority_uri,omitempty" json:"authority_uri,omitempty" parquet:"authority_uri,optional"`
	Label          string `yaml:"label" json:"label" parquet:"label"`
	UnitID         string `yaml:"unit_id,omitempty" json:"unit_id,omitempty" parquet:"unit_id,optional"`
	ServiceCode    string `yaml:"service_code,omitempty" json:"service_code,omitempty" parquet:"service_code,optional"`
	ServiceDptCode string `yaml:"service_dpt_code,omitempty" json:"service_dpt_code,omitempty" parquet:"service_dpt_code,optional"`
	Quality        bool   `yaml:"quality,omitempty" json:"quality,omitempty" parquet:"quality,optional"`
}

// ParsedRecord is a label ready for alignment.
type ParsedRecord struct {
	CoreName        string          `yaml:"core_name"`
	Context         geodata.Context `yaml:"context"`
	DisplayLabel    string          `yaml:"display_label"`
	ComparisonLabel string          `yaml:"comparison_label"`
	CountryCode     string          `yaml:"country_code,omitempty"`
	Class           Class           `yaml:"class"`
	Source          AuthorityLabel  `yaml:"-"`
}

// Sets holds the records of each alignable class.
type Sets struct {
	National       []ParsedRecord
	DepartmentOnly []ParsedRecord
	CountryOnly    []ParsedRecord
	Topographic    []ParsedRecord
}

// Len returns the number of records across all sets.
func (s Sets) Len() int {
	return len(s.National) + len(s.DepartmentOnly) + len(s.CountryOnly) + len(s.Topographic)
}

// Append merges other into s, keeping order.
func (s *Sets) Append(other Sets) {
	s.National = append(s.National, other.National...)
	s.DepartmentOnly = append(s.DepartmentOnly, other.DepartmentOnly...)
	s.CountryOnly = append(s.CountryOnly, other.CountryOnly...)
	s.Topographic = append(s.Topographic, other.Topographic...)
}

// Builder classifies authority labels. It is safe for concurrent use.
type Builder struct {
	gaz    labelparse.Gazetteer
	parser *labelparse.Parser
	log    *slog.Logger
}

// NewBuilder creates a builder. A nil logger means slog.Default().
func NewBuilder(gaz labelparse.Gazetteer, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{gaz: gaz, parser: labelparse.New(gaz, log), log: log}
}

// Parser returns the label parser used by the builder.
func (b *Builder) Parser() *labelparse.Parser { return b.parser }

// Build classifies every row. Skipped and unanchored rows are logged and
// left out.
func (b *Builder) Build(rows []AuthorityLabel) Sets {
	var sets Sets
	for _, row := range rows {
		record, class := b.Classify(row)
		switch class {
		case National:
			sets.National = append(sets.National, record)
		case DepartmentOnly:
			sets.DepartmentOnly = append(sets.DepartmentOnly, record)
		case CountryOnly:
			sets.CountryOnly = append(sets.CountryOnly, record)
		case Topographic:
			sets.Topographic = append(sets.Topographic, record)
		}
	}
	return sets
}

// Classify assigns a row to exactly one class and builds its record. The
// record is meaningful only for alignable classes.
func (b *Builder) Classify(row AuthorityLabel) (ParsedRecord, Class) {
	hint := labelparse.Hint{ServiceCode: row.ServiceCode, UnitID: row.UnitID, DptCode: row.ServiceDptCode}
	p := b.parser.Parse(row.Label, hint)

	record := ParsedRecord{
		CoreName:        p.CoreName,
		DisplayLabel:    row.Label,
		ComparisonLabel: row.Label,
		CountryCode:     p.CountryCode,
		Source:          row,
	}
	classify := func(c Class) (ParsedRecord, Class) {
		record.Class = c
		return record, c
	}

	if p.Skip {
		b.log.Debug("Skipping label", "authority", row.AuthorityID, "label", row.Label, "reason", p.SkipReason)
		return classify(Skipped)
	}

	if p.Kind == labelparse.Topographic {
		record.Context = geodata.Context{
			Department:   p.Context.Department,
			FeatureClass: p.Context.FeatureClass,
		}
		record.ComparisonLabel = p.ComparisonName
		return classify(Topographic)
	}

	if !p.HasContext {
		if code, ok := b.gaz.CountryCode(normalize.Simplify(p.CoreName)); ok {
			record.Context = geodata.Context{Country: normalize.Simplify(p.CoreName)}
			record.CountryCode = code
			return classify(CountryOnly)
		}
	}

	if p.Minutier {
		record.CoreName = "Paris"
		record.Context = geodata.Context{Department: "paris", City: "paris"}
		record.ComparisonLabel = "Paris (paris, paris)"
		return classify(National)
	}

	if p.Context.Department != "" {
		record.Context = p.Context
		if record.Context.City == "" {
			record.Context.City = normalize.Simplify(p.CoreName)
		}
		return classify(National)
	}

	if p.Context.Country != "" && !p.IsHome(b.gaz.Country()) {
		record.Context = geodata.Context{Country: p.Context.Country}
		return classify(CountryOnly)
	}

	if row.ServiceDptCode != "" {
		if dpt, ok := b.gaz.DepartmentByCode(row.ServiceDptCode); ok {
			record.Context = p.Context
			record.Context.Department = dpt
			if record.Context.City == "" && !p.HasContext {
				record.Context.City = normalize.Simplify(p.CoreName)
			}
			record.ComparisonLabel = fmt.Sprintf("%s %s", row.Label, dpt)
			return classify(DepartmentOnly)
		}
		b.log.Warn("Unknown service department", "authority", row.AuthorityID, "dpt", row.ServiceDptCode)
	}

	if p.Understood || !p.HasContext {
		record.Context = p.Context
		return classify(National)
	}

	b.log.Debug("No anchor for label", "authority", row.AuthorityID, "label", row.Label)
	return classify(Unanchored)
}
