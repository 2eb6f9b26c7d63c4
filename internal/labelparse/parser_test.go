package labelparse

import (
	"log/slog"
	"reflect"
	"testing"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/geodata/geodatatest"
)

func newParser() *Parser {
	return New(geodata.New(geodatatest.Fixture(), geodata.Options{}), slog.Default())
}

func TestParse(t *testing.T) {
	p := newParser()

	tests := []struct {
		name       string
		label      string
		core       string
		context    geodata.Context
		kind       Kind
		understood bool
	}{
		{
			name:       "department and country",
			label:      "Toulon (Var, France)",
			core:       "Toulon",
			context:    geodata.Context{Department: "var", Country: "france"},
			understood: true,
		},
		{
			name:       "blacklisted department is never a city",
			label:      "Bar-sur-Seine (Aube, France)",
			core:       "Bar-sur-Seine",
			context:    geodata.Context{Department: "aube", Country: "france"},
			understood: true,
		},
		{
			name:       "city token",
			label:      "Cortiambles (Givry)",
			core:       "Cortiambles",
			context:    geodata.Context{City: "givry"},
			understood: true,
		},
		{
			name:       "department code",
			label:      "Givry (71)",
			core:       "Givry",
			context:    geodata.Context{Department: "saone et loire"},
			understood: true,
		},
		{
			name:       "administrative keyword",
			label:      "Reims (Marne , arrondissement)",
			core:       "arrondissement de Reims",
			context:    geodata.Context{Department: "marne"},
			kind:       Administrative,
			understood: true,
		},
		{
			name:       "overseas keyword",
			label:      "Réunion (France ; département d'outre-mer)",
			core:       "Réunion",
			context:    geodata.Context{Country: "france"},
			understood: true,
		},
		{
			name:       "foreign country",
			label:      "Lahore (Pakistan)",
			core:       "Lahore",
			context:    geodata.Context{Country: "pakistan"},
			understood: true,
		},
		{
			name:  "unknown context",
			label: "Montaigu (collège de)",
			core:  "Montaigu",
		},
		{
			name:  "context followed by free text",
			label: "Toulon (Var) et environs",
			core:  "Toulon",
		},
		{
			name:  "no context",
			label: "Mesvres",
			core:  "Mesvres",
		},
		{
			name:  "comma in core is not a keyword",
			label: "Le lac de Menet, 1783 (aveu au roi par Gabrielle de la Croix)",
			core:  "Le lac de Menet, 1783",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.label, Hint{})
			if got.Skip {
				t.Fatalf("Expected label to be kept, skipped: %s", got.SkipReason)
			}
			if got.CoreName != tt.core {
				t.Errorf("Expected core %q, got %q", tt.core, got.CoreName)
			}
			if got.Context != tt.context {
				t.Errorf("Expected context %+v, got %+v", tt.context, got.Context)
			}
			if got.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, got.Kind)
			}
			if got.Understood != tt.understood {
				t.Errorf("Expected understood=%v, got %v", tt.understood, got.Understood)
			}
		})
	}
}

func TestParseTopographic(t *testing.T) {
	p := newParser()

	tests := []struct {
		name       string
		label      string
		core       string
		comparison string
		context    geodata.Context
	}{
		{
			name:       "keyword in context with subdivision",
			label:      "Aisne (Marne ; cours d'eau) -- Sainte-Menehould",
			core:       "Aisne",
			comparison: "cours d eau Aisne",
			context:    geodata.Context{Department: "marne", FeatureClass: ClassHydro},
		},
		{
			name:       "inverted keyword without context",
			label:      "Cormeilles en Vexin, aéroport",
			core:       "Cormeilles en Vexin, aéroport",
			comparison: "aeroport Cormeilles en Vexin",
			context:    geodata.Context{FeatureClass: ClassSpot},
		},
		{
			name:       "inverted keyword with preposition",
			label:      "Versailles, château de (Yvelines)",
			core:       "Versailles, château de",
			comparison: "chateau Versailles",
			context:    geodata.Context{FeatureClass: ClassSpot},
		},
		{
			name:       "keyword wins over administrative keyword",
			label:      "Rhône (cours d'eau, département)",
			core:       "Rhône",
			comparison: "cours d eau Rhône",
			context:    geodata.Context{FeatureClass: ClassHydro},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.label, Hint{})
			if got.Kind != Topographic {
				t.Fatalf("Expected topographic kind, got %s", got.Kind)
			}
			if got.CoreName != tt.core {
				t.Errorf("Expected core %q, got %q", tt.core, got.CoreName)
			}
			if got.ComparisonName != tt.comparison {
				t.Errorf("Expected comparison %q, got %q", tt.comparison, got.ComparisonName)
			}
			if got.Context != tt.context {
				t.Errorf("Expected context %+v, got %+v", tt.context, got.Context)
			}
		})
	}
}

func TestParseSkip(t *testing.T) {
	p := newParser()

	for _, label := range []string{
		" Crocq (Creuse, France ; canton)",
		"Autun (diocèse)",
		"Bourges, généralité de",
		"",
	} {
		if got := p.Parse(label, Hint{}); !got.Skip {
			t.Errorf("Expected %q to be skipped", label)
		}
	}
}

func TestParseSubdivision(t *testing.T) {
	p := newParser()

	got := p.Parse("Paris -- Rue de Rivoli", Hint{})
	if got.CoreName != "Paris -- Rue de Rivoli" {
		t.Errorf("Expected the whole label as core, got %q", got.CoreName)
	}
	if got.Subdivision != "Rue de Rivoli" {
		t.Errorf("Expected subdivision, got %q", got.Subdivision)
	}
	if !reflect.DeepEqual(got.Tokens, []string(nil)) {
		t.Errorf("Expected no context tokens, got %v", got.Tokens)
	}
}

func TestMinutier(t *testing.T) {
	p := newParser()
	minutier := Hint{ServiceCode: "FRAN", UnitID: "MC/ET/XCII/1024"}

	tests := []struct {
		name     string
		label    string
		hint     Hint
		expected bool
	}{
		{"street in context", "Saint-Honoré (rue)", minutier, true},
		{"street after subdivision", "Paris -- Quai des Orfèvres", minutier, true},
		{"no street word", "Versailles (Yvelines)", minutier, false},
		{"other service", "Saint-Honoré (rue)", Hint{ServiceCode: "FRAD071", UnitID: "MC/1"}, false},
		{"other unit", "Saint-Honoré (rue)", Hint{ServiceCode: "FRAN", UnitID: "AJ/1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Parse(tt.label, tt.hint).Minutier; got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

type panickingGazetteer struct{}

func (panickingGazetteer) IsDepartment(string) bool { panic("boom") }
func (panickingGazetteer) DepartmentByCode(string) (string, bool) { panic("boom") }
func (panickingGazetteer) IsCity(string) bool { panic("boom") }
func (panickingGazetteer) IsRegion(string) bool { panic("boom") }
func (panickingGazetteer) CountryCode(string) (string, bool) { panic("boom") }
func (panickingGazetteer) Country() string { return "FR" }

func TestParseRecovers(t *testing.T) {
	p := New(panickingGazetteer{}, nil)

	got := p.Parse(" Toulon (Var) ", Hint{})
	if got.CoreName != "Toulon (Var)" {
		t.Errorf("Expected the label as core name, got %q", got.CoreName)
	}
	if got.Understood || got.Skip {
		t.Errorf("Expected an empty parse, got %+v", got)
	}
}
