// Package labelparse splits archival place labels such as
// "Toulon (Var, France)" into a core name and a positional context.
package labelparse

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/normalize"
)

// Kind tells how the core name should be compared.
type Kind int

const (
	Plain Kind = iota
	Administrative
	Topographic
)

func (k Kind) String() string {
	switch k {
	case Administrative:
		return "administrative"
	case Topographic:
		return "topographic"
	default:
		return "plain"
	}
}

// MarshalYAML renders the kind by name.
func (k Kind) MarshalYAML() (interface{}, error) { return k.String(), nil }

// Hint carries what the publishing service knows about a label.
type Hint struct {
	ServiceCode string
	UnitID      string
	DptCode     string
}

// Gazetteer is the part of the geographic catalog the parser needs.
// *geodata.Catalog implements it.
type Gazetteer interface {
	IsDepartment(token string) bool
	DepartmentByCode(code string) (string, bool)
	IsCity(token string) bool
	IsRegion(token string) bool
	CountryCode(token string) (string, bool)
	Country() string
}

// Feature is the topographic keyword found in a label.
type Feature struct {
	Keyword string `yaml:"keyword,omitempty"`
	Class   string `yaml:"class,omitempty"`
}

// Parsed is the outcome of Parse. Context fields hold simplified values.
type Parsed struct {
	Label          string          `yaml:"label"`
	CoreName       string          `yaml:"core_name"`
	ComparisonName string          `yaml:"comparison_name,omitempty"`
	Context        geodata.Context `yaml:"context"`
	CountryCode    string          `yaml:"country_code,omitempty"`
	Tokens         []string        `yaml:"tokens,omitempty"`
	Kind           Kind            `yaml:"kind"`
	Topographic    Feature         `yaml:"topographic,omitempty"`
	Administrative string          `yaml:"administrative,omitempty"`
	Subdivision    string          `yaml:"subdivision,omitempty"`
	Skip           bool            `yaml:"skip,omitempty"`
	SkipReason     string          `yaml:"skip_reason,omitempty"`
	Minutier       bool            `yaml:"minutier,omitempty"`
	// HasContext is set when the label carries a parenthesized context,
	// trusted or not.
	HasContext bool `yaml:"has_context"`
	Untrusted  bool `yaml:"untrusted,omitempty"`
	// Understood is set when at least one context token was recognized.
	Understood bool `yaml:"understood"`
}

// IsHome reports whether the country found in the context is the home
// country, or no country was found.
func (p Parsed) IsHome(home string) bool {
	return p.CountryCode == "" || p.CountryCode == home || isOverseasCountry(p.CountryCode)
}

func isOverseasCountry(code string) bool {
	for _, cc := range geodata.OverseasDepartments {
		if cc == code {
			return true
		}
	}
	return false
}

var contextRE = regexp.MustCompile(`(?s)^\s*([^(]+)\(([^)]+)\)(.*)$`)

// Parser parses labels against a gazetteer. It is safe for concurrent use
// when the gazetteer is.
type Parser struct {
	gaz Gazetteer
	log *slog.Logger
}

// New creates a parser. A nil logger means slog.Default().
func New(gaz Gazetteer, log *slog.Logger) *Parser {
	if log == nil {
		log = slog.Default()
	}
	return &Parser{gaz: gaz, log: log}
}

// Parse never fails: unparseable input comes back as a Parsed whose core
// name is the label itself.
func (p *Parser) Parse(label string, hint Hint) (out Parsed) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("could not parse label", "label", label, "panic", r)
			out = Parsed{Label: label, CoreName: strings.TrimSpace(label)}
		}
	}()

	label = strings.TrimSpace(label)
	out = Parsed{Label: label, CoreName: label}
	if label == "" {
		out.Skip, out.SkipReason = true, "empty label"
		return out
	}

	var context, rawContext, info string
	scan := label
	if m := contextRE.FindStringSubmatch(label); m != nil {
		out.HasContext = true
		out.CoreName = strings.TrimSpace(m[1])
		scan = out.CoreName
		rawContext = m[2]
		trailing := strings.TrimSpace(m[3])
		switch {
		case trailing == "":
			context = rawContext
		case strings.HasPrefix(trailing, "--"):
			context = rawContext
			out.Subdivision = strings.TrimSpace(strings.TrimPrefix(trailing, "--"))
		default:
			out.Untrusted = true
			p.log.Debug("ignoring context followed by free text", "label", label)
		}
	} else if head, tail, ok := splitSubdivision(label); ok {
		scan = head
		out.Subdivision = tail
	}
	if _, after, ok := strings.Cut(label, "--"); ok {
		info = after
	}

	base, segmentKeyword := p.scanCore(&out, scan)
	if out.Skip {
		return out
	}

	for _, part := range strings.Split(context, ",") {
		for _, raw := range strings.Split(part, ";") {
			token := normalize.Simplify(raw)
			if token == "" {
				continue
			}
			out.Tokens = append(out.Tokens, token)
			p.classify(&out, token)
			if out.Skip {
				return out
			}
		}
	}

	if !segmentKeyword {
		base = out.CoreName
	}
	switch {
	case out.Topographic.Keyword != "":
		out.Kind = Topographic
		out.ComparisonName = out.Topographic.Keyword + " " + base
	case out.Administrative != "":
		out.Kind = Administrative
		out.CoreName = out.Administrative + " de " + base
	}

	out.Minutier = isMinutier(hint, rawContext, info)
	return out
}

// scanCore looks for a keyword in the last comma segment of the core name,
// as in "Versailles, château de". It returns the core without that segment.
func (p *Parser) scanCore(out *Parsed, core string) (string, bool) {
	segments := strings.Split(core, ",")
	if len(segments) < 2 {
		return core, false
	}
	last := strings.Fields(normalize.Simplify(segments[len(segments)-1]))
	rest := strings.TrimSpace(strings.Join(segments[:len(segments)-1], ","))

	if k, ok := leading(last, blacklistedFeatures, true); ok {
		out.Skip, out.SkipReason = true, "blacklisted feature: "+k.text
		return core, false
	}
	if k, ok := leading(last, topographicKeywords, true); ok {
		out.Topographic = Feature{Keyword: k.text, Class: k.class}
		out.Context.FeatureClass = k.class
		return rest, true
	}
	if k, ok := leading(last, administrativeKeywords, true); ok {
		out.Administrative = k.text
		return rest, true
	}
	return core, false
}

// classify records what a single simplified context token says. The first
// recognized value of each context field wins.
func (p *Parser) classify(out *Parsed, token string) {
	words := strings.Fields(token)
	if k, ok := contains(words, blacklistedFeatures); ok {
		out.Skip, out.SkipReason = true, "blacklisted feature: "+k.text
		return
	}
	if k, ok := leading(words, topographicKeywords, true); ok {
		if out.Topographic.Keyword == "" {
			out.Topographic = Feature{Keyword: k.text, Class: k.class}
			out.Context.FeatureClass = k.class
		}
		return
	}
	// checked before administrative keywords: "departement d outre mer"
	// starts with "departement"
	if _, ok := leading(words, overseasKeywords, true); ok {
		out.Understood = true
		return
	}
	if k, ok := leading(words, administrativeKeywords, true); ok {
		if out.Administrative == "" {
			out.Administrative = k.text
		}
		return
	}
	if p.gaz.IsDepartment(token) {
		p.setDepartment(out, token)
		return
	}
	if name, ok := p.gaz.DepartmentByCode(strings.ToUpper(token)); ok {
		p.setDepartment(out, name)
		return
	}
	if p.gaz.IsRegion(token) {
		out.Understood = true
		return
	}
	if code, ok := p.gaz.CountryCode(token); ok {
		out.Understood = true
		if out.CountryCode == "" {
			out.CountryCode = code
			out.Context.Country = token
		}
		return
	}
	// department names were handled above, so a blacklisted department
	// such as "aube" never lands here as a city
	if p.gaz.IsCity(token) {
		out.Understood = true
		if out.Context.City == "" {
			out.Context.City = token
		}
	}
}

func (p *Parser) setDepartment(out *Parsed, name string) {
	out.Understood = true
	if out.Context.Department == "" {
		out.Context.Department = name
	}
}

// splitSubdivision splits "Paris -- Rue de Rivoli" on its first subdivision
// separator.
func splitSubdivision(label string) (string, string, bool) {
	for _, sep := range []string{"--", " \u2014 "} {
		if head, tail, ok := strings.Cut(label, sep); ok {
			return strings.TrimSpace(head), strings.TrimSpace(tail), true
		}
	}
	return label, "", false
}

// isMinutier applies the notarial archives rule: units MC/... of the FRAN
// service qualified by a street-level word are located in Paris.
func isMinutier(hint Hint, context, info string) bool {
	if hint.ServiceCode != "FRAN" || !strings.HasPrefix(hint.UnitID, "MC/") {
		return false
	}
	if context != "" && normalize.ContainsAny(context, cityWords) {
		return true
	}
	return info != "" && normalize.ContainsAny(info, cityWords)
}
