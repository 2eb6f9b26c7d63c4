// Package geodata holds the geographic reference catalog: lookup tables of
// cities, departments, regions and countries derived from the gazetteer, plus
// the reference sets the matcher aligns against.
package geodata

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lehigh-university-libraries/placealign/internal/normalize"
)

// OverseasDepartments maps overseas department codes to the country code
// the gazetteer files them under.
var OverseasDepartments = map[string]string{
	"971": "GP", // Guadeloupe
	"972": "MQ", // Martinique
	"973": "GF", // Guyane
	"974": "RE", // Réunion
	"975": "PM", // Saint-Pierre-et-Miquelon
	"976": "YT", // Mayotte
	"977": "BL", // Saint-Barthélemy
	"978": "MF", // Saint-Martin
	"986": "WF", // Wallis-et-Futuna
	"987": "PF", // Polynésie française
	"988": "NC", // Nouvelle-Calédonie
}

// Metropolis lists territorial collectivities handled as departments.
var Metropolis = map[string]string{"69M": "Métropole de Lyon"}

// HistoricRegions maps pre-2016 region names to the code of the region that
// absorbed them.
var HistoricRegions = map[string]string{
	"Alsace":            "44",
	"Aquitaine":         "75",
	"Auvergne":          "84",
	"Basse-Normandie":   "28",
	"Bourgogne":         "27",
	"Champagne-Ardenne": "44",
	"Centre":            "24",
	"Franche-Comté":     "27",
	"Haute-Normandie":   "28",
	"Limousin":          "75",
	"Lorraine":          "44",
	"Midi-Pyrénées":     "76",
	"Picardie":          "32",
	"Rhône-Alpes":       "84",
}

// BlacklistedDepartments are departments whose names are also common place
// names (Allier, Aube, Corrèze, Paris, ...). A context token matching one of
// them is read as a department, never as a city.
var BlacklistedDepartments = []string{"03", "10", "19", "23", "25", "36", "40", "53", "75", "84", "86"}

var departmentPrefix = regexp.MustCompile(`^Département (de l'|de l’|de la |du |des |d'|d’|de )`)

// Context is the positional context shared by parsed records and reference
// entries. Empty fields mean unknown.
type Context struct {
	Department   string `yaml:"department,omitempty" json:"department,omitempty"`
	City         string `yaml:"city,omitempty" json:"city,omitempty"`
	Country      string `yaml:"country,omitempty" json:"country,omitempty"`
	FeatureClass string `yaml:"feature_class,omitempty" json:"feature_class,omitempty"`
}

// Options configures a Catalog.
type Options struct {
	Country  string
	Language string
	Logger   *slog.Logger
}

type adminTables struct {
	cities      map[string]string
	departments map[string]string
	regions     map[string]string

	simplifiedCities          map[string]string
	simplifiedDepartments     map[string]string
	simplifiedRegions         map[string]string
	simplifiedHistoricRegions map[string]string
	simplifiedBlacklist       map[string]string

	departmentNames map[string]bool
	blacklistNames  map[string]bool
	cityNames       map[string]bool
	regionNames     map[string]bool
}

type countryTables struct {
	rows                []CountryName
	countries           map[string]string
	simplifiedCountries map[string]string
	codes               map[string]string // simplified name -> country code
}

// Catalog is a read-mostly cache of lookup tables built from a Source.
// Tables are computed on first access and kept until Rebuild. It is safe for
// concurrent use.
type Catalog struct {
	src  Source
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	admin     atomic.Pointer[adminTables]
	countries atomic.Pointer[countryTables]
	err       error

	setsMu sync.Mutex
	sets   map[string][]ReferenceEntry

	// labels caches ExternalLabel by URI
	labels *lru.Cache[string, string]
}

// labelCacheSize bounds the ExternalLabel cache.
const labelCacheSize = 8192

// New creates a catalog. Nothing is loaded until a table is requested.
func New(src Source, opts Options) *Catalog {
	if opts.Country == "" {
		opts.Country = "FR"
	}
	if opts.Language == "" {
		opts.Language = "fr"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	labels, _ := lru.New[string, string](labelCacheSize)
	return &Catalog{src: src, opts: opts, log: log, labels: labels}
}

// Country returns the home country code.
func (c *Catalog) Country() string { return c.opts.Country }

// Language returns the ISO language used for alternate names.
func (c *Catalog) Language() string { return c.opts.Language }

// Source returns the backing gazetteer.
func (c *Catalog) Source() Source { return c.src }

// Err returns the last error recorded by a lazy accessor.
func (c *Catalog) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Warm loads every lookup table, returning the first error.
func (c *Catalog) Warm(ctx context.Context) error {
	if _, err := c.loadAdmin(ctx); err != nil {
		return err
	}
	_, err := c.loadCountries(ctx)
	return err
}

// Rebuild drops every cached table and reference set and reloads them.
func (c *Catalog) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	c.admin.Store(nil)
	c.countries.Store(nil)
	c.err = nil
	c.mu.Unlock()

	c.setsMu.Lock()
	c.sets = nil
	c.setsMu.Unlock()
	c.labels.Purge()

	return c.Warm(ctx)
}

func (c *Catalog) adminTables() *adminTables {
	if t := c.admin.Load(); t != nil {
		return t
	}
	t, err := c.loadAdmin(context.Background())
	if err != nil {
		c.log.Error("Failed to load administrative divisions", "error", err)
		// keep an empty table until Rebuild so lookups do not retry per token
		empty := &adminTables{}
		c.admin.CompareAndSwap(nil, empty)
		return c.admin.Load()
	}
	return t
}

func (c *Catalog) countryTables() *countryTables {
	if t := c.countries.Load(); t != nil {
		return t
	}
	t, err := c.loadCountries(context.Background())
	if err != nil {
		c.log.Error("Failed to load country names", "error", err)
		c.countries.CompareAndSwap(nil, &countryTables{})
		return c.countries.Load()
	}
	return t
}

func (c *Catalog) homeCountries() []string {
	countries := []string{c.opts.Country}
	if c.opts.Country == "FR" {
		countries = append(countries, sortedValues(OverseasDepartments)...)
	}
	return countries
}

func (c *Catalog) loadAdmin(ctx context.Context) (*adminTables, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.admin.Load(); t != nil {
		return t, nil
	}

	rows, err := c.src.AdminRows(ctx, c.homeCountries())
	if err != nil {
		c.err = fmt.Errorf("failed to load administrative rows: %w", err)
		return nil, c.err
	}

	t := &adminTables{
		cities:      make(map[string]string),
		departments: make(map[string]string),
		regions:     make(map[string]string),
	}
	for _, row := range rows {
		switch row.FeatureCode {
		case "ADM4", "ADM4H":
			if row.Admin4 != "" {
				t.cities[row.Admin4] = row.Name
			}
		case "ADM2":
			if row.Admin2 != "" {
				t.departments[row.Admin2] = departmentPrefix.ReplaceAllString(row.Name, "")
			}
		case "ADM1":
			if row.Admin1 != "" {
				t.regions[row.Admin1] = row.Name
			}
		}
	}
	if c.opts.Country == "FR" {
		for code, name := range Metropolis {
			t.departments[code] = name
		}
	}

	t.simplifiedCities = simplifyValues(t.cities)
	t.simplifiedDepartments = simplifyValues(t.departments)
	t.simplifiedRegions = simplifyValues(t.regions)

	t.simplifiedHistoricRegions = make(map[string]string, len(HistoricRegions))
	for name, code := range HistoricRegions {
		t.simplifiedHistoricRegions[code+":"+name] = normalize.Simplify(name)
	}

	t.simplifiedBlacklist = make(map[string]string)
	t.blacklistNames = make(map[string]bool)
	for _, code := range BlacklistedDepartments {
		if name, ok := t.simplifiedDepartments[code]; ok {
			t.simplifiedBlacklist[code] = name
			t.blacklistNames[name] = true
		}
	}

	t.departmentNames = valueSet(t.simplifiedDepartments)
	t.cityNames = valueSet(t.simplifiedCities)
	t.regionNames = valueSet(t.simplifiedRegions)
	for _, name := range t.simplifiedHistoricRegions {
		t.regionNames[name] = true
	}

	c.admin.Store(t)
	c.log.Debug("Loaded administrative divisions",
		"cities", len(t.cities),
		"departments", len(t.departments),
		"regions", len(t.regions))
	return t, nil
}

func (c *Catalog) loadCountries(ctx context.Context) (*countryTables, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.countries.Load(); t != nil {
		return t, nil
	}

	rows, err := c.src.CountryNames(ctx, c.opts.Language)
	if err != nil {
		c.err = fmt.Errorf("failed to load country names: %w", err)
		return nil, c.err
	}

	t := &countryTables{rows: rows, countries: make(map[string]string, len(rows))}
	for _, row := range rows {
		if row.Historic {
			continue
		}
		// first name wins, rows come sorted by name
		if _, ok := t.countries[row.CountryCode]; !ok {
			t.countries[row.CountryCode] = row.Name
		}
	}
	t.simplifiedCountries = simplifyValues(t.countries)
	t.codes = make(map[string]string, len(t.countries))
	for code, name := range t.simplifiedCountries {
		t.codes[name] = code
	}

	c.countries.Store(t)
	c.log.Debug("Loaded country names", "countries", len(t.countries))
	return t, nil
}

// Cities maps admin4 codes to city names.
func (c *Catalog) Cities() map[string]string { return c.adminTables().cities }

// SimplifiedCities maps admin4 codes to simplified city names.
func (c *Catalog) SimplifiedCities() map[string]string { return c.adminTables().simplifiedCities }

// Departments maps admin2 codes to department names without their
// "Département de" prefix.
func (c *Catalog) Departments() map[string]string { return c.adminTables().departments }

// SimplifiedDepartments maps admin2 codes to simplified department names.
func (c *Catalog) SimplifiedDepartments() map[string]string {
	return c.adminTables().simplifiedDepartments
}

// Regions maps admin1 codes to region names.
func (c *Catalog) Regions() map[string]string { return c.adminTables().regions }

// SimplifiedRegions maps admin1 codes to simplified region names.
func (c *Catalog) SimplifiedRegions() map[string]string { return c.adminTables().simplifiedRegions }

// SimplifiedHistoricRegions maps "code:name" keys to simplified historic
// region names. Several historic regions share a current code.
func (c *Catalog) SimplifiedHistoricRegions() map[string]string {
	return c.adminTables().simplifiedHistoricRegions
}

// Blacklist maps blacklisted department codes to simplified names.
func (c *Catalog) Blacklist() map[string]string { return c.adminTables().simplifiedBlacklist }

// Countries maps country codes to their localized names.
func (c *Catalog) Countries() map[string]string { return c.countryTables().countries }

// SimplifiedCountries maps country codes to simplified localized names.
func (c *Catalog) SimplifiedCountries() map[string]string {
	return c.countryTables().simplifiedCountries
}

// IsDepartment reports whether the simplified token names a department.
func (c *Catalog) IsDepartment(token string) bool { return c.adminTables().departmentNames[token] }

// DepartmentByCode returns the simplified department name for a code.
func (c *Catalog) DepartmentByCode(code string) (string, bool) {
	name, ok := c.adminTables().simplifiedDepartments[code]
	return name, ok
}

// IsBlacklisted reports whether the simplified token names a blacklisted
// department.
func (c *Catalog) IsBlacklisted(token string) bool { return c.adminTables().blacklistNames[token] }

// IsCity reports whether the simplified token names a city.
func (c *Catalog) IsCity(token string) bool { return c.adminTables().cityNames[token] }

// IsRegion reports whether the simplified token names a current or historic
// region.
func (c *Catalog) IsRegion(token string) bool { return c.adminTables().regionNames[token] }

// CountryCode returns the country code for a simplified country name.
func (c *Catalog) CountryCode(token string) (string, bool) {
	code, ok := c.countryTables().codes[token]
	return code, ok
}

// IsHomeCountry reports whether the simplified token names the home country.
func (c *Catalog) IsHomeCountry(token string) bool {
	code, ok := c.CountryCode(token)
	return ok && code == c.opts.Country
}

// CountryForDepartment returns the gazetteer country code of a department:
// the overseas country code, or the home country.
func (c *Catalog) CountryForDepartment(code string) string {
	if cc, ok := OverseasDepartments[code]; ok {
		return cc
	}
	return c.opts.Country
}

func simplifyValues(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = normalize.Simplify(v)
	}
	return out
}

func valueSet(m map[string]string) map[string]bool {
	out := make(map[string]bool, len(m))
	for _, v := range m {
		out[v] = true
	}
	return out
}

func sortedValues(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return values
}
