// Package gazetteer loads the GeoNames and BANO dumps into the record store
// and serves them back to the catalog and the aligners.
package gazetteer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/normalize"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 5000

// Loader writes dumps into a store.
type Loader struct {
	store     *store.Store
	batchSize int
	log       *slog.Logger
}

// NewLoader returns a Loader. A non-positive batchSize uses
// DefaultBatchSize.
func NewLoader(s *store.Store, batchSize int, log *slog.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loader{store: s, batchSize: batchSize, log: log}
}

// LoadGeoNames reads a GeoNames "geoname" dump (FR.txt, allCountries.txt):
// geonameid, name, asciiname, alternatenames, latitude, longitude, feature
// class, feature code, country code, cc2, admin1..4, population, ...
func (l *Loader) LoadGeoNames(ctx context.Context, r io.Reader) (int, error) {
	query := l.store.Dialect().Upsert("geonames",
		[]string{"geonameid", "name", "asciiname", "fclass", "fcode", "country_code",
			"admin1", "admin2", "admin3", "admin4", "population", "latitude", "longitude"},
		[]string{"geonameid"},
		[]string{"name", "asciiname", "fclass", "fcode", "country_code",
			"admin1", "admin2", "admin3", "admin4", "population", "latitude", "longitude"})
	return l.load(ctx, "geonames", tabs(r), query, func(f []string) ([]any, error) {
		if len(f) < 15 {
			return nil, fmt.Errorf("expected at least 15 fields, got %d", len(f))
		}
		id, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid geonameid %q", f[0])
		}
		lat, err := strconv.ParseFloat(f[4], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q", f[4])
		}
		lon, err := strconv.ParseFloat(f[5], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q", f[5])
		}
		pop, _ := strconv.ParseInt(f[14], 10, 64)
		return []any{id, f[1], f[2], f[6], f[7], f[8], f[10], f[11], f[12], f[13], pop, lat, lon}, nil
	})
}

// LoadAltNames reads an alternateNamesV2 dump: alternateNameId, geonameid,
// isolanguage, alternate name, isPreferredName, isShortName, isColloquial,
// isHistoric, from, to. Link rows are skipped.
func (l *Loader) LoadAltNames(ctx context.Context, r io.Reader) (int, error) {
	query := l.store.Dialect().Upsert("geonames_altnames",
		[]string{"id", "geonameid", "lang", "name", "preferred", "short", "colloquial", "historic"},
		[]string{"id"},
		[]string{"geonameid", "lang", "name", "preferred", "short", "colloquial", "historic"})
	return l.load(ctx, "alternate names", tabs(r), query, func(f []string) ([]any, error) {
		if len(f) < 4 {
			return nil, fmt.Errorf("expected at least 4 fields, got %d", len(f))
		}
		if f[2] == "link" {
			return nil, nil
		}
		id, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid alternateNameId %q", f[0])
		}
		place, err := strconv.ParseInt(f[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid geonameid %q", f[1])
		}
		return []any{id, place, f[2], f[3], flag(f, 4), flag(f, 5), flag(f, 6), flag(f, 7)}, nil
	})
}

// LoadBANO reads a BANO CSV export: id, voie, code_post, nom_comm, source,
// lat, lon. Rows are keyed by city with normalize.Simplify.
func (l *Loader) LoadBANO(ctx context.Context, r io.Reader) (int, error) {
	query := l.store.Dialect().Upsert("bano",
		[]string{"id", "voie", "code_post", "nom_comm", "city_key", "source", "latitude", "longitude"},
		[]string{"id"},
		[]string{"voie", "code_post", "nom_comm", "city_key", "source", "latitude", "longitude"})
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return l.load(ctx, "bano", cr.Read, query, func(f []string) ([]any, error) {
		if len(f) < 7 {
			return nil, fmt.Errorf("expected 7 fields, got %d", len(f))
		}
		if f[0] == "id" {
			// header
			return nil, nil
		}
		lat, err := strconv.ParseFloat(f[5], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q", f[5])
		}
		lon, err := strconv.ParseFloat(f[6], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q", f[6])
		}
		return []any{f[0], f[1], f[2], f[3], normalize.Simplify(f[3]), f[4], lat, lon}, nil
	})
}

func flag(f []string, i int) bool {
	return i < len(f) && f[i] == "1"
}

// tabs splits lines on tabs; GeoNames dumps are not quoted.
func tabs(r io.Reader) func() ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 10*1024*1024)
	return func() ([]string, error) {
		for sc.Scan() {
			line := sc.Text()
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			return strings.Split(line, "\t"), nil
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

// load parses records and writes them in batches, one transaction each.
// Malformed records are logged and skipped.
func (l *Loader) load(ctx context.Context, what string, next func() ([]string, error), query string, parse func([]string) ([]any, error)) (int, error) {
	var (
		batch   [][]any
		total   int
		skipped int
		line    int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := l.store.Tx(ctx, func(tx store.Handle) error {
			for _, args := range batch {
				if _, err := tx.Exec(ctx, query, args...); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write %s batch: %w", what, err)
		}
		total += len(batch)
		batch = batch[:0]
		l.log.Debug("Loaded batch", "data", what, "rows", total)
		return nil
	}

	for {
		fields, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return total, fmt.Errorf("failed to read %s line %d: %w", what, line, err)
		}
		args, err := parse(fields)
		if err != nil {
			skipped++
			l.log.Warn("Skipping malformed line", "data", what, "line", line, "error", err)
			continue
		}
		if args == nil {
			continue
		}
		batch = append(batch, args)
		if len(batch) >= l.batchSize {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	l.log.Info("Loaded gazetteer data", "data", what, "rows", total, "skipped", skipped)
	return total, nil
}
