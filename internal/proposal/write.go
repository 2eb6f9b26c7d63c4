package proposal

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Sort orders rows by authority label, then authority id.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].AuthorityLabel != rows[j].AuthorityLabel {
			return rows[i].AuthorityLabel < rows[j].AuthorityLabel
		}
		return rows[i].AuthorityID < rows[j].AuthorityID
	})
}

// Write writes rows as a tab-separated file with a header line, sorted.
func Write(w io.Writer, kind Kind, rows []Row, simplified bool) error {
	schema, err := SchemaFor(kind)
	if err != nil {
		return err
	}
	sorted := append([]Row(nil), rows...)
	Sort(sorted)

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	cols := schema.columns(simplified)
	if err := cw.Write(schema.Headers(simplified)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(cols))
	for _, r := range sorted {
		for i, c := range cols {
			record[i] = r.value(c.Field)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChunks writes rows into files of at most size rows under dir and
// returns their paths. A non-positive size writes a single file.
func WriteChunks(dir string, kind Kind, rows []Row, size int, simplified bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	sorted := append([]Row(nil), rows...)
	Sort(sorted)
	if size <= 0 || size > len(sorted) {
		size = max(len(sorted), 1)
	}

	run := uuid.NewString()[:8]
	var paths []string
	for start, n := 0, 1; start < len(sorted) || n == 1; start, n = start+size, n+1 {
		end := min(start+size, len(sorted))
		name := fmt.Sprintf("%s_%s.csv", kind, run)
		if len(sorted) > size {
			name = fmt.Sprintf("%s_%s_%d.csv", kind, run, n)
		}
		path := filepath.Join(dir, name)
		if err := writeFile(path, kind, sorted[start:end], simplified); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, kind Kind, rows []Row, simplified bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, kind, rows, simplified); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r Row) value(f Field) string {
	switch f {
	case FieldAuthorityID:
		return strconv.FormatInt(r.AuthorityID, 10)
	case FieldIndexURI:
		return r.IndexURI
	case FieldIndexLabel:
		return r.IndexLabel
	case FieldAuthorityURI:
		return r.AuthorityURI
	case FieldAuthorityLabel:
		return r.AuthorityLabel
	case FieldIndexType:
		return r.IndexType
	case FieldExternalURI:
		return r.ExternalURI
	case FieldExternalLabel:
		return r.ExternalLabel
	case FieldLongitude:
		return formatFloat(r.Longitude)
	case FieldLatitude:
		return formatFloat(r.Latitude)
	case FieldKeep:
		return FormatBool(r.Keep)
	case FieldConfidence:
		if r.Confidence == nil {
			return ""
		}
		c := math.Round(*r.Confidence*1000) / 1000
		return formatFloat(&c)
	case FieldQuality:
		if r.Quality == nil {
			return ""
		}
		return FormatBool(*r.Quality)
	}
	return ""
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
