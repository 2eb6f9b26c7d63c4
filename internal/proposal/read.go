package proposal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

var (
	trueValues  = []string{"yes", "oui"}
	falseValues = []string{"no", "non"}
)

// ParseBool reads a yes/oui/no/non token, ignoring case.
func ParseBool(v string) (value, ok bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, t := range trueValues {
		if v == t {
			return true, true
		}
	}
	for _, f := range falseValues {
		if v == f {
			return false, true
		}
	}
	return false, false
}

// FormatBool writes the yes/no token of v.
func FormatBool(v bool) string {
	if v {
		return trueValues[0]
	}
	return falseValues[0]
}

var errHalfCoordinates = errors.New("latitude and longitude must be given together")

// RowError is a row excluded from the file.
type RowError struct {
	Line    int
	Columns []string
	Err     error
}

func (e *RowError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("%d (%s)", e.Line, strings.Join(e.Columns, ","))
	}
	return fmt.Sprintf("%d (%v)", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result is the content of an alignment file.
type Result struct {
	Rows []Row
	// Invalid holds rows missing a required value or carrying a malformed
	// number or boolean.
	Invalid []*RowError
	// InvalidKeep holds the lines whose keep value is not a yes/no token.
	InvalidKeep []int
}

// Read parses a tab-separated alignment file. A missing required column
// fails the whole file with ErrMissingColumns; bad rows are reported in the
// result and the others are kept.
func Read(r io.Reader, kind Kind, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	schema, err := SchemaFor(kind)
	if err != nil {
		return Result{}, err
	}

	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		index[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, req := range schema.Required {
		if _, ok := index[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		err := fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ","))
		log.Error("Invalid alignment file", "kind", kind, "error", err)
		return Result{}, err
	}

	var res Result
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		values := make(map[string]string, len(index))
		for h, i := range index {
			if i < len(record) {
				values[h] = strings.TrimSpace(record[i])
			}
		}
		row, keepOK, rowErr := schema.parse(values, line)
		if rowErr != nil {
			res.Invalid = append(res.Invalid, rowErr)
			continue
		}
		if !keepOK {
			log.Warn(fmt.Sprintf("row %d contains invalid value '%s' in column 'keep' (skip)", line, values["keep"]))
			res.InvalidKeep = append(res.InvalidKeep, line)
			continue
		}
		res.Rows = append(res.Rows, row)
	}

	if len(res.Invalid) > 0 {
		msgs := make([]string, len(res.Invalid))
		for i, e := range res.Invalid {
			msgs[i] = e.Error()
		}
		log.Warn("found missing value in required column(s): " + strings.Join(msgs, ";"))
	}
	log.Info("Read alignment file", "kind", kind, "rows", len(res.Rows), "invalid", len(res.Invalid), "invalid_keep", len(res.InvalidKeep))
	return res, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (s Schema) parse(values map[string]string, line int) (Row, bool, *RowError) {
	var missing []string
	for _, req := range s.Required {
		if values[req] == "" {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return Row{}, false, &RowError{Line: line, Columns: missing, Err: fmt.Errorf("missing value in %s", strings.Join(missing, ","))}
	}

	row := Row{Line: line}
	keepOK := true
	for _, c := range s.Columns {
		v := values[c.Header]
		if v == "" {
			continue
		}
		var err error
		switch c.Field {
		case FieldAuthorityID:
			row.AuthorityID, err = strconv.ParseInt(v, 10, 64)
		case FieldIndexURI:
			row.IndexURI = v
		case FieldIndexLabel:
			row.IndexLabel = v
		case FieldAuthorityURI:
			row.AuthorityURI = v
		case FieldAuthorityLabel:
			row.AuthorityLabel = v
		case FieldIndexType:
			row.IndexType = v
		case FieldExternalURI:
			row.ExternalURI = v
		case FieldExternalLabel:
			row.ExternalLabel = v
		case FieldLongitude:
			row.Longitude, err = parseFloat(v)
		case FieldLatitude:
			row.Latitude, err = parseFloat(v)
		case FieldConfidence:
			row.Confidence, err = parseFloat(v)
			if err == nil && (*row.Confidence < 0 || *row.Confidence > 1) {
				err = fmt.Errorf("confidence %s out of [0, 1]", v)
			}
		case FieldKeep:
			row.Keep, keepOK = ParseBool(v)
		case FieldQuality:
			b, ok := ParseBool(v)
			if !ok {
				err = fmt.Errorf("invalid boolean %q", v)
			}
			row.Quality = &b
		}
		if err != nil {
			return Row{}, false, &RowError{Line: line, Err: fmt.Errorf("invalid value in column '%s': %w", c.Header, err)}
		}
	}
	if (row.Latitude == nil) != (row.Longitude == nil) {
		return Row{}, false, &RowError{Line: line, Err: errHalfCoordinates}
	}
	return row, keepOK, nil
}

func parseFloat(v string) (*float64, error) {
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
