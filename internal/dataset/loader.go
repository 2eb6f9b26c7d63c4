// Package dataset loads the authority labels to align from exported files.
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/lehigh-university-libraries/placealign/internal/records"
)

// Loader reads authority labels from a Parquet, JSONL or TSV file.
type Loader struct {
	datasetPath string
}

// NewLoader creates a new dataset loader
func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Load loads every label of the file.
func (l *Loader) Load() ([]records.AuthorityLabel, error) {
	return l.LoadSample(0)
}

// LoadSample loads at most limit labels; a non-positive limit loads them all.
func (l *Loader) LoadSample(limit int) ([]records.AuthorityLabel, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	switch ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".jsonl", ".json":
		return l.loadJSONL(limit)
	case ".tsv", ".csv", ".txt":
		return l.loadTSV(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl, .tsv)", ext)
	}
}

func full(labels []records.AuthorityLabel, limit int) bool {
	return limit > 0 && len(labels) >= limit
}

// loadJSONL reads one JSON object per line.
func (l *Loader) loadJSONL(limit int) ([]records.AuthorityLabel, error) {
	slog.Debug("Opening JSONL file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var labels []records.AuthorityLabel
	scanner := bufio.NewScanner(file)

	const maxCapacity = 1024 * 1024 // 1MB per line
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	lineNum := 0
	for scanner.Scan() && !full(labels, limit) {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var label records.AuthorityLabel
		if err := json.Unmarshal(line, &label); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		labels = append(labels, label)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Finished reading JSONL file", "total_labels", len(labels), "total_lines", lineNum)
	return labels, nil
}

// loadParquet reads rows in batches.
func (l *Loader) loadParquet(limit int) ([]records.AuthorityLabel, error) {
	slog.Debug("Opening Parquet file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened successfully", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[records.AuthorityLabel](pf)
	defer reader.Close()

	var labels []records.AuthorityLabel
	rows := make([]records.AuthorityLabel, 128)

	for !full(labels, limit) {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit > 0 {
				n = min(n, limit-len(labels))
			}
			labels = append(labels, rows[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet file", "total_labels", len(labels))
	return labels, nil
}

// loadTSV reads a tab-separated file whose header names the fields:
// authority_id and label are required.
func (l *Loader) loadTSV(limit int) ([]records.AuthorityLabel, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, required := range []string{"authority_id", "label"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	var labels []records.AuthorityLabel
	for lineNum := 2; !full(labels, limit); lineNum++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", lineNum, err)
		}
		get := func(name string) string {
			if i, ok := index[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		id, err := strconv.ParseInt(get("authority_id"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid authority_id at line %d: %w", lineNum, err)
		}
		quality, _ := strconv.ParseBool(get("quality"))
		labels = append(labels, records.AuthorityLabel{
			AuthorityID:    id,
			GeognameURI:    get("geogname_uri"),
			GeognameLabel:  get("geogname_label"),
			AuthorityURI:   get("authority_uri"),
			Label:          get("label"),
			UnitID:         get("unit_id"),
			ServiceCode:    get("service_code"),
			ServiceDptCode: get("service_dpt_code"),
			Quality:        quality,
		})
	}
	slog.Debug("Finished reading TSV file", "total_labels", len(labels))
	return labels, nil
}
