package proposal

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Candidate is one computed pair as exported to Parquet.
type Candidate struct {
	AuthorityID    int64   `parquet:"authority_id" yaml:"authority"`
	AuthorityLabel string  `parquet:"authority_label" yaml:"authority_label"`
	ExternalURI    string  `parquet:"external_uri" yaml:"external_uri"`
	ExternalLabel  string  `parquet:"external_label" yaml:"external_label"`
	Source         string  `parquet:"source" yaml:"source"`
	Stage          string  `parquet:"stage" yaml:"stage"`
	Distance       float64 `parquet:"distance" yaml:"distance"`
	Confidence     float64 `parquet:"confidence" yaml:"confidence"`
}

// WriteParquet writes candidates to a Parquet file.
func WriteParquet(path string, candidates []Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	w := parquet.NewGenericWriter[Candidate](f)
	if _, err := w.Write(candidates); err != nil {
		f.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return f.Close()
}

// ReadParquet reads candidates written by WriteParquet.
func ReadParquet(path string) ([]Candidate, error) {
	rows, err := parquet.ReadFile[Candidate](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}
