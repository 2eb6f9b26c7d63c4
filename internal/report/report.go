// Package report writes the YAML summary of an alignment run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/placealign/internal/alignment"
	"github.com/lehigh-university-libraries/placealign/internal/distance"
	"github.com/lehigh-university-libraries/placealign/internal/proposal"
)

// RunConfig represents the configuration section of the report
type RunConfig struct {
	Input     string   `yaml:"input,omitempty"`
	Targets   []string `yaml:"targets"`
	Distance  string   `yaml:"distance"`
	Workers   int      `yaml:"workers"`
	ChunkSize int      `yaml:"chunksize"`
	Override  bool     `yaml:"override"`
	Timestamp string   `yaml:"timestamp"`
}

// StageStats aggregates the candidates of one matching stage.
type StageStats struct {
	Count             int     `yaml:"count"`
	AverageConfidence float64 `yaml:"averageconfidence"`
	MinConfidence     float64 `yaml:"minconfidence"`
}

// Stats aggregates candidate pairs.
type Stats struct {
	Candidates  int                   `yaml:"candidates"`
	Authorities int                   `yaml:"authorities"`
	ByStage     map[string]StageStats `yaml:"bystage,omitempty"`
	ByMethod    map[string]int        `yaml:"bymethod,omitempty"`
}

// TargetResult is the outcome of one target.
type TargetResult struct {
	Kind     proposal.Kind           `yaml:"kind"`
	Status   string                  `yaml:"status"`
	Error    string                  `yaml:"error,omitempty"`
	Labels   int                     `yaml:"labels"`
	Rows     int                     `yaml:"rows"`
	Files    []string                `yaml:"files,omitempty"`
	Parquet  string                  `yaml:"parquet,omitempty"`
	Duration string                  `yaml:"duration"`
	Stats    Stats                   `yaml:"stats"`
	Import   *alignment.ImportReport `yaml:"import,omitempty"`
}

// Run represents the complete run report
type Run struct {
	Config  RunConfig      `yaml:"config"`
	Targets []TargetResult `yaml:"targets"`
}

// NewRun starts a report stamped with now.
func NewRun(cfg RunConfig, now time.Time) *Run {
	cfg.Timestamp = now.Format("2006-01-02_15-04-05")
	return &Run{Config: cfg}
}

// Add records a target result, keeping targets sorted by kind.
func (r *Run) Add(res TargetResult) {
	r.Targets = append(r.Targets, res)
	sort.SliceStable(r.Targets, func(i, j int) bool { return r.Targets[i].Kind < r.Targets[j].Kind })
}

// Failed counts the targets that did not finish.
func (r *Run) Failed() int {
	n := 0
	for _, t := range r.Targets {
		if t.Error != "" {
			n++
		}
	}
	return n
}

// Aggregate computes candidate statistics per stage and match strength.
func Aggregate(candidates []proposal.Candidate) Stats {
	stats := Stats{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return stats
	}
	stats.ByStage = make(map[string]StageStats)
	stats.ByMethod = make(map[string]int)
	authorities := make(map[int64]bool)
	sums := make(map[string]float64)

	for _, c := range candidates {
		authorities[c.AuthorityID] = true
		stats.ByMethod[distance.Method(c.Distance)]++

		s, ok := stats.ByStage[c.Stage]
		if !ok || c.Confidence < s.MinConfidence {
			s.MinConfidence = c.Confidence
		}
		s.Count++
		sums[c.Stage] += c.Confidence
		stats.ByStage[c.Stage] = s
	}
	for stage, s := range stats.ByStage {
		s.AverageConfidence = sums[stage] / float64(s.Count)
		stats.ByStage[stage] = s
	}
	stats.Authorities = len(authorities)
	return stats
}

// SaveToYAML writes the report to path, creating its directory.
func SaveToYAML(path string, run *Run) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// Load reads a report written by SaveToYAML.
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &run, nil
}
