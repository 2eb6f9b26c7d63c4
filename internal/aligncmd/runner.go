package aligncmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/placealign/internal/alignment"
	"github.com/lehigh-university-libraries/placealign/internal/config"
	"github.com/lehigh-university-libraries/placealign/internal/dataset"
	"github.com/lehigh-university-libraries/placealign/internal/gazetteer"
	"github.com/lehigh-university-libraries/placealign/internal/geodata"
	"github.com/lehigh-university-libraries/placealign/internal/jobs"
	"github.com/lehigh-university-libraries/placealign/internal/matcher"
	"github.com/lehigh-university-libraries/placealign/internal/proposal"
	"github.com/lehigh-university-libraries/placealign/internal/records"
	"github.com/lehigh-university-libraries/placealign/internal/report"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// AlignOptions are the per-run choices of the align command.
type AlignOptions struct {
	// Input is a TSV, JSONL or Parquet file of authority labels. Empty reads
	// the labels from the record store.
	Input  string
	Sample int
	// Department and Unaligned filter the labels read from the store.
	Department string
	Unaligned  string
	Targets    []proposal.Kind
	AutoImport bool
	Override   bool
	// Parquet is the candidate export path; the target kind is appended to
	// the file name.
	Parquet string
	Report  string
}

// Runner computes alignments for a set of targets, one job per target.
type Runner struct {
	cfg     config.Config
	store   *store.Store
	catalog *geodata.Catalog
	targets map[proposal.Kind]alignment.Target
	log     *slog.Logger

	// imports are serialized; they are the only writers
	importMu sync.Mutex
}

// NewRunner wires the GeoNames and BANO targets over catalog and s.
func NewRunner(cfg config.Config, s *store.Store, catalog *geodata.Catalog, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	m, err := matcher.New(cfg.Matcher, log)
	if err != nil {
		return nil, err
	}
	pool := cfg.Pool()
	pool.Log = log
	return &Runner{
		cfg:     cfg,
		store:   s,
		catalog: catalog,
		targets: map[proposal.Kind]alignment.Target{
			proposal.KindGeoname: alignment.NewGeonames(catalog, m, pool, log),
			proposal.KindBANO:    alignment.NewBano(gazetteer.NewSource(s.Handle), log),
		},
		log: log,
	}, nil
}

// ParseTargets validates a list of target names. Empty means every target.
func ParseTargets(names []string) ([]proposal.Kind, error) {
	if len(names) == 0 {
		return []proposal.Kind{proposal.KindGeoname, proposal.KindBANO}, nil
	}
	var kinds []proposal.Kind
	seen := map[proposal.Kind]bool{}
	for _, name := range names {
		kind := proposal.Kind(strings.ToLower(strings.TrimSpace(name)))
		if kind != proposal.KindGeoname && kind != proposal.KindBANO {
			return nil, fmt.Errorf("unknown target %q (available: geoname, bano)", name)
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// Labels returns the authority labels of the run.
func (r *Runner) Labels(ctx context.Context, opts AlignOptions) ([]records.AuthorityLabel, error) {
	if opts.Input != "" {
		labels, err := dataset.NewLoader(opts.Input).LoadSample(opts.Sample)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset: %w", err)
		}
		return labels, nil
	}
	labels, err := r.store.AuthorityLabels(ctx, store.LabelQuery{
		ServiceDptCode: opts.Department,
		Unaligned:      opts.Unaligned,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read authority labels: %w", err)
	}
	if opts.Sample > 0 && len(labels) > opts.Sample {
		labels = labels[:opts.Sample]
	}
	return labels, nil
}

// Run computes every target of opts on its own job. A failing or timed out
// target is reported and does not stop the others. The report is written
// before Run returns.
func (r *Runner) Run(ctx context.Context, opts AlignOptions) (*report.Run, error) {
	kinds := opts.Targets
	if len(kinds) == 0 {
		kinds, _ = ParseTargets(nil)
	}
	labels, err := r.Labels(ctx, opts)
	if err != nil {
		return nil, err
	}
	r.log.Info("Authority labels loaded", "labels", len(labels))

	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	run := report.NewRun(report.RunConfig{
		Input:     opts.Input,
		Targets:   names,
		Distance:  r.cfg.Matcher.Distance,
		Workers:   r.cfg.Workers,
		ChunkSize: r.cfg.ChunkSize,
		Override:  opts.Override,
	}, time.Now())

	registry := jobs.New(r.log)
	results := make([]report.TargetResult, len(kinds))
	submitted := make([]*jobs.Job, len(kinds))
	for i, kind := range kinds {
		submitted[i] = registry.Submit(ctx, string(kind), func(ctx context.Context, job *jobs.Job) error {
			res, err := r.runTarget(ctx, job, kind, labels, opts)
			results[i] = res
			return err
		})
	}
	if _, err := registry.Wait(ctx); err != nil {
		return nil, err
	}

	for i, job := range submitted {
		res := results[i]
		res.Kind = kinds[i]
		res.Status = string(job.Status())
		if err := job.Err(); err != nil {
			res.Error = err.Error()
		}
		run.Add(res)
	}

	path := opts.Report
	if path == "" {
		path = filepath.Join(r.cfg.OutputDir, "run_"+run.Config.Timestamp+".yaml")
	}
	if err := report.SaveToYAML(path, run); err != nil {
		return run, err
	}
	r.log.Info("Run report saved", "path", path, "failed", run.Failed())
	return run, nil
}

func (r *Runner) runTarget(ctx context.Context, job *jobs.Job, kind proposal.Kind, labels []records.AuthorityLabel, opts AlignOptions) (res report.TargetResult, err error) {
	start := time.Now()
	res = report.TargetResult{Kind: kind, Labels: len(labels)}
	defer func() { res.Duration = time.Since(start).Round(time.Millisecond).String() }()

	log := job.Logger()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TargetTimeout)
	defer cancel()

	target := r.targets[kind]
	last := -1
	out, err := target.Compute(ctx, labels, func(f float64) {
		job.SetProgress(f)
		if pct := int(f * 100); pct/10 != last/10 {
			last = pct
			log.Info("Progress", "target", kind, "done", fmt.Sprintf("%d%%", pct))
		}
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return res, fmt.Errorf("target %s timed out after %s: %w", kind, r.cfg.TargetTimeout, err)
		}
		return res, fmt.Errorf("failed to compute %s alignments: %w", kind, err)
	}
	res.Rows = len(out.Rows)
	res.Stats = report.Aggregate(out.Candidates)
	log.Info("Alignments computed", "target", kind, "rows", res.Rows, "candidates", len(out.Candidates))

	var eg errgroup.Group
	eg.Go(func() error {
		files, err := proposal.WriteChunks(filepath.Join(r.cfg.OutputDir, string(kind)), kind, out.Rows, r.cfg.FileSize, r.cfg.Simplified)
		res.Files = files
		return err
	})
	if opts.Parquet != "" && len(out.Candidates) > 0 {
		path := parquetPath(opts.Parquet, kind)
		eg.Go(func() error {
			if err := proposal.WriteParquet(path, out.Candidates); err != nil {
				return err
			}
			res.Parquet = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return res, fmt.Errorf("failed to write %s artifacts: %w", kind, err)
	}

	if !opts.AutoImport && kind != proposal.KindBANO {
		return res, nil
	}
	covered := make(map[int64]bool, len(labels))
	for _, l := range labels {
		covered[l.AuthorityID] = true
	}
	r.importMu.Lock()
	defer r.importMu.Unlock()
	imported, err := alignment.NewImporter(r.store, r.catalog, log).ImportRows(ctx, kind, out.Rows, alignment.ImportOptions{
		Override: opts.Override,
		Prune:    r.cfg.Prune,
		Complete: true,
		Covered:  covered,
	})
	res.Import = &imported
	if err != nil {
		return res, fmt.Errorf("failed to import %s alignments: %w", kind, err)
	}
	return res, nil
}

// parquetPath inserts the target kind before the extension of path.
func parquetPath(path string, kind proposal.Kind) string {
	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".parquet"
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_" + string(kind) + ext
}
