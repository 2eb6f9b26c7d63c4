package alignment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/lehigh-university-libraries/placealign/internal/ledger"
	"github.com/lehigh-university-libraries/placealign/internal/persist"
	"github.com/lehigh-university-libraries/placealign/internal/proposal"
	"github.com/lehigh-university-libraries/placealign/internal/reconcile"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// ImportOptions tune an import.
type ImportOptions struct {
	// Override lets the file win over the alignment history and records
	// its decisions in it.
	Override bool
	// Prune removes links of the file's sources that the file no longer
	// proposes for an authority it mentions.
	Prune bool
	// Complete treats the rows as the whole computed alignment of the
	// authorities in Covered (all of them when nil): their other links of
	// the same sources are removed unless the history keeps them.
	Complete bool
	Covered  map[int64]bool
}

// ImportReport summarizes an import.
type ImportReport struct {
	Kind        proposal.Kind    `yaml:"kind"`
	Rows        int              `yaml:"rows"`
	Invalid     []string         `yaml:"invalid,omitempty"`
	InvalidKeep []int            `yaml:"invalid_keep,omitempty"`
	Conflicts   []int64          `yaml:"conflicts,omitempty"`
	Skipped     []reconcile.Skip `yaml:"skipped,omitempty"`
	Persisted   persist.Report   `yaml:"persisted"`
}

// Importer applies alignment files to the record store.
type Importer struct {
	store  *store.Store
	labels persist.Labeler
	log    *slog.Logger
}

// NewImporter returns an Importer. labels computes missing GeoNames labels
// and may be nil.
func NewImporter(s *store.Store, labels persist.Labeler, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{store: s, labels: labels, log: log}
}

// ImportFile reads and imports the alignment file at path.
func (im *Importer) ImportFile(ctx context.Context, kind proposal.Kind, path string, opts ImportOptions) (ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportReport{Kind: kind}, fmt.Errorf("failed to open alignment file: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, kind, f, opts)
}

// Import reads an alignment file and imports its valid rows.
func (im *Importer) Import(ctx context.Context, kind proposal.Kind, r io.Reader, opts ImportOptions) (ImportReport, error) {
	res, err := proposal.Read(r, kind, im.log)
	if err != nil {
		return ImportReport{Kind: kind}, err
	}
	report, err := im.ImportRows(ctx, kind, res.Rows, opts)
	for _, e := range res.Invalid {
		report.Invalid = append(report.Invalid, e.Error())
	}
	report.InvalidKeep = res.InvalidKeep
	return report, err
}

// ImportRows reconciles rows with the persisted links and the history, then
// persists the plan.
func (im *Importer) ImportRows(ctx context.Context, kind proposal.Kind, rows []proposal.Row, opts ImportOptions) (ImportReport, error) {
	report := ImportReport{Kind: kind, Rows: len(rows)}
	schema, err := proposal.SchemaFor(kind)
	if err != nil {
		return report, err
	}
	proposals := proposal.Proposals(schema, rows)

	var scope []string
	if schema.Source != "" {
		scope = []string{schema.Source}
	} else {
		for _, p := range proposals {
			if !slices.Contains(scope, p.Source) {
				scope = append(scope, p.Source)
			}
		}
	}
	if len(scope) == 0 {
		im.log.Info("Nothing to import", "kind", kind)
		return report, nil
	}

	links, err := im.store.LinksBySource(ctx, scope...)
	if err != nil {
		return report, fmt.Errorf("failed to load existing alignments: %w", err)
	}
	history, err := ledger.Get(ctx, im.store.Handle, ledger.Query{Complete: true})
	if err != nil {
		return report, fmt.Errorf("failed to load alignment history: %w", err)
	}

	plan := reconcile.Reconcile(proposals, reconcile.NewLinkSet(links), history, reconcile.Options{
		Override: opts.Override,
		Prune:    opts.Prune,
		Complete: opts.Complete,
		Covered:  opts.Covered,
		Scope:    scope,
		Log:      im.log,
	})
	report.Conflicts, report.Skipped = plan.Conflicts, plan.Skipped
	im.log.Info(fmt.Sprintf("will create %d new alignments", len(plan.ToAdd)), "kind", kind)
	im.log.Info(fmt.Sprintf("will remove %d alignments", len(plan.ToRemove)), "kind", kind)
	if opts.Override {
		im.log.Info("user actions will be overridden")
	} else {
		im.log.Info("user actions will not be overridden")
	}

	report.Persisted, err = persist.New(im.store, im.labels, im.log).Apply(ctx, plan, opts.Override)
	if err != nil {
		return report, fmt.Errorf("failed to persist alignments: %w", err)
	}
	return report, nil
}
