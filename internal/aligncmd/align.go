package aligncmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/placealign/internal/config"
)

// NewAlignCmd creates the align command.
func NewAlignCmd(g *Globals) *cobra.Command {
	var (
		opts       AlignOptions
		targets    []string
		workers    int
		chunkSize  int
		fileSize   int
		outputDir  string
		simplified bool
		prune      bool
	)

	cmd := &cobra.Command{
		Use:   "align",
		Short: "Compute place alignments against GeoNames and BANO",
		Long: `Compute alignments between place authorities and the GeoNames and BANO
reference data loaded in the record store.

Each target runs as its own job with its own timeout; a failing target does not
stop the others. Alignments are written as CSV files under the output directory,
optionally imported into the record store, and summarized in a YAML run report.
BANO alignments are always imported.`,
		Example: `  # Align every authority of the store against both targets
  placealign align

  # Align labels from a Parquet file against GeoNames only and import them
  placealign align --input labels.parquet --targets geoname --auto-import

  # Export candidate pairs for review
  placealign align --department 71 --parquet candidates.parquet --report run.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := ParseTargets(targets)
			if err != nil {
				return err
			}
			opts.Targets = kinds

			flags := cmd.Flags()
			e, err := g.open(cmd.Context(), func(c *config.Config) {
				if flags.Changed("workers") {
					c.Workers = workers
				}
				if flags.Changed("chunk-size") {
					c.ChunkSize = chunkSize
				}
				if flags.Changed("file-size") {
					c.FileSize = fileSize
				}
				if flags.Changed("output") {
					c.OutputDir = outputDir
				}
				if flags.Changed("simplified") {
					c.Simplified = simplified
				}
				if flags.Changed("prune") {
					c.Prune = prune
				}
			})
			if err != nil {
				return err
			}
			defer e.close()

			runner, err := NewRunner(e.cfg, e.store, e.catalog(), e.log)
			if err != nil {
				return err
			}
			run, err := runner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			for _, t := range run.Targets {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-9s rows=%d files=%d %s\n", t.Kind, t.Status, t.Rows, len(t.Files), t.Error)
			}
			if n := run.Failed(); n > 0 {
				return fmt.Errorf("%d of %d targets failed", n, len(run.Targets))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "Authority labels file (.parquet, .jsonl or .tsv); default reads the record store")
	cmd.Flags().IntVar(&opts.Sample, "sample", 0, "Number of labels to align (0 for all)")
	cmd.Flags().StringVar(&opts.Department, "department", "", "Only align authorities published by services of this department")
	cmd.Flags().StringVar(&opts.Unaligned, "unaligned", "", "Only align authorities without a link of this source")
	cmd.Flags().StringSliceVar(&targets, "targets", nil, "Targets to compute (geoname, bano)")
	cmd.Flags().BoolVar(&opts.AutoImport, "auto-import", false, "Import computed alignments into the record store")
	cmd.Flags().BoolVar(&opts.Override, "override", false, "Let computed alignments win over the alignment history")
	cmd.Flags().StringVar(&opts.Parquet, "parquet", "", "Export candidate pairs to Parquet (the target is appended to the name)")
	cmd.Flags().StringVar(&opts.Report, "report", "", "Path of the YAML run report (default under the output directory)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of alignment workers")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Labels per worker chunk")
	cmd.Flags().IntVar(&fileSize, "file-size", 0, "Maximum rows per CSV file")
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory")
	cmd.Flags().BoolVar(&simplified, "simplified", false, "Write the simplified CSV headers")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove links an authority's new alignments no longer propose")

	return cmd
}
