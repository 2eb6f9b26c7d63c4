package aligncmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/placealign/internal/alignment"
	"github.com/lehigh-university-libraries/placealign/internal/config"
	"github.com/lehigh-university-libraries/placealign/internal/proposal"
)

// NewImportCmd creates the import command.
func NewImportCmd(g *Globals) *cobra.Command {
	var (
		kind     string
		file     string
		override bool
		prune    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a reviewed alignment file into the record store",
		Long: `Import a tab-separated alignment file. Rows marked keep=yes are linked,
rows marked keep=no are unlinked.

Without --override the alignment history wins: links it records as removed are
not restored and links it records as kept are not removed. With --override the
file wins and its decisions are written to the history.`,
		Example: `  placealign import --kind geoname --file geoname_reviewed.csv
  placealign import --kind agent --file agents.csv --override`,
		RunE: func(cmd *cobra.Command, args []string) error {
			k := proposal.Kind(strings.ToLower(kind))
			if _, err := proposal.SchemaFor(k); err != nil {
				return err
			}
			e, err := g.open(cmd.Context(), func(c *config.Config) {
				if cmd.Flags().Changed("prune") {
					c.Prune = prune
				}
			})
			if err != nil {
				return err
			}
			defer e.close()

			im := alignment.NewImporter(e.store, e.catalog(), e.log)
			rep, err := im.ImportFile(cmd.Context(), k, file, alignment.ImportOptions{Override: override, Prune: e.cfg.Prune})
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(rep)
			if err != nil {
				return fmt.Errorf("failed to marshal import report: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Alignment file kind (geoname, bano, agent, subject)")
	cmd.Flags().StringVar(&file, "file", "", "Alignment file to import")
	cmd.Flags().BoolVar(&override, "override", false, "Let the file win over the alignment history")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove links of the file's sources it no longer proposes")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
