package aligncmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/placealign/internal/gazetteer"
)

// NewGazetteerCmd creates the gazetteer command and its subcommands.
func NewGazetteerCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gazetteer",
		Short: "Manage the GeoNames and BANO reference data",
	}
	cmd.AddCommand(newGazetteerLoadCmd(g))
	return cmd
}

func newGazetteerLoadCmd(g *Globals) *cobra.Command {
	var (
		geonames  string
		altnames  string
		bano      string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load GeoNames and BANO dumps into the record store",
		Long: `Load reference dumps into the record store. Loading is idempotent: loading
a dump again does not duplicate rows, so it can be resumed after an
interruption.

  --geonames  a GeoNames country or allCountries dump (tab-separated)
  --altnames  a GeoNames alternateNamesV2 dump (tab-separated)
  --bano      a BANO street export (comma-separated, with a header)`,
		Example: `  placealign gazetteer load --geonames FR.txt --altnames alternateNamesV2.txt
  placealign gazetteer load --bano bano-75.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if geonames == "" && altnames == "" && bano == "" {
				return fmt.Errorf("at least one of --geonames, --altnames or --bano is required")
			}
			e, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer e.close()

			loader := gazetteer.NewLoader(e.store, batchSize, e.log)
			steps := []struct {
				what string
				path string
				load func(context.Context, io.Reader) (int, error)
			}{
				{"geonames", geonames, loader.LoadGeoNames},
				{"alternate names", altnames, loader.LoadAltNames},
				{"bano", bano, loader.LoadBANO},
			}
			for _, step := range steps {
				if step.path == "" {
					continue
				}
				n, err := loadFile(cmd.Context(), step.path, step.load)
				if err != nil {
					return fmt.Errorf("failed to load %s: %w", step.what, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows from %s\n", step.what, n, step.path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&geonames, "geonames", "", "GeoNames dump")
	cmd.Flags().StringVar(&altnames, "altnames", "", "GeoNames alternate names dump")
	cmd.Flags().StringVar(&bano, "bano", "", "BANO export")
	cmd.Flags().IntVar(&batchSize, "batch-size", 5000, "Rows per transaction")
	return cmd
}

func loadFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return load(ctx, f)
}
