package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/placealign/internal/aligncmd"
)

func NewRootCmd() *cobra.Command {
	globals := &aligncmd.Globals{}

	cmd := &cobra.Command{
		Use:   "placealign",
		Short: "Place authority alignment against GeoNames and BANO",
		Long: `Placealign aligns the place authorities of an archival platform with
GeoNames toponyms and BANO street addresses.

It computes candidate alignments, writes them as reviewable CSV files, imports
reviewed files back while honoring the alignment history, and loads the
reference gazetteers into the record store.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}
	globals.Bind(cmd)

	// Add subcommands
	cmd.AddCommand(newAlignCmd(globals))
	cmd.AddCommand(newImportCmd(globals))
	cmd.AddCommand(newLedgerCmd(globals))
	cmd.AddCommand(newGazetteerCmd(globals))
	cmd.AddCommand(newParseCmd(globals))

	return cmd
}
