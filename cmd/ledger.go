package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/placealign/internal/aligncmd"
)

func newLedgerCmd(g *aligncmd.Globals) *cobra.Command {
	return aligncmd.NewLedgerCmd(g)
}

func newGazetteerCmd(g *aligncmd.Globals) *cobra.Command {
	return aligncmd.NewGazetteerCmd(g)
}
