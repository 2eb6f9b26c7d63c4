package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/placealign/internal/aligncmd"
)

func newAlignCmd(g *aligncmd.Globals) *cobra.Command {
	return aligncmd.NewAlignCmd(g)
}

func newImportCmd(g *aligncmd.Globals) *cobra.Command {
	return aligncmd.NewImportCmd(g)
}

func newParseCmd(g *aligncmd.Globals) *cobra.Command {
	return aligncmd.NewParseCmd(g)
}
