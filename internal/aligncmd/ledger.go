package aligncmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/placealign/internal/ledger"
)

// NewLedgerCmd creates the ledger command and its subcommands.
func NewLedgerCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and edit the alignment history",
	}
	cmd.AddCommand(newLedgerListCmd(g))
	cmd.AddCommand(newLedgerSetCmd(g))
	return cmd
}

func newLedgerListCmd(g *Globals) *cobra.Command {
	var (
		authority int64
		complete  bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the alignment history as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer e.close()

			q := ledger.Query{Complete: complete}
			if cmd.Flags().Changed("authority") {
				q.AuthorityID = &authority
			}
			history, err := ledger.Get(cmd.Context(), e.store.Handle, q)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(history.Entries())
			if err != nil {
				return fmt.Errorf("failed to marshal history: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().Int64Var(&authority, "authority", 0, "Only list the entries of this authority")
	cmd.Flags().BoolVar(&complete, "complete", false, "Include actions and update times")
	return cmd
}

func newLedgerSetCmd(g *Globals) *cobra.Command {
	var (
		uri       string
		authority int64
		action    string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Record a decision on a link",
		Example: `  placealign ledger set --uri https://www.geonames.org/2972328 --authority 42 --action remove`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var keep bool
			switch strings.ToLower(action) {
			case "keep":
				keep = true
			case "remove":
			default:
				return fmt.Errorf("invalid action %q (expected keep or remove)", action)
			}

			e, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer e.close()

			entry := ledger.Entry{URI: uri, AuthorityID: authority, Action: keep}
			if err := ledger.Upsert(cmd.Context(), e.store.Handle, entry); err != nil {
				return err
			}
			e.log.Info("Alignment history updated", "uri", uri, "authority", authority, "action", action)
			return nil
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "External URI of the link")
	cmd.Flags().Int64Var(&authority, "authority", 0, "Authority id of the link")
	cmd.Flags().StringVar(&action, "action", "", "Decision: keep or remove")
	_ = cmd.MarkFlagRequired("uri")
	_ = cmd.MarkFlagRequired("authority")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}
