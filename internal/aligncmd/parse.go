package aligncmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/placealign/internal/labelparse"
	"github.com/lehigh-university-libraries/placealign/internal/records"
)

// ParseResult is what the parse command prints.
type ParseResult struct {
	Parse  labelparse.Parsed    `yaml:"parse"`
	Record records.ParsedRecord `yaml:"record"`
	Class  records.Class        `yaml:"class"`
}

// NewParseCmd creates the parse command.
func NewParseCmd(g *Globals) *cobra.Command {
	var (
		dpt     string
		service string
		unit    string
	)
	cmd := &cobra.Command{
		Use:   "parse LABEL...",
		Short: "Show how labels are parsed and classified",
		Args:  cobra.MinimumNArgs(1),
		Example: `  placealign parse "Mâcon (Saône-et-Loire, France)"
  placealign parse "Rivoli (rue de) -- Paris" --service FRAN --unit MC/ET/XV`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer e.close()

			catalog := e.catalog()
			if err := catalog.Warm(cmd.Context()); err != nil {
				return err
			}
			builder := records.NewBuilder(catalog, e.log)
			return printParses(cmd.OutOrStdout(), builder, args, records.AuthorityLabel{
				ServiceCode:    service,
				ServiceDptCode: dpt,
				UnitID:         unit,
			}, e.log)
		},
	}
	cmd.Flags().StringVar(&dpt, "dpt", "", "Department code of the publishing service")
	cmd.Flags().StringVar(&service, "service", "", "Code of the publishing service")
	cmd.Flags().StringVar(&unit, "unit", "", "Archival unit identifier")
	return cmd
}

func printParses(w io.Writer, builder *records.Builder, labels []string, base records.AuthorityLabel, log *slog.Logger) error {
	results := make([]ParseResult, 0, len(labels))
	for _, label := range labels {
		row := base
		row.Label = label
		hint := labelparse.Hint{ServiceCode: row.ServiceCode, UnitID: row.UnitID, DptCode: row.ServiceDptCode}
		rec, class := builder.Classify(row)
		log.Debug("Label classified", "label", label, "class", class)
		results = append(results, ParseResult{
			Parse:  builder.Parser().Parse(label, hint),
			Record: rec,
			Class:  class,
		})
	}
	out, err := yaml.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal parse results: %w", err)
	}
	_, err = w.Write(out)
	return err
}
