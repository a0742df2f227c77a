// -- cmd/units.go --
package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/crosscheck/internal/runner/units"
)

func newUnitsCmd() *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "units",
		Short: "List the available units and their tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := units.Select(units.All(), nil, tags)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTAGS\tDESCRIPTION")
			for _, u := range selected {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Name, strings.Join(u.Tags, ","), u.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "only list units carrying one of these tags")
	return cmd
}
