package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"virome-runner/tools"
)

func NewToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the supported classification tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, id := range tools.Known() {
				fmt.Fprintf(tw, "%s\t%s\n", id, id.DisplayName())
			}
			return tw.Flush()
		},
	}
}
