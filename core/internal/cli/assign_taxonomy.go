package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"virome-runner/analyzers/blastsort"
)

func NewAssignTaxonomyCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "assign-taxonomy FILE",
		Short: "Pick the best BLAST hit, or chimeric hit set, for each contig",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			if output == "" {
				output = strings.TrimSuffix(in, ".csv") + ".sorted.csv"
			}
			hits, err := blastsort.ReadHits(in)
			if err != nil {
				return err
			}
			assignments := blastsort.Assign(hits)
			if err := blastsort.WriteCSV(assignments, output); err != nil {
				return err
			}
			fmt.Printf("hits=%d assignments=%d output=%s\n", len(hits), len(assignments), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV (default: FILE with a .sorted.csv suffix)")
	return cmd
}
