package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	reportFlips []string
	reportJSON  bool
)

var reportCmd = &cobra.Command{
	Use:   "report <file> <idA> <idB>",
	Short: "Show which side keeps each shared query of a pair",
	Long:  "Show the removal report of one pair. Repeat --flip to move a shared query to the other side before reporting.",
	Args:  cobra.ExactArgs(3),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringArrayVar(&reportFlips, "flip", nil, "shared query to move to the other side (repeatable)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "print the report as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	idA, idB := args[1], args[2]
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	if err := applyFlips(s, idA, idB, reportFlips); err != nil {
		return err
	}
	report, err := s.Report(idA, idB)
	if err != nil {
		return err
	}
	items, err := s.Items(idA, idB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "%s / %s: %d shared, remove %d from %s, remove %d from %s, %d overridden\n\n",
		idA, idB, report.IntersectionCount, report.RemoveFromA, idA, report.RemoveFromB, idB, report.Overridden)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tIN A\tIN B\tSTAYS IN\tSTATE")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", it.Query, it.CountInA, it.CountInB, it.EffectiveStaysIn, it.State)
	}
	return tw.Flush()
}
