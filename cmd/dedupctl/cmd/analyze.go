package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/spf13/cobra"
)

var (
	analyzeSort bool
	analyzeMin  int
	analyzeFind string
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "List every subcluster pair with its shared query count",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeSort, "sort", false, "sort by shared query count, largest first")
	analyzeCmd.Flags().IntVar(&analyzeMin, "min", 0, "only pairs with at least this many shared queries")
	analyzeCmd.Flags().StringVarP(&analyzeFind, "search", "q", "", "only pairs whose names, clusters or shared queries contain this text")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the snapshot as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	snap := s.Snapshot()
	pairs := dedup.FilterPairs(snap.Pairs, dedup.PairFilter{MinIntersection: analyzeMin, Search: analyzeFind})
	if analyzeSort {
		pairs = dedup.SortByIntersection(pairs)
	}

	out := cmd.OutOrStdout()
	if analyzeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(pairs)
	}

	fmt.Fprintf(out, "%d subclusters, %d pairs, %d shared queries\n\n", snap.SetCount, len(snap.Pairs), snap.TotalDuplicates())
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "A\tB\tQUERIES A\tQUERIES B\tSHARED")
	for _, p := range pairs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", label(p.IDA, p.NameA), label(p.IDB, p.NameB), p.CountA, p.CountB, p.IntersectionCount)
	}
	return tw.Flush()
}

func label(id, name string) string {
	if name == "" || name == id {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}
