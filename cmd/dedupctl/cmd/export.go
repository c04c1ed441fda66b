package cmd

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/spf13/cobra"
)

var (
	exportList  string
	exportFlips []string
)

var exportCmd = &cobra.Command{
	Use:   "export <file> <idA> <idB>",
	Short: "Print one removal list of a pair, one query per line",
	Args:  cobra.ExactArgs(3),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportList, "list", string(dedup.ExportAll), "list to print: remove_a, remove_b or all")
	exportCmd.Flags().StringArrayVar(&exportFlips, "flip", nil, "shared query to move to the other side (repeatable)")
}

func runExport(cmd *cobra.Command, args []string) error {
	list, err := dedup.ParseExportList(exportList)
	if err != nil {
		return err
	}
	idA, idB := args[1], args[2]
	s, err := openSession(args[0])
	if err != nil {
		return err
	}
	if err := applyFlips(s, idA, idB, exportFlips); err != nil {
		return err
	}
	report, err := s.Report(idA, idB)
	if err != nil {
		return err
	}
	if lines := dedup.ExportLines(report.Queries(list)); lines != "" {
		fmt.Fprintln(cmd.OutOrStdout(), lines)
	}
	return nil
}
