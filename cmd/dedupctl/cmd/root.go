package cmd

import (
	"fmt"
	"os"

	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/dedup"
	"github.com/Adithya-Monish-Kumar-K/querydedup/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/querydedup/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	maxSets  int
)

var rootCmd = &cobra.Command{
	Use:           "dedupctl",
	Short:         "dedupctl finds queries shared between subclusters",
	Long:          "Compare every pair of subclusters in a query set file, decide which side keeps each shared query, and export removal lists.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&maxSets, "max-sets", 200, "reject files with more subclusters than this (0 = unlimited)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
}

// openSession loads path and analyzes it in a fresh session, applying flips
// as toggles on pair (idA, idB).
func openSession(path string) (*dedup.Session, error) {
	sets, err := loader.ReadFile(path, maxSets)
	if err != nil {
		return nil, err
	}
	s := dedup.NewSession("cli")
	if _, _, err := s.Analyze(sets); err != nil {
		return nil, err
	}
	return s, nil
}

func applyFlips(s *dedup.Session, idA, idB string, flips []string) error {
	for _, q := range flips {
		if _, err := s.Toggle(idA, idB, q); err != nil {
			return err
		}
	}
	return nil
}
