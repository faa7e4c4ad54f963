package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "refinex",
	Short: "Automated content quality evaluation and refinement",
	Long: `Evaluate generated content against a weighted rubric, vote across
multiple judge passes when scores are borderline, verify factual claims when
hallucination risk is elevated, and refine content that falls short.

Decisions: accept, fix (bounded self-refinement), regenerate, or escalate
to the manual review queue.

Use "refinex evaluate --help" for evaluation options.`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
