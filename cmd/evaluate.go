package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mkoval/refinex/internal/cascade"
	"github.com/mkoval/refinex/internal/config"
)

var (
	evalInputFile  string
	evalOutputFile string
	evalContentID  string
	evalConfigFile string
	evalRubricPath string
	evalDBPath     string
	evalNoCache    bool

	evalProvider string
	evalModel    string
	evalBaseURL  string
	evalAPIKey   string

	evalReferences []string
	evalPreserve   []string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate content against the rubric",
	Long: `Run one evaluation pass over a piece of content: a fast single-judge
pass, escalated to a multi-judge voting round when the score lands near a
decision threshold, plus a hallucination check on the content itself.

The verdict is printed as JSON and recorded in the database. No refinement
is performed; use "refinex refine" for the full loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(evalInputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}

		refs, err := readReferences(evalReferences)
		if err != nil {
			return err
		}

		eng, db, err := buildEngine(evalConfigFile, func(cfg *config.Config) {
			applyEvaluatorFlags(cmd, cfg)
		})
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		contentID := evalContentID
		if contentID == "" {
			contentID = uuid.New().String()
		}

		verdict, err := eng.Evaluate(context.Background(), cascade.Input{
			ContentID:  contentID,
			Content:    string(data),
			References: refs,
			Preserved:  evalPreserve,
		})
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal verdict: %w", err)
		}

		if evalOutputFile != "" {
			if err := os.WriteFile(evalOutputFile, out, 0644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
		} else {
			fmt.Println(string(out))
		}

		fmt.Fprintf(os.Stderr, "Decision: %s (score %.3f)\n", verdict.Decision, verdict.OverallScore)
		return nil
	},
}

// applyEvaluatorFlags copies changed evaluator flags over the loaded config.
func applyEvaluatorFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("provider") {
		cfg.Evaluator.Provider = evalProvider
	}
	if cmd.Flags().Changed("model") {
		cfg.Evaluator.Model = evalModel
	}
	if cmd.Flags().Changed("base-url") {
		cfg.Evaluator.BaseURL = evalBaseURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.Evaluator.APIKey = evalAPIKey
	}
	if cmd.Flags().Changed("rubric") {
		cfg.RubricPath = evalRubricPath
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = evalDBPath
	}
	if cmd.Flags().Changed("no-cache") {
		cfg.NoCache = evalNoCache
	}
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVarP(&evalInputFile, "input", "i", "", "Content file to evaluate (required)")
	evaluateCmd.Flags().StringVarP(&evalOutputFile, "output", "o", "", "Write the verdict JSON to a file instead of stdout")
	evaluateCmd.Flags().StringVar(&evalContentID, "content-id", "", "Stable content identifier (random if empty)")
	evaluateCmd.Flags().StringVar(&evalConfigFile, "config", "", "Config file path")
	evaluateCmd.Flags().StringVar(&evalRubricPath, "rubric", "", "Rubric YAML path (built-in default if empty)")
	evaluateCmd.Flags().StringVar(&evalDBPath, "db", "", "Database path for verdicts and cache")
	evaluateCmd.Flags().BoolVar(&evalNoCache, "no-cache", false, "Disable the evaluation cache")

	evaluateCmd.Flags().StringVar(&evalProvider, "provider", "ollama", "Judge provider: ollama or openrouter")
	evaluateCmd.Flags().StringVar(&evalModel, "model", "llama3.2", "Judge model name")
	evaluateCmd.Flags().StringVar(&evalBaseURL, "base-url", "http://localhost:11434", "Judge API base URL")
	evaluateCmd.Flags().StringVar(&evalAPIKey, "api-key", "", "API key (openrouter)")

	evaluateCmd.Flags().StringSliceVar(&evalReferences, "references", nil, "Reference files for claim verification (comma-separated)")
	evaluateCmd.Flags().StringSliceVar(&evalPreserve, "preserve", nil, "Context elements a fix must not disturb")

	evaluateCmd.MarkFlagRequired("input")
}
