package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mkoval/refinex/internal/cascade"
	"github.com/mkoval/refinex/internal/config"
)

var (
	refineInputFile  string
	refineOutputFile string
	refineVerdictOut string
	refineContentID  string
	refineConfigFile string
	refineRubricPath string
	refineDBPath     string
	refineNoCache    bool

	refineProvider string
	refineModel    string
	refineBaseURL  string
	refineAPIKey   string

	refineReviserModel string
	refineReviserURL   string
	refineMaxIter      int

	refineReferences []string
	refinePreserve   []string
)

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Evaluate content and refine it until it passes",
	Long: `Run the full pipeline: evaluate, then apply the highest-priority fix
recommendations through the reviser model and re-evaluate, up to the
iteration budget. Content the loop cannot bring to acceptance is routed to
regeneration or the manual review queue.

The best version of the content is written to the output file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if refineInputFile == refineOutputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		data, err := os.ReadFile(refineInputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}

		refs, err := readReferences(refineReferences)
		if err != nil {
			return err
		}

		eng, db, err := buildEngine(refineConfigFile, func(cfg *config.Config) {
			applyRefineFlags(cmd, cfg)
		})
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
		}

		contentID := refineContentID
		if contentID == "" {
			contentID = uuid.New().String()
		}

		out, err := eng.Process(context.Background(), cascade.Input{
			ContentID:  contentID,
			Content:    string(data),
			References: refs,
			Preserved:  refinePreserve,
		})
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(refineOutputFile), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(refineOutputFile, []byte(out.Content), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		if refineVerdictOut != "" {
			verdictJSON, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal outcome: %w", err)
			}
			if err := os.WriteFile(refineVerdictOut, verdictJSON, 0644); err != nil {
				return fmt.Errorf("failed to write verdict file: %w", err)
			}
		}

		fmt.Printf("Routed: %s (score %.3f, %d iteration(s))\n",
			out.Routed, out.Verdict.OverallScore, out.Iterations)
		if out.QueueItem != nil {
			fmt.Printf("Queued for manual review (attempt %d)\n", out.QueueItem.Attempts)
		}
		return nil
	},
}

func applyRefineFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("provider") {
		cfg.Evaluator.Provider = refineProvider
	}
	if cmd.Flags().Changed("model") {
		cfg.Evaluator.Model = refineModel
	}
	if cmd.Flags().Changed("base-url") {
		cfg.Evaluator.BaseURL = refineBaseURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.Evaluator.APIKey = refineAPIKey
	}
	if cmd.Flags().Changed("reviser-model") {
		cfg.Reviser.Model = refineReviserModel
	}
	if cmd.Flags().Changed("reviser-url") {
		cfg.Reviser.BaseURL = refineReviserURL
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.Refine.MaxIterations = refineMaxIter
	}
	if cmd.Flags().Changed("rubric") {
		cfg.RubricPath = refineRubricPath
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = refineDBPath
	}
	if cmd.Flags().Changed("no-cache") {
		cfg.NoCache = refineNoCache
	}
}

func init() {
	rootCmd.AddCommand(refineCmd)

	refineCmd.Flags().StringVarP(&refineInputFile, "input", "i", "", "Content file to refine (required)")
	refineCmd.Flags().StringVarP(&refineOutputFile, "output", "o", "", "Output file for the refined content (required)")
	refineCmd.Flags().StringVar(&refineVerdictOut, "verdict", "", "Also write the full outcome JSON to this file")
	refineCmd.Flags().StringVar(&refineContentID, "content-id", "", "Stable content identifier (random if empty)")
	refineCmd.Flags().StringVar(&refineConfigFile, "config", "", "Config file path")
	refineCmd.Flags().StringVar(&refineRubricPath, "rubric", "", "Rubric YAML path (built-in default if empty)")
	refineCmd.Flags().StringVar(&refineDBPath, "db", "", "Database path for verdicts, cache, and the review queue")
	refineCmd.Flags().BoolVar(&refineNoCache, "no-cache", false, "Disable the evaluation cache")

	refineCmd.Flags().StringVar(&refineProvider, "provider", "ollama", "Judge provider: ollama or openrouter")
	refineCmd.Flags().StringVar(&refineModel, "model", "llama3.2", "Judge model name")
	refineCmd.Flags().StringVar(&refineBaseURL, "base-url", "http://localhost:11434", "Judge API base URL")
	refineCmd.Flags().StringVar(&refineAPIKey, "api-key", "", "API key (openrouter)")

	refineCmd.Flags().StringVar(&refineReviserModel, "reviser-model", "llama3.2", "Reviser model name")
	refineCmd.Flags().StringVar(&refineReviserURL, "reviser-url", "http://localhost:11434", "Reviser Ollama URL")
	refineCmd.Flags().IntVar(&refineMaxIter, "max-iterations", 2, "Maximum refinement iterations")

	refineCmd.Flags().StringSliceVar(&refineReferences, "references", nil, "Reference files for claim verification (comma-separated)")
	refineCmd.Flags().StringSliceVar(&refinePreserve, "preserve", nil, "Context elements a fix must not disturb")

	refineCmd.MarkFlagRequired("input")
	refineCmd.MarkFlagRequired("output")
}
