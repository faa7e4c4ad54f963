package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mkoval/refinex/internal/rubric"
)

var rubricInitOutput string

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Inspect and manage evaluation rubrics",
}

var rubricInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in default rubric as a YAML starting point",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(rubric.Default())
		if err != nil {
			return fmt.Errorf("failed to marshal rubric: %w", err)
		}

		if rubricInitOutput == "" {
			fmt.Print(string(data))
			return nil
		}
		if err := os.WriteFile(rubricInitOutput, data, 0644); err != nil {
			return fmt.Errorf("failed to write rubric file: %w", err)
		}
		fmt.Printf("Wrote default rubric to %s\n", rubricInitOutput)
		return nil
	},
}

var rubricValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a rubric YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := rubric.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Rubric %s is valid: %d criteria, passing threshold %.2f\n",
			r.Version, len(r.Criteria), r.PassingThreshold)
		return nil
	},
}

var rubricShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Show a rubric's criteria (the built-in default if no path given)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r *rubric.Rubric
		var err error
		if len(args) == 1 {
			r, err = rubric.Load(args[0])
			if err != nil {
				return err
			}
		} else {
			r = rubric.Default()
		}

		fmt.Printf("Version: %s\nPassing threshold: %.2f\n\n", r.Version, r.PassingThreshold)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWEIGHT\tCLASS\tDESCRIPTION")
		for _, c := range r.Criteria {
			fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", c.ID, c.Weight, c.Class, c.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rubricCmd)

	rubricInitCmd.Flags().StringVarP(&rubricInitOutput, "output", "o", "", "Output file (stdout if empty)")

	rubricCmd.AddCommand(rubricInitCmd)
	rubricCmd.AddCommand(rubricValidateCmd)
	rubricCmd.AddCommand(rubricShowCmd)
}
