package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkoval/refinex/internal/review"
	"github.com/mkoval/refinex/internal/store"
)

var (
	queueDBPath string
	queueNotes  string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the manual review queue",
	Long:  `List escalated content and move items through the review workflow.`,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(queueDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		items, err := db.ListPending(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list queue: %w", err)
		}

		if len(items) == 0 {
			fmt.Println("Review queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CONTENT ID\tSCORE\tATTEMPTS\tENQUEUED\tREASON")
		for _, item := range items {
			reason := item.Reason
			if len(reason) > 60 {
				reason = reason[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%.3f\t%d\t%s\t%s\n",
				item.ContentID, item.Score, item.Attempts,
				item.EnqueuedAt.Format("2006-01-02 15:04"), reason)
		}
		return w.Flush()
	},
}

var queueApproveCmd = &cobra.Command{
	Use:   "approve <content-id>",
	Short: "Approve a review item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setQueueStatus(args[0], review.StatusApproved)
	},
}

var queueRejectCmd = &cobra.Command{
	Use:   "reject <content-id>",
	Short: "Reject a review item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setQueueStatus(args[0], review.StatusRejected)
	},
}

var queueClaimCmd = &cobra.Command{
	Use:   "claim <content-id>",
	Short: "Mark a review item in review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setQueueStatus(args[0], review.StatusInReview)
	},
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <content-id>",
	Short: "Delete a review item outright",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(queueDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Remove(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to remove item: %w", err)
		}
		fmt.Printf("Removed item: %s\n", args[0])
		return nil
	},
}

func setQueueStatus(contentID string, status review.Status) error {
	db, err := store.New(queueDBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.UpdateStatus(context.Background(), contentID, status, queueNotes); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	fmt.Printf("Item %s is now %s\n", contentID, status)
	return nil
}

func init() {
	rootCmd.AddCommand(queueCmd)

	queueCmd.PersistentFlags().StringVar(&queueDBPath, "db", "./data/refinex.db", "Database path")
	queueCmd.PersistentFlags().StringVar(&queueNotes, "notes", "", "Reviewer notes to record with the status change")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClaimCmd)
	queueCmd.AddCommand(queueApproveCmd)
	queueCmd.AddCommand(queueRejectCmd)
	queueCmd.AddCommand(queueRemoveCmd)
}
