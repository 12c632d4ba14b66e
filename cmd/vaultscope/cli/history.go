package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultscope/vaultscope/internal/config"
	"github.com/vaultscope/vaultscope/internal/history"
)

// RegisterHistoryCommands adds inspection of the run-history database.
func RegisterHistoryCommands(root *cobra.Command) {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past report runs",
	}

	var limit int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent report runs",
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show")
	listCmd.RunE = func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No report runs recorded.")
			return nil
		}

		fmt.Printf("%-20s  %-10s  %-10s  %8s  %10s  %s\n",
			"TIMESTAMP", "REPORT", "STATUS", "RECORDS", "DURATION", "RUN")
		for _, r := range records {
			fmt.Printf("%-20s  %-10s  %-10s  %8d  %10s  %s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				r.Kind, r.Status, r.Records,
				r.Duration.Round(time.Millisecond), r.RunUUID[:8])
		}
		return nil
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of the run-history hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			ok, count, err := store.Verify()
			if !ok {
				return fmt.Errorf("history chain verification failed: %w", err)
			}
			fmt.Printf("History chain intact: %d records verified\n", count)
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, verifyCmd)
	root.AddCommand(historyCmd)
}

func openHistory() (*history.Store, error) {
	return history.Open(filepath.Join(config.Dir(), history.DBFileName))
}
