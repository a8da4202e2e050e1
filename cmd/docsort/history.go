package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the task history database",
}

var historyLimit int

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded task attempts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		tasks, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no history recorded")
			return nil
		}
		for _, task := range tasks {
			line := fmt.Sprintf("%s\t%s\t%s",
				task.FinishedAt.Format(time.DateTime), task.Status, task.PDFPath)
			if task.ProcessedLocation != "" {
				line += "\t-> " + task.ProcessedLocation
			}
			if task.ErrorMsg != "" {
				line += "\t" + task.ErrorMsg
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var historyOlderThan time.Duration

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete history entries older than a cutoff",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, closeStore, err := openHistory()
		if err != nil {
			return err
		}
		defer closeStore()

		removed, err := store.Purge(cmd.Context(), time.Now().Add(-historyOlderThan))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyPurgeCmd)
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50,
		"maximum entries to show; 0 for all")
	historyPurgeCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour,
		"age threshold, e.g. 720h")
}
