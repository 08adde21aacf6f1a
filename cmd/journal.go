package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mixbot/core/mixing/journal"
	"github.com/kilianp07/mixbot/pkg/export"
)

var (
	journalFormat string
	journalSince  time.Duration
	journalState  string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Export finished mix jobs",
	RunE:  runJournal,
}

func init() {
	journalCmd.Flags().StringVarP(&journalFormat, "format", "f", "csv", "output format: csv or json")
	journalCmd.Flags().DurationVar(&journalSince, "since", 0, "only jobs newer than this, e.g. 24h")
	journalCmd.Flags().StringVar(&journalState, "state", "", "only jobs in this state")
	rootCmd.AddCommand(journalCmd)
}

func runJournal(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := cfg.Journal.Open()
	if err != nil {
		return err
	}
	defer store.Close()
	q := journal.Query{State: journalState}
	if journalSince > 0 {
		q.Start = time.Now().Add(-journalSince)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	switch journalFormat {
	case "csv":
		return export.WriteCSV(cmd.OutOrStdout(), recs)
	case "json":
		return export.WriteJSON(cmd.OutOrStdout(), recs)
	default:
		return fmt.Errorf("unknown format %q", journalFormat)
	}
}
