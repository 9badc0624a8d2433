package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/swasya-health/capture-pipeline/internal/store"
)

var (
	historyLatest      bool
	historyMedications bool
	historyLimit       int
)

var historyCmd = &cobra.Command{
	Use:   "history <patient-id>",
	Short: "Show a patient's clinical history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		patientID := args[0]
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		switch {
		case historyLatest:
			entry, err := st.LatestEntry(cmd.Context(), patientID)
			if err != nil {
				return err
			}
			if entry == nil {
				fmt.Printf("no history for %s\n", patientID)
				return nil
			}
			return enc.Encode(entry)

		case historyMedications:
			items, err := store.MedicationTimeline(cmd.Context(), st, patientID)
			if err != nil {
				return err
			}
			return enc.Encode(items)

		default:
			entries, err := st.ListEntries(cmd.Context(), patientID, historyLimit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("no history for %s\n", patientID)
				return nil
			}
			return enc.Encode(entries)
		}
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyLatest, "latest", false, "show only the most recent entry")
	historyCmd.Flags().BoolVar(&historyMedications, "medications", false, "show the aggregated medication timeline")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "max entries to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}
