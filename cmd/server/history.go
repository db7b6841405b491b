package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"muzzlewatch/internal/service/stats"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear the detection history",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryClearCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			records := a.Manager().History(limit)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tFILE\tDOGS\tWITH\tWITHOUT")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
					r.Timestamp.Time.Format("2006-01-02 15:04:05"), r.Filename,
					r.Stats.TotalDogs, r.Stats.WithMuzzle, r.Stats.WithoutMuzzle)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			g := stats.Aggregate(records)
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d records, %d dogs, %.1f%% without muzzle (%s)\n",
				len(records), g.TotalDogs, g.WithoutMuzzleShare()*100, stats.Assess(g))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of records to show (0 for all)")

	return cmd
}

func newHistoryClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored images and history records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Manager().ClearHistory(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History and files cleared")
			return nil
		},
	}

	return cmd
}
