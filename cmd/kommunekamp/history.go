package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abelzeko/kommunekamp/internal/repository"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent comparisons from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.HistoryDB == "" {
				return fmt.Errorf("HISTORY_DB is not set")
			}

			repo, err := repository.NewSQLiteComparisonRepository(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer repo.Close()

			recs, err := repo.RecentComparisons(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				return writeJSON(out, recs)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tKOMM1\tKOMM2\tSCORE1\tSCORE2\tWINNER")
			for _, r := range recs {
				winner := r.Winner
				if winner == "" {
					winner = "tie"
				}
				fmt.Fprintf(tw, "%s\t%s %s\t%s %s\t%.3f\t%.3f\t%s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Komm1, r.Komm1Name, r.Komm2, r.Komm2Name,
					r.Score1, r.Score2, winner)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of comparisons to show")
	return cmd
}
