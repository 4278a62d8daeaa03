package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abelzeko/kommunekamp/internal/entities"
	"github.com/abelzeko/kommunekamp/internal/scoring"
	"github.com/abelzeko/kommunekamp/internal/usecases"
)

type compareOutput struct {
	Komms     []*entities.Komm       `json:"komms"`
	Score1    float64                `json:"score1"`
	Score2    float64                `json:"score2"`
	Winner    string                 `json:"winner"`
	Breakdown []scoring.Contribution `json:"breakdown"`
}

func newCompareCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compare <komm1> <komm2>",
		Short: "Compare two municipalities and print the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireCompare(); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, wireOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			cmp, err := a.useCase.Compare(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return writeComparisonJSON(out, cmp)
			}
			return writeComparisonTable(out, cmp)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeComparisonJSON(w io.Writer, cmp *usecases.Comparison) error {
	return writeJSON(w, compareOutput{
		Komms:     []*entities.Komm{cmp.Komm1, cmp.Komm2},
		Score1:    cmp.Result.Score1,
		Score2:    cmp.Result.Score2,
		Winner:    cmp.Result.Winner.String(),
		Breakdown: cmp.Result.Breakdown,
	})
}

func writeComparisonTable(w io.Writer, cmp *usecases.Comparison) error {
	if _, err := fmt.Fprintln(w, usecases.FormatComparison(cmp)); err != nil {
		return err
	}
	if len(cmp.Result.Breakdown) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\nATTRIBUTE\t%s\t%s\n", cmp.Komm1.ID, cmp.Komm2.ID)
	for _, c := range cmp.Result.Breakdown {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", c.Attribute, c.Komm1, c.Komm2)
	}
	return tw.Flush()
}
