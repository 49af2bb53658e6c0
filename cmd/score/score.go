// Package score implements the score command which computes the padded
// cmAP of a submission file.
package score

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tphakala/birdclef-go/internal/report"
	"github.com/tphakala/birdclef-go/internal/scoring"
)

// Command creates the score command
func Command() *cobra.Command {
	var solution, submission string
	var padN int

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a submission CSV with padded cmAP",
		Long: "Compute the padded class-wise mean average precision of a submission CSV " +
			"against a solution CSV. Both files have a row_id column and one column per class.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.OutOrStdout(), solution, submission, padN)
		},
	}

	cmd.Flags().StringVar(&solution, "solution", "", "Solution CSV with one-hot class columns")
	cmd.Flags().StringVar(&submission, "submission", "", "Submission CSV with predicted class probabilities")
	cmd.Flags().IntVar(&padN, "pad", scoring.DefaultPadN, "Number of all-ones padding rows")
	_ = cmd.MarkFlagRequired("solution")
	_ = cmd.MarkFlagRequired("submission")

	return cmd
}

// Run scores submission against solution and prints the result to w
func Run(w io.Writer, solution, submission string, padN int) error {
	score, m, err := scoring.ScoreFiles(solution, submission, padN)
	if err != nil {
		return err
	}

	tbl := report.New("Submission score", "Metric", "Value").AlignRight(1)
	tbl.Row("rows", len(m.Solution))
	tbl.Row("classes", len(m.Classes))
	tbl.Row("padding rows", padN)
	tbl.Row("padded cmAP", score)
	if err := tbl.Fprint(w); err != nil {
		return fmt.Errorf("print score: %w", err)
	}
	return nil
}
