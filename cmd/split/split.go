// Package split implements the split command which moves a random share of
// a species folder into a validation folder.
package split

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/observability"
	"github.com/tphakala/birdclef-go/internal/report"
)

// Command creates the split command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <source> <destination>",
		Short: "Move a random share of recordings into a validation folder",
		Long: "Shuffle the recordings in source with a fixed seed and move " +
			"floor(fraction x count) of them into destination.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	s := &settings.Split
	cmd.Flags().Float64Var(&s.Fraction, "fraction", viper.GetFloat64("split.fraction"), "Share of recordings moved to the destination")
	cmd.Flags().Int64Var(&s.Seed, "seed", viper.GetInt64("split.seed"), "Shuffle seed")
	cmd.Flags().StringVar(&s.Extension, "ext", viper.GetString("split.extension"), "Extension of recordings considered")

	return conf.BindFlags(cmd.Flags(), map[string]string{
		"fraction": "split.fraction",
		"seed":     "split.seed",
		"ext":      "split.extension",
	})
}

// Run moves the validation share of src into dst and prints the outcome to w.
func Run(ctx context.Context, w io.Writer, src, dst string, settings *conf.Settings) error {
	s := &settings.Split

	m, endpoint, err := observability.Setup(ctx, settings)
	if err != nil {
		return err
	}
	if endpoint != nil {
		defer endpoint.Shutdown()
	}

	result, err := dataset.MoveValidationSplit(ctx, src, dst, dataset.SplitOptions{
		Extension: s.Extension,
		Fraction:  s.Fraction,
		Seed:      s.Seed,
		Recorder:  m.GetDataPrep(),
	})
	if err != nil {
		return err
	}

	tbl := report.New("Validation split", "Outcome", "Files").AlignRight(1)
	tbl.Row("total", result.Total)
	tbl.Row("moved", result.Moved)
	tbl.Row("kept", result.Total-result.Moved-result.Failed)
	tbl.Row("failed", result.Failed)
	return tbl.Fprint(w)
}
