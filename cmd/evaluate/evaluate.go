// Package evaluate implements the evaluate command which scores a saved
// checkpoint on a species folder dataset.
package evaluate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/observability"
	"github.com/tphakala/birdclef-go/internal/report"
	"github.com/tphakala/birdclef-go/internal/trainer"
)

// Command creates the evaluate command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <checkpoint> <dataset-dir>",
		Short: "Score a checkpoint on a species folder dataset",
		Long: "Rebuild features with the checkpoint's backbone settings and report " +
			"loss, accuracy and padded cmAP on the species folders of dataset-dir.",
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
	s := &settings.Train
	cmd.Flags().IntVar(&s.ValidBatchSize, "batch", viper.GetInt("train.validbatchsize"), "Evaluation batch size")
	cmd.Flags().IntVar(&s.PadN, "pad", viper.GetInt("train.padn"), "Padding rows for padded cmAP")
	cmd.Flags().IntVar(&s.CacheSize, "cache", viper.GetInt("train.cachesize"), "Maximum cached feature vectors, 0 = unlimited")
	cmd.Flags().IntVar(&s.Threads, "threads", viper.GetInt("train.threads"), "TFLite interpreter threads, 0 = auto")
	cmd.Flags().BoolVar(&s.UseXNNPACK, "xnnpack", viper.GetBool("train.usexnnpack"), "Use the XNNPACK delegate for TFLite backbones")
	cmd.Flags().IntVarP(&settings.Main.Jobs, "jobs", "j", viper.GetInt("main.jobs"), "Concurrent feature extractions")

	return conf.BindFlags(cmd.Flags(), map[string]string{
		"batch":   "train.validbatchsize",
		"pad":     "train.padn",
		"cache":   "train.cachesize",
		"threads": "train.threads",
		"xnnpack": "train.usexnnpack",
		"jobs":    "main.jobs",
	})
}

// Run evaluates the checkpoint at path on dir and prints the scores to w.
func Run(ctx context.Context, w io.Writer, path, dir string, settings *conf.Settings) error {
	m, endpoint, err := observability.Setup(ctx, settings)
	if err != nil {
		return err
	}
	if endpoint != nil {
		defer endpoint.Shutdown()
	}

	ev, err := trainer.EvaluateCheckpoint(ctx, settings, path, dir, m)
	if err != nil {
		return err
	}

	tbl := report.New("Checkpoint evaluation", "Metric", "Value").AlignRight(1)
	tbl.Row("checkpoint", path)
	tbl.Row("backbone", ev.Checkpoint.Feature.Backbone)
	tbl.Row("epoch", ev.Checkpoint.Epoch)
	tbl.Row("training cmAP", ev.Checkpoint.Score)
	tbl.Row("classes", len(ev.Checkpoint.Classes))
	tbl.Row("samples", ev.Samples)
	tbl.Row("skipped", ev.Skipped)
	tbl.Row("loss", ev.Loss)
	tbl.Row("accuracy %", ev.Accuracy)
	tbl.Row("padded cmAP", ev.CMAP)
	return tbl.Fprint(w)
}
