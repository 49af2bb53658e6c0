// Package runs implements the runs command which lists training runs kept
// in the datastore.
package runs

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/datastore"
	"github.com/tphakala/birdclef-go/internal/report"
	"github.com/tphakala/birdclef-go/internal/trainer"
)

// Command creates the runs command
func Command(settings *conf.Settings) *cobra.Command {
	var limit int
	var metric string

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List training runs or show one run",
		Long: "Without arguments list the most recent training runs in the datastore. " +
			"With a run id show its checkpoints and the history of one metric.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := datastore.New(settings, nil)
			if err != nil {
				return err
			}
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				return List(cmd.Context(), cmd.OutOrStdout(), store, limit)
			}
			return Show(cmd.Context(), cmd.OutOrStdout(), store, args[0], metric)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs listed, 0 lists all")
	cmd.Flags().StringVar(&metric, "metric", trainer.KeyValidCMAP, "Metric history shown for a run")
	cmd.Flags().StringVar(&settings.Tracking.Datastore.Type, "db", viper.GetString("tracking.datastore.type"), "Datastore type: \"sqlite\" or \"mysql\"")
	cmd.Flags().StringVar(&settings.Tracking.Datastore.SQLite.Path, "sqlite", viper.GetString("tracking.datastore.sqlite.path"), "SQLite database path")

	if err := conf.BindFlags(cmd.Flags(), map[string]string{
		"db":     "tracking.datastore.type",
		"sqlite": "tracking.datastore.sqlite.path",
	}); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// List prints the most recent runs
func List(ctx context.Context, w io.Writer, store datastore.Interface, limit int) error {
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	tbl := report.New("Training runs", "Run ID", "Name", "Node", "Status", "Started", "Finished", "Best cmAP").AlignRight(6)
	for i := range runs {
		r := &runs[i]
		tbl.Row(r.RunID, r.Name, r.Node, r.Status, formatTime(&r.StartedAt), formatTime(r.FinishedAt), r.BestScore)
	}
	return tbl.Fprint(w)
}

// Show prints the checkpoints and the metric history of one run
func Show(ctx context.Context, w io.Writer, store datastore.Interface, runID, metric string) error {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	info := report.New(run.Name, "Field", "Value")
	info.Row("run id", run.RunID)
	info.Row("node", run.Node)
	info.Row("status", run.Status)
	info.Row("started", formatTime(&run.StartedAt))
	info.Row("finished", formatTime(run.FinishedAt))
	info.Row("best cmAP", run.BestScore)
	info.Row("best checkpoint", run.BestCheckpoint)
	if err := info.Fprint(w); err != nil {
		return err
	}

	ckpts := report.New("Checkpoints", "Epoch", "Step", "Score", "Path").AlignRight(0, 1, 2)
	for _, c := range run.Checkpoints {
		ckpts.Row(c.Epoch, c.Step, c.Score, c.Path)
	}
	if err := ckpts.Fprint(w); err != nil {
		return err
	}

	points, err := store.GetMetricHistory(ctx, runID, metric)
	if err != nil {
		return err
	}
	history := report.New(metric, "Step", "Value").AlignRight(0, 1)
	for _, p := range points {
		history.Row(p.Step, p.Value)
	}
	return history.Fprint(w)
}
