// Package chunk implements the chunk command which cuts strongly labeled
// recordings into fixed-length training chunks.
package chunk

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdclef-go/internal/chunker"
	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/dataset"
	"github.com/tphakala/birdclef-go/internal/diskmanager"
	"github.com/tphakala/birdclef-go/internal/logger"
	"github.com/tphakala/birdclef-go/internal/observability"
	"github.com/tphakala/birdclef-go/internal/report"
)

// estimateSampleRate is the highest source rate assumed when sizing an export
const estimateSampleRate = 48000

// Command creates the chunk command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <dataset-root>",
		Short: "Cut labeled recordings into fixed-length chunks",
		Long: "Generate chunk windows from the strong labels CSV of a species folder dataset " +
			"and export every window as a WAV file under the output directory.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), cmd.OutOrStdout(), args[0], settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	s := &settings.Chunk
	cmd.Flags().StringVar(&s.LabelsCSV, "labels", viper.GetString("chunk.labelscsv"), "Strong labels CSV relative to the dataset root")
	cmd.Flags().StringVar(&s.ChunksCSV, "chunks", viper.GetString("chunk.chunkscsv"), "Chunk CSV written and read, relative to the dataset root")
	cmd.Flags().StringVar(&s.OutputDir, "output", viper.GetString("chunk.outputdir"), "Chunk output directory relative to the dataset root")
	cmd.Flags().Float64Var(&s.Duration, "duration", viper.GetFloat64("chunk.duration"), "Chunk duration in seconds")
	cmd.Flags().IntVar(&s.Count, "count", viper.GetInt("chunk.count"), "Windows generated per event shorter than the chunk duration")
	cmd.Flags().BoolVar(&s.OnlySlide, "only-slide", viper.GetBool("chunk.onlyslide"), "Slide windows over every event regardless of length")
	cmd.Flags().Float64Var(&s.SlideStep, "slide-step", viper.GetFloat64("chunk.slidestep"), "Sliding window step in seconds, 0 uses the chunk duration")
	cmd.Flags().BoolVar(&s.SaveCSV, "save-csv", viper.GetBool("chunk.savecsv"), "Write the chunk CSV and export from it")
	cmd.Flags().Float64Var(&s.DeleteLength, "delete-length", viper.GetFloat64("chunk.deletelength"), "Delete exported chunks of exactly this many seconds, 0 keeps all")
	cmd.Flags().IntVarP(&settings.Main.Jobs, "jobs", "j", viper.GetInt("main.jobs"), "Recordings decoded concurrently")

	return conf.BindFlags(cmd.Flags(), map[string]string{
		"labels":        "chunk.labelscsv",
		"chunks":        "chunk.chunkscsv",
		"output":        "chunk.outputdir",
		"duration":      "chunk.duration",
		"count":         "chunk.count",
		"only-slide":    "chunk.onlyslide",
		"slide-step":    "chunk.slidestep",
		"save-csv":      "chunk.savecsv",
		"delete-length": "chunk.deletelength",
		"jobs":          "main.jobs",
	})
}

// resolve joins a dataset relative path with root
func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Run generates chunk rows for the dataset at root, exports them and prints a summary to w.
func Run(ctx context.Context, w io.Writer, root string, settings *conf.Settings) error {
	s := &settings.Chunk

	m, endpoint, err := observability.Setup(ctx, settings)
	if err != nil {
		return err
	}
	if endpoint != nil {
		defer endpoint.Shutdown()
	}

	labels, err := dataset.ReadStrongLabels(resolve(root, s.LabelsCSV))
	if err != nil {
		return err
	}

	rows := chunker.Generate(labels, chunker.Options{
		ChunkDuration: s.Duration,
		ChunkCount:    s.Count,
		OnlySlide:     s.OnlySlide,
		SlideStep:     s.SlideStep,
	})

	if s.SaveCSV {
		chunksCSV := resolve(root, s.ChunksCSV)
		if err := dataset.WriteChunkRows(chunksCSV, rows); err != nil {
			return err
		}
		if rows, err = dataset.ReadChunkRows(chunksCSV); err != nil {
			return err
		}
	}

	need := diskmanager.EstimateWAVBytes(len(rows), s.Duration, estimateSampleRate)
	if err := diskmanager.EnsureFreeSpace(resolve(root, s.OutputDir), need); err != nil {
		chunker.GetLogger().Warn("chunk export may run out of disk space", logger.Error(err))
	}

	stats, err := chunker.Export(ctx, root, rows, chunker.ExportOptions{
		OutputDir:     s.OutputDir,
		ChunkDuration: s.Duration,
		Jobs:          settings.Main.Jobs,
		Recorder:      m.GetDataPrep(),
	})
	if err != nil {
		return err
	}

	deleted := 0
	if s.DeleteLength > 0 {
		length := time.Duration(s.DeleteLength * float64(time.Second))
		if deleted, err = chunker.DeleteChunksWithLength(resolve(root, s.OutputDir), length, m.GetDataPrep()); err != nil {
			return err
		}
	}

	tbl := report.New("Chunk export", "Outcome", "Count").AlignRight(1)
	tbl.Row("labels", len(labels))
	tbl.Row("windows", len(rows))
	tbl.Row("written", stats.Written)
	tbl.Row("rejected", stats.Rejected)
	tbl.Row("failed", stats.Failed)
	if s.DeleteLength > 0 {
		tbl.Row("deleted", deleted)
	}
	return tbl.Fprint(w)
}
