// Package train implements the train command
package train

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

// Command creates the train command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a species classifier head",
		Long: "Extract backbone features for the species folders of the training directory, " +
			"train the classifier head and checkpoint it whenever the validation padded cmAP improves.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), cmd.OutOrStdout(), settings)
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
	f := cmd.Flags()
	f.StringVar(&s.TrainDir, "train-dir", viper.GetString("train.traindir"), "Species folder root with training clips")
	f.StringVar(&s.ValidDir, "valid-dir", viper.GetString("train.validdir"), "Separate validation species folder root, empty uses a fold split")
	f.StringVar(&s.CheckpointDir, "checkpoint-dir", viper.GetString("train.checkpointdir"), "Directory for model_<epoch>.ckpt files")
	f.IntVar(&s.Fold, "fold", viper.GetInt("train.fold"), "Validation fold index")
	f.IntVar(&s.NumFold, "num-fold", viper.GetInt("train.numfold"), "Number of folds")
	f.IntVar(&s.NumClasses, "num-classes", viper.GetInt("train.numclasses"), "Classifier width, 0 = number of species folders")
	f.IntVar(&s.Epochs, "epochs", viper.GetInt("train.epochs"), "Training epochs")
	f.IntVar(&s.TrainBatchSize, "train-bs", viper.GetInt("train.trainbatchsize"), "Training batch size")
	f.IntVar(&s.ValidBatchSize, "valid-bs", viper.GetInt("train.validbatchsize"), "Validation batch size")
	f.IntVar(&s.SampleRate, "sr", viper.GetInt("train.samplerate"), "Target sample rate in Hz")
	f.IntVar(&s.HopLength, "hop-length", viper.GetInt("train.hoplength"), "STFT hop length in samples")
	f.Float64Var(&s.MaxTime, "max-time", viper.GetFloat64("train.maxtime"), "Clip length in seconds")
	f.IntVar(&s.NMels, "n-mels", viper.GetInt("train.nmels"), "Mel bands")
	f.IntVar(&s.NFFT, "n-fft", viper.GetInt("train.nfft"), "FFT size")
	f.Int64Var(&s.Seed, "seed", viper.GetInt64("train.seed"), "Seed for initialization, shuffling and dropout")
	f.BoolVar(&s.Logging, "logging", viper.GetBool("train.logging"), "Send metrics to the configured tracking sinks")
	f.IntVar(&s.LoggingFreq, "logging-freq", viper.GetInt("train.loggingfreq"), "Batches between training metric logs")
	f.IntVar(&s.ValidFreq, "valid-freq", viper.GetInt("train.validfreq"), "Steps between mid-epoch validations")
	f.Float64Var(&s.LearningRate, "lr", viper.GetFloat64("train.learningrate"), "Initial learning rate")
	f.Float64Var(&s.MinLR, "min-lr", viper.GetFloat64("train.minlr"), "Cosine annealing floor")
	f.IntVar(&s.TMax, "t-max", viper.GetInt("train.tmax"), "Cosine annealing half period in steps")
	f.IntVar(&s.Hidden, "hidden", viper.GetInt("train.hidden"), "Hidden units of the head, 0 = linear head")
	f.Float64Var(&s.Dropout, "dropout", viper.GetFloat64("train.dropout"), "Hidden layer dropout")
	f.IntVar(&s.PadN, "pad", viper.GetInt("train.padn"), "Padding rows for padded cmAP")
	f.StringVar(&s.Backbone, "backbone", viper.GetString("train.backbone"), "Feature backbone: \"mel\" or \"tflite\"")
	f.StringVar(&s.ModelPath, "model", viper.GetString("train.modelpath"), "TFLite model for the tflite backbone")
	f.BoolVar(&s.UseXNNPACK, "xnnpack", viper.GetBool("train.usexnnpack"), "Use the XNNPACK delegate for TFLite")
	f.IntVar(&s.Threads, "threads", viper.GetInt("train.threads"), "TFLite interpreter threads, 0 = auto")
	f.IntVar(&s.CacheSize, "cache", viper.GetInt("train.cachesize"), "Maximum cached feature vectors, 0 = unlimited")
	f.IntVarP(&settings.Main.Jobs, "jobs", "j", viper.GetInt("main.jobs"), "Concurrent feature extractions")
	f.BoolVar(&settings.Observability.Enabled, "telemetry", viper.GetBool("observability.enabled"), "Collect Prometheus training metrics")
	f.StringVar(&settings.Observability.Listen, "listen", viper.GetString("observability.listen"), "Serve /metrics on this address while training")

	return conf.BindFlags(f, map[string]string{
		"train-dir":      "train.traindir",
		"valid-dir":      "train.validdir",
		"checkpoint-dir": "train.checkpointdir",
		"fold":           "train.fold",
		"num-fold":       "train.numfold",
		"num-classes":    "train.numclasses",
		"epochs":         "train.epochs",
		"train-bs":       "train.trainbatchsize",
		"valid-bs":       "train.validbatchsize",
		"sr":             "train.samplerate",
		"hop-length":     "train.hoplength",
		"max-time":       "train.maxtime",
		"n-mels":         "train.nmels",
		"n-fft":          "train.nfft",
		"seed":           "train.seed",
		"logging":        "train.logging",
		"logging-freq":   "train.loggingfreq",
		"valid-freq":     "train.validfreq",
		"lr":             "train.learningrate",
		"min-lr":         "train.minlr",
		"t-max":          "train.tmax",
		"hidden":         "train.hidden",
		"dropout":        "train.dropout",
		"pad":            "train.padn",
		"backbone":       "train.backbone",
		"model":          "train.modelpath",
		"xnnpack":        "train.usexnnpack",
		"threads":        "train.threads",
		"cache":          "train.cachesize",
		"jobs":           "main.jobs",
		"telemetry":      "observability.enabled",
		"listen":         "observability.listen",
	})
}

// Run trains with settings and prints the run summary to w.
func Run(ctx context.Context, w io.Writer, settings *conf.Settings) error {
	m, endpoint, err := observability.Setup(ctx, settings)
	if err != nil {
		return err
	}
	if endpoint != nil {
		defer endpoint.Shutdown()
	}

	summary, err := trainer.Run(ctx, settings, m)
	if err != nil {
		return err
	}

	tbl := report.New("Training run", "Field", "Value").AlignRight(1)
	tbl.Row("run", summary.RunName)
	tbl.Row("epochs", summary.Epochs)
	tbl.Row("steps", summary.Steps)
	tbl.Row("best padded cmAP", summary.BestScore)
	best := summary.BestCheckpoint
	if best == "" {
		best = "none"
	}
	tbl.Row("best checkpoint", best)
	return tbl.Fprint(w)
}
