package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdclef-go/cmd/chunk"
	"github.com/tphakala/birdclef-go/cmd/evaluate"
	"github.com/tphakala/birdclef-go/cmd/runs"
	"github.com/tphakala/birdclef-go/cmd/score"
	"github.com/tphakala/birdclef-go/cmd/species"
	"github.com/tphakala/birdclef-go/cmd/split"
	"github.com/tphakala/birdclef-go/cmd/train"
	"github.com/tphakala/birdclef-go/cmd/version"
	"github.com/tphakala/birdclef-go/internal/buildinfo"
	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "birdclef",
		Short:         "BirdCLEF audio classification toolkit",
		Long:          "Prepare BirdCLEF style datasets, train species classifiers and score predictions with padded cmAP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	scoreCmd := score.Command()
	versionCmd := version.Command()
	subcommands := []*cobra.Command{
		train.Command(settings),
		evaluate.Command(settings),
		chunk.Command(settings),
		species.Command(settings),
		split.Command(settings),
		runs.Command(settings),
		scoreCmd,
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := initLogging(settings); err != nil {
			return err
		}
		// score and version need no configuration
		if cmd.Name() == scoreCmd.Name() || cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(settings)
	}

	return rootCmd
}

// initLogging installs the central logger, at debug level when --debug is set
func initLogging(settings *conf.Settings) error {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}

	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

// initialize validates the settings after flags are applied and starts error telemetry
func initialize(settings *conf.Settings) error {
	if err := conf.ValidateSettings(settings); err != nil {
		return err
	}

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, buildinfo.Current().GetVersion()); err != nil {
			logger.Global().Module("main").Warn("error telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.Name, "node", viper.GetString("main.name"), "Node name reported to tracking sinks")

	return conf.BindFlags(rootCmd.PersistentFlags(), map[string]string{
		"debug": "debug",
		"node":  "main.name",
	})
}
