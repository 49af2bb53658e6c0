// Package species implements the species command which buckets recordings
// into per-species folders.
package species

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/errors"
	"github.com/tphakala/birdclef-go/internal/observability"
	"github.com/tphakala/birdclef-go/internal/report"
	"github.com/tphakala/birdclef-go/internal/species"
)

// Command creates the species command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "species <folder>",
		Short: "Move recordings into species folders",
		Long: "Move the recordings of a folder into sub-folders named by eBird species code. " +
			"In metadata mode codes come from the folder's metadata CSV, in filename mode " +
			"from \"XC<id> - <Common> - <Scientific>\" file names looked up in the eBird taxonomy.",
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
	s := &settings.Species
	cmd.Flags().StringVar(&s.Mode, "mode", viper.GetString("species.mode"), "Species source: \"metadata\" or \"filename\"")
	cmd.Flags().StringVar(&s.MetadataCSV, "metadata", viper.GetString("species.metadatacsv"), "Metadata CSV, relative to the folder")
	cmd.Flags().StringVar(&s.TaxonomyCSV, "taxonomy", viper.GetString("species.taxonomycsv"), "eBird taxonomy CSV used in filename mode")
	cmd.Flags().StringVar(&s.Extension, "ext", viper.GetString("species.extension"), "Extension of recordings considered in filename mode")

	return conf.BindFlags(cmd.Flags(), map[string]string{
		"mode":     "species.mode",
		"metadata": "species.metadatacsv",
		"taxonomy": "species.taxonomycsv",
		"ext":      "species.extension",
	})
}

// Run buckets the recordings in folder and prints the outcome to w.
func Run(ctx context.Context, w io.Writer, folder string, settings *conf.Settings) error {
	s := &settings.Species

	m, endpoint, err := observability.Setup(ctx, settings)
	if err != nil {
		return err
	}
	if endpoint != nil {
		defer endpoint.Shutdown()
	}

	var result species.Result
	switch s.Mode {
	case conf.SpeciesModeMetadata:
		metadata := s.MetadataCSV
		if !filepath.IsAbs(metadata) {
			metadata = filepath.Join(folder, metadata)
		}
		result, err = species.FromMetadata(ctx, folder, metadata, m.GetDataPrep())
	case conf.SpeciesModeFilename:
		taxonomy, terr := species.LoadTaxonomy(s.TaxonomyCSV)
		if terr != nil {
			return terr
		}
		result, err = species.FromFilename(ctx, folder, taxonomy, s.Extension, m.GetDataPrep())
	default:
		return errors.ValidationError(fmt.Sprintf("unknown species mode %q", s.Mode))
	}
	if err != nil {
		return err
	}

	tbl := report.New("Species folders", "Outcome", "Files").AlignRight(1)
	tbl.Row("moved", result.Moved)
	tbl.Row("skipped", result.Skipped)
	tbl.Row("failed", result.Failed)
	return tbl.Fprint(w)
}
