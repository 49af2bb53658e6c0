// Package version implements the version command
package version

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/birdclef-go/internal/buildinfo"
	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/report"
)

// Command creates the version command
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildinfo.Current()
			tbl := report.New("", "Field", "Value")
			tbl.Row("version", info.GetVersion())
			tbl.Row("build date", info.GetBuildDate())
			tbl.Row("go", info.GoVersion)
			tbl.Row("platform", info.Platform)
			configPath, err := conf.FindConfigFile()
			if err != nil {
				configPath = "none"
			}
			tbl.Row("config", configPath)
			return tbl.Fprint(cmd.OutOrStdout())
		},
	}
}
