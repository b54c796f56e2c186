package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gameshake/gameshake/pkg/gameshake/output"
	"github.com/gameshake/gameshake/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show gameshake version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()

			// Runtime is optional here; it only supplies the writer.
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			if rt != nil {
				writer = rt.Writer()
			}

			switch output.Format(outputFormat) {
			case output.FormatJSON, output.FormatYAML:
				return output.WriteObject(writer, output.Format(outputFormat), info)
			case "":
				_, _ = fmt.Fprintf(writer, "gameshake %s (commit: %s, built: %s, %s)\n", info.Version, info.GitCommit, info.BuildDate, info.Platform)
				return nil
			default:
				return fmt.Errorf("unsupported output format for version: %s", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, yaml")

	return cmd
}
