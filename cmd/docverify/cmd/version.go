package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docverify/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		info := version.Get()
		if format == formatText {
			_, err := cmd.OutOrStdout().Write([]byte(info.String() + "\n"))
			return err
		}
		return writeResult(cmd.OutOrStdout(), format, info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().String("format", formatText, "output format (text, json, yaml)")
}
