package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/chaincache/internal/version"
)

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Show the chaincache version, commit and build date.`,
	Example: `  chaincache version
  chaincache version -o json`,
	GroupID: groupUtility,
	Args:    cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return formatter.Print(version.Get())
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}
