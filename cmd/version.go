package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tgdrive/clouddrive/internal/version"
)

func NewVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Check the version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clouddrive %s (%s)\n", info.Version, info.CommitSHA)
			fmt.Fprintf(out, "- os/type: %s\n", info.Os)
			fmt.Fprintf(out, "- os/arch: %s\n", info.Arch)
			fmt.Fprintf(out, "- go/version: %s\n", info.GoVersion)
			return nil
		},
	}
}
