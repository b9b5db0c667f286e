package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rsdeploy/rsdeploy/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show the current version of rsdeploy`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "rsdeploy %s\n", version.Version)
			return err
		},
	}
}
