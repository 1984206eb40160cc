package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"virome-runner/core/internal/version"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "virome-runner",
		Short:         "Run viral classification tools over metagenome assemblies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewToolsCmd())
	cmd.AddCommand(NewAssignTaxonomyCmd())
	cmd.AddCommand(NewVersionCmd())

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version.Version

	return cmd
}
