package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"virome-runner/core/internal/pipeline"
)

func NewCheckCmd() *cobra.Command {
	var configPath string
	var baseDir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the manifest and report missing tool environments and inputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := pipeline.Prepare(pipeline.Options{
				ConfigPath: configPath,
				BaseDir:    baseDir,
				DryRun:     true,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var missing int
			for _, spec := range setup.Registry.Specs() {
				checks := []struct{ kind, path string }{{"env", spec.Env}, {"db", spec.DB}}
				for _, c := range checks {
					if c.path == "" {
						continue
					}
					p := setup.Paths.Abs(c.path)
					if _, err := os.Stat(p); err != nil {
						missing++
						fmt.Fprintf(out, "missing %s tool=%s path=%s\n", c.kind, spec.ID, p)
					}
				}
			}
			for _, sk := range setup.Plan.Skipped {
				fmt.Fprintf(out, "skip %s/%s: %s\n", sk.Tool, sk.Sample, sk.Reason)
			}

			fmt.Fprintf(out, "config=%s tools=%d samples=%d jobs=%d skipped=%d missing=%d\n",
				setup.Manifest.Path, setup.Registry.Len(), len(setup.Samples),
				len(setup.Plan.Jobs), len(setup.Plan.Skipped), missing)
			if missing > 0 {
				return fmt.Errorf("%d tool environment or database paths missing", missing)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Pipeline manifest (YAML, JSON or TOML)")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "Directory relative manifest paths resolve against (default: manifest directory)")
	return cmd
}
