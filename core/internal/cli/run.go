package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"virome-runner/config"
	"virome-runner/core/internal/pipeline"
	"virome-runner/jobs"
)

func NewRunCmd() *cobra.Command {
	var configPath string
	var baseDir string
	var envFile string
	var samples []string
	var toolNames []string
	var resume bool
	var dryRun bool
	var quiet bool
	var maxJobs int
	var gracePeriod time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled tool over every sample and build the combined table",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("grace-period") {
				settings.GracePeriod = gracePeriod
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := log.New(os.Stderr, "virome-runner: ", log.LstdFlags)
			if quiet {
				logger.SetOutput(io.Discard)
			}

			res, err := pipeline.Run(ctx, pipeline.Options{
				ConfigPath: configPath,
				BaseDir:    baseDir,
				Samples:    samples,
				Tools:      toolNames,
				Resume:     resume,
				DryRun:     dryRun,
				MaxJobs:    maxJobs,
				Settings:   settings,
				RunID:      uuid.NewString(),
				Logger:     logger,
				Plan:       cmd.OutOrStdout(),
			})
			if dryRun || res.RunID == "" {
				return err
			}
			counts := res.Counts()
			fmt.Printf("run=%s output=%s succeeded=%d failed=%d skipped=%d rows=%d\n",
				res.RunID, res.OutDir,
				counts[jobs.StatusSucceeded], counts[jobs.StatusFailed], counts[jobs.StatusSkipped],
				len(res.Table.Rows))
			return err
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "Pipeline manifest (YAML, JSON or TOML)")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "Directory relative manifest paths resolve against (default: manifest directory)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Dotenv file with VIROME_* settings")
	cmd.Flags().StringSliceVar(&samples, "samples", nil, "Samples to run (comma-separated, default: manifest or in_dir)")
	cmd.Flags().StringSliceVar(&toolNames, "tools", nil, "Subset of enabled tools to run (comma-separated)")
	cmd.Flags().BoolVar(&resume, "resume", false, "Reuse succeeded jobs from the previous results manifest")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan as YAML and run nothing")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress logging")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", 0, "Max concurrently running jobs (default: VIROME_MAX_JOBS, manifest, or CPUs)")
	cmd.Flags().DurationVar(&gracePeriod, "grace-period", 30*time.Second, "Wait this long for running tools after an interrupt before terminating them")
	return cmd
}
