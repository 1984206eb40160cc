package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"virome-runner/analyzers/aggregate"
	"virome-runner/analyzers/timeline"
	"virome-runner/collectors/system"
	"virome-runner/config"
	"virome-runner/core/internal/results"
	"virome-runner/executor"
	"virome-runner/jobs"
	"virome-runner/paths"
	"virome-runner/tools"
)

var ErrJobsFailed = errors.New("one or more jobs failed")

type Options struct {
	ConfigPath string
	BaseDir    string
	Samples    []string
	Tools      []string
	Resume     bool
	DryRun     bool
	// MaxJobs overrides the manifest and settings ceilings when positive.
	MaxJobs  int
	Settings config.Settings
	RunID    string
	// Runner replaces process execution, for tests.
	Runner executor.Runner
	Logger *log.Logger
	// Plan receives the YAML plan on a dry run.
	Plan io.Writer
	Now  func() time.Time
}

type Result struct {
	RunID        string
	OutDir       string
	Plan         jobs.Plan
	Results      []jobs.Result
	Table        aggregate.Table
	Stages       []results.StageStatus
	AggregateErr error
	ResultsPath  string
	TablePath    string
	SummaryPath  string
}

// Counts tallies results per status.
func (r Result) Counts() map[jobs.Status]int {
	out := map[jobs.Status]int{}
	for _, res := range r.Results {
		out[res.Status]++
	}
	return out
}

// Setup is everything resolved from the manifest before any job runs.
type Setup struct {
	Manifest *config.Manifest
	Registry *tools.Registry
	Paths    paths.Resolved
	Samples  []jobs.Sample
	Plan     jobs.Plan
}

// Prepare loads and validates the manifest and builds the plan. Output
// directories are created unless dryRun is set.
func Prepare(opts Options) (Setup, error) {
	m, err := config.Load(opts.ConfigPath, tools.CheckName)
	if err != nil {
		return Setup{}, err
	}
	reg, err := tools.Register(m)
	if err != nil {
		return Setup{}, err
	}
	if reg, err = reg.Subset(opts.Tools); err != nil {
		return Setup{}, err
	}

	resolve := paths.Resolve
	if opts.DryRun {
		resolve = paths.Absolute
	}
	r, err := resolve(m, opts.BaseDir)
	if err != nil {
		return Setup{}, err
	}

	samples, err := jobs.Samples(m, r, opts.Samples)
	if err != nil {
		return Setup{}, err
	}
	return Setup{
		Manifest: m,
		Registry: reg,
		Paths:    r,
		Samples:  samples,
		Plan:     jobs.Build(samples, reg, r),
	}, nil
}

// Run drives one pipeline run: plan, execute, aggregate, report. Errors from
// Prepare mean nothing ran. After that, a failed job yields ErrJobsFailed and
// a failed aggregation yields an *aggregate.Error; reports are written either
// way.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	startedAt := opts.Now().UTC()

	setup, err := Prepare(opts)
	if err != nil {
		return Result{}, err
	}
	outDir := setup.Paths.OutDir()
	res := Result{
		RunID:       opts.RunID,
		OutDir:      outDir,
		Plan:        setup.Plan,
		ResultsPath: results.Path(outDir, opts.Settings.ResultsFile),
	}

	previous, err := results.Read(res.ResultsPath)
	if err != nil {
		if opts.Resume {
			return res, &config.Error{Kind: config.ErrMalformed, Path: res.ResultsPath, Err: err}
		}
		opts.Logger.Printf("ignoring unreadable %s: %v", res.ResultsPath, err)
		previous = results.Manifest{}
	}
	pending, reused := setup.Plan.Jobs, []jobs.Result(nil)
	if opts.Resume {
		pending, reused = executor.Pending(setup.Plan.Jobs, previous.Index())
	}
	// Pairs outside this run's plan keep their last recorded result.
	carried := outsidePlan(previous.Results, setup.Plan)

	if opts.DryRun {
		return res, WritePlan(opts.Plan, setup, opts.Settings.Shell, reused)
	}

	opts.Logger.Printf("run=%s jobs=%d pending=%d resumed=%d skipped=%d",
		opts.RunID, len(setup.Plan.Jobs), len(pending), len(reused), len(setup.Plan.Skipped))

	contigs := make(map[string]string, len(setup.Samples))
	for _, s := range setup.Samples {
		contigs[s.ID] = s.Contigs
	}
	agg := aggregate.NewAggregator(setup.Plan.Expected(), aggregate.DefaultStages(), aggregate.Options{
		MinLength:     setup.Manifest.Aggregate.MinLength,
		MinConfidence: setup.Manifest.Aggregate.MinConfidence,
		Tools:         setup.Registry.IDs(),
		Contigs:       contigs,
	})

	manifest := results.Manifest{
		RunID:     opts.RunID,
		CreatedAt: startedAt.Format(time.RFC3339Nano),
		Config:    setup.Manifest.Path,
	}
	snapshot := func() results.Manifest {
		out := manifest
		out.Results = append(append([]jobs.Result(nil), carried...), manifest.Results...)
		return out
	}
	record := func(r jobs.Result) {
		manifest.Results = append(manifest.Results, r)
		if err := agg.Add(r); err != nil {
			opts.Logger.Printf("aggregate: %v", err)
		}
	}
	for _, r := range setup.Plan.SkipResults() {
		record(r)
	}
	for _, r := range reused {
		record(r)
	}
	if err := results.Write(res.ResultsPath, snapshot()); err != nil {
		return res, fmt.Errorf("write results manifest: %w", err)
	}

	exec := executor.New(executor.Options{
		MaxJobs:              maxJobs(opts, setup.Manifest),
		Shell:                opts.Settings.Shell,
		Runner:               runner(opts),
		RetryInitialInterval: opts.Settings.RetryInitialInterval,
		Logger:               opts.Logger,
		Now:                  opts.Now,
		OnResult: func(r jobs.Result) {
			record(r)
			// Checkpoint so an interrupted run can still be resumed.
			if err := results.Write(res.ResultsPath, snapshot()); err != nil {
				opts.Logger.Printf("checkpoint %s: %v", res.ResultsPath, err)
			}
		},
	})
	exec.Run(ctx, pending)

	res.Results = append([]jobs.Result(nil), manifest.Results...)
	sort.SliceStable(res.Results, func(i, j int) bool { return res.Results[i].JobID < res.Results[j].JobID })

	res.Table, res.AggregateErr = agg.Finish()
	if res.AggregateErr == nil {
		res.TablePath, res.AggregateErr = writeTables(res.Table, outDir)
	}
	if res.AggregateErr != nil {
		opts.Logger.Printf("aggregate: %v", res.AggregateErr)
	}
	res.Stages = stageStatuses(res.AggregateErr)

	manifest.Results = res.Results
	manifest.Stages = res.Stages
	manifest.Metadata = system.HostInfo()
	manifest.Metadata["finished_at"] = opts.Now().UTC().Format(time.RFC3339Nano)
	if err := results.Write(res.ResultsPath, snapshot()); err != nil {
		return res, fmt.Errorf("write results manifest: %w", err)
	}
	if _, err := timeline.WriteJSONL(context.WithoutCancel(ctx), outDir, res.Results, timeline.Options{
		RunID:      opts.RunID,
		StartedAt:  startedAt,
		FinishedAt: opts.Now().UTC(),
	}); err != nil {
		opts.Logger.Printf("timeline: %v", err)
	}
	res.SummaryPath = filepath.Join(outDir, SummaryFile)
	if err := WriteSummary(res.SummaryPath, res); err != nil {
		return res, fmt.Errorf("write summary: %w", err)
	}

	return res, outcome(ctx, res)
}

func outcome(ctx context.Context, res Result) error {
	var errs []error
	if res.Counts()[jobs.StatusFailed] > 0 {
		errs = append(errs, ErrJobsFailed)
	}
	if res.AggregateErr != nil {
		errs = append(errs, res.AggregateErr)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// outsidePlan returns the prior results whose job is neither planned nor
// skipped in plan.
func outsidePlan(prior []jobs.Result, plan jobs.Plan) []jobs.Result {
	planned := map[string]bool{}
	for _, j := range plan.Jobs {
		planned[j.ID] = true
	}
	for _, r := range plan.SkipResults() {
		planned[r.JobID] = true
	}
	var out []jobs.Result
	for _, r := range prior {
		if !planned[r.JobID] {
			out = append(out, r)
		}
	}
	return out
}

func maxJobs(opts Options, m *config.Manifest) int {
	switch {
	case opts.MaxJobs > 0:
		return opts.MaxJobs
	case opts.Settings.MaxJobs > 0:
		return opts.Settings.MaxJobs
	default:
		return m.MaxJobs
	}
}

func runner(opts Options) executor.Runner {
	if opts.Runner != nil {
		return opts.Runner
	}
	return executor.ProcessRunner{GracePeriod: opts.Settings.GracePeriod, KillDelay: opts.Settings.KillDelay}
}

func writeTables(t aggregate.Table, outDir string) (string, error) {
	path := filepath.Join(outDir, aggregate.TableFile)
	if err := aggregate.WriteCSV(t, path); err != nil {
		return "", &aggregate.Error{Stage: aggregate.StageWrite, Err: err}
	}
	if _, err := aggregate.WriteFormatted(t, outDir); err != nil {
		return "", &aggregate.Error{Stage: aggregate.StageWrite, Err: err}
	}
	return path, nil
}

// stageStatuses marks stages before the failing one succeeded and stages
// after it not run.
func stageStatuses(err error) []results.StageStatus {
	failed := aggregate.StageOf(err)
	if err != nil && failed == "" {
		failed = aggregate.StageReformat
	}
	out := make([]results.StageStatus, 0, len(aggregate.Order))
	state := "succeeded"
	if failed == aggregate.StageBarrier {
		state = "not_run"
	}
	for _, st := range aggregate.Order {
		s := results.StageStatus{Stage: string(st), Status: state}
		if st == failed {
			s.Status = "failed"
			s.Error = err.Error()
			state = "not_run"
		}
		out = append(out, s)
	}
	if failed == aggregate.StageBarrier {
		out = append([]results.StageStatus{{Stage: string(failed), Status: "failed", Error: err.Error()}}, out...)
	}
	return out
}
