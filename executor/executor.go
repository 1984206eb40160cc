package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"virome-runner/jobs"
	"virome-runner/outputs"
	"virome-runner/tools"
)

const diagnosticBytes = 4096

type Options struct {
	// MaxJobs bounds running jobs across all tools. Zero means the number of CPUs.
	MaxJobs              int
	Shell                string
	Runner               Runner
	RetryInitialInterval time.Duration
	// OnResult is called once per terminal result. Calls are serialized.
	OnResult func(jobs.Result)
	Logger   *log.Logger
	Now      func() time.Time
}

type Executor struct {
	opts Options
	mu   sync.Mutex
}

func New(opts Options) *Executor {
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = runtime.NumCPU()
	}
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if opts.Runner == nil {
		opts.Runner = ProcessRunner{GracePeriod: 30 * time.Second, KillDelay: 5 * time.Second}
	}
	if opts.RetryInitialInterval <= 0 {
		opts.RetryInitialInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Executor{opts: opts}
}

// Run executes js and returns one result per job, in job order. Running jobs
// of one tool never claim more than the tool's budget, and no more than
// MaxJobs run at once. Cancelling ctx stops jobs that have not started; those
// come back skipped with reason "canceled".
func (e *Executor) Run(ctx context.Context, js []jobs.Job) []jobs.Result {
	results := make([]jobs.Result, len(js))
	global := semaphore.NewWeighted(int64(e.opts.MaxJobs))
	budgets := map[tools.ID]*semaphore.Weighted{}
	for _, j := range js {
		if _, ok := budgets[j.Tool]; !ok {
			budgets[j.Tool] = semaphore.NewWeighted(int64(budget(j)))
		}
	}

	var g errgroup.Group
	for i, j := range js {
		i, j := i, j
		g.Go(func() error {
			results[i] = e.schedule(ctx, j, global, budgets[j.Tool])
			e.emit(results[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func budget(j jobs.Job) int {
	if j.Spec.Budget > 0 {
		return j.Spec.Budget
	}
	return 1
}

// claim is the share of the tool budget one job holds while running.
func claim(j jobs.Job) int64 {
	n := j.Spec.JobThreads
	if n <= 0 {
		n = 1
	}
	if b := budget(j); n > b {
		n = b
	}
	return int64(n)
}

func (e *Executor) schedule(ctx context.Context, j jobs.Job, global, tool *semaphore.Weighted) jobs.Result {
	weight := claim(j)
	if err := tool.Acquire(ctx, weight); err != nil {
		return canceled(j)
	}
	defer tool.Release(weight)

	if err := global.Acquire(ctx, 1); err != nil {
		return canceled(j)
	}
	defer global.Release(1)

	// Acquire may succeed on a done context.
	if ctx.Err() != nil {
		return canceled(j)
	}
	return e.execute(ctx, j)
}

func canceled(j jobs.Job) jobs.Result {
	return jobs.Result{
		JobID:    j.ID,
		Sample:   j.Sample.ID,
		Tool:     j.Tool,
		Status:   jobs.StatusSkipped,
		ExitCode: -1,
		Output:   j.Output,
		Reason:   jobs.ReasonCanceled,
		LogPath:  j.LogPath,
	}
}

func (e *Executor) emit(r jobs.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Logger.Printf("job=%s status=%s exit=%d attempts=%d", r.JobID, r.Status, r.ExitCode, r.Attempts)
	if e.opts.OnResult != nil {
		e.opts.OnResult(r)
	}
}

func (e *Executor) execute(ctx context.Context, j jobs.Job) jobs.Result {
	res := jobs.Result{
		JobID:     j.ID,
		Sample:    j.Sample.ID,
		Tool:      j.Tool,
		Output:    j.Output,
		LogPath:   j.LogPath,
		StartedAt: e.opts.Now().UTC(),
	}
	fail := func(code int, diag string) jobs.Result {
		res.Status = jobs.StatusFailed
		res.ExitCode = code
		res.Diagnostic = diag
		res.FinishedAt = e.opts.Now().UTC()
		return res
	}

	inv, err := j.Invocation(e.opts.Shell)
	if err != nil {
		return fail(-1, err.Error())
	}
	res.Command = inv.Command

	if err := prepare(j); err != nil {
		return fail(-1, err.Error())
	}
	logFile, err := os.Create(j.LogPath)
	if err != nil {
		return fail(-1, fmt.Sprintf("open log: %v", err))
	}
	defer logFile.Close()

	e.opts.Logger.Printf("job=%s start command=%q", j.ID, inv.Command)

	retries := j.Spec.Retries
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.RetryInitialInterval
	b.MaxElapsedTime = 0
	b.Reset()

	var (
		code int
		diag string
	)
	for {
		res.Attempts++
		fmt.Fprintf(logFile, "$ %s\n", inv.Command)
		tail := newTailBuffer(diagnosticBytes)
		code, err = e.opts.Runner.Run(ctx, inv, logFile, io.MultiWriter(logFile, tail))
		diag = tail.String()
		if err != nil {
			if diag != "" {
				diag += "\n"
			}
			diag += err.Error()
		}
		if err == nil && code == 0 {
			break
		}
		if errors.Is(err, ErrTerminated) || ctx.Err() != nil {
			res.Reason = jobs.ReasonCanceled
			return fail(code, diag)
		}
		if res.Attempts > retries {
			return fail(code, diag)
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fail(code, diag)
		}
		e.opts.Logger.Printf("job=%s exit=%d retry in %s", j.ID, code, wait)
		if !sleep(ctx, wait) {
			res.Reason = jobs.ReasonCanceled
			return fail(code, diag)
		}
	}

	if err := adoptOutput(j); err != nil {
		return fail(0, err.Error())
	}
	sum, size, err := outputs.SHA256File(j.Output)
	if err != nil {
		return fail(0, err.Error())
	}
	res.Status = jobs.StatusSucceeded
	res.Diagnostic = diag
	res.SHA256 = sum
	res.SizeBytes = size
	res.FinishedAt = e.opts.Now().UTC()
	return res
}

// prepare creates the job's directories and drops a stale output, and any
// stale file the output regex would adopt, so a rerun is judged only on what
// it writes.
func prepare(j jobs.Job) error {
	if err := os.MkdirAll(j.WorkDir, 0o755); err != nil {
		return err
	}
	if err := outputs.EnsureParent(j.Output); err != nil {
		return err
	}
	if err := outputs.EnsureParent(j.LogPath); err != nil {
		return err
	}
	if err := os.Remove(j.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if j.Spec == nil || j.Spec.OutputRegex == nil {
		return nil
	}
	return filepath.WalkDir(j.WorkDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && j.Spec.OutputRegex.MatchString(d.Name()) {
			return os.Remove(path)
		}
		return nil
	})
}

// adoptOutput makes sure j.Output exists once the tool exits cleanly. Tools
// that pick their own file names declare an output regex; the lexically first
// matching file under the work directory is moved into place.
func adoptOutput(j jobs.Job) error {
	if _, err := os.Stat(j.Output); err == nil {
		return nil
	}
	if j.Spec.OutputRegex == nil {
		return fmt.Errorf("output not written: %s", j.Output)
	}

	var matches []string
	err := filepath.WalkDir(j.WorkDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && j.Spec.OutputRegex.MatchString(d.Name()) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", j.WorkDir, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("output not written: no file under %s matches %q", j.WorkDir, j.Spec.OutputRegex)
	}
	sort.Strings(matches)
	return outputs.MovePath(matches[0], j.Output)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
