package jobs

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"virome-runner/tools"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

const (
	ReasonCanceled = "canceled"
	ReasonResumed  = "resumed"
)

// Sample is one filtered contig assembly and its per-sample inputs.
type Sample struct {
	ID       string `yaml:"id" json:"id"`
	Contigs  string `yaml:"contigs" json:"contigs"`
	Coverage string `yaml:"coverage,omitempty" json:"coverage,omitempty"`
}

// Job is one (tool, sample) unit of work. Each job owns its Output, WorkDir and
// LogPath; no two jobs of a plan share them.
type Job struct {
	ID       string
	Sample   Sample
	Tool     tools.ID
	Spec     *tools.Spec
	Input    string
	Coverage string
	Env      string
	DB       string
	Output   string
	WorkDir  string
	LogPath  string
	Dirs     map[string]string
}

func jobID(tool tools.ID, sample string) string {
	return tool.String() + "/" + sample
}

// OutputPath is <outDir>/<tool>/<sample>.tsv.
func OutputPath(outDir string, tool tools.ID, sample string) string {
	return filepath.Join(outDir, tool.String(), sample+".tsv")
}

// Invocation expands the job's command for shell.
func (j Job) Invocation(shell string) (tools.Invocation, error) {
	return j.Spec.Invocation(tools.Input{
		Sample:   j.Sample.ID,
		Contigs:  j.Input,
		Coverage: j.Coverage,
		Output:   j.Output,
		WorkDir:  j.WorkDir,
		Env:      j.Env,
		DB:       j.DB,
		Dirs:     j.Dirs,
		Shell:    shell,
	})
}

// Result is the terminal outcome of a job.
type Result struct {
	JobID      string    `json:"job_id"`
	Sample     string    `json:"sample"`
	Tool       tools.ID  `json:"tool"`
	Status     Status    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output,omitempty"`
	Command    string    `json:"command,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	LogPath    string    `json:"log_path,omitempty"`
	Resumed    bool      `json:"resumed,omitempty"`
}

func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Skip records a (tool, sample) pair for which no job was built.
type Skip struct {
	Sample string   `yaml:"sample"`
	Tool   tools.ID `yaml:"tool"`
	Reason string   `yaml:"reason"`
}

func (s Skip) Result() Result {
	return Result{
		JobID:    jobID(s.Tool, s.Sample),
		Sample:   s.Sample,
		Tool:     s.Tool,
		Status:   StatusSkipped,
		ExitCode: -1,
		Reason:   s.Reason,
	}
}

// Plan is the output of Build.
type Plan struct {
	Jobs    []Job
	Skipped []Skip
}

// Expected counts the terminal results each sample will produce, jobs and
// skips together.
func (p Plan) Expected() map[string]int {
	out := map[string]int{}
	for _, j := range p.Jobs {
		out[j.Sample.ID]++
	}
	for _, s := range p.Skipped {
		out[s.Sample]++
	}
	return out
}

// SkipResults converts every skip to its result.
func (p Plan) SkipResults() []Result {
	out := make([]Result, 0, len(p.Skipped))
	for _, s := range p.Skipped {
		out = append(out, s.Result())
	}
	return out
}

var ErrJobFailed = errors.New("job failed")

// Error describes a failed invocation.
type Error struct {
	JobID    string
	Command  string
	ExitCode int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: exit %d: %v", e.JobID, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s: exit %d", e.JobID, e.ExitCode)
}

func (e *Error) Unwrap() []error { return []error{ErrJobFailed, e.Err} }
