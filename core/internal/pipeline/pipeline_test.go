//go:build !windows

package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"virome-runner/config"
	"virome-runner/core/internal/results"
	"virome-runner/jobs"
)

// The stand-in seeker copies a canned prediction table for its sample, so a
// sample without one exits 1.
const seekerConfig = `
dirs:
  in_dir: data
  out_dir: out
tools: [seeker]
tool_params:
  seeker:
    command: "cp {dirs.in_dir}/{sample}.seeker.tsv {output}"
    env: envs/seeker
    threads: 2
samples: [s1, s2]
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), seekerConfig)
	writeFile(t, filepath.Join(dir, "data", "s1.fasta"), ">c1\nACGTACGT\n>c2\nACG\n")
	writeFile(t, filepath.Join(dir, "data", "s2.fasta"), ">c9\nACGTAC\n")
	writeFile(t, filepath.Join(dir, "data", "s1.seeker.tsv"), "name\tprediction\tscore\nc1\tPhage\t0.9\nc2\tBacteria\t0.2\n")
	return dir
}

func options(dir string) Options {
	return Options{
		ConfigPath: filepath.Join(dir, "config.yaml"),
		BaseDir:    dir,
		Settings:   config.Settings{Shell: "/bin/sh"},
		RunID:      "run-1",
	}
}

func TestRunFailedSampleStillAggregatesOthers(t *testing.T) {
	dir := project(t)

	res, err := Run(context.Background(), options(dir))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobsFailed)
	assert.NoError(t, res.AggregateErr)

	require.Len(t, res.Results, 2)
	assert.Equal(t, jobs.StatusSucceeded, res.Results[0].Status)
	assert.Equal(t, jobs.StatusFailed, res.Results[1].Status)
	assert.Equal(t, 1, res.Results[1].ExitCode)
	assert.NotEmpty(t, res.Results[1].Diagnostic)
	assert.NotEmpty(t, res.Results[0].SHA256)

	require.Len(t, res.Table.Rows, 2)
	assert.Equal(t, "s1", res.Table.Rows[0].Sample)
	assert.Equal(t, 8, res.Table.Rows[0].Length)

	out := filepath.Join(dir, "out")
	for _, name := range []string{"classification.csv", results.DefaultFile, SummaryFile, "timeline.jsonl"} {
		assert.FileExists(t, filepath.Join(out, name))
	}
	assert.FileExists(t, filepath.Join(out, "logs", "seeker", "s2.log"))

	m, err := results.Read(res.ResultsPath)
	require.NoError(t, err)
	assert.Equal(t, "run-1", m.RunID)
	assert.Len(t, m.Results, 2)
	assert.NotEmpty(t, m.Metadata["goos"])
	for _, s := range m.Stages {
		assert.Equal(t, "succeeded", s.Status, s.Stage)
	}

	summary, err := os.ReadFile(res.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "FAILURES")
	assert.Contains(t, string(summary), "seeker/s2")
}

func TestRunResumeReusesSucceededJobs(t *testing.T) {
	dir := project(t)
	_, err := Run(context.Background(), options(dir))
	require.ErrorIs(t, err, ErrJobsFailed)

	writeFile(t, filepath.Join(dir, "data", "s2.seeker.tsv"), "name\tprediction\tscore\nc9\tPhage\t0.8\n")
	opts := options(dir)
	opts.Resume = true
	opts.RunID = "run-2"

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.True(t, res.Results[0].Resumed)
	assert.Equal(t, jobs.ReasonResumed, res.Results[0].Reason)
	assert.False(t, res.Results[1].Resumed)
	assert.Equal(t, jobs.StatusSucceeded, res.Results[1].Status)
	assert.Len(t, res.Table.Rows, 3)
}

func TestRunResumeAfterSubsetRun(t *testing.T) {
	dir := project(t)
	_, err := Run(context.Background(), options(dir))
	require.ErrorIs(t, err, ErrJobsFailed)

	writeFile(t, filepath.Join(dir, "data", "s2.seeker.tsv"), "name\tprediction\tscore\nc9\tPhage\t0.8\n")
	opts := options(dir)
	opts.Resume = true
	opts.Samples = []string{"s2"}
	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "seeker/s2", res.Results[0].JobID)

	m, err := results.Read(res.ResultsPath)
	require.NoError(t, err)
	require.Len(t, m.Results, 2)
	assert.Equal(t, "seeker/s1", m.Results[0].JobID)
	assert.Equal(t, jobs.StatusSucceeded, m.Results[0].Status)

	opts.Samples = nil
	res, err = Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	for _, r := range res.Results {
		assert.True(t, r.Resumed, r.JobID)
	}
	assert.Len(t, res.Table.Rows, 3)
}

func TestRunCorruptResultsFile(t *testing.T) {
	dir := project(t)
	writeFile(t, filepath.Join(dir, "out", results.DefaultFile), "{not json")

	opts := options(dir)
	opts.Resume = true
	res, err := Run(context.Background(), opts)
	assert.ErrorIs(t, err, config.ErrMalformed)
	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, res.Results)

	_, err = Run(context.Background(), options(dir))
	assert.ErrorIs(t, err, ErrJobsFailed)
	m, err := results.Read(filepath.Join(dir, "out", results.DefaultFile))
	require.NoError(t, err)
	assert.Len(t, m.Results, 2)
}

func TestRunDryRun(t *testing.T) {
	dir := project(t)
	opts := options(dir)
	opts.DryRun = true
	var plan bytes.Buffer
	opts.Plan = &plan

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "out"))

	var doc planDoc
	require.NoError(t, yaml.Unmarshal(plan.Bytes(), &doc))
	assert.Equal(t, []string{"s1", "s2"}, doc.Samples)
	assert.Equal(t, []string{"seeker"}, doc.Tools)
	require.Len(t, doc.Jobs, 2)
	assert.Equal(t, "seeker/s1", doc.Jobs[0].ID)
	assert.Equal(t, 1, doc.Jobs[0].Threads)
	assert.Equal(t, "cp "+filepath.Join(dir, "data", "s1.seeker.tsv")+" "+filepath.Join(dir, "out", "seeker", "s1.tsv"), doc.Jobs[0].Command)
}

func TestRunSkipsMissingContigs(t *testing.T) {
	dir := project(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "data", "s2.fasta")))

	res, err := Run(context.Background(), options(dir))
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, jobs.StatusSkipped, res.Results[1].Status)
	assert.Contains(t, res.Results[1].Reason, "contigs not found")
	assert.Equal(t, 1, res.Counts()[jobs.StatusSkipped])
}

func TestRunConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Run(context.Background(), options(dir))
	assert.ErrorIs(t, err, config.ErrNotFound)

	writeFile(t, filepath.Join(dir, "config.yaml"), "dirs: {in_dir: data}\ntools: [seeker]\n")
	_, err = Run(context.Background(), options(dir))
	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "dirs.out_dir", cerr.Key)
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestRunCanceledSkipsEverything(t *testing.T) {
	dir := project(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, options(dir))
	assert.ErrorIs(t, err, context.Canceled)
	for _, r := range res.Results {
		assert.Equal(t, jobs.StatusSkipped, r.Status)
		assert.Equal(t, jobs.ReasonCanceled, r.Reason)
	}
	assert.FileExists(t, res.ResultsPath)
}
