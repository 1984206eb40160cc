package timeline

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"virome-runner/jobs"
)

const File = "timeline.jsonl"

type Event struct {
	Time     string            `json:"time"`
	Type     string            `json:"type"`
	Job      string            `json:"job,omitempty"`
	Sample   string            `json:"sample,omitempty"`
	Tool     string            `json:"tool,omitempty"`
	Status   string            `json:"status,omitempty"`
	ExitCode *int              `json:"exit_code,omitempty"`
	SHA256   string            `json:"sha256,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Options struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// WriteJSONL writes one event per job between run_started and run_finished,
// ordered by start time. It returns the file path relative to outputDir.
func WriteJSONL(ctx context.Context, outputDir string, results []jobs.Result, opts Options) (string, error) {
	rel := File
	path := filepath.Join(outputDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	started := opts.StartedAt
	if started.IsZero() {
		started = time.Now().UTC()
	}
	finished := opts.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	ordered := append([]jobs.Result(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].StartedAt.Before(ordered[j].StartedAt)
		}
		return ordered[i].JobID < ordered[j].JobID
	})

	_ = enc.Encode(Event{
		Time:     started.UTC().Format(time.RFC3339Nano),
		Type:     "run_started",
		Metadata: map[string]string{"run_id": opts.RunID},
	})

	counts := map[jobs.Status]int{}
	for _, r := range ordered {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		counts[r.Status]++

		at := r.FinishedAt
		if at.IsZero() {
			at = started
		}
		code := r.ExitCode
		ev := Event{
			Time:     at.UTC().Format(time.RFC3339Nano),
			Type:     "job_finished",
			Job:      r.JobID,
			Sample:   r.Sample,
			Tool:     r.Tool.String(),
			Status:   string(r.Status),
			ExitCode: &code,
			SHA256:   r.SHA256,
		}
		meta := map[string]string{}
		if r.Reason != "" {
			meta["reason"] = r.Reason
		}
		if r.Attempts > 1 {
			meta["attempts"] = strconv.Itoa(r.Attempts)
		}
		if d := r.Duration(); d > 0 {
			meta["duration"] = d.String()
		}
		if len(meta) > 0 {
			ev.Metadata = meta
		}
		_ = enc.Encode(ev)
	}

	_ = enc.Encode(Event{
		Time: finished.UTC().Format(time.RFC3339Nano),
		Type: "run_finished",
		Metadata: map[string]string{
			"run_id":    opts.RunID,
			"jobs":      strconv.Itoa(len(results)),
			"succeeded": strconv.Itoa(counts[jobs.StatusSucceeded]),
			"failed":    strconv.Itoa(counts[jobs.StatusFailed]),
			"skipped":   strconv.Itoa(counts[jobs.StatusSkipped]),
		},
	})

	if err := w.Flush(); err != nil {
		return "", err
	}
	return rel, nil
}
