package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"

	"virome-runner/jobs"
	"virome-runner/outputs"
)

const SummaryFile = "summary.txt"

// WriteSummary writes the human-readable run report: one line per job, the
// aggregation stages, then the command line and diagnostics of every failure.
func WriteSummary(path string, res Result) error {
	return outputs.WriteFileAtomic(path, []byte(Summary(res)), 0o644)
}

func Summary(res Result) string {
	var b bytes.Buffer
	counts := res.Counts()
	fmt.Fprintf(&b, "run %s\n", res.RunID)
	fmt.Fprintf(&b, "jobs=%d succeeded=%d failed=%d skipped=%d\n\n",
		len(res.Results), counts[jobs.StatusSucceeded], counts[jobs.StatusFailed], counts[jobs.StatusSkipped])

	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tSTATUS\tEXIT\tATTEMPTS\tNOTE")
	for _, r := range res.Results {
		note := r.Reason
		if r.Status == jobs.StatusSucceeded && !r.Resumed {
			note = r.Output
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.JobID, r.Status, r.ExitCode, r.Attempts, note)
	}
	_ = tw.Flush()

	b.WriteString("\nSTAGES\n")
	for _, s := range res.Stages {
		fmt.Fprintf(&b, "  %-9s %s\n", s.Stage, s.Status)
		if s.Error != "" {
			fmt.Fprintf(&b, "            %s\n", s.Error)
		}
	}
	if res.TablePath != "" {
		fmt.Fprintf(&b, "\ntable: %s (%d rows)\n", res.TablePath, len(res.Table.Rows))
	}

	var failed []jobs.Result
	for _, r := range res.Results {
		if r.Status == jobs.StatusFailed {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nFAILURES\n")
		for _, r := range failed {
			fmt.Fprintf(&b, "\n== %s (exit %d)\n", r.JobID, r.ExitCode)
			fmt.Fprintf(&b, "command: %s\n", r.Command)
			if r.LogPath != "" {
				fmt.Fprintf(&b, "log: %s\n", r.LogPath)
			}
			if d := strings.TrimRight(r.Diagnostic, "\n"); d != "" {
				b.WriteString(d + "\n")
			}
		}
	}
	return b.String()
}
