package executor

import (
	"os"

	"virome-runner/jobs"
)

// Pending splits js for a resumed run. A job is run again when prior has no
// record of it, when its recorded status is not succeeded, or when its output
// file is gone. Every other job is returned as its prior result, marked resumed.
func Pending(js []jobs.Job, prior map[string]jobs.Result) ([]jobs.Job, []jobs.Result) {
	var (
		pending []jobs.Job
		reused  []jobs.Result
	)
	for _, j := range js {
		r, ok := prior[j.ID]
		if !ok || r.Status != jobs.StatusSucceeded || !exists(j.Output) {
			pending = append(pending, j)
			continue
		}
		r.Resumed = true
		r.Reason = jobs.ReasonResumed
		r.Output = j.Output
		reused = append(reused, r)
	}
	return pending, reused
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
