package pipeline

import (
	"io"

	"gopkg.in/yaml.v2"

	"virome-runner/jobs"
)

type planDoc struct {
	Config  string     `yaml:"config"`
	OutDir  string     `yaml:"out_dir"`
	LogDir  string     `yaml:"log_dir"`
	Samples []string   `yaml:"samples"`
	Tools   []string   `yaml:"tools"`
	Jobs    []planJob  `yaml:"jobs"`
	Skipped []planSkip `yaml:"skipped,omitempty"`
}

type planSkip struct {
	Tool   string `yaml:"tool"`
	Sample string `yaml:"sample"`
	Reason string `yaml:"reason"`
}

type planJob struct {
	ID      string `yaml:"id"`
	Tool    string `yaml:"tool"`
	Sample  string `yaml:"sample"`
	Threads int    `yaml:"threads"`
	Command string `yaml:"command"`
	WorkDir string `yaml:"work_dir"`
	Output  string `yaml:"output"`
	Log     string `yaml:"log"`
	Resumed bool   `yaml:"resumed,omitempty"`
}

// WritePlan renders the jobs a run would execute as YAML. Jobs found in
// reused are marked resumed.
func WritePlan(w io.Writer, setup Setup, shell string, reused []jobs.Result) error {
	if w == nil {
		w = io.Discard
	}
	done := map[string]bool{}
	for _, r := range reused {
		done[r.JobID] = true
	}

	doc := planDoc{
		Config:  setup.Manifest.Path,
		OutDir:  setup.Paths.OutDir(),
		LogDir:  setup.Paths.LogDir(),
	}
	for _, sk := range setup.Plan.Skipped {
		doc.Skipped = append(doc.Skipped, planSkip{Tool: sk.Tool.String(), Sample: sk.Sample, Reason: sk.Reason})
	}
	for _, s := range setup.Samples {
		doc.Samples = append(doc.Samples, s.ID)
	}
	for _, id := range setup.Registry.IDs() {
		doc.Tools = append(doc.Tools, id.String())
	}
	for _, j := range setup.Plan.Jobs {
		inv, err := j.Invocation(shell)
		if err != nil {
			return err
		}
		doc.Jobs = append(doc.Jobs, planJob{
			ID:      j.ID,
			Tool:    j.Tool.String(),
			Sample:  j.Sample.ID,
			Threads: j.Spec.JobThreads,
			Command: inv.Command,
			WorkDir: j.WorkDir,
			Output:  j.Output,
			Log:     j.LogPath,
			Resumed: done[j.ID],
		})
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
