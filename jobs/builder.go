package jobs

import (
	"fmt"
	"os"
	"path/filepath"

	"virome-runner/config"
	"virome-runner/paths"
	"virome-runner/tools"
)

// Build emits one job per (tool, sample) in tool enumeration order, then
// sample order. A pair whose contigs or declared prerequisites are missing on
// disk becomes a Skip instead. Build only reads the filesystem.
func Build(samples []Sample, reg *tools.Registry, r paths.Resolved) Plan {
	var plan Plan
	for _, spec := range reg.Specs() {
		for _, s := range samples {
			if reason := missingInput(spec, s); reason != "" {
				plan.Skipped = append(plan.Skipped, Skip{Sample: s.ID, Tool: spec.ID, Reason: reason})
				continue
			}
			plan.Jobs = append(plan.Jobs, Job{
				ID:       jobID(spec.ID, s.ID),
				Sample:   s,
				Tool:     spec.ID,
				Spec:     spec,
				Input:    s.Contigs,
				Coverage: s.Coverage,
				Env:      r.Abs(spec.Env),
				DB:       r.Abs(spec.DB),
				Output:   OutputPath(r.OutDir(), spec.ID, s.ID),
				WorkDir:  filepath.Join(r.OutDir(), spec.ID.String(), s.ID),
				LogPath:  filepath.Join(r.LogDir(), spec.ID.String(), s.ID+".log"),
				Dirs:     r.Dirs,
			})
		}
	}
	return plan
}

func missingInput(spec *tools.Spec, s Sample) string {
	if !regularFile(s.Contigs) {
		return fmt.Sprintf("contigs not found: %s", s.Contigs)
	}
	if spec.Requirement(config.RequireCoverage) && !regularFile(s.Coverage) {
		return fmt.Sprintf("coverage not found: %s", s.Coverage)
	}
	return ""
}

func regularFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
