package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Invocable produces the command description the executor runs, whatever the
// tool's native interface looks like.
type Invocable interface {
	Invocation(in Input) (Invocation, error)
}

// Input carries the per-job values a command template may reference.
type Input struct {
	Sample   string
	Contigs  string
	Coverage string
	Output   string
	WorkDir  string
	Env      string
	DB       string
	Dirs     map[string]string
	Shell    string
}

// Invocation is a fully expanded command.
type Invocation struct {
	Args    []string
	Env     []string
	Dir     string
	Command string
}

// Spec is the resolved description of one enabled tool. Specs are built once by
// Register and never modified.
type Spec struct {
	ID          ID
	Command     string
	Env         string
	Budget      int
	JobThreads  int
	DB          string
	OutputRegex *regexp.Regexp
	Requires    []string
	Retries     int

	scripts   map[string]string
	resources map[string]string
}

var _ Invocable = (*Spec)(nil)

func (s *Spec) Invocation(in Input) (Invocation, error) {
	vars := map[string]string{
		"input":    in.Contigs,
		"contigs":  in.Contigs,
		"coverage": in.Coverage,
		"output":   in.Output,
		"work_dir": in.WorkDir,
		"sample":   in.Sample,
		"threads":  strconv.Itoa(s.JobThreads),
		"db":       in.DB,
		"env":      in.Env,
		"tool":     s.ID.String(),
	}
	Prefixed(vars, "dirs", in.Dirs)
	Prefixed(vars, "scripts", s.scripts)
	Prefixed(vars, "resources", s.resources)

	command, err := Expand(s.Command, vars)
	if err != nil {
		return Invocation{}, &Error{Kind: ErrBadTemplate, Name: s.ID.String(), Err: err}
	}

	shell := in.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	env := []string{
		"VIROME_TOOL=" + s.ID.String(),
		"VIROME_SAMPLE=" + in.Sample,
		"VIROME_THREADS=" + strconv.Itoa(s.JobThreads),
	}
	if in.Env != "" {
		env = append(env,
			fmt.Sprintf("PATH=%s%c%s", filepath.Join(in.Env, "bin"), os.PathListSeparator, os.Getenv("PATH")),
			"CONDA_PREFIX="+in.Env,
		)
	}

	return Invocation{
		Args:    []string{shell, "-c", command},
		Env:     env,
		Dir:     in.WorkDir,
		Command: command,
	}, nil
}

func (s *Spec) Requirement(name string) bool {
	for _, r := range s.Requires {
		if r == name {
			return true
		}
	}
	return false
}
