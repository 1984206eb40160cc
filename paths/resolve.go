package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"virome-runner/config"
)

var ErrUnwritable = errors.New("directory not writable")

type Error struct {
	Kind error
	Name string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Kind, e.Name, e.Path, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Resolved holds the manifest directories as absolute paths.
type Resolved struct {
	Base    string
	Dirs    map[string]string
	Outputs []string
}

func (r Resolved) Dir(name string) (string, bool) {
	p, ok := r.Dirs[name]
	return p, ok
}

func (r Resolved) InDir() string  { return r.Dirs[config.InDirKey] }
func (r Resolved) OutDir() string { return r.Dirs[config.OutDirKey] }
func (r Resolved) LogDir() string { return r.Dirs[config.LogDirKey] }

// Abs anchors p at the base directory unless it is already absolute. An empty
// p stays empty.
func (r Resolved) Abs(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(r.Base, p)
}

// Absolute makes every manifest directory absolute without touching the disk.
// An empty baseDir means the directory holding the manifest.
func Absolute(m *config.Manifest, baseDir string) (Resolved, error) {
	if baseDir == "" {
		baseDir = m.Dir
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return Resolved{}, err
	}

	r := Resolved{Base: base, Dirs: make(map[string]string, len(m.Dirs)+1)}
	for name, dir := range m.Dirs {
		r.Dirs[name] = r.Abs(dir)
	}
	if _, ok := r.Dirs[config.LogDirKey]; !ok {
		r.Dirs[config.LogDirKey] = filepath.Join(r.OutDir(), "logs")
	}

	seen := map[string]bool{}
	for _, name := range append([]string{config.LogDirKey}, m.OutputDirs...) {
		if !seen[name] {
			seen[name] = true
			r.Outputs = append(r.Outputs, name)
		}
	}
	sort.Strings(r.Outputs)
	return r, nil
}

// Resolve is Absolute followed by creation of every output directory.
// Creation is idempotent.
func Resolve(m *config.Manifest, baseDir string) (Resolved, error) {
	r, err := Absolute(m, baseDir)
	if err != nil {
		return Resolved{}, err
	}
	for _, name := range r.Outputs {
		dir := r.Dirs[name]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Resolved{}, &Error{Kind: ErrUnwritable, Name: name, Path: dir, Err: err}
		}
	}
	return r, nil
}
