package jobs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"virome-runner/config"
	"virome-runner/paths"
	"virome-runner/tools"
)

const (
	DefaultContigs  = "{dirs.in_dir}/{sample}.fasta"
	DefaultCoverage = "{dirs.in_dir}/{sample}.coverage.tsv"
)

var fastaExts = []string{".fasta", ".fa", ".fna"}

// Samples lists the samples to run. ids wins over the manifest's samples list;
// with neither, samples are discovered in in_dir. Output is sorted by ID.
func Samples(m *config.Manifest, r paths.Resolved, ids []string) ([]Sample, error) {
	names := cleanIDs(ids)
	if len(names) == 0 {
		names = cleanIDs(m.Samples)
	}
	if len(names) == 0 {
		found, err := discover(r.InDir())
		if err != nil {
			return nil, &config.Error{Kind: config.ErrNotFound, Path: r.InDir(), Key: "samples", Err: err}
		}
		names = found
	}
	if len(names) == 0 {
		return nil, &config.Error{Kind: config.ErrMissingKey, Path: m.Path, Key: "samples"}
	}

	contigs := m.Inputs.Contigs
	if contigs == "" {
		contigs = DefaultContigs
	}
	coverage := m.Inputs.Coverage
	if coverage == "" {
		coverage = DefaultCoverage
	}
	for _, tmpl := range []string{contigs, coverage} {
		if err := tools.CheckTemplate(tmpl); err != nil {
			return nil, &config.Error{Kind: config.ErrInvalidType, Path: m.Path, Key: "inputs", Err: err}
		}
	}

	out := make([]Sample, 0, len(names))
	for _, id := range names {
		vars := map[string]string{"sample": id}
		tools.Prefixed(vars, "dirs", r.Dirs)
		c, err := tools.Expand(contigs, vars)
		if err != nil {
			return nil, &config.Error{Kind: config.ErrInvalidType, Path: m.Path, Key: "inputs.contigs", Err: err}
		}
		cov, err := tools.Expand(coverage, vars)
		if err != nil {
			return nil, &config.Error{Kind: config.ErrInvalidType, Path: m.Path, Key: "inputs.coverage", Err: err}
		}
		c = r.Abs(c)
		if m.Inputs.Contigs == "" {
			c = withFastaExt(c)
		}
		out = append(out, Sample{ID: id, Contigs: c, Coverage: r.Abs(cov)})
	}
	return out, nil
}

func cleanIDs(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, item := range in {
		for _, id := range strings.Split(item, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// discover names a sample after every fasta file or subdirectory of dir.
func discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !e.IsDir() {
			ext := filepath.Ext(name)
			if !isFasta(ext) {
				continue
			}
			name = strings.TrimSuffix(name, ext)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func isFasta(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range fastaExts {
		if e == ext {
			return true
		}
	}
	return false
}

// withFastaExt swaps the default .fasta extension for .fa or .fna when only
// one of those exists.
func withFastaExt(path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range fastaExts[1:] {
		if _, err := os.Stat(stem + ext); err == nil {
			return stem + ext
		}
	}
	return path
}
