package jobs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virome-runner/config"
	"virome-runner/paths"
)

func resolvedAt(t *testing.T) (*config.Manifest, paths.Resolved) {
	t.Helper()
	dir := t.TempDir()
	m := &config.Manifest{
		Path:       filepath.Join(dir, "config.yaml"),
		Dir:        dir,
		Dirs:       map[string]string{config.InDirKey: "data", config.OutDirKey: "out", "cov_dir": "coverage"},
		OutputDirs: []string{config.OutDirKey},
	}
	r, err := paths.Absolute(m, "")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(r.InDir(), 0o755))
	return m, r
}

func TestSamplesPrecedence(t *testing.T) {
	m, r := resolvedAt(t)
	m.Samples = []string{"m2", "m1"}

	got, err := Samples(m, r, []string{"c2, c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids(got))

	got, err = Samples(m, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(got))
}

func TestSamplesDiscovery(t *testing.T) {
	m, r := resolvedAt(t)
	for _, name := range []string{"b.fasta", "a.fna", "notes.txt", ".hidden.fa"} {
		require.NoError(t, os.WriteFile(filepath.Join(r.InDir(), name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(r.InDir(), "c"), 0o755))

	got, err := Samples(m, r, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
	assert.Equal(t, filepath.Join(r.InDir(), "a.fna"), got[0].Contigs)
	assert.Equal(t, filepath.Join(r.InDir(), "b.fasta"), got[1].Contigs)
}

func TestSamplesTemplates(t *testing.T) {
	m, r := resolvedAt(t)
	m.Samples = []string{"s1"}
	m.Inputs = config.Inputs{
		Contigs:  "{dirs.in_dir}/{sample}/filtered.fasta",
		Coverage: "{dirs.cov_dir}/{sample}_coverage.tsv",
	}

	got, err := Samples(m, r, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(r.InDir(), "s1", "filtered.fasta"), got[0].Contigs)
	assert.Equal(t, filepath.Join(r.Base, "coverage", "s1_coverage.tsv"), got[0].Coverage)
}

func TestSamplesNone(t *testing.T) {
	m, r := resolvedAt(t)
	_, err := Samples(m, r, nil)
	assert.ErrorIs(t, err, config.ErrMissingKey)

	m.Inputs.Contigs = "{broken"
	m.Samples = []string{"s1"}
	_, err = Samples(m, r, nil)
	assert.ErrorIs(t, err, config.ErrInvalidType)
}

func ids(samples []Sample) []string {
	out := make([]string, 0, len(samples))
	for _, s := range samples {
		out = append(out, s.ID)
	}
	return out
}
