package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virome-runner/config"
)

func manifest(dir string, dirs map[string]string, outputs ...string) *config.Manifest {
	return &config.Manifest{
		Dir:        dir,
		Dirs:       dirs,
		OutputDirs: append([]string{config.OutDirKey}, outputs...),
	}
}

func TestResolve(t *testing.T) {
	t.Run("should anchor relative directories and create outputs", func(t *testing.T) {
		base := t.TempDir()
		m := manifest(base, map[string]string{
			config.InDirKey:  "data/contigs",
			config.OutDirKey: "out",
			"bin_dir":        "out/bins",
			"db_dir":         "/opt/db",
		}, "bin_dir")

		r, err := Resolve(m, "")
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(base, "data/contigs"), r.InDir())
		assert.Equal(t, filepath.Join(base, "out"), r.OutDir())
		assert.Equal(t, filepath.Join(base, "out", "logs"), r.LogDir())
		assert.Equal(t, "/opt/db", r.Dirs["db_dir"])

		for _, dir := range []string{r.OutDir(), r.LogDir(), r.Dirs["bin_dir"]} {
			info, err := os.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir())
		}
		_, err = os.Stat(r.InDir())
		assert.True(t, os.IsNotExist(err), "input directories are not created")
	})

	t.Run("should be idempotent", func(t *testing.T) {
		base := t.TempDir()
		m := manifest(base, map[string]string{config.InDirKey: "in", config.OutDirKey: "out"})

		first, err := Resolve(m, "")
		require.NoError(t, err)
		second, err := Resolve(m, "")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("should prefer an explicit base directory", func(t *testing.T) {
		base := t.TempDir()
		m := manifest("/nonexistent", map[string]string{config.InDirKey: "in", config.OutDirKey: "out"})

		r, err := Resolve(m, base)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "out"), r.OutDir())
	})

	t.Run("should report unwritable output directories", func(t *testing.T) {
		base := t.TempDir()
		blocker := filepath.Join(base, "out")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		m := manifest(base, map[string]string{config.InDirKey: "in", config.OutDirKey: "out/run"})
		_, err := Resolve(m, "")
		require.ErrorIs(t, err, ErrUnwritable)

		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Contains(t, perr.Path, filepath.Join(base, "out/run"))
	})
}

func TestAbsolute(t *testing.T) {
	base := t.TempDir()
	m := manifest(base, map[string]string{config.InDirKey: "in", config.OutDirKey: "out"})

	r, err := Absolute(m, "")
	require.NoError(t, err)

	_, err = os.Stat(r.OutDir())
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, []string{config.LogDirKey, config.OutDirKey}, r.Outputs)
}
