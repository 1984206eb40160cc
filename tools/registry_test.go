package tools

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virome-runner/config"
)

func manifestWith(names ...string) *config.Manifest {
	m := &config.Manifest{
		Tools:      names,
		ToolParams: map[string]config.ToolParams{},
		Scripts:    map[string]string{"bin": "python3 bin.py"},
		Resources:  map[string]int{"filter_threads": 8},
	}
	for _, n := range names {
		m.ToolParams[n] = config.ToolParams{Command: "run " + n + " {input} {output}", Env: "envs/" + n, Threads: 4, JobThreads: 1}
	}
	return m
}

func TestParse(t *testing.T) {
	for _, id := range Known() {
		parsed, err := Parse(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)

		parsed, err = Parse(id.DisplayName())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}

	id, err := Parse("  DeepVirFinder ")
	require.NoError(t, err)
	assert.Equal(t, DeepVirFinder, id)

	_, err = Parse("blastn")
	assert.ErrorIs(t, err, ErrUnknownTool)

	assert.False(t, ID(0).Valid())
	assert.Len(t, Known(), 9)
}

func TestIDText(t *testing.T) {
	b, err := json.Marshal(map[string]ID{"tool": VirSorter2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"virsorter2"}`, string(b))

	var out map[string]ID
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, VirSorter2, out["tool"])

	_, err = json.Marshal(ID(42))
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	t.Run("should order specs by enumeration", func(t *testing.T) {
		r, err := Register(manifestWith("virsorter2", "seeker", "dvf"))
		require.NoError(t, err)

		assert.Equal(t, []ID{DeepVirFinder, Seeker, VirSorter2}, r.IDs())
		spec, ok := r.Get(Seeker)
		require.True(t, ok)
		assert.Equal(t, 4, spec.Budget)
		assert.Equal(t, "envs/seeker", spec.Env)
	})

	t.Run("should collapse aliases", func(t *testing.T) {
		r, err := Register(manifestWith("dvf", "deepvirfinder"))
		require.NoError(t, err)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("should compile output regexes", func(t *testing.T) {
		m := manifestWith("dvf")
		p := m.ToolParams["dvf"]
		p.OutputRegex = `_dvfpred\.txt$`
		m.ToolParams["dvf"] = p

		r, err := Register(m)
		require.NoError(t, err)
		spec, _ := r.Get(DeepVirFinder)
		require.NotNil(t, spec.OutputRegex)
		assert.True(t, spec.OutputRegex.MatchString("s1.fasta_gt1bp_dvfpred.txt"))
	})

	t.Run("should reject unparseable templates", func(t *testing.T) {
		m := manifestWith("seeker")
		m.ToolParams["seeker"] = config.ToolParams{Command: "run {input", Env: "e", Threads: 1}
		_, err := Register(m)
		assert.ErrorIs(t, err, ErrBadTemplate)
	})

	t.Run("should fail for any identifier outside the enumeration", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 50; i++ {
			names := []string{}
			for _, id := range Known() {
				if rng.Intn(2) == 0 {
					names = append(names, id.String())
				}
			}
			unknown := fmt.Sprintf("tool%d", rng.Intn(1000))
			pos := rng.Intn(len(names) + 1)
			names = append(names[:pos], append([]string{unknown}, names[pos:]...)...)

			_, err := Register(manifestWith(names...))
			require.ErrorIs(t, err, ErrUnknownTool, "names=%v", names)

			var terr *Error
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, unknown, terr.Name)
		}
	})
}

func TestSubset(t *testing.T) {
	r, err := Register(manifestWith("dvf", "seeker", "vibrant"))
	require.NoError(t, err)

	sub, err := r.Subset([]string{"vibrant", "dvf"})
	require.NoError(t, err)
	assert.Equal(t, []ID{DeepVirFinder, Vibrant}, sub.IDs())

	same, err := r.Subset(nil)
	require.NoError(t, err)
	assert.Equal(t, r.IDs(), same.IDs())

	_, err = r.Subset([]string{"marvel"})
	assert.ErrorIs(t, err, ErrNotEnabled)

	_, err = r.Subset([]string{"nope"})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestLoadRejectsUnknownNameFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dirs: {in_dir: data, out_dir: out}
tools: [seeker, virsorer2]
seeker_command: "seeker {input}"
seeker_env: envs/seeker
seeker_threads: 2
`), 0o644))

	_, err := config.Load(path, CheckName)
	require.ErrorIs(t, err, ErrUnknownTool)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "virsorer2", terr.Name)

	_, err = config.Load(path)
	assert.ErrorIs(t, err, config.ErrMissingKey)
}
