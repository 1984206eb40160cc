package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"virome-runner/analyzers/aggregate"
	"virome-runner/config"
	"virome-runner/core/internal/pipeline"
	"virome-runner/paths"
	"virome-runner/tools"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config", &config.Error{Kind: config.ErrMissingKey, Key: "tools"}, 2},
		{"wrapped config", fmt.Errorf("load: %w", &config.Error{Kind: config.ErrNotFound}), 2},
		{"paths", &paths.Error{Kind: paths.ErrUnwritable, Name: "out_dir"}, 2},
		{"tools", &tools.Error{Kind: tools.ErrUnknownTool, Name: "nope"}, 2},
		{"usage", &usageError{err: errors.New("unknown flag")}, 2},
		{"jobs", pipeline.ErrJobsFailed, 1},
		{"aggregate", errors.Join(pipeline.ErrJobsFailed, &aggregate.Error{Stage: aggregate.StageCombine, Err: errors.New("x")}), 1},
		{"other", errors.New("boom"), 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ExitCode(c.err))
		})
	}
}
