package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"virome-runner/jobs"
	"virome-runner/outputs"
)

const DefaultFile = "results.json"

// StageStatus records the outcome of one aggregation stage.
type StageStatus struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Manifest is the per-run record of job results, read back by --resume.
type Manifest struct {
	RunID     string            `json:"run_id"`
	CreatedAt string            `json:"created_at"`
	Config    string            `json:"config"`
	Results   []jobs.Result     `json:"results"`
	Stages    []StageStatus     `json:"stages,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Path returns file under outDir, or file itself when absolute.
func Path(outDir, file string) string {
	if file == "" {
		file = DefaultFile
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(outDir, file)
}

// Write stores m at path atomically. Results are sorted by job ID.
func Write(path string, m Manifest) error {
	sort.SliceStable(m.Results, func(i, j int) bool { return m.Results[i].JobID < m.Results[j].JobID })
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return outputs.WriteFileAtomic(path, append(b, '\n'), 0o644)
}

// Read loads the manifest at path. A missing file yields an empty manifest.
func Read(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, fmt.Errorf("results manifest %s: %w", path, err)
	}
	return m, nil
}

// Index keys the results by job ID.
func (m Manifest) Index() map[string]jobs.Result {
	out := make(map[string]jobs.Result, len(m.Results))
	for _, r := range m.Results {
		out[r.JobID] = r
	}
	return out
}

// Counts tallies results per status.
func (m Manifest) Counts() map[jobs.Status]int {
	out := map[jobs.Status]int{}
	for _, r := range m.Results {
		out[r.Status]++
	}
	return out
}
