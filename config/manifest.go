package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	InDirKey  = "in_dir"
	OutDirKey = "out_dir"
	LogDirKey = "log_dir"
)

// Requirement names a per-sample input a tool needs besides the contigs.
const RequireCoverage = "coverage"

// Manifest is the parsed pipeline manifest. It is read-only after Load.
type Manifest struct {
	Path       string
	Dir        string
	Dirs       map[string]string
	OutputDirs []string
	Scripts    map[string]string
	Resources  map[string]int
	Tools      []string
	ToolParams map[string]ToolParams
	Samples    []string
	Inputs     Inputs
	Aggregate  AggregateOptions
	MaxJobs    int
}

// ToolParams is the per-tool sub-record of an enabled tool.
type ToolParams struct {
	Command     string
	Env         string
	Threads     int
	JobThreads  int
	DB          string
	OutputRegex string
	Requires    []string
	Retries     int
}

// Inputs holds path templates for per-sample inputs.
type Inputs struct {
	Contigs  string `mapstructure:"contigs"`
	Coverage string `mapstructure:"coverage"`
}

type AggregateOptions struct {
	MinLength     int
	MinConfidence float64
}

type document struct {
	Dirs       map[string]string                 `mapstructure:"dirs"`
	OutputDirs []string                          `mapstructure:"output_dirs"`
	Scripts    map[string]string                 `mapstructure:"scripts"`
	Resources  map[string]interface{}            `mapstructure:"resources"`
	Tools      []string                          `mapstructure:"tools"`
	ToolParams map[string]map[string]interface{} `mapstructure:"tool_params"`
	Samples    []string                          `mapstructure:"samples"`
	Inputs     Inputs                            `mapstructure:"inputs"`
	Aggregate  map[string]interface{}            `mapstructure:"aggregate"`
	MaxJobs    interface{}                       `mapstructure:"max_jobs"`
}

type rawToolParams struct {
	Command     string      `mapstructure:"command"`
	Cmd         string      `mapstructure:"cmd"`
	Env         string      `mapstructure:"env"`
	Threads     interface{} `mapstructure:"threads"`
	Cores       interface{} `mapstructure:"cores"`
	JobThreads  interface{} `mapstructure:"job_threads"`
	DB          string      `mapstructure:"db"`
	OutputRegex string      `mapstructure:"output_regex"`
	Requires    []string    `mapstructure:"requires"`
	Retries     interface{} `mapstructure:"retries"`
}

var toolFields = []string{"command", "cmd", "env", "threads", "cores", "job_threads", "db", "output_regex", "requires", "retries"}

// NameCheck rejects an enabled tool identifier before its parameters are
// validated.
type NameCheck func(name string) error

// Load reads and validates the manifest at path. The format follows the file
// extension; files without a known extension are read as YAML. Every enabled
// tool name is passed to checks first, and their error is returned unchanged.
func Load(path string, checks ...NameCheck) (*Manifest, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Kind: ErrNotFound, Path: path, Err: err}
		}
		return nil, &Error{Kind: ErrMalformed, Path: path, Err: err}
	}

	v := viper.New()
	v.SetConfigFile(path)
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); !slices.Contains(viper.SupportedExts, ext) {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, &Error{Kind: ErrMalformed, Path: path, Err: err}
	}

	var doc document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, &Error{Kind: ErrMalformed, Path: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m := &Manifest{
		Path:       path,
		Dir:        filepath.Dir(abs),
		Dirs:       doc.Dirs,
		Scripts:    doc.Scripts,
		Resources:  map[string]int{},
		ToolParams: map[string]ToolParams{},
		Samples:    splitList(doc.Samples),
		Inputs:     doc.Inputs,
	}
	if m.Dirs == nil {
		m.Dirs = map[string]string{}
	}
	if m.Scripts == nil {
		m.Scripts = map[string]string{}
	}

	settings := v.AllSettings()
	if err := m.loadResources(doc.Resources, settings); err != nil {
		return nil, err
	}
	if err := m.loadDirs(doc.OutputDirs); err != nil {
		return nil, err
	}
	if err := m.loadTools(doc.Tools, doc.ToolParams, settings, checks); err != nil {
		return nil, err
	}
	if err := m.loadAggregate(doc.Aggregate); err != nil {
		return nil, err
	}
	if doc.MaxJobs != nil {
		n, ok := toInt(doc.MaxJobs)
		if !ok || n < 0 {
			return nil, invalid(path, "max_jobs", fmt.Errorf("want a non-negative integer, got %v", doc.MaxJobs))
		}
		m.MaxJobs = n
	}
	return m, nil
}

func (m *Manifest) loadResources(block map[string]interface{}, settings map[string]interface{}) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasSuffix(k, "_threads") && !strings.HasSuffix(k, "_cores") {
			continue
		}
		n, err := positive(m.Path, k, settings[k])
		if err != nil {
			return err
		}
		m.Resources[k] = n
	}
	for k, val := range block {
		n, err := positive(m.Path, "resources."+k, val)
		if err != nil {
			return err
		}
		m.Resources[k] = n
	}
	return nil
}

func (m *Manifest) loadDirs(outputs []string) error {
	for _, key := range []string{InDirKey, OutDirKey} {
		if strings.TrimSpace(m.Dirs[key]) == "" {
			return missing(m.Path, "dirs."+key)
		}
	}
	seen := map[string]bool{OutDirKey: true}
	m.OutputDirs = []string{OutDirKey}
	for _, name := range outputs {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		if _, ok := m.Dirs[name]; !ok && name != LogDirKey {
			return missing(m.Path, "dirs."+name)
		}
		seen[name] = true
		m.OutputDirs = append(m.OutputDirs, name)
	}
	return nil
}

func (m *Manifest) loadTools(names []string, blocks map[string]map[string]interface{}, settings map[string]interface{}, checks []NameCheck) error {
	seen := map[string]bool{}
	for _, name := range splitList(names) {
		name = strings.ToLower(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		m.Tools = append(m.Tools, name)
	}
	if len(m.Tools) == 0 {
		return missing(m.Path, "tools")
	}
	for _, name := range m.Tools {
		for _, check := range checks {
			if err := check(name); err != nil {
				return err
			}
		}
	}

	for _, name := range m.Tools {
		merged := map[string]interface{}{}
		for _, field := range toolFields {
			if val, ok := settings[name+"_"+field]; ok {
				merged[field] = val
			}
		}
		for k, val := range blocks[name] {
			merged[k] = val
		}

		var raw rawToolParams
		if err := mapstructure.Decode(merged, &raw); err != nil {
			return invalid(m.Path, "tool_params."+name, err)
		}
		params, err := m.toolParams(name, raw)
		if err != nil {
			return err
		}
		m.ToolParams[name] = params
	}
	return nil
}

func (m *Manifest) toolParams(name string, raw rawToolParams) (ToolParams, error) {
	key := func(field string) string { return "tool_params." + name + "." + field }

	p := ToolParams{
		Command:     raw.Command,
		Env:         raw.Env,
		DB:          raw.DB,
		OutputRegex: raw.OutputRegex,
		JobThreads:  1,
	}
	if p.Command == "" {
		p.Command = raw.Cmd
	}
	if strings.TrimSpace(p.Command) == "" {
		return p, missing(m.Path, key("command"))
	}
	if strings.TrimSpace(p.Env) == "" {
		return p, missing(m.Path, key("env"))
	}

	threads := raw.Threads
	if threads == nil {
		threads = raw.Cores
	}
	if threads == nil {
		if n, ok := m.Resources[name+"_threads"]; ok {
			threads = n
		} else if n, ok := m.Resources[name+"_cores"]; ok {
			threads = n
		}
	}
	if threads == nil {
		return p, missing(m.Path, key("threads"))
	}
	n, err := positive(m.Path, key("threads"), threads)
	if err != nil {
		return p, err
	}
	p.Threads = n

	if raw.JobThreads != nil {
		n, err := positive(m.Path, key("job_threads"), raw.JobThreads)
		if err != nil {
			return p, err
		}
		if n > p.Threads {
			return p, invalid(m.Path, key("job_threads"), fmt.Errorf("%d exceeds threads %d", n, p.Threads))
		}
		p.JobThreads = n
	}

	if raw.Retries != nil {
		n, ok := toInt(raw.Retries)
		if !ok || n < 0 {
			return p, invalid(m.Path, key("retries"), fmt.Errorf("want a non-negative integer, got %v", raw.Retries))
		}
		p.Retries = n
	}

	if p.OutputRegex != "" {
		if _, err := regexp.Compile(p.OutputRegex); err != nil {
			return p, invalid(m.Path, key("output_regex"), err)
		}
	}

	for _, req := range raw.Requires {
		req = strings.ToLower(strings.TrimSpace(req))
		if req != RequireCoverage {
			return p, invalid(m.Path, key("requires"), fmt.Errorf("unknown requirement %q", req))
		}
		p.Requires = append(p.Requires, req)
	}
	return p, nil
}

func (m *Manifest) loadAggregate(block map[string]interface{}) error {
	if val, ok := block["min_length"]; ok {
		n, isInt := toInt(val)
		if !isInt || n < 0 {
			return invalid(m.Path, "aggregate.min_length", fmt.Errorf("want a non-negative integer, got %v", val))
		}
		m.Aggregate.MinLength = n
	}
	if val, ok := block["min_confidence"]; ok {
		f, isNum := toFloat(val)
		if !isNum || f < 0 || f > 1 {
			return invalid(m.Path, "aggregate.min_confidence", fmt.Errorf("want a number in [0,1], got %v", val))
		}
		m.Aggregate.MinConfidence = f
	}
	return nil
}

// Resource returns the named resource limit.
func (m *Manifest) Resource(name string) (int, bool) {
	n, ok := m.Resources[name]
	return n, ok
}

// splitList flattens comma separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func positive(path, key string, val interface{}) (int, error) {
	n, ok := toInt(val)
	if !ok || n <= 0 {
		return 0, invalid(path, key, fmt.Errorf("want a positive integer, got %v", val))
	}
	return n, nil
}

func toInt(val interface{}) (int, bool) {
	switch n := val.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case float32:
		return toInt(float64(n))
	}
	return 0, false
}

func toFloat(val interface{}) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt(val); ok {
		return float64(i), true
	}
	return 0, false
}
