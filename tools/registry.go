package tools

import (
	"regexp"
	"sort"
	"strconv"

	"virome-runner/config"
)

// Registry maps enabled tool IDs to their specs. Iteration follows the
// enumeration order of Known.
type Registry struct {
	specs map[ID]*Spec
	order []ID
}

// Register builds a Spec for every tool enabled in m.
func Register(m *config.Manifest) (*Registry, error) {
	resources := make(map[string]string, len(m.Resources))
	for k, v := range m.Resources {
		resources[k] = strconv.Itoa(v)
	}

	r := &Registry{specs: map[ID]*Spec{}}
	for _, name := range m.Tools {
		id, err := Parse(name)
		if err != nil {
			return nil, err
		}
		if _, dup := r.specs[id]; dup {
			continue
		}

		params := m.ToolParams[name]
		if err := CheckTemplate(params.Command); err != nil {
			return nil, &Error{Kind: ErrBadTemplate, Name: name, Err: err}
		}
		spec := &Spec{
			ID:         id,
			Command:    params.Command,
			Env:        params.Env,
			Budget:     params.Threads,
			JobThreads: params.JobThreads,
			DB:         params.DB,
			Requires:   append([]string(nil), params.Requires...),
			Retries:    params.Retries,
			scripts:    m.Scripts,
			resources:  resources,
		}
		if spec.JobThreads <= 0 {
			spec.JobThreads = 1
		}
		if params.OutputRegex != "" {
			re, err := regexp.Compile(params.OutputRegex)
			if err != nil {
				return nil, &Error{Kind: ErrBadTemplate, Name: name, Err: err}
			}
			spec.OutputRegex = re
		}
		r.specs[id] = spec
		r.order = append(r.order, id)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

func (r *Registry) Get(id ID) (*Spec, bool) {
	s, ok := r.specs[id]
	return s, ok
}

func (r *Registry) IDs() []ID {
	return append([]ID(nil), r.order...)
}

func (r *Registry) Specs() []*Spec {
	out := make([]*Spec, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.specs[id])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }

// Subset restricts the registry to names. An empty list returns r itself.
func (r *Registry) Subset(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	out := &Registry{specs: map[ID]*Spec{}}
	for _, name := range names {
		id, err := Parse(name)
		if err != nil {
			return nil, err
		}
		spec, ok := r.specs[id]
		if !ok {
			return nil, &Error{Kind: ErrNotEnabled, Name: name}
		}
		if _, dup := out.specs[id]; dup {
			continue
		}
		out.specs[id] = spec
		out.order = append(out.order, id)
	}
	sort.Slice(out.order, func(i, j int) bool { return out.order[i] < out.order[j] })
	return out, nil
}
