package tools

import (
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	tagStart = "{"
	tagEnd   = "}"
)

// Expand substitutes {name} tags from vars. Tags with no value are written back
// unchanged so shell constructs such as ${VAR} or awk '{print $1}' survive.
func Expand(tmpl string, vars map[string]string) (string, error) {
	t, err := fasttemplate.NewTemplate(tmpl, tagStart, tagEnd)
	if err != nil {
		return "", err
	}
	return t.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		if v, ok := vars[strings.TrimSpace(tag)]; ok {
			return io.WriteString(w, v)
		}
		return io.WriteString(w, tagStart+tag+tagEnd)
	})
}

// CheckTemplate reports whether tmpl parses.
func CheckTemplate(tmpl string) error {
	_, err := fasttemplate.NewTemplate(tmpl, tagStart, tagEnd)
	return err
}

// Prefixed copies m into vars under "prefix.key".
func Prefixed(vars map[string]string, prefix string, m map[string]string) {
	for k, v := range m {
		vars[prefix+"."+k] = v
	}
}
