package tools

import (
	"fmt"
	"strings"
)

// ID identifies one of the supported classification tools. The set is closed;
// the zero value is not a tool.
type ID int

const (
	DeepVirFinder ID = iota + 1
	Marvel
	MetaPhinder
	Seeker
	Vibrant
	ViralVerify
	VirFinder
	VirSorter
	VirSorter2
)

var known = []ID{DeepVirFinder, Marvel, MetaPhinder, Seeker, Vibrant, ViralVerify, VirFinder, VirSorter, VirSorter2}

var names = map[ID]string{
	DeepVirFinder: "dvf",
	Marvel:        "marvel",
	MetaPhinder:   "metaphinder",
	Seeker:        "seeker",
	Vibrant:       "vibrant",
	ViralVerify:   "viralverify",
	VirFinder:     "virfinder",
	VirSorter:     "virsorter",
	VirSorter2:    "virsorter2",
}

var displayNames = map[ID]string{
	DeepVirFinder: "DeepVirFinder",
	Marvel:        "MARVEL",
	MetaPhinder:   "MetaPhinder",
	Seeker:        "Seeker",
	Vibrant:       "VIBRANT",
	ViralVerify:   "viralVerify",
	VirFinder:     "VirFinder",
	VirSorter:     "VirSorter",
	VirSorter2:    "VirSorter2",
}

var aliases = map[string]ID{
	"deepvirfinder": DeepVirFinder,
	"viral_verify":  ViralVerify,
	"vs2":           VirSorter2,
}

// Known returns every tool in enumeration order.
func Known() []ID {
	return append([]ID(nil), known...)
}

// Parse maps a manifest identifier (or a display name) to its ID.
func Parse(s string) (ID, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, id := range known {
		if names[id] == key || strings.ToLower(displayNames[id]) == key {
			return id, nil
		}
	}
	if id, ok := aliases[key]; ok {
		return id, nil
	}
	return 0, &Error{Kind: ErrUnknownTool, Name: s}
}

// CheckName reports whether s names a known tool. It fits config.NameCheck.
func CheckName(s string) error {
	_, err := Parse(s)
	return err
}

func (id ID) Valid() bool {
	_, ok := names[id]
	return ok
}

func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("tool(%d)", int(id))
}

func (id ID) DisplayName() string {
	if n, ok := displayNames[id]; ok {
		return n
	}
	return id.String()
}

func (id ID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, &Error{Kind: ErrUnknownTool, Name: id.String()}
	}
	return []byte(names[id]), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
