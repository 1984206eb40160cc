package aggregate

import (
	"strings"

	"virome-runner/tools"
)

// Call is one tool's prediction for one contig, in the shared formatted shape
// every reformatter produces.
type Call struct {
	Sample     string
	Tool       tools.ID
	Record     string
	Length     int
	Prediction string
	Lifecycle  string
	Value      string
	Stat       string
	StatName   string
}

var viralLabels = map[string]bool{
	"viral":         true,
	"virus":         true,
	"phage":         true,
	"provirus":      true,
	"prophage":      true,
	"lytic":         true,
	"lysogenic":     true,
	"dsdnaphage":    true,
	"ssdna":         true,
	"ncldv":         true,
	"rna":           true,
	"lavidaviridae": true,
}

// Viral reports whether the call's prediction names a viral class.
func (c Call) Viral() bool {
	return viralLabels[strings.ToLower(strings.TrimSpace(c.Prediction))]
}

func less(a, b Call) bool {
	if a.Sample != b.Sample {
		return a.Sample < b.Sample
	}
	if a.Record != b.Record {
		return a.Record < b.Record
	}
	return a.Tool < b.Tool
}
