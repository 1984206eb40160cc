package aggregate

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strconv"

	"virome-runner/outputs"
	"virome-runner/tools"
)

const TableFile = "classification.csv"

var formattedHeader = []string{"tool", "sample", "record", "length", "prediction", "lifecycle", "value", "stat", "stat_name"}

// WriteCSV writes t to path atomically.
func WriteCSV(t Table, path string) error {
	b, err := encode(t.Header(), t.Records())
	if err != nil {
		return err
	}
	return outputs.WriteFileAtomic(path, b, 0o644)
}

// FormattedPath is <dir>/<tool>_pred_formatted.csv.
func FormattedPath(dir string, id tools.ID) string {
	return filepath.Join(dir, id.String()+"_pred_formatted.csv")
}

// WriteFormatted writes one formatted prediction table per column tool of t,
// returning the paths written in tool order.
func WriteFormatted(t Table, dir string) ([]string, error) {
	byTool := map[tools.ID][][]string{}
	for _, c := range t.Calls {
		byTool[c.Tool] = append(byTool[c.Tool], []string{
			c.Tool.String(), c.Sample, c.Record, strconv.Itoa(c.Length),
			c.Prediction, c.Lifecycle, c.Value, c.Stat, c.StatName,
		})
	}

	var paths []string
	for _, id := range t.Tools {
		b, err := encode(formattedHeader, byTool[id])
		if err != nil {
			return paths, err
		}
		p := FormattedPath(dir, id)
		if err := outputs.WriteFileAtomic(p, b, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func encode(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
