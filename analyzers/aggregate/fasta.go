package aggregate

import (
	"bufio"
	"os"
	"strings"
)

// ContigLengths maps each FASTA record identifier in path to its sequence
// length.
func ContigLengths(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]int{}
	var id string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			id = firstField(line[1:])
			out[id] = 0
			continue
		}
		if id != "" {
			out[id] += len(line)
		}
	}
	return out, sc.Err()
}
