// Package system records facts about the host a run executed on.
package system

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
	"strconv"
	"strings"
)

var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

// HostInfo returns the host facts stored with each results manifest.
// Missing sources are left out.
func HostInfo() map[string]string {
	data := map[string]string{
		"goos":   runtime.GOOS,
		"goarch": runtime.GOARCH,
		"cpus":   strconv.Itoa(runtime.NumCPU()),
	}
	if h, err := os.Hostname(); err == nil {
		data["hostname"] = h
	}
	if name := osRelease(osReleasePaths); name != "" {
		data["os"] = name
	}
	return data
}

// osRelease reads PRETTY_NAME from the first readable os-release file.
func osRelease(paths []string) string {
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		return prettyName(b)
	}
	return ""
}

func prettyName(b []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if ok && k == "PRETTY_NAME" {
			return strings.Trim(v, `"'`)
		}
	}
	return ""
}
