// Package testutil provides shared test infrastructure for the launch
// packages: fake executables standing in for the engine, the topology
// generator and the comparison tools, plus artifact fixture writers.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Script writes an executable /bin/sh script named name into dir and returns
// its path. body is the script without the shebang line.
func Script(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	content := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("Failed to write script %s: %v", path, err)
	}
	return path
}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// StatsLine renders one backend line of a statistics artifact the way the
// engine does: node id first, then fields joined by a literal backslash-n.
func StatsLine(nodeID string, fields ...string) string {
	return nodeID + "," + strings.Join(fields, `\n`)
}

// ReadFile returns the content of path, failing the test if it is unreadable.
func ReadFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}
