package stats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadTaskCount extracts the number of tasks from the header line of an
// input trace: the fourth ':'-separated field, up to its first '('. Returns
// 0 with an error when the header does not have that shape.
func ReadTaskCount(tracePath string) (int, error) {
	file, err := os.Open(tracePath)
	if err != nil {
		return 0, fmt.Errorf("opening input trace: %w", err)
	}
	defer func() { _ = file.Close() }()

	header, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && header == "" {
		return 0, fmt.Errorf("reading trace header: %w", err)
	}
	return ParseTaskCount(strings.TrimRight(header, "\r\n"))
}

// ParseTaskCount applies ReadTaskCount's rule to a header line.
func ParseTaskCount(header string) (int, error) {
	fields := strings.Split(header, ":")
	if len(fields) < 4 {
		return 0, fmt.Errorf("trace header %q has %d ':' fields, want at least 4", header, len(fields))
	}
	raw, _, _ := strings.Cut(fields[3], "(")
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("trace header task count %q: %w", raw, err)
	}
	return n, nil
}
