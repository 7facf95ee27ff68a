// Package topology plans the overlay tree for a run and produces the
// topology description file the front-end reads.
package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tree-dbscan/tdbscan-launcher/launch"
)

// GenerateSentinel prefixes every spec string. It tells the generator to build
// a tree from the descriptors instead of reading a pre-built file.
const GenerateSentinel = "g"

// Level is one intermediate tree level: Count processes, each with FanOut
// children.
type Level struct {
	Count  int
	FanOut int
}

// Spec is the planned tree for one (backends, fan-in) pair.
type Spec struct {
	BackendCount int
	FanIn        int
	Mode         launch.RunMode

	// Root is the process count of the root level. It is 1 for a root-only
	// tree, where the single front-end fans out to every backend.
	Root int

	// Levels are the intermediate levels in root-to-leaf order. The backend
	// level is implicit and never listed.
	Levels []Level
}

// RootOnly reports whether the front-end feeds the backends directly.
func (s *Spec) RootOnly() bool {
	return len(s.Levels) == 0 && s.Root == 1
}

// NeedsGeneration is false when the tree reduces to the front-end alone. That
// only happens in attach mode with a root-only tree; the caller then writes a
// single-node topology instead of invoking the generator.
func (s *Spec) NeedsGeneration() bool {
	return !(s.Mode == launch.BackendAttach && s.RootOnly())
}

// TotalResources is the root count plus every intermediate level plus the
// backends.
func (s *Spec) TotalResources() int {
	total := s.Root + s.BackendCount
	for _, l := range s.Levels {
		total += l.Count
	}
	return total
}

// String renders the generator spec, e.g. "g:4:4x4:16x4" for 64 backends with
// fan-in 4. In attach mode the descriptor feeding the backends is dropped,
// giving "g:4:4x4". Returns "" when no generation is needed.
func (s *Spec) String() string {
	if !s.NeedsGeneration() {
		return ""
	}
	if s.RootOnly() {
		return GenerateSentinel + ":" + strconv.Itoa(s.BackendCount)
	}

	levels := s.Levels
	if s.Mode == launch.BackendAttach {
		levels = levels[:len(levels)-1]
	}
	parts := make([]string, 0, len(levels)+2)
	parts = append(parts, GenerateSentinel, strconv.Itoa(s.Root))
	for _, l := range levels {
		parts = append(parts, fmt.Sprintf("%dx%d", l.Count, l.FanOut))
	}
	return strings.Join(parts, ":")
}

// Plan converts a backend count and fan-in into a tree spec.
//
// The root count is found by repeatedly dividing backendCount by fanIn while
// the quotient is still >= fanIn. A quotient of 1 is coerced to fanIn so that
// any fan-in smaller than backendCount yields at least a 2-level tree. The
// intermediate levels are then rebuilt by multiplying back up until the
// running count reaches backendCount.
func Plan(backendCount, fanIn int, mode launch.RunMode) (*Spec, error) {
	if backendCount < 1 {
		return nil, fmt.Errorf("%w: backend count must be >= 1, got %d", launch.ErrConfiguration, backendCount)
	}
	if fanIn < 1 {
		return nil, fmt.Errorf("%w: fan-in must be >= 1, got %d", launch.ErrConfiguration, fanIn)
	}

	spec := &Spec{BackendCount: backendCount, FanIn: fanIn, Mode: mode, Root: 1}
	if fanIn == 1 || fanIn >= backendCount {
		return spec, nil
	}

	count := backendCount
	for count >= fanIn {
		count /= fanIn
	}
	if count == 1 {
		count = fanIn
	}
	spec.Root = count

	for count < backendCount {
		spec.Levels = append(spec.Levels, Level{Count: count, FanOut: fanIn})
		count *= fanIn
	}
	if count != backendCount {
		return nil, fmt.Errorf("%w: %d backends are not reachable with fan-in %d (tree yields %d leaves)",
			launch.ErrConfiguration, backendCount, fanIn, count)
	}
	return spec, nil
}
