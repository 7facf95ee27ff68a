package proc

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// syncWriter serializes whole-line writes from concurrent relays so lines of
// different processes never interleave mid-line.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) writeLine(prefix string, line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prefix != "" {
		if _, err := io.WriteString(s.w, prefix); err != nil {
			return err
		}
	}
	_, err := s.w.Write(line)
	return err
}

// relay copies r to sink line by line until EOF. A trailing line without a
// newline is delivered as is. Write errors on the sink are remembered but the
// stream is still drained so the child never blocks on a full pipe.
func relay(r io.Reader, sink *syncWriter, prefix string) error {
	br := bufio.NewReader(r)
	var sinkErr error
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && sinkErr == nil {
			sinkErr = sink.writeLine(prefix, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sinkErr
			}
			return err
		}
	}
}
