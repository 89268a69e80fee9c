package heartbeat

import (
	"io"
	"strings"
	"sync"
)

// LineWriter writes whole lines to an underlying writer. Overlapping ticks
// never interleave partial lines.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter wraps w.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteLine writes s followed by a newline unless s already ends with one.
func (l *LineWriter) WriteLine(s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, s)
	return err
}
