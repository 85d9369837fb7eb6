package runner

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/MoDevIO/unosim/internal/protocol"
)

// stdinWriter serializes host->child commands so half-lines are never
// interleaved, and retries partial writes until the full command is
// delivered or the pipe breaks (spec §4.5).
type stdinWriter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
}

func newStdinWriter(out io.Writer, prefix string) *stdinWriter {
	return &stdinWriter{out: out, prefix: prefix}
}

// Write sends one fully-formed command line, retrying partial writes.
func (w *stdinWriter) Write(command string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	protocol.LogSend(w.prefix, command)
	data := []byte(command)
	for len(data) > 0 {
		n, err := w.out.Write(data)
		if err != nil {
			return errors.Wrap(err, "writing to child stdin")
		}
		data = data[n:]
	}
	return nil
}
