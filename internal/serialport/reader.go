package serialport

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by ReadLine when no complete line became available
// within one read timeout interval. It is a retry signal, not a failure.
var ErrTimeout = errors.New("serialport: no complete line before read timeout")

// LineReader assembles newline-terminated lines from a Port whose reads are
// bounded by a timeout. A Read that returns no data within the timeout
// surfaces as ErrTimeout so the caller can re-check its control flags
// without ever blocking indefinitely on the device.
type LineReader struct {
	port    Port
	scratch []byte
	partial []byte
	pending []string
}

// NewLineReader wraps port in a line assembler. If the port supports read
// timeouts, the given timeout is applied; ports without timeout support are
// accepted as-is (test fakes typically return immediately anyway).
func NewLineReader(port Port, timeout time.Duration) (*LineReader, error) {
	if tp, ok := port.(TimeoutPort); ok {
		if err := tp.SetReadTimeout(timeout); err != nil {
			return nil, fmt.Errorf("failed to set read timeout: %w", err)
		}
	}
	return &LineReader{
		port:    port,
		scratch: make([]byte, 1024),
	}, nil
}

// ReadLine returns the next complete line from the port with the trailing
// newline (and any carriage return) removed. It performs at most one Read
// against the port, so each call is bounded by the port's read timeout:
// when the read yields no complete line, ReadLine returns ErrTimeout and the
// partial data is retained for the next call. Any other error comes straight
// from the port and should be treated as fatal to the stream.
func (r *LineReader) ReadLine() (string, error) {
	if line, ok := r.popPending(); ok {
		return line, nil
	}

	n, err := r.port.Read(r.scratch)
	if n > 0 {
		r.split(r.scratch[:n])
	}

	// Data already assembled into a full line wins over a trailing error;
	// the error will surface again on the next read.
	if line, ok := r.popPending(); ok {
		return line, nil
	}
	if err != nil {
		return "", err
	}
	return "", ErrTimeout
}

// split appends freshly read bytes to the partial line and extracts every
// complete line they finish.
func (r *LineReader) split(data []byte) {
	r.partial = append(r.partial, data...)
	for {
		idx := bytes.IndexByte(r.partial, '\n')
		if idx < 0 {
			return
		}
		line := r.partial[:idx]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		r.pending = append(r.pending, string(line))
		r.partial = r.partial[idx+1:]
	}
}

func (r *LineReader) popPending() (string, bool) {
	if len(r.pending) == 0 {
		return "", false
	}
	line := r.pending[0]
	r.pending = r.pending[1:]
	return line, true
}
