// Package serialport abstracts the byte-stream device that feeds the
// acquisition pipeline. The poller consumes lines through the narrow Port
// and LineReader types; the physical transport behind them is go.bug.st/serial
// in production and an in-memory fake in tests.
package serialport

import (
	"io"
	"time"
)

// Port defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real serial hardware.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort extends Port with read timeout capabilities. Ports that
// implement it allow the acquisition loop to bound each read so that a stop
// request is observed within one timeout interval.
type TimeoutPort interface {
	Port
	// SetReadTimeout sets the read timeout for the serial port.
	SetReadTimeout(timeout time.Duration) error
}

// Opener is a function type for opening serial ports. This allows for
// easier testing by replacing the opener function.
type Opener func(path string, opts Options) (Port, error)
