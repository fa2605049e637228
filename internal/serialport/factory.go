package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

// OpenReal opens a real serial port at the given path using the provided
// options. It is the production Opener; tests substitute their own.
func OpenReal(path string, opts Options) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	return port, nil
}

// ListPorts returns the names of the serial ports detected on the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
