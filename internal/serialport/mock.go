package serialport

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by fake port operations after Close.
var ErrPortClosed = errors.New("serialport: port closed")

// FakePort implements TimeoutPort with configurable behaviour for testing.
// Reads drain a scripted buffer; once the buffer is empty a queued error is
// returned if one is set, otherwise the read reports no data, mimicking a
// real port whose read timeout expired.
type FakePort struct {
	mu sync.Mutex

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// ReadErr is returned once the scripted read data is exhausted.
	ReadErr error

	// CloseErr is returned by every Close call.
	CloseErr error

	closed      bool
	closeCalls  int
	readTimeout time.Duration
}

// NewFakePort creates an empty FakePort.
func NewFakePort() *FakePort {
	return &FakePort{}
}

// FeedLine queues a line (newline appended) for subsequent reads.
func (p *FakePort) FeedLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.WriteString(line)
	p.readBuf.WriteByte('\n')
}

// Feed queues raw bytes for subsequent reads.
func (p *FakePort) Feed(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readBuf.Write(data)
}

// FailReads arranges for reads to return err once the queued data is drained.
func (p *FakePort) FailReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReadErr = err
}

func (p *FakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.readBuf.Len() > 0 {
		return p.readBuf.Read(buf)
	}
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}

	// No data scripted: behave like a timed-out read, briefly yielding so
	// loops polling a FakePort do not spin hot.
	p.mu.Unlock()
	time.Sleep(time.Millisecond)
	p.mu.Lock()
	if p.closed {
		return 0, ErrPortClosed
	}
	if p.readBuf.Len() > 0 {
		return p.readBuf.Read(buf)
	}
	return 0, nil
}

func (p *FakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	return p.writeBuf.Write(data)
}

// Close marks the port closed and counts the call.
func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeCalls++
	p.closed = true
	return p.CloseErr
}

// CloseCalls reports how many times Close was invoked.
func (p *FakePort) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// SetReadTimeout implements TimeoutPort.
func (p *FakePort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = timeout
	return nil
}

// ReadTimeout returns the most recently applied read timeout.
func (p *FakePort) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readTimeout
}

// Written returns all data written to the port.
func (p *FakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeBuf.Bytes()
}

// FakeOpener records Open calls and hands out a scripted port or error.
type FakeOpener struct {
	mu sync.Mutex

	// Port is returned from Open when Err is nil.
	Port Port

	// Err is returned by Open when set.
	Err error

	calls []OpenCall
}

// OpenCall records details of one Open invocation.
type OpenCall struct {
	Path string
	Opts Options
}

// NewFakeOpener creates a FakeOpener returning the given port.
func NewFakeOpener(port Port) *FakeOpener {
	return &FakeOpener{Port: port}
}

// Open returns the configured port or error.
func (f *FakeOpener) Open(path string, opts Options) (Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, OpenCall{Path: path, Opts: opts})
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Port, nil
}

// Calls returns a copy of the recorded Open calls.
func (f *FakeOpener) Calls() []OpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]OpenCall, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// ReplayPort emits a fixed set of lines over and over at a steady interval,
// simulating a device for dev mode. Reads between emissions report no data,
// like a real port whose timeout expired.
type ReplayPort struct {
	mu       sync.Mutex
	lines    []string
	next     int
	interval time.Duration
	last     time.Time
	closed   bool
}

// NewReplayPort creates a ReplayPort cycling through lines every interval.
func NewReplayPort(lines []string, interval time.Duration) *ReplayPort {
	return &ReplayPort{lines: lines, interval: interval}
}

func (p *ReplayPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if len(p.lines) == 0 {
		return 0, nil
	}
	if !p.last.IsZero() && time.Since(p.last) < p.interval {
		// Pace emissions without spinning the caller.
		time.Sleep(p.interval / 4)
		return 0, nil
	}
	p.last = time.Now()
	line := p.lines[p.next] + "\n"
	p.next = (p.next + 1) % len(p.lines)
	return copy(buf, line), nil
}

func (p *ReplayPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	return len(data), nil
}

func (p *ReplayPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
