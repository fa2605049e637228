// Package poller owns the serial acquisition pipeline: one background
// goroutine reads delimited numeric lines from a transport, filters and
// parses them, and retains a bounded window of recent rows. Consumers on
// other goroutines take point-in-time snapshots and drive the
// pause/resume/stop control surface; none of those calls block on the
// device.
package poller

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/fastplot/internal/monitoring"
	"github.com/banshee-data/fastplot/internal/record"
	"github.com/banshee-data/fastplot/internal/ringbuf"
	"github.com/banshee-data/fastplot/internal/serialport"
	"github.com/banshee-data/fastplot/internal/timeutil"
)

var (
	// ErrNotIdle is returned by Connect when the poller already holds a port.
	ErrNotIdle = errors.New("poller: already connected")
	// ErrNotConnected is returned by Start before a successful Connect.
	ErrNotConnected = errors.New("poller: not connected")
)

const (
	defaultRows        = 30
	defaultReadTimeout = 100 * time.Millisecond
	defaultStopTimeout = 2 * time.Second
)

// Config fixes the decode and buffering parameters of a Poller at
// construction. Labels determine the row width and column order.
type Config struct {
	// Labels is the ordered column set; its length fixes the row width.
	Labels []string

	// Delim separates values within a line. Defaults to a comma.
	Delim string

	// Rows is the ring buffer capacity. Defaults to 30.
	Rows int

	// Filter is applied to each raw line before parsing. Defaults to the
	// identity transform. A panicking filter costs the line, never the loop.
	Filter record.Filter

	// ReadTimeout bounds each transport read, and therefore the latency of
	// observing a stop request. Defaults to 100ms.
	ReadTimeout time.Duration

	// StopTimeout bounds how long Stop waits for the acquisition goroutine.
	StopTimeout time.Duration

	// Open opens the transport. Defaults to serialport.OpenReal; tests and
	// dev mode inject their own.
	Open serialport.Opener

	// Clock abstracts time for testability. Defaults to the real clock.
	Clock timeutil.Clock
}

// Snapshot is an immutable point-in-time view of the window for consumers.
type Snapshot struct {
	Labels   []string     `json:"labels"`
	Rows     []record.Row `json:"rows"`
	State    State        `json:"state"`
	LastPush time.Time    `json:"last_push"`
}

// Stats counts pipeline activity since construction. Per-line defects are
// absorbed by the loop and show up only here and in the log.
type Stats struct {
	LinesRead    uint64 `json:"lines_read"`
	RowsPushed   uint64 `json:"rows_pushed"`
	LinesDropped uint64 `json:"lines_dropped"`
}

// Poller drives the read→filter→parse→push cycle over one transport handle.
// It is the sole writer of its ring buffer; every exported method is safe to
// call from any goroutine.
type Poller struct {
	parser      *record.Parser
	filter      record.Filter
	rows        int
	readTimeout time.Duration
	stopTimeout time.Duration
	open        serialport.Opener
	clock       timeutil.Clock

	mu     sync.Mutex
	state  atomic.Int32
	port   serialport.Port
	reader *serialport.LineReader
	ring   *ringbuf.Buffer[record.Row]
	done   chan struct{}

	paused    atomic.Bool
	stopReq   atomic.Bool
	closeOnce sync.Once

	lastPush atomic.Value // time.Time

	linesRead    atomic.Uint64
	rowsPushed   atomic.Uint64
	linesDropped atomic.Uint64

	subMu       sync.Mutex
	subscribers map[string]chan string
}

// New creates a Poller with the given configuration. Connect must be called
// before Start.
func New(cfg Config) *Poller {
	rows := cfg.Rows
	if rows <= 0 {
		rows = defaultRows
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	open := cfg.Open
	if open == nil {
		open = serialport.OpenReal
	}
	var clock timeutil.Clock = cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &Poller{
		parser:      record.NewParser(cfg.Labels, cfg.Delim),
		filter:      cfg.Filter,
		rows:        rows,
		readTimeout: readTimeout,
		stopTimeout: stopTimeout,
		open:        open,
		clock:       clock,
		subscribers: make(map[string]chan string),
	}
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Connect opens the transport at path with the given baud rate and creates
// the empty window. A failure here is fatal to the session: the poller stays
// Idle and the error is returned synchronously.
func (p *Poller) Connect(path string, baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateIdle {
		return ErrNotIdle
	}

	port, err := p.open(path, serialport.Options{BaudRate: baud})
	if err != nil {
		return fmt.Errorf("poller: connect %s: %w", path, err)
	}

	reader, err := serialport.NewLineReader(port, p.readTimeout)
	if err != nil {
		port.Close()
		return fmt.Errorf("poller: connect %s: %w", path, err)
	}

	p.port = port
	p.reader = reader
	p.ring = ringbuf.New[record.Row](p.rows)
	p.state.Store(int32(StateConnected))
	return nil
}

// Start spawns the acquisition goroutine. The poller must be Connected.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateConnected {
		return ErrNotConnected
	}

	p.done = make(chan struct{})
	p.state.Store(int32(StateRunning))
	go p.run()
	return nil
}

// Pause freezes the window: the loop keeps draining the transport so the
// device never backs up, but parsed rows are discarded until Resume. A no-op
// outside Running.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State() == StateRunning {
		p.paused.Store(true)
		p.state.Store(int32(StatePaused))
	}
}

// Resume re-enables pushes after Pause. A no-op outside Paused.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State() == StatePaused {
		p.paused.Store(false)
		p.state.Store(int32(StateRunning))
	}
}

// Stop requests a cooperative shutdown, waits up to StopTimeout for the
// acquisition goroutine to observe it, closes the transport exactly once,
// and transitions to Stopped. Repeat calls are no-ops. A close failure is
// logged and returned, but the poller still ends up Stopped.
func (p *Poller) Stop() error {
	p.mu.Lock()
	switch p.State() {
	case StateIdle, StateStopping, StateStopped:
		p.mu.Unlock()
		return nil
	case StateConnected:
		// Loop never started; just release the handle.
		p.state.Store(int32(StateStopped))
		p.mu.Unlock()
		return p.closePort()
	}

	p.state.Store(int32(StateStopping))
	done := p.done
	p.mu.Unlock()

	p.stopReq.Store(true)

	// The loop re-checks the stop flag at least once per read timeout, so
	// this wait is bounded in the healthy case; the timer covers a wedged
	// transport.
	timer := p.clock.NewTimer(p.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C():
		monitoring.Logf("poller: acquisition loop did not exit within %v", p.stopTimeout)
	}

	err := p.closePort()
	p.state.Store(int32(StateStopped))
	p.closeSubscribers()
	return err
}

// Snapshot returns a consistent copy of the window plus the label set,
// lifecycle state, and the time of the most recent push.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	ring := p.ring
	p.mu.Unlock()

	var rows []record.Row
	if ring != nil {
		rows = ring.Snapshot()
		// Rows in the ring share backing arrays with its slots; hand the
		// consumer copies so the snapshot is truly detached.
		for i, row := range rows {
			rows[i] = append(record.Row(nil), row...)
		}
	} else {
		rows = []record.Row{}
	}

	var last time.Time
	if v := p.lastPush.Load(); v != nil {
		last = v.(time.Time)
	}

	return Snapshot{
		Labels:   p.parser.Labels(),
		Rows:     rows,
		State:    p.State(),
		LastPush: last,
	}
}

// Stats returns the ingest counters.
func (p *Poller) Stats() Stats {
	return Stats{
		LinesRead:    p.linesRead.Load(),
		RowsPushed:   p.rowsPushed.Load(),
		LinesDropped: p.linesDropped.Load(),
	}
}

// run is the acquisition loop. It is the sole writer of the ring buffer and
// exits either on a stop request or on a fatal transport error.
func (p *Poller) run() {
	defer close(p.done)

	for !p.stopReq.Load() {
		line, err := p.reader.ReadLine()
		if errors.Is(err, serialport.ErrTimeout) {
			continue
		}
		if err != nil {
			monitoring.Logf("poller: transport read failed, stopping acquisition: %v", err)
			p.closePort()
			// State transitions happen under the mutex; a racing
			// Pause/Resume must observe Stopped, not straddle it.
			p.mu.Lock()
			p.state.Store(int32(StateStopped))
			p.mu.Unlock()
			p.closeSubscribers()
			return
		}
		if line == "" {
			continue
		}
		p.linesRead.Add(1)

		filtered, err := record.Apply(p.filter, line)
		if err != nil {
			p.linesDropped.Add(1)
			monitoring.Logf("poller: dropping line: %v", err)
			continue
		}

		p.publish(filtered)

		row, err := p.parser.Parse(filtered)
		if err != nil {
			p.linesDropped.Add(1)
			monitoring.Logf("poller: dropping line: %v", err)
			continue
		}

		if p.paused.Load() {
			// Keep draining the device; the window stays frozen.
			continue
		}

		p.ring.Push(row)
		p.rowsPushed.Add(1)
		p.lastPush.Store(p.clock.Now())
	}
}

// closePort closes the transport handle on exactly one path, whether the
// loop exited via the stop flag or via a read error.
func (p *Poller) closePort() error {
	var err error
	p.closeOnce.Do(func() {
		if p.port == nil {
			return
		}
		if err = p.port.Close(); err != nil {
			monitoring.Logf("poller: failed to close transport: %v", err)
		}
	})
	return err
}
