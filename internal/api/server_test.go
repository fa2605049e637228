package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/fastplot/internal/poller"
	"github.com/banshee-data/fastplot/internal/record"
	"github.com/banshee-data/fastplot/internal/testutil"
)

// fakeController records control calls and serves canned data.
type fakeController struct {
	mu       sync.Mutex
	snap     poller.Snapshot
	stats    poller.Stats
	state    poller.State
	paused   bool
	resumed  bool
	stopped  bool
	stopErr  error
	lines    chan string
	unsubbed []string
}

func newFakeController() *fakeController {
	return &fakeController{
		snap: poller.Snapshot{
			Labels: []string{"a", "b"},
			Rows:   []record.Row{{1, 2}, {3, 4}},
			State:  poller.StateRunning,
		},
		stats: poller.Stats{LinesRead: 10, RowsPushed: 8, LinesDropped: 2},
		state: poller.StateRunning,
		lines: make(chan string, 4),
	}
}

func (f *fakeController) Snapshot() poller.Snapshot { return f.snap }
func (f *fakeController) Stats() poller.Stats       { return f.stats }

func (f *fakeController) State() poller.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.state = poller.StatePaused
}

func (f *fakeController) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = true
	f.state = poller.StateRunning
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.state = poller.StateStopped
	return f.stopErr
}

func (f *fakeController) Subscribe() (string, <-chan string) { return "sub-1", f.lines }

func (f *fakeController) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubbed = append(f.unsubbed, id)
}

func TestSnapshotHandler(t *testing.T) {
	c := newFakeController()
	mux := NewServer(c).ServeMux()

	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/snapshot"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body struct {
		Labels []string    `json:"labels"`
		Rows   [][]float64 `json:"rows"`
		State  string      `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Rows) != 2 || body.Rows[1][1] != 4 {
		t.Errorf("rows = %v, want [[1 2] [3 4]]", body.Rows)
	}
	if body.State != "running" {
		t.Errorf("state = %q, want running", body.State)
	}
	if len(body.Labels) != 2 {
		t.Errorf("labels = %v, want [a b]", body.Labels)
	}
}

func TestSnapshotRejectsPost(t *testing.T) {
	mux := NewServer(newFakeController()).ServeMux()
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, "/api/snapshot"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestStatsHandler(t *testing.T) {
	mux := NewServer(newFakeController()).ServeMux()
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/stats"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var stats poller.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stats.LinesDropped != 2 {
		t.Errorf("lines_dropped = %d, want 2", stats.LinesDropped)
	}
}

func TestControlEndpoints(t *testing.T) {
	c := newFakeController()
	mux := NewServer(c).ServeMux()

	for _, tt := range []struct {
		path      string
		wantState string
	}{
		{"/api/pause", "paused"},
		{"/api/resume", "running"},
		{"/api/stop", "stopped"},
	} {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodPost, tt.path))
		testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid JSON: %v", tt.path, err)
		}
		if body["state"] != tt.wantState {
			t.Errorf("%s: state = %q, want %q", tt.path, body["state"], tt.wantState)
		}
	}

	if !c.paused || !c.resumed || !c.stopped {
		t.Errorf("controller calls = pause:%v resume:%v stop:%v, want all true",
			c.paused, c.resumed, c.stopped)
	}
}

func TestControlEndpointsRejectGet(t *testing.T) {
	mux := NewServer(newFakeController()).ServeMux()
	for _, path := range []string{"/api/pause", "/api/resume", "/api/stop"} {
		rec := testutil.NewTestRecorder()
		mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, path))
		testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHealthzHandler(t *testing.T) {
	mux := NewServer(newFakeController()).ServeMux()
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/api/healthz"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
	if body["state"] != "running" {
		t.Errorf("state = %q, want running", body["state"])
	}
}

func TestTailStreamsLinesAsSSE(t *testing.T) {
	c := newFakeController()
	c.lines <- "1,2,3"
	close(c.lines)

	srv := httptest.NewServer(NewServer(c).ServeMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/tail")
	if err != nil {
		t.Fatalf("GET /debug/tail: %v", err)
	}
	defer resp.Body.Close()

	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	buf := make([]byte, 4096)
	var got strings.Builder
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			break
		}
		if strings.Contains(got.String(), "data: 1,2,3") {
			break
		}
	}
	if !strings.Contains(got.String(), "data: 1,2,3") {
		t.Errorf("SSE stream = %q, want it to contain %q", got.String(), "data: 1,2,3")
	}

	testutil.Eventually(t, time.Second, time.Millisecond, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.unsubbed) == 1 && c.unsubbed[0] == "sub-1"
	}, "tail handler did not unsubscribe")
}

func TestChartRendersHTML(t *testing.T) {
	mux := NewServer(newFakeController()).ServeMux()
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/debug/chart"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "echarts") {
		t.Error("chart body does not reference echarts")
	}
}

func TestLoggingMiddlewarePreservesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := testutil.NewTestRecorder()
	handler.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, "/anything"))
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
}
