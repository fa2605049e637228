// Package api exposes the poller to a host UI over HTTP: point-in-time
// snapshots, the pause/resume/stop control surface, ingest counters, and a
// couple of debug views. A click interaction maps to the pause/resume
// endpoints; a window-close maps to stop.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/fastplot/internal/httputil"
	"github.com/banshee-data/fastplot/internal/monitoring"
	"github.com/banshee-data/fastplot/internal/poller"
	"github.com/banshee-data/fastplot/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Controller is the slice of the poller the API needs. Tests substitute a
// fake.
type Controller interface {
	Snapshot() poller.Snapshot
	Stats() poller.Stats
	State() poller.State
	Pause()
	Resume()
	Stop() error
	Subscribe() (string, <-chan string)
	Unsubscribe(string)
}

// Server serves the HTTP consumer surface for one poller.
type Server struct {
	c Controller
}

// NewServer creates a Server around the given controller.
func NewServer(c Controller) *Server {
	return &Server{c: c}
}

// ServeMux returns the route table for the server.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/pause", s.handlePause)
	mux.HandleFunc("/api/resume", s.handleResume)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/healthz", s.handleHealthz)
	mux.HandleFunc("/debug/tail", s.handleTail)
	mux.HandleFunc("/debug/chart", s.handleChart)
	return mux
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.c.Snapshot())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.c.Stats())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.c.Pause()
	httputil.WriteJSONOK(w, map[string]string{"state": s.c.State().String()})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.c.Resume()
	httputil.WriteJSONOK(w, map[string]string{"state": s.c.State().String()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := s.c.Stop(); err != nil {
		// The poller still reaches Stopped; report the close failure.
		monitoring.Logf("api: stop returned error: %v", err)
	}
	httputil.WriteJSONOK(w, map[string]string{"state": s.c.State().String()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":     "ok",
		"state":      s.c.State().String(),
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

// handleTail streams each incoming line as a Server-Sent Event. Debug use
// only; a subscriber that falls behind misses lines rather than slowing the
// acquisition loop.
func (s *Server) handleTail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, c := s.c.Subscribe()
	defer s.c.Unsubscribe(id)

	// Initial ping to establish the stream
	fmt.Fprint(w, ": ping\n\n")
	flusher.Flush()

	for {
		select {
		case line, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}
