// Command fastplot ingests delimited numeric records from a serial port into
// a bounded in-memory window and serves snapshots, control endpoints, and
// debug views over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/fastplot/internal/api"
	"github.com/banshee-data/fastplot/internal/config"
	"github.com/banshee-data/fastplot/internal/poller"
	"github.com/banshee-data/fastplot/internal/serialport"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode, replaying a fixtures file instead of opening a real port")
	listen     = flag.String("listen", ":8080", "Listen address")
	portPath   = flag.String("port", "/dev/ttyUSB0", "Serial port to use (ignored in dev mode)")
	baudRate   = flag.Int("baud", 115200, "Baud rate of the serial port")
	labelsFlag = flag.String("labels", "data_a,data_b,data_c,data_d", "Comma-separated column labels; count fixes the row width")
	delim      = flag.String("delim", ",", "Value delimiter within a line")
	rows       = flag.Int("rows", 30, "Window capacity in rows")
	configPath = flag.String("config", "", "Optional JSON config file; set fields override flags")
	fixtures   = flag.String("fixtures", "fixtures.txt", "Fixtures file replayed in dev mode")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !*devMode && *portPath == "" {
		log.Fatal("Serial port is required")
	}

	var cfg *config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	readTimeout, err := cfg.ReadTimeoutOr(100 * time.Millisecond)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	pollerConfig := poller.Config{
		Labels:      cfg.LabelsOr(splitLabels(*labelsFlag)),
		Delim:       cfg.DelimOr(*delim),
		Rows:        cfg.RowsOr(*rows),
		Filter:      cfg.Filter(),
		ReadTimeout: readTimeout,
	}

	if *devMode {
		lines, err := loadFixtures(*fixtures)
		if err != nil {
			log.Fatalf("failed to load fixtures file: %v", err)
		}
		pollerConfig.Open = func(string, serialport.Options) (serialport.Port, error) {
			return serialport.NewReplayPort(lines, 100*time.Millisecond), nil
		}
	}

	p := poller.New(pollerConfig)
	if err := p.Connect(cfg.PortOr(*portPath), cfg.BaudRateOr(*baudRate)); err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	if err := p.Start(); err != nil {
		log.Fatalf("failed to start acquisition: %v", err)
	}
	log.Printf("acquiring from %s (%d rows, labels %v)",
		cfg.PortOr(*portPath), pollerConfig.Rows, pollerConfig.Labels)

	server := &http.Server{
		Addr:    cfg.ListenOr(*listen),
		Handler: api.LoggingMiddleware(api.NewServer(p).ServeMux()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("serving on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")

	if err := p.Stop(); err != nil {
		log.Printf("failed to stop poller cleanly: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("failed to shut down http server: %v", err)
	}

	wg.Wait()
	log.Print("shutdown complete")
}

// splitLabels parses the -labels flag, trimming whitespace around each name.
func splitLabels(s string) []string {
	parts := strings.Split(s, ",")
	labels := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			labels = append(labels, name)
		}
	}
	return labels
}

// loadFixtures reads the dev-mode fixtures file into its non-empty lines.
func loadFixtures(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}
