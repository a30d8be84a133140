// Package telemetry provides opt-in collection of compile and execution
// events for the batchsql CLI.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/satishbabariya/batchsql/internal/debug"
)

const defaultEndpoint = "https://telemetry.batchsql.dev/events"

// Event represents a telemetry event
type Event struct {
	EventType    string         `json:"event_type"`
	Command      string         `json:"command,omitempty"`
	Dialect      string         `json:"dialect,omitempty"`
	Duration     time.Duration  `json:"duration,omitempty"`
	Error        string         `json:"error,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Version      string         `json:"version"`
	OS           string         `json:"os"`
	Architecture string         `json:"architecture"`
}

// Collector batches events and posts them to an endpoint
type Collector struct {
	endpoint   string
	version    string
	batchSize  int
	httpClient *http.Client

	mu     sync.Mutex
	events []Event
	wg     sync.WaitGroup
}

// NewCollector creates a collector posting to endpoint.
func NewCollector(endpoint, version string) *Collector {
	return &Collector{
		endpoint:   endpoint,
		version:    version,
		batchSize:  10,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Record adds an event and sends a batch once enough events are queued.
func (c *Collector) Record(e Event) {
	e.Timestamp = time.Now()
	e.Version = c.version
	e.OS = runtime.GOOS
	e.Architecture = runtime.GOARCH

	c.mu.Lock()
	c.events = append(c.events, e)
	full := len(c.events) >= c.batchSize
	c.mu.Unlock()

	if full {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.Flush(context.Background())
		}()
	}
}

// Flush sends every queued event. Failures are logged and the events are
// dropped: telemetry never fails a command.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	events := c.events
	c.events = nil
	c.mu.Unlock()

	if len(events) == 0 {
		return
	}
	if err := c.send(ctx, events); err != nil {
		debug.Debug("telemetry not sent", "events", len(events), "error", err)
	}
}

// Close waits for pending batches and flushes the rest.
func (c *Collector) Close(ctx context.Context) {
	c.wg.Wait()
	c.Flush(ctx)
}

func (c *Collector) send(ctx context.Context, events []Event) error {
	body, err := json.Marshal(map[string]any{"events": events})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("batchsql/%s", c.version))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry endpoint returned %s", resp.Status)
	}
	return nil
}

var (
	mu     sync.Mutex
	global *Collector
)

// Init enables the global collector unless disabled by configuration or
// BATCHSQL_TELEMETRY_DISABLED.
func Init(version string, enabled bool) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled || isDisabled() {
		global = nil
		return
	}
	endpoint := os.Getenv("BATCHSQL_TELEMETRY_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	global = NewCollector(endpoint, version)
}

func collector() *Collector {
	mu.Lock()
	defer mu.Unlock()
	return global
}

// IsEnabled returns whether telemetry is enabled
func IsEnabled() bool {
	return collector() != nil
}

// RecordCommand records a command execution event
func RecordCommand(command, dialect string, duration time.Duration, err error) {
	c := collector()
	if c == nil {
		return
	}
	e := Event{EventType: "command", Command: command, Dialect: dialect, Duration: duration}
	if err != nil {
		e.Error = err.Error()
	}
	c.Record(e)
}

// RecordCompile records the shape of a compiled plan.
func RecordCompile(dialect string, tables, lifted, merged int, duration time.Duration) {
	c := collector()
	if c == nil {
		return
	}
	c.Record(Event{
		EventType: "compile",
		Dialect:   dialect,
		Duration:  duration,
		Metadata:  map[string]any{"tables": tables, "lifted": lifted, "merged": merged},
	})
}

// Shutdown flushes the global collector.
func Shutdown(ctx context.Context) {
	if c := collector(); c != nil {
		c.Close(ctx)
	}
}

// isDisabled checks if telemetry is disabled via environment variable
func isDisabled() bool {
	v := os.Getenv("BATCHSQL_TELEMETRY_DISABLED")
	return v == "1" || v == "true"
}
