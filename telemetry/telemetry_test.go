package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu     sync.Mutex
	events []Event
}

func (s *sink) handler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Events []Event `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.events = append(s.events, body.Events...)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *sink) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestCollectorFlush(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	c := NewCollector(srv.URL, "1.2.3")
	c.Record(Event{EventType: "command", Command: "compile", Duration: time.Second})
	c.Record(Event{EventType: "command", Command: "exec", Error: "boom"})
	assert.Empty(t, s.received())

	c.Close(context.Background())

	events := s.received()
	require.Len(t, events, 2)
	assert.Equal(t, "compile", events[0].Command)
	assert.Equal(t, "1.2.3", events[0].Version)
	assert.NotEmpty(t, events[0].OS)
	assert.Equal(t, "boom", events[1].Error)
}

func TestCollectorSendsFullBatches(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()

	c := NewCollector(srv.URL, "dev")
	for i := 0; i < c.batchSize; i++ {
		c.Record(Event{EventType: "compile"})
	}
	c.wg.Wait()
	assert.Len(t, s.received(), c.batchSize)
}

func TestCollectorIgnoresEndpointFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCollector(srv.URL, "dev")
	c.Record(Event{EventType: "command"})
	assert.NotPanics(t, func() { c.Close(context.Background()) })
}

func TestInit(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(http.HandlerFunc(s.handler))
	defer srv.Close()
	t.Setenv("BATCHSQL_TELEMETRY_ENDPOINT", srv.URL)

	t.Setenv("BATCHSQL_TELEMETRY_DISABLED", "1")
	Init("dev", true)
	assert.False(t, IsEnabled())

	t.Setenv("BATCHSQL_TELEMETRY_DISABLED", "")
	Init("dev", false)
	assert.False(t, IsEnabled())
	RecordCommand("compile", "sqlite", time.Millisecond, nil)

	Init("dev", true)
	require.True(t, IsEnabled())
	RecordCommand("exec", "sqlite", time.Millisecond, errors.New("no rows"))
	RecordCompile("sqlite", 2, 1, 0, time.Millisecond)
	Shutdown(context.Background())

	events := s.received()
	require.Len(t, events, 2)
	assert.Equal(t, "no rows", events[0].Error)
	assert.Equal(t, "compile", events[1].EventType)
	assert.EqualValues(t, 2, events[1].Metadata["tables"])

	Init("dev", false)
}
