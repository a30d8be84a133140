package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCallsAgainOnChange(t *testing.T) {
	dir := t.TempDir()
	query := filepath.Join(dir, "query.yaml")
	schema := filepath.Join(dir, "schema.prisma")
	require.NoError(t, os.WriteFile(query, []byte("table: Customer\n"), 0o644))
	require.NoError(t, os.WriteFile(schema, []byte(""), 0o644))

	calls := make(chan struct{}, 8)
	w, err := New([]string{query, schema}, func() error {
		calls <- struct{}{}
		return nil
	}, WithDelay(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitCall(t, calls)

	require.NoError(t, os.WriteFile(schema, []byte("model A {\n}\n"), 0o644))
	waitCall(t, calls)
	drain(calls)

	// Files not asked for are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	select {
	case <-calls:
		t.Fatal("callback ran for an unwatched file")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func TestRunReportsCallbackErrors(t *testing.T) {
	dir := t.TempDir()
	query := filepath.Join(dir, "query.yaml")
	require.NoError(t, os.WriteFile(query, []byte("table: Customer\n"), 0o644))

	var n atomic.Int32
	var out bytes.Buffer
	failed := make(chan struct{}, 1)
	w, err := New([]string{query}, func() error {
		if n.Add(1) == 1 {
			return nil
		}
		defer func() { failed <- struct{}{} }()
		return errors.New("bad query")
	}, WithDelay(20*time.Millisecond), WithErrorOutput(&out))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give Run time to finish the initial callback.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(query, []byte("table: Order\n"), 0o644))

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not rerun")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "Watch callback error: bad query")
}

func TestRunInitialCallbackError(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{filepath.Join(dir, "query.yaml")}, func() error {
		return errors.New("missing")
	})
	require.NoError(t, err)

	err = w.Run(context.Background())
	assert.ErrorContains(t, err, "initial callback failed: missing")
}

func waitCall(t *testing.T, calls <-chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not called")
	}
}

func drain(calls <-chan struct{}) {
	time.Sleep(100 * time.Millisecond)
	for {
		select {
		case <-calls:
		default:
			return
		}
	}
}
