// Package watch reruns a callback when any of a set of files changes.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDelay = 500 * time.Millisecond

// Watcher watches files for changes
type Watcher struct {
	files    map[string]bool
	callback func() error
	watcher  *fsnotify.Watcher
	delay    time.Duration
	errOut   io.Writer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDelay sets the debounce delay between the last write and the callback.
func WithDelay(d time.Duration) Option {
	return func(w *Watcher) { w.delay = d }
}

// WithErrorOutput sets where callback and watch errors are reported.
func WithErrorOutput(out io.Writer) Option {
	return func(w *Watcher) { w.errOut = out }
}

// New creates a watcher for files. The directories holding them are watched
// so editors that replace files on save still trigger the callback.
func New(files []string, callback func() error, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		files:    make(map[string]bool, len(files)),
		callback: callback,
		watcher:  fw,
		delay:    defaultDelay,
		errOut:   os.Stderr,
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	return w, nil
}

// Run calls the callback once, then again after every burst of changes,
// until ctx is done. Errors from later callbacks are reported and watching
// continues.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	debounce := time.NewTimer(w.delay)
	debounce.Stop()
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if abs, err := filepath.Abs(event.Name); err == nil && w.files[abs] {
				debounce.Reset(w.delay)
				fire = debounce.C
			}

		case <-fire:
			fire = nil
			if err := w.callback(); err != nil {
				fmt.Fprintf(w.errOut, "Watch callback error: %v\n", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(w.errOut, "Watch error: %v\n", err)

		case <-ctx.Done():
			debounce.Stop()
			return nil
		}
	}
}
