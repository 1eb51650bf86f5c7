// Package watch reports changes to the entries of a single directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrDirectoryUnavailable is returned when the directory cannot be
	// created or subscribed to.
	ErrDirectoryUnavailable = errors.New("watch directory unavailable")
	// ErrClosed is returned by [Watcher.Next] once the watcher is closed.
	ErrClosed = errors.New("watcher closed")
	// ErrDisrupted is returned by [Watcher.Next] when the subscription has
	// failed or lost events. The watcher should be closed and re-created.
	ErrDisrupted = errors.New("watch disrupted")
)

// Op is the kind of change an [Event] describes.
type Op int

const (
	Create Op = iota + 1
	Delete
	Modify
)

func (o Op) String() string {
	switch o {
	case Create:
		return "create"
	case Delete:
		return "delete"
	case Modify:
		return "modify"
	}

	return fmt.Sprintf("op(%d)", int(o))
}

// Event is a change to one directory entry. Name is the base name of the
// entry.
type Event struct {
	Name string
	Op   Op
}

func (e Event) String() string {
	return e.Op.String() + " " + e.Name
}

// Watcher is a non-recursive subscription to one directory.
//
// [Watcher.Next] must be called from a single goroutine. [Watcher.Close] may
// be called from any goroutine.
type Watcher struct {
	fsw     *fsnotify.Watcher
	done    chan struct{}
	dir     string
	pending []Event
	once    sync.Once
}

// New subscribes to dir, creating it first if it does not exist.
func New(dir string) (*Watcher, error) {
	dir = filepath.Clean(dir)

	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("%w: create %q: %w", ErrDirectoryUnavailable, dir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: create fsnotify watcher: %w", ErrDirectoryUnavailable, err)
	}

	err = fsw.Add(dir)
	if err != nil {
		closeErr := fsw.Close()

		return nil, errors.Join(
			fmt.Errorf("%w: add %q to watcher: %w", ErrDirectoryUnavailable, dir, err),
			closeErr,
		)
	}

	return &Watcher{
		fsw:  fsw,
		done: make(chan struct{}),
		dir:  dir,
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Next blocks until the next event is available. It returns the context's
// error if ctx is canceled, [ErrClosed] once the watcher is closed, and
// [ErrDisrupted] if the subscription fails.
func (w *Watcher) Next(ctx context.Context) (Event, error) {
	for {
		if len(w.pending) > 0 {
			evt := w.pending[0]
			w.pending = w.pending[1:]

			return evt, nil
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()

		case <-w.done:
			return Event{}, ErrClosed

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return Event{}, ErrClosed
			}

			err := w.enqueue(evt)
			if err != nil {
				return Event{}, err
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return Event{}, ErrClosed
			}

			return Event{}, fmt.Errorf("%w: %w", ErrDisrupted, err)
		}
	}
}

func (w *Watcher) enqueue(evt fsnotify.Event) error {
	name := filepath.Clean(evt.Name)
	if name == w.dir {
		if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
			return fmt.Errorf("%w: %q was removed", ErrDisrupted, w.dir)
		}

		return nil
	}

	// Only direct children of the watched directory.
	if filepath.Dir(name) != w.dir {
		return nil
	}

	base := filepath.Base(name)

	if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
		w.pending = append(w.pending, Event{Name: base, Op: Delete})
	}
	if evt.Has(fsnotify.Create) {
		w.pending = append(w.pending, Event{Name: base, Op: Create})
	}
	if evt.Has(fsnotify.Write) {
		w.pending = append(w.pending, Event{Name: base, Op: Modify})
	}

	return nil
}

// Close releases the subscription. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error

	w.once.Do(func() {
		close(w.done)

		err = w.fsw.Close()
		if err != nil {
			err = fmt.Errorf("close fsnotify watcher: %w", err)
		}
	})

	return err
}
