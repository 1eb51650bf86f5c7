// Package rulesync keeps a [catalog.Catalog] in step with a directory of
// rule files.
//
// A [Syncer] loads every rule file once at startup, and then applies each
// directory event as it arrives:
//
//   - Create loads the file and adds the rule if it is valid.
//   - Delete removes the rule named after the file.
//   - Modify removes the rule and loads the file again.
//
// Invalid files are logged and skipped. They never stop the loop.
package rulesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulesync/pkg/catalog"
	"github.com/macropower/rulesync/pkg/loader"
	"github.com/macropower/rulesync/pkg/log"
	"github.com/macropower/rulesync/pkg/metrics"
	"github.com/macropower/rulesync/pkg/rule"
	"github.com/macropower/rulesync/pkg/watch"
)

// ErrRestartsExhausted is returned by [Syncer.Run] when a disrupted
// subscription could not be re-established.
var ErrRestartsExhausted = errors.New("watch restarts exhausted")

// EventSource supplies directory events. [*watch.Watcher] implements it.
type EventSource interface {
	Next(ctx context.Context) (watch.Event, error)
	Close() error
}

// WatchFunc subscribes to a directory.
type WatchFunc func(dir string) (EventSource, error)

// RestartPolicy bounds how a disrupted subscription is re-established.
type RestartPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxAttempts is the number of subscription attempts per disruption.
	// Zero means no limit.
	MaxAttempts uint
}

// DefaultRestartPolicy is used when no [RestartPolicy] is configured.
var DefaultRestartPolicy = RestartPolicy{
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     30 * time.Second,
	MaxAttempts:     10,
}

// Syncer is the sole writer of a [catalog.Catalog].
type Syncer struct {
	catalog *catalog.Catalog
	loader  *loader.Loader
	watch   WatchFunc
	metrics *metrics.Metrics
	tracer  trace.Tracer
	stop    chan struct{}
	restart RestartPolicy
	once    sync.Once
	state   atomic.Int32
}

// SyncerOpt configures a [Syncer].
type SyncerOpt func(*Syncer)

// WithMetrics records loop activity in m.
func WithMetrics(m *metrics.Metrics) SyncerOpt {
	return func(s *Syncer) {
		s.metrics = m
	}
}

// WithWatchFunc replaces the function used to subscribe to the directory.
func WithWatchFunc(fn WatchFunc) SyncerOpt {
	return func(s *Syncer) {
		s.watch = fn
	}
}

// WithRestartPolicy sets how a disrupted subscription is re-established.
func WithRestartPolicy(p RestartPolicy) SyncerOpt {
	return func(s *Syncer) {
		s.restart = p
	}
}

// New creates a [Syncer] that maintains cat from the files read by l.
func New(cat *catalog.Catalog, l *loader.Loader, opts ...SyncerOpt) *Syncer {
	s := &Syncer{
		catalog: cat,
		loader:  l,
		watch:   watchDir,
		tracer:  otel.Tracer("rule-syncer"),
		stop:    make(chan struct{}),
		restart: DefaultRestartPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setState(StateInit)

	return s
}

func watchDir(dir string) (EventSource, error) {
	w, err := watch.New(dir)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped by watch.
	}

	return w, nil
}

// State returns the current loop state.
func (s *Syncer) State() State {
	return State(s.state.Load())
}

func (s *Syncer) setState(state State) {
	s.state.Store(int32(state))
	s.metrics.SetLoopState(int(state))
}

// Run subscribes to the rule directory, reconciles the catalog with it, and
// then applies directory events until ctx is canceled or [Syncer.Close] is
// called, in which case it returns nil.
//
// If the directory cannot be subscribed to, Run returns an error wrapping
// [watch.ErrDirectoryUnavailable] without touching the catalog.
func (s *Syncer) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	select {
	case <-s.stop:
		return nil
	default:
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger := log.WithContext(ctx).With(slog.String("dir", s.loader.Dir()))

	// Subscribe first so that files written during the scan are not missed.
	src, err := s.watch(s.loader.Dir())
	if err != nil {
		return fmt.Errorf("subscribe to rule directory: %w", err)
	}

	defer func() {
		s.closeSource(ctx, src)
	}()

	err = s.Reconcile(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "reconcile rule directory", slog.Any("err", err))
	}

	for {
		s.setState(StateWaiting)

		evt, err := src.Next(ctx)
		if err == nil {
			s.setState(StateProcessing)
			s.Apply(ctx, evt)

			continue
		}

		if ctx.Err() != nil || errors.Is(err, watch.ErrClosed) {
			logger.DebugContext(ctx, "stopping rule sync", slog.Any("reason", err))

			return nil
		}

		logger.WarnContext(ctx, "rule directory watch disrupted", slog.Any("err", err))

		s.closeSource(ctx, src)

		src, err = s.resubscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			logger.ErrorContext(ctx, "rule directory watch could not be restarted", slog.Any("err", err))

			return err
		}

		s.metrics.IncWatchRestarts()
		logger.InfoContext(ctx, "rule directory watch restarted")

		// Events may have been lost while disrupted.
		err = s.Reconcile(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "reconcile rule directory", slog.Any("err", err))
		}
	}
}

// Close stops [Syncer.Run]. A Run that starts after Close returns nil
// immediately. Close is safe to call more than once.
func (s *Syncer) Close() {
	s.once.Do(func() {
		close(s.stop)
	})
}

func (s *Syncer) closeSource(ctx context.Context, src EventSource) {
	if src == nil {
		return
	}

	err := src.Close()
	if err != nil {
		log.WithContext(ctx).WarnContext(ctx, "close rule directory watch", slog.Any("err", err))
	}
}

//nolint:ireturn // Returns the configured EventSource.
func (s *Syncer) resubscribe(ctx context.Context) (EventSource, error) {
	s.setState(StateRestarting)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.restart.InitialInterval
	b.MaxInterval = s.restart.MaxInterval

	logger := log.WithContext(ctx)

	src, err := backoff.Retry(ctx, func() (EventSource, error) {
		return s.watch(s.loader.Dir())
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.restart.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "retrying rule directory watch",
				slog.Any("err", err),
				slog.Duration("in", next),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRestartsExhausted, err)
	}

	return src, nil
}

// Reconcile loads every rule file in the directory into the catalog, and
// removes catalog entries that no longer have a valid file.
func (s *Syncer) Reconcile(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "reconcile")
	defer span.End()

	start := time.Now()
	logger := log.WithContext(ctx).With(slog.String("dir", s.loader.Dir()))

	entries, err := os.ReadDir(s.loader.Dir())
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("read rule directory: %w", err)
	}

	var (
		loaded = make(map[string]string, len(entries))
		folded = make(map[string]string, len(entries))
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()

		name, ok := s.loader.CanonicalName(filename)
		if !ok {
			logger.DebugContext(ctx, "ignoring file", slog.String("file", filename))

			continue
		}

		if other, ok := folded[strings.ToLower(name)]; ok {
			logger.WarnContext(ctx, "multiple files map to the same rule name",
				slog.String("name", name),
				slog.String("file", filename),
				slog.String("other", other),
			)
		}

		folded[strings.ToLower(name)] = filename

		def, err := s.load(ctx, filename)
		if err != nil {
			continue
		}

		s.catalog.Upsert(def)

		loaded[def.Name] = filename
	}

	for _, name := range s.catalog.Names() {
		if _, ok := loaded[name]; !ok {
			s.catalog.Remove(name)
			logger.InfoContext(ctx, "removed rule without a valid file", slog.String("name", name))
		}
	}

	s.metrics.SetCatalogRules(s.catalog.Len())
	s.metrics.ObserveReconcile(time.Since(start).Seconds())

	span.SetAttributes(attribute.Int("rules", s.catalog.Len()))
	logger.InfoContext(ctx, "reconciled rule directory",
		slog.Int("rules", s.catalog.Len()),
		slog.Duration("took", time.Since(start)),
	)

	return nil
}

// Apply applies a single directory event to the catalog.
func (s *Syncer) Apply(ctx context.Context, evt watch.Event) {
	ctx, span := s.tracer.Start(ctx, "event", trace.WithAttributes(
		attribute.String("op", evt.Op.String()),
		attribute.String("file", evt.Name),
	))
	defer span.End()

	s.metrics.ObserveEvent(evt.Op.String())

	logger := log.WithContext(ctx).With(
		slog.String("op", evt.Op.String()),
		slog.String("file", evt.Name),
	)
	logger.DebugContext(ctx, "handling event")

	switch evt.Op {
	case watch.Create:
		s.add(ctx, evt.Name)

	case watch.Delete:
		s.remove(ctx, evt.Name)

	case watch.Modify:
		s.remove(ctx, evt.Name)
		s.add(ctx, evt.Name)

	default:
		logger.WarnContext(ctx, "unknown event operation")
	}

	s.metrics.SetCatalogRules(s.catalog.Len())
}

func (s *Syncer) add(ctx context.Context, filename string) {
	def, err := s.load(ctx, filename)
	if err != nil {
		return
	}

	s.catalog.Upsert(def)
	log.WithContext(ctx).InfoContext(ctx, "loaded rule",
		slog.String("name", def.Name),
		slog.String("file", filename),
	)
}

func (s *Syncer) remove(ctx context.Context, filename string) {
	name, ok := s.loader.CanonicalName(filename)
	if !ok {
		return
	}

	if s.catalog.Remove(name) {
		log.WithContext(ctx).InfoContext(ctx, "removed rule",
			slog.String("name", name),
			slog.String("file", filename),
		)
	}
}

func (s *Syncer) load(ctx context.Context, filename string) (*rule.Definition, error) {
	def, err := s.loader.Load(ctx, filename)
	s.metrics.ObserveLoad(loader.ErrorClass(err))

	return def, err //nolint:wrapcheck // Already wrapped by loader.
}
