// Package loader turns rule files into validated [rule.Definition]s.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulesync/pkg/engine"
	"github.com/macropower/rulesync/pkg/log"
	"github.com/macropower/rulesync/pkg/rule"
)

var (
	// ErrUnsupportedFile is returned for files without a recognized rule
	// file extension.
	ErrUnsupportedFile = errors.New("unsupported file")
	// ErrParse is returned when a rule file is rejected by the validation
	// authority.
	ErrParse = errors.New("parse rule file")
	// ErrNotFound is returned when the rule file does not exist.
	ErrNotFound = errors.New("rule file not found")
)

// Loader reads rule files from a single directory.
type Loader struct {
	compiler engine.Compiler
	tracer   trace.Tracer
	now      func() time.Time
	dir      string
	exts     []string
}

// LoaderOpt configures a [Loader].
type LoaderOpt func(*Loader)

// WithExtensions sets the recognized rule file extensions.
func WithExtensions(exts ...string) LoaderOpt {
	return func(l *Loader) {
		l.exts = exts
	}
}

// WithClock sets the function used to timestamp loaded definitions.
func WithClock(now func() time.Time) LoaderOpt {
	return func(l *Loader) {
		l.now = now
	}
}

// New creates a [Loader] for rule files in dir.
func New(dir string, compiler engine.Compiler, opts ...LoaderOpt) *Loader {
	l := &Loader{
		compiler: compiler,
		tracer:   otel.Tracer("rule-loader"),
		now:      time.Now,
		dir:      dir,
		exts:     rule.DefaultExtensions,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Dir returns the directory rule files are read from.
func (l *Loader) Dir() string {
	return l.dir
}

// CanonicalName returns the catalog key for filename, or false if the file
// is not a rule file.
func (l *Loader) CanonicalName(filename string) (string, bool) {
	return rule.CanonicalName(filename, l.exts)
}

// Load reads, validates and names the rule file called filename.
func (l *Loader) Load(ctx context.Context, filename string) (*rule.Definition, error) {
	filename = filepath.Base(filename)

	ctx, span := l.tracer.Start(ctx, "load", trace.WithAttributes(
		attribute.String("file", filename),
	))
	defer span.End()

	logger := log.WithContext(ctx).With(slog.String("file", filename))

	def, err := l.load(ctx, logger, filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule rejected")

		if errors.Is(err, ErrUnsupportedFile) {
			logger.DebugContext(ctx, "ignoring file", slog.Any("err", err))
		} else {
			logger.WarnContext(ctx, "rejected rule file",
				slog.String("class", ErrorClass(err)),
				slog.Any("err", err),
			)
		}

		return nil, err
	}

	span.SetAttributes(attribute.String("rule", def.Name))

	return def, nil
}

func (l *Loader) load(ctx context.Context, logger *slog.Logger, filename string) (*rule.Definition, error) {
	name, ok := l.CanonicalName(filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}

	path := filepath.Join(l.dir, filename)

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat rule file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrUnsupportedFile, filename)
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		// Removed between stat and read.
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}

	compiled, err := l.compiler.Compile(content)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrParse, filename, err)
	}

	def := &rule.Definition{
		LoadedAt:     l.now(),
		Name:         name,
		DeclaredName: compiled.Spec.Name,
		SourcePath:   path,
		Content:      content,
		Spec:         compiled.Spec,
	}

	if def.NameOverridden() {
		logger.InfoContext(ctx, "rule name does not match file name, using file name",
			slog.String("declared", def.DeclaredName),
			slog.String("name", def.Name),
		)

		def.Spec.Name = name
	}

	return def, nil
}

// ErrorClass returns a short label for a [Loader.Load] error, suitable for
// metric labels.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrUnsupportedFile):
		return "unsupported"
	}

	return "io"
}
