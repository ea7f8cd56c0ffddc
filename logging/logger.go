package logging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging interface shared by every package.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Fields: maps passed to a call are copied; callers may reuse them.
//   - Debug records are dropped unless the threshold is LevelDebug or higher.
type Logger interface {
	Success(msg string, fields ...Fields)
	Error(msg string, fields ...Fields)
	Warning(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Notice(msg string, fields ...Fields)
	Debug(msg string, fields ...Fields)

	// Log writes a prepared record.
	Log(r Record)

	// SetLevel changes the threshold of the logger and of loggers derived
	// from it with With.
	SetLevel(level Level)

	// With returns a logger that adds fields to every record.
	With(fields Fields) Logger

	// Close flushes and releases the file sink. It is safe to call twice.
	Close() error
}

// Option configures New.
type Option func(*options)

type options struct {
	console io.Writer
	input   io.Reader
	cores   []zapcore.Core
}

// WithConsole sets the console writer. The default is os.Stdout.
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// WithCore tees records into an additional zap core.
func WithCore(core zapcore.Core) Option {
	return func(o *options) {
		if core != nil {
			o.cores = append(o.cores, core)
		}
	}
}

// sinks is shared by a logger and everything derived from it with With.
type sinks struct {
	mu      sync.Mutex
	console io.Writer
	styles  consoleStyles
	file    *zap.Logger
	closer  io.Closer
	closed  bool

	inMu     sync.Mutex
	rawInput io.Reader
	input    *bufio.Reader
}

// StructuredLogger renders records to the console and, when configured,
// to a rotating log file through zap.
type StructuredLogger struct {
	out    *sinks
	level  *atomic.Int64
	prefix string
	base   Fields
}

var _ Logger = (*StructuredLogger)(nil)

// New builds a logger from cfg.
func New(cfg Config, opts ...Option) (*StructuredLogger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{console: os.Stdout, input: os.Stdin}
	for _, opt := range opts {
		opt(&o)
	}

	out := &sinks{
		console:  o.console,
		styles:   newConsoleStyles(o.console, cfg.NoColor),
		rawInput: o.input,
		input:    newInput(o.input),
	}

	cores := o.cores
	if cfg.LogFile != "" {
		core, closer, err := newFileCore(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, core)
		out.closer = closer
	}
	if len(cores) > 0 {
		out.file = zap.New(zapcore.NewTee(cores...)).Named(cfg.Name)
	}

	l := &StructuredLogger{out: out, level: new(atomic.Int64)}
	l.level.Store(int64(cfg.Level))
	if cfg.DryRun {
		l.prefix = "[DRY-RUN] "
	}
	return l, nil
}

// NewWithWriter builds a logger whose console output goes to w.
func NewWithWriter(cfg Config, w io.Writer) (*StructuredLogger, error) {
	return New(cfg, WithConsole(w))
}

// NewNop returns a logger that discards everything.
func NewNop() *StructuredLogger {
	l := &StructuredLogger{
		out:   &sinks{console: io.Discard, styles: newConsoleStyles(io.Discard, true)},
		level: new(atomic.Int64),
	}
	l.level.Store(int64(LevelInfo))
	return l
}

// newConsoleLogger never fails; it backs Initialize when New does.
func newConsoleLogger(w io.Writer) *StructuredLogger {
	l := &StructuredLogger{
		out:   &sinks{console: w, styles: newConsoleStyles(w, false)},
		level: new(atomic.Int64),
	}
	l.level.Store(int64(LevelInfo))
	return l
}

func (l *StructuredLogger) Success(msg string, fields ...Fields) {
	l.Log(NewRecord(LevelSuccess, msg, fields...))
}

func (l *StructuredLogger) Error(msg string, fields ...Fields) {
	l.Log(NewRecord(LevelError, msg, fields...))
}

func (l *StructuredLogger) Warning(msg string, fields ...Fields) {
	l.Log(NewRecord(LevelWarning, msg, fields...))
}

func (l *StructuredLogger) Info(msg string, fields ...Fields) {
	l.Log(NewRecord(LevelInfo, msg, fields...))
}

func (l *StructuredLogger) Notice(msg string, fields ...Fields) {
	l.Log(NewRecord(LevelNotice, msg, fields...))
}

func (l *StructuredLogger) Debug(msg string, fields ...Fields) {
	if !l.debugEnabled() {
		return
	}
	l.Log(NewRecord(LevelDebug, msg, fields...))
}

func (l *StructuredLogger) Log(r Record) {
	if r.Level == LevelDebug && !l.debugEnabled() {
		return
	}
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	if len(l.base) > 0 {
		r.Fields = mergeFields(l.base, r.Fields)
	}
	l.out.write(r, l.prefix)
}

func (l *StructuredLogger) SetLevel(level Level) {
	l.level.Store(int64(level))
}

// Level returns the current threshold.
func (l *StructuredLogger) Level() Level {
	return Level(l.level.Load())
}

func (l *StructuredLogger) With(fields Fields) Logger {
	return &StructuredLogger{
		out:    l.out,
		level:  l.level,
		prefix: l.prefix,
		base:   mergeFields(l.base, fields),
	}
}

func (l *StructuredLogger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	if l.out.closed {
		return nil
	}
	l.out.closed = true

	var errs []error
	if l.out.file != nil {
		// Sync reports EINVAL for some writers; the rotator flushes on Close.
		_ = l.out.file.Sync()
	}
	if l.out.closer != nil {
		if err := l.out.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("logging: close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (l *StructuredLogger) debugEnabled() bool {
	return Level(l.level.Load()) >= LevelDebug
}

func (s *sinks) write(r Record, prefix string) {
	line := s.styles.render(r, prefix)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.console != nil {
		_, _ = io.WriteString(s.console, line)
	}
	s.writeFile(r, prefix+r.Message)
}

// writeFile must be called with s.mu held.
func (s *sinks) writeFile(r Record, msg string) {
	if s.file == nil || s.closed {
		return
	}
	if ce := s.file.Check(r.Level.zapLevel(), msg); ce != nil {
		ce.Time = r.Time
		ce.Write(zapFields(r)...)
	}
}
