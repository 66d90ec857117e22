// Package diagnostics keeps an append-only trail of trace and error events.
//
// A Logger mirrors every entry into an in-memory buffer and a persistent
// Store. Persistence failures are reported on a side channel and never
// reach the caller.
package diagnostics

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// timestampLayout renders UTC ISO-8601 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Logger is a diagnostic logging context. The zero value is not usable;
// construct with NewLogger.
type Logger struct {
	mu          sync.Mutex
	store       Store
	side        *zap.Logger
	now         func() time.Time
	entries     []string
	initialized bool
	debug       bool
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// NewLogger creates an uninitialized logger persisting to store. side
// receives persistence failures; nil discards them.
func NewLogger(store Store, side *zap.Logger, opts ...Option) *Logger {
	if side == nil {
		side = zap.NewNop()
	}

	l := &Logger{
		mu:      sync.Mutex{},
		store:   store,
		side:    side,
		now:     time.Now,
		entries: make([]string, 0),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Initialize moves the logger into the initialized state with the given
// debug flag, prepares the store and persists an initialization record.
// It may be called again to change the flag; the buffer is kept.
// Store failures are reported and returned, the state changes regardless.
func (l *Logger) Initialize(ctx context.Context, debug bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.initializeLocked(ctx, debug)
}

func (l *Logger) initializeLocked(ctx context.Context, debug bool) error {
	l.debug = debug
	l.initialized = true

	if err := l.store.Ensure(ctx); err != nil {
		l.report("failed to prepare log location", err)
		return err
	}

	if err := l.store.Append(ctx, formatInit(l.timestamp(), debug)); err != nil {
		l.report("failed to write to log file", err)
		return err
	}

	return nil
}

// IsInitialized reports whether the logger has been initialized.
func (l *Logger) IsInitialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.initialized
}

// IsDebugEnabled reports whether trace payloads are recorded.
func (l *Logger) IsDebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.debug
}

// Trace records message. data is appended as indented JSON in debug mode.
func (l *Logger) Trace(ctx context.Context, message string, data any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureInitialized(ctx)

	var payload any
	if l.debug {
		payload = data
	}

	l.record(ctx, formatTrace(l.timestamp(), message, payload))
}

// Error records a failure. An error value contributes its name, message
// and stack; any other non-nil value is appended as indented JSON.
func (l *Logger) Error(ctx context.Context, message string, err any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureInitialized(ctx)

	l.record(ctx, formatError(l.timestamp(), message, err))
}

// Content returns a copy of the in-memory buffer.
func (l *Logger) Content() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear empties the in-memory buffer. Persisted entries are untouched.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]string, 0)
}

// ensureInitialized performs the implicit debug-mode initialization on
// first use. Must be called with mu held.
func (l *Logger) ensureInitialized(ctx context.Context) {
	if l.initialized {
		return
	}
	_ = l.initializeLocked(ctx, true)
}

// record buffers entry and persists it. Must be called with mu held.
func (l *Logger) record(ctx context.Context, entry string) {
	l.entries = append(l.entries, entry)

	if err := l.store.Append(ctx, entry); err != nil {
		l.report("failed to write to log file", err)
	}
}

func (l *Logger) report(msg string, err error) {
	l.side.Warn(msg, zap.Error(err))
}

func (l *Logger) timestamp() string {
	return l.now().UTC().Format(timestampLayout)
}
