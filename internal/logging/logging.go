// Package logging wraps go.uber.org/zap with the two pieces of context
// every core package needs attached to every line: which backup run
// produced it, and which destination (if any) it concerns.
package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// Logger is the structured logger handed to every component. It is a
// thin facade over *zap.SugaredLogger so call sites read as
// log.Infow("copied file", "path", relPath, "bytes", n) rather than
// building zap.Field values by hand.
type Logger struct {
	s *zap.SugaredLogger
}

var base = mustBuild()

func mustBuild() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		// zap's production config never fails to build in practice; if it
		// somehow does, fall back to a no-op logger rather than panic in an
		// init path that every package transitively depends on.
		return zap.NewNop()
	}

	return l
}

// Module returns a Logger scoped to a package/component name, mirroring
// the "one named logger per package" convention used throughout.
func Module(name string) *Logger {
	return &Logger{s: base.Sugar().Named(name)}
}

// WithSession returns a derived Logger with session_id and run_name
// fields attached to every subsequent line.
func (l *Logger) WithSession(sessionID, runName string) *Logger {
	return &Logger{s: l.s.With("session_id", sessionID, "run_name", runName)}
}

// WithDestination returns a derived Logger tagged with a destination name.
func (l *Logger) WithDestination(name string) *Logger {
	return &Logger{s: l.s.With("destination", name)}
}

func (l *Logger) Debugw(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

// Sync flushes any buffered log entries; callers should defer it from main.
func (l *Logger) Sync() error { return l.s.Sync() }

// WithContext stashes a Logger on ctx so deeply nested calls that don't
// carry an explicit logger argument can still log with the right
// session/destination fields attached.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stashed by WithContext, or a fresh
// unscoped one if none was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}

	return Module("imageintactcore")
}
