// Package platzlog provides the structured logger every long-running
// engine component embeds. It generalizes the teacher's slog LogHolder:
// a logger held in an atomic pointer so it can be swapped at runtime
// (useful for tests and for a future --debug toggle) without requiring
// every component to thread a *slog.Logger through its constructor.
package platzlog

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
)

// DebugEnabledFunc determines, at log time rather than at logger
// construction time, whether debug-level records should be emitted.
type DebugEnabledFunc func() bool

// EnvDebugEnabled reads PLATZ_DEBUG on every call, so toggling the
// environment variable takes effect without restarting the process.
func EnvDebugEnabled() bool {
	v := os.Getenv("PLATZ_DEBUG")
	return v != "" && v != "0" && v != "false"
}

// debugGateHandler defers the decision to log slog.LevelDebug records to
// a DebugEnabledFunc, while always passing through Info/Warn/Error.
type debugGateHandler struct {
	handler slog.Handler
	enabled DebugEnabledFunc
}

func (h *debugGateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level == slog.LevelDebug {
		if h.enabled == nil {
			return false
		}
		return h.enabled()
	}
	return h.handler.Enabled(ctx, level)
}

func (h *debugGateHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *debugGateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &debugGateHandler{handler: h.handler.WithAttrs(attrs), enabled: h.enabled}
}

func (h *debugGateHandler) WithGroup(name string) slog.Handler {
	return &debugGateHandler{handler: h.handler.WithGroup(name), enabled: h.enabled}
}

// NewHandler builds the engine's default handler: JSON to stderr (so
// container log collectors get structured records), gated by enabled
// for debug-level records.
func NewHandler(enabled DebugEnabledFunc) slog.Handler {
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &debugGateHandler{handler: base, enabled: enabled}
}

// LogHolder is embedded by every component that logs (Store, EventBus,
// ClusterTracker, TaskEngine, ResourceSyncWorker). Components call
// SetLogger once at construction and Logger() thereafter.
type LogHolder struct {
	logger atomic.Pointer[slog.Logger]
}

// discardHandler drops every record; used before SetLogger is ever called
// and when a caller explicitly passes a nil handler.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Logger returns the held logger, or a discarding logger if none was set.
func (l *LogHolder) Logger() *slog.Logger {
	if lg := l.logger.Load(); lg != nil {
		return lg
	}
	return slog.New(discardHandler{})
}

// SetLogger installs newHandler, or a discarding handler if nil.
func (l *LogHolder) SetLogger(newHandler slog.Handler) {
	if newHandler == nil {
		l.logger.Store(slog.New(discardHandler{}))
		return
	}
	l.logger.Store(slog.New(newHandler))
}

// WithComponent returns a logger holder pre-tagged with a "component"
// attribute, for the common case of one logger per subsystem.
func WithComponent(name string) *LogHolder {
	h := &LogHolder{}
	h.SetLogger(NewHandler(EnvDebugEnabled).WithAttrs([]slog.Attr{slog.String("component", name)}))
	return h
}
