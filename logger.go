package seqcompute

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/genoscope/seqcompute/backend/gpu"
	"github.com/genoscope/seqcompute/dispatch"
	"github.com/genoscope/seqcompute/pool"
	"github.com/genoscope/seqcompute/worker"
)

// nopHandler is a slog.Handler that silently discards all records.
// Enabled returns false so callers skip message formatting entirely,
// making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// SetLogger configures logging for seqcompute and all sub-packages.
// By default no log output is produced. Pass nil to restore the
// default silent behavior. Safe for concurrent use.
//
// Log levels used:
//   - [slog.LevelDebug]: internal diagnostics (tier fallbacks, slot
//     lifecycle, pipeline compilation)
//   - [slog.LevelInfo]: lifecycle events (GPU adapter selected, tier
//     disabled)
//   - [slog.LevelWarn]: non-fatal issues (overflow slot creation,
//     eviction of referenced buffers)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	pool.SetLogger(l)
	worker.SetLogger(l)
	dispatch.SetLogger(l)
	gpu.SetLogger(l)
}

func slogger() *slog.Logger {
	return loggerPtr.Load()
}
