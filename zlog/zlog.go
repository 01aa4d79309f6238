// Package zlog wires the scheduler's Logger facade to zerolog, the way the
// teacher repository's logiface-zerolog submodule wires its logging facade
// to the same library.
package zlog

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/tonestone57/haiku-sub004"
)

// Logger adapts a zerolog.Logger to the scheduler.Logger interface.
type Logger struct {
	zl zerolog.Logger
}

// New returns a scheduler.Logger backed by zerolog, writing to w at the
// given minimum level.
func New(w io.Writer, level scheduler.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(toZerolog(level)).With().Timestamp().Logger()}
}

func toZerolog(l scheduler.Level) zerolog.Level {
	switch l {
	case scheduler.LevelDebug:
		return zerolog.DebugLevel
	case scheduler.LevelInfo:
		return zerolog.InfoLevel
	case scheduler.LevelWarn:
		return zerolog.WarnLevel
	case scheduler.LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *Logger) Enabled(level scheduler.Level) bool {
	return toZerolog(level) >= l.zl.GetLevel()
}

func (l *Logger) Log(e scheduler.Event) {
	var ev *zerolog.Event
	switch e.Level {
	case scheduler.LevelDebug:
		ev = l.zl.Debug()
	case scheduler.LevelWarn:
		ev = l.zl.Warn()
	case scheduler.LevelError:
		ev = l.zl.Error()
	default:
		ev = l.zl.Info()
	}

	ev = ev.Str("category", e.Category)
	if e.CPU != 0 {
		ev = ev.Int("cpu", e.CPU)
	}
	if e.Core != 0 {
		ev = ev.Int("core", e.Core)
	}
	if e.Package != 0 {
		ev = ev.Int("pkg", e.Package)
	}
	if e.ThreadID != 0 {
		ev = ev.Int64("thread", e.ThreadID)
	}
	if e.IRQ != 0 {
		ev = ev.Int("irq", e.IRQ)
	}
	for k, v := range e.Fields {
		ev = ev.Interface(k, v)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(e.Message)
}
