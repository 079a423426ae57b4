// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log is the level-aware structured logger of the msq tools.
//
// It wraps log/slog with a text or JSON handler. Every record carries an
// optional tag naming the component that emitted it.
package log

import (
	"context"
	"io"
	"log/slog"
)

// Tag names the component a record comes from.
type Tag interface {
	String() string
}

// Logger writes leveled records through slog.
type Logger struct {
	slog  *slog.Logger
	level Level
}

// NewText creates a logger writing logfmt-style text to w.
func NewText(w io.Writer) *Logger {
	return &Logger{
		slog: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:       slog.Level(LevelDebug),
			ReplaceAttr: replaceAttr,
		})),
		level: LevelInfo,
	}
}

// NewJson creates a logger writing one JSON object per record to w.
func NewJson(w io.Writer) *Logger {
	return &Logger{
		slog: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       slog.Level(LevelDebug),
			ReplaceAttr: replaceAttr,
		})),
		level: LevelInfo,
	}
}

// SetLevel sets the logging level and returns the previous level.
func (l *Logger) SetLevel(level Level) (prev Level) {
	prev = l.level
	l.level = level
	return
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) log(t Tag, msg string, level Level, v ...any) {
	if l.level > level {
		return
	}
	if t != nil {
		v = append([]any{"tag", t.String()}, v...)
	}
	l.slog.Log(context.Background(), slog.Level(level), msg, v...)
}

// Debug level message.
func (l *Logger) Debug(t Tag, msg string, v ...any) {
	l.log(t, msg, LevelDebug, v...)
}

// Info level message.
func (l *Logger) Info(t Tag, msg string, v ...any) {
	l.log(t, msg, LevelInfo, v...)
}

// Warn level message.
func (l *Logger) Warn(t Tag, msg string, v ...any) {
	l.log(t, msg, LevelWarn, v...)
}

// Error level message.
func (l *Logger) Error(t Tag, msg string, v ...any) {
	l.log(t, msg, LevelError, v...)
}

func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		a.Value = slog.StringValue(Level(level).String())
	}
	return a
}
