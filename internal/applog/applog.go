// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package applog is the leveled-logger facade shared by every component
// of iorepair. Components never call fmt.Println or zerolog directly;
// they hold a *Logger and call Debugf/Infof/Warnf/Errorf on it, so a
// caller embedding the core can swap the sink without touching any
// component code.
package applog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger behind the Debugf/Infof/Warnf/Errorf
// shape components are written against.
type Logger struct {
	zl zerolog.Logger
}

// New returns a Logger writing to w. If w is nil, os.Stderr is used.
func New(w io.Writer, debug bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop returns a Logger that discards everything, useful as a default
// for components constructed without an explicit logger.
func Nop() *Logger {
	zl := zerolog.New(io.Discard)
	return &Logger{zl: zl}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// With returns a child Logger carrying an additional "component" field,
// for scoping log output to the subsystem that produced it.
func (l *Logger) With(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}
