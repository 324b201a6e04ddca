// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured, leveled logging used across
// blockfs, grounded on the teacher's internal/logger package: a
// package-level default logger built on log/slog, a TRACE level below
// slog's Debug, a "severity" attribute (renamed from slog's default
// "level"), and a pluggable text/JSON handler selected by format string.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// LevelTrace sits one tier below slog.LevelDebug, exactly as the
// teacher's logger defines a custom trace severity that slog has no
// built-in level for.
const LevelTrace = slog.Level(-8)

type loggerFactory struct {
	format string // "text" or "json"
	prefix string
}

var defaultLoggerFactory = &loggerFactory{format: "text"}

var programLevel = new(slog.LevelVar)

var defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))

// Init reconfigures the default logger's format and minimum level. Call
// once during startup (cmd/blockfsd wires this to its --log-format and
// --log-level flags).
func Init(format, level string) {
	defaultLoggerFactory.format = format
	setLoggingLevel(level, programLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, defaultLoggerFactory.prefix))
}

func setLoggingLevel(level string, v *slog.LevelVar) {
	switch level {
	case "trace":
		v.Set(LevelTrace)
	case "debug":
		v.Set(slog.LevelDebug)
	case "warning":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			a.Key = "severity"
			a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
		case slog.MessageKey:
			a.Value = slog.StringValue(prefix + a.Value.String())
		}
		return a
	}
	opts := &slog.HandlerOptions{Level: levelVar, ReplaceAttr: replace}
	if f.format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// logf mirrors the teacher's *f-suffixed helpers, which accept a
// printf-style format string rather than slog's structured key/value
// pairs.
func logf(level slog.Level, format string, args ...any) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	defaultLogger.Log(context.Background(), level, msg)
}

// Tracef logs at LevelTrace.
func Tracef(format string, args ...any) { logf(LevelTrace, format, args...) }

// Debugf logs at slog.LevelDebug.
func Debugf(format string, args ...any) { logf(slog.LevelDebug, format, args...) }

// Infof logs at slog.LevelInfo.
func Infof(format string, args ...any) { logf(slog.LevelInfo, format, args...) }

// Warnf logs at slog.LevelWarn.
func Warnf(format string, args ...any) { logf(slog.LevelWarn, format, args...) }

// Errorf logs at slog.LevelError.
func Errorf(format string, args ...any) { logf(slog.LevelError, format, args...) }
