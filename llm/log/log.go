/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package log is the leveled, printf-style logger shared by every abdoc package.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	SilentLevel
)

var (
	mu     sync.RWMutex
	level  = InfoLevel
	logger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).With().Timestamp().Logger()
}

// ParseLevel maps a config string ("debug", "info", "warn", "error", "silent") to a Level.
// Unknown values fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "silent", "off", "none":
		return SilentLevel
	}
	return InfoLevel
}

func SetLogLevel(l Level) {
	mu.Lock()
	level = l
	mu.Unlock()
}

func GetLogLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return level
}

// SetOutput redirects all log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = newLogger(w)
	mu.Unlock()
}

func enabled(l Level) (zerolog.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, l >= level && level != SilentLevel
}

func Debug(format string, args ...any) {
	if lg, ok := enabled(DebugLevel); ok {
		lg.Debug().Msgf(strings.TrimRight(format, "\n"), args...)
	}
}

func Info(format string, args ...any) {
	if lg, ok := enabled(InfoLevel); ok {
		lg.Info().Msgf(strings.TrimRight(format, "\n"), args...)
	}
}

func Warn(format string, args ...any) {
	if lg, ok := enabled(WarnLevel); ok {
		lg.Warn().Msgf(strings.TrimRight(format, "\n"), args...)
	}
}

func Error(format string, args ...any) {
	if lg, ok := enabled(ErrorLevel); ok {
		lg.Error().Msgf(strings.TrimRight(format, "\n"), args...)
	}
}
