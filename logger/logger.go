/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger wraps logrus behind a small interface so every component in
// this server is constructed with a FuncLog instead of a concrete logging
// library, matching the dependency-injection shape the rest of the
// coordinator's components use for their other collaborators.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields are structured key/value pairs attached to a log entry.
type Fields map[string]interface{}

// FuncLog returns a Logger instance; components take this instead of a
// concrete Logger so a fresh instance (with its own fields) can be derived
// per component without changing the component's constructor signature.
type FuncLog func() Logger

// Logger is the logging surface every component in this server depends on.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	// WithFields returns a derived Logger that always includes the given
	// fields, without mutating the receiver.
	WithFields(f Fields) Logger

	Debug(msg string, f ...Fields)
	Info(msg string, f ...Fields)
	Warn(msg string, f ...Fields)
	Error(msg string, f ...Fields)
	Fatal(msg string, f ...Fields)
}

type logger struct {
	mu  sync.RWMutex
	log *logrus.Logger
	fld Fields
}

// New builds a Logger writing to w (stdout by default when w is nil) with
// the given minimal level. File output is added afterwards by passing the
// returned Logger to AddFileHook.
func New(w io.Writer, lvl Level) Logger {
	if w == nil {
		w = os.Stdout
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl.logrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &logger{log: l}
}

// AddFileHook attaches an additional writer (typically an *os.File opened
// for append) that receives every entry regardless of the primary output.
func AddFileHook(l Logger, w io.Writer) {
	if lg, ok := l.(*logger); ok && w != nil {
		lg.log.AddHook(&writerHook{w: w})
	}
}

type writerHook struct {
	w io.Writer
}

func (h *writerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *writerHook) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	_, err = h.w.Write([]byte(line))
	return err
}

func (l *logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.SetLevel(lvl.logrus())
}

func (l *logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch l.log.GetLevel() {
	case logrus.FatalLevel, logrus.PanicLevel:
		return FatalLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.InfoLevel:
		return InfoLevel
	default:
		return DebugLevel
	}
}

func (l *logger) WithFields(f Fields) Logger {
	merged := make(Fields, len(l.fld)+len(f))
	for k, v := range l.fld {
		merged[k] = v
	}
	for k, v := range f {
		merged[k] = v
	}
	return &logger{log: l.log, fld: merged}
}

func (l *logger) entry(f []Fields) *logrus.Entry {
	merged := make(logrus.Fields, len(l.fld))
	for k, v := range l.fld {
		merged[k] = v
	}
	for _, m := range f {
		for k, v := range m {
			merged[k] = v
		}
	}
	return l.log.WithFields(merged)
}

func (l *logger) Debug(msg string, f ...Fields) { l.entry(f).Debug(msg) }
func (l *logger) Info(msg string, f ...Fields)  { l.entry(f).Info(msg) }
func (l *logger) Warn(msg string, f ...Fields)  { l.entry(f).Warn(msg) }
func (l *logger) Error(msg string, f ...Fields) { l.entry(f).Error(msg) }
// Fatal logs at error severity rather than calling logrus' Fatal, which
// would os.Exit from inside a worker goroutine; callers decide on shutdown.
func (l *logger) Fatal(msg string, f ...Fields) { l.entry(f).Error(msg) }

// Discard is a Logger that drops every entry, used as a safe zero-value for
// components constructed without an explicit FuncLog (tests, mostly).
func Discard() Logger {
	return New(io.Discard, FatalLevel)
}
