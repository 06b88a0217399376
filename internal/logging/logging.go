// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package logging adds caller context to logrus entries. Every package of the
// server logs through a ContextLogger so that fault reports carry the
// function and line that raised them.

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ContextLogger wraps a logrus.Logger.
type ContextLogger struct {
	*logrus.Logger
}

// LogFields is an alias for the field map of the underlying logger.
type LogFields logrus.Fields

// WithContext adds a "context" field holding the caller's function name and
// source line.
func (l *ContextLogger) WithContext() *logrus.Entry {
	return l.WithFields(logrus.Fields{"context": callerContext(2)})
}

// WithContextFields is WithContext for logs that carry fields. An existing
// "context" field is renamed to "fields.context".
func (l *ContextLogger) WithContextFields(fields LogFields) *logrus.Entry {
	if v, ok := fields["context"]; ok {
		fields["fields.context"] = v
	}
	fields["context"] = callerContext(2)
	return l.WithFields(logrus.Fields(fields))
}

func callerContext(skip int) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	name := filepath.Base(file)
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = fn.Name()
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	return fmt.Sprintf("%s#%d", name, line)
}

// Wrap adapts an existing logrus logger. A nil logger yields Default().
func Wrap(l *logrus.Logger) *ContextLogger {
	if l == nil {
		return Default()
	}
	return &ContextLogger{l}
}

// New builds a logger writing to out with the given level and format
// ("text" or "json").
func New(out io.Writer, level, format string) (*ContextLogger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	var formatter logrus.Formatter
	switch format {
	case "", "text":
		formatter = &logrus.TextFormatter{FullTimestamp: true}
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	if out == nil {
		out = os.Stderr
	}
	return &ContextLogger{
		&logrus.Logger{
			Out:       out,
			Formatter: formatter,
			Hooks:     make(logrus.LevelHooks),
			Level:     lvl,
		},
	}, nil
}

var defaultLogger = &ContextLogger{
	&logrus.Logger{
		Out:       os.Stderr,
		Formatter: &logrus.TextFormatter{FullTimestamp: true},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	},
}

// Default returns the package logger used when none is configured.
func Default() *ContextLogger { return defaultLogger }
