// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package logger handles logging for sflowhdr.
//
// This is a thin wrapper around zerolog. Each event gets a "caller"
// field and a "module" field, the package of the first caller inside
// sflowhdr. Filtering logs by module is therefore easy.
package logger

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sflowhdr/common/reporter/stack"
)

// Logger is a logger instance. It exposes the zerolog interface.
type Logger struct {
	zerolog.Logger
}

// New creates a new logger from the global zerolog logger.
func New(config Configuration) (Logger, error) {
	logger := log.Logger.Hook(contextHook{})
	if config.Level != "" {
		level, err := zerolog.ParseLevel(config.Level)
		if err != nil {
			return Logger{}, fmt.Errorf("invalid log level %q: %w", config.Level, err)
		}
		logger = logger.Level(level)
	}
	return Logger{logger}, nil
}

// hookDepth is the number of frames between the hook and the code
// emitting the event. A test checks it.
const hookDepth = 3

type contextHook struct{}

// Run adds "caller" and "module" to an event.
func (contextHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	callStack := stack.Callers()[hookDepth:]
	e.Str("caller", callStack[0].Info().SourceFile())
	if module, ok := moduleOf(callStack); ok {
		e.Str("module", module)
	}
}

// moduleOf returns the package of the first call belonging to sflowhdr.
func moduleOf(callStack stack.Trace) (string, bool) {
	for _, call := range callStack {
		function := call.Info().FunctionName()
		if !strings.HasPrefix(function, stack.ModuleName) {
			continue
		}
		pkg, _, _ := strings.Cut(function, ".")
		return pkg, true
	}
	return "", false
}
