// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package stack resolves the callers of a function. It is used to
// prefix metrics with the calling package and to annotate logs.
package stack

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Call is a program counter from a goroutine stack.
type Call uintptr

// Trace is a list of calls, innermost first.
type Trace []Call

var pcPool = sync.Pool{
	New: func() any {
		pcs := make([]uintptr, 64)
		return &pcs
	},
}

// Callers returns the calls leading to the caller of Callers.
func Callers() Trace {
	pcs := pcPool.Get().(*[]uintptr)
	defer pcPool.Put(pcs)
	n := runtime.Callers(2, *pcs)
	trace := make(Trace, n)
	for i, pc := range (*pcs)[:n] {
		trace[i] = Call(pc)
	}
	return trace
}

// Info describes a call point.
type Info struct {
	function string
	file     string
	line     int
}

// Info resolves the call point.
func (pc Call) Info() Info {
	frame, _ := runtime.CallersFrames([]uintptr{uintptr(pc)}).Next()
	return Info{
		function: frame.Function,
		file:     frame.File,
		line:     frame.Line,
	}
}

// FunctionName returns the fully-qualified function name, like
// sflowhdr/inlet/flow.(*Component).Start.
func (i Info) FunctionName() string {
	if i.function == "" {
		return "(nofunc)"
	}
	return i.function
}

// SourceFile returns the source file and the line of the call point,
// relative to the module, like sflowhdr/inlet/flow/root.go:54.
func (i Info) SourceFile() string {
	dot := strings.Index(i.function, ".")
	if i.file == "" || dot == -1 {
		return "(nosource)"
	}
	module, _, _ := strings.Cut(i.function[:dot], "/")
	// Keep as many directories as there are in the package path.
	parts := strings.Split(i.file, "/")
	if keep := strings.Count(i.function, "/") + 1; len(parts) > keep {
		parts = parts[len(parts)-keep:]
	}
	return fmt.Sprintf("%s/%s:%d", module, strings.Join(parts, "/"), i.line)
}

// ModuleName is the name of the current module, used as a prefix.
var ModuleName = func() string {
	self := runtime.FuncForPC(reflect.ValueOf(Callers).Pointer()).Name()
	return strings.TrimSuffix(self, "/common/reporter/stack.Callers")
}()
