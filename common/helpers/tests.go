// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

// Package helpers contains small functions usable by any other
// package, both for testing or not.
package helpers

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// CheckExternalService returns the first resolvable candidate
// ("host:port") for an external service, once it accepts TCP
// connections. The test is skipped when the service is unavailable,
// unless CI_SFLOWHDR_FUNCTIONAL_TESTS is set: then it fails.
func CheckExternalService(t *testing.T, name string, candidates []string) string {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skip test with real %s in short mode", name)
	}
	unavailable := t.Skipf
	state := "not set"
	if os.Getenv("CI_SFLOWHDR_FUNCTIONAL_TESTS") != "" {
		unavailable = t.Fatalf
		state = "set"
	}

	server := firstResolvable(t, candidates)
	if server == "" {
		unavailable("%s cannot be resolved (CI_SFLOWHDR_FUNCTIONAL_TESTS is %s)", name, state)
	}
	if err := waitReachable(server, time.Second); err != nil {
		unavailable("%s is not running (CI_SFLOWHDR_FUNCTIONAL_TESTS is %s):\n%+v", name, state, err)
	}
	return server
}

func firstResolvable(t *testing.T, candidates []string) string {
	t.Helper()
	resolver := net.Resolver{PreferGo: true}
	for _, candidate := range candidates {
		host, _, err := net.SplitHostPort(candidate)
		if err != nil {
			t.Fatalf("%s is an invalid candidate", candidate)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		_, err = resolver.LookupHost(ctx, host)
		cancel()
		if err == nil {
			return candidate
		}
	}
	return ""
}

func waitReachable(server string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", server)
		if err == nil {
			conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// StartStop starts a component and stops it on cleanup.
func StartStop(t *testing.T, component interface{}) {
	t.Helper()
	if starterC, ok := component.(starter); ok {
		if err := starterC.Start(); err != nil {
			t.Fatalf("Start() error:\n%+v", err)
		}
	}
	t.Cleanup(func() {
		if stopperC, ok := component.(stopper); ok {
			if err := stopperC.Stop(); err != nil {
				t.Errorf("Stop() error:\n%+v", err)
			}
		}
	})
}

type starter interface {
	Start() error
}
type stopper interface {
	Stop() error
}

// Pos is a file:line recording a test data position.
type Pos struct {
	file string
	line int
}

// Mark reports the file:line position of the source file in which it appears.
func Mark() Pos {
	_, file, line, _ := runtime.Caller(1)
	return Pos{filepath.Base(file), line}
}

// String returns a textual representation of a Pos.
func (p Pos) String() string {
	if p.file != "" {
		return fmt.Sprintf("%s:%d: ", p.file, p.line)
	}
	return ""
}
