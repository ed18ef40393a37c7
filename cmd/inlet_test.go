// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"bytes"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"sflowhdr/common/helpers"
	"sflowhdr/common/reporter"
)

func TestInletStart(t *testing.T) {
	r := reporter.NewMock(t)
	config := InletConfiguration{}
	config.Reset()
	if err := inletStart(r, config, true); err != nil {
		t.Fatalf("inletStart() error:\n%+v", err)
	}

	gotMetrics := r.GetMetrics("sflowhdr_cmd_")
	expectedMetrics := map[string]string{
		fmt.Sprintf(`info{compiler="%s",version="%s"}`, runtime.Version(), helpers.Version): "1",
	}
	if diff := helpers.Diff(gotMetrics, expectedMetrics); diff != "" {
		t.Fatalf("Metrics (-got, +want):\n%s", diff)
	}
}

func TestInletStartInvalid(t *testing.T) {
	r := reporter.NewMock(t)
	config := InletConfiguration{}
	config.Reset()
	config.Flow.Inputs = nil
	if err := inletStart(r, config, true); err == nil {
		t.Fatal("inletStart() did not error without inputs")
	}
}

func TestInlet(t *testing.T) {
	root := RootCmd
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"inlet", "--check", "--dump", "/dev/null"})
	defer func() {
		InletOptions = inletOptions{}
	}()
	if err := root.Execute(); err != nil {
		t.Fatalf("`inlet` error:\n%+v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "---\n") {
		t.Fatalf("`inlet --dump` output does not start with a document marker:\n%s", got)
	}
	for _, section := range []string{"reporting:", "http:", "flow:", "kafka:"} {
		if !strings.Contains(got, "\n"+section) {
			t.Errorf("`inlet --dump` output is missing %q:\n%s", section, got)
		}
	}
}
