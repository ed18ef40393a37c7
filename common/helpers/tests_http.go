// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

//go:build !release

package helpers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

// HTTPEndpointCases describes requests for TestHTTPEndpoints. The
// method defaults to GET, or POST with a body. The status code defaults
// to 200. Only one of FirstLines or JSONOutput can be set.
type HTTPEndpointCases []struct {
	Pos         Pos
	Description string
	Method      string
	URL         string
	Header      http.Header
	JSONInput   gin.H
	RawInput    []byte

	ContentType string
	StatusCode  int
	FirstLines  []string
	JSONOutput  gin.H
}

// httpRequest builds a request from its method, URL and optional body.
func httpRequest(serverAddr net.Addr, method, url string, header http.Header, jsonInput gin.H, rawInput []byte) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case jsonInput != nil:
		payload, err := json.Marshal(jsonInput)
		if err != nil {
			return nil, err
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	case rawInput != nil:
		body, contentType = bytes.NewReader(rawInput), "application/octet-stream"
	}
	if method == "" {
		method = "GET"
		if body != nil {
			method = "POST"
		}
	}
	req, err := http.NewRequest(method, fmt.Sprintf("http://%s%s", serverAddr, url), body)
	if err != nil {
		return nil, err
	}
	if header != nil {
		req.Header = header.Clone()
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// firstLines returns up to n lines from r.
func firstLines(r io.Reader, n int) []string {
	scanner := bufio.NewScanner(r)
	lines := []string{}
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// normalizeJSON encodes and decodes v to compare it with a decoded
// answer.
func normalizeJSON(v gin.H) (gin.H, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result gin.H
	err = json.Unmarshal(encoded, &result)
	return result, err
}

// TestHTTPEndpoints runs requests against a server and checks the
// status code, the content type and the body of the answers.
func TestHTTPEndpoints(t *testing.T, serverAddr net.Addr, cases HTTPEndpointCases) {
	t.Helper()
	for _, tc := range cases {
		desc := tc.Description
		if desc == "" {
			desc = tc.URL
		}
		t.Run(desc, func(t *testing.T) {
			t.Helper()
			if tc.FirstLines != nil && tc.JSONOutput != nil {
				t.Fatalf("%sCannot have both FirstLines and JSONOutput", tc.Pos)
			}
			req, err := httpRequest(serverAddr, tc.Method, tc.URL, tc.Header, tc.JSONInput, tc.RawInput)
			if err != nil {
				t.Fatalf("%sNewRequest() error:\n%+v", tc.Pos, err)
			}
			where := fmt.Sprintf("%s%s %s", tc.Pos, req.Method, tc.URL)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("%s:\n%+v", where, err)
			}
			defer resp.Body.Close()

			statusCode := tc.StatusCode
			if statusCode == 0 {
				statusCode = http.StatusOK
			}
			if resp.StatusCode != statusCode {
				t.Errorf("%s: got status code %d, not %d", where, resp.StatusCode, statusCode)
			}
			contentType := tc.ContentType
			if tc.JSONOutput != nil {
				contentType = "application/json; charset=utf-8"
			}
			if got := resp.Header.Get("Content-Type"); got != contentType {
				t.Errorf("%s Content-Type (-got, +want):\n-%s\n+%s", where, got, contentType)
			}

			if tc.JSONOutput == nil {
				expected := tc.FirstLines
				if expected == nil {
					expected = []string{}
				}
				if diff := Diff(firstLines(resp.Body, len(expected)), expected); diff != "" {
					t.Errorf("%s (-got, +want):\n%s", where, diff)
				}
				return
			}
			var got gin.H
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("%s:\n%+v", where, err)
			}
			expected, err := normalizeJSON(tc.JSONOutput)
			if err != nil {
				t.Fatalf("%sjson.Marshal() error:\n%+v", tc.Pos, err)
			}
			if diff := Diff(got, expected); diff != "" {
				t.Fatalf("%s (-got, +want):\n%s", where, diff)
			}
		})
	}
}
