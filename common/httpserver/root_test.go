// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package httpserver_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"sflowhdr/common/daemon"
	"sflowhdr/common/helpers"
	"sflowhdr/common/httpserver"
	"sflowhdr/common/reporter"
)

func TestHandler(t *testing.T) {
	r := reporter.NewMock(t)
	h := httpserver.NewMock(t, r)

	h.AddHandler("/records",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintln(w, "sampled protocol=IPv4 frame-length=128 stripped=4")
			fmt.Fprintln(w, "ipv4 src=192.0.2.1 dst=203.0.113.8 protocol=17 ttl=64")
		}))

	helpers.TestHTTPEndpoints(t, h.LocalAddr(), helpers.HTTPEndpointCases{
		{
			URL:         "/records",
			ContentType: "text/plain; charset=utf-8",
			FirstLines: []string{
				"sampled protocol=IPv4 frame-length=128 stripped=4",
				"ipv4 src=192.0.2.1 dst=203.0.113.8 protocol=17 ttl=64",
			},
		}, {
			Description: "unknown path",
			URL:         "/nothing",
			StatusCode:  404,
			ContentType: "text/plain; charset=utf-8",
			FirstLines:  []string{"404 page not found"},
		},
	})

	gotMetrics := r.GetMetrics("sflowhdr_common_httpserver_",
		"inflight_", "requests_total", "response_size_bytes_count", "response_size_bytes_sum")
	expectedMetrics := map[string]string{
		`inflight_requests`: "0",
		`requests_total{code="200",handler="/records",method="get"}`:  "1",
		`response_size_bytes_count{handler="/records",method="get"}`: "1",
		`response_size_bytes_sum{handler="/records",method="get"}`:   "104",
	}
	if diff := helpers.Diff(gotMetrics, expectedMetrics); diff != "" {
		t.Fatalf("Metrics (-got, +want):\n%s", diff)
	}
}

func TestGinRouter(t *testing.T) {
	r := reporter.NewMock(t)
	h := httpserver.NewMock(t, r)

	h.GinRouter.GET("/api/v0/inlet/flow/recent", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"flows": []gin.H{{"exporter": "192.0.2.1"}}})
	})
	h.GinRouter.GET("/api/v0/inlet/flow/broken", func(*gin.Context) {
		panic("decoder exploded")
	})

	helpers.TestHTTPEndpoints(t, h.LocalAddr(), helpers.HTTPEndpointCases{
		{
			URL:         "/api/v0/inlet/flow/recent",
			ContentType: "application/json; charset=utf-8",
			FirstLines:  []string{`{"flows":[{"exporter":"192.0.2.1"}]}`},
		}, {
			Description: "as JSON",
			URL:         "/api/v0/inlet/flow/recent",
			JSONOutput:  gin.H{"flows": []gin.H{{"exporter": "192.0.2.1"}}},
		}, {
			Description: "panic",
			URL:         "/api/v0/inlet/flow/broken",
			StatusCode:  500,
		},
	})
}

func TestProfiler(t *testing.T) {
	r := reporter.NewMock(t)
	config := httpserver.DefaultConfiguration()
	config.Listen = "127.0.0.1:0"
	config.Profiler = true
	h, err := httpserver.New(r, config, httpserver.Dependencies{Daemon: daemon.NewMock(t)})
	if err != nil {
		t.Fatalf("New() error:\n%+v", err)
	}
	helpers.StartStop(t, h)

	resp, err := http.Get(fmt.Sprintf("http://%s/debug/pprof/cmdline", h.LocalAddr()))
	if err != nil {
		t.Fatalf("GET /debug/pprof/cmdline error:\n%+v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /debug/pprof/cmdline status == %d", resp.StatusCode)
	}
}

func TestConfigurationDecode(t *testing.T) {
	helpers.TestConfigurationDecode(t, helpers.ConfigurationDecodeCases{
		{
			Description: "memory cache",
			Initial:     func() interface{} { return httpserver.DefaultConfiguration() },
			Configuration: func() interface{} {
				return gin.H{
					"listen": "127.0.0.1:8081",
					"cache": gin.H{
						"type":             "memory",
						"cleanup-interval": "1m",
					},
				}
			},
			Expected: httpserver.Configuration{
				Listen: "127.0.0.1:8081",
				Cache: httpserver.CacheConfiguration{
					Config: httpserver.MemoryCacheConfiguration{CleanupInterval: time.Minute},
				},
			},
		}, {
			Description: "redis cache",
			Initial:     func() interface{} { return httpserver.DefaultConfiguration() },
			Configuration: func() interface{} {
				return gin.H{
					"cache": gin.H{
						"type":   "redis",
						"server": "redis:6379",
						"db":     4,
					},
				}
			},
			Expected: httpserver.Configuration{
				Listen: "0.0.0.0:8080",
				Cache: httpserver.CacheConfiguration{
					Config: httpserver.RedisCacheConfiguration{
						Protocol: "tcp",
						Server:   "redis:6379",
						DB:       4,
					},
				},
			},
		},
	})
}
