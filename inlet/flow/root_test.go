// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package flow

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/google/gopacket/layers"

	"sflowhdr/common/daemon"
	"sflowhdr/common/helpers"
	"sflowhdr/common/httpserver"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow/decoder"
	"sflowhdr/inlet/flow/decoder/sflow"
	"sflowhdr/inlet/flow/input"
	"sflowhdr/inlet/flow/input/file"
	"sflowhdr/inlet/kafka"
)

// udp4Packet returns an IPv4/UDP packet from 192.0.2.10:5353 to
// 198.51.100.1:53.
func udp4Packet(t *testing.T) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP("192.0.2.10").To4(),
		DstIP:    net.ParseIP("198.51.100.1").To4(),
	}
	udp := helpers.TransportFor(t, &layers.UDP{SrcPort: 5353, DstPort: 53}, ip)
	return helpers.SerializePacket(t, ip, udp)
}

var rawRecord = sflow.EncodeRecord(sflow.HeaderProtocol(42), 10, 2, []byte{0xde, 0xad})

func TestFlowFromFile(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record")
	if err := os.WriteFile(record, sflow.EncodeRecord(sflow.HeaderProtocolIPv4, 128, 4, udp4Packet(t)), 0o600); err != nil {
		t.Fatalf("WriteFile() error:\n%+v", err)
	}

	r := reporter.NewMock(t)
	config := DefaultConfiguration()
	config.Inputs = []InputConfiguration{{
		Config: &file.Configuration{
			Paths:        []string{record},
			MaxDatagrams: 1,
		},
	}}

	// The file input starts sending as soon as the component is
	// started: set expectations first.
	received := make(chan bool)
	k, producer := kafka.NewMock(t, r, kafka.DefaultConfiguration())
	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		defer close(received)
		key, _ := msg.Key.Encode()
		if string(key) != "127.0.0.1" {
			t.Errorf("Kafka key == %q, expected 127.0.0.1", key)
		}
		value, _ := msg.Value.Encode()
		h, err := sflow.ReadDocument(value)
		if err != nil {
			t.Errorf("ReadDocument() error:\n%+v", err)
			return nil
		}
		inet4 := h.Inet4()
		if inet4 == nil {
			t.Errorf("ReadDocument() == %+v, expected an IPv4 header", h)
			return nil
		}
		if inet4.SrcAddr != netip.MustParseAddr("192.0.2.10") || !inet4.HasPorts || inet4.DstPort != 53 {
			t.Errorf("ReadDocument() IPv4 header == %+v", inet4)
		}
		return nil
	})

	c, err := New(r, config, Dependencies{
		Daemon: daemon.NewMock(t),
		HTTP:   httpserver.NewMock(t, r),
		Kafka:  k,
	})
	if err != nil {
		t.Fatalf("New() error:\n%+v", err)
	}
	helpers.StartStop(t, c)

	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("no document sent to Kafka")
	}

	gotMetrics := r.GetMetrics("sflowhdr_inlet_flow_decoder_")
	expectedMetrics := map[string]string{
		`flows_total{name="sflow"}`:      "1",
		`time_seconds_count{name="sflow"}`: "1",
	}
	gotMetrics = filterMetrics(gotMetrics, expectedMetrics)
	if diff := helpers.Diff(gotMetrics, expectedMetrics); diff != "" {
		t.Fatalf("Metrics (-got, +want):\n%s", diff)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got := r.RunHealthchecks(ctx)
	expected := reporter.MultipleHealthcheckResults{
		Status: reporter.HealthcheckOK,
		Details: map[string]reporter.HealthcheckResult{
			"inlet/flow":  {Status: reporter.HealthcheckOK, Reason: "ok"},
			"inlet/kafka": {Status: reporter.HealthcheckOK, Reason: "ok"},
		},
	}
	if diff := helpers.Diff(got, expected); diff != "" {
		t.Fatalf("RunHealthchecks() (-got, +want):\n%s", diff)
	}
}

// filterMetrics keeps only the metrics present in expected.
func filterMetrics(got, expected map[string]string) map[string]string {
	result := map[string]string{}
	for k := range expected {
		if v, ok := got[k]; ok {
			result[k] = v
		}
	}
	return result
}

func TestBreaker(t *testing.T) {
	r := reporter.NewMock(t)
	config := DefaultConfiguration()
	config.BreakerThreshold = 2
	config.BreakerTimeout = time.Hour
	c, _, producer := NewMock(t, r, config)

	bad := []byte{0, 0, 0, 1, 0, 0}
	good := sflow.EncodeRecord(sflow.HeaderProtocolIPv4, 128, 4, udp4Packet(t))
	inject := func(exporter string, payload []byte) {
		c.Inject(exporter, &decoder.RawFlow{
			TimeReceived: time.Now(),
			Payload:      payload,
			Source:       netip.MustParseAddr(exporter),
		})
	}

	inject("192.0.2.1", bad)
	inject("192.0.2.1", bad)
	// Breaker is now open for 192.0.2.1
	inject("192.0.2.1", bad)
	inject("192.0.2.1", good)
	// Another exporter is not affected
	received := make(chan bool)
	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		defer close(received)
		if key, _ := msg.Key.Encode(); string(key) != "192.0.2.2" {
			t.Errorf("Kafka key == %q, expected 192.0.2.2", key)
		}
		return nil
	})
	inject("192.0.2.2", good)
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("no document sent to Kafka")
	}

	gotMetrics := r.GetMetrics("sflowhdr_inlet_flow_", "breaker_", "decoder_errors_", "decoder_flows_")
	expectedMetrics := map[string]string{
		`breaker_open_total{exporter="192.0.2.1"}`:          "1",
		`breaker_dropped_flows_total{exporter="192.0.2.1"}`: "2",
		`decoder_errors_total{name="sflow"}`:                "2",
		`decoder_flows_total{name="sflow"}`:                 "1",
	}
	if diff := helpers.Diff(gotMetrics, expectedMetrics); diff != "" {
		t.Fatalf("Metrics (-got, +want):\n%s", diff)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got := r.RunHealthchecks(ctx)
	expected := reporter.MultipleHealthcheckResults{
		Status: reporter.HealthcheckWarning,
		Details: map[string]reporter.HealthcheckResult{
			"inlet/flow": {
				Status: reporter.HealthcheckWarning,
				Reason: "1 exporters with an open breaker",
			},
			"inlet/kafka": {Status: reporter.HealthcheckOK, Reason: "ok"},
		},
	}
	if diff := helpers.Diff(got, expected); diff != "" {
		t.Fatalf("RunHealthchecks() (-got, +want):\n%s", diff)
	}
}

func TestBreakerDisabled(t *testing.T) {
	r := reporter.NewMock(t)
	config := DefaultConfiguration()
	config.BreakerThreshold = 0
	c, _, _ := NewMock(t, r, config)

	for range 5 {
		c.Inject("192.0.2.1", &decoder.RawFlow{
			Payload: []byte{0, 0, 0, 1},
			Source:  netip.MustParseAddr("192.0.2.1"),
		})
	}
	gotMetrics := r.GetMetrics("sflowhdr_inlet_flow_", "breaker_", "decoder_errors_")
	expectedMetrics := map[string]string{
		`decoder_errors_total{name="sflow"}`: "5",
	}
	if diff := helpers.Diff(gotMetrics, expectedMetrics); diff != "" {
		t.Fatalf("Metrics (-got, +want):\n%s", diff)
	}
}

func TestRecentFlows(t *testing.T) {
	r := reporter.NewMock(t)
	config := DefaultConfiguration()
	config.RecentFlows = 2
	c, h, producer := NewMock(t, r, config)

	base := time.Date(2022, 3, 15, 9, 14, 12, 0, time.UTC)
	for i := range 3 {
		producer.ExpectInputAndSucceed()
		c.Inject("192.0.2.1", &decoder.RawFlow{
			TimeReceived: base.Add(time.Duration(i) * time.Second),
			Payload:      rawRecord,
			Source:       netip.MustParseAddr("::ffff:192.0.2.1"),
		})
	}

	rawDocument := gin.H{
		"protocol":     42,
		"frame_length": 10,
		"stripped":     2,
		"raw": gin.H{
			"$binary": gin.H{
				"base64":  "3q0=",
				"subType": "00",
			},
		},
	}
	helpers.TestHTTPEndpoints(t, h.LocalAddr(), helpers.HTTPEndpointCases{
		{
			Pos: helpers.Mark(),
			URL: "/api/v0/inlet/flow/recent",
			JSONOutput: gin.H{"flows": []gin.H{
				{
					"time_received": "2022-03-15T09:14:13Z",
					"exporter":      "192.0.2.1",
					"protocol":      "other",
					"document":      rawDocument,
				}, {
					"time_received": "2022-03-15T09:14:14Z",
					"exporter":      "192.0.2.1",
					"protocol":      "other",
					"document":      rawDocument,
				},
			}},
		},
	})
}

// journalInput is an input recording its lifecycle in a shared journal.
type journalInput struct {
	name    string
	fail    bool
	mu      *sync.Mutex
	journal *[]string
}

func (in *journalInput) New(*reporter.Reporter, daemon.Component, input.SendFunc) (input.Input, error) {
	return in, nil
}

func (in *journalInput) record(event string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	*in.journal = append(*in.journal, event+" "+in.name)
}

func (in *journalInput) Start() error {
	in.record("start")
	if in.fail {
		return errors.New("port already in use")
	}
	return nil
}

func (in *journalInput) Stop() error {
	in.record("stop")
	return nil
}

func TestStartInputFailure(t *testing.T) {
	var (
		mu      sync.Mutex
		journal []string
	)
	r := reporter.NewMock(t)
	config := DefaultConfiguration()
	config.Inputs = nil
	for _, name := range []string{"udp1", "udp2", "udp3"} {
		config.Inputs = append(config.Inputs, InputConfiguration{
			Config: &journalInput{name: name, fail: name == "udp3", mu: &mu, journal: &journal},
		})
	}
	k, _ := kafka.NewMock(t, r, kafka.DefaultConfiguration())
	c, err := New(r, config, Dependencies{
		Daemon: daemon.NewMock(t),
		HTTP:   httpserver.NewMock(t, r),
		Kafka:  k,
	})
	if err != nil {
		t.Fatalf("New() error:\n%+v", err)
	}

	err = c.Start()
	if err == nil {
		t.Fatal("Start() did not error")
	}
	if !strings.Contains(err.Error(), "unable to start input 2") {
		t.Errorf("Start() error:\n%+v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	// Inputs are stopped concurrently.
	slices.Sort(journal[3:])
	expected := []string{"start udp1", "start udp2", "start udp3", "stop udp1", "stop udp2"}
	if diff := helpers.Diff(journal, expected); diff != "" {
		t.Fatalf("Start() journal (-got, +want):\n%s", diff)
	}
	if c.t.Alive() {
		t.Fatal("Start() left the component alive")
	}
}
