// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package udp receives sampled header records over UDP, one record
// per datagram.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
	"gopkg.in/tomb.v2"

	"sflowhdr/common/daemon"
	"sflowhdr/common/reporter"
	"sflowhdr/inlet/flow/decoder"
	"sflowhdr/inlet/flow/input"
)

// Input represents the state of an UDP listener.
type Input struct {
	r      *reporter.Reporter
	t      tomb.Tomb
	config *Configuration

	metrics struct {
		bytes     *reporter.CounterVec
		packets   *reporter.CounterVec
		sizes     *reporter.SummaryVec
		truncated *reporter.CounterVec
		errors    *reporter.CounterVec
		inDrops   *reporter.CounterVec
	}

	address net.Addr // listening address, for tests
	send    input.SendFunc
}

// New instantiate a new UDP listener from the provided configuration.
func (configuration *Configuration) New(r *reporter.Reporter, daemon daemon.Component, send input.SendFunc) (input.Input, error) {
	in := &Input{
		r:      r,
		config: configuration,
		send:   send,
	}

	perExporter := []string{"listener", "worker", "exporter"}
	perWorker := []string{"listener", "worker"}
	in.metrics.bytes = r.CounterVec(
		reporter.CounterOpts{
			Name: "bytes_total",
			Help: "Bytes received by the application.",
		}, perExporter)
	in.metrics.packets = r.CounterVec(
		reporter.CounterOpts{
			Name: "packets_total",
			Help: "Datagrams received by the application.",
		}, perExporter)
	in.metrics.sizes = r.SummaryVec(
		reporter.SummaryOpts{
			Name:       "size_bytes",
			Help:       "Summary of datagram sizes.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, perExporter)
	in.metrics.truncated = r.CounterVec(
		reporter.CounterOpts{
			Name: "truncated_packets_total",
			Help: "Datagrams larger than the maximum record size.",
		}, perExporter)
	in.metrics.errors = r.CounterVec(
		reporter.CounterOpts{
			Name: "errors_total",
			Help: "Errors while receiving datagrams.",
		}, perWorker)
	in.metrics.inDrops = r.CounterVec(
		reporter.CounterOpts{
			Name: "in_dropped_packets_total",
			Help: "Dropped datagrams due to listen queue full.",
		}, perWorker)

	daemon.Track(&in.t, "inlet/flow/input/udp")
	return in, nil
}

// Start opens one socket per worker on the same port and starts
// receiving records.
func (in *Input) Start() error {
	in.r.Info().Str("listen", in.config.Listen).Msg("starting UDP input")

	conns := make([]*net.UDPConn, 0, in.config.Workers)
	for i := range in.config.Workers {
		conn, err := in.listen()
		if err != nil {
			for _, conn := range conns {
				conn.Close()
			}
			return err
		}
		if i == 0 {
			in.r.Info().Str("listen", in.address.String()).Msg("UDP input listening")
		}
		conns = append(conns, conn)
	}

	for i, conn := range conns {
		worker := strconv.Itoa(i)
		in.t.Go(func() error {
			return in.receive(conn, worker)
		})
	}

	in.t.Go(func() error {
		<-in.t.Dying()
		for _, conn := range conns {
			conn.Close()
		}
		return nil
	})
	return nil
}

// listen opens a new socket. Once a first socket is bound, the next
// ones use its address so that ":0" ends up on a single port.
func (in *Input) listen() (*net.UDPConn, error) {
	listenAddr := in.config.Listen
	if in.address != nil {
		listenAddr = in.address.String()
	}
	pconn, err := listenConfig(in.r, udpSocketOptions).
		ListenPacket(in.t.Context(context.Background()), "udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen to %v: %w", listenAddr, err)
	}
	conn := pconn.(*net.UDPConn)
	in.address = conn.LocalAddr()
	if in.config.ReceiveBuffer > 0 {
		if err := conn.SetReadBuffer(int(in.config.ReceiveBuffer)); err != nil {
			// Linux silently caps the value to net.core.rmem_max.
			in.r.Warn().
				Err(err).
				Str("listen", in.config.Listen).
				Msgf("unable to set requested buffer size (%d bytes)", in.config.ReceiveBuffer)
		}
	}
	return conn, nil
}

// receive reads datagrams from conn until it is closed. Each datagram
// is handed to the send function; its payload is reused afterwards.
func (in *Input) receive(conn *net.UDPConn, worker string) error {
	listen := in.config.Listen
	payload := make([]byte, in.config.MaxRecordSize)
	oob := make([]byte, oobLength)
	flow := decoder.RawFlow{}
	var lastDrops uint32
	drops := in.metrics.inDrops.WithLabelValues(listen, worker)
	l := in.r.With().Str("worker", worker).Str("listen", listen).Logger()
	errLogger := l.Sample(reporter.BurstSampler(time.Minute, 1))
	dying := in.t.Dying()

	for {
		n, oobn, flags, source, err := conn.ReadMsgUDPAddrPort(payload, oob)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			errLogger.Err(err).Msg("unable to receive UDP datagram")
			in.metrics.errors.WithLabelValues(listen, worker).Inc()
			continue
		}

		oobMsg, err := parseSocketControlMessage(oob[:oobn])
		if err != nil {
			errLogger.Err(err).Msg("unable to decode UDP control message")
		} else if oobMsg.Drops != lastDrops {
			// The kernel reports the total number of drops for the socket.
			drops.Add(float64(oobMsg.Drops - lastDrops))
			lastDrops = oobMsg.Drops
		}
		if oobMsg.Received.IsZero() {
			oobMsg.Received = time.Now()
		}

		exporter := source.Addr().Unmap()
		exporterStr := exporter.String()
		in.metrics.bytes.WithLabelValues(listen, worker, exporterStr).Add(float64(n))
		in.metrics.packets.WithLabelValues(listen, worker, exporterStr).Inc()
		in.metrics.sizes.WithLabelValues(listen, worker, exporterStr).Observe(float64(n))

		if flags&unix.MSG_TRUNC != 0 {
			errLogger.Warn().
				Str("exporter", exporterStr).
				Int("max-record-size", in.config.MaxRecordSize).
				Msg("datagram truncated, increase max-record-size")
			in.metrics.truncated.WithLabelValues(listen, worker, exporterStr).Inc()
		} else {
			flow.TimeReceived = oobMsg.Received
			flow.Payload = payload[:n]
			flow.Source = exporter
			in.send(exporterStr, &flow)
		}

		select {
		case <-dying:
			return nil
		default:
		}
	}
}

// Stop stops the UDP listeners
func (in *Input) Stop() error {
	l := in.r.With().Str("listen", in.config.Listen).Logger()
	defer l.Info().Msg("UDP listener stopped")
	in.t.Kill(nil)
	return in.t.Wait()
}
