// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"sflowhdr/common/document"
	"sflowhdr/inlet/flow/decoder/sflow"
)

type decodeOptions struct {
	Traversal string
}

// DecodeOptions stores the command-line option values for the decode
// command.
var DecodeOptions decodeOptions

var decodeCmd = &cobra.Command{
	Use:   "decode FILE...",
	Short: "Decode sampled header records",
	Long: `Decode sFlow sampled header records, one record per file, and print the
resulting documents as relaxed extended JSON. Use "-" to read from stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			mode  sflow.TraversalMode
			trace bool
		)
		if DecodeOptions.Traversal != "" {
			if err := mode.UnmarshalText([]byte(DecodeOptions.Traversal)); err != nil {
				return err
			}
			trace = true
		}
		for _, path := range args {
			payload, err := readRecord(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			if err := decodeRecord(cmd.OutOrStdout(), payload, mode, trace); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&DecodeOptions.Traversal, "traversal", "t", "",
		"Print visited headers (hoisted or full-tree)")
}

func readRecord(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		payload, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read stdin: %w", err)
		}
		return payload, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read record: %w", err)
	}
	return payload, nil
}

func decodeRecord(out io.Writer, payload []byte, mode sflow.TraversalMode, trace bool) error {
	h, err := sflow.DecodeSampledHeader(payload)
	if err != nil {
		return err
	}
	if trace {
		sflow.Walk(h, headerPrinter(out), mode)
	}
	encoded, err := sflow.EncodeDocument(h)
	if err != nil {
		return err
	}
	extjson, err := document.ExtJSON(encoded)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n", extjson)
	return nil
}

// headerPrinter returns a visitor printing one line per visited header.
func headerPrinter(out io.Writer) sflow.Visitor {
	ports := func(has bool, src, dst uint16) string {
		if !has {
			return ""
		}
		return fmt.Sprintf(" src-port=%d dst-port=%d", src, dst)
	}
	return sflow.VisitorFuncs{
		SampledHeader: func(h *sflow.SampledHeader) {
			fmt.Fprintf(out, "sampled protocol=%s frame-length=%d stripped=%d\n",
				h.Protocol, h.FrameLength, h.Stripped)
		},
		EthernetHeader: func(h *sflow.EthernetHeader) {
			vlan := ""
			if h.HasVLAN {
				vlan = fmt.Sprintf(" vlan=%d", h.VLAN)
			}
			fmt.Fprintf(out, "ethernet src=%s dst=%s%s type=0x%04x\n",
				h.SrcMAC, h.DstMAC, vlan, h.EtherType)
		},
		Inet4Header: func(h *sflow.Inet4Header) {
			fmt.Fprintf(out, "ipv4 src=%s dst=%s protocol=%d ttl=%d%s\n",
				h.SrcAddr, h.DstAddr, h.Protocol, h.TTL, ports(h.HasPorts, h.SrcPort, h.DstPort))
		},
		Inet6Header: func(h *sflow.Inet6Header) {
			fmt.Fprintf(out, "ipv6 src=%s dst=%s next-header=%d hop-limit=%d%s\n",
				h.SrcAddr, h.DstAddr, h.NextHeader, h.HopLimit, ports(h.HasPorts, h.SrcPort, h.DstPort))
		},
	}
}
