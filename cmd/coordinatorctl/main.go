/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command coordinatorctl is the auxiliary IPC sender: it renders one
// ipc-command datagram and fires it at a running coordinatord over UDP.
// It never waits for a reply - the wire protocol carries no acknowledgement
// for this packet type - so success here means "sent", not "applied".
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nabbar/lbeacon-coordinator/handler"
	"github.com/nabbar/lbeacon-coordinator/wire"
)

const (
	exitSuccess = 0
	exitHelp    = 1
	exitError   = -1
)

var (
	flagPort       int
	flagHost       string
	flagCommand    string
	flagReloadKind string
	flagScope      string
	flagAreaID     int
	flagAPIVersion string
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := &cobra.Command{
		Use:           "coordinatorctl",
		Short:         "Send an ipc-command datagram to a running coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return send()
		},
	}

	cmd.Flags().IntVarP(&flagPort, "port", "p", 8888, "coordinator receive port")
	cmd.Flags().StringVar(&flagHost, "host", "127.0.0.1", "coordinator host")
	cmd.Flags().StringVarP(&flagCommand, "cmd", "c", "reload", "command name (only \"reload\" is defined)")
	cmd.Flags().StringVarP(&flagReloadKind, "reload", "r", "geofence", "reload kind: \"geofence\" or \"monitored\"")
	cmd.Flags().StringVarP(&flagScope, "scope", "f", "area", "reload scope (reserved, currently only \"area\")")
	cmd.Flags().IntVarP(&flagAreaID, "area", "a", 0, "area id, required when reload kind is \"monitored\"")
	cmd.Flags().StringVar(&flagAPIVersion, "api-version", "2.2", "api_version field of the outgoing datagram")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}

	if h := cmd.Flags().Lookup("help"); h != nil && h.Changed {
		return exitHelp
	}
	return exitSuccess
}

// send builds the ipc-command payload, dials the coordinator's receive
// port and fires one datagram. A dialed UDP socket never blocks on
// connect - failure here means the local route table rejected the
// destination, not that the peer is unreachable.
func send() error {
	if flagCommand != "reload" {
		return fmt.Errorf("unknown command %q", flagCommand)
	}

	var code int
	switch flagReloadKind {
	case "geofence":
		code = handler.CommandReloadGeoFenceSettings
	case "monitored":
		code = handler.CommandReloadMonitoredObjects
	default:
		return fmt.Errorf("unknown reload kind %q", flagReloadKind)
	}

	payload := strconv.Itoa(code)
	if code == handler.CommandReloadMonitoredObjects {
		payload += ";" + strconv.Itoa(flagAreaID)
	}

	raw := wire.Encode(wire.DirectionFromGUI, wire.TypeIPCCommand, flagAPIVersion, payload)

	addr := net.JoinHostPort(flagHost, strconv.Itoa(flagPort))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(raw); err != nil {
		return fmt.Errorf("sending datagram: %w", err)
	}

	return nil
}
