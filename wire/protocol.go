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

// Package wire encodes and decodes the ASCII, semicolon-delimited datagram
// format every gateway, beacon and GUI client on the LAN speaks:
//
//	direction ";" type ";" api_version ";" payload
package wire

import (
	"strconv"
	"strings"

	liberr "github.com/nabbar/lbeacon-coordinator/errors"
)

// Direction identifies the originator of a datagram.
type Direction int

const (
	DirectionFromServer  Direction = 2
	DirectionFromGUI     Direction = 3
	DirectionFromGateway Direction = 6
	DirectionFromBeacon  Direction = 8
)

// Type identifies the packet class within a direction.
type Type int

const (
	TypeJoinRequest               Type = 1
	TypeJoinResponse              Type = 2
	TypeTimeCriticalTrackedObject Type = 3
	TypeTrackedObjectData         Type = 4
	TypeGatewayHealthReport       Type = 5
	TypeBeaconHealthReport        Type = 6
	TypeNotificationAlarm         Type = 7
	TypeIPCCommand                Type = 8
)

// Join response status codes, carried as the first payload field of a
// join-response datagram.
const (
	JoinAck  = 0
	JoinDeny = 1
)

// Header is the parsed three-field prefix of a datagram, plus whatever
// remained of the payload after it.
type Header struct {
	Direction  Direction
	Type       Type
	APIVersion float64
	Payload    string
}

// Encode renders a header and payload back into wire form.
func Encode(dir Direction, typ Type, apiVersion string, payload string) []byte {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(dir)))
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(int(typ)))
	b.WriteByte(';')
	b.WriteString(apiVersion)
	b.WriteByte(';')
	b.WriteString(payload)
	return []byte(b.String())
}

// Decode parses the three-field header prefix from raw, returning
// CodeMalformedInput when any of the three fields is missing or not
// numeric where required.
func Decode(raw []byte) (Header, liberr.Error) {
	s := string(raw)

	parts := strings.SplitN(s, ";", 4)
	if len(parts) < 4 {
		return Header{}, liberr.Newf(liberr.CodeMalformedInput, "short header: %q", s)
	}

	dir, err := strconv.Atoi(parts[0])
	if err != nil {
		return Header{}, liberr.New(liberr.CodeMalformedInput, err)
	}

	typ, err := strconv.Atoi(parts[1])
	if err != nil {
		return Header{}, liberr.New(liberr.CodeMalformedInput, err)
	}

	ver, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return Header{}, liberr.New(liberr.CodeMalformedInput, err)
	}

	return Header{
		Direction:  Direction(dir),
		Type:       Type(typ),
		APIVersion: ver,
		Payload:    parts[3],
	}, nil
}
