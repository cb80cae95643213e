/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package errors classifies every failure the packet-routing core can raise
// into the five kinds described by the error handling design: malformed
// input, resource exhaustion, transient I/O, protocol denial and fatal init.
package errors

// CodeError is a numeric classification of an error, in the same spirit as
// an HTTP status code: callers branch on the code, humans read the message.
type CodeError uint16

const (
	// UnknownError is returned when no more specific code applies.
	UnknownError CodeError = iota

	// CodeMalformedInput covers header parse failures, missing payload
	// fields and MAC addresses that cannot be normalized. Policy: drop the
	// packet, free any allocated node, continue.
	CodeMalformedInput

	// CodeResourceExhaustion covers pool allocation returning nil, the
	// address map being full and a bounded queue being full. Policy: retry
	// a small bounded number of times with a short sleep, then log and drop.
	CodeResourceExhaustion

	// CodeTransientIO covers sendto/recvfrom errors other than a timeout.
	// Policy: log, drop the datagram.
	CodeTransientIO

	// CodeProtocolDenial covers a join request refused because the address
	// map is full. Policy: a join-response carrying a deny status is always
	// sent; the request is never dropped silently.
	CodeProtocolDenial

	// CodeFatalInit covers transport bind failure, pool init failure and
	// required goroutine start failure. Policy: mark initialization
	// failed, unwind, exit.
	CodeFatalInit
)

var codeMessage = map[CodeError]string{
	UnknownError:           "unknown error",
	CodeMalformedInput:     "malformed input",
	CodeResourceExhaustion: "resource exhaustion",
	CodeTransientIO:        "transient i/o error",
	CodeProtocolDenial:     "protocol denial",
	CodeFatalInit:          "fatal initialization error",
}

// String returns the human-readable label for the code, falling back to the
// unknown-error message for codes this package never defined.
func (c CodeError) String() string {
	if m, ok := codeMessage[c]; ok {
		return m
	}
	return codeMessage[UnknownError]
}
