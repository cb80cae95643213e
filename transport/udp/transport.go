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

// Package udp wraps one bound receive socket and one unbound send socket
// with two goroutines that drain an outbound queue.Queue and fill an
// inbound queue.Queue respectively - a direct translation of the original
// design's UDP_API.c, with the blocking recvfrom's timeout giving the
// receive loop a way to observe shutdown without select/epoll.
package udp

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	liberr "github.com/nabbar/lbeacon-coordinator/errors"
	"github.com/nabbar/lbeacon-coordinator/logger"
	"github.com/nabbar/lbeacon-coordinator/queue"
)

const (
	// recvTimeout bounds each blocking recvfrom so the receive loop can
	// observe shutdown between reads.
	recvTimeout = 500 * time.Millisecond

	// idleSleep is how long the send loop waits after finding the
	// outbound queue empty.
	idleSleep = 5 * time.Millisecond

	// readBufferSize is larger than queue.MaxPayloadSize to always read a
	// full datagram in one recvfrom call.
	readBufferSize = 8192
)

// Transport owns the send/receive sockets and queues for one UDP
// coordinate: a receive port bound to ReceiveAddress, and a send socket
// reused for every destination.
type Transport struct {
	Inbound  *queue.Queue
	Outbound *queue.Queue

	conn *net.UDPConn
	send *net.UDPConn

	log   logger.FuncLog
	ready atomic.Bool
}

// New binds the receive socket to address:port and creates the send
// socket. Returns CodeFatalInit on bind failure, per spec §7.
func New(address string, port int, inbound, outbound *queue.Queue, log logger.FuncLog) (*Transport, liberr.Error) {
	raddr := &net.UDPAddr{IP: net.ParseIP(address), Port: port}
	if raddr.IP == nil {
		raddr.IP = net.IPv4zero
	}

	conn, err := net.ListenUDP("udp", raddr)
	if err != nil {
		return nil, liberr.New(liberr.CodeFatalInit, err)
	}

	send, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		_ = conn.Close()
		return nil, liberr.New(liberr.CodeFatalInit, err)
	}

	return &Transport{
		Inbound:  inbound,
		Outbound: outbound,
		conn:     conn,
		send:     send,
		log:      log,
	}, nil
}

func (t *Transport) logger() logger.Logger {
	if t.log != nil {
		return t.log()
	}
	return logger.Discard()
}

// LocalAddr returns the bound receive address, mostly for tests.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Ready reports whether both loops have started, for the main loop's
// startup barrier.
func (t *Transport) Ready() bool {
	return t.ready.Load()
}

// Run starts the send and receive loops and blocks until ctx is cancelled
// and both loops have returned.
func (t *Transport) Run(ctx context.Context) {
	done := make(chan struct{}, 2)

	go func() {
		t.sendLoop(ctx)
		done <- struct{}{}
	}()

	go func() {
		t.recvLoop(ctx)
		done <- struct{}{}
	}()

	t.ready.Store(true)

	<-ctx.Done()
	_ = t.conn.SetReadDeadline(time.Now())
	<-done
	<-done

	_ = t.conn.Close()
	_ = t.send.Close()
}

// sendLoop drains the outbound queue, performing one sendto per packet. A
// sendto error is logged and the packet dropped - UDP is lossy by design,
// per spec §4.2.
func (t *Transport) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p := t.Outbound.Dequeue()
		if p.Empty {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
			continue
		}

		addr := &net.UDPAddr{IP: net.ParseIP(p.Address), Port: p.Port}
		if addr.IP == nil {
			t.logger().Warn("dropping outbound packet: unparsable address", logger.Fields{"address": p.Address})
			continue
		}

		if _, err := t.send.WriteToUDP(p.Payload, addr); err != nil {
			t.logger().Error("sendto failed, dropping packet", logger.Fields{"error": err.Error(), "address": p.Address})
		}
	}
}

// recvLoop performs a blocking recvfrom with a timeout so it can observe
// shutdown between reads. A timeout is not an error; any other error
// drops the iteration, per spec §4.2.
func (t *Transport) recvLoop(ctx context.Context) {
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(recvTimeout))

		n, peer, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			t.logger().Error("recvfrom failed, dropping iteration", logger.Fields{"error": err.Error()})
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		if e := t.Inbound.Enqueue(peer.IP.String(), peer.Port, payload); e != nil {
			t.logger().Warn("inbound queue rejected datagram", logger.Fields{"error": e.Error()})
		}
	}
}
