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

// Package notify defines the boundary the geo-fence handler calls across to
// reach the SMS/alarm collaborator named in spec §1, which is out of scope
// for the core itself. Sender is the load-bearing contract; LogSender gives
// it one runnable implementation that records the alarm instead of paging
// anyone.
package notify

import (
	"context"
	"time"

	"github.com/nabbar/lbeacon-coordinator/logger"
)

// Alarm is one confirmed geo-fence violation ready for delivery to an
// external notification channel.
type Alarm struct {
	MAC    string
	AreaID int
	At     time.Time
}

// Sender delivers an Alarm to whatever external channel is wired in.
type Sender interface {
	Send(ctx context.Context, a Alarm) error
}

// LogSender stands in for the out-of-scope SMS gateway: it records every
// alarm at warn level and never fails, so callers can wire it in without a
// real carrier account during development or testing.
type LogSender struct {
	Log logger.FuncLog
}

// NewLogSender builds a LogSender using log for every Send call.
func NewLogSender(log logger.FuncLog) *LogSender {
	return &LogSender{Log: log}
}

func (s *LogSender) log() logger.Logger {
	if s.Log != nil {
		return s.Log()
	}
	return logger.Discard()
}

// Send implements Sender by logging the alarm; it never returns an error.
func (s *LogSender) Send(_ context.Context, a Alarm) error {
	s.log().Warn("geo-fence violation alarm", logger.Fields{
		"mac": a.MAC, "area_id": a.AreaID, "at": a.At,
	})
	return nil
}
