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

package errors

import (
	"fmt"
	"strings"
)

// Error extends the standard error with a code and an optional parent
// chain, so a handler boundary can log one structured value instead of a
// bare string.
type Error interface {
	error

	// Code returns this error's classification.
	Code() CodeError

	// IsCode reports whether this error, or any parent in its chain,
	// carries the given code.
	IsCode(code CodeError) bool

	// Unwrap exposes the immediate cause for compatibility with the
	// standard errors.Is / errors.As.
	Unwrap() error

	// Add appends one or more parent errors to this error's chain. Nil
	// parents are ignored.
	Add(parent ...error)
}

type ers struct {
	code   CodeError
	msg    string
	cause  error
	parent []error
}

// New builds an Error of the given code wrapping cause. cause may be nil,
// in which case the code's default message is used as the error text.
func New(code CodeError, cause error) Error {
	msg := code.String()
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", code.String(), cause.Error())
	}
	return &ers{code: code, msg: msg, cause: cause}
}

// Newf behaves like New but formats a custom message instead of deriving
// one from the code and cause.
func Newf(code CodeError, format string, args ...interface{}) Error {
	return &ers{code: code, msg: fmt.Sprintf(format, args...)}
}

func (e *ers) Error() string {
	if e == nil {
		return ""
	}

	if len(e.parent) == 0 {
		return e.msg
	}

	var s []string
	for _, p := range e.parent {
		if p != nil {
			s = append(s, p.Error())
		}
	}

	if len(s) == 0 {
		return e.msg
	}

	return e.msg + ": " + strings.Join(s, "; ")
}

func (e *ers) Code() CodeError {
	if e == nil {
		return UnknownError
	}
	return e.code
}

func (e *ers) IsCode(code CodeError) bool {
	if e == nil {
		return false
	}

	if e.code == code {
		return true
	}

	for _, p := range e.parent {
		if pe, ok := p.(Error); ok && pe.IsCode(code) {
			return true
		}
	}

	return false
}

func (e *ers) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *ers) Add(parent ...error) {
	if e == nil {
		return
	}
	for _, p := range parent {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
}

// IsCode is a free function for callers that only hold a bare error and
// want to test it against one of this package's codes without a type
// assertion at the call site.
func IsCode(err error, code CodeError) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(Error); ok {
		return e.IsCode(code)
	}
	return false
}
