// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity indicates that the coordination service could not be reached:
	// a timeout, a network failure or an expired session.
	ErrConnectivity = errors.New("coordination service unreachable")

	// ErrConnectionClosed is returned by every operation issued after the
	// coordination client (or the namespace owning it) has been shut down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrVersionConflict is returned by a conditional write when the stored
	// version no longer matches the expected one.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNodeExists is returned when creating a node at a path that is already taken.
	ErrNodeExists = errors.New("node already exists")

	// ErrNodeNotFound is returned when the node at the given path does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrWriteCanceled is returned when a write retry loop is stopped by its context.
	ErrWriteCanceled = errors.New("write canceled")

	// ErrWriteAttemptsExhausted is returned when a bounded retry policy runs out of attempts.
	ErrWriteAttemptsExhausted = errors.New("write attempts exhausted")

	// ErrInvalidName is returned when a variable name cannot be mapped to a node path.
	ErrInvalidName = errors.New("invalid variable name")

	// ErrInvalidPath is returned when a namespace parent path is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNilClient is returned when a namespace is built without a coordination client.
	ErrNilClient = errors.New("coordination client is nil")

	// ErrWatchNotSupported is returned by coordination clients that cannot deliver change notifications.
	ErrWatchNotSupported = errors.New("watch is not supported")
)

// ConnectivityError describes a failed exchange with the coordination service.
// It matches ErrConnectivity with errors.Is.
type ConnectivityError struct {
	op   string
	path string
	err  error
}

// enforce compilation error
var _ error = (*ConnectivityError)(nil)

// NewErrConnectivity wraps a transport error raised while executing op on path.
func NewErrConnectivity(op, path string, err error) error {
	return &ConnectivityError{op: op, path: path, err: err}
}

// Error implements the error interface
func (e *ConnectivityError) Error() string {
	if e.path == "" {
		return fmt.Sprintf("%s: %v: %v", e.op, ErrConnectivity, e.err)
	}
	return fmt.Sprintf("%s (path=%s): %v: %v", e.op, e.path, ErrConnectivity, e.err)
}

// Unwrap returns the underlying transport error
func (e *ConnectivityError) Unwrap() error {
	return e.err
}

// Is reports whether target is ErrConnectivity
func (e *ConnectivityError) Is(target error) bool {
	return target == ErrConnectivity
}

// Op returns the operation that failed
func (e *ConnectivityError) Op() string {
	return e.op
}

// Path returns the node path the operation targeted
func (e *ConnectivityError) Path() string {
	return e.path
}

// NewErrNodeNotFound formats an ErrNodeNotFound with the given path.
func NewErrNodeNotFound(path string) error {
	return fmt.Errorf("(path=%s) %w", path, ErrNodeNotFound)
}

// NewErrNodeExists formats an ErrNodeExists with the given path.
func NewErrNodeExists(path string) error {
	return fmt.Errorf("(path=%s) %w", path, ErrNodeExists)
}

// NewErrVersionConflict formats an ErrVersionConflict with the given path and expected version.
func NewErrVersionConflict(path string, expected uint64) error {
	return fmt.Errorf("(path=%s expected=%d) %w", path, expected, ErrVersionConflict)
}

// NewErrInvalidName formats an ErrInvalidName with the given name and reason.
func NewErrInvalidName(name string, reason error) error {
	return fmt.Errorf("name=(%s) %w: %w", name, ErrInvalidName, reason)
}

// NewErrInvalidPath formats an ErrInvalidPath with the offending parent path
func NewErrInvalidPath(path string, reason error) error {
	return fmt.Errorf("path=(%s) %w: %w", path, ErrInvalidPath, reason)
}

// NewErrWriteCanceled joins ErrWriteCanceled with the context error that stopped the loop.
func NewErrWriteCanceled(cause error) error {
	return errors.Join(ErrWriteCanceled, cause)
}

// NewErrWriteAttemptsExhausted formats an ErrWriteAttemptsExhausted for the given path.
func NewErrWriteAttemptsExhausted(path string, attempts int) error {
	return fmt.Errorf("(path=%s attempts=%d) %w", path, attempts, ErrWriteAttemptsExhausted)
}

// IsTransient reports whether err is a connectivity failure the caller may retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
