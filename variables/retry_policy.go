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

package variables

import (
	"time"

	"github.com/tochemey/atomvar/internal/backoff"
	"github.com/tochemey/atomvar/internal/validation"
)

const (
	defaultInitialBackoff = 5 * time.Millisecond
	defaultMaxBackoff     = 250 * time.Millisecond
	defaultJitter         = 0.2
)

// RetryPolicy drives the conditional write loop of a Variable after a version conflict.
type RetryPolicy struct {
	// InitialBackoff is the wait before the first retry. Zero retries immediately.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponentially growing wait.
	MaxBackoff time.Duration
	// Jitter randomizes every wait by up to this fraction, in [0, 1].
	Jitter float64
	// MaxAttempts bounds the number of conditional writes per call. Zero means unbounded.
	MaxAttempts int
	// Timeout bounds a whole write call, retries included. Zero means no bound
	// other than the caller context.
	Timeout time.Duration
}

var _ validation.Validator = (*RetryPolicy)(nil)

// DefaultRetryPolicy returns the policy used when none is configured:
// unbounded retries with a backoff growing from 5ms to 250ms.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		Jitter:         defaultJitter,
	}
}

// Validate implements validation.Validator.
func (p *RetryPolicy) Validate() error {
	return validation.New(validation.AllErrors()).
		AddAssertion(p.InitialBackoff >= 0, "InitialBackoff must not be negative").
		AddAssertion(p.MaxBackoff >= p.InitialBackoff, "MaxBackoff must not be lower than InitialBackoff").
		AddAssertion(p.Jitter >= 0 && p.Jitter <= 1, "Jitter must be between 0 and 1").
		AddAssertion(p.MaxAttempts >= 0, "MaxAttempts must not be negative").
		AddAssertion(p.Timeout >= 0, "Timeout must not be negative").
		Validate()
}

func (p *RetryPolicy) backoff() *backoff.Backoff {
	return backoff.New(p.InitialBackoff, p.MaxBackoff, p.Jitter)
}
