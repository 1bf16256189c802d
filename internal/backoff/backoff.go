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

// Package backoff computes capped exponential delays with jitter for retry loops.
package backoff

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Backoff describes a capped exponential backoff schedule.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	jitter  float64
}

// New creates a Backoff. A zero initial delay disables waiting entirely,
// max is raised to initial when smaller, and jitter is clamped to [0, 1].
func New(initial, max time.Duration, jitter float64) *Backoff {
	if initial < 0 {
		initial = 0
	}
	if max < initial {
		max = initial
	}
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Backoff{initial: initial, max: max, jitter: jitter}
}

// Delay returns the delay before the given retry attempt (starting at 1).
func (b *Backoff) Delay(attempt int) time.Duration {
	if b.initial == 0 {
		return 0
	}

	delay := b.initial
	for i := 1; i < attempt && delay < b.max; i++ {
		delay *= 2
		if delay > b.max {
			delay = b.max
			break
		}
	}
	return jitterDuration(delay, b.jitter)
}

// Wait sleeps for the delay of the given attempt. It returns ctx.Err() when
// the context is done before the delay elapses.
func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	delay := b.Delay(attempt)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitterDuration(base time.Duration, ratio float64) time.Duration {
	if ratio <= 0 {
		return base
	}
	delta := ratio * float64(base)
	jitter := (secureFloat64()*2 - 1) * delta
	delay := base + time.Duration(jitter)
	if delay <= 0 {
		return base
	}
	return delay
}

func secureFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// 53 bits match the float64 mantissa
	raw := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(raw) / (1 << 53)
}
