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

	"go.opentelemetry.io/otel/metric"

	"github.com/tochemey/atomvar/log"
)

// Option is the interface that applies a configuration option.
type Option interface {
	// Apply sets the Option value of a config.
	Apply(ns *Namespace)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(ns *Namespace)

// Apply applies the Namespace's option
func (f OptionFunc) Apply(ns *Namespace) {
	f(ns)
}

// WithLogger sets the logger of the namespace and its variables
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(ns *Namespace) {
		if logger != nil {
			ns.logger = logger
		}
	})
}

// WithRetryPolicy sets the policy applied by the variables after a version conflict
func WithRetryPolicy(policy *RetryPolicy) Option {
	return OptionFunc(func(ns *Namespace) {
		if policy != nil {
			ns.retryPolicy = policy
		}
	})
}

// WithMeterProvider sets the OpenTelemetry meter provider used to record
// reads, writes, conflicts and creations. The global provider is used otherwise.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return OptionFunc(func(ns *Namespace) {
		ns.meterProvider = provider
	})
}

// WithConnectRetries sets how many times Connect dials the coordination
// service before giving up. The default is a single attempt.
func WithConnectRetries(attempts int) Option {
	return OptionFunc(func(ns *Namespace) {
		if attempts > 0 {
			ns.connectRetries = attempts
		}
	})
}

// WithOperationTimeout bounds every single call made to the coordination service
func WithOperationTimeout(timeout time.Duration) Option {
	return OptionFunc(func(ns *Namespace) {
		ns.operationTimeout = timeout
	})
}
