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

package nats

import (
	"regexp"
	"strings"
	"time"

	"github.com/tochemey/atomvar/internal/validation"
	"github.com/tochemey/atomvar/log"
)

const defaultBucket = "atomvar"

var bucketPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Config holds configuration for the NATS JetStream KeyValue backend.
type Config struct {
	// URL is the NATS server URL (e.g. nats://127.0.0.1:4222).
	URL string
	// Bucket is the JetStream KeyValue bucket holding the nodes.
	// Must be alphanumeric, dashes, or underscores. Defaults to atomvar.
	Bucket string
	// Replicas is the number of bucket replicas when the bucket is created. Defaults to 1.
	Replicas int
	// Timeout sets the timeout for JetStream operations.
	Timeout time.Duration
	// ConnectTimeout sets the timeout for establishing the NATS connection.
	ConnectTimeout time.Duration
	// Logger receives the backend diagnostics. Defaults to log.DiscardLogger.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(strings.TrimSpace(c.URL) != "", "URL must not be empty").
		AddAssertion(bucketPattern.MatchString(c.Bucket), "Bucket must be alphanumeric, dashes, or underscores").
		AddAssertion(c.Replicas >= 1 && c.Replicas <= 5, "Replicas must be between 1 and 5").
		AddAssertion(c.Timeout > 0, "Timeout must be greater than 0").
		AddAssertion(c.ConnectTimeout > 0, "ConnectTimeout must be greater than 0").
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Bucket) == "" {
		c.Bucket = defaultBucket
	}
	if c.Replicas == 0 {
		c.Replicas = 1
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
}
