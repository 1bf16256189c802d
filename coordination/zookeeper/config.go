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

package zookeeper

import (
	"strings"
	"time"

	"github.com/tochemey/atomvar/internal/validation"
	"github.com/tochemey/atomvar/log"
)

// Config holds the ZooKeeper backend configuration
type Config struct {
	// Servers lists the ensemble members as host:port
	Servers []string
	// Root is prepended to every path, e.g. /atomvar. Empty by default.
	Root string
	// SessionTimeout is the session timeout negotiated with the ensemble. Defaults to 2s.
	SessionTimeout time.Duration
	// DialTimeout bounds the wait for the session to be established. Defaults to 5s.
	DialTimeout time.Duration
	// Logger receives the backend diagnostics. Defaults to log.DiscardLogger.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	chain := validation.New(validation.FailFast()).
		AddAssertion(len(c.Servers) > 0, "Servers must not be empty").
		AddAssertion(c.SessionTimeout > 0, "SessionTimeout must be greater than 0").
		AddAssertion(c.DialTimeout > 0, "DialTimeout must be greater than 0")
	if c.Root != "" {
		chain = chain.AddValidator(validation.NewParentPathValidator(c.Root))
	}
	return chain.Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	c.Root = strings.TrimRight(strings.TrimSpace(c.Root), "/")
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 2 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
}
