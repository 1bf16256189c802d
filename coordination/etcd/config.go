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

package etcd

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/tochemey/atomvar/internal/validation"
	"github.com/tochemey/atomvar/log"
)

const defaultNamespace = "atomvar"

// Config holds the etcd backend configuration
type Config struct {
	// Endpoints lists the etcd client URLs, e.g. http://127.0.0.1:2379
	Endpoints []string
	// Namespace prefixes every key written by the backend. Defaults to atomvar.
	Namespace string
	// DialTimeout bounds the connection handshake
	DialTimeout time.Duration
	// Timeout bounds every single etcd request
	Timeout time.Duration
	// TLS enables client TLS when set
	TLS *tls.Config
	// Username and Password enable etcd authentication when set
	Username string
	Password string
	// Logger receives the backend diagnostics. Defaults to log.DiscardLogger.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddAssertion(len(c.Endpoints) > 0, "Endpoints must not be empty").
		AddAssertion(c.DialTimeout > 0, "DialTimeout must be greater than 0").
		AddAssertion(c.Timeout > 0, "Timeout must be greater than 0").
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	c.Namespace = strings.Trim(strings.TrimSpace(c.Namespace), "/")
	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
}
