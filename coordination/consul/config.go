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

package consul

import (
	"strings"
	"time"

	"github.com/tochemey/atomvar/internal/validation"
	"github.com/tochemey/atomvar/log"
)

const (
	defaultAddress = "127.0.0.1:8500"
	defaultPrefix  = "atomvar"
)

// Config defines the configuration options for the Consul KV backend.
type Config struct {
	// Address is the address of the Consul agent to connect to.
	// Default: "127.0.0.1:8500"
	Address string
	// Datacenter specifies the Consul datacenter to use.
	// If empty, the agent's default datacenter is used.
	Datacenter string
	// Token is the Consul ACL token used for authenticated requests.
	Token string
	// Prefix is the KV folder holding the nodes. Default: "atomvar"
	Prefix string
	// Timeout specifies the maximum duration for Consul requests.
	// Default: 10s
	Timeout time.Duration
	// WatchWaitTime is the maximum duration of a blocking query issued by Watch.
	// Default: 5s
	WatchWaitTime time.Duration
	// Logger receives the backend diagnostics. Defaults to log.DiscardLogger.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Sanitize sets defaults for empty fields.
func (config *Config) Sanitize() {
	if strings.TrimSpace(config.Address) == "" {
		config.Address = defaultAddress
	}

	config.Prefix = strings.Trim(strings.TrimSpace(config.Prefix), "/")
	if config.Prefix == "" {
		config.Prefix = defaultPrefix
	}

	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	if config.WatchWaitTime == 0 {
		config.WatchWaitTime = 5 * time.Second
	}

	if config.Logger == nil {
		config.Logger = log.DiscardLogger
	}
}

// Validate checks if the configuration is valid.
func (config *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Address", config.Address)).
		AddAssertion(config.Timeout > 0, "Timeout must be greater than 0").
		AddAssertion(config.WatchWaitTime > 0, "WatchWaitTime must be greater than 0").
		Validate()
}
