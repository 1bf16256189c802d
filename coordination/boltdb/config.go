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

package boltdb

import (
	"os"
	"strings"
	"time"

	"github.com/tochemey/atomvar/internal/validation"
	"github.com/tochemey/atomvar/log"
)

const (
	defaultBucket               = "atomvar"
	defaultFileMode os.FileMode = 0o600
)

// Config holds the bbolt backend configuration
type Config struct {
	// Path is the database file. It is created when missing.
	Path string
	// Bucket holds the nodes. Defaults to atomvar.
	Bucket string
	// OpenTimeout bounds the wait for the file lock held by another process. Defaults to 5s.
	OpenTimeout time.Duration
	// NoSync skips fsync after every commit. Only for tests and throwaway data.
	NoSync bool
	// Logger receives the backend diagnostics. Defaults to log.DiscardLogger.
	Logger log.Logger
}

var _ validation.Validator = (*Config)(nil)

// Validate implements validation.Validator.
func (c *Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("Path", c.Path)).
		AddValidator(validation.NewEmptyStringValidator("Bucket", c.Bucket)).
		AddAssertion(c.OpenTimeout > 0, "OpenTimeout must be greater than 0").
		Validate()
}

// Sanitize sets defaults for empty fields.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.Bucket) == "" {
		c.Bucket = defaultBucket
	}
	if c.OpenTimeout == 0 {
		c.OpenTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.DiscardLogger
	}
}
