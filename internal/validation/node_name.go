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

package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// nodeNamePattern is the character set every supported coordination backend
// accepts inside a single path segment.
var nodeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

// nodeNameValidator checks a single path segment
type nodeNameValidator struct {
	name string
}

var _ Validator = (*nodeNameValidator)(nil)

// NewNodeNameValidator creates a validator for a single node name
func NewNodeNameValidator(name string) Validator {
	return &nodeNameValidator{name: name}
}

// Validate implements Validator.
func (v *nodeNameValidator) Validate() error {
	switch {
	case v.name == "":
		return fmt.Errorf("name must not be empty")
	case v.name == "." || v.name == "..":
		return fmt.Errorf("name must not be a relative path element")
	case strings.Contains(v.name, "/"):
		return fmt.Errorf("name must not contain '/'")
	}
	return NewPatternValidator(nodeNamePattern, v.name,
		fmt.Errorf("name must match %s", nodeNamePattern.String())).Validate()
}

// parentPathValidator checks a namespace parent path. The empty path denotes the root.
type parentPathValidator struct {
	path string
}

var _ Validator = (*parentPathValidator)(nil)

// NewParentPathValidator creates a validator for a parent path such as "" or "/app/vars"
func NewParentPathValidator(path string) Validator {
	return &parentPathValidator{path: path}
}

// Validate implements Validator.
func (v *parentPathValidator) Validate() error {
	if v.path == "" {
		return nil
	}

	if !strings.HasPrefix(v.path, "/") {
		return fmt.Errorf("path %q must start with '/'", v.path)
	}

	if strings.HasSuffix(v.path, "/") {
		return fmt.Errorf("path %q must not end with '/'", v.path)
	}

	for _, segment := range strings.Split(v.path[1:], "/") {
		if err := NewNodeNameValidator(segment).Validate(); err != nil {
			return fmt.Errorf("path %q: %w", v.path, err)
		}
	}
	return nil
}
