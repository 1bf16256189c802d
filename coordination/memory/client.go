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

package memory

import (
	"context"
	"errors"

	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
)

var errUnavailable = errors.New("memory: server unavailable")

// Client is a session on a Server
type Client struct {
	server *Server
	closed *atomic.Bool
	done   chan struct{}
}

// enforce compilation error
var _ coordination.Client = (*Client)(nil)

// Exists implements coordination.Client.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	if err := c.check(ctx, "exists", path); err != nil {
		return false, err
	}
	return c.server.exists(path), nil
}

// Read implements coordination.Client.
func (c *Client) Read(ctx context.Context, path string) (*coordination.Node, error) {
	if err := c.check(ctx, "read", path); err != nil {
		return nil, err
	}

	node, ok := c.server.read(path)
	if !ok {
		return nil, gerrors.NewErrNodeNotFound(path)
	}
	return node, nil
}

// ConditionalWrite implements coordination.Client.
func (c *Client) ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error) {
	if err := c.check(ctx, "conditional write", path); err != nil {
		return 0, err
	}

	version, found, conflict := c.server.write(path, value, expected)
	switch {
	case !found:
		return 0, gerrors.NewErrNodeNotFound(path)
	case conflict:
		return 0, gerrors.NewErrVersionConflict(path, expected)
	default:
		return version, nil
	}
}

// Create implements coordination.Client.
func (c *Client) Create(ctx context.Context, path string, value []byte) (*coordination.Node, error) {
	if err := c.check(ctx, "create", path); err != nil {
		return nil, err
	}

	node, created := c.server.create(path, value)
	if !created {
		return nil, gerrors.NewErrNodeExists(path)
	}
	return node, nil
}

// Watch implements coordination.Client.
func (c *Client) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if err := c.check(ctx, "watch", path); err != nil {
		return nil, err
	}

	return c.server.hub.Watch(ctx, c.done, path), nil
}

// Close implements coordination.Client. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
	return nil
}

func (c *Client) check(ctx context.Context, op, path string) error {
	if c.closed.Load() {
		return gerrors.ErrConnectionClosed
	}
	return c.server.check(ctx, op, path)
}

func connectivityError(op, path string, err error) error {
	return gerrors.NewErrConnectivity(op, path, err)
}
