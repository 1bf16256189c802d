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
	"context"
	"errors"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
)

// Client is a session on a Store
type Client struct {
	store *Store
	// owner closes the store with the session
	owner  bool
	closed *atomic.Bool
	done   chan struct{}
}

// enforce compilation error
var _ coordination.Client = (*Client)(nil)

// NewClient opens the store described by config and returns a session owning it
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	store, err := Open(config)
	if err != nil {
		return nil, err
	}
	return newClient(store, true), nil
}

// NewDialer returns a coordination.Dialer opening the store with the given config
func NewDialer(config *Config) coordination.Dialer {
	return func(ctx context.Context) (coordination.Client, error) {
		return NewClient(ctx, config)
	}
}

func newClient(store *Store, owner bool) *Client {
	return &Client{
		store:  store,
		owner:  owner,
		closed: atomic.NewBool(false),
		done:   make(chan struct{}),
	}
}

// Exists implements coordination.Client.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	if err := c.check(ctx, "exists", path); err != nil {
		return false, err
	}

	found, err := c.store.exists(path)
	if err != nil {
		return false, c.mapError("exists", path, err)
	}
	return found, nil
}

// Read implements coordination.Client.
func (c *Client) Read(ctx context.Context, path string) (*coordination.Node, error) {
	if err := c.check(ctx, "read", path); err != nil {
		return nil, err
	}

	node, err := c.store.read(path)
	if err != nil {
		return nil, c.mapError("read", path, err)
	}
	return node, nil
}

// ConditionalWrite implements coordination.Client.
func (c *Client) ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error) {
	if err := c.check(ctx, "conditional write", path); err != nil {
		return 0, err
	}

	version, err := c.store.write(path, value, expected)
	if err != nil {
		if errors.Is(err, errConflict) {
			return 0, gerrors.NewErrVersionConflict(path, expected)
		}
		return 0, c.mapError("conditional write", path, err)
	}
	return version, nil
}

// Create implements coordination.Client.
func (c *Client) Create(ctx context.Context, path string, value []byte) (*coordination.Node, error) {
	if err := c.check(ctx, "create", path); err != nil {
		return nil, err
	}

	node, err := c.store.create(path, value)
	if err != nil {
		return nil, c.mapError("create", path, err)
	}
	return node, nil
}

// Watch implements coordination.Client. Only writes issued through the same
// Store are observed.
func (c *Client) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if err := c.check(ctx, "watch", path); err != nil {
		return nil, err
	}
	return c.store.watch(ctx, c.done, path), nil
}

// Close implements coordination.Client. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	if c.owner {
		return c.store.Close()
	}
	return nil
}

func (c *Client) check(ctx context.Context, op, path string) error {
	if c.closed.Load() || c.store.closed.Load() {
		return gerrors.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return gerrors.NewErrConnectivity(op, path, err)
	}
	return nil
}

func (c *Client) mapError(op, path string, err error) error {
	switch {
	case errors.Is(err, errNodeNotFound):
		return gerrors.NewErrNodeNotFound(path)
	case errors.Is(err, errNodeExists):
		return gerrors.NewErrNodeExists(path)
	case errors.Is(err, bbolt.ErrDatabaseNotOpen), c.store.closed.Load():
		return gerrors.ErrConnectionClosed
	default:
		return gerrors.NewErrConnectivity(op, path, err)
	}
}
