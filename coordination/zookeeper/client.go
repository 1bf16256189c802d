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

// Package zookeeper implements coordination.Client on a ZooKeeper ensemble.
//
// Nodes are persistent znodes with an open ACL; missing parents are created on
// demand. The exposed version is the znode data version plus one so that zero
// never denotes a stored node, matching the other backends.
package zookeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
	"github.com/tochemey/atomvar/internal/backoff"
	"github.com/tochemey/atomvar/log"
)

// Client is a ZooKeeper-backed coordination.Client
type Client struct {
	config *Config
	conn   *zk.Conn
	acl    []zk.ACL
	closed *atomic.Bool
	done   chan struct{}
}

// enforce compilation error
var _ coordination.Client = (*Client)(nil)

// NewClient connects to the ensemble and waits for the session to be established
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("coordination/zookeeper: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	logger.Debugf("connecting to zookeeper servers=%v", config.Servers)

	conn, sessionEvents, err := zk.Connect(config.Servers, config.SessionTimeout, zk.WithLogger(&zkLogger{logger: logger}))
	if err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if err := awaitSession(dialCtx, sessionEvents); err != nil {
		conn.Close()
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	logger.Debugf("connected to zookeeper session=%d", conn.SessionID())
	return &Client{
		config: config,
		conn:   conn,
		acl:    zk.WorldACL(zk.PermAll),
		closed: atomic.NewBool(false),
		done:   make(chan struct{}),
	}, nil
}

// NewDialer returns a coordination.Dialer connecting with the given config
func NewDialer(config *Config) coordination.Dialer {
	return func(ctx context.Context) (coordination.Client, error) {
		return NewClient(ctx, config)
	}
}

// Exists implements coordination.Client.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	if err := c.check(ctx, "exists", path); err != nil {
		return false, err
	}

	found, _, err := c.conn.Exists(c.znode(path))
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

	data, stat, err := c.conn.Get(c.znode(path))
	if err != nil {
		return nil, c.mapError("read", path, err)
	}
	return toNode(path, data, stat), nil
}

// ConditionalWrite implements coordination.Client.
func (c *Client) ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error) {
	if err := c.check(ctx, "conditional write", path); err != nil {
		return 0, err
	}

	if expected == 0 {
		found, _, err := c.conn.Exists(c.znode(path))
		if err != nil {
			return 0, c.mapError("conditional write", path, err)
		}
		if !found {
			return 0, gerrors.NewErrNodeNotFound(path)
		}
		return 0, gerrors.NewErrVersionConflict(path, expected)
	}

	stat, err := c.conn.Set(c.znode(path), value, int32(expected-1))
	if err != nil {
		if errors.Is(err, zk.ErrBadVersion) {
			return 0, gerrors.NewErrVersionConflict(path, expected)
		}
		return 0, c.mapError("conditional write", path, err)
	}
	return version(stat), nil
}

// Create implements coordination.Client.
func (c *Client) Create(ctx context.Context, path string, value []byte) (*coordination.Node, error) {
	if err := c.check(ctx, "create", path); err != nil {
		return nil, err
	}

	for _, parent := range coordination.Parents(c.znode(path)) {
		if _, err := c.conn.Create(parent, nil, 0, c.acl); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return nil, c.mapError("create", path, err)
		}
	}

	if _, err := c.conn.Create(c.znode(path), value, 0, c.acl); err != nil {
		return nil, c.mapError("create", path, err)
	}

	// a freshly created znode has data version 0
	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), value...),
		Version: 1,
	}, nil
}

// Watch implements coordination.Client.
//
// ZooKeeper watches fire once, so the watch is re-armed after every
// notification and the node is read back to build the event.
func (c *Client) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if err := c.check(ctx, "watch", path); err != nil {
		return nil, err
	}

	current, trigger, err := c.arm(path)
	if err != nil {
		return nil, c.mapError("watch", path, err)
	}

	events := make(chan coordination.Event)
	go c.watch(ctx, path, current, trigger, events)
	return events, nil
}

// Close implements coordination.Client. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.conn.Close()
	return nil
}

func (c *Client) watch(ctx context.Context, path string, last *coordination.Node, trigger <-chan zk.Event, events chan<- coordination.Event) {
	defer close(events)

	retries := backoff.New(100*time.Millisecond, 2*time.Second, 0.2)
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-trigger:
		}

		current, next, err := c.arm(path)
		for err != nil {
			if c.closed.Load() {
				return
			}

			failures++
			c.config.Logger.Warnf("zookeeper watch on %s failed: %v", path, err)
			if retries.Wait(ctx, failures) != nil {
				return
			}
			current, next, err = c.arm(path)
		}

		failures = 0
		trigger = next

		var event *coordination.Event
		switch {
		case current == nil && last != nil:
			event = &coordination.Event{Type: coordination.EventDeleted, Node: &coordination.Node{Path: path, Version: last.Version}}
		case current != nil && (last == nil || current.Version != last.Version):
			event = &coordination.Event{Type: coordination.EventUpdated, Node: current}
		}
		last = current

		if event == nil {
			continue
		}

		select {
		case events <- *event:
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

// arm reads the node and leaves a one-shot watch on it. A nil node means it does not exist.
func (c *Client) arm(path string) (*coordination.Node, <-chan zk.Event, error) {
	znode := c.znode(path)
	data, stat, trigger, err := c.conn.GetW(znode)
	if err == nil {
		return toNode(path, data, stat), trigger, nil
	}

	if !errors.Is(err, zk.ErrNoNode) {
		return nil, nil, err
	}

	found, _, trigger, err := c.conn.ExistsW(znode)
	if err != nil {
		return nil, nil, err
	}

	// created between the two calls
	if found {
		return c.arm(path)
	}
	return nil, trigger, nil
}

func (c *Client) znode(path string) string {
	return c.config.Root + path
}

func (c *Client) check(ctx context.Context, op, path string) error {
	if c.closed.Load() {
		return gerrors.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return gerrors.NewErrConnectivity(op, path, err)
	}
	return nil
}

func (c *Client) mapError(op, path string, err error) error {
	switch {
	case errors.Is(err, zk.ErrNoNode):
		return gerrors.NewErrNodeNotFound(path)
	case errors.Is(err, zk.ErrNodeExists):
		return gerrors.NewErrNodeExists(path)
	case c.closed.Load(), errors.Is(err, zk.ErrClosing), errors.Is(err, zk.ErrConnectionClosed):
		return gerrors.ErrConnectionClosed
	default:
		return gerrors.NewErrConnectivity(op, path, err)
	}
}

func awaitSession(ctx context.Context, sessionEvents <-chan zk.Event) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("session not established: %w", ctx.Err())
		case event, ok := <-sessionEvents:
			if !ok {
				return errors.New("session events closed")
			}

			switch event.State {
			case zk.StateHasSession:
				return nil
			case zk.StateAuthFailed:
				return errors.New("authentication failed")
			}
		}
	}
}

func toNode(path string, data []byte, stat *zk.Stat) *coordination.Node {
	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), data...),
		Version: version(stat),
	}
}

func version(stat *zk.Stat) uint64 {
	return uint64(stat.Version) + 1
}

// zkLogger routes the zk library output to the backend logger
type zkLogger struct {
	logger log.Logger
}

func (l *zkLogger) Printf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}
