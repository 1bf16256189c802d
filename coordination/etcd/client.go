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

// Package etcd implements coordination.Client on etcd v3.
//
// A node maps to one key under the configured namespace. Its version is the
// key ModRevision, so conditional writes are transactions comparing it and
// creations are transactions requiring a zero CreateRevision.
package etcd

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
)

// Client is an etcd-backed coordination.Client
type Client struct {
	config  *Config
	client  *clientv3.Client
	kv      clientv3.KV
	watcher clientv3.Watcher
	closed  *atomic.Bool
	done    chan struct{}
}

// enforce compilation error
var _ coordination.Client = (*Client)(nil)

// NewClient connects to etcd and checks the first endpoint is serving
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("coordination/etcd: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	logger.Debugf("connecting to etcd endpoints=%v", config.Endpoints)

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		TLS:         config.TLS,
		Username:    config.Username,
		Password:    config.Password,
	})
	if err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if _, err := client.Status(dialCtx, config.Endpoints[0]); err != nil {
		if cerr := client.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	logger.Debugf("connected to etcd endpoints=%v namespace=%s", config.Endpoints, config.Namespace)

	prefix := config.Namespace
	return &Client{
		config:  config,
		client:  client,
		kv:      namespace.NewKV(client.KV, prefix),
		watcher: namespace.NewWatcher(client.Watcher, prefix),
		closed:  atomic.NewBool(false),
		done:    make(chan struct{}),
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
	if c.closed.Load() {
		return false, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.kv.Get(opCtx, path, clientv3.WithCountOnly())
	if err != nil {
		return false, c.mapError("exists", path, err)
	}
	return resp.Count > 0, nil
}

// Read implements coordination.Client.
func (c *Client) Read(ctx context.Context, path string) (*coordination.Node, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.kv.Get(opCtx, path)
	if err != nil {
		return nil, c.mapError("read", path, err)
	}

	if len(resp.Kvs) == 0 {
		return nil, gerrors.NewErrNodeNotFound(path)
	}

	return toNode(path, resp.Kvs[0]), nil
}

// ConditionalWrite implements coordination.Client.
func (c *Client) ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error) {
	if c.closed.Load() {
		return 0, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	// a missing key has a zero ModRevision, the comparison would create it
	if expected == 0 {
		resp, err := c.kv.Get(opCtx, path, clientv3.WithCountOnly())
		if err != nil {
			return 0, c.mapError("conditional write", path, err)
		}
		if resp.Count == 0 {
			return 0, gerrors.NewErrNodeNotFound(path)
		}
		return 0, gerrors.NewErrVersionConflict(path, expected)
	}

	resp, err := c.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.ModRevision(path), "=", int64(expected))).
		Then(clientv3.OpPut(path, string(value))).
		Else(clientv3.OpGet(path, clientv3.WithCountOnly())).
		Commit()
	if err != nil {
		return 0, c.mapError("conditional write", path, err)
	}

	if !resp.Succeeded {
		if len(resp.Responses) > 0 {
			if rng := resp.Responses[0].GetResponseRange(); rng != nil && rng.Count == 0 {
				return 0, gerrors.NewErrNodeNotFound(path)
			}
		}
		return 0, gerrors.NewErrVersionConflict(path, expected)
	}

	return uint64(resp.Header.Revision), nil
}

// Create implements coordination.Client.
func (c *Client) Create(ctx context.Context, path string, value []byte) (*coordination.Node, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.kv.Txn(opCtx).
		If(clientv3.Compare(clientv3.CreateRevision(path), "=", 0)).
		Then(clientv3.OpPut(path, string(value))).
		Commit()
	if err != nil {
		return nil, c.mapError("create", path, err)
	}

	if !resp.Succeeded {
		return nil, gerrors.NewErrNodeExists(path)
	}

	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), value...),
		Version: uint64(resp.Header.Revision),
	}, nil
}

// Watch implements coordination.Client.
//
// The returned channel is closed when ctx is done, when the client is closed
// or when etcd terminates the watch (e.g. on compaction).
func (c *Client) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	watchCtx, cancel := context.WithCancel(clientv3.WithRequireLeader(ctx))
	watchChan := c.watcher.Watch(watchCtx, path, clientv3.WithPrevKV())

	events := make(chan coordination.Event)
	go func() {
		defer close(events)
		defer cancel()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-c.done:
				return
			case resp, ok := <-watchChan:
				if !ok {
					return
				}

				if err := resp.Err(); err != nil {
					c.config.Logger.Warnf("etcd watch on %s terminated: %v", path, err)
					return
				}

				for _, ev := range resp.Events {
					event := toEvent(path, ev)
					select {
					case events <- event:
					case <-watchCtx.Done():
						return
					case <-c.done:
						return
					}
				}
			}
		}
	}()
	return events, nil
}

// Close implements coordination.Client. Close is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	return c.client.Close()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}

func (c *Client) mapError(op, path string, err error) error {
	if c.closed.Load() {
		return gerrors.ErrConnectionClosed
	}
	return gerrors.NewErrConnectivity(op, path, err)
}

func toNode(path string, kv *mvccpb.KeyValue) *coordination.Node {
	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), kv.Value...),
		Version: uint64(kv.ModRevision),
	}
}

func toEvent(path string, ev *clientv3.Event) coordination.Event {
	if ev.Type == clientv3.EventTypeDelete {
		node := &coordination.Node{Path: path}
		if ev.PrevKv != nil {
			node = toNode(path, ev.PrevKv)
		}
		return coordination.Event{Type: coordination.EventDeleted, Node: node}
	}
	return coordination.Event{Type: coordination.EventUpdated, Node: toNode(path, ev.Kv)}
}
