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

// Package consul implements coordination.Client on the Consul KV store.
//
// The version of a node is the ModifyIndex of its key. Conditional writes and
// creations are single-operation transactions using the check-and-set verb,
// which returns the index assigned to the write.
package consul

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
	"github.com/tochemey/atomvar/internal/backoff"
)

// Client is a Consul KV-backed coordination.Client
type Client struct {
	config *Config
	client *api.Client
	kv     *api.KV
	closed *atomic.Bool
	done   chan struct{}
}

// enforce compilation error
var _ coordination.Client = (*Client)(nil)

// NewClient creates the Consul client and checks the agent is reachable
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("coordination/consul: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("consul config is invalid: %w", err)
	}

	logger := config.Logger
	logger.Debugf("connecting to consul address=%s", config.Address)

	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Address
	consulConfig.Datacenter = config.Datacenter
	consulConfig.Token = config.Token

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", fmt.Errorf("failed to create consul client: %w", err))
	}

	dialCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	query := (&api.QueryOptions{Datacenter: config.Datacenter}).WithContext(dialCtx)
	if _, err := client.Status().LeaderWithQueryOptions(query); err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", fmt.Errorf("failed to connect to consul: %w", err))
	}

	logger.Debugf("connected to consul address=%s prefix=%s", config.Address, config.Prefix)
	return &Client{
		config: config,
		client: client,
		kv:     client.KV(),
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
	if c.closed.Load() {
		return false, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	pair, _, err := c.kv.Get(c.key(path), c.queryOptions(opCtx))
	if err != nil {
		return false, c.mapError("exists", path, err)
	}
	return pair != nil, nil
}

// Read implements coordination.Client.
func (c *Client) Read(ctx context.Context, path string) (*coordination.Node, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	pair, _, err := c.kv.Get(c.key(path), c.queryOptions(opCtx))
	if err != nil {
		return nil, c.mapError("read", path, err)
	}

	if pair == nil {
		return nil, gerrors.NewErrNodeNotFound(path)
	}
	return toNode(path, pair), nil
}

// ConditionalWrite implements coordination.Client.
func (c *Client) ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error) {
	if c.closed.Load() {
		return 0, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	// a zero index turns the check-and-set into a create
	if expected > 0 {
		version, ok, err := c.checkAndSet(opCtx, path, value, expected)
		if err != nil {
			return 0, c.mapError("conditional write", path, err)
		}

		if ok {
			return version, nil
		}
	}

	pair, _, err := c.kv.Get(c.key(path), c.queryOptions(opCtx))
	if err != nil {
		return 0, c.mapError("conditional write", path, err)
	}

	if pair == nil {
		return 0, gerrors.NewErrNodeNotFound(path)
	}
	return 0, gerrors.NewErrVersionConflict(path, expected)
}

// Create implements coordination.Client.
func (c *Client) Create(ctx context.Context, path string, value []byte) (*coordination.Node, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	version, ok, err := c.checkAndSet(opCtx, path, value, 0)
	if err != nil {
		return nil, c.mapError("create", path, err)
	}

	if !ok {
		return nil, gerrors.NewErrNodeExists(path)
	}

	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), value...),
		Version: version,
	}, nil
}

// Watch implements coordination.Client.
//
// Watch runs Consul blocking queries on the key. Transient query failures are
// retried with backoff until ctx is done or the client is closed.
func (c *Client) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	opCtx, cancel := c.withTimeout(ctx)
	pair, meta, err := c.kv.Get(c.key(path), c.queryOptions(opCtx))
	cancel()
	if err != nil {
		return nil, c.mapError("watch", path, err)
	}

	var lastVersion uint64
	if pair != nil {
		lastVersion = pair.ModifyIndex
	}

	events := make(chan coordination.Event)
	go c.watch(ctx, path, meta.LastIndex, lastVersion, events)
	return events, nil
}

// Close implements coordination.Client. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
	return nil
}

func (c *Client) watch(ctx context.Context, path string, waitIndex, lastVersion uint64, events chan<- coordination.Event) {
	defer close(events)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.done:
			cancel()
		case <-watchCtx.Done():
		}
	}()

	retries := backoff.New(100*time.Millisecond, 5*time.Second, 0.2)
	failures := 0

	for watchCtx.Err() == nil {
		query := c.queryOptions(watchCtx)
		query.WaitIndex = waitIndex
		query.WaitTime = c.config.WatchWaitTime

		pair, meta, err := c.kv.Get(c.key(path), query)
		if err != nil {
			if watchCtx.Err() != nil {
				return
			}

			failures++
			c.config.Logger.Warnf("consul watch on %s failed: %v", path, err)
			if retries.Wait(watchCtx, failures) != nil {
				return
			}
			continue
		}

		failures = 0
		// the index went backwards: Consul asks to restart from zero
		if meta.LastIndex < waitIndex {
			waitIndex = 0
			continue
		}
		waitIndex = meta.LastIndex

		var event *coordination.Event
		switch {
		case pair != nil && pair.ModifyIndex > lastVersion:
			lastVersion = pair.ModifyIndex
			event = &coordination.Event{Type: coordination.EventUpdated, Node: toNode(path, pair)}
		case pair == nil && lastVersion > 0:
			event = &coordination.Event{Type: coordination.EventDeleted, Node: &coordination.Node{Path: path, Version: lastVersion}}
			lastVersion = 0
		}

		if event == nil {
			continue
		}

		select {
		case events <- *event:
		case <-watchCtx.Done():
			return
		}
	}
}

// checkAndSet runs a single check-and-set operation and returns the index of the write
func (c *Client) checkAndSet(ctx context.Context, path string, value []byte, index uint64) (uint64, bool, error) {
	ops := api.KVTxnOps{
		&api.KVTxnOp{
			Verb:  api.KVCAS,
			Key:   c.key(path),
			Value: value,
			Index: index,
		},
	}

	ok, resp, _, err := c.kv.Txn(ops, c.queryOptions(ctx))
	if err != nil {
		return 0, false, err
	}

	if !ok || resp == nil || len(resp.Results) == 0 {
		return 0, false, nil
	}
	return resp.Results[0].ModifyIndex, true, nil
}

func (c *Client) key(path string) string {
	return c.config.Prefix + path
}

func (c *Client) queryOptions(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{Datacenter: c.config.Datacenter}).WithContext(ctx)
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

func toNode(path string, pair *api.KVPair) *coordination.Node {
	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), pair.Value...),
		Version: pair.ModifyIndex,
	}
}
