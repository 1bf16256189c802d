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

// Package redis implements coordination.Client on a single Redis deployment.
//
// A node is a hash holding its value and version. Versions come from a
// per-prefix counter, and Lua scripts make the check and the write a single
// atomic step. Every successful write is published on a per-node channel,
// which backs Watch.
package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
)

const (
	fieldValue   = "value"
	fieldVersion = "version"
)

// Client is a Redis-backed coordination.Client
type Client struct {
	config *Config
	client *redis.Client
	closed *atomic.Bool
	done   chan struct{}
}

// enforce compilation error
var _ coordination.Client = (*Client)(nil)

// NewClient connects to Redis and pings the server
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("coordination/redis: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	logger.Debugf("connecting to redis addr=%s db=%d", config.Addr, config.DB)

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.Timeout,
		WriteTimeout: config.Timeout,
		TLSConfig:    config.TLS,
	})

	dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	if err := client.Ping(dialCtx).Err(); err != nil {
		_ = client.Close()
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	logger.Debugf("connected to redis addr=%s prefix=%s", config.Addr, config.Prefix)
	return &Client{
		config: config,
		client: client,
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

	count, err := c.client.Exists(ctx, c.nodeKey(path)).Result()
	if err != nil {
		return false, c.mapError("exists", path, err)
	}
	return count > 0, nil
}

// Read implements coordination.Client.
func (c *Client) Read(ctx context.Context, path string) (*coordination.Node, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	node, found, err := c.read(ctx, path)
	if err != nil {
		return nil, c.mapError("read", path, err)
	}

	if !found {
		return nil, gerrors.NewErrNodeNotFound(path)
	}
	return node, nil
}

// ConditionalWrite implements coordination.Client.
func (c *Client) ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error) {
	if c.closed.Load() {
		return 0, gerrors.ErrConnectionClosed
	}

	keys := []string{c.nodeKey(path), c.revisionKey()}
	result, err := conditionalWriteScript.Run(ctx, c.client, keys, value, strconv.FormatUint(expected, 10), c.channel(path)).Int64()
	if err != nil {
		return 0, c.mapError("conditional write", path, err)
	}

	switch result {
	case resultNotFound:
		return 0, gerrors.NewErrNodeNotFound(path)
	case resultConflict:
		return 0, gerrors.NewErrVersionConflict(path, expected)
	default:
		return uint64(result), nil
	}
}

// Create implements coordination.Client.
func (c *Client) Create(ctx context.Context, path string, value []byte) (*coordination.Node, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	keys := []string{c.nodeKey(path), c.revisionKey()}
	result, err := createScript.Run(ctx, c.client, keys, value, c.channel(path)).Int64()
	if err != nil {
		return nil, c.mapError("create", path, err)
	}

	if result == resultExists {
		return nil, gerrors.NewErrNodeExists(path)
	}

	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), value...),
		Version: uint64(result),
	}, nil
}

// Watch implements coordination.Client.
//
// Notifications only carry the new version: the node is read back before an
// event is emitted, and versions that are not newer than the last emitted one
// are skipped.
func (c *Client) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if c.closed.Load() {
		return nil, gerrors.ErrConnectionClosed
	}

	subscriber := c.client.Subscribe(ctx, c.channel(path))
	// wait for the subscription confirmation so no write is missed
	if _, err := subscriber.Receive(ctx); err != nil {
		_ = subscriber.Close()
		return nil, c.mapError("watch", path, err)
	}

	events := make(chan coordination.Event)
	go func() {
		defer close(events)
		defer func() { _ = subscriber.Close() }()

		messages := subscriber.Channel()
		var lastVersion uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
			}

			node, found, err := c.read(ctx, path)
			if err != nil {
				c.config.Logger.Warnf("redis watch on %s failed to read node: %v", path, err)
				continue
			}

			event := coordination.Event{Type: coordination.EventUpdated, Node: node}
			if !found {
				event = coordination.Event{Type: coordination.EventDeleted, Node: &coordination.Node{Path: path, Version: lastVersion}}
			} else if node.Version <= lastVersion {
				continue
			} else {
				lastVersion = node.Version
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			case <-c.done:
				return
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

func (c *Client) read(ctx context.Context, path string) (*coordination.Node, bool, error) {
	fields, err := c.client.HMGet(ctx, c.nodeKey(path), fieldValue, fieldVersion).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if len(fields) != 2 || fields[1] == nil {
		return nil, false, nil
	}

	rawVersion, _ := fields[1].(string)
	version, err := strconv.ParseUint(rawVersion, 10, 64)
	if err != nil {
		return nil, false, err
	}

	value, _ := fields[0].(string)
	return &coordination.Node{
		Path:    path,
		Value:   []byte(value),
		Version: version,
	}, true, nil
}

func (c *Client) nodeKey(path string) string {
	return c.config.Prefix + ":node:" + path
}

func (c *Client) revisionKey() string {
	return c.config.Prefix + ":revision"
}

func (c *Client) channel(path string) string {
	return c.config.Prefix + ":events:" + path
}

func (c *Client) mapError(op, path string, err error) error {
	if c.closed.Load() || errors.Is(err, redis.ErrClosed) {
		return gerrors.ErrConnectionClosed
	}
	return gerrors.NewErrConnectivity(op, path, err)
}
