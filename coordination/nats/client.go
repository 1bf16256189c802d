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

// Package nats implements coordination.Client on a NATS JetStream KeyValue bucket.
//
// A node maps to one key (its path without the leading slash). The version is
// the entry revision, which is the stream sequence and therefore strictly
// increasing across the whole bucket.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
)

// Client is a NATS JetStream KeyValue-backed coordination.Client.
type Client struct {
	config *Config
	conn   *nats.Conn
	kv     nats.KeyValue
	closed *atomic.Bool
	done   chan struct{}
}

// enforce compilation error
var _ coordination.Client = (*Client)(nil)

// NewClient connects to the NATS server and ensures the bucket exists.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("coordination/nats: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	logger := config.Logger
	logger.Debugf("connecting to nats url=%s bucket=%s", config.URL, config.Bucket)

	conn, err := nats.Connect(config.URL, nats.Timeout(config.ConnectTimeout))
	if err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", err)
	}

	js, err := conn.JetStream(nats.MaxWait(config.Timeout))
	if err != nil {
		conn.Close()
		return nil, gerrors.NewErrConnectivity("connect", "", fmt.Errorf("jetstream: %w", err))
	}

	// the bucket may already exist or be created concurrently by another client
	kv, err := js.KeyValue(config.Bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:   config.Bucket,
			History:  1,
			Replicas: config.Replicas,
		})
		if err != nil {
			if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
				kv, err = js.KeyValue(config.Bucket)
			}

			if err != nil {
				conn.Close()
				return nil, gerrors.NewErrConnectivity("connect", "", fmt.Errorf("create bucket: %w", err))
			}
		}
	}

	logger.Debugf("connected to nats url=%s bucket=%s", config.URL, config.Bucket)
	return &Client{
		config: config,
		conn:   conn,
		kv:     kv,
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

	if _, err := c.kv.Get(coordination.Key(path)); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, c.mapError("exists", path, err)
	}
	return true, nil
}

// Read implements coordination.Client.
func (c *Client) Read(ctx context.Context, path string) (*coordination.Node, error) {
	if err := c.check(ctx, "read", path); err != nil {
		return nil, err
	}

	entry, err := c.kv.Get(coordination.Key(path))
	if err != nil {
		if isNotFound(err) {
			return nil, gerrors.NewErrNodeNotFound(path)
		}
		return nil, c.mapError("read", path, err)
	}
	return toNode(path, entry), nil
}

// ConditionalWrite implements coordination.Client.
func (c *Client) ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error) {
	if err := c.check(ctx, "conditional write", path); err != nil {
		return 0, err
	}

	key := coordination.Key(path)

	// revision zero asks JetStream for an empty subject, which would create the key
	if expected > 0 {
		revision, err := c.kv.Update(key, value, expected)
		if err == nil {
			return revision, nil
		}

		if !isRevisionConflict(err) {
			return 0, c.mapError("conditional write", path, err)
		}
	}

	// a missing key fails the same sequence check
	if _, gerr := c.kv.Get(key); gerr != nil {
		if isNotFound(gerr) {
			return 0, gerrors.NewErrNodeNotFound(path)
		}
		return 0, c.mapError("conditional write", path, gerr)
	}
	return 0, gerrors.NewErrVersionConflict(path, expected)
}

// Create implements coordination.Client.
func (c *Client) Create(ctx context.Context, path string, value []byte) (*coordination.Node, error) {
	if err := c.check(ctx, "create", path); err != nil {
		return nil, err
	}

	revision, err := c.kv.Create(coordination.Key(path), value)
	if err != nil {
		if isRevisionConflict(err) {
			return nil, gerrors.NewErrNodeExists(path)
		}
		return nil, c.mapError("create", path, err)
	}

	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), value...),
		Version: revision,
	}, nil
}

// Watch implements coordination.Client.
func (c *Client) Watch(ctx context.Context, path string) (<-chan coordination.Event, error) {
	if err := c.check(ctx, "watch", path); err != nil {
		return nil, err
	}

	watcher, err := c.kv.Watch(coordination.Key(path), nats.Context(ctx), nats.UpdatesOnly())
	if err != nil {
		return nil, c.mapError("watch", path, err)
	}

	events := make(chan coordination.Event)
	go func() {
		defer close(events)
		defer func() { _ = watcher.Stop() }()
		for {
			var entry nats.KeyValueEntry
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case next, ok := <-watcher.Updates():
				if !ok {
					return
				}
				entry = next
			}

			if entry == nil {
				continue
			}

			select {
			case events <- toEvent(path, entry):
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
	c.conn.Close()
	return nil
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
	if c.closed.Load() || errors.Is(err, nats.ErrConnectionClosed) {
		return gerrors.ErrConnectionClosed
	}
	return gerrors.NewErrConnectivity(op, path, err)
}

func toNode(path string, entry nats.KeyValueEntry) *coordination.Node {
	return &coordination.Node{
		Path:    path,
		Value:   append([]byte(nil), entry.Value()...),
		Version: entry.Revision(),
	}
}

func toEvent(path string, entry nats.KeyValueEntry) coordination.Event {
	switch entry.Operation() {
	case nats.KeyValueDelete, nats.KeyValuePurge:
		return coordination.Event{Type: coordination.EventDeleted, Node: &coordination.Node{Path: path, Version: entry.Revision()}}
	default:
		return coordination.Event{Type: coordination.EventUpdated, Node: toNode(path, entry)}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

// isRevisionConflict returns true when the NATS error indicates a revision/sequence mismatch.
func isRevisionConflict(err error) bool {
	if errors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	if errors.As(err, &apiErr) && apiErr != nil && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence {
		return true
	}
	return false
}
