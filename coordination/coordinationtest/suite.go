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

// Package coordinationtest holds the behavioural contract every
// coordination.Client implementation must satisfy.
package coordinationtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
)

// Factory returns a freshly connected client. The suite closes it.
type Factory func(t *testing.T) coordination.Client

// Run executes the conformance suite against the clients built by factory
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("With Exists on a missing node", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)

		exists, err := client.Exists(ctx, uniquePath("missing"))
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("With Create then Read", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("create")

		created, err := client.Create(ctx, path, []byte("hello"))
		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, path, created.Path)
		assert.Equal(t, []byte("hello"), created.Value)

		exists, err := client.Exists(ctx, path)
		require.NoError(t, err)
		assert.True(t, exists)

		node, err := client.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, path, node.Path)
		assert.Equal(t, []byte("hello"), node.Value)
		assert.Equal(t, created.Version, node.Version)
	})

	t.Run("With Create on an existing node", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("duplicate")

		_, err := client.Create(ctx, path, []byte("first"))
		require.NoError(t, err)

		_, err = client.Create(ctx, path, []byte("second"))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrNodeExists)

		node, err := client.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), node.Value)
	})

	t.Run("With Read on a missing node", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)

		node, err := client.Read(ctx, uniquePath("missing"))
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrNodeNotFound)
		assert.Nil(t, node)
	})

	t.Run("With ConditionalWrite on the current version", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("write")

		created, err := client.Create(ctx, path, []byte("v0"))
		require.NoError(t, err)

		version, err := client.ConditionalWrite(ctx, path, []byte("v1"), created.Version)
		require.NoError(t, err)
		assert.Greater(t, version, created.Version)

		node, err := client.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), node.Value)
		assert.Equal(t, version, node.Version)
	})

	t.Run("With ConditionalWrite on a stale version", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("stale")

		created, err := client.Create(ctx, path, []byte("v0"))
		require.NoError(t, err)

		_, err = client.ConditionalWrite(ctx, path, []byte("v1"), created.Version)
		require.NoError(t, err)

		_, err = client.ConditionalWrite(ctx, path, []byte("v2"), created.Version)
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrVersionConflict)

		node, err := client.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), node.Value)
	})

	t.Run("With ConditionalWrite on a missing node", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)

		_, err := client.ConditionalWrite(ctx, uniquePath("missing"), []byte("v1"), 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrNodeNotFound)
	})

	t.Run("With ConditionalWrite on version zero", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("zero")

		_, err := client.ConditionalWrite(ctx, path, []byte("v1"), 0)
		require.ErrorIs(t, err, gerrors.ErrNodeNotFound)

		exists, err := client.Exists(ctx, path)
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = client.Create(ctx, path, []byte("v0"))
		require.NoError(t, err)

		_, err = client.ConditionalWrite(ctx, path, []byte("v1"), 0)
		require.ErrorIs(t, err, gerrors.ErrVersionConflict)

		node, err := client.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, []byte("v0"), node.Value)
	})

	t.Run("With strictly increasing versions", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("versions")

		node, err := client.Create(ctx, path, []byte("0"))
		require.NoError(t, err)

		last := node.Version
		for i := 1; i <= 10; i++ {
			version, err := client.ConditionalWrite(ctx, path, []byte{byte(i)}, last)
			require.NoError(t, err)
			require.Greater(t, version, last)
			last = version
		}
	})

	t.Run("With arbitrary binary values", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("binary")

		value := make([]byte, 256)
		for i := range value {
			value[i] = byte(i)
		}

		created, err := client.Create(ctx, path, value)
		require.NoError(t, err)

		node, err := client.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, value, node.Value)

		reversed := make([]byte, len(value))
		for i := range value {
			reversed[i] = value[len(value)-1-i]
		}

		_, err = client.ConditionalWrite(ctx, path, reversed, created.Version)
		require.NoError(t, err)

		node, err = client.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, reversed, node.Value)
	})

	t.Run("With concurrent Create on the same path", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("race")

		const contenders = 8
		var (
			mu      sync.Mutex
			winners int
		)

		eg, ctx := errgroup.WithContext(ctx)
		for range contenders {
			eg.Go(func() error {
				_, err := client.Create(ctx, path, []byte("value"))
				switch {
				case err == nil:
					mu.Lock()
					winners++
					mu.Unlock()
					return nil
				case gerrors.IsTransient(err):
					return err
				default:
					if assert.ErrorIs(t, err, gerrors.ErrNodeExists) {
						return nil
					}
					return err
				}
			})
		}

		require.NoError(t, eg.Wait())
		assert.Equal(t, 1, winners)
	})

	t.Run("With concurrent ConditionalWrite on the same version", func(t *testing.T) {
		ctx := context.Background()
		client := open(t, factory)
		path := uniquePath("cas")

		created, err := client.Create(ctx, path, []byte("v0"))
		require.NoError(t, err)

		const contenders = 8
		var (
			mu        sync.Mutex
			winners   int
			conflicts int
		)

		eg, ctx := errgroup.WithContext(ctx)
		for range contenders {
			eg.Go(func() error {
				_, err := client.ConditionalWrite(ctx, path, []byte("v1"), created.Version)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case gerrors.IsTransient(err):
					return err
				default:
					conflicts++
				}
				return nil
			})
		}

		require.NoError(t, eg.Wait())
		assert.Equal(t, 1, winners)
		assert.Equal(t, contenders-1, conflicts)
	})

	t.Run("With Watch", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		client := open(t, factory)
		path := uniquePath("watch")

		created, err := client.Create(ctx, path, []byte("v0"))
		require.NoError(t, err)

		events, err := client.Watch(ctx, path)
		if err != nil {
			require.ErrorIs(t, err, gerrors.ErrWatchNotSupported)
			t.Skip("watch is not supported")
		}

		version, err := client.ConditionalWrite(ctx, path, []byte("v1"), created.Version)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			select {
			case event, ok := <-events:
				return ok &&
					event.Type == coordination.EventUpdated &&
					event.Node != nil &&
					event.Node.Version == version &&
					string(event.Node.Value) == "v1"
			default:
				return false
			}
		}, 10*time.Second, 10*time.Millisecond)

		cancel()
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-events:
				return !ok
			default:
				return false
			}
		}, 10*time.Second, 10*time.Millisecond)
	})

	t.Run("With a closed client", func(t *testing.T) {
		ctx := context.Background()
		client := factory(t)
		path := uniquePath("closed")

		require.NoError(t, client.Close())
		// idempotent
		require.NoError(t, client.Close())

		_, err := client.Exists(ctx, path)
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)

		_, err = client.Read(ctx, path)
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)

		_, err = client.Create(ctx, path, []byte("v"))
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)

		_, err = client.ConditionalWrite(ctx, path, []byte("v"), 1)
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)

		_, err = client.Watch(ctx, path)
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)
	})
}

// uniquePath returns a nested path that no other test touches
func uniquePath(name string) string {
	return coordination.Join("/atomvar-test/"+uuid.NewString(), name)
}

func open(t *testing.T, factory Factory) coordination.Client {
	t.Helper()
	client := factory(t)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}
