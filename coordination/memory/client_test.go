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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/coordination/coordinationtest"
	gerrors "github.com/tochemey/atomvar/errors"
)

func TestClient(t *testing.T) {
	server := NewServer()
	coordinationtest.Run(t, func(t *testing.T) coordination.Client {
		return server.Connect()
	})
}

func TestServer(t *testing.T) {
	t.Run("With sessions sharing the same tree", func(t *testing.T) {
		ctx := context.Background()
		server := NewServer()
		first := server.Connect()
		second := server.Connect()

		node, err := first.Create(ctx, "/vars/x", []byte("1"))
		require.NoError(t, err)

		read, err := second.Read(ctx, "/vars/x")
		require.NoError(t, err)
		assert.Equal(t, node.Version, read.Version)

		require.NoError(t, first.Close())

		// closing a session does not affect the others
		_, err = second.Read(ctx, "/vars/x")
		require.NoError(t, err)
		_, err = first.Read(ctx, "/vars/x")
		require.ErrorIs(t, err, gerrors.ErrConnectionClosed)

		assert.EqualValues(t, 1, server.CreateCount())
	})

	t.Run("With an unavailable server", func(t *testing.T) {
		ctx := context.Background()
		server := NewServer()
		client := server.Connect()

		server.SetUnavailable(true)

		_, err := client.Read(ctx, "/vars/x")
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)

		var connErr *gerrors.ConnectivityError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "read", connErr.Op())
		assert.Equal(t, "/vars/x", connErr.Path())

		_, err = server.Dialer()(ctx)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)

		server.SetUnavailable(false)
		_, err = client.Read(ctx, "/vars/x")
		assert.ErrorIs(t, err, gerrors.ErrNodeNotFound)
	})

	t.Run("With a canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		client := NewServer().Connect()
		_, err := client.Exists(ctx, "/vars/x")
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("With Delete notifying watchers", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		server := NewServer()
		client := server.Connect()

		_, err := client.Create(ctx, "/vars/x", []byte("1"))
		require.NoError(t, err)

		events, err := client.Watch(ctx, "/vars/x")
		require.NoError(t, err)

		assert.True(t, server.Delete("/vars/x"))
		assert.False(t, server.Delete("/vars/x"))

		select {
		case event := <-events:
			assert.Equal(t, coordination.EventDeleted, event.Type)
			assert.Equal(t, "/vars/x", event.Node.Path)
		case <-time.After(time.Second):
			t.Fatal("no delete event received")
		}
	})

	t.Run("With watch ended by Close", func(t *testing.T) {
		ctx := context.Background()
		server := NewServer()
		client := server.Connect()

		events, err := client.Watch(ctx, "/vars/x")
		require.NoError(t, err)
		require.NoError(t, client.Close())

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-events:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("With a global revision across nodes", func(t *testing.T) {
		ctx := context.Background()
		client := NewServer().Connect()

		a, err := client.Create(ctx, "/vars/a", nil)
		require.NoError(t, err)
		b, err := client.Create(ctx, "/vars/b", nil)
		require.NoError(t, err)
		assert.Greater(t, b.Version, a.Version)

		version, err := client.ConditionalWrite(ctx, "/vars/a", []byte("x"), a.Version)
		require.NoError(t, err)
		assert.Greater(t, version, b.Version)
	})
}
