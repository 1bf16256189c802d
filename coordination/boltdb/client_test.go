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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/coordination/coordinationtest"
	gerrors "github.com/tochemey/atomvar/errors"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(&Config{
		Path:   filepath.Join(t.TempDir(), "atomvar.db"),
		NoSync: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClient(t *testing.T) {
	store := openStore(t)
	coordinationtest.Run(t, func(t *testing.T) coordination.Client {
		return store.Connect()
	})
}

func TestNewClient(t *testing.T) {
	t.Run("With nil config", func(t *testing.T) {
		client, err := NewClient(context.Background(), nil)
		require.Error(t, err)
		require.Nil(t, client)
	})

	t.Run("With invalid config", func(t *testing.T) {
		client, err := NewClient(context.Background(), &Config{})
		require.Error(t, err)
		require.Nil(t, client)
	})

	t.Run("With data surviving a reopen", func(t *testing.T) {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "durable.db")

		client, err := NewDialer(&Config{Path: path})(ctx)
		require.NoError(t, err)

		node, err := client.Create(ctx, "/vars/x", []byte("1"))
		require.NoError(t, err)

		version, err := client.ConditionalWrite(ctx, "/vars/x", []byte("2"), node.Version)
		require.NoError(t, err)
		require.NoError(t, client.Close())

		client, err = NewClient(ctx, &Config{Path: path})
		require.NoError(t, err)
		defer client.Close()

		read, err := client.Read(ctx, "/vars/x")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), read.Value)
		assert.Equal(t, version, read.Version)

		// the sequence keeps growing after a reopen
		next, err := client.ConditionalWrite(ctx, "/vars/x", []byte("3"), version)
		require.NoError(t, err)
		assert.Greater(t, next, version)
	})

	t.Run("With the store closed under a session", func(t *testing.T) {
		ctx := context.Background()
		store := openStore(t)
		client := store.Connect()

		require.NoError(t, store.Close())

		_, err := client.Read(ctx, "/vars/x")
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)
	})

	t.Run("With a closed session leaving the store open", func(t *testing.T) {
		ctx := context.Background()
		store := openStore(t)

		first := store.Connect()
		second := store.Connect()
		require.NoError(t, first.Close())

		_, err := second.Create(ctx, "/vars/x", nil)
		require.NoError(t, err)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{Path: "/tmp/atomvar.db"}
	config.Sanitize()

	require.NoError(t, config.Validate())
	assert.Equal(t, defaultBucket, config.Bucket)
	assert.NotZero(t, config.OpenTimeout)
	assert.NotNil(t, config.Logger)
}
