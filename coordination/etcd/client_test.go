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

package etcd

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/coordination/coordinationtest"
	gerrors "github.com/tochemey/atomvar/errors"
)

var etcdEndpoints []string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := testcontainer.Run(ctx, "gcr.io/etcd-development/etcd:v3.5.14")
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	endpoints, err := container.ClientEndpoints(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_ = testcontainers.TerminateContainer(container)
		os.Exit(1)
	}

	etcdEndpoints = endpoints

	code := m.Run()
	_ = testcontainers.TerminateContainer(container)
	os.Exit(code)
}

func newConfig() *Config {
	return &Config{
		Endpoints:   etcdEndpoints,
		DialTimeout: 5 * time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestClient(t *testing.T) {
	coordinationtest.Run(t, func(t *testing.T) coordination.Client {
		client, err := NewClient(context.Background(), newConfig())
		require.NoError(t, err)
		return client
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

	t.Run("With unreachable endpoints", func(t *testing.T) {
		client, err := NewClient(context.Background(), &Config{
			Endpoints:   []string{"http://127.0.0.1:1"},
			DialTimeout: 500 * time.Millisecond,
			Timeout:     500 * time.Millisecond,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)
		require.Nil(t, client)
	})

	t.Run("With namespaces isolating keys", func(t *testing.T) {
		ctx := context.Background()

		first := newConfig()
		first.Namespace = "first"
		second := newConfig()
		second.Namespace = "/second/"

		a, err := NewClient(ctx, first)
		require.NoError(t, err)
		defer a.Close()

		b, err := NewClient(ctx, second)
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, "second", second.Namespace)

		_, err = a.Create(ctx, "/vars/isolated", []byte("a"))
		require.NoError(t, err)

		exists, err := b.Exists(ctx, "/vars/isolated")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("With NewDialer", func(t *testing.T) {
		client, err := NewDialer(newConfig())(context.Background())
		require.NoError(t, err)
		require.NoError(t, client.Close())
	})
}

func TestConfig(t *testing.T) {
	t.Run("With Sanitize defaults", func(t *testing.T) {
		config := &Config{}
		config.Sanitize()

		assert.Equal(t, defaultNamespace, config.Namespace)
		assert.Equal(t, 5*time.Second, config.DialTimeout)
		assert.Equal(t, 5*time.Second, config.Timeout)
		assert.NotNil(t, config.Logger)
	})

	t.Run("With Validate", func(t *testing.T) {
		require.Error(t, (&Config{}).Validate())

		config := newConfig()
		config.Endpoints = []string{"http://127.0.0.1:2379"}
		require.NoError(t, config.Validate())
	})
}
