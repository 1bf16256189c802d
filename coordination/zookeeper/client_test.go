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

package zookeeper

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/travisjeffery/go-dynaport"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/coordination/coordinationtest"
	gerrors "github.com/tochemey/atomvar/errors"
)

var zkServer string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "zookeeper:3.9",
			ExposedPorts: []string{"2181/tcp"},
			WaitingFor:   wait.ForListeningPort("2181/tcp"),
		},
		Started: true,
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	endpoint, err := container.PortEndpoint(ctx, "2181/tcp", "")
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_ = testcontainers.TerminateContainer(container)
		os.Exit(1)
	}

	zkServer = endpoint

	code := m.Run()
	_ = testcontainers.TerminateContainer(container)
	os.Exit(code)
}

func newConfig() *Config {
	return &Config{
		Servers:        []string{zkServer},
		SessionTimeout: 4 * time.Second,
		DialTimeout:    10 * time.Second,
	}
}

func TestClient(t *testing.T) {
	coordinationtest.Run(t, func(t *testing.T) coordination.Client {
		client, err := NewClient(context.Background(), newConfig())
		require.NoError(t, err)
		return client
	})

	t.Run("With a root", func(t *testing.T) {
		ctx := context.Background()
		config := newConfig()
		config.Root = "/rooted/"

		rooted, err := NewClient(ctx, config)
		require.NoError(t, err)
		defer rooted.Close()
		assert.Equal(t, "/rooted", config.Root)

		plain, err := NewDialer(newConfig())(ctx)
		require.NoError(t, err)
		defer plain.Close()

		node, err := rooted.Create(ctx, "/vars/x", []byte("1"))
		require.NoError(t, err)
		assert.EqualValues(t, 1, node.Version)

		read, err := plain.Read(ctx, "/rooted/vars/x")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), read.Value)
		assert.Equal(t, node.Version, read.Version)
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

	t.Run("With unreachable ensemble", func(t *testing.T) {
		port := dynaport.Get(1)[0]
		client, err := NewClient(context.Background(), &Config{
			Servers:     []string{fmt.Sprintf("127.0.0.1:%d", port)},
			DialTimeout: 500 * time.Millisecond,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)
		require.Nil(t, client)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{Servers: []string{"127.0.0.1:2181"}}
	config.Sanitize()

	require.NoError(t, config.Validate())
	assert.Equal(t, 2*time.Second, config.SessionTimeout)
	assert.Equal(t, 5*time.Second, config.DialTimeout)

	config.Root = "no-leading-slash"
	require.Error(t, config.Validate())
}
