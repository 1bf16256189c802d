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

package nats

import (
	"context"
	"fmt"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/coordination/coordinationtest"
	gerrors "github.com/tochemey/atomvar/errors"
)

func startNatsServer(t *testing.T) *natsserver.Server {
	t.Helper()

	serv, err := natsserver.NewServer(&natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	ready := make(chan bool)
	go func() {
		ready <- true
		serv.Start()
	}()
	<-ready

	if !serv.ReadyForConnections(2 * time.Second) {
		t.Fatalf("nats-io server failed to start")
	}

	t.Cleanup(serv.Shutdown)
	return serv
}

func TestClient(t *testing.T) {
	serv := startNatsServer(t)
	coordinationtest.Run(t, func(t *testing.T) coordination.Client {
		client, err := NewClient(context.Background(), &Config{URL: serv.ClientURL()})
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

	t.Run("With unreachable server", func(t *testing.T) {
		port := dynaport.Get(1)[0]
		client, err := NewClient(context.Background(), &Config{
			URL:            fmt.Sprintf("nats://127.0.0.1:%d", port),
			ConnectTimeout: 500 * time.Millisecond,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)
		require.Nil(t, client)
	})

	t.Run("With an existing bucket", func(t *testing.T) {
		ctx := context.Background()
		serv := startNatsServer(t)
		config := &Config{URL: serv.ClientURL(), Bucket: "shared"}

		first, err := NewClient(ctx, config)
		require.NoError(t, err)
		defer first.Close()

		_, err = first.Create(ctx, "/vars/x", []byte("1"))
		require.NoError(t, err)

		second, err := NewDialer(&Config{URL: serv.ClientURL(), Bucket: "shared"})(ctx)
		require.NoError(t, err)
		defer second.Close()

		node, err := second.Read(ctx, "/vars/x")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), node.Value)
	})
}

func TestConfig(t *testing.T) {
	config := &Config{URL: "nats://127.0.0.1:4222"}
	config.Sanitize()
	require.NoError(t, config.Validate())
	assert.Equal(t, defaultBucket, config.Bucket)
	assert.Equal(t, 1, config.Replicas)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, 5*time.Second, config.ConnectTimeout)

	config.Bucket = "not a bucket"
	require.Error(t, config.Validate())
}
