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

package variables

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/coordination/memory"
	gerrors "github.com/tochemey/atomvar/errors"
	"github.com/tochemey/atomvar/log"
)

func TestConnect(t *testing.T) {
	t.Run("With a reachable service", func(t *testing.T) {
		ns := connect(t, memory.NewServer(), WithLogger(log.DiscardLogger))
		assert.Equal(t, "/vars", ns.ParentPath())
	})

	t.Run("With the root as parent path", func(t *testing.T) {
		ctx := context.Background()
		server := memory.NewServer()

		ns, err := Connect(ctx, "", server.Dialer())
		require.NoError(t, err)
		defer func() { _ = ns.Shutdown(ctx) }()

		created, err := ns.Create(ctx, "top", []byte("1"))
		require.NoError(t, err)
		require.True(t, created)

		exists, err := server.Connect().Exists(ctx, "/top")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("With an invalid parent path", func(t *testing.T) {
		for _, parentPath := range []string{"vars", "/vars/", "/a//b", "/a/../b"} {
			ns, err := Connect(context.Background(), parentPath, memory.NewServer().Dialer())
			require.Error(t, err, parentPath)
			assert.ErrorIs(t, err, gerrors.ErrInvalidPath)
			assert.Nil(t, ns)
		}
	})

	t.Run("With a nil dialer", func(t *testing.T) {
		ns, err := Connect(context.Background(), "/vars", nil)
		require.ErrorIs(t, err, gerrors.ErrNilClient)
		assert.Nil(t, ns)
	})

	t.Run("With an unreachable service", func(t *testing.T) {
		server := memory.NewServer()
		server.SetUnavailable(true)

		ns, err := Connect(context.Background(), "/vars", server.Dialer())
		require.Error(t, err)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)
		assert.Nil(t, ns)
	})

	t.Run("With connect retries", func(t *testing.T) {
		server := memory.NewServer()
		attempts := atomic.NewInt32(0)
		dialer := func(ctx context.Context) (coordination.Client, error) {
			if attempts.Inc() < 3 {
				return nil, gerrors.NewErrConnectivity("connect", "", errors.New("connection refused"))
			}
			return server.Connect(), nil
		}

		ns, err := Connect(context.Background(), "/vars", dialer, WithConnectRetries(5))
		require.NoError(t, err)
		require.NoError(t, ns.Shutdown(context.Background()))
		assert.EqualValues(t, 3, attempts.Load())
	})

	t.Run("With a dial error that is not retried", func(t *testing.T) {
		attempts := atomic.NewInt32(0)
		dialErr := errors.New("invalid configuration")
		dialer := func(ctx context.Context) (coordination.Client, error) {
			attempts.Inc()
			return nil, dialErr
		}

		ns, err := Connect(context.Background(), "/vars", dialer, WithConnectRetries(5))
		require.ErrorIs(t, err, dialErr)
		assert.Nil(t, ns)
		assert.EqualValues(t, 1, attempts.Load())
	})

	t.Run("With an invalid retry policy", func(t *testing.T) {
		policy := &RetryPolicy{InitialBackoff: time.Second, MaxBackoff: time.Millisecond, Jitter: 2}
		ns, err := Connect(context.Background(), "/vars", memory.NewServer().Dialer(), WithRetryPolicy(policy))
		require.Error(t, err)
		assert.Nil(t, ns)
	})
}

func TestNew(t *testing.T) {
	t.Run("With a nil client", func(t *testing.T) {
		ns, err := New("/vars", nil)
		require.ErrorIs(t, err, gerrors.ErrNilClient)
		assert.Nil(t, ns)
	})

	t.Run("With a connected client", func(t *testing.T) {
		ns, err := New("/vars", memory.NewServer().Connect(), WithOperationTimeout(time.Second))
		require.NoError(t, err)
		assert.Equal(t, time.Second, ns.operationTimeout)
		require.NoError(t, ns.Shutdown(context.Background()))
	})
}

func TestNamespace(t *testing.T) {
	t.Run("With Lookup on a missing variable", func(t *testing.T) {
		ns := connect(t, memory.NewServer())

		variable, found, err := ns.Lookup(context.Background(), "missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, variable)
	})

	t.Run("With Create then Lookup", func(t *testing.T) {
		ctx := context.Background()
		ns := connect(t, memory.NewServer())

		created, err := ns.Create(ctx, "x", []byte("hello"))
		require.NoError(t, err)
		require.True(t, created)

		exists, err := ns.Exists(ctx, "x")
		require.NoError(t, err)
		assert.True(t, exists)

		variable, found, err := ns.Lookup(ctx, "x")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "x", variable.Name())
		assert.Equal(t, "/vars/x", variable.Path())
		assert.Equal(t, []byte("hello"), variable.Cached().Value)

		value, err := variable.GetString(ctx)
		require.NoError(t, err)
		assert.Equal(t, "hello", value)
	})

	t.Run("With Create on an existing variable", func(t *testing.T) {
		ctx := context.Background()
		ns := connect(t, memory.NewServer())

		created, err := ns.Create(ctx, "x", []byte("first"))
		require.NoError(t, err)
		require.True(t, created)

		created, err = ns.Create(ctx, "x", []byte("second"))
		require.NoError(t, err)
		assert.False(t, created)

		variable, found, err := ns.Lookup(ctx, "x")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("first"), variable.Cached().Value)
	})

	t.Run("With invalid names", func(t *testing.T) {
		ctx := context.Background()
		ns := connect(t, memory.NewServer())

		for _, name := range []string{"", ".", "..", "a/b", "white space", "ünicode"} {
			_, _, err := ns.Lookup(ctx, name)
			assert.ErrorIs(t, err, gerrors.ErrInvalidName, name)

			_, err = ns.Create(ctx, name, nil)
			assert.ErrorIs(t, err, gerrors.ErrInvalidName, name)

			_, err = ns.Exists(ctx, name)
			assert.ErrorIs(t, err, gerrors.ErrInvalidName, name)

			_, err = ns.GetOrCreate(ctx, name, nil)
			assert.ErrorIs(t, err, gerrors.ErrInvalidName, name)
		}
	})

	t.Run("With concurrent GetOrCreate", func(t *testing.T) {
		ctx := context.Background()
		server := memory.NewServer()

		const clients = 16
		namespaces := make([]*Namespace, clients)
		for i := range namespaces {
			namespaces[i] = connect(t, server)
		}

		name := uuid.NewString()
		handles := make([]*Variable, clients)
		eg, ctx := errgroup.WithContext(ctx)
		for i, ns := range namespaces {
			eg.Go(func() error {
				variable, err := ns.GetOrCreate(ctx, name, []byte("initial"))
				handles[i] = variable
				return err
			})
		}

		require.NoError(t, eg.Wait())
		assert.EqualValues(t, 1, server.CreateCount())

		version := handles[0].Cached().Version
		for _, handle := range handles {
			require.NotNil(t, handle)
			assert.Equal(t, []byte("initial"), handle.Cached().Value)
			assert.Equal(t, version, handle.Cached().Version)
		}
	})

	t.Run("With GetOrCreate on an existing variable", func(t *testing.T) {
		ctx := context.Background()
		server := memory.NewServer()
		ns := connect(t, server)

		_, err := ns.Create(ctx, "x", []byte("existing"))
		require.NoError(t, err)

		variable, err := ns.GetOrCreate(ctx, "x", []byte("ignored"))
		require.NoError(t, err)
		assert.Equal(t, []byte("existing"), variable.Cached().Value)
		assert.EqualValues(t, 1, server.CreateCount())
	})

	t.Run("With GetOrCreate on a canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		ns := connect(t, memory.NewServer())
		_, err := ns.GetOrCreate(ctx, "x", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("With an unreachable service", func(t *testing.T) {
		ctx := context.Background()
		server := memory.NewServer()
		ns := connect(t, server)

		server.SetUnavailable(true)

		_, _, err := ns.Lookup(ctx, "x")
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)

		_, err = ns.Create(ctx, "x", nil)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)

		_, err = ns.Exists(ctx, "x")
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)

		_, err = ns.GetOrCreate(ctx, "x", nil)
		assert.ErrorIs(t, err, gerrors.ErrConnectivity)
	})

	t.Run("With Shutdown", func(t *testing.T) {
		ctx := context.Background()
		server := memory.NewServer()
		ns, err := Connect(ctx, "/vars", server.Dialer())
		require.NoError(t, err)

		variable, err := ns.GetOrCreate(ctx, "x", []byte("1"))
		require.NoError(t, err)

		snapshots, err := variable.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, ns.Shutdown(ctx))
		// idempotent
		require.NoError(t, ns.Shutdown(ctx))

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-snapshots:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)

		_, _, err = ns.Lookup(ctx, "x")
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)
		_, err = ns.Create(ctx, "y", nil)
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)
		_, err = ns.Exists(ctx, "x")
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)

		_, err = variable.Get(ctx)
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)
		err = variable.SetString(ctx, "2")
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)
		_, err = variable.Watch(ctx)
		assert.ErrorIs(t, err, gerrors.ErrConnectionClosed)

		// the cache survives the shutdown
		assert.Equal(t, []byte("1"), variable.Cached().Value)

		// other sessions are unaffected
		node, err := server.Connect().Read(ctx, "/vars/x")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), node.Value)
	})

	t.Run("With metrics", func(t *testing.T) {
		ctx := context.Background()
		meter := &countingMeter{counters: map[string]*countingCounter{}}
		server := memory.NewServer()
		ns := connect(t, server, WithMeterProvider(&meterProvider{meter: meter}))

		variable, err := ns.GetOrCreate(ctx, "x", []byte("0"))
		require.NoError(t, err)

		stale, found, err := ns.Lookup(ctx, "x")
		require.NoError(t, err)
		require.True(t, found)

		require.NoError(t, variable.SetString(ctx, "1"))
		require.NoError(t, stale.SetString(ctx, "2"))

		assert.EqualValues(t, 1, meter.value("atomvar.variable.creates"))
		assert.EqualValues(t, 2, meter.value("atomvar.variable.writes"))
		assert.EqualValues(t, 1, meter.value("atomvar.variable.conflicts"))
		// GetOrCreate, Lookup and the refresh after the conflict
		assert.EqualValues(t, 3, meter.value("atomvar.variable.reads"))
	})
}

type meterProvider struct {
	noop.MeterProvider
	meter metric.Meter
}

func (p *meterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return p.meter
}

type countingMeter struct {
	noop.Meter
	mu       sync.Mutex
	counters map[string]*countingCounter
}

func (m *countingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter := &countingCounter{total: atomic.NewInt64(0)}
	m.counters[name] = counter
	return counter, nil
}

func (m *countingMeter) value(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counter, ok := m.counters[name]; ok {
		return counter.total.Load()
	}
	return 0
}

type countingCounter struct {
	noop.Int64Counter
	total *atomic.Int64
}

func (c *countingCounter) Add(_ context.Context, incr int64, _ ...metric.AddOption) {
	c.total.Add(incr)
}
