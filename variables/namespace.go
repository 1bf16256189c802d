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
	"time"

	"github.com/flowchartsman/retry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
	"github.com/tochemey/atomvar/internal/backoff"
	"github.com/tochemey/atomvar/internal/locker"
	imetric "github.com/tochemey/atomvar/internal/metric"
	"github.com/tochemey/atomvar/internal/validation"
	"github.com/tochemey/atomvar/log"
)

const (
	connectInitialDelay = 100 * time.Millisecond
	connectMaxDelay     = 2 * time.Second
)

// Namespace creates and locates the variables stored under a parent path.
//
// Every variable issued by a Namespace shares its coordination client. The
// client is owned by the Namespace and only closed by Shutdown.
type Namespace struct {
	_ locker.NoCopy

	parentPath string
	client     coordination.Client

	logger           log.Logger
	retryPolicy      *RetryPolicy
	backoff          *backoff.Backoff
	meterProvider    metric.MeterProvider
	metrics          *imetric.VariableMetric
	connectRetries   int
	operationTimeout time.Duration

	// mu guards closed against watch registration
	mu       sync.RWMutex
	closed   *atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	watchers sync.WaitGroup
}

// Connect dials the coordination service and returns a Namespace rooted at
// parentPath. The empty parent path denotes the root of the service.
//
// Connect blocks until the dialer completed its handshake and fails fast by
// default: use WithConnectRetries to retry connectivity failures.
func Connect(ctx context.Context, parentPath string, dialer coordination.Dialer, opts ...Option) (*Namespace, error) {
	if dialer == nil {
		return nil, gerrors.ErrNilClient
	}

	ns, err := newNamespace(parentPath, opts...)
	if err != nil {
		return nil, err
	}

	var (
		client  coordination.Client
		dialErr error
	)

	retrier := retry.NewRetrier(ns.connectRetries, connectInitialDelay, connectMaxDelay)
	err = retrier.RunContext(ctx, func(ctx context.Context) error {
		c, err := dialer(ctx)
		if err != nil {
			dialErr = err
			if !gerrors.IsTransient(err) {
				return retry.Stop(err)
			}
			ns.logger.Warnf("failed to connect namespace %s: %v", ns.parentPath, err)
			return err
		}
		client = c
		return nil
	})

	if err != nil {
		if dialErr != nil {
			return nil, dialErr
		}
		return nil, gerrors.NewErrConnectivity("connect", parentPath, err)
	}

	ns.client = client
	ns.logger.Debugf("namespace %s connected", ns.parentPath)
	return ns, nil
}

// New returns a Namespace rooted at parentPath on an already connected client.
// The Namespace takes ownership of the client.
func New(parentPath string, client coordination.Client, opts ...Option) (*Namespace, error) {
	if client == nil {
		return nil, gerrors.ErrNilClient
	}

	ns, err := newNamespace(parentPath, opts...)
	if err != nil {
		return nil, err
	}

	ns.client = client
	return ns, nil
}

func newNamespace(parentPath string, opts ...Option) (*Namespace, error) {
	if err := validation.NewParentPathValidator(parentPath).Validate(); err != nil {
		return nil, gerrors.NewErrInvalidPath(parentPath, err)
	}

	ns := &Namespace{
		parentPath:     parentPath,
		logger:         log.DiscardLogger,
		retryPolicy:    DefaultRetryPolicy(),
		connectRetries: 1,
		closed:         atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(ns)
	}

	if err := ns.retryPolicy.Validate(); err != nil {
		return nil, err
	}

	metrics, err := imetric.NewVariableMetric(ns.meterProvider, parentPath)
	if err != nil {
		return nil, err
	}

	ns.metrics = metrics
	ns.backoff = ns.retryPolicy.backoff()
	ns.ctx, ns.cancel = context.WithCancel(context.Background())
	return ns, nil
}

// ParentPath returns the path under which the namespace variables live
func (ns *Namespace) ParentPath() string {
	return ns.parentPath
}

// Exists reports whether a variable with the given name exists
func (ns *Namespace) Exists(ctx context.Context, name string) (bool, error) {
	path, err := ns.path(name)
	if err != nil {
		return false, err
	}

	if err := ns.ensureOpen(); err != nil {
		return false, err
	}

	opCtx, cancel := ns.withTimeout(ctx)
	defer cancel()

	found, err := ns.client.Exists(opCtx, path)
	if err != nil {
		return false, ns.mapError(err)
	}
	return found, nil
}

// Lookup returns the variable with the given name. The boolean result is
// false when no such variable exists. The handle is loaded with the current
// value and version.
func (ns *Namespace) Lookup(ctx context.Context, name string) (*Variable, bool, error) {
	path, err := ns.path(name)
	if err != nil {
		return nil, false, err
	}

	if err := ns.ensureOpen(); err != nil {
		return nil, false, err
	}

	variable := newVariable(ns, name, path)
	if _, err := variable.refresh(ctx); err != nil {
		if errors.Is(err, gerrors.ErrNodeNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return variable, true, nil
}

// Create creates the variable with the given name and initial value. It
// returns false when the variable already exists, in which case its value is
// left untouched.
func (ns *Namespace) Create(ctx context.Context, name string, value []byte) (bool, error) {
	path, err := ns.path(name)
	if err != nil {
		return false, err
	}

	if err := ns.ensureOpen(); err != nil {
		return false, err
	}

	opCtx, cancel := ns.withTimeout(ctx)
	defer cancel()

	if _, err := ns.client.Create(opCtx, path, value); err != nil {
		if errors.Is(err, gerrors.ErrNodeExists) {
			return false, nil
		}
		return false, ns.mapError(err)
	}

	ns.metrics.RecordCreate(ctx)
	ns.logger.Debugf("variable %s created", path)
	return true, nil
}

// GetOrCreate returns the variable with the given name, creating it with the
// given initial value when it does not exist yet. Concurrent callers all end
// up with a handle on the same variable and exactly one of them creates it.
func (ns *Namespace) GetOrCreate(ctx context.Context, name string, value []byte) (*Variable, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		variable, found, err := ns.Lookup(ctx, name)
		if err != nil {
			return nil, err
		}

		if found {
			return variable, nil
		}

		// losing the creation race is fine, the next lookup finds the winner's node
		if _, err := ns.Create(ctx, name, value); err != nil {
			return nil, err
		}
	}
}

// Shutdown closes the coordination client and stops every variable watch.
// Operations issued afterwards on the namespace or its variables fail with
// errors.ErrConnectionClosed. Shutdown is idempotent.
func (ns *Namespace) Shutdown(ctx context.Context) error {
	ns.mu.Lock()
	if !ns.closed.CompareAndSwap(false, true) {
		ns.mu.Unlock()
		return nil
	}
	ns.mu.Unlock()

	ns.logger.Debugf("shutting down namespace %s", ns.parentPath)
	ns.cancel()

	err := ns.client.Close()

	stopped := make(chan struct{})
	go func() {
		ns.watchers.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

// registerWatch accounts for a watch goroutine. It fails once the namespace is shut down.
func (ns *Namespace) registerWatch() error {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	if ns.closed.Load() {
		return gerrors.ErrConnectionClosed
	}
	ns.watchers.Add(1)
	return nil
}

func (ns *Namespace) path(name string) (string, error) {
	if err := validation.NewNodeNameValidator(name).Validate(); err != nil {
		return "", gerrors.NewErrInvalidName(name, err)
	}
	return coordination.Join(ns.parentPath, name), nil
}

func (ns *Namespace) ensureOpen() error {
	if ns.closed.Load() {
		return gerrors.ErrConnectionClosed
	}
	return nil
}

func (ns *Namespace) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ns.operationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, ns.operationTimeout)
}

func (ns *Namespace) mapError(err error) error {
	if ns.closed.Load() {
		return gerrors.ErrConnectionClosed
	}

	if gerrors.IsTransient(err) {
		ns.logger.Warn(err)
	}
	return err
}
