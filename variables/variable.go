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
	"bytes"
	"context"
	"errors"
	"slices"

	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
	"github.com/tochemey/atomvar/internal/locker"
)

// mutation computes the value to write from the current one. Returning
// false stops the write loop without writing.
type mutation func(current []byte) (value []byte, write bool, err error)

// Variable is a handle on a distributed atomic variable.
//
// The handle caches the last value and version it observed. The pair is
// replaced as a whole, only while holding the handle update lock, so it never
// mixes a value with another write's version. A Variable is safe for
// concurrent use; updates issued through the same handle are serialized.
type Variable struct {
	_ locker.NoCopy

	name      string
	path      string
	namespace *Namespace

	mu       *locker.Mutex
	snapshot *atomic.Pointer[Snapshot]
}

func newVariable(ns *Namespace, name, path string) *Variable {
	return &Variable{
		name:      name,
		path:      path,
		namespace: ns,
		mu:        locker.NewMutex(),
		snapshot:  atomic.NewPointer(&Snapshot{}),
	}
}

// Name returns the variable name
func (v *Variable) Name() string {
	return v.name
}

// Path returns the node path of the variable
func (v *Variable) Path() string {
	return v.path
}

// Cached returns the last value and version observed by the handle without
// contacting the coordination service.
func (v *Variable) Cached() Snapshot {
	return v.snapshot.Load().clone()
}

// Get reads the current value from the coordination service and refreshes the cache.
// On failure the cache is left untouched.
func (v *Variable) Get(ctx context.Context) ([]byte, error) {
	snapshot, err := v.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snapshot.Value), nil
}

// GetBytes is an alias of Get
func (v *Variable) GetBytes(ctx context.Context) ([]byte, error) {
	return v.Get(ctx)
}

// GetString reads the current value as a string
func (v *Variable) GetString(ctx context.Context) (string, error) {
	value, err := v.Get(ctx)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Set stores value. Concurrent writers are resolved optimistically: when the
// cached version is stale the node is re-read and the write retried according
// to the namespace retry policy. Set returns errors.ErrWriteCanceled when ctx
// is done before the write is accepted.
func (v *Variable) Set(ctx context.Context, value []byte) error {
	value = slices.Clone(value)
	_, _, err := v.update(ctx, false, func([]byte) ([]byte, bool, error) {
		return value, true, nil
	})
	return err
}

// SetString stores value as its bytes
func (v *Variable) SetString(ctx context.Context, value string) error {
	return v.Set(ctx, []byte(value))
}

// CompareAndSet stores update only if the current value equals expect, and
// reports whether it did. The comparison is made against a fresh read and
// repeated whenever another writer wins the race.
func (v *Variable) CompareAndSet(ctx context.Context, expect, update []byte) (bool, error) {
	update = slices.Clone(update)
	_, written, err := v.update(ctx, true, func(current []byte) ([]byte, bool, error) {
		if !bytes.Equal(current, expect) {
			return nil, false, nil
		}
		return update, true, nil
	})
	return written, err
}

// Update applies fn to the current value and stores its result, retrying with
// a fresh value whenever another writer wins the race. fn may therefore run
// several times and must not have side effects. An error returned by fn
// aborts the update and is returned as is.
func (v *Variable) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) ([]byte, error) {
	snapshot, _, err := v.update(ctx, false, func(current []byte) ([]byte, bool, error) {
		value, err := fn(slices.Clone(current))
		if err != nil {
			return nil, false, err
		}
		return value, true, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(snapshot.Value), nil
}

// Watch streams the versions of the variable committed by any client, and
// refreshes the cache with them. Versions that are not newer than the last
// delivered one are skipped. The channel is closed when ctx is done, when the
// namespace is shut down or when the coordination service ends the watch.
//
// Watch is an optimisation: Get always reads the coordination service.
func (v *Variable) Watch(ctx context.Context) (<-chan Snapshot, error) {
	ns := v.namespace
	if err := ns.registerWatch(); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ns.ctx, cancel)

	events, err := ns.client.Watch(watchCtx, v.path)
	if err != nil {
		stop()
		cancel()
		ns.watchers.Done()
		return nil, ns.mapError(err)
	}

	snapshots := make(chan Snapshot)
	go func() {
		defer ns.watchers.Done()
		defer close(snapshots)
		defer cancel()
		defer stop()

		var delivered uint64
		for {
			var event coordination.Event
			select {
			case <-watchCtx.Done():
				return
			case next, ok := <-events:
				if !ok {
					return
				}
				event = next
			}

			if event.Type != coordination.EventUpdated || event.Node == nil || event.Node.Version <= delivered {
				continue
			}

			snapshot := &Snapshot{Value: slices.Clone(event.Node.Value), Version: event.Node.Version}
			v.offer(snapshot)
			delivered = snapshot.Version

			select {
			case snapshots <- snapshot.clone():
			case <-watchCtx.Done():
				return
			}
		}
	}()
	return snapshots, nil
}

// offer replaces the cache with a newer snapshot unless an update holds the
// lock, in which case that update refreshes the cache itself.
func (v *Variable) offer(snapshot *Snapshot) {
	if !v.mu.TryLock() {
		return
	}
	defer v.mu.Unlock()

	if snapshot.Version > v.snapshot.Load().Version {
		v.snapshot.Store(snapshot)
	}
}

func (v *Variable) refresh(ctx context.Context) (*Snapshot, error) {
	if err := v.namespace.ensureOpen(); err != nil {
		return nil, err
	}

	if err := v.mu.Lock(ctx); err != nil {
		return nil, err
	}
	defer v.mu.Unlock()

	return v.read(ctx)
}

// read fetches the node and replaces the cache. The caller holds the lock.
func (v *Variable) read(ctx context.Context) (*Snapshot, error) {
	ns := v.namespace
	opCtx, cancel := ns.withTimeout(ctx)
	defer cancel()

	node, err := ns.client.Read(opCtx, v.path)
	if err != nil {
		return nil, ns.mapError(err)
	}

	snapshot := &Snapshot{Value: node.Value, Version: node.Version}
	v.snapshot.Store(snapshot)
	ns.metrics.RecordRead(ctx)
	return snapshot, nil
}

// update runs the optimistic write loop: every attempt is a conditional
// write tagged with the cached version, and every rejected attempt refreshes
// the cache before the next one. It returns the snapshot in place when the
// loop ends, and whether this call wrote it.
func (v *Variable) update(ctx context.Context, refreshFirst bool, next mutation) (*Snapshot, bool, error) {
	ns := v.namespace
	if err := ns.ensureOpen(); err != nil {
		return nil, false, err
	}

	policy := ns.retryPolicy
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return nil, false, gerrors.NewErrWriteCanceled(err)
	}

	if err := v.mu.Lock(ctx); err != nil {
		return nil, false, gerrors.NewErrWriteCanceled(err)
	}
	defer v.mu.Unlock()

	if refreshFirst {
		if _, err := v.read(ctx); err != nil {
			return nil, false, v.abort(ctx, err)
		}
	}

	for attempt := 1; ; attempt++ {
		current := v.snapshot.Load()
		value, write, err := next(current.Value)
		if err != nil {
			return nil, false, err
		}

		if !write {
			return current, false, nil
		}

		opCtx, cancel := ns.withTimeout(ctx)
		version, err := ns.client.ConditionalWrite(opCtx, v.path, value, current.Version)
		cancel()

		if err == nil {
			snapshot := &Snapshot{Value: slices.Clone(value), Version: version}
			v.snapshot.Store(snapshot)
			ns.metrics.RecordWrite(ctx)
			return snapshot, true, nil
		}

		if !errors.Is(err, gerrors.ErrVersionConflict) {
			return nil, false, v.abort(ctx, err)
		}

		ns.metrics.RecordConflict(ctx)
		ns.logger.Debugf("variable %s: version %d is stale (attempt %d)", v.path, current.Version, attempt)

		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, false, gerrors.NewErrWriteAttemptsExhausted(v.path, attempt)
		}

		if err := ns.backoff.Wait(ctx, attempt); err != nil {
			return nil, false, gerrors.NewErrWriteCanceled(err)
		}

		if _, err := v.read(ctx); err != nil {
			return nil, false, v.abort(ctx, err)
		}
	}
}

// abort maps an error that ends the write loop
func (v *Variable) abort(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !v.namespace.closed.Load() {
		return gerrors.NewErrWriteCanceled(ctxErr)
	}
	return v.namespace.mapError(err)
}
