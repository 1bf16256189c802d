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

// Package watch fans node events out to in-process subscribers.
package watch

import (
	"context"
	"sync"

	"github.com/tochemey/atomvar/coordination"
)

const bufferSize = 64

// Hub dispatches events published for a path to every subscriber of that path.
// A subscriber that does not keep up loses its oldest pending event rather
// than blocking publishers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[uint64]chan coordination.Event
	nextID      uint64
}

// NewHub creates an empty Hub
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[uint64]chan coordination.Event)}
}

// Publish sends event to the subscribers of path
func (h *Hub) Publish(path string, event coordination.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, events := range h.subscribers[path] {
		select {
		case events <- event:
			continue
		default:
		}

		select {
		case <-events:
		default:
		}

		select {
		case events <- event:
		default:
		}
	}
}

// Watch subscribes to path. The returned channel is closed once ctx is done
// or done is closed.
func (h *Hub) Watch(ctx context.Context, done <-chan struct{}, path string) <-chan coordination.Event {
	id, source := h.subscribe(path)
	events := make(chan coordination.Event)
	go func() {
		defer close(events)
		defer h.unsubscribe(path, id)
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case event := <-source:
				select {
				case events <- event:
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}
	}()
	return events
}

// Len returns the number of active subscriptions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}

func (h *Hub) subscribe(path string) (uint64, chan coordination.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	events := make(chan coordination.Event, bufferSize)
	if h.subscribers[path] == nil {
		h.subscribers[path] = make(map[uint64]chan coordination.Event)
	}
	h.subscribers[path][h.nextID] = events
	return h.nextID, events
}

func (h *Hub) unsubscribe(path string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[path]
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.subscribers, path)
	}
}
