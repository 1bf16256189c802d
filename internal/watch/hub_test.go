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

package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/atomvar/coordination"
)

func TestHub(t *testing.T) {
	t.Run("With Publish reaching the path subscribers", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := NewHub()
		first := hub.Watch(ctx, nil, "/vars/a")
		second := hub.Watch(ctx, nil, "/vars/a")
		other := hub.Watch(ctx, nil, "/vars/b")
		require.Eventually(t, func() bool { return hub.Len() == 3 }, time.Second, 5*time.Millisecond)

		hub.Publish("/vars/a", coordination.Event{Node: &coordination.Node{Path: "/vars/a", Version: 1}})

		for _, events := range []<-chan coordination.Event{first, second} {
			select {
			case event := <-events:
				assert.EqualValues(t, 1, event.Node.Version)
			case <-time.After(time.Second):
				t.Fatal("event not received")
			}
		}

		select {
		case <-other:
			t.Fatal("unexpected event")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("With a slow subscriber keeping the latest event", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := NewHub()
		events := hub.Watch(ctx, nil, "/vars/a")

		const published = bufferSize * 3
		for i := 1; i <= published; i++ {
			hub.Publish("/vars/a", coordination.Event{Node: &coordination.Node{Version: uint64(i)}})
		}

		var last uint64
		require.Eventually(t, func() bool {
			for {
				select {
				case event := <-events:
					last = event.Node.Version
				default:
					return last == published
				}
			}
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("With the subscription ended by done", func(t *testing.T) {
		done := make(chan struct{})
		hub := NewHub()
		events := hub.Watch(context.Background(), done, "/vars/a")

		close(done)
		require.Eventually(t, func() bool {
			select {
			case _, ok := <-events:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
	})
}
