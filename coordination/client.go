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

package coordination

import (
	"context"
	"slices"
)

// Node is the content of a node at a point in time
type Node struct {
	// Path is the absolute node path, e.g. "/vars/hello"
	Path string
	// Value is the node payload
	Value []byte
	// Version is the token assigned by the service on the last successful write.
	// It strictly increases on every write to the same node.
	Version uint64
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return &Node{
		Path:    n.Path,
		Value:   slices.Clone(n.Value),
		Version: n.Version,
	}
}

// EventType distinguishes watch events.
type EventType int

const (
	// EventUpdated indicates the node has been created or written.
	EventUpdated EventType = iota
	// EventDeleted indicates the node has been removed.
	EventDeleted
)

// String returns the event type name
func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event describes a change of a watched node
type Event struct {
	Type EventType
	// Node holds the new content for EventUpdated and the path (and, when
	// the service reports it, the last content) for EventDeleted.
	Node *Node
}

// Client is the coordination service session consumed by a namespace.
// Implementations must be safe for concurrent use.
type Client interface {
	// Exists reports whether a node exists at path.
	Exists(ctx context.Context, path string) (bool, error)
	// Read returns the current value and version of the node at path.
	Read(ctx context.Context, path string) (*Node, error)
	// ConditionalWrite stores value at path only when the stored version equals
	// expected, and returns the new version.
	ConditionalWrite(ctx context.Context, path string, value []byte, expected uint64) (uint64, error)
	// Create atomically creates the node at path with the given value.
	Create(ctx context.Context, path string, value []byte) (*Node, error)
	// Watch streams changes of the node at path until ctx is done or the
	// client is closed, at which point the channel is closed.
	Watch(ctx context.Context, path string) (<-chan Event, error)
	// Close invalidates the session. Every later call fails with ErrConnectionClosed.
	Close() error
}

// Dialer establishes a session with a coordination service. It blocks until the
// session is usable or fails.
type Dialer func(ctx context.Context) (Client, error)
