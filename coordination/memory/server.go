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

// Package memory provides an in-process coordination service.
//
// A Server holds the node tree; every Client obtained from it behaves like an
// independent session, so several namespaces can share one Server the same way
// several processes share a remote service. Server can also simulate an outage
// to exercise connectivity error paths.
package memory

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	"github.com/tochemey/atomvar/internal/watch"
)

// Server is an in-process, strongly consistent node store
type Server struct {
	mu          sync.Mutex
	nodes       map[string]*coordination.Node
	revision    uint64
	hub         *watch.Hub
	unavailable *atomic.Bool
	creates     *atomic.Int64
	writes      *atomic.Int64
}

// NewServer creates an empty Server
func NewServer() *Server {
	return &Server{
		nodes:       make(map[string]*coordination.Node),
		hub:         watch.NewHub(),
		unavailable: atomic.NewBool(false),
		creates:     atomic.NewInt64(0),
		writes:      atomic.NewInt64(0),
	}
}

// Connect opens a new session on the server
func (s *Server) Connect() *Client {
	return &Client{
		server: s,
		closed: atomic.NewBool(false),
		done:   make(chan struct{}),
	}
}

// Dialer returns a coordination.Dialer opening sessions on the server.
// Dialing fails with a connectivity error while the server is unavailable.
func (s *Server) Dialer() coordination.Dialer {
	return func(ctx context.Context) (coordination.Client, error) {
		if err := s.check(ctx, "connect", ""); err != nil {
			return nil, err
		}
		return s.Connect(), nil
	}
}

// SetUnavailable simulates an outage: while set, every call fails with a connectivity error.
func (s *Server) SetUnavailable(unavailable bool) {
	s.unavailable.Store(unavailable)
}

// CreateCount returns the number of nodes successfully created
func (s *Server) CreateCount() int64 {
	return s.creates.Load()
}

// WriteCount returns the number of successful conditional writes
func (s *Server) WriteCount() int64 {
	return s.writes.Load()
}

// Delete removes a node, bypassing sessions. It reports whether a node was removed.
func (s *Server) Delete(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[path]
	if !ok {
		return false
	}
	delete(s.nodes, path)
	s.hub.Publish(path, coordination.Event{Type: coordination.EventDeleted, Node: node.Clone()})
	return true
}

func (s *Server) exists(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[path]
	return ok
}

func (s *Server) read(path string) (*coordination.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[path]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// write returns the new version, or found=false / conflict=true
func (s *Server) write(path string, value []byte, expected uint64) (version uint64, found, conflict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[path]
	if !ok {
		return 0, false, false
	}

	if node.Version != expected {
		return 0, true, true
	}

	s.revision++
	node.Value = slices.Clone(value)
	node.Version = s.revision
	s.writes.Inc()
	s.hub.Publish(path, coordination.Event{Type: coordination.EventUpdated, Node: node.Clone()})
	return node.Version, true, false
}

func (s *Server) create(path string, value []byte) (*coordination.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[path]; ok {
		return nil, false
	}

	s.revision++
	node := &coordination.Node{
		Path:    path,
		Value:   slices.Clone(value),
		Version: s.revision,
	}
	s.nodes[path] = node
	s.creates.Inc()
	s.hub.Publish(path, coordination.Event{Type: coordination.EventUpdated, Node: node.Clone()})
	return node.Clone(), true
}

func (s *Server) check(ctx context.Context, op, path string) error {
	if err := ctx.Err(); err != nil {
		return connectivityError(op, path, err)
	}
	if s.unavailable.Load() {
		return connectivityError(op, path, errUnavailable)
	}
	return nil
}
