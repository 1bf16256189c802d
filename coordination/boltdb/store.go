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

// Package boltdb implements coordination.Client on a bbolt database file.
//
// bbolt locks its file for a single process, so a Store is the unit shared by
// every client of one host process: Connect hands out independent sessions on
// the same database. A node is stored under its path as an 8-byte big-endian
// version followed by the value; versions come from the bucket sequence.
package boltdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"

	"github.com/tochemey/atomvar/coordination"
	gerrors "github.com/tochemey/atomvar/errors"
	"github.com/tochemey/atomvar/internal/watch"
)

const versionSize = 8

var (
	errNodeExists   = errors.New("exists")
	errNodeNotFound = errors.New("not found")
	errConflict     = errors.New("conflict")
)

// Store is an open bbolt database holding nodes
type Store struct {
	config *Config
	db     *bbolt.DB
	bucket []byte
	hub    *watch.Hub
	closed *atomic.Bool
}

// Open opens (or creates) the database file described by config
func Open(config *Config) (*Store, error) {
	if config == nil {
		return nil, errors.New("coordination/boltdb: config is nil")
	}

	config.Sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.Logger.Debugf("opening boltdb path=%s bucket=%s", config.Path, config.Bucket)

	db, err := bbolt.Open(config.Path, defaultFileMode, &bbolt.Options{
		Timeout: config.OpenTimeout,
		NoSync:  config.NoSync,
	})
	if err != nil {
		return nil, gerrors.NewErrConnectivity("connect", "", fmt.Errorf("opening boltdb: %w", err))
	}

	bucket := []byte(config.Bucket)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("coordination/boltdb: initializing bucket: %w", err)
	}

	return &Store{
		config: config,
		db:     db,
		bucket: bucket,
		hub:    watch.NewHub(),
		closed: atomic.NewBool(false),
	}, nil
}

// Connect opens a new session on the store
func (s *Store) Connect() *Client {
	return newClient(s, false)
}

// Close closes the database. Sessions fail with ErrConnectionClosed afterwards.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) exists(path string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(s.bucket).Get([]byte(path)) != nil
		return nil
	})
	return found, err
}

func (s *Store) read(path string) (*coordination.Node, error) {
	var node *coordination.Node
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(path))
		if raw == nil {
			return errNodeNotFound
		}
		node = decode(path, raw)
		return nil
	})
	return node, err
}

func (s *Store) create(path string, value []byte) (*coordination.Node, error) {
	var node *coordination.Node
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		if bucket.Get([]byte(path)) != nil {
			return errNodeExists
		}

		version, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		node = &coordination.Node{Path: path, Value: slices.Clone(value), Version: version}
		return bucket.Put([]byte(path), encode(version, value))
	})
	if err != nil {
		return nil, err
	}

	s.hub.Publish(path, coordination.Event{Type: coordination.EventUpdated, Node: node.Clone()})
	return node, nil
}

func (s *Store) write(path string, value []byte, expected uint64) (uint64, error) {
	var version uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		raw := bucket.Get([]byte(path))
		if raw == nil {
			return errNodeNotFound
		}

		if decodeVersion(raw) != expected {
			return errConflict
		}

		next, err := bucket.NextSequence()
		if err != nil {
			return err
		}

		version = next
		return bucket.Put([]byte(path), encode(version, value))
	})
	if err != nil {
		return 0, err
	}

	s.hub.Publish(path, coordination.Event{
		Type: coordination.EventUpdated,
		Node: &coordination.Node{Path: path, Value: slices.Clone(value), Version: version},
	})
	return version, nil
}

func (s *Store) watch(ctx context.Context, done <-chan struct{}, path string) <-chan coordination.Event {
	return s.hub.Watch(ctx, done, path)
}

func encode(version uint64, value []byte) []byte {
	raw := make([]byte, versionSize+len(value))
	binary.BigEndian.PutUint64(raw, version)
	copy(raw[versionSize:], value)
	return raw
}

func decodeVersion(raw []byte) uint64 {
	if len(raw) < versionSize {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}

// decode copies raw since bbolt memory is only valid inside the transaction
func decode(path string, raw []byte) *coordination.Node {
	node := &coordination.Node{Path: path, Version: decodeVersion(raw), Value: []byte{}}
	if len(raw) > versionSize {
		node.Value = slices.Clone(raw[versionSize:])
	}
	return node
}
