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

// Package coordination defines the narrow client surface a variable namespace
// consumes from a coordination service: strongly-consistent reads and existence
// checks, version-checked conditional writes, atomic creation and optional change
// notifications.
//
// Implementations live in the sub-packages (etcd, nats, consul, redis, zookeeper,
// boltdb and an in-process memory store). Every implementation maps its own
// failures onto the error taxonomy of github.com/tochemey/atomvar/errors:
//
//   - ErrVersionConflict when a conditional write loses its compare
//   - ErrNodeExists when creating an occupied path
//   - ErrNodeNotFound when reading or writing a missing node
//   - ErrConnectionClosed once Close has been called
//   - a ConnectivityError (matching ErrConnectivity) for transport failures
package coordination
