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

// Package variables provides distributed atomic variables.
//
// A Namespace owns a session on a coordination service and issues Variable
// handles for the nodes under its parent path. A Variable keeps the last
// value and version it observed and updates the node with conditional writes
// tagged with that version: when another client wrote in between, the write
// is rejected, the handle re-reads the node and tries again. Version
// conflicts never reach the caller; connectivity failures always do.
//
//	ns, err := variables.Connect(ctx, "/app/vars", etcd.NewDialer(config))
//	if err != nil {
//		return err
//	}
//	defer ns.Shutdown(ctx)
//
//	counter, err := ns.GetOrCreate(ctx, "counter", []byte("0"))
//	if err != nil {
//		return err
//	}
//
//	_, err = counter.Update(ctx, func(current []byte) ([]byte, error) {
//		n, err := strconv.Atoi(string(current))
//		if err != nil {
//			return nil, err
//		}
//		return []byte(strconv.Itoa(n + 1)), nil
//	})
package variables
