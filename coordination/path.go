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

import "strings"

// Join builds the node path of a child of parent. The root parent is "".
func Join(parent, name string) string {
	return parent + "/" + name
}

// Parents returns the ancestors of path from the top down, excluding the root
// and path itself: Parents("/a/b/c") is ["/a", "/a/b"].
func Parents(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}

	segments := strings.Split(trimmed, "/")
	parents := make([]string, 0, len(segments)-1)
	for i := 1; i < len(segments); i++ {
		parents = append(parents, "/"+strings.Join(segments[:i], "/"))
	}
	return parents
}

// Key maps a node path onto a flat key by stripping the leading separator.
// Services without a hierarchical namespace (consul, redis, nats) use it.
func Key(path string) string {
	return strings.TrimPrefix(path, "/")
}
