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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeClone(t *testing.T) {
	var nilNode *Node
	require.Nil(t, nilNode.Clone())

	node := &Node{Path: "/a", Value: []byte("v"), Version: 3}
	clone := node.Clone()
	require.Equal(t, node, clone)

	clone.Value[0] = 'x'
	require.Equal(t, []byte("v"), node.Value)
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "updated", EventUpdated.String())
	assert.Equal(t, "deleted", EventDeleted.String())
	assert.Equal(t, "unknown", EventType(9).String())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "/hello", Join("", "hello"))
	assert.Equal(t, "/vars/hello", Join("/vars", "hello"))

	assert.Nil(t, Parents("/"))
	assert.Empty(t, Parents("/hello"))
	assert.Equal(t, []string{"/a", "/a/b"}, Parents("/a/b/c"))

	assert.Equal(t, "vars/hello", Key("/vars/hello"))
	assert.Equal(t, "hello", Key("hello"))
}
