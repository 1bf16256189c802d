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

package tls

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/atomvar/internal/testutil"
)

func TestInfo(t *testing.T) {
	t.Run("With zero value", func(t *testing.T) {
		info := Info{}
		assert.False(t, info.Enabled())
		config, err := info.ClientConfig()
		require.NoError(t, err)
		assert.Nil(t, config)
	})
	t.Run("With incomplete key pair", func(t *testing.T) {
		info := Info{CertFile: "client.pem"}
		assert.True(t, info.Enabled())
		assert.Error(t, info.Validate())
		_, err := info.ClientConfig()
		assert.Error(t, err)
	})
	t.Run("With missing ca file", func(t *testing.T) {
		info := Info{CAFile: filepath.Join(t.TempDir(), "missing.pem")}
		_, err := info.ClientConfig()
		assert.Error(t, err)
	})
	t.Run("With a ca file holding no certificate", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "ca.pem")
		require.NoError(t, os.WriteFile(file, []byte("not a certificate"), 0o600))
		_, err := Info{CAFile: file}.ClientConfig()
		assert.Error(t, err)
	})
	t.Run("With ca and key pair", func(t *testing.T) {
		files := testutil.WriteCertFiles(t)
		info := Info{
			CAFile:     files.CAFile,
			CertFile:   files.CertFile,
			KeyFile:    files.KeyFile,
			ServerName: " localhost ",
		}
		config, err := info.ClientConfig()
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.NotNil(t, config.RootCAs)
		assert.Len(t, config.Certificates, 1)
		assert.Equal(t, "localhost", config.ServerName)
		assert.False(t, config.InsecureSkipVerify)
	})
	t.Run("With insecure skip verify only", func(t *testing.T) {
		config, err := Info{InsecureSkipVerify: true}.ClientConfig()
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.True(t, config.InsecureSkipVerify)
		assert.Nil(t, config.RootCAs)
	})
}
