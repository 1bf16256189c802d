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
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// Info describes the client side TLS material used to reach a coordination
// service. Files are PEM encoded. A zero Info means plaintext.
//
// CAFile sets the root certificate authorities used to verify the server.
// CertFile and KeyFile, when both set, present a client certificate for
// mutual TLS.
type Info struct {
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Enabled reports whether any TLS setting is present.
func (info Info) Enabled() bool {
	return info.CAFile != "" ||
		info.CertFile != "" ||
		info.KeyFile != "" ||
		info.ServerName != "" ||
		info.InsecureSkipVerify
}

// Validate checks that the key pair is either complete or absent.
func (info Info) Validate() error {
	if (info.CertFile == "") != (info.KeyFile == "") {
		return fmt.Errorf("tls: cert_file and key_file must be set together")
	}
	return nil
}

// ClientConfig builds the client tls.Config. It returns nil when TLS is not enabled.
func (info Info) ClientConfig() (*tls.Config, error) {
	if !info.Enabled() {
		return nil, nil
	}

	if err := info.Validate(); err != nil {
		return nil, err
	}

	config := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         strings.TrimSpace(info.ServerName),
		InsecureSkipVerify: info.InsecureSkipVerify, //nolint:gosec
	}

	if info.CAFile != "" {
		pem, err := os.ReadFile(info.CAFile)
		if err != nil {
			return nil, fmt.Errorf("tls: failed to read ca_file: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("tls: ca_file %s holds no PEM certificate", info.CAFile)
		}
		config.RootCAs = pool
	}

	if info.CertFile != "" {
		pair, err := tls.LoadX509KeyPair(info.CertFile, info.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls: failed to load key pair: %w", err)
		}
		config.Certificates = []tls.Certificate{pair}
	}

	return config, nil
}
