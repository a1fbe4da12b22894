// Copyright (c) 2025 Kyco
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bridge

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// ConnectTimeout bounds dialing the bridge; it is local, so fail fast.
	ConnectTimeout = 5 * time.Second
	// ReadTimeout bounds a single silent stretch on an open connection.
	// Agents can think for minutes without emitting a record.
	ReadTimeout = 30 * time.Minute
)

// Endpoint is the immutable address of a bridge plus the HTTP client used to reach it.
type Endpoint struct {
	baseURL string
	client  *http.Client
}

// NewEndpoint returns an Endpoint with the default connect and read timeouts.
func NewEndpoint(baseURL string) Endpoint {
	return NewEndpointWithClient(baseURL, newHTTPClient(ConnectTimeout, ReadTimeout))
}

// NewEndpointWithClient returns an Endpoint that sends requests through client.
func NewEndpointWithClient(baseURL string, client *http.Client) Endpoint {
	if client == nil {
		client = newHTTPClient(ConnectTimeout, ReadTimeout)
	}
	return Endpoint{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// BaseURL returns the bridge base URL without a trailing slash.
func (e Endpoint) BaseURL() string { return e.baseURL }

// URL joins path onto the base URL. path must start with "/".
func (e Endpoint) URL(path string) string { return e.baseURL + path }

// newHTTPClient builds a client without a whole-request timeout, since
// streaming bodies may stay open for the length of an agent session.
func newHTTPClient(connect, read time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy: nil, // loopback only
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &idleTimeoutConn{Conn: conn, timeout: read}, nil
		},
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: read,
	}
	return &http.Client{Transport: transport}
}

// idleTimeoutConn pushes the read deadline forward before every read so the
// timeout applies to silence, not to total stream length.
type idleTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleTimeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}
