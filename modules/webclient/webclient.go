// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxResponseBody caps how much of a response body is kept. Bodies are
// only read for logging, so a small cap is enough.
const DefaultMaxResponseBody int64 = 64 << 10

type (
	// Transport is a pre-configured HTTP client bound to one scheme. Callers
	// that hold a Transport must not send it to a URL of a different scheme.
	Transport struct {
		Scheme string
		HTTP   *http.Client
	}

	Response struct {
		StatusCode int
		Body       []byte
	}

	// Client is bound to a single resource (host, path and query).
	Client interface {
		Put(ctx context.Context, header http.Header, body []byte) (*Response, error)
	}

	// Factory creates clients bound to a target. When t is non-nil the client
	// sends through t, addressed to target's host, path and query under t's
	// scheme. Otherwise target is used as is.
	Factory interface {
		Create(t *Transport, target *url.URL) Client
	}
)

// NewTransport builds an instrumented Transport for scheme.
func NewTransport(scheme string, timeout time.Duration, insecureSkipVerify bool) (*Transport, error) {
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("webclient: unsupported scheme %q", scheme)
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Transport{
		Scheme: scheme,
		HTTP: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
	}, nil
}

type (
	HTTPFactory struct {
		client  *http.Client
		maxBody int64
	}

	FactoryOption func(*HTTPFactory)
)

var _ Factory = (*HTTPFactory)(nil)

// WithHTTPClient sets the client used when no Transport is passed to Create.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *HTTPFactory) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(d time.Duration) FactoryOption {
	return func(f *HTTPFactory) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

func WithMaxResponseBody(n int64) FactoryOption {
	return func(f *HTTPFactory) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

func NewHTTPFactory(opts ...FactoryOption) *HTTPFactory {
	f := &HTTPFactory{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBody: DefaultMaxResponseBody,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Create implements Factory.
func (f *HTTPFactory) Create(t *Transport, target *url.URL) Client {
	if t == nil {
		return &boundClient{http: f.client, url: *target, maxBody: f.maxBody}
	}

	bound := url.URL{
		Scheme:   t.Scheme,
		Host:     target.Host,
		Path:     target.Path,
		RawPath:  target.RawPath,
		RawQuery: target.RawQuery,
	}
	hc := t.HTTP
	if hc == nil {
		hc = f.client
	}
	return &boundClient{http: hc, url: bound, maxBody: f.maxBody}
}

type boundClient struct {
	http    *http.Client
	url     url.URL
	maxBody int64
}

func (c *boundClient) Put(ctx context.Context, header http.Header, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webclient: build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, query included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("webclient: PUT %s: %w", redact(c.url), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil && !errors.Is(err, io.EOF) {
		return &Response{StatusCode: resp.StatusCode}, fmt.Errorf("webclient: read response: %w", err)
	}
	// drain whatever is left so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// redact strips the query string.
func redact(u url.URL) string {
	u.RawQuery = ""
	return u.String()
}
