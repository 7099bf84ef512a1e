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

package cloudflare

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/webclient"

	"golang.org/x/time/rate"
)

var _ domain.KVWriter = (*Writer)(nil)

// Writer stores revocation records in a Workers KV namespace through the
// Cloudflare v4 REST API. One PUT per record, never retried.
type Writer struct {
	apiToken      string
	namespacePath string

	factory   webclient.Factory
	transport *webclient.Transport
	limiter   *rate.Limiter
}

type WriterOption func(*Writer)

// WithTransport routes every write through a pre-bound transport. Its scheme
// is checked against the API URL on each write.
func WithTransport(t *webclient.Transport) WriterOption {
	return func(w *Writer) {
		w.transport = t
	}
}

// WithRateLimit allows at most rps writes per second. Values <= 0 disable it.
func WithRateLimit(rps float64) WriterOption {
	return func(w *Writer) {
		if rps <= 0 {
			w.limiter = nil
			return
		}
		w.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

func NewWriter(cfg Config, factory webclient.Factory, opts ...WriterOption) (*Writer, error) {
	switch {
	case factory == nil:
		return nil, fmt.Errorf("%w: cloudflare: client factory is required", domain.ErrConfiguration)
	case cfg.AccountID == "":
		return nil, fmt.Errorf("%w: cloudflare: account id is required", domain.ErrConfiguration)
	case cfg.KVNamespace == "":
		return nil, fmt.Errorf("%w: cloudflare: kv namespace is required", domain.ErrConfiguration)
	case cfg.APIToken == "":
		return nil, fmt.Errorf("%w: cloudflare: api token is required", domain.ErrConfiguration)
	}

	base, err := apiBase(cfg.APIURL)
	if err != nil {
		return nil, err
	}

	w := &Writer{
		apiToken:      cfg.APIToken,
		namespacePath: base + "accounts/" + url.PathEscape(cfg.AccountID) + "/storage/kv/namespaces/" + url.PathEscape(cfg.KVNamespace) + "/values/",
		factory:       factory,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

func apiBase(raw string) (string, error) {
	if raw == "" {
		raw = DefaultAPIURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: cloudflare: parse api url: %v", domain.ErrConfiguration, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: cloudflare: api url must be http or https, got %q", domain.ErrConfiguration, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: cloudflare: api url has no host", domain.ErrConfiguration)
	}
	u.RawQuery = ""
	u.Fragment = ""

	s := u.String()
	if !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s, nil
}

func (w *Writer) Name() string { return "cloudflare" }

// Target is the KV value URL for record, expiration included.
func (w *Writer) Target(record domain.DerivedRecord) (*url.URL, error) {
	u, err := url.Parse(w.namespacePath + url.PathEscape(record.LookupKey))
	if err != nil {
		return nil, fmt.Errorf("cloudflare: build target: %w", err)
	}
	u.RawQuery = url.Values{
		"expiration": []string{strconv.FormatInt(record.Expiration.Unix(), 10)},
	}.Encode()
	return u, nil
}

// Put implements domain.KVWriter.
//
// A transport whose scheme differs from the target's fails with a
// *domain.ConfigurationError before anything is sent. Non-200 responses and
// transport failures come back as *domain.RemoteWriteError.
func (w *Writer) Put(ctx context.Context, record domain.DerivedRecord) error {
	target, err := w.Target(record)
	if err != nil {
		return err
	}

	client, err := w.client(target)
	if err != nil {
		return err
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return &domain.RemoteWriteError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+w.apiToken)
	header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Put(ctx, header, []byte(record.StoredValue))
	if err != nil {
		return &domain.RemoteWriteError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.RemoteWriteError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return nil
}

func (w *Writer) client(target *url.URL) (webclient.Client, error) {
	if w.transport == nil {
		return w.factory.Create(nil, target), nil
	}
	if !strings.EqualFold(w.transport.Scheme, target.Scheme) {
		return nil, &domain.ConfigurationError{Required: target.Scheme, Found: w.transport.Scheme}
	}
	return w.factory.Create(w.transport, target), nil
}
