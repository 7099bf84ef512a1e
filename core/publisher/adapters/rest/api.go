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

package rest

import (
	"context"
	"log/slog"
	"net/http"

	"tokenpublisher/modules/db"
	"tokenpublisher/modules/events"
	"tokenpublisher/modules/hmac"
	"tokenpublisher/modules/server"
)

const (
	EventsPrefix  = "/v1/events/"
	IssuedPath    = EventsPrefix + "issued-access-token"
	IssuedBatch   = IssuedPath + "/batch"
	HealthPath    = "/healthz"
	SignatureHdr  = "X-Event-Signature"
	MaxBodyBytes  = 1 << 20
	maxBatchItems = 1000
)

var _ server.RegistrableService = (*EventAPI)(nil)

type Dispatcher interface {
	Dispatch(ctx context.Context, ev events.Event) error
	DispatchAll(ctx context.Context, evs []events.Event) error
}

// EventAPI is the webhook ingress: it turns HTTP deliveries from the token
// issuer into events and hands them to the dispatcher.
type EventAPI struct {
	dispatcher Dispatcher
	signer     *hmac.HMACSigner
	checks     map[string]db.HealthManager
	maxBody    int64
	logger     *slog.Logger
}

type Option func(*EventAPI)

// WithSigner requires every event delivery to carry a valid body signature.
func WithSigner(s *hmac.HMACSigner) Option {
	return func(a *EventAPI) { a.signer = s }
}

// WithHealthCheck adds a dependency probed by GET /healthz.
func WithHealthCheck(name string, h db.HealthManager) Option {
	return func(a *EventAPI) {
		if h != nil {
			a.checks[name] = h
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *EventAPI) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *EventAPI) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewEventAPI(d Dispatcher, opts ...Option) *EventAPI {
	a := &EventAPI{
		dispatcher: d,
		checks:     map[string]db.HealthManager{},
		maxBody:    MaxBodyBytes,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *EventAPI) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST "+IssuedPath, a.issued)
	mux.HandleFunc("POST "+IssuedBatch, a.issuedBatch)
	mux.HandleFunc("GET "+HealthPath, a.healthz)
}

func (a *EventAPI) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{a.verifyDelivery}
}
