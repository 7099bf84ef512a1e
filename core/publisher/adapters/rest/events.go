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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/events"
	"tokenpublisher/modules/middleware/problem"

	"github.com/gofrs/uuid/v5"
)

// issuedEvent is the JSON shape of an issued-access-token delivery.
type issuedEvent struct {
	ID               string `json:"id,omitempty"`
	AccessTokenValue string `json:"accessTokenValue"`
	ExpiresAt        *int64 `json:"expiresAt"`
}

type accepted struct {
	IDs []string `json:"ids"`
}

func (a *EventAPI) issued(w http.ResponseWriter, r *http.Request) {
	var in issuedEvent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, problem.BadRequest("invalid JSON body: "+err.Error(), problem.WithTraceContext(r.Context())))
		return
	}

	ev, p := toDomain(in, "")
	if p != nil {
		problem.Write(w, p)
		return
	}

	// Writes already issued run to completion even if the caller goes away.
	if err := a.dispatcher.Dispatch(context.WithoutCancel(r.Context()), ev); err != nil {
		a.fail(w, r, err, ev.ID)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted{IDs: []string{ev.ID}})
}

func (a *EventAPI) issuedBatch(w http.ResponseWriter, r *http.Request) {
	var in []issuedEvent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		problem.Write(w, problem.BadRequest("invalid JSON body: "+err.Error(), problem.WithTraceContext(r.Context())))
		return
	}
	if len(in) > maxBatchItems {
		problem.Write(w, problem.BadRequest(fmt.Sprintf("batch holds %d events, at most %d are allowed", len(in), maxBatchItems)))
		return
	}

	evs := make([]events.Event, 0, len(in))
	ids := make([]string, 0, len(in))
	for i, item := range in {
		ev, p := toDomain(item, "["+strconv.Itoa(i)+"].")
		if p != nil {
			problem.Write(w, p)
			return
		}
		evs = append(evs, ev)
		ids = append(ids, ev.ID)
	}

	if err := a.dispatcher.DispatchAll(context.WithoutCancel(r.Context()), evs); err != nil {
		a.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusAccepted, accepted{IDs: ids})
}

func (a *EventAPI) healthz(w http.ResponseWriter, r *http.Request) {
	for name, h := range a.checks {
		if err := h.HealthCheck(r.Context()); err != nil {
			a.logger.WarnContext(r.Context(), "health check failed", slog.String("dependency", name), slog.Any("error", err))
			problem.Write(w, problem.New(
				problem.WithStatus(http.StatusServiceUnavailable),
				problem.WithDetail(name+" is unavailable"),
			))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps errors returned by the publisher. Everything that reaches here is
// an environment fault, so the issuer sees a 500.
func (a *EventAPI) fail(w http.ResponseWriter, r *http.Request, err error, id string) {
	a.logger.ErrorContext(r.Context(), "event handling failed", slog.String("event_id", id), slog.Any("error", err))

	detail := "event could not be published"
	switch {
	case errors.Is(err, domain.ErrDigestUnavailable):
		detail = "lookup key digest is unavailable"
	case errors.Is(err, domain.ErrConfiguration):
		detail = "kv writer is misconfigured"
	}
	problem.Write(w, problem.Internal(detail, problem.WithTraceContext(r.Context())))
}

func toDomain(in issuedEvent, field string) (domain.IssuedTokenEvent, *problem.Problem) {
	var opts []problem.Option
	if in.AccessTokenValue == "" {
		opts = append(opts, problem.WithInvalidParam(field+"accessTokenValue", "required"))
	}
	if in.ExpiresAt == nil {
		opts = append(opts, problem.WithInvalidParam(field+"expiresAt", "required"))
	}

	id := in.ID
	if id == "" {
		v7, err := uuid.NewV7()
		if err != nil {
			return domain.IssuedTokenEvent{}, problem.Internal("cannot assign event id")
		}
		id = v7.String()
	} else if _, err := uuid.FromString(id); err != nil {
		opts = append(opts, problem.WithInvalidParam(field+"id", "must be a UUID"))
	}

	if len(opts) > 0 {
		return domain.IssuedTokenEvent{}, problem.BadRequest("event is incomplete", opts...)
	}

	return domain.IssuedTokenEvent{
		ID:               id,
		AccessTokenValue: in.AccessTokenValue,
		ExpiresAt:        time.Unix(*in.ExpiresAt, 0),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
