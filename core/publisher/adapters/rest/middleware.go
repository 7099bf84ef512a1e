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
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"tokenpublisher/modules/middleware/problem"
)

// verifyDelivery caps the body of event deliveries and, when a signer is
// configured, checks the body signature before any handler runs.
func (a *EventAPI) verifyDelivery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, EventsPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				problem.Write(w, problem.PayloadTooLarge("event body exceeds the size limit",
					problem.WithExtension("limit", tooLarge.Limit),
					problem.WithTraceContext(r.Context()),
				))
				return
			}
			problem.Write(w, problem.BadRequest("cannot read request body", problem.WithTraceContext(r.Context())))
			return
		}

		if a.signer != nil {
			if err := a.signer.Verify(body, r.Header.Get(SignatureHdr)); err != nil {
				a.logger.WarnContext(r.Context(), "rejecting event delivery",
					slog.String("path", r.URL.Path),
					slog.Any("error", err),
				)
				problem.Write(w, problem.Unauthorized(err.Error(), problem.WithTraceContext(r.Context())))
				return
			}
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
