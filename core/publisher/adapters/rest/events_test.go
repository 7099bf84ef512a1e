package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tokenpublisher/core/publisher/domain"
	"tokenpublisher/modules/events"
	"tokenpublisher/modules/hmac"
	"tokenpublisher/modules/server"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu  sync.Mutex
	got []domain.IssuedTokenEvent
	err error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev.(domain.IssuedTokenEvent))
	return f.err
}

func (f *fakeDispatcher) DispatchAll(ctx context.Context, evs []events.Event) error {
	var errs []error
	for _, ev := range evs {
		errs = append(errs, f.Dispatch(ctx, ev))
	}
	return errors.Join(errs...)
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

func newTestHandler(t *testing.T, d Dispatcher, opts ...Option) http.Handler {
	t.Helper()
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	srv, err := server.New("127.0.0.1", 8080, server.WithServices(NewEventAPI(d, opts...)))
	require.NoError(t, err)
	return srv.Handler()
}

func post(t *testing.T, h http.Handler, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIssued_Accepted(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(t, d)

	rec := post(t, h, IssuedPath, `{"accessTokenValue":"a.b.c","expiresAt":1600000000}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Len(t, d.got, 1)
	ev := d.got[0]
	assert.Equal(t, "a.b.c", ev.AccessTokenValue)
	assert.Equal(t, int64(1600000000), ev.ExpiresAt.Unix())

	id, err := uuid.FromString(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, byte(7), id.Version())

	var out accepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{ev.ID}, out.IDs)
}

func TestIssued_KeepsCallerID(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(t, d)
	id := uuid.Must(uuid.NewV4()).String()

	rec := post(t, h, IssuedPath, fmt.Sprintf(`{"id":%q,"accessTokenValue":"a.b.c","expiresAt":1}`, id))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, id, d.got[0].ID)
}

func TestIssued_BadRequests(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"missing token": `{"expiresAt":1600000000}`,
		"missing exp":   `{"accessTokenValue":"a.b.c"}`,
		"bad id":        `{"id":"nope","accessTokenValue":"a.b.c","expiresAt":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			d := &fakeDispatcher{}
			rec := post(t, newTestHandler(t, d), IssuedPath, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			assert.Empty(t, d.got)
		})
	}
}

func TestIssued_MalformedTokenIsStillAccepted(t *testing.T) {
	d := &fakeDispatcher{}
	rec := post(t, newTestHandler(t, d), IssuedPath, `{"accessTokenValue":"not-a-jwt","expiresAt":1}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestIssued_FatalErrors(t *testing.T) {
	for _, sentinel := range []error{domain.ErrDigestUnavailable, domain.ErrConfiguration, errors.New("other")} {
		d := &fakeDispatcher{err: fmt.Errorf("publisher: %w", sentinel)}
		rec := post(t, newTestHandler(t, d), IssuedPath, `{"accessTokenValue":"a.b.c","expiresAt":1}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
}

func TestIssuedBatch(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(t, d)

	rec := post(t, h, IssuedBatch, `[{"accessTokenValue":"a.b.c","expiresAt":1},{"accessTokenValue":"d.e.f","expiresAt":2}]`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, d.got, 2)

	var out accepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.IDs, 2)

	rec = post(t, h, IssuedBatch, `[{"accessTokenValue":"a.b.c","expiresAt":1},{"expiresAt":2}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "[1].accessTokenValue")
	assert.Len(t, d.got, 2)
}

func TestSignatureVerification(t *testing.T) {
	signer, err := hmac.NewHMACSigner([]byte("s3cret"))
	require.NoError(t, err)

	d := &fakeDispatcher{}
	h := newTestHandler(t, d, WithSigner(signer))
	body := `{"accessTokenValue":"a.b.c","expiresAt":1}`

	assert.Equal(t, http.StatusUnauthorized, post(t, h, IssuedPath, body).Code)
	assert.Equal(t, http.StatusUnauthorized, post(t, h, IssuedPath, body, SignatureHdr, signer.Sign([]byte("other"))).Code)
	assert.Empty(t, d.got)

	rec := post(t, h, IssuedPath, body, SignatureHdr, signer.Sign([]byte(body)))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, d.got, 1)
}

func TestBodyLimit(t *testing.T) {
	d := &fakeDispatcher{}
	h := newTestHandler(t, d, WithMaxBodyBytes(32))

	body := `{"accessTokenValue":"` + strings.Repeat("a", 64) + `.b.c","expiresAt":1}`
	rec := post(t, h, IssuedPath, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, d.got)
}

func TestHealthz(t *testing.T) {
	get := func(h http.Handler) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, bytes.NewReader(nil)))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get(newTestHandler(t, &fakeDispatcher{})))
	assert.Equal(t, http.StatusOK, get(newTestHandler(t, &fakeDispatcher{}, WithHealthCheck("redis", fakeHealth{}))))
	assert.Equal(t, http.StatusServiceUnavailable,
		get(newTestHandler(t, &fakeDispatcher{}, WithHealthCheck("redis", fakeHealth{err: errors.New("down")}))))
}

type ctxKey struct{}

type ctxDispatcher struct {
	errs   []error
	values []any
}

func (c *ctxDispatcher) Dispatch(ctx context.Context, _ events.Event) error {
	c.errs = append(c.errs, ctx.Err())
	c.values = append(c.values, ctx.Value(ctxKey{}))
	return nil
}

func (c *ctxDispatcher) DispatchAll(ctx context.Context, evs []events.Event) error {
	for _, ev := range evs {
		_ = c.Dispatch(ctx, ev)
	}
	return nil
}

func TestIssued_CallerCancellationDoesNotReachPublisher(t *testing.T) {
	paths := map[string]string{
		IssuedPath:  `{"accessTokenValue":"a.b.c","expiresAt":1600000000}`,
		IssuedBatch: `[{"accessTokenValue":"a.b.c","expiresAt":1600000000}]`,
	}
	for path, body := range paths {
		t.Run(path, func(t *testing.T) {
			d := &ctxDispatcher{}
			h := newTestHandler(t, d)

			ctx, cancel := context.WithCancel(context.WithValue(t.Context(), ctxKey{}, "trace"))
			cancel()
			req := httptest.NewRequestWithContext(ctx, http.MethodPost, path, strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
			require.Len(t, d.errs, 1)
			assert.NoError(t, d.errs[0])
			assert.Equal(t, "trace", d.values[0])
		})
	}
}
