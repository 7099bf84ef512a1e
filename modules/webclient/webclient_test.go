package webclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenRequest struct {
	method, path, rawPath, query, auth, body string
}

func recordingServer(t *testing.T, status int, reply string) (*httptest.Server, *seenRequest) {
	t.Helper()
	seen := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*seen = seenRequest{
			method:  r.Method,
			path:    r.URL.Path,
			rawPath: r.URL.EscapedPath(),
			query:   r.URL.RawQuery,
			auth:    r.Header.Get("Authorization"),
			body:    string(b),
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestCreateWithoutTransport(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK, `{"success":true}`)

	target, err := url.Parse(srv.URL + "/values/a%2Fb?expiration=1700000000")
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")

	resp, err := NewHTTPFactory().Create(nil, target).Put(t.Context(), header, []byte("aaa.bbb"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, string(resp.Body))
	assert.Equal(t, http.MethodPut, seen.method)
	assert.Equal(t, "/values/a%2Fb", seen.rawPath)
	assert.Equal(t, "expiration=1700000000", seen.query)
	assert.Equal(t, "Bearer secret", seen.auth)
	assert.Equal(t, "aaa.bbb", seen.body)
}

func TestCreateWithTransportUsesTransportScheme(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusCreated, "")

	tr, err := NewTransport("http", 5*time.Second, false)
	require.NoError(t, err)

	// the target says https, the bound transport decides the scheme
	target, err := url.Parse(strings.Replace(srv.URL, "http://", "https://", 1) + "/kv/key?expiration=1")
	require.NoError(t, err)

	resp, err := NewHTTPFactory().Create(tr, target).Put(t.Context(), nil, []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/kv/key", seen.path)
	assert.Equal(t, "expiration=1", seen.query)
}

func TestResponseBodyIsCapped(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusInternalServerError, strings.Repeat("x", 1024))

	target, err := url.Parse(srv.URL + "/k")
	require.NoError(t, err)

	resp, err := NewHTTPFactory(WithMaxResponseBody(16)).Create(nil, target).Put(t.Context(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Len(t, resp.Body, 16)
}

func TestTransportErrorIsReturned(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, "")
	target, err := url.Parse(srv.URL + "/k?expiration=5")
	require.NoError(t, err)
	srv.Close()

	_, err = NewHTTPFactory(WithTimeout(time.Second)).Create(nil, target).Put(t.Context(), nil, []byte("v"))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "expiration=5")
}

func TestNewTransportRejectsUnknownScheme(t *testing.T) {
	_, err := NewTransport("ftp", time.Second, false)
	assert.Error(t, err)

	tr, err := NewTransport(" HTTPS ", time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, "https", tr.Scheme)
}
