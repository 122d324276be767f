package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Envelope mirrors the API response envelope for decoding in tests
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *EnvelopeError  `json:"error"`
	Meta    *EnvelopeMeta   `json:"meta"`
}

// EnvelopeError mirrors the error part of the envelope
type EnvelopeError struct {
	Code      string              `json:"code"`
	Message   string              `json:"message"`
	RequestID string              `json:"request_id"`
	Details   []map[string]string `json:"details"`
	Shortage  map[string]any      `json:"shortage"`
}

// EnvelopeMeta mirrors the pagination meta of the envelope
type EnvelopeMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// Perform sends a request to handler. A non-nil body is JSON-encoded.
func Perform(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return PerformWithHeaders(t, handler, method, path, body, nil)
}

// PerformWithHeaders is Perform with extra request headers
func PerformWithHeaders(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// DecodeEnvelope decodes the response envelope and, when out is non-nil,
// its data payload
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, out any) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	if out != nil {
		require.NotEmpty(t, env.Data, "response has no data: %s", w.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}
