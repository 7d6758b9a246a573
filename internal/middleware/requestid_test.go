package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	var capturedID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedID = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, capturedID)
	assert.Equal(t, capturedID, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_IncomingHeader(t *testing.T) {
	tests := []struct {
		name     string
		headerID string
		wantNew  bool
	}{
		{"valid id is preserved", "custom-id_123.a", false},
		{"spaces are rejected", "bad id", true},
		{"newline is rejected", "bad\nid", true},
		{"overlong id is rejected", strings.Repeat("a", maxRequestIDLen+1), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var capturedID string
			handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				capturedID = RequestIDFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header[RequestIDHeader] = []string{tc.headerID}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if tc.wantNew {
				assert.NotEqual(t, tc.headerID, capturedID)
				assert.Len(t, capturedID, 36)
			} else {
				assert.Equal(t, tc.headerID, capturedID)
			}
			assert.Equal(t, capturedID, rec.Header().Get(RequestIDHeader))
		})
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := RequestID(AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/v1/namespaces", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "/v1/namespaces", line["path"])
	assert.InDelta(t, 502, line["status"], 0)
	assert.InDelta(t, len("upstream down"), line["bytes"], 0)
}
