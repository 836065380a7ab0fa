package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// observe - подменяет логер песочницы наблюдателем на время теста.
func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	ServerLog = zap.New(core)
	t.Cleanup(func() { ServerLog = zap.NewNop() })
	return logs
}

func TestInitialize(t *testing.T) {
	defer func() { ServerLog = zap.NewNop() }()

	tests := []struct {
		level     string
		wantErr   bool
		wantDebug bool
		wantInfo  bool
	}{
		{level: "debug", wantDebug: true, wantInfo: true},
		{level: "info", wantInfo: true},
		{level: "error"},
		{level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := Initialize(tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDebug, ServerLog.Core().Enabled(zap.DebugLevel))
			assert.Equal(t, tt.wantInfo, ServerLog.Core().Enabled(zap.InfoLevel))
			assert.True(t, ServerLog.Core().Enabled(zap.ErrorLevel))
		})
	}
}

func TestInitializeKeepsLoggerOnError(t *testing.T) {
	observe(t)
	before := ServerLog

	require.Error(t, Initialize("verbose"))
	assert.Same(t, before, ServerLog)
}

func TestLoggingResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rd := &responseData{status: http.StatusOK}
	lw := &loggingResponseWriter{ResponseWriter: rec, responseData: rd}

	lw.WriteHeader(http.StatusNotFound)
	_, err := lw.Write([]byte(`channel `))
	require.NoError(t, err)
	_, err = lw.Write([]byte(`not found`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, rd.status)
	assert.Equal(t, len("channel not found"), rd.size)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "channel not found", rec.Body.String())
}

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		requestID  string
		status     int
		body       string
		wantStatus int64
	}{
		{
			name:       "send without explicit status",
			method:     http.MethodPost,
			path:       "/api/v2/channels/100/data",
			requestID:  "0b6c1c9e-5f0e-4c6b-9a55-3f4f8a0c2d11",
			wantStatus: http.StatusOK,
		},
		{
			name:       "read with forbidden key",
			method:     http.MethodGet,
			path:       "/api/v2/channels/100/data",
			requestID:  "req-1",
			status:     http.StatusForbidden,
			body:       "wrong read key",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "delete without request id",
			method:     http.MethodDelete,
			path:       "/api/v2/channels/7/data",
			status:     http.StatusOK,
			wantStatus: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := observe(t)

			r := chi.NewRouter()
			r.MethodFunc(tt.method, "/api/v2/channels/{id}/data", RequestLogger(func(res http.ResponseWriter, _ *http.Request) {
				if tt.status != 0 {
					res.WriteHeader(tt.status)
				}
				if tt.body != "" {
					_, _ = res.Write([]byte(tt.body))
				}
			}))

			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.requestID != "" {
				req.Header.Set("X-Request-Id", tt.requestID)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			entries := logs.All()
			require.Len(t, entries, 1)
			fields := entries[0].ContextMap()
			assert.Equal(t, tt.method, fields["method"])
			assert.Equal(t, tt.path, fields["path"])
			assert.Equal(t, tt.requestID, fields["request id"])
			assert.Equal(t, tt.wantStatus, fields["status"])
			assert.Equal(t, int64(len(tt.body)), fields["size"])
			assert.Contains(t, fields, "duration")
		})
	}
}
