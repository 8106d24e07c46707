package mwlogger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func TestNewMWLogger_RequestID(t *testing.T) {
	var sawLogger bool
	h := NewMWLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawLogger = r.Context().Value(loggerKey{}).(zlog.Zerolog)
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.NotEmpty(t, w.Header().Get(RequestIDHeader))
		require.True(t, sawLogger)
	})

	t.Run("reused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})
}

func TestWithTask(t *testing.T) {
	ctx := WithTask(context.Background(), "task-1")
	_, ok := ctx.Value(loggerKey{}).(zlog.Zerolog)
	require.True(t, ok)
}
