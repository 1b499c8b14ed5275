package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMiddlewareSamplesSpan(t *testing.T) {
	var sampled *Span
	h := Middleware(Options{SampleRate: 1})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sampled = SpanFromContext(r.Context())
		SetSpanData(r.Context(), "chat", "chat_1")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chats", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, sampled)
	require.Equal(t, "/v1/chats", sampled.Route)
	require.Equal(t, "chat_1", sampled.data["chat"])
}

func TestMiddlewareUnsampledPassthrough(t *testing.T) {
	h := Middleware(Options{SampleRate: 0, SlowThreshold: time.Minute})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Nil(t, SpanFromContext(r.Context()))
		// SetSpanData on an unsampled request is a no-op.
		SetSpanData(r.Context(), "k", "v")
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/chats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
