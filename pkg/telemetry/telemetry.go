package telemetry

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatstream/pkg/logger"
)

// Span is a sampled record of one request: its route, timing, status and
// whatever data handlers attach along the way.
type Span struct {
	ID     string
	Route  string
	Method string
	Start  time.Time

	mu   sync.Mutex
	data map[string]any
}

type spanCtxKey struct{}

// Options tunes the middleware.
type Options struct {
	// SampleRate in [0,1]; requests outside the sample pass through
	// untraced unless they exceed SlowThreshold.
	SampleRate float64
	// SlowThreshold forces a log line for slow requests even when
	// unsampled. Zero disables the slow path.
	SlowThreshold time.Duration
}

// Middleware wraps a handler with sampled span recording.
func Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sampled := opts.SampleRate > 0 && rand.Float64() < opts.SampleRate
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			if sampled {
				sp := &Span{
					ID:     uuid.NewString(),
					Route:  r.URL.Path,
					Method: r.Method,
					Start:  start,
					data:   map[string]any{},
				}
				r = r.WithContext(context.WithValue(r.Context(), spanCtxKey{}, sp))
				next.ServeHTTP(rec, r)
				sp.finish(rec.status, time.Since(start))
				return
			}

			next.ServeHTTP(rec, r)
			if opts.SlowThreshold > 0 {
				if d := time.Since(start); d >= opts.SlowThreshold {
					logger.Warn("slow_request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration_ms", d.Milliseconds())
				}
			}
		})
	}
}

// SpanFromContext returns the active span, or nil when the request was not
// sampled.
func SpanFromContext(ctx context.Context) *Span {
	sp, _ := ctx.Value(spanCtxKey{}).(*Span)
	return sp
}

// SetSpanData attaches a key/value to the active span if one exists.
func SetSpanData(ctx context.Context, key string, value any) {
	sp := SpanFromContext(ctx)
	if sp == nil {
		return
	}
	sp.mu.Lock()
	sp.data[key] = value
	sp.mu.Unlock()
}

func (sp *Span) finish(status int, d time.Duration) {
	sp.mu.Lock()
	fields := []any{"span", sp.ID, "method", sp.Method, "path", sp.Route, "status", status, "duration_ms", d.Milliseconds()}
	for k, v := range sp.data {
		fields = append(fields, k, v)
	}
	sp.mu.Unlock()
	logger.Info("request_span", fields...)
}

// statusRecorder captures the response status for span reporting. Flush is
// forwarded so SSE streaming keeps working under the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
