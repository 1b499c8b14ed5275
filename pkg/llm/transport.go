package llm

import (
	"net/http"
	"time"

	"chatstream/pkg/logger"
	"chatstream/pkg/metrics"
)

// Transport instruments outbound provider calls: every request is logged
// with redacted headers and counted with its latency. Streaming responses
// are measured to first byte, not to stream end.
type Transport struct {
	Base http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	start := time.Now()
	logger.Debug("provider_request", "method", req.Method, "host", req.URL.Host, "path", req.URL.Path)

	resp, err := base.RoundTrip(req)
	d := time.Since(start)
	if err != nil {
		logger.Warn("provider_request_failed", "host", req.URL.Host, "path", req.URL.Path, "duration_ms", d.Milliseconds(), "error", err)
		metrics.ObserveProvider(req.URL.Host, 0, d)
		return nil, err
	}
	logger.Debug("provider_response", "host", req.URL.Host, "status", resp.StatusCode, "duration_ms", d.Milliseconds())
	metrics.ObserveProvider(req.URL.Host, resp.StatusCode, d)
	return resp, nil
}

// HTTPClient returns a client whose transport is instrumented.
func HTTPClient() *http.Client {
	return &http.Client{Transport: &Transport{}}
}
