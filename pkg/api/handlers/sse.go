package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"chatstream/pkg/stream"
)

// sseWriter frames stream events as server-sent events. Each event goes
// out as an `id:` line carrying the sequence number plus a `data:` JSON
// payload, followed by a literal [DONE] frame when the stream ends.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, f: f}, nil
}

func (s *sseWriter) event(ev stream.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\ndata: %s\n\n", ev.Seq, b); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

func (s *sseWriter) done() {
	fmt.Fprint(s.w, "data: [DONE]\n\n")
	s.f.Flush()
}
