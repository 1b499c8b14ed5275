package handlers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"chatstream/pkg/stream"
)

func TestPipeEventsFinishEmitsDone(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	require.NoError(t, err)

	ch := make(chan stream.Event, 2)
	ch <- stream.Event{Type: stream.EventTextDelta, Seq: 1, Delta: "hi"}
	ch <- stream.Event{Type: stream.EventFinish, Seq: 2}
	pipeEvents(context.Background(), sse, stream.Subscription{Events: ch, Cancel: func() {}})

	body := rec.Body.String()
	require.Contains(t, body, `"hi"`)
	require.Contains(t, body, "data: [DONE]")
}

func TestPipeEventsLaggedCloseIsNotDone(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	require.NoError(t, err)

	// A channel closed before any terminal frame means the hub detached
	// the subscriber for lagging. The client must not see a clean end.
	ch := make(chan stream.Event, 2)
	ch <- stream.Event{Type: stream.EventStart, Seq: 1}
	ch <- stream.Event{Type: stream.EventTextDelta, Seq: 2, Delta: "par"}
	close(ch)
	pipeEvents(context.Background(), sse, stream.Subscription{Events: ch, Cancel: func() {}})

	body := rec.Body.String()
	require.Contains(t, body, "resume to replay")
	require.NotContains(t, body, "[DONE]")
}
