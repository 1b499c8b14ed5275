package stream

// Event types carried over a live stream.
const (
	EventStart     = "start"
	EventTextDelta = "text-delta"
	EventFinish    = "finish"
	EventError     = "error"
)

// Event is one frame of a generation stream. Seq is assigned by the
// publisher and is strictly increasing within a stream, so resumers can
// dedupe replayed frames against the live tail.
type Event struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Seq   uint64 `json:"seq"`
	Delta string `json:"delta,omitempty"`
	Error string `json:"error,omitempty"`
	TS    int64  `json:"ts"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventFinish || e.Type == EventError
}
