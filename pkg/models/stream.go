package models

// Stream record statuses.
const (
	StreamActive = "active"
	StreamDone   = "done"
	StreamError  = "error"
)

// StreamRecord associates an opaque stream id with a chat so an in-flight
// generation can be resumed after a client disconnect. Records append per
// chat in start order; the status document is updated as the generation
// progresses.
type StreamRecord struct {
	ID        string `json:"id"`
	Chat      string `json:"chat"`
	Status    string `json:"status"`
	CreatedTS int64  `json:"created_ts"`
	UpdatedTS int64  `json:"updated_ts,omitempty"`
	// Message is the id of the assistant message the stream produced (set
	// when the stream finishes).
	Message string `json:"message,omitempty"`
}
