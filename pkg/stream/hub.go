package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"chatstream/pkg/logger"
)

const topicPrefix = "chatstream.stream."

// Hub tracks live generation streams. Publishers push events through the
// broker; the hub's own broker subscription is the single ingestion point,
// appending to the replay buffer and fanning out to attached subscribers.
// Replay buffers are node-local.
type Hub struct {
	broker Broker

	// replayMax caps replay buffer bytes per stream; oldest text deltas
	// are evicted first. Zero means unlimited.
	replayMax int64
	// linger keeps a finished stream's buffer around for late resumers.
	linger time.Duration

	mu      sync.Mutex
	streams map[string]*streamState
}

type streamState struct {
	id      string
	events  []Event
	bytes   int64
	trimmed bool
	done    bool
	lastSeq uint64

	subs    map[uint64]chan Event
	nextSub uint64

	unsub func()
	timer *time.Timer
}

// Subscription is a resume attachment: Replay holds the buffered events so
// far, Events carries the live tail. Cancel detaches.
type Subscription struct {
	Replay []Event
	// Trimmed reports that the replay buffer dropped old deltas, so the
	// replayed prefix is incomplete.
	Trimmed bool
	Events  <-chan Event
	Cancel  func()
}

// NewHub builds a hub over the given broker.
func NewHub(b Broker, replayMax int64, linger time.Duration) *Hub {
	if linger <= 0 {
		linger = 30 * time.Second
	}
	return &Hub{
		broker:    b,
		replayMax: replayMax,
		linger:    linger,
		streams:   make(map[string]*streamState),
	}
}

// Open registers a new stream and returns its publisher. Fails if the
// stream ID is already live.
func (h *Hub) Open(streamID string) (*Publisher, error) {
	h.mu.Lock()
	if _, exists := h.streams[streamID]; exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("stream already open: %s", streamID)
	}
	st := &streamState{id: streamID, subs: map[uint64]chan Event{}}
	h.streams[streamID] = st
	h.mu.Unlock()

	unsub, err := h.broker.Subscribe(topicPrefix+streamID, func(data []byte) {
		h.ingest(streamID, data)
	})
	if err != nil {
		h.mu.Lock()
		delete(h.streams, streamID)
		h.mu.Unlock()
		return nil, err
	}
	h.mu.Lock()
	st.unsub = unsub
	h.mu.Unlock()
	logger.Debug("stream_opened", "stream", streamID)
	return &Publisher{hub: h, streamID: streamID}, nil
}

// Subscribe attaches to a live or lingering stream. The bool reports
// whether the hub knows the stream; callers fall back to their own
// not-found handling when it does not.
func (h *Hub) Subscribe(streamID string) (Subscription, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.streams[streamID]
	if !ok {
		return Subscription{}, false
	}

	replay := make([]Event, len(st.events))
	copy(replay, st.events)

	if st.done {
		ch := make(chan Event)
		close(ch)
		return Subscription{Replay: replay, Trimmed: st.trimmed, Events: ch, Cancel: func() {}}, true
	}

	id := st.nextSub
	st.nextSub++
	ch := make(chan Event, 64)
	st.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		if cur, ok := h.streams[streamID]; ok {
			if c, ok := cur.subs[id]; ok {
				delete(cur.subs, id)
				close(c)
			}
		}
		h.mu.Unlock()
	}
	return Subscription{Replay: replay, Trimmed: st.trimmed, Events: ch, Cancel: cancel}, true
}

// Live reports whether the stream is known and not yet finished.
func (h *Hub) Live(streamID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.streams[streamID]
	return ok && !st.done
}

// ingest is the broker callback: one goroutine per broker subscription
// delivers frames here in publish order.
func (h *Hub) ingest(streamID string, data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warn("stream_frame_unmarshal_failed", "stream", streamID, "error", err)
		return
	}

	h.mu.Lock()
	st, ok := h.streams[streamID]
	if !ok || st.done {
		h.mu.Unlock()
		return
	}
	if ev.Seq <= st.lastSeq && st.lastSeq != 0 {
		// Duplicate frame from the broker; replay already has it.
		h.mu.Unlock()
		return
	}
	st.lastSeq = ev.Seq
	st.events = append(st.events, ev)
	st.bytes += int64(len(ev.Delta))
	for h.replayMax > 0 && st.bytes > h.replayMax && len(st.events) > 1 {
		// Evict oldest deltas only; start/terminal frames are tiny and
		// eviction stops before the final frame.
		old := st.events[0]
		st.events = st.events[1:]
		st.bytes -= int64(len(old.Delta))
		st.trimmed = true
	}

	terminal := ev.Terminal()
	if terminal {
		st.done = true
	}
	for id, ch := range st.subs {
		select {
		case ch <- ev:
		default:
			// Saturated subscriber. Detach it and close its channel so the
			// reader sees a broken tail and re-resumes with a consistent
			// replay instead of silently missing frames.
			delete(st.subs, id)
			close(ch)
			logger.Warn("stream_subscriber_dropped", "stream", streamID, "sub", id)
		}
	}
	if terminal {
		for id, ch := range st.subs {
			delete(st.subs, id)
			close(ch)
		}
	}
	h.mu.Unlock()

	if terminal {
		h.retireAfterLinger(streamID)
	}
}

func (h *Hub) retireAfterLinger(streamID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st, ok := h.streams[streamID]
	if !ok {
		return
	}
	if st.unsub != nil {
		st.unsub()
		st.unsub = nil
	}
	st.timer = time.AfterFunc(h.linger, func() {
		h.mu.Lock()
		delete(h.streams, streamID)
		h.mu.Unlock()
		logger.Debug("stream_retired", "stream", streamID)
	})
}

// Close drops every stream and closes the broker.
func (h *Hub) Close() error {
	h.mu.Lock()
	for id, st := range h.streams {
		if st.unsub != nil {
			st.unsub()
		}
		if st.timer != nil {
			st.timer.Stop()
		}
		for sid, ch := range st.subs {
			delete(st.subs, sid)
			close(ch)
		}
		delete(h.streams, id)
	}
	h.mu.Unlock()
	return h.broker.Close()
}

// Publisher pushes events for one stream. Send assigns sequence numbers;
// callers must end the stream with exactly one Finish or Fail.
type Publisher struct {
	hub      *Hub
	streamID string
	mu       sync.Mutex
	seq      uint64
	closed   bool
}

// Start publishes the opening frame.
func (p *Publisher) Start() error {
	return p.send(Event{Type: EventStart, ID: p.streamID})
}

// Delta publishes one text chunk.
func (p *Publisher) Delta(text string) error {
	return p.send(Event{Type: EventTextDelta, ID: p.streamID, Delta: text})
}

// Finish publishes the terminal success frame and retires the publisher.
func (p *Publisher) Finish() error {
	return p.send(Event{Type: EventFinish, ID: p.streamID})
}

// Fail publishes the terminal error frame and retires the publisher.
func (p *Publisher) Fail(msg string) error {
	return p.send(Event{Type: EventError, ID: p.streamID, Error: msg})
}

func (p *Publisher) send(ev Event) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("publisher closed: %s", p.streamID)
	}
	p.seq++
	ev.Seq = p.seq
	ev.TS = time.Now().UTC().UnixNano()
	if ev.Terminal() {
		p.closed = true
	}
	p.mu.Unlock()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.hub.broker.Publish(topicPrefix+p.streamID, b)
}
