package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"chatstream/pkg/auth"
	"chatstream/pkg/logger"
	"chatstream/pkg/llm"
	"chatstream/pkg/metrics"
	"chatstream/pkg/models"
	"chatstream/pkg/store"
	"chatstream/pkg/stream"
	"chatstream/pkg/telemetry"
	"chatstream/pkg/utils"
	"chatstream/pkg/validation"
)

// inboundMessage is the wire shape for new turns: typed parts or the
// plain content shorthand.
type inboundMessage struct {
	Role    string        `json:"role"`
	Parts   []models.Part `json:"parts"`
	Content string        `json:"content"`
}

// StartStream handles POST /v1/chats/{id}/stream. Incoming messages are
// persisted, a generation is kicked off against the full chat history, and
// the response streams the assistant's reply as SSE. Generation is
// detached from the request context: a dropped connection does not abort
// it, and the client can resume with GET.
func StartStream(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	author, err := auth.ResolveAuthorFromRequest(r)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := liveChat(chatID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	if hub == nil || provider == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "streaming not configured")
		return
	}

	var in struct {
		Message  *inboundMessage  `json:"message"`
		Messages []inboundMessage `json:"messages"`
		Model    string           `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Message != nil {
		in.Messages = append([]inboundMessage{*in.Message}, in.Messages...)
	}

	// Persist the incoming user turn(s) before generating.
	for _, im := range in.Messages {
		msg := models.Message{
			ID:    utils.GenID(),
			Chat:  chatID,
			Role:  im.Role,
			Parts: im.Parts,
			TS:    time.Now().UTC().UnixNano(),
		}
		if msg.Role == "" {
			msg.Role = models.RoleUser
		}
		if len(msg.Parts) == 0 && im.Content != "" {
			msg.Parts = []models.Part{models.TextPart(im.Content)}
		}
		if err := validation.ValidateMessage(msg); err != nil {
			utils.JSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		b, _ := json.Marshal(msg)
		if err := store.SaveMessage(chatID, msg.ID, string(b)); err != nil {
			utils.JSONError(w, http.StatusInternalServerError, "failed to save message")
			return
		}
		metrics.MessagesAppended.Inc()
	}

	history, err := loadHistory(chatID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to load chat history")
		return
	}
	if len(history) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "chat has no messages to generate from")
		return
	}

	streamID := utils.GenStreamID()
	rec := models.StreamRecord{ID: streamID, Chat: chatID, Status: models.StreamActive}
	if err := store.AppendStream(rec); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to record stream")
		return
	}
	pub, err := hub.Open(streamID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}
	sub, ok := hub.Subscribe(streamID)
	if !ok {
		utils.JSONError(w, http.StatusInternalServerError, "failed to attach to stream")
		return
	}
	defer sub.Cancel()

	telemetry.SetSpanData(r.Context(), "stream", streamID)
	logger.Info("stream_started", "chat", chatID, "stream", streamID, "author", author)
	metrics.StreamsStarted.Inc()

	// The generation must survive the HTTP connection.
	genCtx := context.WithoutCancel(r.Context())
	go generate(genCtx, pub, rec, history, in.Model)

	sse, err := newSSEWriter(w)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	pipeEvents(r.Context(), sse, sub)
}

// ResumeStream handles GET /v1/chats/{id}/stream. Replays the active
// stream's buffered events and follows the live tail. Responds 204 when no
// stream is active for the chat.
func ResumeStream(w http.ResponseWriter, r *http.Request) {
	resumeChat(w, r, mux.Vars(r)["id"])
}

// ResumeStreamByQuery handles GET /v1/stream?chat=<id>, the flat variant
// of ResumeStream for clients that prefer query parameters.
func ResumeStreamByQuery(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat")
	if chatID == "" {
		chatID = r.URL.Query().Get("chatId")
	}
	if chatID == "" {
		utils.JSONError(w, http.StatusBadRequest, "chat query parameter is required")
		return
	}
	resumeChat(w, r, chatID)
}

func resumeChat(w http.ResponseWriter, r *http.Request, chatID string) {
	if _, err := liveChat(chatID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	if hub == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "streaming not configured")
		return
	}
	rec, found, err := store.LatestActiveStream(chatID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to look up streams")
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sub, ok := hub.Subscribe(rec.ID)
	if !ok {
		// Record says active but this node has no buffer for it. The
		// sweeper reconciles abandoned records; the client gets the same
		// answer as no-stream.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	defer sub.Cancel()

	telemetry.SetSpanData(r.Context(), "stream", rec.ID)
	logger.Debug("stream_resumed", "chat", chatID, "stream", rec.ID, "replay", len(sub.Replay))
	metrics.StreamsResumed.Inc()

	sse, err := newSSEWriter(w)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	pipeEvents(r.Context(), sse, sub)
}

// GetStreamRecord handles GET /v1/streams/{id}.
func GetStreamRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := store.GetStream(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "stream not found")
		return
	}
	utils.JSONWrite(w, http.StatusOK, rec)
}

// pipeEvents writes replayed then live events as SSE until the stream
// terminates or the client goes away.
func pipeEvents(ctx context.Context, sse *sseWriter, sub stream.Subscription) {
	var lastSeq uint64
	for _, ev := range sub.Replay {
		if err := sse.event(ev); err != nil {
			return
		}
		lastSeq = ev.Seq
		if ev.Terminal() {
			sse.done()
			return
		}
	}
	for {
		select {
		case ev, open := <-sub.Events:
			if !open {
				// Closed before a terminal frame means the hub detached this
				// subscriber for lagging. Surface the gap instead of a clean
				// end so the client resumes and replays what it missed.
				_ = sse.event(stream.Event{Type: stream.EventError, Seq: lastSeq, Error: "subscriber lagged; resume to replay"})
				return
			}
			if ev.Seq <= lastSeq {
				continue
			}
			if err := sse.event(ev); err != nil {
				return
			}
			lastSeq = ev.Seq
			if ev.Terminal() {
				sse.done()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// generate runs the provider stream to completion, publishing deltas and
// persisting the assistant message and final stream status.
func generate(ctx context.Context, pub *stream.Publisher, rec models.StreamRecord, history []models.Message, model string) {
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	fail := func(msg string, err error) {
		logger.Error("generation_failed", "chat", rec.Chat, "stream", rec.ID, "error", err)
		pub.Fail(msg)
		rec.Status = models.StreamError
		if uerr := store.UpdateStream(rec); uerr != nil {
			logger.Error("stream_status_update_failed", "stream", rec.ID, "error", uerr)
		}
	}

	if err := pub.Start(); err != nil {
		fail("failed to start stream", err)
		return
	}
	chunks, err := provider.Stream(ctx, llm.ChatRequest{
		Model:        model,
		Instructions: llmCfg.Instructions,
		Messages:     history,
	})
	if err != nil {
		fail("provider rejected request", err)
		return
	}

	var text strings.Builder
	for ch := range chunks {
		if ch.Err != nil {
			fail("generation error", ch.Err)
			return
		}
		if ch.Text == "" {
			continue
		}
		text.WriteString(ch.Text)
		if err := pub.Delta(ch.Text); err != nil {
			logger.Error("delta_publish_failed", "stream", rec.ID, "error", err)
			return
		}
	}

	msg := models.Message{
		ID:    utils.GenID(),
		Chat:  rec.Chat,
		Role:  models.RoleAssistant,
		Parts: []models.Part{models.TextPart(text.String())},
		TS:    time.Now().UTC().UnixNano(),
	}
	b, _ := json.Marshal(msg)
	if err := store.SaveMessage(rec.Chat, msg.ID, string(b)); err != nil {
		fail("failed to persist assistant message", err)
		return
	}
	metrics.MessagesAppended.Inc()

	rec.Status = models.StreamDone
	rec.Message = msg.ID
	if err := store.UpdateStream(rec); err != nil {
		logger.Error("stream_status_update_failed", "stream", rec.ID, "error", err)
	}
	if err := pub.Finish(); err != nil {
		logger.Error("finish_publish_failed", "stream", rec.ID, "error", err)
	}
	logger.Info("stream_finished", "chat", rec.Chat, "stream", rec.ID, "msg", msg.ID, "bytes", text.Len())
}

// loadHistory returns the chat's messages, latest version per id, in
// first-seen order, skipping tombstones.
func loadHistory(chatID string) ([]models.Message, error) {
	rows, err := store.ListMessages(chatID)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(rows))
	latest := make(map[string]models.Message, len(rows))
	for _, row := range rows {
		var m models.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			continue
		}
		if _, seen := latest[m.ID]; !seen {
			order = append(order, m.ID)
		}
		latest[m.ID] = m
	}
	out := make([]models.Message, 0, len(order))
	for _, id := range order {
		if m := latest[id]; !m.Deleted {
			out = append(out, m)
		}
	}
	return out, nil
}
